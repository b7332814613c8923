package stay

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAndNights(t *testing.T) {
	w, err := Parse("2026-03-30", "2026-04-02")
	require.NoError(t, err)
	assert.Equal(t, 3, w.Nights())
	assert.Equal(t, []string{"2026-03-30", "2026-03-31", "2026-04-01"}, w.NightKeys())
	assert.Equal(t, "2026-04-02", w.EndKey())
}

func TestParseRejectsBadWindows(t *testing.T) {
	_, err := Parse("2026-04-02", "2026-04-02")
	assert.True(t, errors.Is(err, ErrEmptyWindow))

	_, err = Parse("2026-04-03", "2026-04-02")
	assert.True(t, errors.Is(err, ErrEmptyWindow))

	_, err = Parse("04/02/2026", "2026-04-05")
	assert.True(t, errors.Is(err, ErrInvalidDate))

	_, err = Parse("2026-01-01", "2027-06-01")
	assert.True(t, errors.Is(err, ErrWindowTooLong))

	year, err := Parse("2026-01-01", "2027-01-01")
	require.NoError(t, err)
	assert.Equal(t, MaxNights, year.Nights())
	_, err = Parse("2026-01-01", "2027-01-02")
	assert.True(t, errors.Is(err, ErrWindowTooLong))
}

func TestDateUsesHotelLocation(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	now := time.Date(2026, 5, 1, 21, 30, 0, 0, time.UTC)

	assert.Equal(t, "2026-05-02", Date(now, loc).Format(DateLayout))
	assert.Equal(t, "2026-05-01", Date(now, time.UTC).Format(DateLayout))

	tonight := Tonight(now, loc)
	assert.Equal(t, 1, tonight.Nights())
	assert.Equal(t, "2026-05-02", tonight.FirstKey())
}
