package pricing

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hotelpms/internal/domain/tax"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var gst = tax.Rule{ID: 1, Name: "GST", Percentage: d("18"), Position: 1}

func TestComputeDeluxeScenario(t *testing.T) {
	snap, err := Compute(Input{RoomRate: d("4500"), Nights: 2, RoomCount: 1, Discount: d("900"), Taxes: []tax.Rule{gst}})
	require.NoError(t, err)

	assert.True(t, snap.OriginalAmount.Equal(d("9000")))
	assert.True(t, snap.DiscountAmount.Equal(d("900")))
	assert.True(t, snap.BaseAmount.Equal(d("8100")))
	assert.True(t, snap.TotalTaxAmount.Equal(d("1458")))
	assert.True(t, snap.TotalAmount.Equal(d("9558")))
}

func TestComputeIdentitiesHold(t *testing.T) {
	rates := []string{"0", "0.99", "1999.50", "4500"}
	discounts := []string{"0", "10.005", "9000", "99999"}
	rules := []tax.Rule{gst, {ID: 2, Name: "Service", Percentage: d("2.5"), Position: 2}}

	for _, rate := range rates {
		for nights := 1; nights <= 3; nights++ {
			for rooms := 1; rooms <= 3; rooms++ {
				for _, disc := range discounts {
					snap, err := Compute(Input{RoomRate: d(rate), Nights: nights, RoomCount: rooms, Discount: d(disc), Taxes: rules})
					require.NoError(t, err)

					sum := decimal.Zero
					for _, l := range snap.Taxes {
						sum = sum.Add(l.Amount)
					}
					assert.True(t, snap.TotalAmount.Equal(snap.BaseAmount.Add(sum)))
					assert.True(t, snap.TotalTaxAmount.Equal(sum))
					expectedBase := snap.OriginalAmount.Sub(snap.DiscountAmount)
					if expectedBase.IsNegative() {
						expectedBase = decimal.Zero
					}
					assert.True(t, snap.BaseAmount.Equal(expectedBase))
					assert.True(t, snap.DiscountAmount.LessThanOrEqual(snap.OriginalAmount))
				}
			}
		}
	}
}

func TestComputeMultipliesRoomCount(t *testing.T) {
	snap, err := Compute(Input{RoomRate: d("1000"), Nights: 3, RoomCount: 2})
	require.NoError(t, err)
	assert.True(t, snap.OriginalAmount.Equal(d("6000")))
	assert.Empty(t, snap.Taxes)
	assert.True(t, snap.TotalAmount.Equal(d("6000")))
}

func TestComputeRejectsInvalidInput(t *testing.T) {
	_, err := Compute(Input{RoomRate: d("100"), Nights: 0, RoomCount: 1})
	assert.True(t, errors.Is(err, ErrInvalidInput))
	_, err = Compute(Input{RoomRate: d("100"), Nights: 1, RoomCount: 0})
	assert.True(t, errors.Is(err, ErrInvalidInput))
	_, err = Compute(Input{RoomRate: d("-1"), Nights: 1, RoomCount: 1})
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestDelta(t *testing.T) {
	prev, _ := Compute(Input{RoomRate: d("4500"), Nights: 2, RoomCount: 1, Taxes: []tax.Rule{gst}})
	next, _ := Compute(Input{RoomRate: d("6000"), Nights: 2, RoomCount: 1, Taxes: []tax.Rule{gst}})

	assert.True(t, Delta(prev, next).Equal(d("3540")))
	assert.True(t, Delta(next, prev).Equal(d("-3540")))
}
