// Package stay models a [check-in, check-out) window of calendar nights.
package stay

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

var (
	ErrInvalidDate   = errors.New("dates must use YYYY-MM-DD")
	ErrEmptyWindow   = errors.New("check-out must be after check-in")
	ErrWindowTooLong = errors.New("stay is too long")
)

// MaxNights bounds a single booking.
const MaxNights = 365

// Window is a stay. Both ends are UTC midnights of calendar dates.
type Window struct {
	CheckIn  time.Time
	CheckOut time.Time
}

// Date truncates t to its calendar date in loc and returns that date at UTC midnight.
func Date(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return t, nil
}

func New(checkIn, checkOut time.Time) (Window, error) {
	w := Window{CheckIn: Date(checkIn, time.UTC), CheckOut: Date(checkOut, time.UTC)}
	if !w.CheckOut.After(w.CheckIn) {
		return Window{}, ErrEmptyWindow
	}
	if w.Nights() > MaxNights {
		return Window{}, ErrWindowTooLong
	}
	return w, nil
}

func Parse(checkIn, checkOut string) (Window, error) {
	in, err := ParseDate(checkIn)
	if err != nil {
		return Window{}, err
	}
	out, err := ParseDate(checkOut)
	if err != nil {
		return Window{}, err
	}
	return New(in, out)
}

// Tonight is the one-night window starting today in loc.
func Tonight(now time.Time, loc *time.Location) Window {
	today := Date(now, loc)
	return Window{CheckIn: today, CheckOut: today.AddDate(0, 0, 1)}
}

func (w Window) Nights() int {
	return int(w.CheckOut.Sub(w.CheckIn).Hours() / 24)
}

// NightKeys lists each occupied night as YYYY-MM-DD.
func (w Window) NightKeys() []string {
	n := w.Nights()
	keys := make([]string, 0, n)
	for i := 0; i < n; i++ {
		keys = append(keys, w.CheckIn.AddDate(0, 0, i).Format(DateLayout))
	}
	return keys
}

// FirstKey and EndKey bound the half-open night range for queries.
func (w Window) FirstKey() string { return w.CheckIn.Format(DateLayout) }
func (w Window) EndKey() string   { return w.CheckOut.Format(DateLayout) }

func (w Window) String() string {
	return w.FirstKey() + ".." + w.EndKey()
}
