package allocation

import "errors"

var (
	// ErrSoldOut: no room of the requested type is free for the window.
	ErrSoldOut = errors.New("room type is sold out for the selected dates")
	// ErrRoomTaken: a concurrent booking claimed the chosen room first.
	ErrRoomTaken    = errors.New("room was taken by a concurrent booking")
	ErrRoomHasStays = errors.New("room has current or upcoming stays")
	ErrRoomNotFound = errors.New("room not found")
)

// IsContention reports errors the caller should answer by offering another
// room or room type rather than retrying blindly.
func IsContention(err error) bool {
	return errors.Is(err, ErrSoldOut) || errors.Is(err, ErrRoomTaken)
}
