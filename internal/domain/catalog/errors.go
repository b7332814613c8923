package catalog

import "errors"

var (
	ErrRoomTypeNotFound = errors.New("room type not found")
	ErrRoomNotFound     = errors.New("room not found")
	ErrDuplicateSlug    = errors.New("a room type with this name already exists")
	ErrDuplicateNumber  = errors.New("room number already exists")
	ErrValidation       = errors.New("validation error")
)
