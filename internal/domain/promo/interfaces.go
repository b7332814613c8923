package promo

import (
	"context"

	"hotelpms/internal/domain/catalog"
)

// RoomLookup resolves a concrete room to its type when callers pass room_id.
type RoomLookup interface {
	GetRoom(ctx context.Context, id uint) (*catalog.Room, error)
}
