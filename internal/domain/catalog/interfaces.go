package catalog

import (
	"context"

	"hotelpms/internal/pkg/stay"
)

// AvailabilityCounter reports how many rooms of a type are free for a window.
type AvailabilityCounter interface {
	CountAvailable(ctx context.Context, roomTypeID uint, w stay.Window) (int, error)
}
