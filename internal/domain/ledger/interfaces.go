package ledger

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// BookingState is the part of a booking the ledger reads.
type BookingState struct {
	ID            uint
	Status        string
	Cancelled     bool
	TotalAmount   decimal.Decimal
	PaymentStatus string
}

// BookingStore is implemented by the booking repository. Both calls run on
// the caller's transaction; LockBooking returns ErrBookingNotFound when absent.
type BookingStore interface {
	LockBooking(ctx context.Context, tx *gorm.DB, bookingID uint) (*BookingState, error)
	SetPaymentState(ctx context.Context, tx *gorm.DB, bookingID uint, amountPaid decimal.Decimal, status string) error
}

type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}
