package booking

import (
	"context"

	"gorm.io/gorm"

	"hotelpms/internal/domain/allocation"
	"hotelpms/internal/domain/catalog"
	"hotelpms/internal/domain/ledger"
	"hotelpms/internal/domain/pricing"
	"hotelpms/internal/domain/promo"
	"hotelpms/internal/pkg/stay"
)

type Quoter interface {
	Quote(ctx context.Context, req pricing.QuoteRequest) (*pricing.Quote, error)
	Requote(ctx context.Context, req pricing.RequoteRequest) (*pricing.Quote, error)
}

type RoomAllocator interface {
	LockRoomTypes(ids ...uint) func()
	AvailableRooms(ctx context.Context, roomTypeID uint, w stay.Window, excludeBookingID uint) ([]catalog.Room, error)
	Reserve(ctx context.Context, tx *gorm.DB, req allocation.ReserveRequest) (*catalog.Room, error)
	Reassign(ctx context.Context, tx *gorm.DB, req allocation.ReassignRequest) (*catalog.Room, error)
	Release(ctx context.Context, tx *gorm.DB, bookingID uint) ([]uint, error)
	HeldRooms(ctx context.Context, tx *gorm.DB, bookingID uint) ([]uint, error)
	Announce(ctx context.Context, roomIDs ...uint)
}

type Promos interface {
	Get(ctx context.Context, id uint) (*promo.PromoCode, error)
	ConsumeTx(ctx context.Context, tx *gorm.DB, promoID, bookingID uint) error
}

type PaymentReverser interface {
	LockBookingAccounts(ctx context.Context, bookingID uint) (func(), error)
	ReverseBookingPaymentsTx(ctx context.Context, tx *gorm.DB, bookingID uint, reason, actor string) (*ledger.ReversalSummary, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}
