package catalog

import "github.com/shopspring/decimal"

type RoomTypeInput struct {
	Name            string          `json:"name" validate:"notblank,max=120"`
	Description     string          `json:"description" validate:"max=2000"`
	BasePrice       decimal.Decimal `json:"base_price"`
	MaxGuests       int             `json:"max_guests" validate:"min=1,max=20"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	Active          *bool           `json:"active"`
}

type RoomInput struct {
	Number     string `json:"number" validate:"notblank,max=16"`
	Floor      int    `json:"floor" validate:"gte=0"`
	RoomTypeID uint   `json:"room_type_id" validate:"required"`
}
