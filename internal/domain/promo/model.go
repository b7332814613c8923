package promo

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	DiscountPercentage = "percentage"
	DiscountFixed      = "fixed"
)

// PromoCode is a discount rule. Code matching is exact and case-sensitive.
type PromoCode struct {
	ID           uint            `json:"id" gorm:"primaryKey"`
	Code         string          `json:"code" gorm:"size:64;not null;uniqueIndex"`
	Description  string          `json:"description" gorm:"size:255"`
	DiscountType string          `json:"discount_type" gorm:"size:16;not null;check:discount_type IN ('percentage','fixed')"`
	Value        decimal.Decimal `json:"value" gorm:"type:decimal(12,2);not null"`
	MinAmount    decimal.Decimal `json:"min_amount" gorm:"type:decimal(14,2);not null;default:0"`
	ValidFrom    *time.Time      `json:"valid_from,omitempty"`
	ValidUntil   *time.Time      `json:"valid_until,omitempty"`
	UsageCap     int             `json:"usage_cap" gorm:"not null;default:0"`
	UsedCount    int             `json:"used_count" gorm:"not null;default:0"`
	Active       bool            `json:"active" gorm:"not null;index"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`

	RoomTypes []PromoRoomType `json:"room_types,omitempty" gorm:"foreignKey:PromoCodeID;constraint:OnDelete:CASCADE"`
}

func (PromoCode) TableName() string {
	return "promo_codes"
}

// Unlimited reports whether the code has no usage cap.
func (p *PromoCode) Unlimited() bool {
	return p.UsageCap <= 0
}

func (p *PromoCode) AppliesTo(roomTypeID uint) bool {
	if len(p.RoomTypes) == 0 {
		return true
	}
	for _, rt := range p.RoomTypes {
		if rt.RoomTypeID == roomTypeID {
			return true
		}
	}
	return false
}

// PromoRoomType restricts a code to specific room types. No rows means any type.
type PromoRoomType struct {
	PromoCodeID uint `json:"-" gorm:"primaryKey"`
	RoomTypeID  uint `json:"room_type_id" gorm:"primaryKey"`
}

func (PromoRoomType) TableName() string {
	return "promo_room_types"
}

// UsageRetry is a usage increment that could not be applied with its booking.
type UsageRetry struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	PromoCodeID uint      `json:"promo_code_id" gorm:"not null;index"`
	BookingID   uint      `json:"booking_id" gorm:"not null;uniqueIndex"`
	Attempts    int       `json:"attempts" gorm:"not null;default:0"`
	LastError   string    `json:"last_error" gorm:"type:text"`
	Done        bool      `json:"done" gorm:"not null;index"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (UsageRetry) TableName() string {
	return "promo_usage_retries"
}
