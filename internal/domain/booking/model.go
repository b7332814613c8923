package booking

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"hotelpms/internal/domain/pricing"
	"hotelpms/internal/domain/tax"
	"hotelpms/internal/pkg/stay"
)

const (
	StatusPending    = "pending"
	StatusConfirmed  = "confirmed"
	StatusCheckedIn  = "checked_in"
	StatusCheckedOut = "checked_out"
	StatusCancelled  = "cancelled"
)

// Booking keeps the pricing snapshot taken when it was created or last
// changed. Room type rate edits never touch it.
type Booking struct {
	ID        uint    `json:"id" gorm:"primaryKey"`
	Reference string  `json:"reference" gorm:"size:32;not null;uniqueIndex"`
	IntentKey *string `json:"-" gorm:"size:128;uniqueIndex"`

	GuestName       string `json:"guest_name" gorm:"size:255;not null"`
	GuestEmail      string `json:"guest_email" gorm:"size:255;not null;index"`
	GuestPhone      string `json:"guest_phone" gorm:"size:32"`
	SpecialRequests string `json:"special_requests,omitempty" gorm:"type:text"`

	CheckIn    time.Time `json:"check_in" gorm:"type:date;not null;index"`
	CheckOut   time.Time `json:"check_out" gorm:"type:date;not null;index"`
	Nights     int       `json:"nights" gorm:"not null"`
	Adults     int       `json:"adults" gorm:"not null;default:1"`
	Children   int       `json:"children" gorm:"not null;default:0"`
	RoomCount  int       `json:"room_count" gorm:"not null;default:1"`
	RoomTypeID uint      `json:"room_type_id" gorm:"not null;index"`
	RoomID     uint      `json:"room_id" gorm:"not null;default:0;index"`

	RoomRate          decimal.Decimal `json:"room_rate" gorm:"type:decimal(14,2);not null"`
	OriginalAmount    decimal.Decimal `json:"original_amount" gorm:"type:decimal(14,2);not null"`
	DiscountAmount    decimal.Decimal `json:"discount_amount" gorm:"type:decimal(14,2);not null;default:0"`
	BaseAmount        decimal.Decimal `json:"base_amount" gorm:"type:decimal(14,2);not null"`
	TaxLines          datatypes.JSON  `json:"taxes"`
	TotalTaxAmount    decimal.Decimal `json:"total_tax_amount" gorm:"type:decimal(14,2);not null;default:0"`
	TotalAmount       decimal.Decimal `json:"total_amount" gorm:"type:decimal(14,2);not null"`
	TaxFallback       bool            `json:"tax_fallback" gorm:"not null;default:false"`
	TaxFallbackReason string          `json:"tax_fallback_reason,omitempty" gorm:"size:64"`

	PromoCodeID   *uint  `json:"promo_code_id,omitempty" gorm:"index"`
	PromoCode     string `json:"promo_code,omitempty" gorm:"size:64"`
	PromoConsumed bool   `json:"-" gorm:"not null;default:false"`

	Status        string          `json:"status" gorm:"size:20;not null;index;check:status IN ('pending','confirmed','checked_in','checked_out','cancelled')"`
	PaymentStatus string          `json:"payment_status" gorm:"size:20;not null;index;check:payment_status IN ('pending','partially_paid','paid','cancelled','refunded')"`
	AmountPaid    decimal.Decimal `json:"amount_paid" gorm:"type:decimal(14,2);not null;default:0"`

	CancellationReason string     `json:"cancellation_reason,omitempty" gorm:"type:text"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CreatedBy          string     `json:"created_by,omitempty" gorm:"size:64"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func (Booking) TableName() string {
	return "bookings"
}

func (b *Booking) Window() stay.Window {
	return stay.Window{CheckIn: stay.Date(b.CheckIn, time.UTC), CheckOut: stay.Date(b.CheckOut, time.UTC)}
}

// Live bookings hold rooms and accept payments.
func (b *Booking) Live() bool {
	return b.Status != StatusCancelled && b.Status != StatusCheckedOut
}

// Snapshot rebuilds the stored pricing. Unreadable tax lines are reported
// and the snapshot is returned without them.
func (b *Booking) Snapshot() (pricing.Snapshot, error) {
	var lines []tax.Line
	var err error
	if len(b.TaxLines) > 0 {
		if uerr := json.Unmarshal(b.TaxLines, &lines); uerr != nil {
			lines = nil
			err = fmt.Errorf("decode tax lines of booking %d: %w", b.ID, uerr)
		}
	}
	return pricing.Snapshot{
		RoomRate:          b.RoomRate,
		Nights:            b.Nights,
		RoomCount:         b.RoomCount,
		OriginalAmount:    b.OriginalAmount,
		DiscountAmount:    b.DiscountAmount,
		BaseAmount:        b.BaseAmount,
		Taxes:             lines,
		TotalTaxAmount:    b.TotalTaxAmount,
		TotalAmount:       b.TotalAmount,
		PromoCode:         b.PromoCode,
		TaxFallback:       b.TaxFallback,
		TaxFallbackReason: b.TaxFallbackReason,
	}, err
}

func (b *Booking) applySnapshot(s pricing.Snapshot) error {
	lines := s.Taxes
	if lines == nil {
		lines = []tax.Line{}
	}
	raw, err := json.Marshal(lines)
	if err != nil {
		return err
	}
	b.RoomRate = s.RoomRate
	b.Nights = s.Nights
	b.RoomCount = s.RoomCount
	b.OriginalAmount = s.OriginalAmount
	b.DiscountAmount = s.DiscountAmount
	b.BaseAmount = s.BaseAmount
	b.TaxLines = datatypes.JSON(raw)
	b.TotalTaxAmount = s.TotalTaxAmount
	b.TotalAmount = s.TotalAmount
	b.PromoCode = s.PromoCode
	b.TaxFallback = s.TaxFallback
	b.TaxFallbackReason = s.TaxFallbackReason
	return nil
}

// Event is the payload published on booking lifecycle changes.
type Event struct {
	Type          string          `json:"type"`
	BookingID     uint            `json:"booking_id"`
	Reference     string          `json:"reference"`
	Status        string          `json:"status"`
	PaymentStatus string          `json:"payment_status"`
	RoomID        uint            `json:"room_id"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Actor         string          `json:"actor,omitempty"`
	At            time.Time       `json:"at"`
}

func eventFor(typ string, b *Booking, actor string, at time.Time) Event {
	return Event{
		Type:          typ,
		BookingID:     b.ID,
		Reference:     b.Reference,
		Status:        b.Status,
		PaymentStatus: b.PaymentStatus,
		RoomID:        b.RoomID,
		TotalAmount:   b.TotalAmount,
		Actor:         actor,
		At:            at.UTC(),
	}
}
