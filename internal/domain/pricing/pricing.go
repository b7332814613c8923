// Package pricing turns a room rate, a stay and an optional discount into a
// frozen price snapshot. Compute is pure; Assembler gathers fresh inputs.
package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"hotelpms/internal/domain/tax"
	"hotelpms/internal/pkg/money"
)

var ErrInvalidInput = errors.New("invalid pricing input")

type Input struct {
	RoomRate  decimal.Decimal
	Nights    int
	RoomCount int
	Discount  decimal.Decimal
	Taxes     []tax.Rule
}

// Snapshot is the full price breakdown stored on a booking.
type Snapshot struct {
	RoomRate          decimal.Decimal `json:"room_rate"`
	Nights            int             `json:"nights"`
	RoomCount         int             `json:"room_count"`
	OriginalAmount    decimal.Decimal `json:"original_amount"`
	DiscountAmount    decimal.Decimal `json:"discount_amount"`
	BaseAmount        decimal.Decimal `json:"base_amount"`
	Taxes             []tax.Line      `json:"taxes"`
	TotalTaxAmount    decimal.Decimal `json:"total_tax_amount"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	PromoCode         string          `json:"promo_code,omitempty"`
	TaxFallback       bool            `json:"tax_fallback"`
	TaxFallbackReason string          `json:"tax_fallback_reason,omitempty"`
}

func Compute(in Input) (Snapshot, error) {
	switch {
	case in.Nights <= 0:
		return Snapshot{}, fmt.Errorf("%w: nights must be > 0", ErrInvalidInput)
	case in.RoomCount < 1:
		return Snapshot{}, fmt.Errorf("%w: room count must be >= 1", ErrInvalidInput)
	case in.RoomRate.IsNegative():
		return Snapshot{}, fmt.Errorf("%w: room rate must be >= 0", ErrInvalidInput)
	}

	original := money.Round(in.RoomRate.Mul(decimal.NewFromInt(int64(in.Nights))).Mul(decimal.NewFromInt(int64(in.RoomCount))))
	discount := money.Min(money.NonNegative(money.Round(in.Discount)), original)
	b := tax.Compute(original, discount, in.Taxes)

	return Snapshot{
		RoomRate:       in.RoomRate,
		Nights:         in.Nights,
		RoomCount:      in.RoomCount,
		OriginalAmount: original,
		DiscountAmount: discount,
		BaseAmount:     b.BaseAmount,
		Taxes:          b.Lines,
		TotalTaxAmount: b.TotalTaxAmount,
		TotalAmount:    b.TotalAmount,
	}, nil
}

// Delta is the upgrade/downgrade preview: next total minus previous total.
func Delta(previous, next Snapshot) decimal.Decimal {
	return next.TotalAmount.Sub(previous.TotalAmount)
}
