package tax

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	FallbackSourceUnavailable = "source_unavailable"
	FallbackNoRules           = "no_rules_configured"
)

// Rule is one configured tax, applied in Position order.
type Rule struct {
	ID         uint            `json:"id" gorm:"primaryKey"`
	Name       string          `json:"name" gorm:"size:64;not null"`
	Percentage decimal.Decimal `json:"percentage" gorm:"type:decimal(6,3);not null"`
	Position   int             `json:"position" gorm:"not null;default:0;index"`
	Active     bool            `json:"active" gorm:"not null;index"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

func (Rule) TableName() string {
	return "tax_rules"
}

type Line struct {
	Name       string          `json:"name"`
	Percentage decimal.Decimal `json:"percentage"`
	Amount     decimal.Decimal `json:"amount"`
}

// Breakdown is the itemized tax result for one net base.
type Breakdown struct {
	BaseAmount     decimal.Decimal `json:"base_amount"`
	Lines          []Line          `json:"taxes"`
	TotalTaxAmount decimal.Decimal `json:"total_tax_amount"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	Fallback       bool            `json:"fallback"`
	FallbackReason string          `json:"fallback_reason,omitempty"`
}
