package promo

import (
	"errors"
	"fmt"
)

const (
	ReasonNotFound      = "not_found"
	ReasonInactive      = "inactive"
	ReasonExpired       = "expired"
	ReasonNotYetValid   = "not_yet_valid"
	ReasonUsageLimit    = "usage_limit_reached"
	ReasonNotApplicable = "not_applicable"
	ReasonMinAmount     = "min_amount_not_met"
	ReasonInvalidAmount = "invalid_amount"
)

var (
	// ErrUsageExhausted means the cap was reached between validation and confirmation.
	ErrUsageExhausted = errors.New("promo code usage limit was reached by another booking")
	ErrNotFound       = errors.New("promo code not found")
	ErrDuplicateCode  = errors.New("promo code already exists")
	ErrInvalidInput   = errors.New("invalid promo code")
)

// RejectionError explains why a code cannot be applied.
type RejectionError struct {
	Code   string
	Reason string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("promo code %q rejected: %s", e.Code, e.Reason)
}

func reject(code, reason string) error {
	return &RejectionError{Code: code, Reason: reason}
}

// IsRejection reports whether err is a validation rejection and returns it.
func IsRejection(err error) (*RejectionError, bool) {
	var rej *RejectionError
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}
