package booking

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrNotFound                = errors.New("booking not found")
	ErrValidation              = errors.New("validation error")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrInvalidPaymentStatus    = errors.New("payment status can only be set to pending or refunded")
	ErrBookingClosed           = errors.New("booking is cancelled or checked out")
	// ErrConcurrentChange: the booking changed between quote and commit.
	ErrConcurrentChange = errors.New("booking was changed by another request")
	// ErrTemporary wraps storage failures that are safe to retry with the
	// same idempotency key.
	ErrTemporary = errors.New("temporary failure, retry")
	// ErrIntentKeyConflict: the intent key belongs to another guest's booking.
	ErrIntentKeyConflict = errors.New("idempotency key was used for a different booking")
)

// ValidationError carries per-field messages keyed by json name.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+" "+e.Fields[k])
	}
	return "validation error: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, msg string) error {
	return &ValidationError{Fields: map[string]string{field: msg}}
}
