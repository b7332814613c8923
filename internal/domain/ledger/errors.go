package ledger

import "errors"

var (
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrInvalidMethod     = errors.New("invalid payment method")
	ErrMethodNote        = errors.New("method note is required for method other")
	ErrInvalidCategory   = errors.New("invalid transaction category")
	ErrInsufficientFunds = errors.New("insufficient balance")
	ErrSameAccount       = errors.New("cannot transfer to the same account")

	ErrAccountNotFound     = errors.New("account not found")
	ErrPaymentNotFound     = errors.New("payment not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrBookingNotFound     = errors.New("booking not found")

	ErrBookingClosed   = errors.New("booking is cancelled")
	ErrPaymentReversed = errors.New("payment is already reversed")
	ErrAlreadyReversed = errors.New("transaction is already reversed")
	// ErrNotReversible covers payment-linked entries and compensations;
	// payment entries are reversed through the payment itself.
	ErrNotReversible = errors.New("transaction cannot be reversed directly")

	// ErrLedgerIntegrity wraps any failure to write a ledger entry. The
	// surrounding operation is rolled back.
	ErrLedgerIntegrity = errors.New("ledger integrity error")
)
