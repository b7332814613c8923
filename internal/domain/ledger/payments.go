package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"hotelpms/internal/pkg/money"
)

const reasonModified = "modified"

type PaymentRequest struct {
	BookingID  uint
	AccountID  uuid.UUID // zero means the main account
	Amount     decimal.Decimal
	Method     string
	MethodNote string
	ReceivedAt time.Time
	Notes      string
	Actor      string
}

type EditRequest struct {
	Amount     decimal.Decimal
	Method     string // empty keeps the current method
	MethodNote string
	Notes      string
	Actor      string
}

// PaymentResult is the payment surface response: the payment, the booking's
// new payment state and the ledger effect.
type PaymentResult struct {
	Payment        *Payment        `json:"payment,omitempty"`
	Reversed       []Payment       `json:"reversed,omitempty"`
	BookingID      uint            `json:"booking_id"`
	AmountPaid     decimal.Decimal `json:"amount_paid"`
	PaymentStatus  string          `json:"payment_status"`
	Transactions   []Transaction   `json:"transactions"`
	BalanceDelta   decimal.Decimal `json:"balance_delta"`
	AccountBalance decimal.Decimal `json:"account_balance"`
}

// ReversalSummary is returned by ReverseBookingPaymentsTx.
type ReversalSummary struct {
	Payments     []Payment       `json:"payments"`
	Transactions []Transaction   `json:"transactions"`
	Total        decimal.Decimal `json:"total"`
}

func (s *Service) RecordPayment(ctx context.Context, req PaymentRequest) (*PaymentResult, error) {
	amount := money.Round(req.Amount)
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if err := validateMethod(req.Method, req.MethodNote); err != nil {
		return nil, err
	}

	accountID := req.AccountID
	if accountID == uuid.Nil {
		main, err := s.GetOrCreateMainAccount(ctx)
		if err != nil {
			return nil, err
		}
		accountID = main.ID
	}
	receivedAt := req.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = s.now()
	}

	unlock := s.lockAccounts(accountID)
	defer unlock()

	var res PaymentResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		booking, err := s.bookings.LockBooking(ctx, tx, req.BookingID)
		if err != nil {
			return err
		}
		if booking.Cancelled {
			return ErrBookingClosed
		}
		acct, err := lockAccount(tx, accountID)
		if err != nil {
			return err
		}

		p := Payment{
			BookingID:  req.BookingID,
			AccountID:  acct.ID,
			Amount:     amount,
			Method:     req.Method,
			MethodNote: strings.TrimSpace(req.MethodNote),
			ReceivedBy: req.Actor,
			ReceivedAt: receivedAt.UTC(),
			Notes:      req.Notes,
		}
		if err := tx.Create(&p).Error; err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}
		entry, err := appendEntry(tx, acct, paymentCredit(p, req.Actor))
		if err != nil {
			return err
		}

		res = PaymentResult{Payment: &p, BookingID: req.BookingID, Transactions: []Transaction{*entry}}
		return s.settle(ctx, tx, booking, acct, &res)
	})
	if err != nil {
		return nil, err
	}

	s.loggerf("level=info msg=\"payment recorded\" booking_id=%d payment_id=%s amount=%s method=%s payment_status=%s", req.BookingID, res.Payment.ID, amount, req.Method, res.PaymentStatus)
	s.publish(ctx, "payment.recorded", res)
	return &res, nil
}

// EditPayment never overwrites a payment: the old one is reversed and a
// superseding payment is appended, compensating entry first.
func (s *Service) EditPayment(ctx context.Context, paymentID uuid.UUID, req EditRequest) (*PaymentResult, error) {
	amount := money.Round(req.Amount)
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	old, err := s.getPayment(ctx, s.db, paymentID)
	if err != nil {
		return nil, err
	}
	method, note := req.Method, req.MethodNote
	if method == "" {
		method, note = old.Method, old.MethodNote
	}
	if err := validateMethod(method, note); err != nil {
		return nil, err
	}

	unlock := s.lockAccounts(old.AccountID)
	defer unlock()

	var res PaymentResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		booking, err := s.bookings.LockBooking(ctx, tx, old.BookingID)
		if err != nil {
			return err
		}
		if booking.Cancelled {
			return ErrBookingClosed
		}
		acct, err := lockAccount(tx, old.AccountID)
		if err != nil {
			return err
		}

		prev, comp, err := s.reversePayment(tx, acct, paymentID, reasonModified, req.Actor)
		if err != nil {
			return err
		}

		notes := req.Notes
		if notes == "" {
			notes = prev.Notes
		}
		supersedes := prev.ID
		next := Payment{
			BookingID:      prev.BookingID,
			AccountID:      acct.ID,
			Amount:         amount,
			Method:         method,
			MethodNote:     strings.TrimSpace(note),
			ReceivedBy:     req.Actor,
			ReceivedAt:     prev.ReceivedAt,
			Notes:          notes,
			IsModification: true,
			OriginalAmount: decimal.NewNullDecimal(prev.Amount),
			SupersedesID:   &supersedes,
		}
		if err := tx.Create(&next).Error; err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}
		credit, err := appendEntry(tx, acct, paymentCredit(next, req.Actor))
		if err != nil {
			return err
		}

		res = PaymentResult{
			Payment:      &next,
			Reversed:     []Payment{*prev},
			BookingID:    prev.BookingID,
			Transactions: []Transaction{*comp, *credit},
		}
		return s.settle(ctx, tx, booking, acct, &res)
	})
	if err != nil {
		return nil, err
	}

	s.loggerf("level=info msg=\"payment edited\" booking_id=%d old_payment_id=%s new_payment_id=%s delta=%s payment_status=%s", res.BookingID, paymentID, res.Payment.ID, res.BalanceDelta, res.PaymentStatus)
	s.publish(ctx, "payment.edited", res)
	return &res, nil
}

// DeletePayment reverses a payment with one compensating debit. The row stays.
func (s *Service) DeletePayment(ctx context.Context, paymentID uuid.UUID, reason, actor string) (*PaymentResult, error) {
	old, err := s.getPayment(ctx, s.db, paymentID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(reason) == "" {
		reason = "deleted"
	}

	unlock := s.lockAccounts(old.AccountID)
	defer unlock()

	var res PaymentResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		booking, err := s.bookings.LockBooking(ctx, tx, old.BookingID)
		if err != nil {
			return err
		}
		acct, err := lockAccount(tx, old.AccountID)
		if err != nil {
			return err
		}
		prev, comp, err := s.reversePayment(tx, acct, paymentID, reason, actor)
		if err != nil {
			return err
		}
		res = PaymentResult{Reversed: []Payment{*prev}, BookingID: prev.BookingID, Transactions: []Transaction{*comp}}
		return s.settle(ctx, tx, booking, acct, &res)
	})
	if err != nil {
		return nil, err
	}

	s.loggerf("level=info msg=\"payment deleted\" booking_id=%d payment_id=%s delta=%s payment_status=%s", res.BookingID, paymentID, res.BalanceDelta, res.PaymentStatus)
	s.publish(ctx, "payment.deleted", res)
	return &res, nil
}

// ReverseBookingPaymentsTx reverses every live payment of a booking on the
// caller's transaction. The caller owns the booking row lock and decides the
// resulting payment status.
func (s *Service) ReverseBookingPaymentsTx(ctx context.Context, tx *gorm.DB, bookingID uint, reason, actor string) (*ReversalSummary, error) {
	tx = tx.WithContext(ctx)

	var live []Payment
	if err := tx.Where("booking_id = ? AND reversed = ?", bookingID, false).Order("created_at").Find(&live).Error; err != nil {
		return nil, err
	}
	summary := &ReversalSummary{Total: decimal.Zero}
	if len(live) == 0 {
		return summary, nil
	}

	ids := make([]uuid.UUID, 0, len(live))
	for _, p := range live {
		ids = append(ids, p.AccountID)
	}
	accounts, err := lockAccountsOrdered(tx, ids...)
	if err != nil {
		return nil, err
	}

	for _, p := range live {
		prev, comp, err := s.reversePayment(tx, accounts[p.AccountID], p.ID, reason, actor)
		if err != nil {
			return nil, err
		}
		summary.Payments = append(summary.Payments, *prev)
		summary.Transactions = append(summary.Transactions, *comp)
		summary.Total = summary.Total.Add(prev.Amount)
	}
	s.loggerf("level=info msg=\"booking payments reversed\" booking_id=%d count=%d total=%s reason=%q", bookingID, len(summary.Payments), summary.Total, reason)
	return summary, nil
}

// LockBookingAccounts takes the in-process locks for every account holding
// live payments of the booking. Call before opening the transaction that
// runs ReverseBookingPaymentsTx.
func (s *Service) LockBookingAccounts(ctx context.Context, bookingID uint) (func(), error) {
	var ids []uuid.UUID
	err := s.db.WithContext(ctx).Model(&Payment{}).
		Where("booking_id = ? AND reversed = ?", bookingID, false).
		Distinct().Pluck("account_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return s.lockAccounts(ids...), nil
}

func (s *Service) ListBookingPayments(ctx context.Context, bookingID uint, includeReversed bool) ([]Payment, error) {
	q := s.db.WithContext(ctx).Where("booking_id = ?", bookingID)
	if !includeReversed {
		q = q.Where("reversed = ?", false)
	}
	var payments []Payment
	if err := q.Order("created_at").Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

func (s *Service) GetPayment(ctx context.Context, id uuid.UUID) (*Payment, error) {
	return s.getPayment(ctx, s.db, id)
}

// PaidAmount sums the live payments of a booking.
func PaidAmount(tx *gorm.DB, bookingID uint) (decimal.Decimal, error) {
	var amounts []decimal.Decimal
	err := tx.Model(&Payment{}).Where("booking_id = ? AND reversed = ?", bookingID, false).Pluck("amount", &amounts).Error
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total, nil
}

func (s *Service) getPayment(ctx context.Context, db *gorm.DB, id uuid.UUID) (*Payment, error) {
	var p Payment
	if err := db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return &p, nil
}

// reversePayment marks the payment reversed and appends the debit that
// compensates its credit entry.
func (s *Service) reversePayment(tx *gorm.DB, acct *Account, paymentID uuid.UUID, reason, actor string) (*Payment, *Transaction, error) {
	var p Payment
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&p, "id = ?", paymentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrPaymentNotFound
		}
		return nil, nil, err
	}
	if p.Reversed {
		return nil, nil, ErrPaymentReversed
	}

	var credit Transaction
	err := tx.Where("payment_id = ? AND type = ? AND reversal_of IS NULL", p.ID, TypeCredit).First(&credit).Error
	if err != nil {
		return nil, nil, fmt.Errorf("%w: credit entry for payment %s: %w", ErrLedgerIntegrity, p.ID, err)
	}

	comp, err := appendEntry(tx, acct, compensationFor(credit, reason, actor))
	if err != nil {
		return nil, nil, err
	}

	now := s.now().UTC()
	res := tx.Model(&Payment{}).Where("id = ? AND reversed = ?", p.ID, false).
		Updates(map[string]any{"reversed": true, "reversed_at": now, "reversal_reason": reason})
	if res.Error != nil {
		return nil, nil, res.Error
	}
	if res.RowsAffected != 1 {
		return nil, nil, ErrPaymentReversed
	}
	p.Reversed = true
	p.ReversedAt = &now
	p.ReversalReason = reason
	return &p, comp, nil
}

// settle recomputes what the booking has paid and fills the result.
func (s *Service) settle(ctx context.Context, tx *gorm.DB, booking *BookingState, acct *Account, res *PaymentResult) error {
	paid, err := PaidAmount(tx, booking.ID)
	if err != nil {
		return err
	}
	status := PaymentStatusFor(paid, booking.TotalAmount)
	if booking.Cancelled {
		status = booking.PaymentStatus
		if !paid.IsPositive() {
			status = PaymentStatusRefunded
		}
	}
	if err := s.bookings.SetPaymentState(ctx, tx, booking.ID, paid, status); err != nil {
		return fmt.Errorf("update booking payment state: %w", err)
	}

	delta := decimal.Zero
	for _, t := range res.Transactions {
		delta = delta.Add(t.Signed())
	}
	res.AmountPaid = paid
	res.PaymentStatus = status
	res.BalanceDelta = delta
	res.AccountBalance = acct.Balance
	return nil
}

func paymentCredit(p Payment, actor string) Transaction {
	id := p.ID
	return Transaction{
		Type:          TypeCredit,
		Amount:        p.Amount,
		Category:      CategoryRoomPayment,
		ReferenceType: ReferencePayment,
		ReferenceID:   fmt.Sprintf("booking:%d", p.BookingID),
		PaymentID:     &id,
		CreatedBy:     actor,
	}
}

func validateMethod(method, note string) error {
	if !ValidMethod(method) {
		return ErrInvalidMethod
	}
	if method == MethodOther && strings.TrimSpace(note) == "" {
		return ErrMethodNote
	}
	return nil
}
