package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"hotelpms/internal/domain/allocation"
	"hotelpms/internal/domain/catalog"
	"hotelpms/internal/domain/ledger"
	"hotelpms/internal/domain/pricing"
	"hotelpms/internal/domain/promo"
	"hotelpms/internal/pkg/dberr"
	"hotelpms/internal/pkg/refcode"
	"hotelpms/internal/pkg/stay"
	"hotelpms/internal/pkg/validator"
)

// Dependencies are the collaborators the lifecycle manager drives.
type Dependencies struct {
	Quotes   Quoter
	Rooms    RoomAllocator
	Promos   Promos
	Payments PaymentReverser
	Refs     *refcode.Generator
}

type Service struct {
	db       *gorm.DB
	repo     *Repository
	quotes   Quoter
	rooms    RoomAllocator
	promos   Promos
	payments PaymentReverser
	refs     *refcode.Generator
	events   EventPublisher
	loc      *time.Location
	now      func() time.Time
	loggerf  func(format string, args ...interface{})
}

func NewService(db *gorm.DB, repo *Repository, deps Dependencies, loc *time.Location, loggerf func(format string, args ...interface{})) *Service {
	if loc == nil {
		loc = time.UTC
	}
	if loggerf == nil {
		loggerf = func(string, ...interface{}) {}
	}
	return &Service{
		db:       db,
		repo:     repo,
		quotes:   deps.Quotes,
		rooms:    deps.Rooms,
		promos:   deps.Promos,
		payments: deps.Payments,
		refs:     deps.Refs,
		loc:      loc,
		now:      time.Now,
		loggerf:  loggerf,
	}
}

func (s *Service) SetPublisher(p EventPublisher) {
	s.events = p
}

type CreateRequest struct {
	RoomTypeID      uint   `json:"room_type_id" validate:"required"`
	CheckIn         string `json:"check_in" validate:"required"`
	CheckOut        string `json:"check_out" validate:"required"`
	Adults          int    `json:"adults" validate:"gte=1"`
	Children        int    `json:"children" validate:"gte=0"`
	RoomCount       int    `json:"room_count" validate:"gte=1"`
	GuestName       string `json:"guest_name" validate:"notblank,max=255"`
	GuestEmail      string `json:"guest_email" validate:"required,email,max=255"`
	GuestPhone      string `json:"guest_phone" validate:"max=32"`
	SpecialRequests string `json:"special_requests" validate:"max=2000"`
	PromoCode       string `json:"promo_code" validate:"max=64"`
	Status          string `json:"status" validate:"oneof=pending confirmed"`
	IntentKey       string `json:"intent_key" validate:"max=128"`
	Actor           string `json:"-"`
}

type CreateResult struct {
	Booking  *Booking `json:"booking"`
	Replayed bool     `json:"replayed"`
}

type GuestUpdate struct {
	GuestName       *string `json:"guest_name" validate:"omitempty,notblank,max=255"`
	GuestEmail      *string `json:"guest_email" validate:"omitempty,email,max=255"`
	GuestPhone      *string `json:"guest_phone" validate:"omitempty,max=32"`
	SpecialRequests *string `json:"special_requests" validate:"omitempty,max=2000"`
}

// StayChange describes a new stay. Zero values keep the current setting.
type StayChange struct {
	RoomTypeID uint   `json:"room_type_id"`
	CheckIn    string `json:"check_in"`
	CheckOut   string `json:"check_out"`
	RoomCount  int    `json:"room_count" validate:"gte=0"`
	Adults     *int   `json:"adults" validate:"omitempty,gte=1"`
	Children   *int   `json:"children" validate:"omitempty,gte=0"`
}

type StayPreview struct {
	RoomTypeID     uint             `json:"room_type_id"`
	CheckIn        string           `json:"check_in"`
	CheckOut       string           `json:"check_out"`
	RoomCount      int              `json:"room_count"`
	Current        pricing.Snapshot `json:"current"`
	Proposed       pricing.Snapshot `json:"proposed"`
	Delta          decimal.Decimal  `json:"delta"`
	PromoDropped   bool             `json:"promo_dropped"`
	AvailableRooms int              `json:"available_rooms"`
	Available      bool             `json:"available"`
}

type StayChangeResult struct {
	Booking      *Booking         `json:"booking"`
	Previous     pricing.Snapshot `json:"previous"`
	Delta        decimal.Decimal  `json:"delta"`
	PromoDropped bool             `json:"promo_dropped"`
}

type CancelRequest struct {
	Reason string
	Refund bool
	Actor  string
}

type CancelResult struct {
	Booking  *Booking                `json:"booking"`
	Reversal *ledger.ReversalSummary `json:"reversal,omitempty"`
}

type PaymentStatusResult struct {
	Booking  *Booking                `json:"booking"`
	Reversal *ledger.ReversalSummary `json:"reversal,omitempty"`
}

var transitions = map[string][]string{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCheckedIn, StatusCancelled},
	StatusCheckedIn: {StatusCheckedOut, StatusCancelled},
}

func canTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Create prices and books a stay in one transaction. A request carrying an
// intent key that already produced a booking for the same guest email returns
// that booking unchanged.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	req.IntentKey = strings.TrimSpace(req.IntentKey)
	req.PromoCode = strings.TrimSpace(req.PromoCode)
	if req.RoomCount == 0 {
		req.RoomCount = 1
	}
	if req.Status == "" {
		req.Status = StatusConfirmed
	}

	if req.IntentKey != "" {
		existing, err := s.repo.GetByIntentKey(ctx, req.IntentKey)
		if err == nil {
			return replay(existing, req.GuestEmail)
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, classify("lookup intent key", err)
		}
	}

	if fields := validator.Validate(req); fields != nil {
		return nil, &ValidationError{Fields: fields}
	}
	w, err := s.window(req.CheckIn, req.CheckOut, true)
	if err != nil {
		return nil, err
	}

	q, err := s.quotes.Quote(ctx, pricing.QuoteRequest{
		RoomTypeID: req.RoomTypeID,
		Window:     w,
		RoomCount:  req.RoomCount,
		PromoCode:  req.PromoCode,
	})
	if err != nil {
		return nil, err
	}
	if err := checkOccupancy(q.RoomType, req.Adults, req.Children); err != nil {
		return nil, err
	}

	b := &Booking{
		Reference:       s.refs.Next(),
		GuestName:       strings.TrimSpace(req.GuestName),
		GuestEmail:      strings.ToLower(strings.TrimSpace(req.GuestEmail)),
		GuestPhone:      strings.TrimSpace(req.GuestPhone),
		SpecialRequests: req.SpecialRequests,
		CheckIn:         w.CheckIn,
		CheckOut:        w.CheckOut,
		Adults:          req.Adults,
		Children:        req.Children,
		RoomTypeID:      q.RoomType.ID,
		Status:          req.Status,
		AmountPaid:      decimal.Zero,
		CreatedBy:       req.Actor,
	}
	if req.IntentKey != "" {
		key := req.IntentKey
		b.IntentKey = &key
	}
	if err := b.applySnapshot(q.Snapshot); err != nil {
		return nil, fmt.Errorf("encode pricing snapshot: %w", err)
	}
	b.PaymentStatus = ledger.PaymentStatusFor(b.AmountPaid, b.TotalAmount)
	if q.Promo != nil {
		id := q.Promo.ID
		b.PromoCodeID = &id
	}

	unlock := s.rooms.LockRoomTypes(b.RoomTypeID)
	defer unlock()

	var replayed *Booking
	var held []uint
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if b.IntentKey != nil {
			var existing Booking
			if err := tx.Where("intent_key = ?", *b.IntentKey).Limit(1).Find(&existing).Error; err != nil {
				return err
			}
			if existing.ID != 0 {
				replayed = &existing
				return nil
			}
		}

		if err := s.repo.create(tx, b); err != nil {
			return err
		}
		room, err := s.rooms.Reserve(ctx, tx, allocation.ReserveRequest{
			RoomTypeID: b.RoomTypeID,
			Window:     w,
			BookingID:  b.ID,
			RoomCount:  b.RoomCount,
		})
		if err != nil {
			return err
		}
		b.RoomID = room.ID
		fields := map[string]any{"room_id": room.ID}
		if held, err = s.rooms.HeldRooms(ctx, tx, b.ID); err != nil {
			return err
		}

		if b.Status == StatusConfirmed && b.PromoCodeID != nil {
			if err := s.promos.ConsumeTx(ctx, tx, *b.PromoCodeID, b.ID); err != nil {
				return err
			}
			b.PromoConsumed = true
			fields["promo_consumed"] = true
		}
		return s.repo.update(tx, b.ID, fields)
	})
	if err != nil {
		if b.IntentKey != nil && dberr.IsUniqueViolation(err) {
			if existing, lerr := s.repo.GetByIntentKey(ctx, *b.IntentKey); lerr == nil {
				return replay(existing, b.GuestEmail)
			}
		}
		return nil, classify("create booking", err)
	}
	if replayed != nil {
		return replay(replayed, b.GuestEmail)
	}

	s.loggerf("level=info msg=\"booking created\" booking_id=%d reference=%s room_type_id=%d room_id=%d window=%s total=%s status=%s",
		b.ID, b.Reference, b.RoomTypeID, b.RoomID, w, b.TotalAmount, b.Status)
	s.rooms.Announce(ctx, held...)
	s.publish(ctx, "booking.created", eventFor("booking.created", b, req.Actor, s.now()))
	return &CreateResult{Booking: b}, nil
}

// replay returns the booking an intent key already produced, but only to the
// same guest.
func replay(existing *Booking, guestEmail string) (*CreateResult, error) {
	if !strings.EqualFold(existing.GuestEmail, strings.TrimSpace(guestEmail)) {
		return nil, ErrIntentKeyConflict
	}
	return &CreateResult{Booking: existing, Replayed: true}, nil
}

// Pricing returns the booking's stored pricing, logging unreadable tax lines.
func (s *Service) Pricing(b *Booking) pricing.Snapshot {
	snap, err := b.Snapshot()
	if err != nil {
		s.loggerf("level=error msg=\"corrupt pricing snapshot\" booking_id=%d reference=%s err=%v", b.ID, b.Reference, err)
	}
	return snap
}

func (s *Service) Get(ctx context.Context, id uint) (*Booking, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]Booking, int64, error) {
	return s.repo.List(ctx, f)
}

// UpdateGuest edits contact details only.
func (s *Service) UpdateGuest(ctx context.Context, id uint, upd GuestUpdate) (*Booking, error) {
	if fields := validator.Validate(upd); fields != nil {
		return nil, &ValidationError{Fields: fields}
	}
	fields := map[string]any{}
	if upd.GuestName != nil {
		fields["guest_name"] = strings.TrimSpace(*upd.GuestName)
	}
	if upd.GuestEmail != nil {
		fields["guest_email"] = strings.ToLower(strings.TrimSpace(*upd.GuestEmail))
	}
	if upd.GuestPhone != nil {
		fields["guest_phone"] = strings.TrimSpace(*upd.GuestPhone)
	}
	if upd.SpecialRequests != nil {
		fields["special_requests"] = *upd.SpecialRequests
	}
	if len(fields) == 0 {
		return nil, invalid("guest", "no fields to update")
	}

	if err := s.repo.update(s.db.WithContext(ctx), id, fields); err != nil {
		return nil, classify("update guest", err)
	}
	return s.repo.GetByID(ctx, id)
}

type stayPlan struct {
	roomTypeID   uint
	window       stay.Window
	roomCount    int
	adults       int
	children     int
	quote        *pricing.Quote
	promoDropped bool
}

// PreviewStayChange prices the new stay against the stored snapshot. Nothing
// is written.
func (s *Service) PreviewStayChange(ctx context.Context, id uint, change StayChange) (*StayPreview, error) {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	plan, err := s.plan(ctx, b, change)
	if err != nil {
		return nil, err
	}
	free, err := s.rooms.AvailableRooms(ctx, plan.roomTypeID, plan.window, b.ID)
	if err != nil {
		return nil, classify("count available rooms", err)
	}

	current := s.Pricing(b)
	return &StayPreview{
		RoomTypeID:     plan.roomTypeID,
		CheckIn:        plan.window.FirstKey(),
		CheckOut:       plan.window.EndKey(),
		RoomCount:      plan.roomCount,
		Current:        current,
		Proposed:       plan.quote.Snapshot,
		Delta:          pricing.Delta(current, plan.quote.Snapshot),
		PromoDropped:   plan.promoDropped,
		AvailableRooms: len(free),
		Available:      len(free) >= plan.roomCount,
	}, nil
}

// ChangeStay moves the booking to a new room type, dates or room count and
// reprices it in one transaction.
func (s *Service) ChangeStay(ctx context.Context, id uint, change StayChange, actor string) (*StayChangeResult, error) {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	plan, err := s.plan(ctx, b, change)
	if err != nil {
		return nil, err
	}

	unlock := s.rooms.LockRoomTypes(b.RoomTypeID, plan.roomTypeID)
	defer unlock()

	previous := s.Pricing(b)
	var updated *Booking
	var touched []uint
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cur, err := s.repo.lock(tx, id)
		if err != nil {
			return err
		}
		if !cur.UpdatedAt.Equal(b.UpdatedAt) {
			return ErrConcurrentChange
		}
		if !cur.Live() {
			return ErrBookingClosed
		}

		before, err := s.rooms.HeldRooms(ctx, tx, cur.ID)
		if err != nil {
			return err
		}
		room, err := s.rooms.Reassign(ctx, tx, allocation.ReassignRequest{
			BookingID:     cur.ID,
			CurrentRoomID: cur.RoomID,
			RoomTypeID:    plan.roomTypeID,
			Window:        plan.window,
			RoomCount:     plan.roomCount,
		})
		if err != nil {
			return err
		}
		after, err := s.rooms.HeldRooms(ctx, tx, cur.ID)
		if err != nil {
			return err
		}
		touched = append(before, after...)

		if err := cur.applySnapshot(plan.quote.Snapshot); err != nil {
			return fmt.Errorf("encode pricing snapshot: %w", err)
		}
		cur.RoomTypeID = plan.roomTypeID
		cur.RoomID = room.ID
		cur.CheckIn = plan.window.CheckIn
		cur.CheckOut = plan.window.CheckOut
		cur.Adults = plan.adults
		cur.Children = plan.children
		if plan.promoDropped {
			cur.PromoCodeID = nil
			cur.PromoCode = ""
		}

		paid, err := ledger.PaidAmount(tx, cur.ID)
		if err != nil {
			return err
		}
		cur.AmountPaid = paid
		cur.PaymentStatus = ledger.PaymentStatusFor(paid, cur.TotalAmount)
		if err := tx.Save(cur).Error; err != nil {
			return err
		}
		updated = cur
		return nil
	})
	if err != nil {
		return nil, classify("change stay", err)
	}

	delta := pricing.Delta(previous, s.Pricing(updated))
	s.loggerf("level=info msg=\"booking stay changed\" booking_id=%d room_type_id=%d room_id=%d window=%s delta=%s actor=%s",
		updated.ID, updated.RoomTypeID, updated.RoomID, plan.window, delta, actor)
	s.rooms.Announce(ctx, touched...)
	s.publish(ctx, "booking.stay_changed", eventFor("booking.stay_changed", updated, actor, s.now()))
	return &StayChangeResult{Booking: updated, Previous: previous, Delta: delta, PromoDropped: plan.promoDropped}, nil
}

func (s *Service) plan(ctx context.Context, b *Booking, change StayChange) (*stayPlan, error) {
	if !b.Live() {
		return nil, ErrBookingClosed
	}
	if fields := validator.Validate(change); fields != nil {
		return nil, &ValidationError{Fields: fields}
	}

	current := b.Window()
	p := &stayPlan{roomTypeID: b.RoomTypeID, window: current, roomCount: b.RoomCount, adults: b.Adults, children: b.Children}
	if change.RoomTypeID != 0 {
		p.roomTypeID = change.RoomTypeID
	}
	if change.RoomCount != 0 {
		p.roomCount = change.RoomCount
	}
	if change.Adults != nil {
		p.adults = *change.Adults
	}
	if change.Children != nil {
		p.children = *change.Children
	}

	in, out := current.FirstKey(), current.EndKey()
	if change.CheckIn != "" {
		in = change.CheckIn
	}
	if change.CheckOut != "" {
		out = change.CheckOut
	}
	movedIn := in != current.FirstKey()
	if movedIn && b.Status == StatusCheckedIn {
		return nil, invalid("check_in", "cannot change after the guest has checked in")
	}
	w, err := s.window(in, out, movedIn)
	if err != nil {
		return nil, err
	}
	p.window = w

	var held *promo.PromoCode
	if b.PromoCodeID != nil {
		held, err = s.promos.Get(ctx, *b.PromoCodeID)
		if errors.Is(err, promo.ErrNotFound) {
			held, err = nil, nil
			p.promoDropped = true
		}
		if err != nil {
			return nil, err
		}
	}

	q, err := s.quotes.Requote(ctx, pricing.RequoteRequest{
		RoomTypeID: p.roomTypeID,
		Window:     w,
		RoomCount:  p.roomCount,
		Held:       held,
	})
	if err != nil {
		return nil, err
	}
	if err := checkOccupancy(q.RoomType, p.adults, p.children); err != nil {
		return nil, err
	}
	p.quote = q
	p.promoDropped = p.promoDropped || q.PromoDropped
	return p, nil
}

// TransitionStatus moves the booking along pending -> confirmed ->
// checked_in -> checked_out. Cancelling goes through Cancel.
func (s *Service) TransitionStatus(ctx context.Context, id uint, to, actor string) (*Booking, error) {
	if to == StatusCancelled {
		res, err := s.Cancel(ctx, id, CancelRequest{Reason: "status changed to cancelled", Actor: actor})
		if err != nil {
			return nil, err
		}
		return res.Booking, nil
	}

	var (
		from     string
		released []uint
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cur, err := s.repo.lock(tx, id)
		if err != nil {
			return err
		}
		from = cur.Status
		if !canTransition(cur.Status, to) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, cur.Status, to)
		}

		fields := map[string]any{"status": to}
		switch to {
		case StatusConfirmed:
			if cur.PromoCodeID != nil && !cur.PromoConsumed {
				if err := s.promos.ConsumeTx(ctx, tx, *cur.PromoCodeID, cur.ID); err != nil {
					return err
				}
				fields["promo_consumed"] = true
			}
		case StatusCheckedOut:
			if released, err = s.rooms.Release(ctx, tx, cur.ID); err != nil {
				return err
			}
		}
		return s.repo.update(tx, cur.ID, fields)
	})
	if err != nil {
		return nil, classify("transition status", err)
	}

	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.loggerf("level=info msg=\"booking status changed\" booking_id=%d from=%s to=%s actor=%s", id, from, to, actor)
	s.rooms.Announce(ctx, released...)
	s.publish(ctx, "booking."+to, eventFor("booking."+to, b, actor, s.now()))
	return b, nil
}

// UpdatePaymentStatus sets pending or refunded by hand. Live payments are
// reversed in the ledger first, in the same transaction.
func (s *Service) UpdatePaymentStatus(ctx context.Context, id uint, to, actor string) (*PaymentStatusResult, error) {
	if to != ledger.PaymentStatusPending && to != ledger.PaymentStatusRefunded {
		return nil, ErrInvalidPaymentStatus
	}

	unlock, err := s.payments.LockBookingAccounts(ctx, id)
	if err != nil {
		return nil, classify("lock booking accounts", err)
	}
	defer unlock()

	var summary *ledger.ReversalSummary
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cur, err := s.repo.lock(tx, id)
		if err != nil {
			return err
		}
		if cur.Status == StatusCancelled && to != ledger.PaymentStatusRefunded {
			return fmt.Errorf("%w: cancelled bookings can only be refunded", ErrInvalidPaymentStatus)
		}

		summary, err = s.payments.ReverseBookingPaymentsTx(ctx, tx, cur.ID, "payment status set to "+to, actor)
		if err != nil {
			return err
		}
		return s.repo.update(tx, cur.ID, map[string]any{"payment_status": to, "amount_paid": decimal.Zero})
	})
	if err != nil {
		return nil, classify("update payment status", err)
	}

	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.loggerf("level=info msg=\"booking payment status set\" booking_id=%d status=%s reversed=%d actor=%s", id, to, len(summary.Payments), actor)
	s.publish(ctx, "booking.payment_status", eventFor("booking.payment_status", b, actor, s.now()))
	return &PaymentStatusResult{Booking: b, Reversal: summary}, nil
}

// Cancel releases the room and keeps the booking. With Refund set, live
// payments are reversed and the payment status becomes refunded.
func (s *Service) Cancel(ctx context.Context, id uint, req CancelRequest) (*CancelResult, error) {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !b.Live() {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, b.Status, StatusCancelled)
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = "no reason given"
	}

	unlockRooms := s.rooms.LockRoomTypes(b.RoomTypeID)
	defer unlockRooms()
	unlockAccounts := func() {}
	if req.Refund {
		if unlockAccounts, err = s.payments.LockBookingAccounts(ctx, id); err != nil {
			return nil, classify("lock booking accounts", err)
		}
	}
	defer unlockAccounts()

	var (
		summary  *ledger.ReversalSummary
		released []uint
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cur, err := s.repo.lock(tx, id)
		if err != nil {
			return err
		}
		if !cur.Live() {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, cur.Status, StatusCancelled)
		}

		if released, err = s.rooms.Release(ctx, tx, cur.ID); err != nil {
			return err
		}

		fields := map[string]any{
			"status":              StatusCancelled,
			"cancellation_reason": reason,
			"cancelled_at":        s.now().UTC(),
		}
		if req.Refund {
			if summary, err = s.payments.ReverseBookingPaymentsTx(ctx, tx, cur.ID, "booking cancelled: "+reason, req.Actor); err != nil {
				return err
			}
		}
		switch {
		case summary != nil && len(summary.Payments) > 0:
			fields["payment_status"] = ledger.PaymentStatusRefunded
			fields["amount_paid"] = decimal.Zero
		case !cur.AmountPaid.IsPositive():
			fields["payment_status"] = ledger.PaymentStatusCancelled
		}
		return s.repo.update(tx, cur.ID, fields)
	})
	if err != nil {
		return nil, classify("cancel booking", err)
	}

	b, err = s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.loggerf("level=info msg=\"booking cancelled\" booking_id=%d reference=%s refund=%t payment_status=%s actor=%s", b.ID, b.Reference, req.Refund, b.PaymentStatus, req.Actor)
	s.rooms.Announce(ctx, released...)
	s.publish(ctx, "booking.cancelled", eventFor("booking.cancelled", b, req.Actor, s.now()))
	return &CancelResult{Booking: b, Reversal: summary}, nil
}

// window parses a stay. With future set, check-in may not be before today in
// the hotel's time zone.
func (s *Service) window(checkIn, checkOut string, future bool) (stay.Window, error) {
	w, err := stay.Parse(checkIn, checkOut)
	if err != nil {
		field := "check_out"
		if errors.Is(err, stay.ErrInvalidDate) {
			field = "dates"
		}
		return stay.Window{}, invalid(field, err.Error())
	}
	if future && w.CheckIn.Before(stay.Date(s.now(), s.loc)) {
		return stay.Window{}, invalid("check_in", "must not be in the past")
	}
	return w, nil
}

func checkOccupancy(rt *catalog.RoomType, adults, children int) error {
	fields := map[string]string{}
	if adults < 1 {
		fields["adults"] = "must be at least 1"
	}
	if children < 0 {
		fields["children"] = "must be >= 0"
	}
	if rt.MaxGuests > 0 && adults+children > rt.MaxGuests {
		fields["guests"] = fmt.Sprintf("room type %s allows at most %d guests", rt.Name, rt.MaxGuests)
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func (s *Service) publish(ctx context.Context, key string, payload any) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, key, payload); err != nil {
		s.loggerf("level=warn msg=\"booking event publish failed\" key=%s err=%v", key, err)
	}
}

// classify marks retryable storage failures with ErrTemporary.
func classify(op string, err error) error {
	if dberr.IsTransient(err) {
		return fmt.Errorf("%s: %w: %w", op, ErrTemporary, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
