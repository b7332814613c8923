package pricing

import (
	"context"
	"fmt"

	"hotelpms/internal/domain/catalog"
	"hotelpms/internal/domain/promo"
	"hotelpms/internal/domain/tax"
	"hotelpms/internal/pkg/stay"
)

type RoomTypeReader interface {
	GetRoomType(ctx context.Context, id uint) (*catalog.RoomType, error)
}

type PromoValidator interface {
	Validate(ctx context.Context, req promo.Request) (*promo.Result, error)
}

type TaxRules interface {
	Rules(ctx context.Context) ([]tax.Rule, string)
}

type QuoteRequest struct {
	RoomTypeID uint
	Window     stay.Window
	RoomCount  int
	PromoCode  string
}

type Quote struct {
	Snapshot     Snapshot          `json:"pricing"`
	RoomType     *catalog.RoomType `json:"room_type"`
	Promo        *promo.PromoCode  `json:"-"`
	PromoDropped bool              `json:"promo_dropped,omitempty"`
}

// RequoteRequest prices an existing booking's new stay. Held is the promo the
// booking already consumed; it is not re-validated against dates or usage.
type RequoteRequest struct {
	RoomTypeID uint
	Window     stay.Window
	RoomCount  int
	Held       *promo.PromoCode
}

// Assembler reads the current rate, promo and tax rules on every call.
type Assembler struct {
	roomTypes RoomTypeReader
	promos    PromoValidator
	taxes     TaxRules
}

func NewAssembler(roomTypes RoomTypeReader, promos PromoValidator, taxes TaxRules) *Assembler {
	return &Assembler{roomTypes: roomTypes, promos: promos, taxes: taxes}
}

func (a *Assembler) Quote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	rt, in, undiscounted, err := a.base(ctx, req.RoomTypeID, req.Window, req.RoomCount)
	if err != nil {
		return nil, err
	}

	q := &Quote{RoomType: rt}
	if req.PromoCode != "" {
		res, err := a.promos.Validate(ctx, promo.Request{
			Code:       req.PromoCode,
			RoomTypeID: rt.ID,
			Amount:     undiscounted.OriginalAmount,
			Window:     req.Window,
		})
		if err != nil {
			return nil, err
		}
		in.Discount = res.DiscountAmount
		q.Promo = res.PromoCode
	}

	return a.finish(ctx, in, q)
}

// Requote is Quote for a booking being changed. The held promo still applies
// when it covers the new room type and the new amount meets its minimum;
// otherwise it is dropped and PromoDropped is set.
func (a *Assembler) Requote(ctx context.Context, req RequoteRequest) (*Quote, error) {
	rt, in, undiscounted, err := a.base(ctx, req.RoomTypeID, req.Window, req.RoomCount)
	if err != nil {
		return nil, err
	}

	q := &Quote{RoomType: rt}
	if p := req.Held; p != nil {
		if p.AppliesTo(rt.ID) && !undiscounted.OriginalAmount.LessThan(p.MinAmount) {
			in.Discount = promo.Discount(p, undiscounted.OriginalAmount)
			q.Promo = p
		} else {
			q.PromoDropped = true
		}
	}

	return a.finish(ctx, in, q)
}

// base loads the room type fresh and prices the stay before discount and tax.
func (a *Assembler) base(ctx context.Context, roomTypeID uint, w stay.Window, roomCount int) (*catalog.RoomType, Input, Snapshot, error) {
	rt, err := a.roomTypes.GetRoomType(ctx, roomTypeID)
	if err != nil {
		return nil, Input{}, Snapshot{}, err
	}
	if !rt.Active {
		return nil, Input{}, Snapshot{}, catalog.ErrRoomTypeNotFound
	}
	in := Input{
		RoomRate:  rt.BasePrice,
		Nights:    w.Nights(),
		RoomCount: roomCount,
	}
	undiscounted, err := Compute(in)
	if err != nil {
		return nil, Input{}, Snapshot{}, err
	}
	return rt, in, undiscounted, nil
}

func (a *Assembler) finish(ctx context.Context, in Input, q *Quote) (*Quote, error) {
	rules, fallbackReason := a.taxes.Rules(ctx)
	in.Taxes = rules
	snap, err := Compute(in)
	if err != nil {
		return nil, fmt.Errorf("compute pricing: %w", err)
	}
	if q.Promo != nil {
		snap.PromoCode = q.Promo.Code
	}
	if fallbackReason != "" {
		snap.TaxFallback = true
		snap.TaxFallbackReason = fallbackReason
	}
	q.Snapshot = snap
	return q, nil
}
