package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"

	"hotelpms/internal/pkg/stay"
	"hotelpms/internal/pkg/validator"
)

// ValidationError carries per-field messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %v", e.Fields)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

type Service struct {
	repo         *Repository
	availability AvailabilityCounter
	loc          *time.Location
	now          func() time.Time
}

func NewService(repo *Repository, availability AvailabilityCounter, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{repo: repo, availability: availability, loc: loc, now: time.Now}
}

// Tonight is the window used when callers do not pass dates.
func (s *Service) Tonight() stay.Window {
	return stay.Tonight(s.now(), s.loc)
}

func (s *Service) ListRoomTypes(ctx context.Context, w stay.Window, activeOnly bool) ([]RoomTypeSummary, error) {
	types, err := s.repo.ListRoomTypes(ctx, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list room types: %w", err)
	}
	totals, err := s.repo.CountRoomsByType(ctx)
	if err != nil {
		return nil, fmt.Errorf("count rooms: %w", err)
	}

	out := make([]RoomTypeSummary, 0, len(types))
	for _, rt := range types {
		summary, err := s.summarize(ctx, rt, totals[rt.ID], w)
		if err != nil {
			return nil, err
		}
		out = append(out, summary)
	}
	return out, nil
}

func (s *Service) GetRoomType(ctx context.Context, id uint, w stay.Window) (*RoomTypeSummary, error) {
	rt, err := s.repo.GetRoomType(ctx, id)
	if err != nil {
		return nil, err
	}
	totals, err := s.repo.CountRoomsByType(ctx)
	if err != nil {
		return nil, fmt.Errorf("count rooms: %w", err)
	}
	summary, err := s.summarize(ctx, *rt, totals[rt.ID], w)
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

func (s *Service) summarize(ctx context.Context, rt RoomType, total int, w stay.Window) (RoomTypeSummary, error) {
	summary := RoomTypeSummary{RoomType: rt, TotalRooms: total}
	if s.availability == nil {
		return summary, nil
	}
	free, err := s.availability.CountAvailable(ctx, rt.ID, w)
	if err != nil {
		return RoomTypeSummary{}, fmt.Errorf("count available rooms for type %d: %w", rt.ID, err)
	}
	summary.AvailableRoomCount = free
	return summary, nil
}

func (s *Service) CreateRoomType(ctx context.Context, in RoomTypeInput) (*RoomType, error) {
	if err := validateRoomType(in); err != nil {
		return nil, err
	}
	rt := &RoomType{Active: true}
	applyRoomType(rt, in)
	if err := s.repo.CreateRoomType(ctx, rt); err != nil {
		return nil, err
	}
	return rt, nil
}

func (s *Service) UpdateRoomType(ctx context.Context, id uint, in RoomTypeInput) (*RoomType, error) {
	if err := validateRoomType(in); err != nil {
		return nil, err
	}
	rt, err := s.repo.GetRoomType(ctx, id)
	if err != nil {
		return nil, err
	}
	applyRoomType(rt, in)
	if err := s.repo.UpdateRoomType(ctx, rt); err != nil {
		return nil, err
	}
	return rt, nil
}

func (s *Service) ListRooms(ctx context.Context, f RoomFilter) ([]Room, error) {
	if f.Status != "" && !ValidRoomStatus(f.Status) {
		return nil, &ValidationError{Fields: map[string]string{"status": "unknown room status"}}
	}
	return s.repo.ListRooms(ctx, f)
}

func (s *Service) CreateRoom(ctx context.Context, in RoomInput) (*Room, error) {
	if fields := validator.Validate(in); fields != nil {
		return nil, &ValidationError{Fields: fields}
	}
	if _, err := s.repo.GetRoomType(ctx, in.RoomTypeID); err != nil {
		return nil, err
	}
	room := &Room{
		Number:     strings.TrimSpace(in.Number),
		Floor:      in.Floor,
		RoomTypeID: in.RoomTypeID,
		Status:     RoomStatusAvailable,
	}
	if err := s.repo.CreateRoom(ctx, room); err != nil {
		return nil, err
	}
	return room, nil
}

func validateRoomType(in RoomTypeInput) error {
	fields := validator.Validate(in)
	if fields == nil {
		fields = map[string]string{}
	}
	if !in.BasePrice.IsPositive() {
		fields["base_price"] = "must be > 0"
	}
	if in.DiscountPercent.IsNegative() || in.DiscountPercent.GreaterThan(decimal.NewFromInt(100)) {
		fields["discount_percent"] = "must be between 0 and 100"
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func applyRoomType(rt *RoomType, in RoomTypeInput) {
	rt.Name = strings.TrimSpace(in.Name)
	rt.Slug = slug.Make(rt.Name)
	rt.Description = strings.TrimSpace(in.Description)
	rt.BasePrice = in.BasePrice.Round(2)
	rt.MaxGuests = in.MaxGuests
	rt.DiscountPercent = in.DiscountPercent
	if in.Active != nil {
		rt.Active = *in.Active
	}
}
