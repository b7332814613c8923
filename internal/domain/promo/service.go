package promo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"hotelpms/internal/pkg/dberr"
	"hotelpms/internal/pkg/money"
	"hotelpms/internal/pkg/stay"
)

const maxRetryAttempts = 10

// Request is what a code is validated against.
type Request struct {
	Code       string
	RoomTypeID uint
	Amount     decimal.Decimal
	Window     stay.Window
}

type Result struct {
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	FinalAmount    decimal.Decimal `json:"final_amount"`
	PromoCode      *PromoCode      `json:"promo_code"`
}

type Service struct {
	db      *gorm.DB
	now     func() time.Time
	loggerf func(format string, args ...interface{})
}

func NewService(db *gorm.DB, loggerf func(format string, args ...interface{})) *Service {
	if loggerf == nil {
		loggerf = func(string, ...interface{}) {}
	}
	return &Service{db: db, now: time.Now, loggerf: loggerf}
}

// Validate checks a code and computes its discount. It never changes used_count.
func (s *Service) Validate(ctx context.Context, req Request) (*Result, error) {
	if !req.Amount.IsPositive() {
		return nil, reject(req.Code, ReasonInvalidAmount)
	}

	var p PromoCode
	err := s.db.WithContext(ctx).Preload("RoomTypes").Where("code = ?", req.Code).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, reject(req.Code, ReasonNotFound)
		}
		return nil, fmt.Errorf("lookup promo code: %w", err)
	}

	now := s.now()
	switch {
	case !p.Active:
		return nil, reject(p.Code, ReasonInactive)
	case p.ValidUntil != nil && now.After(*p.ValidUntil):
		return nil, reject(p.Code, ReasonExpired)
	case p.ValidFrom != nil && now.Before(*p.ValidFrom):
		return nil, reject(p.Code, ReasonNotYetValid)
	case !p.Unlimited() && p.UsedCount >= p.UsageCap:
		return nil, reject(p.Code, ReasonUsageLimit)
	case !p.AppliesTo(req.RoomTypeID):
		return nil, reject(p.Code, ReasonNotApplicable)
	case req.Amount.LessThan(p.MinAmount):
		return nil, reject(p.Code, ReasonMinAmount)
	}

	discount := Discount(&p, req.Amount)
	return &Result{
		DiscountAmount: discount,
		FinalAmount:    req.Amount.Sub(discount),
		PromoCode:      &p,
	}, nil
}

// Discount returns the rounded discount for amount, never more than amount.
func Discount(p *PromoCode, amount decimal.Decimal) decimal.Decimal {
	var discount decimal.Decimal
	switch p.DiscountType {
	case DiscountPercentage:
		discount = money.Percent(amount, p.Value)
	case DiscountFixed:
		discount = money.Round(p.Value)
	}
	return money.NonNegative(money.Min(discount, amount))
}

// ConsumeTx records one use of the code inside the caller's transaction.
// A cap reached since validation returns ErrUsageExhausted and the caller must
// abort. Any other failure is rolled back to a savepoint and queued for retry
// so the booking still commits.
func (s *Service) ConsumeTx(ctx context.Context, tx *gorm.DB, promoID, bookingID uint) error {
	err := tx.WithContext(ctx).Transaction(func(sp *gorm.DB) error {
		return incrementUsage(sp, promoID)
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUsageExhausted) {
		return err
	}

	s.loggerf("level=error msg=\"promo usage increment failed, queued for retry\" promo_id=%d booking_id=%d err=%v", promoID, bookingID, err)
	retry := UsageRetry{PromoCodeID: promoID, BookingID: bookingID, LastError: err.Error()}
	if qerr := tx.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&retry).Error; qerr != nil {
		s.loggerf("level=error msg=\"promo usage retry could not be queued\" promo_id=%d booking_id=%d err=%v", promoID, bookingID, qerr)
	}
	return nil
}

func incrementUsage(db *gorm.DB, promoID uint) error {
	res := db.Model(&PromoCode{}).
		Where("id = ? AND active = ? AND (usage_cap <= 0 OR used_count < usage_cap)", promoID, true).
		UpdateColumn("used_count", gorm.Expr("used_count + 1"))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUsageExhausted
	}
	return nil
}

// RetryPendingUsage replays queued increments and returns how many were applied.
func (s *Service) RetryPendingUsage(ctx context.Context) (int, error) {
	var pending []UsageRetry
	err := s.db.WithContext(ctx).
		Where("done = ? AND attempts < ?", false, maxRetryAttempts).
		Order("id ASC").
		Limit(100).
		Find(&pending).Error
	if err != nil {
		return 0, fmt.Errorf("load pending promo usage: %w", err)
	}

	applied := 0
	for _, r := range pending {
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := incrementUsage(tx, r.PromoCodeID); err != nil {
				return err
			}
			return tx.Model(&UsageRetry{}).Where("id = ?", r.ID).Updates(map[string]interface{}{
				"done":     true,
				"attempts": r.Attempts + 1,
			}).Error
		})

		switch {
		case err == nil:
			applied++
		case errors.Is(err, ErrUsageExhausted):
			s.loggerf("level=warn msg=\"promo usage retry dropped, cap reached\" promo_id=%d booking_id=%d", r.PromoCodeID, r.BookingID)
			s.markRetry(ctx, r, true, err)
		default:
			s.loggerf("level=error msg=\"promo usage retry failed\" promo_id=%d booking_id=%d attempt=%d err=%v", r.PromoCodeID, r.BookingID, r.Attempts+1, err)
			s.markRetry(ctx, r, false, err)
		}
	}
	return applied, nil
}

func (s *Service) markRetry(ctx context.Context, r UsageRetry, done bool, cause error) {
	err := s.db.WithContext(ctx).Model(&UsageRetry{}).Where("id = ?", r.ID).Updates(map[string]interface{}{
		"done":       done,
		"attempts":   r.Attempts + 1,
		"last_error": cause.Error(),
	}).Error
	if err != nil {
		s.loggerf("level=error msg=\"promo usage retry bookkeeping failed\" retry_id=%d err=%v", r.ID, err)
	}
}

// Input is the admin payload for creating or updating a code.
type Input struct {
	Code         string          `json:"code"`
	Description  string          `json:"description"`
	DiscountType string          `json:"discount_type"`
	Value        decimal.Decimal `json:"value"`
	MinAmount    decimal.Decimal `json:"min_amount"`
	ValidFrom    *time.Time      `json:"valid_from"`
	ValidUntil   *time.Time      `json:"valid_until"`
	UsageCap     int             `json:"usage_cap"`
	Active       *bool           `json:"active"`
	RoomTypeIDs  []uint          `json:"room_type_ids"`
}

func (s *Service) List(ctx context.Context) ([]PromoCode, error) {
	var codes []PromoCode
	if err := s.db.WithContext(ctx).Preload("RoomTypes").Order("id DESC").Find(&codes).Error; err != nil {
		return nil, err
	}
	return codes, nil
}

func (s *Service) Get(ctx context.Context, id uint) (*PromoCode, error) {
	var p PromoCode
	if err := s.db.WithContext(ctx).Preload("RoomTypes").First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *Service) Create(ctx context.Context, in Input) (*PromoCode, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	p := &PromoCode{Active: true}
	applyInput(p, in)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("RoomTypes").Create(p).Error; err != nil {
			return err
		}
		return replaceRoomTypes(tx, p, in.RoomTypeIDs)
	})
	if err != nil {
		if dberr.IsUniqueViolation(err) {
			return nil, ErrDuplicateCode
		}
		return nil, err
	}
	return p, nil
}

func (s *Service) Update(ctx context.Context, id uint, in Input) (*PromoCode, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.UsageCap > 0 && in.UsageCap < p.UsedCount {
		return nil, fmt.Errorf("%w: usage_cap below used_count (%d)", ErrInvalidInput, p.UsedCount)
	}
	applyInput(p, in)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&PromoCode{}).Where("id = ?", p.ID).Updates(map[string]interface{}{
			"code":          p.Code,
			"description":   p.Description,
			"discount_type": p.DiscountType,
			"value":         p.Value,
			"min_amount":    p.MinAmount,
			"valid_from":    p.ValidFrom,
			"valid_until":   p.ValidUntil,
			"usage_cap":     p.UsageCap,
			"active":        p.Active,
		}).Error; err != nil {
			return err
		}
		return replaceRoomTypes(tx, p, in.RoomTypeIDs)
	})
	if err != nil {
		if dberr.IsUniqueViolation(err) {
			return nil, ErrDuplicateCode
		}
		return nil, err
	}
	return p, nil
}

// Deactivate keeps the row for booking history.
func (s *Service) Deactivate(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Model(&PromoCode{}).Where("id = ?", id).Update("active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func replaceRoomTypes(tx *gorm.DB, p *PromoCode, ids []uint) error {
	if err := tx.Where("promo_code_id = ?", p.ID).Delete(&PromoRoomType{}).Error; err != nil {
		return err
	}
	p.RoomTypes = p.RoomTypes[:0]
	seen := make(map[uint]bool, len(ids))
	for _, id := range ids {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		p.RoomTypes = append(p.RoomTypes, PromoRoomType{PromoCodeID: p.ID, RoomTypeID: id})
	}
	if len(p.RoomTypes) == 0 {
		return nil
	}
	return tx.Create(&p.RoomTypes).Error
}

func validateInput(in Input) error {
	code := strings.TrimSpace(in.Code)
	switch {
	case code == "" || code != in.Code:
		return fmt.Errorf("%w: code must be non-empty without surrounding spaces", ErrInvalidInput)
	case in.DiscountType != DiscountPercentage && in.DiscountType != DiscountFixed:
		return fmt.Errorf("%w: discount_type must be percentage or fixed", ErrInvalidInput)
	case !in.Value.IsPositive():
		return fmt.Errorf("%w: value must be > 0", ErrInvalidInput)
	case in.DiscountType == DiscountPercentage && in.Value.GreaterThan(decimal.NewFromInt(100)):
		return fmt.Errorf("%w: percentage value must be <= 100", ErrInvalidInput)
	case in.MinAmount.IsNegative():
		return fmt.Errorf("%w: min_amount must be >= 0", ErrInvalidInput)
	case in.UsageCap < 0:
		return fmt.Errorf("%w: usage_cap must be >= 0", ErrInvalidInput)
	case in.ValidFrom != nil && in.ValidUntil != nil && !in.ValidUntil.After(*in.ValidFrom):
		return fmt.Errorf("%w: valid_until must be after valid_from", ErrInvalidInput)
	}
	return nil
}

func applyInput(p *PromoCode, in Input) {
	p.Code = in.Code
	p.Description = strings.TrimSpace(in.Description)
	p.DiscountType = in.DiscountType
	p.Value = in.Value
	p.MinAmount = in.MinAmount
	p.ValidFrom = in.ValidFrom
	p.ValidUntil = in.ValidUntil
	p.UsageCap = in.UsageCap
	if in.Active != nil {
		p.Active = *in.Active
	}
}
