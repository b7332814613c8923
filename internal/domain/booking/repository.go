package booking

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"hotelpms/internal/domain/ledger"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// ListFilter narrows List. Zero values are ignored; From/To select bookings
// whose stay overlaps [From, To).
type ListFilter struct {
	Status        string
	PaymentStatus string
	RoomTypeID    uint
	From          *time.Time
	To            *time.Time
	Query         string
	Limit         int
	Offset        int
}

func (r *Repository) GetByID(ctx context.Context, id uint) (*Booking, error) {
	return getByID(r.db.WithContext(ctx), id)
}

func (r *Repository) GetByIntentKey(ctx context.Context, key string) (*Booking, error) {
	var b Booking
	if err := r.db.WithContext(ctx).Where("intent_key = ?", key).First(&b).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

func (r *Repository) List(ctx context.Context, f ListFilter) ([]Booking, int64, error) {
	q := r.db.WithContext(ctx).Model(&Booking{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.PaymentStatus != "" {
		q = q.Where("payment_status = ?", f.PaymentStatus)
	}
	if f.RoomTypeID != 0 {
		q = q.Where("room_type_id = ?", f.RoomTypeID)
	}
	if f.From != nil {
		q = q.Where("check_out > ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("check_in < ?", *f.To)
	}
	if s := strings.TrimSpace(f.Query); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		q = q.Where("LOWER(guest_name) LIKE ? OR LOWER(guest_email) LIKE ? OR LOWER(reference) LIKE ?", like, like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var items []Booking
	err := q.Order("check_in DESC, id DESC").Limit(limit).Offset(f.Offset).Find(&items).Error
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *Repository) create(tx *gorm.DB, b *Booking) error {
	return tx.Create(b).Error
}

// lock reads the booking with a row lock on the caller's transaction.
func (r *Repository) lock(tx *gorm.DB, id uint) (*Booking, error) {
	var b Booking
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&b, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

func (r *Repository) update(tx *gorm.DB, id uint, fields map[string]any) error {
	res := tx.Model(&Booking{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// LockBooking implements ledger.BookingStore.
func (r *Repository) LockBooking(ctx context.Context, tx *gorm.DB, bookingID uint) (*ledger.BookingState, error) {
	b, err := r.lock(tx.WithContext(ctx), bookingID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ledger.ErrBookingNotFound
		}
		return nil, err
	}
	return &ledger.BookingState{
		ID:            b.ID,
		Status:        b.Status,
		Cancelled:     b.Status == StatusCancelled,
		TotalAmount:   b.TotalAmount,
		PaymentStatus: b.PaymentStatus,
	}, nil
}

// SetPaymentState implements ledger.BookingStore.
func (r *Repository) SetPaymentState(ctx context.Context, tx *gorm.DB, bookingID uint, amountPaid decimal.Decimal, status string) error {
	err := r.update(tx.WithContext(ctx), bookingID, map[string]any{"amount_paid": amountPaid, "payment_status": status})
	if errors.Is(err, ErrNotFound) {
		return ledger.ErrBookingNotFound
	}
	return err
}

func getByID(db *gorm.DB, id uint) (*Booking, error) {
	var b Booking
	if err := db.First(&b, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}
