package catalog

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"hotelpms/internal/pkg/dberr"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) ListRoomTypes(ctx context.Context, activeOnly bool) ([]RoomType, error) {
	var types []RoomType
	q := r.db.WithContext(ctx).Order("base_price ASC, id ASC")
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	if err := q.Find(&types).Error; err != nil {
		return nil, err
	}
	return types, nil
}

// GetRoomType always reads from the database; rates are never served stale.
func (r *Repository) GetRoomType(ctx context.Context, id uint) (*RoomType, error) {
	var rt RoomType
	if err := r.db.WithContext(ctx).First(&rt, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomTypeNotFound
		}
		return nil, err
	}
	return &rt, nil
}

func (r *Repository) CreateRoomType(ctx context.Context, rt *RoomType) error {
	if err := r.db.WithContext(ctx).Create(rt).Error; err != nil {
		if dberr.IsUniqueViolation(err) {
			return ErrDuplicateSlug
		}
		return err
	}
	return nil
}

func (r *Repository) UpdateRoomType(ctx context.Context, rt *RoomType) error {
	err := r.db.WithContext(ctx).Model(&RoomType{}).Where("id = ?", rt.ID).Updates(map[string]interface{}{
		"name":             rt.Name,
		"slug":             rt.Slug,
		"description":      rt.Description,
		"base_price":       rt.BasePrice,
		"max_guests":       rt.MaxGuests,
		"discount_percent": rt.DiscountPercent,
		"active":           rt.Active,
	}).Error
	if err != nil && dberr.IsUniqueViolation(err) {
		return ErrDuplicateSlug
	}
	return err
}

// CountRoomsByType returns total rooms per room type id.
func (r *Repository) CountRoomsByType(ctx context.Context) (map[uint]int, error) {
	var rows []struct {
		RoomTypeID uint
		Total      int
	}
	err := r.db.WithContext(ctx).Model(&Room{}).
		Select("room_type_id, COUNT(*) AS total").
		Group("room_type_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[uint]int, len(rows))
	for _, row := range rows {
		counts[row.RoomTypeID] = row.Total
	}
	return counts, nil
}

type RoomFilter struct {
	RoomTypeID uint
	Status     string
}

func (r *Repository) ListRooms(ctx context.Context, f RoomFilter) ([]Room, error) {
	var rooms []Room
	q := r.db.WithContext(ctx).Order("room_type_id ASC, number ASC")
	if f.RoomTypeID != 0 {
		q = q.Where("room_type_id = ?", f.RoomTypeID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if err := q.Find(&rooms).Error; err != nil {
		return nil, err
	}
	return rooms, nil
}

func (r *Repository) GetRoom(ctx context.Context, id uint) (*Room, error) {
	var room Room
	if err := r.db.WithContext(ctx).First(&room, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	return &room, nil
}

func (r *Repository) CreateRoom(ctx context.Context, room *Room) error {
	if err := r.db.WithContext(ctx).Create(room).Error; err != nil {
		if dberr.IsUniqueViolation(err) {
			return ErrDuplicateNumber
		}
		return err
	}
	return nil
}
