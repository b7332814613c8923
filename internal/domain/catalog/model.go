package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	RoomStatusAvailable   = "available"
	RoomStatusOccupied    = "occupied"
	RoomStatusMaintenance = "maintenance"
)

// RoomType is a class of room sharing a nightly rate and capacity.
type RoomType struct {
	ID              uint            `json:"id" gorm:"primaryKey"`
	Name            string          `json:"name" gorm:"size:120;not null"`
	Slug            string          `json:"slug" gorm:"size:140;not null;uniqueIndex"`
	Description     string          `json:"description" gorm:"type:text"`
	BasePrice       decimal.Decimal `json:"base_price" gorm:"type:decimal(14,2);not null"`
	MaxGuests       int             `json:"max_guests" gorm:"not null"`
	DiscountPercent decimal.Decimal `json:"discount_percent" gorm:"type:decimal(5,2);not null;default:0"`
	Active          bool            `json:"active" gorm:"not null;index"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`

	Rooms []Room `json:"rooms,omitempty" gorm:"foreignKey:RoomTypeID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

func (RoomType) TableName() string {
	return "room_types"
}

// Room is one physical bookable unit.
type Room struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	Number     string    `json:"number" gorm:"size:16;not null;uniqueIndex"`
	Floor      int       `json:"floor" gorm:"not null;default:0"`
	RoomTypeID uint      `json:"room_type_id" gorm:"not null;index"`
	Status     string    `json:"status" gorm:"size:16;not null;index;check:status IN ('available','occupied','maintenance')"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (Room) TableName() string {
	return "rooms"
}

// RoomTypeSummary is what booking and pricing flows read about a type.
type RoomTypeSummary struct {
	RoomType
	TotalRooms         int `json:"total_rooms"`
	AvailableRoomCount int `json:"available_room_count"`
}

func ValidRoomStatus(s string) bool {
	switch s {
	case RoomStatusAvailable, RoomStatusOccupied, RoomStatusMaintenance:
		return true
	}
	return false
}
