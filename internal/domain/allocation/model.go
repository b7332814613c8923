package allocation

import "time"

const roomNightIndex = "idx_room_night"

// RoomNight reserves one room for one night. The unique (room_id, night)
// index is what makes double booking impossible at the storage level.
type RoomNight struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	RoomID    uint      `json:"room_id" gorm:"not null;uniqueIndex:idx_room_night,priority:1"`
	Night     string    `json:"night" gorm:"size:10;not null;uniqueIndex:idx_room_night,priority:2;index"`
	BookingID uint      `json:"booking_id" gorm:"not null;index"`
	CreatedAt time.Time `json:"created_at"`
}

func (RoomNight) TableName() string {
	return "room_nights"
}
