package allocation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"hotelpms/internal/domain/catalog"
	"hotelpms/internal/pkg/dberr"
	"hotelpms/internal/pkg/keylock"
	"hotelpms/internal/pkg/stay"
)

// StatusNotifier is told about room status changes after they are committed.
type StatusNotifier interface {
	RoomStatusChanged(room catalog.Room)
}

type ReserveRequest struct {
	RoomTypeID uint
	Window     stay.Window
	BookingID  uint
	// RoomCount rooms are held for the whole window; the first is the
	// booking's primary room.
	RoomCount int
}

type ReassignRequest struct {
	BookingID     uint
	CurrentRoomID uint
	RoomTypeID    uint
	Window        stay.Window
	RoomCount     int
}

type Allocator struct {
	db       *gorm.DB
	locks    *keylock.Locker
	notifier StatusNotifier
	loc      *time.Location
	now      func() time.Time
	loggerf  func(format string, args ...interface{})
}

func NewAllocator(db *gorm.DB, locks *keylock.Locker, loc *time.Location, loggerf func(format string, args ...interface{})) *Allocator {
	if locks == nil {
		locks = keylock.New()
	}
	if loc == nil {
		loc = time.UTC
	}
	if loggerf == nil {
		loggerf = func(string, ...interface{}) {}
	}
	return &Allocator{db: db, locks: locks, loc: loc, now: time.Now, loggerf: loggerf}
}

func (a *Allocator) SetNotifier(n StatusNotifier) {
	a.notifier = n
}

// LockRoomTypes serializes allocation for the given types inside this
// process. Hold it until the surrounding transaction has committed.
func (a *Allocator) LockRoomTypes(ids ...uint) func() {
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, "room-type:"+strconv.FormatUint(uint64(id), 10))
	}
	return a.locks.LockAll(keys...)
}

// AvailableRooms lists free rooms ordered by room number. Nights held by
// excludeBookingID are treated as free.
func (a *Allocator) AvailableRooms(ctx context.Context, roomTypeID uint, w stay.Window, excludeBookingID uint) ([]catalog.Room, error) {
	return availableRooms(a.db.WithContext(ctx), roomTypeID, w, excludeBookingID)
}

func (a *Allocator) CountAvailable(ctx context.Context, roomTypeID uint, w stay.Window) (int, error) {
	rooms, err := a.AvailableRooms(ctx, roomTypeID, w, 0)
	if err != nil {
		return 0, err
	}
	return len(rooms), nil
}

// Reserve holds RoomCount rooms for the booking, lowest numbers first, and
// returns the primary one. It must run inside the booking transaction;
// availability is re-checked there.
func (a *Allocator) Reserve(ctx context.Context, tx *gorm.DB, req ReserveRequest) (*catalog.Room, error) {
	tx = tx.WithContext(ctx)
	if err := lockRoomTypeRows(tx, req.RoomTypeID); err != nil {
		return nil, err
	}

	candidates, err := availableRooms(tx, req.RoomTypeID, req.Window, 0)
	if err != nil {
		return nil, err
	}
	need := roomsNeeded(req.RoomCount)
	if len(candidates) < need {
		return nil, ErrSoldOut
	}

	picked := candidates[:need]
	for i := range picked {
		if err := reserveRoom(tx, &picked[i], req.Window, req.BookingID); err != nil {
			return nil, err
		}
	}
	return &picked[0], nil
}

// Reassign validates the targets first, then releases the booking's rooms and
// reserves the new set, all inside tx. The current primary room is kept when
// it is still free for the new window and of the requested type.
func (a *Allocator) Reassign(ctx context.Context, tx *gorm.DB, req ReassignRequest) (*catalog.Room, error) {
	tx = tx.WithContext(ctx)

	var current catalog.Room
	if err := tx.First(&current, req.CurrentRoomID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	if err := lockRoomTypeRows(tx, current.RoomTypeID, req.RoomTypeID); err != nil {
		return nil, err
	}

	candidates, err := availableRooms(tx, req.RoomTypeID, req.Window, req.BookingID)
	if err != nil {
		return nil, err
	}
	need := roomsNeeded(req.RoomCount)
	if len(candidates) < need {
		return nil, ErrSoldOut
	}

	picked := make([]catalog.Room, 0, need)
	for _, r := range candidates {
		if r.ID == current.ID {
			picked = append(picked, r)
			break
		}
	}
	for _, r := range candidates {
		if len(picked) == need {
			break
		}
		if r.ID != current.ID {
			picked = append(picked, r)
		}
	}

	if _, err := a.Release(ctx, tx, req.BookingID); err != nil {
		return nil, err
	}
	for i := range picked {
		if err := reserveRoom(tx, &picked[i], req.Window, req.BookingID); err != nil {
			return nil, err
		}
	}
	return &picked[0], nil
}

// HeldRooms lists the rooms with nights held by the booking.
func (a *Allocator) HeldRooms(ctx context.Context, tx *gorm.DB, bookingID uint) ([]uint, error) {
	var roomIDs []uint
	if err := tx.WithContext(ctx).Model(&RoomNight{}).Where("booking_id = ?", bookingID).Distinct().Order("room_id").Pluck("room_id", &roomIDs).Error; err != nil {
		return nil, fmt.Errorf("load booked rooms: %w", err)
	}
	return roomIDs, nil
}

// Release frees every night held by the booking and returns the rooms touched.
// A room with no remaining nights goes back to available unless in maintenance.
func (a *Allocator) Release(ctx context.Context, tx *gorm.DB, bookingID uint) ([]uint, error) {
	tx = tx.WithContext(ctx)

	roomIDs, err := a.HeldRooms(ctx, tx, bookingID)
	if err != nil {
		return nil, err
	}
	if len(roomIDs) == 0 {
		return nil, nil
	}
	if err := tx.Where("booking_id = ?", bookingID).Delete(&RoomNight{}).Error; err != nil {
		return nil, fmt.Errorf("release room nights: %w", err)
	}
	for _, id := range roomIDs {
		if err := refreshStatus(tx, id); err != nil {
			return nil, err
		}
	}
	return roomIDs, nil
}

// SetMaintenance takes a room out of (or back into) service.
func (a *Allocator) SetMaintenance(ctx context.Context, roomID uint, on bool) (*catalog.Room, error) {
	today := stay.Date(a.now(), a.loc).Format(stay.DateLayout)
	var room catalog.Room

	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&room, roomID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRoomNotFound
			}
			return err
		}

		if on {
			var upcoming int64
			if err := tx.Model(&RoomNight{}).Where("room_id = ? AND night >= ?", roomID, today).Count(&upcoming).Error; err != nil {
				return err
			}
			if upcoming > 0 {
				return ErrRoomHasStays
			}
			room.Status = catalog.RoomStatusMaintenance
			return tx.Model(&catalog.Room{}).Where("id = ?", roomID).Update("status", room.Status).Error
		}

		if room.Status != catalog.RoomStatusMaintenance {
			return nil
		}
		if err := tx.Model(&catalog.Room{}).Where("id = ?", roomID).Update("status", catalog.RoomStatusAvailable).Error; err != nil {
			return err
		}
		if err := refreshStatus(tx, roomID); err != nil {
			return err
		}
		return tx.First(&room, roomID).Error
	})
	if err != nil {
		return nil, err
	}

	a.loggerf("level=info msg=\"room maintenance updated\" room_id=%d number=%s status=%s", room.ID, room.Number, room.Status)
	a.announce(room)
	return &room, nil
}

// Announce pushes the committed status of the given rooms to the notifier.
func (a *Allocator) Announce(ctx context.Context, roomIDs ...uint) {
	if a.notifier == nil || len(roomIDs) == 0 {
		return
	}
	var rooms []catalog.Room
	if err := a.db.WithContext(ctx).Where("id IN ?", roomIDs).Find(&rooms).Error; err != nil {
		a.loggerf("level=warn msg=\"room status announce failed\" err=%v", err)
		return
	}
	for _, r := range rooms {
		a.announce(r)
	}
}

func (a *Allocator) announce(room catalog.Room) {
	if a.notifier != nil {
		a.notifier.RoomStatusChanged(room)
	}
}

func availableRooms(db *gorm.DB, roomTypeID uint, w stay.Window, excludeBookingID uint) ([]catalog.Room, error) {
	busy := db.Model(&RoomNight{}).
		Select("1").
		Where("room_nights.room_id = rooms.id AND room_nights.night >= ? AND room_nights.night < ?", w.FirstKey(), w.EndKey())
	if excludeBookingID != 0 {
		busy = busy.Where("room_nights.booking_id <> ?", excludeBookingID)
	}

	var rooms []catalog.Room
	err := db.Model(&catalog.Room{}).
		Where("rooms.room_type_id = ? AND rooms.status <> ?", roomTypeID, catalog.RoomStatusMaintenance).
		Where("NOT EXISTS (?)", busy).
		Find(&rooms).Error
	if err != nil {
		return nil, fmt.Errorf("query available rooms: %w", err)
	}
	sortByNumber(rooms)
	return rooms, nil
}

func reserveRoom(tx *gorm.DB, room *catalog.Room, w stay.Window, bookingID uint) error {
	keys := w.NightKeys()
	nights := make([]RoomNight, 0, len(keys))
	for _, k := range keys {
		nights = append(nights, RoomNight{RoomID: room.ID, Night: k, BookingID: bookingID})
	}
	if err := tx.Create(&nights).Error; err != nil {
		if isNightConflict(err) {
			return ErrRoomTaken
		}
		return fmt.Errorf("insert room nights: %w", err)
	}

	err := tx.Model(&catalog.Room{}).
		Where("id = ? AND status = ?", room.ID, catalog.RoomStatusAvailable).
		Update("status", catalog.RoomStatusOccupied).Error
	if err != nil {
		return fmt.Errorf("mark room occupied: %w", err)
	}
	if room.Status == catalog.RoomStatusAvailable {
		room.Status = catalog.RoomStatusOccupied
	}
	return nil
}

// isNightConflict reports a collision on the (room, night) key. Postgres names
// the constraint; SQLite only reports the columns.
func isNightConflict(err error) bool {
	if !dberr.IsUniqueViolation(err) {
		return false
	}
	switch dberr.ConstraintName(err) {
	case "", roomNightIndex:
		return true
	default:
		return false
	}
}

func roomsNeeded(count int) int {
	if count < 1 {
		return 1
	}
	return count
}

func refreshStatus(tx *gorm.DB, roomID uint) error {
	var remaining int64
	if err := tx.Model(&RoomNight{}).Where("room_id = ?", roomID).Count(&remaining).Error; err != nil {
		return err
	}
	status := catalog.RoomStatusAvailable
	if remaining > 0 {
		status = catalog.RoomStatusOccupied
	}
	return tx.Model(&catalog.Room{}).
		Where("id = ? AND status <> ?", roomID, catalog.RoomStatusMaintenance).
		Update("status", status).Error
}

// lockRoomTypeRows takes row locks on Postgres, in id order.
func lockRoomTypeRows(tx *gorm.DB, ids ...uint) error {
	uniq := make([]uint, 0, len(ids))
	seen := make(map[uint]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			uniq = append(uniq, id)
		}
	}
	sort.Slice(uniq, func(i, j int) bool { return uniq[i] < uniq[j] })

	for _, id := range uniq {
		var rt catalog.RoomType
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id").First(&rt, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return catalog.ErrRoomTypeNotFound
			}
			return err
		}
	}
	return nil
}

// sortByNumber orders rooms numerically when numbers are numeric ("9" < "10").
func sortByNumber(rooms []catalog.Room) {
	sort.SliceStable(rooms, func(i, j int) bool {
		return numberLess(rooms[i].Number, rooms[j].Number)
	})
}

func numberLess(a, b string) bool {
	ai, aerr := strconv.Atoi(a)
	bi, berr := strconv.Atoi(b)
	switch {
	case aerr == nil && berr == nil:
		return ai < bi
	case aerr == nil:
		return true
	case berr == nil:
		return false
	case len(a) != len(b):
		return len(a) < len(b)
	default:
		return a < b
	}
}
