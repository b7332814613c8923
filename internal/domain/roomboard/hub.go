// Package roomboard pushes live room status to front desk screens.
package roomboard

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"hotelpms/internal/domain/catalog"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 4 * 1024
)

const (
	EventSnapshot   = "snapshot"
	EventRoomStatus = "room_status"
	EventPong       = "pong"
	EventError      = "error"
)

type RoomStatus struct {
	ID         uint   `json:"id"`
	Number     string `json:"number"`
	Floor      int    `json:"floor"`
	RoomTypeID uint   `json:"room_type_id"`
	Status     string `json:"status"`
}

func statusOf(r catalog.Room) RoomStatus {
	return RoomStatus{ID: r.ID, Number: r.Number, Floor: r.Floor, RoomTypeID: r.RoomTypeID, Status: r.Status}
}

// Event is a message pushed to board clients.
type Event struct {
	Type    string       `json:"type"`
	Room    *RoomStatus  `json:"room,omitempty"`
	Rooms   []RoomStatus `json:"rooms,omitempty"`
	Code    string       `json:"code,omitempty"`
	Message string       `json:"message,omitempty"`
	At      time.Time    `json:"at"`
}

// clientMessage narrows a connection to some room types; no filter means all.
type clientMessage struct {
	Type       string `json:"type"`
	RoomTypeID uint   `json:"room_type_id"`
}

type connection struct {
	userID int64
	conn   *websocket.Conn
	send   chan []byte
	types  map[uint]bool
}

type Hub struct {
	mu          sync.RWMutex
	connections map[*connection]struct{}
	loggerf     func(format string, args ...interface{})
}

func NewHub(loggerf func(format string, args ...interface{})) *Hub {
	if loggerf == nil {
		loggerf = func(string, ...interface{}) {}
	}
	return &Hub{connections: make(map[*connection]struct{}), loggerf: loggerf}
}

// RoomStatusChanged broadcasts a committed room status change.
func (h *Hub) RoomStatusChanged(room catalog.Room) {
	rs := statusOf(room)
	h.broadcast(&Event{Type: EventRoomStatus, Room: &rs, At: time.Now().UTC()}, room.RoomTypeID)
}

// Clients returns the number of open board connections.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

func (h *Hub) register(c *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connections[c] = struct{}{}
}

func (h *Hub) unregister(c *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.connections[c]; ok {
		delete(h.connections, c)
		close(c.send)
	}
}

func (h *Hub) broadcast(ev *Event, roomTypeID uint) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.connections {
		if len(c.types) > 0 && !c.types[roomTypeID] {
			continue
		}
		select {
		case c.send <- data:
		default:
			h.loggerf("level=warn msg=\"room board client too slow, event dropped\" user_id=%d", c.userID)
		}
	}
}

// Serve registers conn, sends the snapshot and blocks until it disconnects.
func (h *Hub) Serve(conn *websocket.Conn, userID int64, snapshot []RoomStatus) {
	c := &connection{
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, 64),
		types:  make(map[uint]bool),
	}
	if data, err := json.Marshal(&Event{Type: EventSnapshot, Rooms: snapshot, At: time.Now().UTC()}); err == nil {
		c.send <- data
	}

	h.register(c)
	h.loggerf("level=info msg=\"room board connected\" user_id=%d clients=%d", userID, h.Clients())

	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) readPump(c *connection) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
		h.loggerf("level=info msg=\"room board disconnected\" user_id=%d", c.userID)
	}()

	c.conn.SetReadLimit(maxMsgSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg clientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			h.reply(c, &Event{Type: EventError, Code: "INVALID_JSON", Message: "Failed to parse message"})
			continue
		}

		switch msg.Type {
		case "subscribe":
			h.mu.Lock()
			c.types[msg.RoomTypeID] = true
			h.mu.Unlock()
		case "unsubscribe":
			h.mu.Lock()
			delete(c.types, msg.RoomTypeID)
			h.mu.Unlock()
		case "ping":
			h.reply(c, &Event{Type: EventPong})
		default:
			h.reply(c, &Event{Type: EventError, Code: "UNKNOWN_TYPE", Message: "Unknown message type: " + msg.Type})
		}
	}
}

func (h *Hub) reply(c *connection, ev *Event) {
	ev.At = time.Now().UTC()
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.connections[c]; !ok {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func (h *Hub) writePump(c *connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
