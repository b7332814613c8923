package roomboard

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"hotelpms/internal/domain/catalog"
	"hotelpms/internal/pkg/jwt"
	"hotelpms/internal/pkg/response"
)

type RoomLister interface {
	ListRooms(ctx context.Context, f catalog.RoomFilter) ([]catalog.Room, error)
}

type Handler struct {
	hub      *Hub
	tokens   *jwt.Service
	rooms    RoomLister
	upgrader websocket.Upgrader
}

// NewHandler accepts browser connections from allowedOrigins only; "*" allows
// any origin. Requests without an Origin header are always accepted.
func NewHandler(hub *Hub, tokens *jwt.Service, rooms RoomLister, allowedOrigins []string) *Handler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &Handler{
		hub:    hub,
		tokens: tokens,
		rooms:  rooms,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowed["*"] || allowed[origin]
			},
		},
	}
}

// ServeWS GET /ws/rooms?token=JWT
//
// Browsers cannot set headers on websocket requests, so the staff token comes
// in the query string.
func (h *Handler) ServeWS(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, http.StatusUnauthorized, "AUTH_TOKEN_MISSING", "Token is required. Use ?token=YOUR_JWT_TOKEN")
		return
	}
	claims, err := h.tokens.ValidateToken(token)
	if err != nil {
		response.Error(c, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid or expired token")
		return
	}
	switch claims.Role {
	case jwt.RoleAdmin, jwt.RoleFrontDesk, jwt.RoleAccountant:
	default:
		response.Error(c, http.StatusForbidden, "FORBIDDEN", "Staff role required")
		return
	}

	rooms, err := h.rooms.ListRooms(c.Request.Context(), catalog.RoomFilter{})
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load rooms")
		return
	}
	snapshot := make([]RoomStatus, 0, len(rooms))
	for _, r := range rooms {
		snapshot = append(snapshot, statusOf(r))
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.hub.loggerf("level=warn msg=\"room board upgrade failed\" user_id=%d err=%v", claims.UserID, err)
		return
	}
	h.hub.Serve(conn, claims.UserID, snapshot)
}

func (h *Handler) RegisterRoutes(public *gin.RouterGroup) {
	public.GET("/ws/rooms", h.ServeWS)
}
