package allocation

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"hotelpms/internal/pkg/response"
	"hotelpms/internal/pkg/stay"
)

type Handler struct {
	allocator *Allocator
}

func NewHandler(allocator *Allocator) *Handler {
	return &Handler{allocator: allocator}
}

func (h *Handler) AvailableRooms(c *gin.Context) {
	typeID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid room type id")
		return
	}
	w, err := stay.Parse(c.Query("check_in"), c.Query("check_out"))
	if err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	var exclude uint64
	if raw := c.Query("exclude_booking_id"); raw != "" {
		if exclude, err = strconv.ParseUint(raw, 10, 64); err != nil {
			response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid exclude_booking_id")
			return
		}
	}

	rooms, err := h.allocator.AvailableRooms(c.Request.Context(), uint(typeID), w, uint(exclude))
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load available rooms")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"rooms": rooms, "count": len(rooms)})
}

type maintenanceRequest struct {
	Maintenance *bool `json:"maintenance" binding:"required"`
}

func (h *Handler) SetMaintenance(c *gin.Context) {
	roomID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid room id")
		return
	}
	var req maintenanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	room, err := h.allocator.SetMaintenance(c.Request.Context(), uint(roomID), *req.Maintenance)
	if err != nil {
		switch {
		case errors.Is(err, ErrRoomNotFound):
			response.Error(c, http.StatusNotFound, "NOT_FOUND", err.Error())
		case errors.Is(err, ErrRoomHasStays):
			response.Error(c, http.StatusConflict, "ROOM_HAS_STAYS", err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update room")
		}
		return
	}
	response.Success(c, http.StatusOK, gin.H{"room": room})
}

func (h *Handler) RegisterRoutes(public *gin.RouterGroup) {
	public.GET("/room-types/:id/available-rooms", h.AvailableRooms)
}

func (h *Handler) RegisterStaffRoutes(staff *gin.RouterGroup) {
	staff.PATCH("/rooms/:id/maintenance", h.SetMaintenance)
}
