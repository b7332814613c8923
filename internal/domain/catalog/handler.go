package catalog

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"hotelpms/internal/pkg/response"
	"hotelpms/internal/pkg/stay"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// ListRoomTypes
// @Summary List room types with availability
// @Tags Catalog
// @Param check_in query string false "YYYY-MM-DD, defaults to today"
// @Param check_out query string false "YYYY-MM-DD, defaults to tomorrow"
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/room-types [get]
func (h *Handler) ListRoomTypes(c *gin.Context) {
	w, ok := h.window(c)
	if !ok {
		return
	}

	types, err := h.service.ListRoomTypes(c.Request.Context(), w, true)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list room types")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"room_types": types})
}

// GetRoomType
// @Summary Room type with price, max guests and available room count
// @Tags Catalog
// @Param id path int true "Room type ID"
// @Router /api/v1/room-types/{id} [get]
func (h *Handler) GetRoomType(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	w, ok := h.window(c)
	if !ok {
		return
	}

	rt, err := h.service.GetRoomType(c.Request.Context(), id, w)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"room_type": rt})
}

func (h *Handler) CreateRoomType(c *gin.Context) {
	var req RoomTypeInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	rt, err := h.service.CreateRoomType(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"room_type": rt})
}

func (h *Handler) UpdateRoomType(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req RoomTypeInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	rt, err := h.service.UpdateRoomType(c.Request.Context(), id, req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"room_type": rt})
}

func (h *Handler) ListRooms(c *gin.Context) {
	var f RoomFilter
	if raw := c.Query("room_type_id"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid room_type_id")
			return
		}
		f.RoomTypeID = uint(v)
	}
	f.Status = c.Query("status")

	rooms, err := h.service.ListRooms(c.Request.Context(), f)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"rooms": rooms})
}

func (h *Handler) CreateRoom(c *gin.Context) {
	var req RoomInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	room, err := h.service.CreateRoom(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"room": room})
}

func (h *Handler) window(c *gin.Context) (stay.Window, bool) {
	in, out := c.Query("check_in"), c.Query("check_out")
	if in == "" && out == "" {
		return h.service.Tonight(), true
	}
	w, err := stay.Parse(in, out)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return stay.Window{}, false
	}
	return w, true
}

func (h *Handler) writeError(c *gin.Context, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid input", verr.Fields)
	case errors.Is(err, ErrRoomTypeNotFound), errors.Is(err, ErrRoomNotFound):
		response.Error(c, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, ErrDuplicateSlug), errors.Is(err, ErrDuplicateNumber):
		response.Error(c, http.StatusConflict, "DUPLICATE", err.Error())
	default:
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Catalog operation failed")
	}
}

func parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		response.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid "+name)
		return 0, false
	}
	return uint(id), true
}
