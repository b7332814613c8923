package promo

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"hotelpms/internal/domain/catalog"
	"hotelpms/internal/pkg/response"
	"hotelpms/internal/pkg/stay"
)

type Handler struct {
	service *Service
	rooms   RoomLookup
}

func NewHandler(service *Service, rooms RoomLookup) *Handler {
	return &Handler{service: service, rooms: rooms}
}

type validateRequest struct {
	Code       string          `json:"code" binding:"required"`
	RoomTypeID uint            `json:"room_type_id"`
	RoomID     uint            `json:"room_id"`
	Amount     decimal.Decimal `json:"amount"`
	CheckIn    string          `json:"check_in" binding:"required"`
	CheckOut   string          `json:"check_out" binding:"required"`
}

func (h *Handler) Validate(c *gin.Context) {
	var req validateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	w, err := stay.Parse(req.CheckIn, req.CheckOut)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	roomTypeID := req.RoomTypeID
	if req.RoomID != 0 && h.rooms != nil {
		room, err := h.rooms.GetRoom(c.Request.Context(), req.RoomID)
		if err != nil {
			if errors.Is(err, catalog.ErrRoomNotFound) {
				response.Error(c, http.StatusNotFound, "NOT_FOUND", err.Error())
				return
			}
			response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load room")
			return
		}
		roomTypeID = room.RoomTypeID
	}
	if roomTypeID == 0 {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "room_type_id or room_id is required")
		return
	}

	res, err := h.service.Validate(c.Request.Context(), Request{
		Code:       req.Code,
		RoomTypeID: roomTypeID,
		Amount:     req.Amount,
		Window:     w,
	})
	if err != nil {
		if rej, ok := IsRejection(err); ok {
			response.ErrorWithDetails(c, http.StatusUnprocessableEntity, "PROMO_REJECTED", rej.Error(), gin.H{"reason": rej.Reason})
			return
		}
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to validate promo code")
		return
	}
	response.Success(c, http.StatusOK, res)
}

func (h *Handler) List(c *gin.Context) {
	codes, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list promo codes")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"promo_codes": codes})
}

func (h *Handler) Create(c *gin.Context) {
	var req Input
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	p, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"promo_code": p})
}

func (h *Handler) Update(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid promo code id")
		return
	}
	var req Input
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	p, err := h.service.Update(c.Request.Context(), uint(id), req)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"promo_code": p})
}

func (h *Handler) Deactivate(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid promo code id")
		return
	}
	if err := h.service.Deactivate(c.Request.Context(), uint(id)); err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deactivated": true})
}

func (h *Handler) RetryUsage(c *gin.Context) {
	n, err := h.service.RetryPendingUsage(c.Request.Context())
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retry promo usage")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"applied": n})
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, ErrNotFound):
		response.Error(c, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, ErrDuplicateCode):
		response.Error(c, http.StatusConflict, "DUPLICATE", err.Error())
	default:
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Promo code operation failed")
	}
}
