package booking

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"hotelpms/internal/domain/allocation"
	"hotelpms/internal/domain/catalog"
	"hotelpms/internal/domain/ledger"
	"hotelpms/internal/domain/pricing"
	"hotelpms/internal/domain/promo"
	"hotelpms/internal/middleware"
	"hotelpms/internal/pkg/response"
	"hotelpms/internal/pkg/stay"
)

const idempotencyHeader = "Idempotency-Key"

type Handler struct {
	service    *Service
	retryAfter time.Duration
}

func NewHandler(service *Service, retryAfter time.Duration) *Handler {
	return &Handler{service: service, retryAfter: retryAfter}
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

type paymentStatusRequest struct {
	PaymentStatus string `json:"payment_status" binding:"required"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
	Refund bool   `json:"refund"`
}

// CreateBooking POST /bookings
func (h *Handler) CreateBooking(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if key := c.GetHeader(idempotencyHeader); key != "" {
		req.IntentKey = key
	}
	req.Actor = middleware.Actor(c)

	res, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	response.Success(c, status, res)
}

// ListBookings GET /bookings
func (h *Handler) ListBookings(c *gin.Context) {
	f := ListFilter{
		Status:        c.Query("status"),
		PaymentStatus: c.Query("payment_status"),
		Query:         c.Query("q"),
	}
	f.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	f.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if v := c.Query("room_type_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "room_type_id must be a number")
			return
		}
		f.RoomTypeID = uint(id)
	}
	for name, dst := range map[string]**time.Time{"from": &f.From, "to": &f.To} {
		v := c.Query(name)
		if v == "" {
			continue
		}
		t, err := stay.ParseDate(v)
		if err != nil {
			response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
			return
		}
		*dst = &t
	}

	items, total, err := h.service.List(c.Request.Context(), f)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"bookings": items, "total": total})
}

// GetBooking GET /bookings/:id
func (h *Handler) GetBooking(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	b, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"booking": b, "pricing": h.service.Pricing(b)})
}

// UpdateGuest PATCH /bookings/:id/guest
func (h *Handler) UpdateGuest(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req GuestUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	b, err := h.service.UpdateGuest(c.Request.Context(), id, req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"booking": b})
}

// PreviewStayChange POST /bookings/:id/stay/preview
func (h *Handler) PreviewStayChange(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req StayChange
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	preview, err := h.service.PreviewStayChange(c.Request.Context(), id, req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, preview)
}

// ChangeStay PATCH /bookings/:id/stay
func (h *Handler) ChangeStay(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req StayChange
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	res, err := h.service.ChangeStay(c.Request.Context(), id, req, middleware.Actor(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, res)
}

// UpdateStatus PATCH /bookings/:id/status
func (h *Handler) UpdateStatus(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "status is required")
		return
	}
	b, err := h.service.TransitionStatus(c.Request.Context(), id, req.Status, middleware.Actor(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"booking": b})
}

// UpdatePaymentStatus PATCH /bookings/:id/payment-status
func (h *Handler) UpdatePaymentStatus(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req paymentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "payment_status is required")
		return
	}
	res, err := h.service.UpdatePaymentStatus(c.Request.Context(), id, req.PaymentStatus, middleware.Actor(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, res)
}

// CancelBooking POST /bookings/:id/cancel
func (h *Handler) CancelBooking(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req cancelRequest
	if err := middleware.BindOptionalJSON(c, &req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	res, err := h.service.Cancel(c.Request.Context(), id, CancelRequest{Reason: req.Reason, Refund: req.Refund, Actor: middleware.Actor(c)})
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, res)
}

func (h *Handler) writeError(c *gin.Context, err error) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid booking data", verr.Fields)
		return
	}
	if _, ok := promo.IsRejection(err); ok || errors.Is(err, pricing.ErrInvalidInput) || errors.Is(err, catalog.ErrRoomTypeNotFound) {
		pricing.WriteQuoteError(c, err)
		return
	}

	switch {
	case errors.Is(err, ErrNotFound):
		response.Error(c, http.StatusNotFound, "NOT_FOUND", "Booking not found")
	case allocation.IsContention(err):
		response.Error(c, http.StatusConflict, "ROOM_UNAVAILABLE", "No room of this type is free for the selected dates; choose other dates or another room type")
	case errors.Is(err, promo.ErrUsageExhausted):
		response.Error(c, http.StatusConflict, "PROMO_EXHAUSTED", "Promo code has no uses left; remove it or use another code")
	case errors.Is(err, ErrInvalidStatusTransition):
		response.Error(c, http.StatusConflict, "INVALID_STATUS_TRANSITION", err.Error())
	case errors.Is(err, ErrInvalidPaymentStatus):
		response.Error(c, http.StatusBadRequest, "INVALID_PAYMENT_STATUS", err.Error())
	case errors.Is(err, ErrBookingClosed):
		response.Error(c, http.StatusConflict, "BOOKING_CLOSED", ErrBookingClosed.Error())
	case errors.Is(err, ErrIntentKeyConflict):
		response.Error(c, http.StatusConflict, "IDEMPOTENCY_CONFLICT", "Idempotency-Key was already used for a different booking")
	case errors.Is(err, ErrConcurrentChange):
		response.Error(c, http.StatusConflict, "CONFLICT", "Booking was changed by another request; reload and try again")
	case errors.Is(err, ErrTemporary):
		response.Retry(c, h.retryAfter, "Temporary error, please retry with the same Idempotency-Key")
	case errors.Is(err, ledger.ErrLedgerIntegrity):
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, "LEDGER_INTEGRITY", "Payments could not be reversed; nothing was changed")
	default:
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Booking operation failed")
	}
}

func idParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		response.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid booking id")
		return 0, false
	}
	return uint(id), true
}
