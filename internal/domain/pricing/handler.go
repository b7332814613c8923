package pricing

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"hotelpms/internal/domain/catalog"
	"hotelpms/internal/domain/promo"
	"hotelpms/internal/pkg/response"
	"hotelpms/internal/pkg/stay"
)

type Handler struct {
	assembler *Assembler
}

func NewHandler(assembler *Assembler) *Handler {
	return &Handler{assembler: assembler}
}

type quoteRequest struct {
	RoomTypeID uint   `json:"room_type_id" binding:"required"`
	CheckIn    string `json:"check_in" binding:"required"`
	CheckOut   string `json:"check_out" binding:"required"`
	RoomCount  int    `json:"room_count"`
	PromoCode  string `json:"promo_code"`
}

func (h *Handler) Quote(c *gin.Context) {
	var req quoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	w, err := stay.Parse(req.CheckIn, req.CheckOut)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	if req.RoomCount == 0 {
		req.RoomCount = 1
	}

	q, err := h.assembler.Quote(c.Request.Context(), QuoteRequest{
		RoomTypeID: req.RoomTypeID,
		Window:     w,
		RoomCount:  req.RoomCount,
		PromoCode:  req.PromoCode,
	})
	if err != nil {
		WriteQuoteError(c, err)
		return
	}
	response.Success(c, http.StatusOK, q)
}

// WriteQuoteError maps quote failures; booking handlers reuse it.
func WriteQuoteError(c *gin.Context, err error) {
	if rej, ok := promo.IsRejection(err); ok {
		response.ErrorWithDetails(c, http.StatusUnprocessableEntity, "PROMO_REJECTED", rej.Error(), gin.H{"reason": rej.Reason})
		return
	}
	switch {
	case errors.Is(err, ErrInvalidInput):
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, catalog.ErrRoomTypeNotFound):
		response.Error(c, http.StatusNotFound, "NOT_FOUND", err.Error())
	default:
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to compute price")
	}
}

func (h *Handler) RegisterRoutes(public *gin.RouterGroup) {
	public.POST("/pricing/quote", h.Quote)
}
