package ledger

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"hotelpms/internal/middleware"
	"hotelpms/internal/pkg/dberr"
	"hotelpms/internal/pkg/response"
)

type Handler struct {
	service    *Service
	retryAfter time.Duration
}

func NewHandler(service *Service, retryAfter time.Duration) *Handler {
	return &Handler{service: service, retryAfter: retryAfter}
}

type paymentRequest struct {
	AccountID  string          `json:"account_id"`
	Amount     decimal.Decimal `json:"amount"`
	Method     string          `json:"method" binding:"required"`
	MethodNote string          `json:"method_note"`
	ReceivedAt *time.Time      `json:"received_at"`
	Notes      string          `json:"notes"`
}

type editPaymentRequest struct {
	Amount     decimal.Decimal `json:"amount"`
	Method     string          `json:"method"`
	MethodNote string          `json:"method_note"`
	Notes      string          `json:"notes"`
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

type entryRequest struct {
	Amount       decimal.Decimal `json:"amount"`
	Category     string          `json:"category"`
	CategoryNote string          `json:"category_note"`
	Notes        string          `json:"notes"`
}

type transferRequest struct {
	FromAccountID string          `json:"from_account_id" binding:"required"`
	ToAccountID   string          `json:"to_account_id" binding:"required"`
	Amount        decimal.Decimal `json:"amount"`
	Notes         string          `json:"notes"`
}

func (h *Handler) RecordPayment(c *gin.Context) {
	bookingID, ok := bookingParam(c)
	if !ok {
		return
	}
	var req paymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	var accountID uuid.UUID
	if req.AccountID != "" {
		id, err := uuid.Parse(req.AccountID)
		if err != nil {
			response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid account_id")
			return
		}
		accountID = id
	}
	var receivedAt time.Time
	if req.ReceivedAt != nil {
		receivedAt = *req.ReceivedAt
	}

	res, err := h.service.RecordPayment(c.Request.Context(), PaymentRequest{
		BookingID:  bookingID,
		AccountID:  accountID,
		Amount:     req.Amount,
		Method:     req.Method,
		MethodNote: req.MethodNote,
		ReceivedAt: receivedAt,
		Notes:      req.Notes,
		Actor:      middleware.Actor(c),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, res)
}

func (h *Handler) ListBookingPayments(c *gin.Context) {
	bookingID, ok := bookingParam(c)
	if !ok {
		return
	}
	includeReversed := c.Query("include_reversed") == "true"
	payments, err := h.service.ListBookingPayments(c.Request.Context(), bookingID, includeReversed)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"payments": payments})
}

func (h *Handler) EditPayment(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req editPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	res, err := h.service.EditPayment(c.Request.Context(), id, EditRequest{
		Amount:     req.Amount,
		Method:     req.Method,
		MethodNote: req.MethodNote,
		Notes:      req.Notes,
		Actor:      middleware.Actor(c),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, res)
}

func (h *Handler) DeletePayment(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req reasonRequest
	if err := middleware.BindOptionalJSON(c, &req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	res, err := h.service.DeletePayment(c.Request.Context(), id, req.Reason, middleware.Actor(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, res)
}

func (h *Handler) ListAccounts(c *gin.Context) {
	if _, err := h.service.GetOrCreateMainAccount(c.Request.Context()); err != nil {
		h.writeError(c, err)
		return
	}
	accounts, err := h.service.ListAccounts(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"accounts": accounts})
}

func (h *Handler) GetAccount(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	acct, err := h.service.GetAccount(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"account": acct})
}

func (h *Handler) ListTransactions(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	txns, total, err := h.service.ListTransactions(c.Request.Context(), id, limit, offset)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"transactions": txns, "total": total})
}

func (h *Handler) Reconcile(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	res, err := h.service.Reconcile(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, res)
}

func (h *Handler) ReconcileAll(c *gin.Context) {
	bad, err := h.service.ReconcileAll(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"inconsistent": bad, "consistent": len(bad) == 0})
}

func (h *Handler) Deposit(c *gin.Context) {
	h.entry(c, h.service.Deposit)
}

func (h *Handler) Withdraw(c *gin.Context) {
	h.entry(c, h.service.Withdraw)
}

func (h *Handler) entry(c *gin.Context, apply func(context.Context, uuid.UUID, EntryRequest) (*Effect, error)) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req entryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	effect, err := apply(c.Request.Context(), id, EntryRequest{
		Amount:       req.Amount,
		Category:     req.Category,
		CategoryNote: req.CategoryNote,
		Notes:        req.Notes,
		Actor:        middleware.Actor(c),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, effect)
}

func (h *Handler) Transfer(c *gin.Context) {
	var req transferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	from, err1 := uuid.Parse(req.FromAccountID)
	to, err2 := uuid.Parse(req.ToAccountID)
	if err1 != nil || err2 != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid account id")
		return
	}
	effects, err := h.service.Transfer(c.Request.Context(), TransferRequest{
		FromAccountID: from,
		ToAccountID:   to,
		Amount:        req.Amount,
		Notes:         req.Notes,
		Actor:         middleware.Actor(c),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"effects": effects})
}

func (h *Handler) ReverseTransaction(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req reasonRequest
	if err := middleware.BindOptionalJSON(c, &req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	effects, err := h.service.ReverseTransaction(c.Request.Context(), id, req.Reason, middleware.Actor(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"effects": effects})
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrInvalidMethod), errors.Is(err, ErrMethodNote),
		errors.Is(err, ErrInvalidCategory), errors.Is(err, ErrSameAccount):
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, ErrInsufficientFunds):
		response.Error(c, http.StatusUnprocessableEntity, "INSUFFICIENT_FUNDS", err.Error())
	case errors.Is(err, ErrAccountNotFound), errors.Is(err, ErrPaymentNotFound),
		errors.Is(err, ErrTransactionNotFound), errors.Is(err, ErrBookingNotFound):
		response.Error(c, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, ErrBookingClosed), errors.Is(err, ErrPaymentReversed),
		errors.Is(err, ErrAlreadyReversed), errors.Is(err, ErrNotReversible):
		response.Error(c, http.StatusConflict, "CONFLICT", err.Error())
	case dberr.IsTransient(err):
		response.Retry(c, h.retryAfter, "Temporary error, please retry")
	case errors.Is(err, ErrLedgerIntegrity):
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, "LEDGER_INTEGRITY", "Ledger could not be updated; nothing was changed")
	default:
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Ledger operation failed")
	}
}

func bookingParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		response.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid booking id")
		return 0, false
	}
	return uint(id), true
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}
