package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupTestRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	svc, db := setupTestService(t)
	h := NewHandler(svc, 0)

	r := gin.New()
	v1 := r.Group("/api/v1")
	h.RegisterPaymentRoutes(v1)
	h.RegisterAccountingRoutes(v1)
	return r, db
}

func doJSONRequest(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type envelope[T any] struct {
	Success bool `json:"success"`
	Data    T    `json:"data"`
	Error   struct {
		Code string `json:"code"`
	} `json:"error"`
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) envelope[T] {
	t.Helper()
	var env envelope[T]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func TestPaymentEndpointsFlow(t *testing.T) {
	r, db := setupTestRouter(t)
	bookingID := createBooking(t, db, "9558")
	base := fmt.Sprintf("/api/v1/bookings/%d/payments", bookingID)

	w := doJSONRequest(r, http.MethodPost, base, map[string]any{"amount": "-1", "method": "cash"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSONRequest(r, http.MethodPost, "/api/v1/bookings/999/payments", map[string]any{"amount": "10", "method": "cash"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSONRequest(r, http.MethodPost, base, map[string]any{"amount": "5000", "method": "cash"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	first := decode[PaymentResult](t, w)
	assert.Equal(t, PaymentStatusPartiallyPaid, first.Data.PaymentStatus)

	w = doJSONRequest(r, http.MethodPut, "/api/v1/payments/"+first.Data.Payment.ID.String(), map[string]any{"amount": "9558"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	edited := decode[PaymentResult](t, w)
	assert.Equal(t, PaymentStatusPaid, edited.Data.PaymentStatus)
	assert.Equal(t, "4558", edited.Data.BalanceDelta.String())

	w = doJSONRequest(r, http.MethodDelete, "/api/v1/payments/"+first.Data.Payment.ID.String(), nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSONRequest(r, http.MethodDelete, "/api/v1/payments/"+edited.Data.Payment.ID.String(), map[string]any{"reason": "duplicate"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, PaymentStatusPending, decode[PaymentResult](t, w).Data.PaymentStatus)

	w = doJSONRequest(r, http.MethodGet, base+"?include_reversed=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[struct {
		Payments []Payment `json:"payments"`
	}](t, w).Data.Payments, 2)

	w = doJSONRequest(r, http.MethodPut, "/api/v1/payments/not-a-uuid", map[string]any{"amount": "1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAccountEndpoints(t *testing.T) {
	r, _ := setupTestRouter(t)

	w := doJSONRequest(r, http.MethodGet, "/api/v1/accounts", nil)
	require.Equal(t, http.StatusOK, w.Code)
	accounts := decode[struct {
		Accounts []Account `json:"accounts"`
	}](t, w).Data.Accounts
	require.Len(t, accounts, 1)
	id := accounts[0].ID.String()

	w = doJSONRequest(r, http.MethodPost, "/api/v1/accounts/"+id+"/deposit", map[string]any{"amount": "300"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = doJSONRequest(r, http.MethodPost, "/api/v1/accounts/"+id+"/withdraw", map[string]any{"amount": "500"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "INSUFFICIENT_FUNDS", decode[any](t, w).Error.Code)

	w = doJSONRequest(r, http.MethodGet, "/api/v1/accounts/"+id+"/transactions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":1`)

	w = doJSONRequest(r, http.MethodGet, "/api/v1/accounts/"+id+"/reconcile", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[ReconcileResult](t, w).Data.Consistent)

	w = doJSONRequest(r, http.MethodGet, "/api/v1/accounts/reconcile", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"consistent":true`)
}

func TestDeletePaymentRejectsMalformedBody(t *testing.T) {
	r, db := setupTestRouter(t)
	bookingID := createBooking(t, db, "9558")

	w := doJSONRequest(r, http.MethodPost, fmt.Sprintf("/api/v1/bookings/%d/payments", bookingID), map[string]any{"amount": "9558", "method": "cash"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	paid := decode[PaymentResult](t, w)
	path := "/api/v1/payments/" + paid.Data.Payment.ID.String()

	w = doJSONRequest(r, http.MethodDelete, path, map[string]any{"reason": 42})
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	assert.Equal(t, "VALIDATION_ERROR", decode[any](t, w).Error.Code)

	var stored stubBooking
	require.NoError(t, db.First(&stored, bookingID).Error)
	assert.Equal(t, PaymentStatusPaid, stored.PaymentStatus)

	w = doJSONRequest(r, http.MethodDelete, path, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, PaymentStatusPending, decode[PaymentResult](t, w).Data.PaymentStatus)
}
