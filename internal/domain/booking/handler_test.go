package booking

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
)

func setupTestRouter(t *testing.T, rooms ...string) (*gin.Engine, *fixture) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	f := setup(t, rooms...)
	h := NewHandler(f.svc, 0)

	r := gin.New()
	v1 := r.Group("/api/v1")
	h.RegisterRoutes(v1)
	h.RegisterStaffRoutes(v1)
	return r, f
}

func doRequest(r http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type envelope[T any] struct {
	Success bool `json:"success"`
	Data    T    `json:"data"`
	Error   struct {
		Code    string            `json:"code"`
		Details map[string]string `json:"details"`
	} `json:"error"`
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) envelope[T] {
	t.Helper()
	var env envelope[T]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func bookingBody(roomTypeID uint) map[string]any {
	return map[string]any{
		"room_type_id": roomTypeID,
		"check_in":     "2026-07-01",
		"check_out":    "2026-07-03",
		"adults":       2,
		"guest_name":   "Asha Rao",
		"guest_email":  "asha@example.com",
		"promo_code":   "SAVE10",
	}
}

func TestHandlerCreateIsIdempotent(t *testing.T) {
	r, f := setupTestRouter(t)
	key := map[string]string{idempotencyHeader: "req-1"}

	w := doRequest(r, http.MethodPost, "/api/v1/bookings", bookingBody(f.deluxe.ID), key)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	first := decode[CreateResult](t, w)
	assert.True(t, first.Data.Booking.TotalAmount.Equal(d("9558")))
	assert.Equal(t, "anonymous", first.Data.Booking.CreatedBy)

	w = doRequest(r, http.MethodPost, "/api/v1/bookings", bookingBody(f.deluxe.ID), key)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	second := decode[CreateResult](t, w)
	assert.True(t, second.Data.Replayed)
	assert.Equal(t, first.Data.Booking.ID, second.Data.Booking.ID)
}

func TestHandlerCreateErrors(t *testing.T) {
	r, f := setupTestRouter(t, "101")

	body := bookingBody(f.deluxe.ID)
	body["children"] = 2
	w := doRequest(r, http.MethodPost, "/api/v1/bookings", body, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	env := decode[any](t, w)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	assert.Contains(t, env.Error.Details, "guests")

	body = bookingBody(f.deluxe.ID)
	body["promo_code"] = "NOPE"
	w = doRequest(r, http.MethodPost, "/api/v1/bookings", body, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "PROMO_REJECTED", decode[any](t, w).Error.Code)

	w = doRequest(r, http.MethodPost, "/api/v1/bookings", bookingBody(99), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(r, http.MethodPost, "/api/v1/bookings", bookingBody(f.deluxe.ID), nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = doRequest(r, http.MethodPost, "/api/v1/bookings", bookingBody(f.deluxe.ID), nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "ROOM_UNAVAILABLE", decode[any](t, w).Error.Code)
}

func TestHandlerLifecycle(t *testing.T) {
	r, f := setupTestRouter(t)
	b := f.book(t, f.request("2026-07-01", "2026-07-03"))
	base := fmt.Sprintf("/api/v1/bookings/%d", b.ID)

	w := doRequest(r, http.MethodGet, base, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"pricing"`)

	w = doRequest(r, http.MethodPost, base+"/stay/preview", map[string]any{"check_out": "2026-07-04"}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	preview := decode[StayPreview](t, w)
	assert.True(t, preview.Data.Delta.Equal(d("5310")))

	w = doRequest(r, http.MethodPatch, base+"/status", map[string]any{"status": StatusCheckedOut}, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "INVALID_STATUS_TRANSITION", decode[any](t, w).Error.Code)

	w = doRequest(r, http.MethodPatch, base+"/payment-status", map[string]any{"payment_status": "paid"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(r, http.MethodPost, base+"/cancel", map[string]any{"reason": "duplicate", "refund": true}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	cancelled := decode[CancelResult](t, w)
	assert.Equal(t, StatusCancelled, cancelled.Data.Booking.Status)

	w = doRequest(r, http.MethodPatch, base+"/stay", map[string]any{"check_out": "2026-07-04"}, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "BOOKING_CLOSED", decode[any](t, w).Error.Code)

	w = doRequest(r, http.MethodGet, "/api/v1/bookings/abc", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = doRequest(r, http.MethodGet, "/api/v1/bookings/999", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(r, http.MethodGet, "/api/v1/bookings?status=cancelled", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":1`)
}

func TestHandlerCancelRejectsMalformedBody(t *testing.T) {
	r, f := setupTestRouter(t)
	b := f.book(t, f.request("2026-07-01", "2026-07-03"))
	path := fmt.Sprintf("/api/v1/bookings/%d/cancel", b.ID)

	w := doRequest(r, http.MethodPost, path, map[string]any{"refund": "yes"}, nil)
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	assert.Equal(t, "VALIDATION_ERROR", decode[any](t, w).Error.Code)
	assert.Equal(t, StatusConfirmed, f.reload(t, b.ID).Status)
	assert.EqualValues(t, 2, f.nights(t, b.ID))

	w = doRequest(r, http.MethodPost, path, nil, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, StatusCancelled, f.reload(t, b.ID).Status)
}

func TestHandlerCreateIntentKeyConflict(t *testing.T) {
	r, f := setupTestRouter(t)
	key := map[string]string{idempotencyHeader: "req-9"}

	w := doRequest(r, http.MethodPost, "/api/v1/bookings", bookingBody(f.deluxe.ID), key)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	body := bookingBody(f.deluxe.ID)
	body["guest_email"] = "mallory@example.com"
	w = doRequest(r, http.MethodPost, "/api/v1/bookings", body, key)
	require.Equal(t, http.StatusConflict, w.Code, w.Body.String())
	assert.Equal(t, "IDEMPOTENCY_CONFLICT", decode[any](t, w).Error.Code)
	assert.NotContains(t, w.Body.String(), "asha@example.com")
	assert.NotContains(t, w.Body.String(), "Asha Rao")
}
