package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"hotelpms/internal/config"
	"hotelpms/internal/database"
	"hotelpms/internal/pkg/jwt"
)

const internalToken = "internal-test-token"

type testEnv struct {
	app        *App
	admin      string
	frontDesk  string
	accountant string
}

func setupTestApp(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.Connect(":memory:")
	require.NoError(t, err, "Failed to connect to test database")
	require.NoError(t, database.Migrate(db))

	cfg := &config.Config{
		AppEnv:          "test",
		JWTSecret:       "test_secret_key_32_characters_min",
		JWTIssuer:       "hotelpms",
		HotelLocation:   time.UTC,
		TaxFallbackName: "Tax",
		TaxFallbackRate: decimal.NewFromInt(18),
		SnowflakeNode:   1,
		RetryAfter:      2 * time.Second,
		InternalToken:   internalToken,
	}
	app, err := New(Options{Config: cfg, DB: db})
	require.NoError(t, err)

	env := &testEnv{app: app}
	env.admin = env.token(t, 1, jwt.RoleAdmin)
	env.frontDesk = env.token(t, 2, jwt.RoleFrontDesk)
	env.accountant = env.token(t, 3, jwt.RoleAccountant)
	return env
}

func (e *testEnv) token(t *testing.T, id int64, role string) string {
	tok, err := e.app.Tokens.GenerateToken(id, role, role+" user")
	require.NoError(t, err)
	return tok
}

func (e *testEnv) do(method, path string, body any, token string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.app.Router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) seed(t *testing.T) int64 {
	t.Helper()
	w := e.do(http.MethodPost, "/api/v1/room-types", map[string]any{
		"name": "Deluxe", "base_price": "4500", "max_guests": 2,
	}, e.admin)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	typeID := gjson.Get(w.Body.String(), "data.room_type.id").Int()

	w = e.do(http.MethodPost, "/api/v1/rooms", map[string]any{
		"number": "101", "floor": 1, "room_type_id": typeID,
	}, e.admin)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = e.do(http.MethodPost, "/api/v1/admin/tax-rules", map[string]any{
		"name": "GST", "percentage": "18", "position": 1,
	}, e.admin)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = e.do(http.MethodPost, "/api/v1/admin/promo-codes", map[string]any{
		"code": "SAVE10", "discount_type": "percentage", "value": "10", "usage_cap": 100,
	}, e.admin)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return typeID
}

func stayDates(offsetDays, nights int) (string, string) {
	in := time.Now().UTC().AddDate(0, 0, offsetDays)
	return in.Format("2006-01-02"), in.AddDate(0, 0, nights).Format("2006-01-02")
}

func TestHealth(t *testing.T) {
	e := setupTestApp(t)
	w := e.do(http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", gjson.Get(w.Body.String(), "data.status").String())
}

func TestBookingToLedgerFlow(t *testing.T) {
	e := setupTestApp(t)
	typeID := e.seed(t)
	checkIn, checkOut := stayDates(30, 2)

	w := e.do(http.MethodPost, "/api/v1/pricing/quote", map[string]any{
		"room_type_id": typeID, "check_in": checkIn, "check_out": checkOut, "promo_code": "SAVE10",
	}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "9558", gjson.Get(w.Body.String(), "data.pricing.total_amount").String())

	w = e.do(http.MethodPost, "/api/v1/bookings", map[string]any{
		"room_type_id": typeID,
		"check_in":     checkIn,
		"check_out":    checkOut,
		"adults":       2,
		"guest_name":   "Asha Rao",
		"guest_email":  "asha@example.com",
		"promo_code":   "SAVE10",
	}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	body := w.Body.String()
	bookingID := gjson.Get(body, "data.booking.id").Int()
	assert.Equal(t, "confirmed", gjson.Get(body, "data.booking.status").String())
	assert.Equal(t, "9558", gjson.Get(body, "data.booking.total_amount").String())

	paymentsPath := fmt.Sprintf("/api/v1/bookings/%d/payments", bookingID)
	w = e.do(http.MethodPost, paymentsPath, map[string]any{"amount": "5000", "method": "cash"}, e.frontDesk)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "partially_paid", gjson.Get(w.Body.String(), "data.payment_status").String())

	w = e.do(http.MethodGet, paymentsPath, nil, e.frontDesk)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), gjson.Get(w.Body.String(), "data.payments.#").Int())

	w = e.do(http.MethodGet, "/api/v1/accounts", nil, e.frontDesk)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = e.do(http.MethodGet, "/api/v1/accounts", nil, e.accountant)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	accounts := gjson.Get(w.Body.String(), "data.accounts")
	require.Equal(t, int64(1), accounts.Get("#").Int())
	accountID := accounts.Get("0.id").String()
	assert.Equal(t, "5000", accounts.Get("0.balance").String())

	w = e.do(http.MethodGet, "/api/v1/accounts/"+accountID+"/reconcile", nil, e.accountant)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, gjson.Get(w.Body.String(), "data.consistent").Bool())

	w = e.do(http.MethodPost, fmt.Sprintf("/api/v1/bookings/%d/cancel", bookingID), map[string]any{
		"reason": "guest request", "refund": true,
	}, e.frontDesk)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body = w.Body.String()
	assert.Equal(t, "cancelled", gjson.Get(body, "data.booking.status").String())
	assert.Equal(t, "refunded", gjson.Get(body, "data.booking.payment_status").String())

	w = e.do(http.MethodGet, "/api/v1/accounts/"+accountID, nil, e.accountant)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0", gjson.Get(w.Body.String(), "data.account.balance").String())
}

func TestRouteProtection(t *testing.T) {
	e := setupTestApp(t)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"staff list needs token", http.MethodGet, "/api/v1/bookings", "", http.StatusUnauthorized},
		{"front desk lists bookings", http.MethodGet, "/api/v1/bookings", e.frontDesk, http.StatusOK},
		{"admin passes staff routes", http.MethodGet, "/api/v1/bookings", e.admin, http.StatusOK},
		{"front desk cannot edit catalog", http.MethodPost, "/api/v1/room-types", e.frontDesk, http.StatusForbidden},
		{"accountant cannot edit promos", http.MethodGet, "/api/v1/admin/promo-codes", e.accountant, http.StatusForbidden},
		{"public room types", http.MethodGet, "/api/v1/room-types", "", http.StatusOK},
		{"public tax rules", http.MethodGet, "/api/v1/tax-rules", "", http.StatusOK},
		{"internal needs token", http.MethodPost, "/internal/ledger/reconcile", "", http.StatusUnauthorized},
		{"internal rejects staff token", http.MethodPost, "/internal/ledger/reconcile", e.admin, http.StatusForbidden},
		{"internal reconcile", http.MethodPost, "/internal/ledger/reconcile", internalToken, http.StatusOK},
		{"internal promo retry", http.MethodPost, "/internal/promos/retry-usage", internalToken, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := e.do(tt.method, tt.path, nil, tt.token)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestBookingSoldOutThroughRouter(t *testing.T) {
	e := setupTestApp(t)
	typeID := e.seed(t)
	checkIn, checkOut := stayDates(10, 1)

	body := map[string]any{
		"room_type_id": typeID, "check_in": checkIn, "check_out": checkOut,
		"adults": 1, "guest_name": "Guest", "guest_email": "guest@example.com",
	}
	w := e.do(http.MethodPost, "/api/v1/bookings", body, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = e.do(http.MethodGet, fmt.Sprintf("/api/v1/room-types/%d?check_in=%s&check_out=%s", typeID, checkIn, checkOut), nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(0), gjson.Get(w.Body.String(), "data.room_type.available_room_count").Int())

	w = e.do(http.MethodPost, "/api/v1/bookings", body, "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "ROOM_UNAVAILABLE", gjson.Get(w.Body.String(), "error.code").String())
}
