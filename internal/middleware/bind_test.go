package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestBindOptionalJSON(t *testing.T) {
	type body struct {
		Reason string `json:"reason"`
		Refund bool   `json:"refund"`
	}
	router := gin.New()
	router.POST("/cancel", func(c *gin.Context) {
		var req body
		if err := BindOptionalJSON(c, &req); err != nil {
			c.String(http.StatusBadRequest, "bad")
			return
		}
		c.JSON(http.StatusOK, req)
	})

	tests := []struct {
		name string
		body string
		code int
	}{
		{"empty body", "", http.StatusOK},
		{"valid body", `{"reason":"guest request","refund":true}`, http.StatusOK},
		{"wrong type", `{"refund":"yes"}`, http.StatusBadRequest},
		{"malformed", `{"refund":`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/cancel", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.code, w.Code, w.Body.String())
		})
	}
}
