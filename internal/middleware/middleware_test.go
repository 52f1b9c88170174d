// internal/middleware/middleware_test.go
package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javajoker/couponx-backend/internal/utils"
)

func TestNegotiateLanguage(t *testing.T) {
	supported := []string{"en", "zh_TW"}

	tests := []struct {
		header string
		want   string
	}{
		{"", "en"},
		{"zh-TW,zh;q=0.9,en;q=0.8", "zh_TW"},
		{"zh-Hant", "zh_TW"},
		{"fr-FR, en-US;q=0.8", "en"},
		{"de", "en"},
		{"EN-gb", "en"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, negotiateLanguage(tt.header, supported, "en"), tt.header)
	}
}

func TestIPThrottle(t *testing.T) {
	throttle := NewIPThrottle(1, 2)
	now := time.Now()
	throttle.now = func() time.Time { return now }

	assert.True(t, throttle.Allow("10.0.0.1"))
	assert.True(t, throttle.Allow("10.0.0.1"))
	assert.False(t, throttle.Allow("10.0.0.1"))
	assert.True(t, throttle.Allow("10.0.0.2"), "buckets are per client")

	now = now.Add(5 * time.Minute)
	throttle.Allow("10.0.0.3")
	throttle.mtx.Lock()
	_, kept := throttle.visitors["10.0.0.1"]
	throttle.mtx.Unlock()
	assert.False(t, kept, "idle visitors are pruned")
}

func TestIPThrottleMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(NewIPThrottle(0, 1).Middleware())
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}

func TestAuthRequired(t *testing.T) {
	gin.SetMode(gin.TestMode)
	utils.SetJWTSecret("middleware-test")

	r := gin.New()
	r.GET("/me", AuthRequired(), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("user_id"))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	userID := uuid.New()
	token, err := utils.GenerateJWT(userID, "someone", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "bearer "+token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, userID.String(), w.Body.String())

	expired, err := utils.GenerateJWT(userID, "someone", -time.Minute)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+expired)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
