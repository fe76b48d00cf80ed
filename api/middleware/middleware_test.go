package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/blnkfinance/artify/config"
)

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rps, burst, cleanup := 1.0, 2, 60
	conf := &config.Configuration{RateLimit: config.RateLimitConfig{
		RequestsPerSecond:  &rps,
		Burst:              &burst,
		CleanupIntervalSec: &cleanup,
	}}

	router := gin.New()
	router.Use(RateLimitMiddleware(conf))
	router.GET("/styles", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/styles", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		codes = append(codes, resp.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRateLimitMiddleware_ExemptRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rps, burst := 1.0, 1
	conf := &config.Configuration{RateLimit: config.RateLimitConfig{RequestsPerSecond: &rps, Burst: &burst}}

	router := gin.New()
	router.Use(RateLimitMiddleware(conf, "/generations/:id"))
	router.GET("/generations/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.POST("/generations", func(c *gin.Context) { c.Status(http.StatusAccepted) })

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/generations/gen_1", nil)
		req.RemoteAddr = "10.0.0.2:1234"
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		assert.Equal(t, http.StatusOK, resp.Code)
	}

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/generations", nil)
		req.RemoteAddr = "10.0.0.2:1234"
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		codes = append(codes, resp.Code)
	}
	assert.Equal(t, []int{http.StatusAccepted, http.StatusTooManyRequests}, codes)
}

func TestRateLimitMiddleware_Disabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RateLimitMiddleware(&config.Configuration{}))
	router.GET("/styles", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 5; i++ {
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/styles", nil))
		assert.Equal(t, http.StatusOK, resp.Code)
	}
}

func TestSecretKeyAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name     string
		secret   string
		header   string
		expected int
	}{
		{"not configured", "", "anything", http.StatusInternalServerError},
		{"missing header", "s3cret", "", http.StatusUnauthorized},
		{"wrong key", "s3cret", "guess", http.StatusUnauthorized},
		{"valid key", "s3cret", "s3cret", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.PUT("/featured", SecretKeyAuthMiddleware(tt.secret), func(c *gin.Context) { c.Status(http.StatusOK) })
			req := httptest.NewRequest(http.MethodPut, "/featured", nil)
			if tt.header != "" {
				req.Header.Set(KeyHeader, tt.header)
			}
			resp := httptest.NewRecorder()
			router.ServeHTTP(resp, req)
			assert.Equal(t, tt.expected, resp.Code)
		})
	}
}
