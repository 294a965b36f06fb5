package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"slotkeeper/pkg/client"
	"slotkeeper/pkg/config"
	"slotkeeper/pkg/logger"
	"strings"
	"testing"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoHandler struct{}

func (echoHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/echo", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
}

func testConfig() *config.Config {
	return &config.Config{
		Port:           "0",
		RateLimitRPS:   100,
		RateLimitBurst: 100,
		RequestTimeout: time.Second,
		IdempotencyTTL: time.Minute,
		MaxRequestSize: 1024,
		Log:            logger.Discard(),
		Client:         client.NewClient(),
	}
}

func TestApplication_HealthEndpoints(t *testing.T) {
	a := NewApplication(testConfig())
	a.SetApp(echoHandler{})
	defer a.rateLimiter.Stop()
	defer a.idempotencyStore.Stop()

	for _, path := range []string{"/health", "/ready"} {
		rec := httptest.NewRecorder()
		a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestApplication_MiddlewareChain(t *testing.T) {
	a := NewApplication(testConfig())
	a.SetApp(echoHandler{})
	defer a.rateLimiter.Stop()
	defer a.idempotencyStore.Stop()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/echo", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req = httptest.NewRequest(http.MethodPost, "/api/v1/echo", strings.NewReader(`{}`))
	rec = httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("down") }

func TestHealthHandler_ReadyUnavailable(t *testing.T) {
	router := httprouter.New()
	NewHealthHandler(failingPinger{}, logger.Discard()).RegisterRoutes(router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "unavailable")
}
