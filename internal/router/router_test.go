package router

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vivi-tora/mfc/internal/cache"
	"github.com/vivi-tora/mfc/internal/handler"
	"github.com/vivi-tora/mfc/internal/metrics"
	"github.com/vivi-tora/mfc/internal/middleware"
	"github.com/vivi-tora/mfc/internal/repository"
	"github.com/vivi-tora/mfc/internal/service"
	"github.com/vivi-tora/mfc/internal/signer"
)

func newTestRouter(t *testing.T, rateLimit int) http.Handler {
	t.Helper()

	store, err := repository.NewFileLogRepository(filepath.Join(t.TempDir(), "app.log"), false)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	mem := cache.NewMemoryCache(time.Minute)
	t.Cleanup(func() { mem.Close() })

	m := metrics.New()
	sub := service.NewSubmitter(service.SubmitterConfig{Endpoint: "http://127.0.0.1:1"}, store, m)
	batches := service.NewBatchService(sub, mem, service.BatchConfig{
		Credentials: signer.Credentials{PublicKey: "pub", PrivateKey: "priv"},
	}, m)

	return New(Config{
		Handler:             handler.New("test", handler.NamedPinger{Name: "log_store", Pinger: store}),
		AvailabilityHandler: handler.NewAvailabilityHandler(batches, 1<<20),
		BatchHandler:        handler.NewBatchHandler(batches),
		LogsHandler:         handler.NewLogsHandler(store),
		AdminHandler:        handler.NewAdminHandler(batches, "file", "memory"),
		AuthMiddleware:      middleware.NewAuthMiddleware(middleware.AuthConfig{APIKeys: []string{"secret"}}),
		Metrics:             m,
		RateLimit:           rateLimit,
	})
}

func get(h http.Handler, path, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRouter_PublicAndProtectedRoutes(t *testing.T) {
	r := newTestRouter(t, 0)

	assert.Equal(t, http.StatusOK, get(r, "/health", "").Code)
	assert.Equal(t, http.StatusOK, get(r, "/ready", "").Code)

	assert.Equal(t, http.StatusUnauthorized, get(r, "/api/v1/logs", "").Code)
	assert.Equal(t, http.StatusOK, get(r, "/api/v1/logs", "secret").Code)
	assert.Equal(t, http.StatusOK, get(r, "/api/v1/admin/stats", "secret").Code)
	assert.Equal(t, http.StatusNotFound, get(r, "/api/v1/batches/unknown", "secret").Code)
	assert.Equal(t, http.StatusNotFound, get(r, "/nowhere", "").Code)

	rr := get(r, "/health", "")
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))

	metricsBody := get(r, "/metrics", "").Body.String()
	assert.Contains(t, metricsBody, `mfc_http_requests_total{code="200",route="/health"}`)
}

func TestRouter_RateLimit(t *testing.T) {
	r := newTestRouter(t, 2)

	assert.Equal(t, http.StatusOK, get(r, "/api/v1/logs", "secret").Code)
	assert.Equal(t, http.StatusOK, get(r, "/api/v1/logs", "secret").Code)

	rr := get(r, "/api/v1/logs", "secret")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Contains(t, rr.Body.String(), "RATE_LIMITED")

	assert.Equal(t, http.StatusOK, get(r, "/health", "").Code)
}
