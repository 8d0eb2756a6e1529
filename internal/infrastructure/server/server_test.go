package server

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parrot/core/internal/infrastructure/config"
	"github.com/parrot/core/internal/infrastructure/logger"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)

	return &config.Config{
		App:    config.AppConfig{Name: "Parrot", Version: "test", Environment: "development"},
		Server: config.ServerConfig{Host: "127.0.0.1", Port: 0},
		Static: config.StaticConfig{
			Root:      root,
			ChunkSize: 64 * 1024,
		},
		Converter: config.ConverterConfig{
			PluginPath: filepath.Join(root, "mml_converter.so"),
			Command:    filepath.Join(root, "mml_converter"),
			Timeout:    time.Second,
		},
		Security: config.SecurityConfig{
			CORSAllowedOrigins: "*",
			RateLimitRequests:  1000,
			RateLimitWindow:    time.Minute,
		},
		Metrics: config.MetricsConfig{Enabled: true},
	}
}

func newTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	srv, err := New(cfg, logger.NewNop())
	require.NoError(t, err)
	return srv
}

func do(srv *Server, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, req)
	return rec
}

func TestListenerTimeoutsApplied(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.ReadTimeout = 7 * time.Second
	cfg.Server.WriteTimeout = 11 * time.Second
	cfg.Server.IdleTimeout = 13 * time.Second

	srv := newTestServer(t, cfg)

	assert.Equal(t, 7*time.Second, srv.Echo().Server.ReadTimeout)
	assert.Equal(t, 11*time.Second, srv.Echo().Server.WriteTimeout)
	assert.Equal(t, 13*time.Second, srv.Echo().Server.IdleTimeout)
}

func TestRegisteredRoutesPrecedeStaticPipeline(t *testing.T) {
	cfg := testConfig(t)
	// A file shadowing the health route must never win over it.
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Static.Root, "health"), []byte("shadow"), 0o644))

	srv := newTestServer(t, cfg)

	rec := do(srv, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status"`)
	assert.NotContains(t, rec.Body.String(), "shadow")
}

func TestStaticPipelineEndToEnd(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Static.Root, "hello.txt"), []byte("hello"), 0o644))

	srv := newTestServer(t, cfg)

	rec := do(srv, http.MethodGet, "/hello.txt")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hello", rec.Body.String())
	assert.Equal(t, "public, max-age=60", rec.Header().Get("Cache-Control"))

	rec = do(srv, http.MethodGet, "/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Not Found", rec.Body.String())
}

func TestPanickingRouteHandlerIsCaught(t *testing.T) {
	cfg := testConfig(t)
	srv := newTestServer(t, cfg)

	srv.Echo().GET("/api/boom", func(c echo.Context) error {
		panic("handler bug")
	})

	rec := do(srv, http.MethodGet, "/api/boom")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "handler bug")
}

func TestConvertEndpointValidation(t *testing.T) {
	cfg := testConfig(t)
	srv := newTestServer(t, cfg)

	req := httptest.NewRequest(http.MethodPost, "/api/convert", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
}

func TestMetricsEndpoint(t *testing.T) {
	cfg := testConfig(t)
	srv := newTestServer(t, cfg)

	// Counters only appear once a labeled series exists, so drive one
	// request through the middleware before scraping.
	do(srv, http.MethodGet, "/health")

	rec := do(srv, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestReadinessReflectsRoot(t *testing.T) {
	cfg := testConfig(t)
	srv := newTestServer(t, cfg)

	rec := do(srv, http.MethodGet, "/ready")
	assert.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, os.RemoveAll(cfg.Static.Root))
	rec = do(srv, http.MethodGet, "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
