package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/imuhira/backend/internal/auth"
	"github.com/imuhira/backend/internal/handlers"
	"github.com/imuhira/backend/internal/logger"
	"github.com/imuhira/backend/internal/metrics"
	"github.com/imuhira/backend/internal/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// None of these tests reach storage, so the handler runs without a store.
func baseConfig() RouterConfig {
	return RouterConfig{
		Debates:        handlers.NewDebateHandler(nil, nil, logger.Nop(), nil, false),
		AllowedOrigins: []string{"http://localhost:3000"},
		RateLimiter:    middleware.NewRateLimiter(5),
		Log:            logger.Nop(),
	}
}

func serve(r http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body handlers.ErrorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Expected JSON error body, got %q", rec.Body.String())
	}
	return body.Error
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	r := NewRouter(baseConfig())

	for _, path := range []string{"/api/debates", "/api/debates/1", "/api/public/debates/some-slug"} {
		rec := serve(r, http.MethodPatch, path, "")
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("PATCH %s status = %d, want 405", path, rec.Code)
			continue
		}
		if msg := errorMessage(t, rec); msg != "Method not allowed" {
			t.Errorf("PATCH %s error = %q", path, msg)
		}
	}
}

func TestRouter_Basics(t *testing.T) {
	r := NewRouter(baseConfig())

	if rec := serve(r, http.MethodGet, "/health", ""); rec.Code != http.StatusOK {
		t.Errorf("health status = %d", rec.Code)
	}

	rec := serve(r, http.MethodGet, "/nowhere", "")
	if rec.Code != http.StatusNotFound || errorMessage(t, rec) != "Not found" {
		t.Errorf("unknown route = %d %s", rec.Code, rec.Body.String())
	}

	// Optional surfaces stay unmounted
	for _, path := range []string{"/metrics", "/ws/debates", "/api/live/stats"} {
		if rec := serve(r, http.MethodGet, path, ""); rec.Code != http.StatusNotFound {
			t.Errorf("GET %s status = %d, want 404", path, rec.Code)
		}
	}
	if rec := serve(r, http.MethodPost, "/auth/login", ""); rec.Code != http.StatusNotFound {
		t.Errorf("login without auth status = %d, want 404", rec.Code)
	}

	// Without auth the admin routes are open
	if rec := serve(r, http.MethodGet, "/api/slug?title=Open%20Admin", ""); rec.Code != http.StatusOK {
		t.Errorf("open admin route status = %d", rec.Code)
	}
}

func TestRouter_AdminAuth(t *testing.T) {
	hash, err := auth.HashPassword("imuhiraEditor2026")
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}
	jwtService := auth.NewJWTService("test-secret-key", 1)

	cfg := baseConfig()
	cfg.JWTService = jwtService
	cfg.Auth = handlers.NewAuthHandler("editor", hash, jwtService, logger.Nop())
	r := NewRouter(cfg)

	token, err := jwtService.GenerateToken("editor")
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{name: "Admin list without token", method: http.MethodGet, path: "/api/debates", want: http.StatusUnauthorized},
		{name: "Admin delete without token", method: http.MethodDelete, path: "/api/debates/1", want: http.StatusUnauthorized},
		{name: "Slug helper with token", method: http.MethodGet, path: "/api/slug?title=Hello", token: token, want: http.StatusOK},
		{name: "Bad id with token reaches handler", method: http.MethodGet, path: "/api/debates/abc", token: token, want: http.StatusBadRequest},
		// The public list validates its limit before touching storage
		{name: "Public list is not gated", method: http.MethodGet, path: "/api/public/debates?limit=0", want: http.StatusBadRequest},
		{name: "Login is mounted", method: http.MethodPost, path: "/auth/login", want: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := serve(r, tt.method, tt.path, tt.token); rec.Code != tt.want {
				t.Errorf("status = %d, want %d, body = %s", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestRouter_Metrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	cfg := baseConfig()
	cfg.Metrics = metrics.New(registry)
	cfg.MetricsHandler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	r := NewRouter(cfg)

	serve(r, http.MethodGet, "/health", "")

	rec := serve(r, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rec.Code)
	}
	if body := rec.Body.String(); !strings.Contains(body, `imuhira_http_requests_total{method="GET",route="/health",status="200"} 1`) {
		t.Errorf("Expected health request counted, got:\n%s", body)
	}
}

func TestRouter_Health(t *testing.T) {
	cfg := baseConfig()
	redisUp := true
	cfg.HealthChecks = map[string]func(ctx context.Context) error{
		"database": func(context.Context) error { return nil },
		"redis": func(context.Context) error {
			if redisUp {
				return nil
			}
			return errors.New("connection refused")
		},
	}
	r := NewRouter(cfg)

	rec := serve(r, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Fatalf("healthy = %d %s", rec.Code, rec.Body.String())
	}

	redisUp = false
	rec = serve(r, http.MethodGet, "/health", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if body := rec.Body.String(); !strings.Contains(body, `"redis":"connection refused"`) || !strings.Contains(body, `"database":"ok"`) {
		t.Errorf("unexpected body %s", body)
	}
}
