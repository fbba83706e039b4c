package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/benvon/frog-planner/internal/handlers"
	"github.com/benvon/frog-planner/internal/lock"
	"github.com/benvon/frog-planner/internal/middleware"
	"github.com/benvon/frog-planner/internal/models"
	"github.com/benvon/frog-planner/internal/planner"
	"github.com/benvon/frog-planner/internal/planner/plannertest"
	"github.com/benvon/frog-planner/internal/services/planning"
	"github.com/gorilla/mux"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	"go.uber.org/zap/zaptest"
)

func newTestRouter(t *testing.T, rate string, unhealthy bool) *mux.Router {
	t.Helper()
	logger := zaptest.NewLogger(t)

	settings := planner.DefaultSettings()
	settings.Location = time.UTC
	monday := models.Date{Year: 2024, Month: time.January, Day: 8}
	svc, err := planning.New(plannertest.NewMemStore(), settings,
		planning.WithClock(func() time.Time { return monday.At(models.Clock(6, 0), time.UTC) }),
		planning.WithLocker(lock.NewLocalLocker()),
		planning.WithLogger(logger),
	)
	if err != nil {
		t.Fatalf("planning.New() error = %v", err)
	}

	health := handlers.NewHealthChecker()
	health.Register("database", handlers.CheckFunc(func(context.Context) error {
		if unhealthy {
			return errors.New("connection refused")
		}
		return nil
	}))

	var rateLimit func(http.Handler) http.Handler
	if rate != "" {
		rateLimit, err = middleware.RateLimit(memory.NewStore(), rate)
		if err != nil {
			t.Fatalf("RateLimit() error = %v", err)
		}
	}

	return newRouter(routerDeps{
		jobs:           handlers.NewJobHandler(svc, nil, logger),
		health:         health,
		allowedOrigins: []string{"http://localhost:3000"},
		rateLimit:      rateLimit,
		requestTimeout: 5 * time.Second,
		logger:         logger,
	})
}

func TestRouter(t *testing.T) {
	t.Parallel()

	validJob := `{"title":"Write report","urgency":3,"importance":3,"duration_hours":"1.5"}`

	tests := []struct {
		name        string
		method      string
		path        string
		body        string
		contentType string
		origin      string
		preflight   string
		wantStatus  int
		check       func(*testing.T, *httptest.ResponseRecorder)
	}{
		{
			name: "version", method: "GET", path: "/version", wantStatus: http.StatusOK,
			check: func(t *testing.T, w *httptest.ResponseRecorder) {
				var body map[string]string
				if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
					t.Fatalf("decode: %v", err)
				}
				if body["version"] != version {
					t.Errorf("version = %q, want %q", body["version"], version)
				}
			},
		},
		{name: "healthz", method: "GET", path: "/healthz", wantStatus: http.StatusOK},
		{name: "list jobs", method: "GET", path: "/api/v1/jobs", wantStatus: http.StatusOK},
		{name: "create job", method: "POST", path: "/api/v1/jobs", body: validJob, contentType: "application/json", wantStatus: http.StatusCreated},
		{name: "create job wrong content type", method: "POST", path: "/api/v1/jobs", body: validJob, contentType: "text/plain", wantStatus: http.StatusUnsupportedMediaType},
		{name: "bodiless schedule run", method: "POST", path: "/api/v1/jobs/schedule", wantStatus: http.StatusOK},
		{name: "async without queue", method: "POST", path: "/api/v1/jobs/schedule?async=true", wantStatus: http.StatusServiceUnavailable},
		{name: "unknown route", method: "GET", path: "/api/v1/nope", wantStatus: http.StatusNotFound},
		{
			name: "preflight", method: "OPTIONS", path: "/api/v1/jobs", origin: "http://localhost:3000", preflight: "POST",
			wantStatus: http.StatusNoContent,
			check: func(t *testing.T, w *httptest.ResponseRecorder) {
				if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
					t.Errorf("Access-Control-Allow-Origin = %q", got)
				}
			},
		},
		{
			name: "common headers", method: "GET", path: "/api/v1/plan/today", wantStatus: http.StatusOK,
			check: func(t *testing.T, w *httptest.ResponseRecorder) {
				if w.Header().Get("X-Request-ID") == "" {
					t.Error("missing X-Request-ID")
				}
				if w.Header().Get("X-Content-Type-Options") != "nosniff" {
					t.Error("missing security headers")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			router := newTestRouter(t, "", false)

			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.preflight != "" {
				req.Header.Set("Access-Control-Request-Method", tt.preflight)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("%s %s = %d, want %d (body %s)", tt.method, tt.path, w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.check != nil {
				tt.check(t, w)
			}
		})
	}
}

func TestRouter_RateLimitSkipsHealth(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t, "1-M", false)

	get := func(path string) int {
		req := httptest.NewRequest("GET", path, nil)
		req.RemoteAddr = "192.0.2.1:5555"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	if code := get("/api/v1/jobs"); code != http.StatusOK {
		t.Fatalf("first API request = %d, want 200", code)
	}
	if code := get("/api/v1/jobs"); code != http.StatusTooManyRequests {
		t.Errorf("second API request = %d, want 429", code)
	}
	if code := get("/healthz"); code != http.StatusOK {
		t.Errorf("healthz = %d, want 200 regardless of rate limit", code)
	}
}

func TestRouter_UnhealthyDependency(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t, "", true)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/healthz?mode=extended", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("extended healthz = %d, want 503", w.Code)
	}
}
