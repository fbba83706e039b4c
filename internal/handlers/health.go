package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// healthCheckTimeout bounds each dependency probe
const healthCheckTimeout = 5 * time.Second

// Checker probes one dependency
type Checker interface {
	HealthCheck(ctx context.Context) error
}

// CheckFunc adapts a function such as a Redis ping into a Checker
type CheckFunc func(ctx context.Context) error

// HealthCheck implements Checker
func (f CheckFunc) HealthCheck(ctx context.Context) error {
	return f(ctx)
}

type namedCheck struct {
	name    string
	checker Checker
}

// HealthChecker handles health check requests
type HealthChecker struct {
	checks []namedCheck
}

// NewHealthChecker creates a health checker with no dependencies registered
func NewHealthChecker() *HealthChecker {
	return &HealthChecker{}
}

// Register adds a dependency probed in extended mode; nil checkers are ignored
func (h *HealthChecker) Register(name string, checker Checker) {
	if checker == nil {
		return
	}
	h.checks = append(h.checks, namedCheck{name: name, checker: checker})
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// HealthCheck handles /healthz; ?mode=extended probes every registered dependency
func (h *HealthChecker) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	statusCode := http.StatusOK

	if r.URL.Query().Get("mode") == "extended" {
		response.Checks = make(map[string]string, len(h.checks))
		for _, c := range h.checks {
			if err := probe(r.Context(), c.checker); err != nil {
				response.Status = "unhealthy"
				response.Checks[c.name] = "unhealthy: " + sanitizeErrorMessage(err.Error())
				continue
			}
			response.Checks[c.name] = "healthy"
		}
		if response.Status == "unhealthy" {
			statusCode = http.StatusServiceUnavailable
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(response)
}

func probe(ctx context.Context, checker Checker) error {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()
	return checker.HealthCheck(ctx)
}
