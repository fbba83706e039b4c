package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/benvon/frog-planner/internal/handlers"
	"github.com/benvon/frog-planner/internal/middleware"
	"github.com/benvon/frog-planner/internal/telemetry"
	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/zap"
)

// version is overridden at build time with -ldflags "-X main.version=..."
var version = "dev"

// routerDeps are the pieces newRouter assembles
type routerDeps struct {
	jobs           *handlers.JobHandler
	health         *handlers.HealthChecker
	allowedOrigins []string
	enableHSTS     bool
	// rateLimit wraps the API routes; nil disables limiting
	rateLimit      func(http.Handler) http.Handler
	tracing        bool
	requestTimeout time.Duration
	logger         *zap.Logger
}

// newRouter builds the HTTP surface. gorilla/mux runs middleware in
// registration order, first registered is outermost.
func newRouter(d routerDeps) *mux.Router {
	r := mux.NewRouter()

	if d.tracing {
		r.Use(otelmux.Middleware(telemetry.ServerServiceName))
	}
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(d.logger))
	r.Use(middleware.ErrorHandler(d.logger))
	r.Use(middleware.SecurityHeaders(d.enableHSTS))
	r.Use(middleware.CORS(d.allowedOrigins, d.logger))
	r.Use(middleware.MaxRequestSize(middleware.DefaultMaxRequestSize))
	r.Use(middleware.ContentType)
	r.Use(middleware.Timeout(d.requestTimeout))

	// Health and version stay outside the rate limit
	r.HandleFunc("/healthz", d.health.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/version", versionInfo).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	if d.rateLimit != nil {
		api.Use(d.rateLimit)
	}
	d.jobs.RegisterRoutes(api)

	// Preflight requests need a matching route for the middleware chain to run
	r.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	return r
}

func versionInfo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, `{"version":%q,"timestamp":%q}`, version, time.Now().UTC().Format(time.RFC3339))
}
