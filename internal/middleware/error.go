package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	logpkg "github.com/benvon/frog-planner/internal/logger"
	"github.com/benvon/frog-planner/internal/request"
	"go.uber.org/zap"
)

// ErrorResponse is the body written when a handler panics or a request is
// turned away before it reaches the planner handlers
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	Path      string `json:"path"`
	RequestID string `json:"request_id,omitempty"`
}

// headerTracker is implemented by writers that know whether a status was sent
type headerTracker interface {
	HeaderWritten() bool
}

// ErrorHandler turns handler panics into a 500 JSON body. http.ErrAbortHandler
// is re-raised so net/http can drop the connection quietly.
func ErrorHandler(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer recoverPanic(w, r, logger)
			next.ServeHTTP(w, r)
		})
	}
}

func recoverPanic(w http.ResponseWriter, r *http.Request, logger *zap.Logger) {
	recovered := recover()
	if recovered == nil {
		return
	}
	if err, ok := recovered.(error); ok && errors.Is(err, http.ErrAbortHandler) {
		panic(recovered)
	}

	logger.Error("panic_recovered",
		zap.Any("error", recovered),
		zap.String("method", r.Method),
		zap.String("path", logpkg.SanitizePath(r.URL.Path)),
		zap.String("request_id", request.RequestIDFromContext(r.Context())),
		zap.Stack("stack"),
	)

	// A half-written response cannot be replaced
	if ht, ok := w.(headerTracker); ok && ht.HeaderWritten() {
		return
	}
	writeError(w, r, http.StatusInternalServerError, "An unexpected error occurred", logger)
}

// writeError sends an ErrorResponse whose error field is the status text
func writeError(w http.ResponseWriter, r *http.Request, status int, message string, logger *zap.Logger) {
	body := ErrorResponse{
		Error:     http.StatusText(status),
		Message:   message,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Path:      logpkg.SanitizePath(r.URL.Path),
		RequestID: request.RequestIDFromContext(r.Context()),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("failed_to_encode_error_response",
			zap.Int("status_code", status),
			zap.String("path", body.Path),
			zap.Error(err),
		)
	}
}
