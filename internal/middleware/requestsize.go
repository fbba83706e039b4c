package middleware

import (
	"net/http"

	"go.uber.org/zap"
)

// DefaultMaxRequestSize caps job payloads at 64KB
const DefaultMaxRequestSize int64 = 64 << 10

var nopLogger = zap.NewNop()

// MaxRequestSize limits the size of request bodies
func MaxRequestSize(maxBytes int64) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxRequestSize
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Declared length is rejected before reading
			if r.ContentLength > maxBytes {
				writeError(w, r, http.StatusRequestEntityTooLarge, "Request body is too large", nopLogger)
				return
			}

			// Undeclared length is enforced while the handler decodes
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
