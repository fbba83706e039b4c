package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ulule/limiter/v3/drivers/store/memory"
)

func TestRateLimit(t *testing.T) {
	t.Parallel()

	mw, err := RateLimit(memory.NewStore(), "2-M")
	if err != nil {
		t.Fatalf("RateLimit() error = %v", err)
	}
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(remote string) int {
		req := httptest.NewRequest("GET", "/api/v1/plan/today", nil)
		req.RemoteAddr = remote
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	for i := 0; i < 2; i++ {
		if code := send("10.0.0.1:1000"); code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, code)
		}
	}
	// Different source port, same host
	if code := send("10.0.0.1:2000"); code != http.StatusTooManyRequests {
		t.Errorf("Expected 429 once the limit is spent, got %d", code)
	}
	if code := send("10.0.0.2:1000"); code != http.StatusOK {
		t.Errorf("Expected another client to pass, got %d", code)
	}
}

func TestRateLimit_InvalidRate(t *testing.T) {
	t.Parallel()

	if _, err := RateLimit(memory.NewStore(), "lots"); err == nil {
		t.Error("Expected error for malformed rate")
	}
}
