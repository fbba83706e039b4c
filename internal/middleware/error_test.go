package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestErrorHandler_NoPanic(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	req := httptest.NewRequest("GET", "/api/v1/jobs", nil)
	w := httptest.NewRecorder()
	ErrorHandler(zap.NewNop())(handler).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
}

func TestErrorHandler_PanicRecovery(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name:    "string panic",
			handler: func(http.ResponseWriter, *http.Request) { panic("test panic") },
		},
		{
			name: "runtime panic",
			handler: func(http.ResponseWriter, *http.Request) {
				var nilMap map[string]string
				nilMap["key"] = "value"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			core, logs := observer.New(zap.ErrorLevel)
			chain := RequestID(ErrorHandler(zap.New(core))(tt.handler))

			req := httptest.NewRequest("POST", "/api/v1/jobs/schedule", nil)
			req.Header.Set("X-Request-ID", "req-7")
			w := httptest.NewRecorder()
			chain.ServeHTTP(w, req)

			if w.Code != http.StatusInternalServerError {
				t.Fatalf("Expected status 500, got %d", w.Code)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Expected Content-Type 'application/json', got '%s'", ct)
			}

			var body ErrorResponse
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if body.Success {
				t.Error("Expected success to be false")
			}
			if body.Message != "An unexpected error occurred" {
				t.Errorf("Expected generic message, got '%s'", body.Message)
			}
			if body.Path != "/api/v1/jobs/schedule" {
				t.Errorf("Expected path '/api/v1/jobs/schedule', got '%s'", body.Path)
			}
			if body.RequestID != "req-7" {
				t.Errorf("Expected request_id 'req-7', got '%s'", body.RequestID)
			}
			if body.Timestamp == "" {
				t.Error("Expected timestamp to be set")
			}

			entries := logs.FilterMessage("panic_recovered").All()
			if len(entries) != 1 {
				t.Fatalf("Expected one panic_recovered log, got %d", len(entries))
			}
			if got := entries[0].ContextMap()["request_id"]; got != "req-7" {
				t.Errorf("Expected logged request_id req-7, got %v", got)
			}
		})
	}
}

func TestErrorHandler_AbortHandlerRepanics(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	})

	defer func() {
		if got := recover(); got != http.ErrAbortHandler {
			t.Errorf("Expected http.ErrAbortHandler to propagate, got %v", got)
		}
	}()
	ErrorHandler(zap.NewNop())(handler).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
}

func TestErrorHandler_PanicAfterHeadersKeepsStatus(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		panic("late failure")
	})
	core, logs := observer.New(zap.ErrorLevel)
	chain := Logging(zap.NewNop())(ErrorHandler(zap.New(core))(handler))

	w := httptest.NewRecorder()
	chain.ServeHTTP(w, httptest.NewRequest("POST", "/api/v1/jobs/schedule", nil))

	if w.Code != http.StatusAccepted {
		t.Errorf("Expected status 202 to survive the panic, got %d", w.Code)
	}
	if w.Body.Len() != 0 {
		t.Errorf("Expected no error body after headers were sent, got %q", w.Body.String())
	}
	if logs.FilterMessage("panic_recovered").Len() != 1 {
		t.Error("Expected panic to be logged")
	}
}
