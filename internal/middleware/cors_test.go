package middleware

import (
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
)

func TestParseOrigins(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		value string
		want  []string
	}{
		{"single", "http://localhost:3000", []string{"http://localhost:3000"}},
		{"list with spaces", " https://a.example , https://b.example/ ", []string{"https://a.example", "https://b.example"}},
		{"blanks dropped", "https://a.example,,", []string{"https://a.example"}},
		{"empty", "", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ParseOrigins(tt.value); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseOrigins(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestCORS(t *testing.T) {
	t.Parallel()

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := CORS([]string{"http://localhost:3000"}, nil)(next)

	tests := []struct {
		name       string
		method     string
		origin     string
		reqMethod  string
		wantOrigin string
		wantStatus int
	}{
		{name: "allowed origin", method: "GET", origin: "http://localhost:3000", wantOrigin: "http://localhost:3000", wantStatus: http.StatusOK},
		{name: "disallowed origin", method: "GET", origin: "http://evil.example", wantOrigin: "", wantStatus: http.StatusOK},
		{name: "preflight allowed", method: "OPTIONS", origin: "http://localhost:3000", reqMethod: "PATCH", wantOrigin: "http://localhost:3000", wantStatus: http.StatusNoContent},
		{name: "preflight unsupported method", method: "OPTIONS", origin: "http://localhost:3000", reqMethod: "PUT", wantOrigin: "", wantStatus: http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(tt.method, "/api/v1/jobs", nil)
			req.Header.Set("Origin", tt.origin)
			if tt.reqMethod != "" {
				req.Header.Set("Access-Control-Request-Method", tt.reqMethod)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, w.Code)
			}
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("Expected Access-Control-Allow-Origin %q, got %q", tt.wantOrigin, got)
			}
		})
	}
}
