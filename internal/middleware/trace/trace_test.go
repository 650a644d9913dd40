package trace

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	applog "budgetbook/internal/log"
)

func TestMiddlewareRequestID(t *testing.T) {
	var buf bytes.Buffer
	m := NewMiddleware(applog.NewWithWriter(&buf, slog.LevelInfo, "test"), nil)

	var seen string
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	t.Run("generated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/expenses/1", nil))
		if !strings.HasPrefix(seen, "req_") {
			t.Fatalf("request id = %q", seen)
		}
		if rec.Header().Get(HeaderRequestID) != seen {
			t.Errorf("response header = %q, want %q", rec.Header().Get(HeaderRequestID), seen)
		}
	})

	t.Run("propagated", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/api/expenses/1", nil)
		r.Header.Set(HeaderRequestID, "abc-123")
		h.ServeHTTP(httptest.NewRecorder(), r)
		if seen != "abc-123" {
			t.Errorf("request id = %q, want abc-123", seen)
		}
	})

	t.Run("rejects malformed", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/api/expenses/1", nil)
		r.Header.Set(HeaderRequestID, "bad id\n")
		h.ServeHTTP(httptest.NewRecorder(), r)
		if seen == "bad id\n" {
			t.Error("malformed id accepted")
		}
	})

	if !strings.Contains(buf.String(), "request_id=abc-123") {
		t.Error("request logger missing the request id")
	}
	if !strings.Contains(buf.String(), "HTTP request completed") {
		t.Error("completion not logged")
	}
	if got := m.GetMetrics().TotalRequests; got != 3 {
		t.Errorf("TotalRequests = %d, want 3", got)
	}
}
