package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"budgetbook/internal/core"
	"budgetbook/internal/store"
)

// appMetrics counts application-level events for /metrics.
type appMetrics struct {
	started       time.Time
	expensesSaved int64
	cacheHits     int64
	cacheMisses   int64
}

func newAppMetrics() *appMetrics {
	return &appMetrics{started: time.Now()}
}

func (m *appMetrics) expenseSaved() { atomic.AddInt64(&m.expensesSaved, 1) }
func (m *appMetrics) cacheHit()     { atomic.AddInt64(&m.cacheHits, 1) }
func (m *appMetrics) cacheMiss()    { atomic.AddInt64(&m.cacheMisses, 1) }

func isNotFound(err error) bool {
	return errors.Is(err, core.ErrNotFound)
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.metrics.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady checks that the store answers a query within a few seconds.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if s.deps.Store == nil {
		checks["store"] = "not_configured"
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else if _, err := s.deps.Store.Query(ctx, store.TableConfig, nil, nil); err != nil {
		checks["store"] = fmt.Sprintf("failed: %v", err)
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["store"] = "ok"
	}

	cacheEntries := 0
	if s.reportCache != nil {
		cacheEntries = s.reportCache.Size()
	}
	checks["report_cache"] = map[string]any{
		"enabled": s.reportCache != nil,
		"entries": cacheEntries,
	}
	checks["rate_limiter"] = map[string]any{
		"active_clients": s.rateLimiter.ActiveClients(),
	}

	NewResponse().Status(httpStatus).JSON(map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	traceMetrics := s.tracer.GetMetrics()
	rateMetrics := s.rateLimiter.GetMetrics()
	securityMetrics := s.detector.GetMetrics()
	cacheEntries := 0
	if s.reportCache != nil {
		cacheEntries = s.reportCache.Size()
	}

	counters := []struct {
		name, help, kind string
		value            any
	}{
		{"http_requests_total", "Total number of HTTP requests", "counter", traceMetrics.TotalRequests},
		{"http_server_errors_total", "Requests answered with a 5xx status", "counter", traceMetrics.ServerErrors},
		{"http_response_time_avg_microseconds", "Average response time", "gauge", traceMetrics.AverageResponseTime},
		{"expenses_saved_total", "Expenses created or updated", "counter", atomic.LoadInt64(&s.metrics.expensesSaved)},
		{"report_cache_hits_total", "Report cache hits", "counter", atomic.LoadInt64(&s.metrics.cacheHits)},
		{"report_cache_misses_total", "Report cache misses", "counter", atomic.LoadInt64(&s.metrics.cacheMisses)},
		{"report_cache_entries", "Current report cache entries", "gauge", cacheEntries},
		{"rate_limit_hits_total", "Requests rejected by the rate limiter", "counter", rateMetrics.TotalHits},
		{"active_rate_limit_clients", "Currently tracked rate limit clients", "gauge", rateMetrics.ClientCount},
		{"suspicious_requests_total", "Suspicious requests detected", "counter", securityMetrics.SuspiciousRequests},
		{"uptime_seconds", "Application uptime in seconds", "gauge", int64(time.Since(s.metrics.started).Seconds())},
	}

	w.WriteHeader(http.StatusOK)
	for _, c := range counters {
		fmt.Fprintf(w, "# HELP %s %s\n", c.name, c.help)
		fmt.Fprintf(w, "# TYPE %s %s\n", c.name, c.kind)
		fmt.Fprintf(w, "%s %v\n\n", c.name, c.value)
	}
}
