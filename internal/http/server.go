package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"budgetbook/internal/cache"
	"budgetbook/internal/core"
	applog "budgetbook/internal/log"
	"budgetbook/internal/middleware/ratelimit"
	"budgetbook/internal/middleware/security"
	"budgetbook/internal/middleware/trace"
	"budgetbook/internal/services"
	"budgetbook/internal/store"
)

// Deps are the collaborators the server exposes over HTTP.
type Deps struct {
	Store    store.Store
	Expenses *services.ExpenseService
	Refs     *services.ReferenceService
	Config   *services.ConfigService
	Reports  *services.ReportService
	// LiveView is optional; without it /api/reports/open-balance/live answers 404.
	LiveView *services.LiveView
	Logger   *applog.Logger

	// ReportCacheTTL is how long report responses are reused. Zero disables the cache.
	ReportCacheTTL time.Duration
	// RequestsPerMinute bounds mutating requests per client (default: 60).
	RequestsPerMinute int
	// Now is the clock used for cutoff staleness; defaults to time.Now.
	Now func() time.Time
}

// Server is the JSON API server.
type Server struct {
	http.Server

	deps   Deps
	logger *applog.Logger
	now    func() time.Time

	rateLimiter *ratelimit.Limiter
	detector    *security.Detector
	tracer      *trace.Middleware
	headers     *security.HeadersMiddleware

	reportCache  *cache.LRUCache[any]
	cacheManager *cache.Manager
	unsubscribe  func()

	metrics      *appMetrics
	shutdownOnce sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = applog.FromContext(context.Background())
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	detector := security.NewDetector()
	s := &Server{
		deps:        deps,
		logger:      logger.WithComponent(applog.ComponentHTTP),
		now:         now,
		rateLimiter: ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: deps.RequestsPerMinute}),
		detector:    detector,
		tracer:      trace.NewMiddleware(logger, detector.ExtractClientIP),
		headers:     security.NewHeadersMiddleware(security.DefaultHeadersConfig()),
		metrics:     newAppMetrics(),
	}

	if deps.ReportCacheTTL > 0 && deps.Store != nil {
		s.reportCache = cache.NewLRUCache[any](100, deps.ReportCacheTTL)
		s.cacheManager = cache.NewManager()
		s.cacheManager.Register(s.reportCache)
		s.cacheManager.StartCleanup(10 * time.Minute)
		s.unsubscribe = cache.PurgeOnChange(deps.Store, s.reportCache, store.Tables...)
	}

	mux := http.NewServeMux()
	s.routes(mux)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.chain(mux),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	expense := componentRoutes(mux, applog.ComponentExpense)
	expense("POST /api/expenses", s.handleCreateExpense)
	expense("GET /api/expenses/{id}", s.handleGetExpense)
	expense("PUT /api/expenses/{id}", s.handleUpdateExpense)
	expense("DELETE /api/expenses/{id}", s.handleDeleteExpense)
	expense("PUT /api/expenses/{id}/paid", s.handleSetExpensePaid)
	expense("POST /api/installments/paid", s.handleToggleInstallments)

	s.refRoutes(mux, "/api/categories", categoryHandlers(s))
	s.refRoutes(mux, "/api/responsibles", responsibleHandlers(s))
	s.refRoutes(mux, "/api/payment-methods", paymentMethodHandlers(s))

	mux.HandleFunc("GET /api/config", s.handleGetConfig)
	mux.HandleFunc("PUT /api/config", s.handleSaveConfig)

	report := componentRoutes(mux, applog.ComponentReports)
	report("GET /api/reports/open-balance", s.handleOpenBalance)
	report("GET /api/reports/open-balance/live", s.handleLiveBalance)
	report("GET /api/reports/ledger", s.handleLedger)
	report("GET /api/reports/summary", s.handleSummary)
}

// componentRoutes registers handlers whose request logger is tagged with component.
func componentRoutes(mux *http.ServeMux, component string) func(pattern string, h http.HandlerFunc) {
	mw := applog.ComponentMiddleware(component)
	return func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, mw(h))
	}
}

// chain applies the middleware stack, outermost first: tracing, probe detection,
// security headers and rate limiting.
func (s *Server) chain(h http.Handler) http.Handler {
	h = s.rateLimiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusTooManyRequests, CodeRateLimited, "rate limit exceeded, try again later").Write(w)
	})(h)
	h = s.headers.Middleware(h)
	h = s.detector.Middleware(true)(h)
	return s.tracer.Middleware(h)
}

// Shutdown gracefully shuts down the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.unsubscribe != nil {
			s.unsubscribe()
		}
		if s.cacheManager != nil {
			s.cacheManager.Stop()
		}
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// respondError logs err with its kind and writes the mapped response.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, op string, err error) {
	resp := ErrorFrom(err)
	logger := applog.FromContext(r.Context())

	if resp.StatusCode() >= http.StatusInternalServerError {
		applog.NewStructuredLogger(logger).LogError(r.Context(), "Request failed", err,
			logger.Component(), op, applog.NewFields().WithErrorType(errorType(err)))
	} else {
		fields := applog.NewFields().
			WithError(err).
			WithErrorType(errorType(err)).
			WithOperation(op)
		logger.WarnContext(r.Context(), "Request rejected", fields.ToSlice()...)
	}
	resp.Write(w)
}

func errorType(err error) string {
	switch {
	case core.IsValidation(err):
		return applog.ErrorTypeValidation
	case core.IsReference(err):
		return applog.ErrorTypeReference
	case core.IsInUse(err):
		return applog.ErrorTypeInUse
	case core.IsStore(err):
		return applog.ErrorTypeDatabase
	}
	if isNotFound(err) {
		return applog.ErrorTypeNotFound
	}
	return applog.ErrorTypeInternal
}

// parseBody reads and decodes the request body, answering 400 on malformed input.
func (s *Server) parseBody(w http.ResponseWriter, r *http.Request) (*RequestBodyParser, bool) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Malformed request body",
			applog.FieldError, err.Error(),
			applog.FieldErrorType, applog.ErrorTypeValidation)
		BadRequestError(err.Error()).Write(w)
		return nil, false
	}
	return p, true
}

// cachedReport serves key from the report cache or computes and stores it.
func (s *Server) cachedReport(key string, compute func() (any, error)) (any, error) {
	if s.reportCache != nil {
		if v, ok := s.reportCache.Get(key); ok {
			s.metrics.cacheHit()
			return v, nil
		}
	}
	s.metrics.cacheMiss()

	v, err := compute()
	if err != nil {
		return nil, err
	}
	if s.reportCache != nil {
		s.reportCache.Set(key, v)
	}
	return v, nil
}
