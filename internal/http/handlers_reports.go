package http

import (
	"net/http"

	applog "budgetbook/internal/log"
)

func (s *Server) handleOpenBalance(w http.ResponseWriter, r *http.Request) {
	v, err := s.cachedReport("open-balance", func() (any, error) {
		ob, err := s.deps.Reports.OpenBalance(r.Context())
		if err != nil {
			return nil, err
		}
		return newOpenBalanceView(ob), nil
	})
	if err != nil {
		s.respondError(w, r, applog.OpRead, err)
		return
	}
	NewResponse().JSON(v).Write(w)
}

// handleLiveBalance returns the snapshot kept by the live view, refreshing it
// first when it has never been computed.
func (s *Server) handleLiveBalance(w http.ResponseWriter, r *http.Request) {
	if s.deps.LiveView == nil {
		NotFoundError("live view not enabled").Write(w)
		return
	}

	ob, at := s.deps.LiveView.Snapshot()
	if at.IsZero() {
		var err error
		if ob, err = s.deps.LiveView.Refresh(r.Context()); err != nil {
			s.respondError(w, r, applog.OpRefresh, err)
			return
		}
		_, at = s.deps.LiveView.Snapshot()
	}

	v := newOpenBalanceView(ob)
	v.UpdatedAt = &at
	NewResponse().JSON(v).Write(w)
}

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f, err := ParseLedgerFilter(q)
	if err != nil {
		s.respondError(w, r, applog.OpRead, err)
		return
	}

	key := reportCacheKey("ledger", q,
		"payment_method_id", "responsible_id", "paid",
		"purchase_from", "purchase_to", "due_from", "due_to")
	v, err := s.cachedReport(key, func() (any, error) {
		l, err := s.deps.Reports.Ledger(r.Context(), f)
		if err != nil {
			return nil, err
		}
		return newLedgerView(l), nil
	})
	if err != nil {
		s.respondError(w, r, applog.OpRead, err)
		return
	}
	NewResponse().JSON(v).Write(w)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f, err := ParseSummaryFilter(q)
	if err != nil {
		s.respondError(w, r, applog.OpRead, err)
		return
	}

	key := reportCacheKey("summary", q, "paid", "date_field", "from", "to", "group_by")
	v, err := s.cachedReport(key, func() (any, error) {
		sum, err := s.deps.Reports.Summary(r.Context(), f)
		if err != nil {
			return nil, err
		}
		return newSummaryView(sum), nil
	})
	if err != nil {
		s.respondError(w, r, applog.OpRead, err)
		return
	}
	NewResponse().JSON(v).Write(w)
}
