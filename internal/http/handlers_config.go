package http

import (
	"net/http"

	applog "budgetbook/internal/log"
)

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.deps.Config.Get(r.Context())
	if err != nil {
		s.respondError(w, r, applog.OpRead, err)
		return
	}
	NewResponse().JSON(newConfigView(cfg, s.now())).Write(w)
}

// handleSaveConfig stores the cutoff date. An empty or null cutoff_date clears it.
func (s *Server) handleSaveConfig(w http.ResponseWriter, r *http.Request) {
	p, ok := s.parseBody(w, r)
	if !ok {
		return
	}
	cutoff, err := p.Date("cutoff_date")
	if err != nil {
		s.respondError(w, r, applog.OpUpdate, err)
		return
	}

	cfg, err := s.deps.Config.Save(r.Context(), cutoff)
	if err != nil {
		s.respondError(w, r, applog.OpUpdate, err)
		return
	}

	applog.FromContext(r.Context()).InfoContext(r.Context(), "Cutoff date saved",
		"cutoff_date", cfg.CutoffDate.String(),
		applog.FieldOperation, applog.OpUpdate)
	NewResponse().JSON(newConfigView(cfg, s.now())).Write(w)
}
