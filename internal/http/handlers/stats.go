package handlers

import (
	"net/http"

	"github.com/agendadigital/agenda-platform/internal/stats"
	"github.com/agendadigital/agenda-platform/pkg/logging"
)

// StatsHandler serves the dashboard aggregates.
type StatsHandler struct {
	stats  *stats.Service
	logger *logging.Logger
}

func NewStatsHandler(svc *stats.Service, logger *logging.Logger) *StatsHandler {
	if svc == nil {
		panic("handlers: stats service required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &StatsHandler{stats: svc, logger: logger}
}

func (h *StatsHandler) Overview(w http.ResponseWriter, r *http.Request) {
	t, ok := tenantFrom(w, r)
	if !ok {
		return
	}
	overview, err := h.stats.Overview(r.Context(), t, r.URL.Query().Get("month"))
	if err != nil {
		h.logger.Error("stats overview failed", "tenant", t.ID, "error", err)
		writeError(w, http.StatusBadGateway, "could not compute statistics")
		return
	}
	writeJSON(w, http.StatusOK, overview)
}
