package handlers

import (
	"net/http"

	"github.com/agendadigital/agenda-platform/internal/catalog"
	"github.com/agendadigital/agenda-platform/pkg/logging"
)

// CatalogHandler serves the read-only configuration subtrees to the booking
// form: sectors, insurers, exams and holidays.
type CatalogHandler struct {
	catalog *catalog.Service
	logger  *logging.Logger
}

func NewCatalogHandler(cat *catalog.Service, logger *logging.Logger) *CatalogHandler {
	if cat == nil {
		panic("handlers: catalog service required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &CatalogHandler{catalog: cat, logger: logger}
}

func (h *CatalogHandler) Sectors(w http.ResponseWriter, r *http.Request) {
	t, ok := tenantFrom(w, r)
	if !ok {
		return
	}
	sectors, err := h.catalog.Sectors(r.Context(), t)
	if err != nil {
		h.logger.Error("catalog sectors failed", "tenant", t.ID, "error", err)
		writeError(w, http.StatusBadGateway, "could not load sectors")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sectors": sectors, "mode": t.Mode})
}

func (h *CatalogHandler) Insurers(w http.ResponseWriter, r *http.Request) {
	t, ok := tenantFrom(w, r)
	if !ok {
		return
	}
	insurers, err := h.catalog.Insurers(r.Context(), t)
	if err != nil {
		h.logger.Error("catalog insurers failed", "tenant", t.ID, "error", err)
		writeError(w, http.StatusBadGateway, "could not load insurers")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"insurers": insurers})
}

func (h *CatalogHandler) Exams(w http.ResponseWriter, r *http.Request) {
	t, ok := tenantFrom(w, r)
	if !ok {
		return
	}
	exams, err := h.catalog.Exams(r.Context(), t)
	if err != nil {
		h.logger.Error("catalog exams failed", "tenant", t.ID, "error", err)
		writeError(w, http.StatusBadGateway, "could not load exams")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"exams": exams})
}

func (h *CatalogHandler) Holidays(w http.ResponseWriter, r *http.Request) {
	t, ok := tenantFrom(w, r)
	if !ok {
		return
	}
	holidays, err := h.catalog.Holidays(r.Context(), t)
	if err != nil {
		h.logger.Error("catalog holidays failed", "tenant", t.ID, "error", err)
		writeError(w, http.StatusBadGateway, "could not load holidays")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"holidays": holidays})
}
