package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/agendadigital/agenda-platform/internal/conversation"
	"github.com/agendadigital/agenda-platform/internal/insights"
	"github.com/agendadigital/agenda-platform/internal/messaging"
	"github.com/agendadigital/agenda-platform/internal/tenancy"
	"github.com/agendadigital/agenda-platform/pkg/logging"
)

// ConversationStore reads stored conversations. Satisfied by
// *conversation.Store.
type ConversationStore interface {
	History(ctx context.Context, t tenancy.Tenant, phone string) ([]conversation.Message, error)
	ListThreads(ctx context.Context, t tenancy.Tenant) ([]conversation.PatientThread, error)
}

// MessageSender delivers operator messages. Satisfied by *messaging.Service.
type MessageSender interface {
	Send(ctx context.Context, t tenancy.Tenant, p messaging.SendParams) (string, error)
}

// SourceAnalyzer labels how a patient found the clinic. Satisfied by
// *insights.SourceAnalyzer.
type SourceAnalyzer interface {
	AnalyzeSource(ctx context.Context, history []conversation.Message) (*insights.SourceAnalysis, error)
}

// ConversationsHandler serves the WhatsApp inbox: thread list, per-phone
// history, manual sends and the marketing-source analysis.
type ConversationsHandler struct {
	store    ConversationStore
	sender   MessageSender
	analyzer SourceAnalyzer
	logger   *logging.Logger
}

func NewConversationsHandler(store ConversationStore, sender MessageSender, analyzer SourceAnalyzer, logger *logging.Logger) *ConversationsHandler {
	if store == nil {
		panic("handlers: conversation store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &ConversationsHandler{
		store:    store,
		sender:   sender,
		analyzer: analyzer,
		logger:   logger,
	}
}

// ListThreads returns one row per patient phone, most recent first.
func (h *ConversationsHandler) ListThreads(w http.ResponseWriter, r *http.Request) {
	t, ok := tenantFrom(w, r)
	if !ok {
		return
	}
	threads, err := h.store.ListThreads(r.Context(), t)
	if err != nil {
		h.logger.Error("list threads failed", "tenant", t.ID, "error", err)
		writeError(w, http.StatusBadGateway, "could not list conversations")
		return
	}
	writeJSON(w, http.StatusOK, threads)
}

// History returns one phone's full conversation, oldest first.
func (h *ConversationsHandler) History(w http.ResponseWriter, r *http.Request) {
	t, ok := tenantFrom(w, r)
	if !ok {
		return
	}
	phone := chi.URLParam(r, "phone")
	history, err := h.store.History(r.Context(), t, phone)
	if err != nil {
		h.logger.Error("history failed", "tenant", t.ID, "phone", phone, "error", err)
		writeError(w, http.StatusBadGateway, "could not load the conversation")
		return
	}
	writeJSON(w, http.StatusOK, history)
}

type sendRequest struct {
	Message string `json:"message"`
}

// Send delivers an operator message to the patient through the gateway.
func (h *ConversationsHandler) Send(w http.ResponseWriter, r *http.Request) {
	t, ok := tenantFrom(w, r)
	if !ok {
		return
	}
	if h.sender == nil {
		writeError(w, http.StatusServiceUnavailable, "messaging is not configured")
		return
	}
	phone := chi.URLParam(r, "phone")
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	id, err := h.sender.Send(r.Context(), t, messaging.SendParams{
		Phone:   phone,
		Message: req.Message,
	})
	if err != nil {
		h.logger.Error("manual send failed", "tenant", t.ID, "phone", phone, "error", err)
		writeError(w, http.StatusBadGateway, "could not send the message")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"messageId": id})
}

// AnalyzeSource asks the model how this patient found the clinic.
func (h *ConversationsHandler) AnalyzeSource(w http.ResponseWriter, r *http.Request) {
	t, ok := tenantFrom(w, r)
	if !ok {
		return
	}
	if h.analyzer == nil {
		writeError(w, http.StatusServiceUnavailable, "analysis is not configured")
		return
	}
	phone := chi.URLParam(r, "phone")
	history, err := h.store.History(r.Context(), t, phone)
	if err != nil {
		writeError(w, http.StatusBadGateway, "could not load the conversation")
		return
	}
	if len(history) == 0 {
		writeError(w, http.StatusNotFound, "no conversation for this phone")
		return
	}
	analysis, err := h.analyzer.AnalyzeSource(r.Context(), history)
	if err != nil {
		h.logger.Error("source analysis failed", "tenant", t.ID, "phone", phone, "error", err)
		writeError(w, http.StatusBadGateway, "analysis failed")
		return
	}
	if analysis == nil {
		writeError(w, http.StatusUnprocessableEntity, "the model returned no usable analysis")
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}
