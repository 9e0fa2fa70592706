package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agendadigital/agenda-platform/internal/conversation"
	"github.com/agendadigital/agenda-platform/internal/insights"
	"github.com/agendadigital/agenda-platform/internal/messaging"
	"github.com/agendadigital/agenda-platform/internal/tenancy"
	"github.com/agendadigital/agenda-platform/pkg/logging"
)

type fakeConversationStore struct {
	threads []conversation.PatientThread
	history map[string][]conversation.Message
	err     error
}

func (f *fakeConversationStore) ListThreads(_ context.Context, _ tenancy.Tenant) ([]conversation.PatientThread, error) {
	return f.threads, f.err
}

func (f *fakeConversationStore) History(_ context.Context, _ tenancy.Tenant, phone string) ([]conversation.Message, error) {
	return f.history[phone], f.err
}

type fakeMessageSender struct {
	lastParams messaging.SendParams
	err        error
}

func (f *fakeMessageSender) Send(_ context.Context, _ tenancy.Tenant, p messaging.SendParams) (string, error) {
	f.lastParams = p
	if f.err != nil {
		return "", f.err
	}
	return "msg-123", nil
}

type fakeAnalyzer struct {
	analysis *insights.SourceAnalysis
	err      error
}

func (f *fakeAnalyzer) AnalyzeSource(_ context.Context, _ []conversation.Message) (*insights.SourceAnalysis, error) {
	return f.analysis, f.err
}

func conversationsRouter(h *ConversationsHandler) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			t := tenancy.Tenant{ID: "drm", Base: "DRM", Mode: tenancy.ModeUnit}
			next.ServeHTTP(w, req.WithContext(tenancy.WithTenant(req.Context(), t)))
		})
	})
	r.Get("/", h.ListThreads)
	r.Get("/{phone}", h.History)
	r.Post("/{phone}/send", h.Send)
	r.Post("/{phone}/source-analysis", h.AnalyzeSource)
	return r
}

func testLogger() *logging.Logger {
	return logging.NewWithWriter(io.Discard, "error", "text")
}

func TestListThreads(t *testing.T) {
	store := &fakeConversationStore{threads: []conversation.PatientThread{
		{Phone: "21998887766", MessageCount: 4, LastMessageAt: time.Now(), LastPreview: "obrigada"},
	}}
	h := NewConversationsHandler(store, nil, nil, testLogger())

	rec := httptest.NewRecorder()
	conversationsRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "21998887766")
}

func TestListThreadsStoreFailure(t *testing.T) {
	store := &fakeConversationStore{err: errors.New("boom")}
	h := NewConversationsHandler(store, nil, nil, testLogger())

	rec := httptest.NewRecorder()
	conversationsRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestHistory(t *testing.T) {
	store := &fakeConversationStore{history: map[string][]conversation.Message{
		"21998887766": {
			{ID: uuid.New(), Phone: "21998887766", Role: conversation.RoleUser, Content: "bom dia"},
		},
	}}
	h := NewConversationsHandler(store, nil, nil, testLogger())

	rec := httptest.NewRecorder()
	conversationsRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/21998887766", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "bom dia")
}

func TestSendMessage(t *testing.T) {
	store := &fakeConversationStore{}
	sender := &fakeMessageSender{}
	h := NewConversationsHandler(store, sender, nil, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/21998887766/send", strings.NewReader(`{"message":"sua consulta foi confirmada"}`))
	rec := httptest.NewRecorder()
	conversationsRouter(h).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "msg-123")
	assert.Equal(t, "21998887766", sender.lastParams.Phone)
	assert.Equal(t, "sua consulta foi confirmada", sender.lastParams.Message)
}

func TestSendWithoutSenderConfigured(t *testing.T) {
	h := NewConversationsHandler(&fakeConversationStore{}, nil, nil, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/21998887766/send", strings.NewReader(`{"message":"oi"}`))
	rec := httptest.NewRecorder()
	conversationsRouter(h).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSendGatewayFailure(t *testing.T) {
	sender := &fakeMessageSender{err: errors.New("gateway down")}
	h := NewConversationsHandler(&fakeConversationStore{}, sender, nil, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/21998887766/send", strings.NewReader(`{"message":"oi"}`))
	rec := httptest.NewRecorder()
	conversationsRouter(h).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestAnalyzeSource(t *testing.T) {
	store := &fakeConversationStore{history: map[string][]conversation.Message{
		"21998887766": {
			{ID: uuid.New(), Phone: "21998887766", Role: conversation.RoleUser, Content: "vi no instagram"},
		},
	}}
	analyzer := &fakeAnalyzer{analysis: &insights.SourceAnalysis{
		Source:     "Instagram",
		Confidence: "alta",
		Reason:     "paciente menciona a rede social",
	}}
	h := NewConversationsHandler(store, nil, analyzer, testLogger())

	rec := httptest.NewRecorder()
	conversationsRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/21998887766/source-analysis", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Instagram")
}

func TestAnalyzeSourceEmptyHistory(t *testing.T) {
	h := NewConversationsHandler(&fakeConversationStore{}, nil, &fakeAnalyzer{}, testLogger())

	rec := httptest.NewRecorder()
	conversationsRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/21998887766/source-analysis", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAnalyzeSourceUnusableResult(t *testing.T) {
	store := &fakeConversationStore{history: map[string][]conversation.Message{
		"21998887766": {
			{ID: uuid.New(), Phone: "21998887766", Role: conversation.RoleUser, Content: "oi"},
		},
	}}
	h := NewConversationsHandler(store, nil, &fakeAnalyzer{analysis: nil}, testLogger())

	rec := httptest.NewRecorder()
	conversationsRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/21998887766/source-analysis", nil))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
