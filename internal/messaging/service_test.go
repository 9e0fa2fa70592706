package messaging

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agendadigital/agenda-platform/internal/conversation"
	"github.com/agendadigital/agenda-platform/internal/messaging/zapiclient"
	"github.com/agendadigital/agenda-platform/internal/tenancy"
	"github.com/agendadigital/agenda-platform/pkg/logging"
)

type fakeGateway struct {
	sent    []zapiclient.SendTextRequest
	creds   []tenancy.GatewayCredentials
	failErr error
}

func (f *fakeGateway) SendText(_ context.Context, creds tenancy.GatewayCredentials, req zapiclient.SendTextRequest) (*zapiclient.SendTextResponse, error) {
	if f.failErr != nil {
		return nil, f.failErr
	}
	f.sent = append(f.sent, req)
	f.creds = append(f.creds, creds)
	return &zapiclient.SendTextResponse{MessageID: "m-1"}, nil
}

type fakeHistory struct {
	appended []struct{ Phone, Role, Content string }
	failErr  error
}

func (f *fakeHistory) Append(_ context.Context, _ tenancy.Tenant, phone, role, content string) (uuid.UUID, error) {
	if f.failErr != nil {
		return uuid.Nil, f.failErr
	}
	f.appended = append(f.appended, struct{ Phone, Role, Content string }{phone, role, content})
	return uuid.New(), nil
}

func testTenant() tenancy.Tenant {
	return tenancy.Tenant{
		ID:   "drm",
		Base: "DRM",
		Gateway: tenancy.GatewayCredentials{
			InstanceID: "INST", Token: "TOK", ClientToken: "CT",
		},
	}
}

func newService(gw *fakeGateway, hist *fakeHistory) *Service {
	var h History
	if hist != nil {
		h = hist
	}
	return NewService(gw, h, logging.NewWithWriter(io.Discard, "debug", "text"), nil)
}

func TestSendDeliversAndRecordsHistory(t *testing.T) {
	gw := &fakeGateway{}
	hist := &fakeHistory{}
	svc := newService(gw, hist)

	id, err := svc.Send(context.Background(), testTenant(), SendParams{
		Phone:   "5521998887766",
		Message: "Sua consulta foi confirmada.",
	})
	require.NoError(t, err)
	assert.Equal(t, "m-1", id)

	require.Len(t, gw.sent, 1)
	assert.Equal(t, "5521998887766", gw.sent[0].Phone)
	assert.Equal(t, "INST", gw.creds[0].InstanceID)

	require.Len(t, hist.appended, 1)
	assert.Equal(t, conversation.RoleAdmin, hist.appended[0].Role)
	assert.Equal(t, "Sua consulta foi confirmada.", hist.appended[0].Content)
}

func TestSendCustomRole(t *testing.T) {
	gw := &fakeGateway{}
	hist := &fakeHistory{}
	svc := newService(gw, hist)

	_, err := svc.Send(context.Background(), testTenant(), SendParams{
		Phone:   "5521998887766",
		Message: "lembrete automatico",
		Role:    conversation.RoleAssistant,
	})
	require.NoError(t, err)
	assert.Equal(t, conversation.RoleAssistant, hist.appended[0].Role)
}

func TestSendGatewayFailure(t *testing.T) {
	gw := &fakeGateway{failErr: errors.New("boom")}
	hist := &fakeHistory{}
	svc := newService(gw, hist)

	_, err := svc.Send(context.Background(), testTenant(), SendParams{
		Phone: "5521998887766", Message: "oi",
	})
	require.Error(t, err)
	assert.Empty(t, hist.appended, "failed sends are not recorded")
}

func TestSendSurvivesHistoryFailure(t *testing.T) {
	gw := &fakeGateway{}
	hist := &fakeHistory{failErr: errors.New("db down")}
	svc := newService(gw, hist)

	id, err := svc.Send(context.Background(), testTenant(), SendParams{
		Phone: "5521998887766", Message: "oi",
	})
	require.NoError(t, err)
	assert.Equal(t, "m-1", id)
}

func TestSendRejectsEmptyMessage(t *testing.T) {
	svc := newService(&fakeGateway{}, nil)

	_, err := svc.Send(context.Background(), testTenant(), SendParams{Phone: "5521998887766"})
	assert.Error(t, err)
}
