// Package messaging sends WhatsApp messages through the tenant's gateway
// instance and records every outbound turn in the conversation history.
package messaging

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/agendadigital/agenda-platform/internal/conversation"
	"github.com/agendadigital/agenda-platform/internal/messaging/zapiclient"
	"github.com/agendadigital/agenda-platform/internal/observability/metrics"
	"github.com/agendadigital/agenda-platform/internal/tenancy"
	"github.com/agendadigital/agenda-platform/pkg/logging"
)

// Gateway is the outbound WhatsApp transport.
type Gateway interface {
	SendText(ctx context.Context, creds tenancy.GatewayCredentials, req zapiclient.SendTextRequest) (*zapiclient.SendTextResponse, error)
}

// History records outbound turns. *conversation.Store satisfies it; sending
// still works when history persistence is down.
type History interface {
	Append(ctx context.Context, t tenancy.Tenant, phone, role, content string) (uuid.UUID, error)
}

// Service coordinates the gateway send and the history write.
type Service struct {
	gateway Gateway
	history History
	logger  *logging.Logger
	metrics *metrics.MessagingMetrics
	tracer  trace.Tracer
}

func NewService(gateway Gateway, history History, logger *logging.Logger, m *metrics.MessagingMetrics) *Service {
	if gateway == nil {
		panic("messaging: gateway required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		gateway: gateway,
		history: history,
		logger:  logger,
		metrics: m,
		tracer:  otel.Tracer("agenda.internal.messaging"),
	}
}

// SendParams is one outbound message. Role defaults to admin: the dashboard
// operator writing through the clinic's number.
type SendParams struct {
	Phone   string
	Message string
	Role    string
}

// Send delivers the message via the tenant's gateway instance and appends
// it to the phone's history. A history failure is logged, not returned:
// the message already reached the patient.
func (s *Service) Send(ctx context.Context, t tenancy.Tenant, p SendParams) (string, error) {
	ctx, span := s.tracer.Start(ctx, "messaging.send")
	defer span.End()
	span.SetAttributes(
		attribute.String("agenda.tenant", t.ID),
		attribute.String("agenda.phone", p.Phone),
	)

	if strings.TrimSpace(p.Message) == "" {
		return "", fmt.Errorf("messaging: empty message")
	}
	role := p.Role
	if role == "" {
		role = conversation.RoleAdmin
	}

	start := time.Now()
	resp, err := s.gateway.SendText(ctx, t.Gateway, zapiclient.SendTextRequest{
		Phone:   p.Phone,
		Message: p.Message,
	})
	s.metrics.ObserveSendLatency(t.ID, time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		s.metrics.ObserveOutbound(t.ID, "error")
		s.logger.Error("gateway send failed", "tenant", t.ID, "phone", p.Phone, "error", err)
		return "", fmt.Errorf("messaging: send to %s: %w", p.Phone, err)
	}
	s.metrics.ObserveOutbound(t.ID, "sent")

	if s.history != nil {
		if _, histErr := s.history.Append(ctx, t, p.Phone, role, p.Message); histErr != nil {
			s.logger.Error("history append failed after send", "tenant", t.ID, "phone", p.Phone, "error", histErr)
		}
	}

	s.logger.Info("message sent", "tenant", t.ID, "phone", p.Phone, "message_id", resp.MessageID)
	return resp.MessageID, nil
}
