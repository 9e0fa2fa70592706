// Package notify tells the clinic secretary about appointment changes. The
// primary channel is WhatsApp to the secretary's own number; email is an
// optional second channel for clinics that configured one.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/agendadigital/agenda-platform/internal/messaging"
	"github.com/agendadigital/agenda-platform/internal/scheduling"
	"github.com/agendadigital/agenda-platform/internal/tenancy"
	"github.com/agendadigital/agenda-platform/pkg/logging"
)

// MessageSender delivers WhatsApp texts. *messaging.Service satisfies it.
type MessageSender interface {
	Send(ctx context.Context, t tenancy.Tenant, p messaging.SendParams) (string, error)
}

// Service handles secretary notifications.
type Service struct {
	sender MessageSender
	email  EmailSender
	logger *logging.Logger
}

func NewService(sender MessageSender, email EmailSender, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{sender: sender, email: email, logger: logger}
}

// NotifyCancellation alerts the secretary that a booking left the schedule.
// The record's NotifySecretary flag gates the whole thing; tenants without a
// secretary phone fall back to email only.
func (s *Service) NotifyCancellation(ctx context.Context, t tenancy.Tenant, rec scheduling.CancelledRecord) error {
	if !rec.NotifySecretary {
		return nil
	}

	body := cancellationMessage(rec)
	var errs []string

	if s.sender != nil && t.SecretaryPhone != "" {
		if _, err := s.sender.Send(ctx, t, messaging.SendParams{
			Phone:   t.SecretaryPhone,
			Message: body,
		}); err != nil {
			s.logger.Error("secretary whatsapp notification failed", "tenant", t.ID, "error", err)
			errs = append(errs, err.Error())
		}
	}

	if s.email != nil && t.NotifyEmail != "" {
		if err := s.email.Send(ctx, EmailMessage{
			To:      t.NotifyEmail,
			ToName:  t.DisplayName,
			Subject: "Consulta cancelada: " + rec.PatientName,
			Body:    body,
		}); err != nil {
			s.logger.Error("secretary email notification failed", "tenant", t.ID, "error", err)
			errs = append(errs, err.Error())
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: cancellation notification: %s", strings.Join(errs, "; "))
	}
	return nil
}

// NotifyRestore alerts the secretary that a cancelled booking came back.
func (s *Service) NotifyRestore(ctx context.Context, t tenancy.Tenant, rec scheduling.CancelledRecord) error {
	if !rec.NotifySecretary {
		return nil
	}
	if s.sender == nil || t.SecretaryPhone == "" {
		return nil
	}

	body := fmt.Sprintf(
		"Consulta restaurada: %s voltou para %s as %s (%s).",
		rec.PatientName, brDate(rec.Date), rec.Time, rec.Sector,
	)
	if _, err := s.sender.Send(ctx, t, messaging.SendParams{
		Phone:   t.SecretaryPhone,
		Message: body,
	}); err != nil {
		s.logger.Error("secretary restore notification failed", "tenant", t.ID, "error", err)
		return fmt.Errorf("notify: restore notification: %w", err)
	}
	return nil
}

func cancellationMessage(rec scheduling.CancelledRecord) string {
	reason := rec.CancelReason
	if reason == "" {
		reason = scheduling.ReasonCancelled
	}
	return fmt.Sprintf(
		"%s: %s, %s as %s (%s). Telefone do paciente: %s.",
		reason, rec.PatientName, brDate(rec.Date), rec.Time, rec.Sector, rec.Phone,
	)
}

// brDate renders yyyy-MM-dd as dd/MM/yyyy for human-facing messages.
func brDate(iso string) string {
	parts := strings.Split(iso, "-")
	if len(parts) != 3 {
		return iso
	}
	return parts[2] + "/" + parts[1] + "/" + parts[0]
}
