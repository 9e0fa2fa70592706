package scheduling

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"

	appevents "github.com/agendadigital/agenda-platform/internal/events"
	"github.com/agendadigital/agenda-platform/internal/tenancy"
)

// Cancellation reasons written into the cancelled tree.
const (
	ReasonCancelled   = "Consulta cancelada"
	ReasonRescheduled = "Consulta reagendada"
)

// CancelParams identifies the booking to move and how to enrich it.
type CancelParams struct {
	Phone           string
	Slot            Slot
	Record          Appointment
	Reason          string
	NotifySecretary bool
}

/// Cancel moves a booking from the scheduled tree to the cancelled tree: one
// multi-path update that populates the two cancelled-tree index paths with
// the enriched record and tombstones the two scheduled-tree paths.
func (s *Service) Cancel(ctx context.Context, tenant tenancy.Tenant, p CancelParams) Result {
	ctx, span := s.tracer.Start(ctx, "scheduling.cancel")
	defer span.End()
	span.SetAttributes(
		attribute.String("agenda.tenant", tenant.ID),
		attribute.String("agenda.slot", p.Slot.ID()),
	)

	rec := CancelledRecord{
		Appointment:     p.Record,
		ID:              p.Slot.ID(),
		CancelReason:    p.Reason,
		NotifySecretary: p.NotifySecretary,
	}
	// The record must carry the slot it is being cancelled from, even when
	// the caller's snapshot is stale.
	rec.Sector = p.Slot.Sector
	rec.Date = p.Slot.Date
	rec.Time = p.Slot.Time
	rec.Phone = p.Phone

	node := EncodeCancelled(tenant, rec)
	update := MultiPathUpdate{
		Writes: map[string]map[string]any{
			CancelledSectorPath(tenant, p.Slot):          node,
			CancelledPhonePath(tenant, p.Phone, p.Slot):  node,
			ScheduledSectorPath(tenant, p.Slot):          nil,
			ScheduledPhonePath(tenant, p.Phone, p.Slot):  nil,
		},
	}

	if err := s.store.Commit(ctx, update); err != nil {
		span.RecordError(err)
		s.metrics.ObserveOperation("cancel", "failed")
		s.logger.Error("appointment cancel failed", "tenant", tenant.ID, "slot", p.Slot.ID(), "error", err)
		return failed(FailureStore, "could not cancel the appointment: "+err.Error())
	}

	s.metrics.ObserveOperation("cancel", "committed")
	s.publish(appevents.TypeAppointmentCancelled, tenant, p.Slot, p.Phone, p.Record.PatientName, rec.CancelReason)
	s.logger.Info("appointment cancelled", "tenant", tenant.ID, "slot", p.Slot.ID(), "reason", rec.CancelReason)
	return committed(
		"appointment moved to the cancelled tree",
		CancelledSectorPath(tenant, p.Slot),
		CancelledPhonePath(tenant, p.Phone, p.Slot),
		ScheduledSectorPath(tenant, p.Slot),
		ScheduledPhonePath(tenant, p.Phone, p.Slot),
	)
}

// Restore is the exact inverse of Cancel for the same key quadruple: the
// scheduled paths are repopulated (minus the cancellation metadata) and the
// cancelled paths tombstoned. The commit is guarded on the scheduled sector
// path because the slot may have been rebooked since the cancellation.
func (s *Service) Restore(ctx context.Context, tenant tenancy.Tenant, rec CancelledRecord) Result {
	slot := rec.Appointment.Slot()
	ctx, span := s.tracer.Start(ctx, "scheduling.restore")
	defer span.End()
	span.SetAttributes(
		attribute.String("agenda.tenant", tenant.ID),
		attribute.String("agenda.slot", slot.ID()),
	)

	node := EncodeScheduled(tenant, rec.Appointment)
	sectorPath := ScheduledSectorPath(tenant, slot)
	update := MultiPathUpdate{
		Writes: map[string]map[string]any{
			sectorPath: node,
			ScheduledPhonePath(tenant, rec.Phone, slot):  node,
			CancelledSectorPath(tenant, slot):            nil,
			CancelledPhonePath(tenant, rec.Phone, slot):  nil,
		},
		Guards: []string{sectorPath},
	}

	if err := s.store.Commit(ctx, update); err != nil {
		span.RecordError(err)
		if errors.Is(err, ErrSlotTaken) {
			s.metrics.ObserveConflict()
			s.metrics.ObserveOperation("restore", "conflict")
			return failed(FailureConflict, "the original slot has been booked by another appointment")
		}
		s.metrics.ObserveOperation("restore", "failed")
		s.logger.Error("appointment restore failed", "tenant", tenant.ID, "slot", slot.ID(), "error", err)
		return failed(FailureStore, "could not restore the appointment: "+err.Error())
	}

	s.metrics.ObserveOperation("restore", "committed")
	s.publish(appevents.TypeAppointmentRestored, tenant, slot, rec.Phone, rec.PatientName, "")
	s.logger.Info("appointment restored", "tenant", tenant.ID, "slot", slot.ID())
	return committed(
		"appointment restored to the scheduled tree",
		sectorPath,
		ScheduledPhonePath(tenant, rec.Phone, slot),
		CancelledSectorPath(tenant, slot),
		CancelledPhonePath(tenant, rec.Phone, slot),
	)
}
