package scheduling

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	appevents "github.com/agendadigital/agenda-platform/internal/events"
	"github.com/agendadigital/agenda-platform/internal/tenancy"
)

// RescheduleParams describes a move from an existing booking to a new slot.
type RescheduleParams struct {
	Source          Slot
	SourcePhone     string
	Current         Appointment // snapshot of the booking being moved
	Updated         Appointment // the new form data, including the new slot
	NotifySecretary bool
}

// Reschedule moves a booking to a new slot as a saga:
//
//  1. If the destination slot equals the source, the record is overwritten
//     in place (no conflict check against itself).
//  2. Otherwise the destination is pre-checked first. An occupied
//     destination aborts the whole operation before the source is touched,
//     so a taken slot never costs the patient their original booking.
//  3. The source is cancelled with the reschedule reason.
//  4. The destination is created with a guarded commit. If that fails, a
//     compensating restore puts the source booking back; if the
//     compensation itself fails the result is the distinct partial kind.
func (s *Service) Reschedule(ctx context.Context, t tenancy.Tenant, p RescheduleParams) Result {
	ctx, span := s.tracer.Start(ctx, "scheduling.reschedule")
	defer span.End()

	dest := p.Updated.Slot()
	span.SetAttributes(
		attribute.String("agenda.tenant", t.ID),
		attribute.String("agenda.source", p.Source.ID()),
		attribute.String("agenda.destination", dest.ID()),
	)

	if errs := ValidateAppointment(p.Updated, s.now()); len(errs) > 0 {
		s.metrics.ObserveOperation("reschedule", "invalid")
		return invalid(errs)
	}

	if dest == p.Source {
		res := s.Create(ctx, t, p.Updated, CreateOptions{GuardSlot: false})
		if res.Success {
			s.metrics.ObserveOperation("reschedule", "updated")
			res.Message = "appointment updated in place"
		}
		return res
	}

	if avail := s.CheckAvailability(ctx, t, dest); !avail.Available {
		s.metrics.ObserveConflict()
		s.metrics.ObserveOperation("reschedule", "aborted")
		return failed(FailureConflict, avail.Message)
	}

	cancelRes := s.Cancel(ctx, t, CancelParams{
		Phone:           p.SourcePhone,
		Slot:            p.Source,
		Record:          p.Current,
		Reason:          ReasonRescheduled,
		NotifySecretary: p.NotifySecretary,
	})
	if !cancelRes.Success {
		s.metrics.ObserveOperation("reschedule", "aborted")
		return failed(cancelRes.Kind, "could not release the original slot: "+cancelRes.Message)
	}

	createRes := s.Create(ctx, t, p.Updated, CreateOptions{GuardSlot: true})
	if createRes.Success {
		s.metrics.ObserveOperation("reschedule", "committed")
		s.publish(appevents.TypeAppointmentRescheduled, t, dest, p.Updated.Phone, p.Updated.PatientName, ReasonRescheduled)
		paths := append(append([]string{}, cancelRes.Paths...), createRes.Paths...)
		return committed("appointment rescheduled", paths...)
	}

	// The source is already in the cancelled tree. Compensate by restoring
	// it so the failed move does not eat the original booking.
	restoreRes := s.Restore(ctx, t, CancelledRecord{
		Appointment:     restoredSnapshot(p),
		ID:              p.Source.ID(),
		CancelReason:    ReasonRescheduled,
		NotifySecretary: p.NotifySecretary,
	})
	if restoreRes.Success {
		s.metrics.ObserveOperation("reschedule", "compensated")
		return failed(createRes.Kind, createRes.Message+"; the original booking was restored")
	}

	s.metrics.ObservePartialReschedule()
	s.metrics.ObserveOperation("reschedule", "partial")
	s.logger.Error("reschedule left partially migrated",
		"tenant", t.ID,
		"source", p.Source.ID(),
		"destination", dest.ID(),
		"create_error", createRes.Message,
		"restore_error", restoreRes.Message,
	)
	return failed(FailurePartial,
		"the original booking was cancelled but the new slot could not be saved: "+createRes.Message)
}

// restoredSnapshot rebuilds the source appointment with its original slot,
// phone and content for the compensating restore.
func restoredSnapshot(p RescheduleParams) Appointment {
	a := p.Current
	a.Sector = p.Source.Sector
	a.Date = p.Source.Date
	a.Time = p.Source.Time
	a.Phone = p.SourcePhone
	return a
}
