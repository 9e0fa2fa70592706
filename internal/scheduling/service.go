package scheduling

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	appevents "github.com/agendadigital/agenda-platform/internal/events"
	"github.com/agendadigital/agenda-platform/internal/observability/metrics"
	"github.com/agendadigital/agenda-platform/internal/tenancy"
	"github.com/agendadigital/agenda-platform/pkg/logging"
)

// Service implements the appointment ledger: dual-index writes over the
// scheduled tree, the cancel/restore mover and the reschedule orchestrator.
type Service struct {
	store   TreeStore
	logger  *logging.Logger
	metrics *metrics.SchedulingMetrics
	events  appevents.Publisher
	tracer  trace.Tracer
	now     func() time.Time
}

func NewService(store TreeStore, logger *logging.Logger, m *metrics.SchedulingMetrics, publisher appevents.Publisher) *Service {
	if store == nil {
		panic("scheduling: tree store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		store:   store,
		logger:  logger,
		metrics: m,
		events:  publisher,
		tracer:  otel.Tracer("agenda.internal.scheduling"),
		now:     time.Now,
	}
}

// Availability is the outcome of a slot pre-check.
type Availability struct {
	Available bool   `json:"available"`
	Message   string `json:"message,omitempty"`
}

// CheckAvailability performs a single point read at the slot's sector-index
// path. A read failure degrades to "unavailable": double-booking a patient
// is worse than asking the operator to retry.
func (s *Service) CheckAvailability(ctx context.Context, t tenancy.Tenant, slot Slot) Availability {
	ctx, span := s.tracer.Start(ctx, "scheduling.check_availability")
	defer span.End()
	span.SetAttributes(attribute.String("agenda.slot", slot.ID()))

	node, err := s.store.Get(ctx, ScheduledSectorPath(t, slot))
	if err != nil {
		span.RecordError(err)
		s.logger.Error("availability check failed", "tenant", t.ID, "slot", slot.ID(), "error", err)
		return Availability{Available: false, Message: "could not verify the slot; please try again"}
	}
	if node != nil {
		return Availability{Available: false, Message: "there is already an appointment for this time and location"}
	}
	return Availability{Available: true}
}

// CreateOptions tunes a single create call.
type CreateOptions struct {
	// GuardSlot makes the commit conditional on the destination staying
	// vacant. It is disabled only when overwriting a record in place.
	GuardSlot bool
}

// Create validates the appointment and writes the same payload under the
// sector-index and phone-index paths in one multi-path update. Either both
// copies land or neither does.
func (s *Service) Create(ctx context.Context, t tenancy.Tenant, a Appointment, opts CreateOptions) Result {
	ctx, span := s.tracer.Start(ctx, "scheduling.create")
	defer span.End()
	span.SetAttributes(
		attribute.String("agenda.tenant", t.ID),
		attribute.String("agenda.slot", a.Slot().ID()),
	)

	if errs := ValidateAppointment(a, s.now()); len(errs) > 0 {
		s.metrics.ObserveOperation("create", "invalid")
		return invalid(errs)
	}

	slot := a.Slot()
	sectorPath := ScheduledSectorPath(t, slot)
	phonePath := ScheduledPhonePath(t, a.Phone, slot)
	node := EncodeScheduled(t, a)

	update := MultiPathUpdate{
		Writes: map[string]map[string]any{
			sectorPath: node,
			phonePath:  node,
		},
	}
	if opts.GuardSlot {
		update.Guards = []string{sectorPath}
	}

	if err := s.store.Commit(ctx, update); err != nil {
		span.RecordError(err)
		if errors.Is(err, ErrSlotTaken) {
			s.metrics.ObserveConflict()
			s.metrics.ObserveOperation("create", "conflict")
			return failed(FailureConflict, "there is already an appointment for this time and location")
		}
		s.metrics.ObserveOperation("create", "failed")
		s.logger.Error("appointment create failed", "tenant", t.ID, "slot", slot.ID(), "error", err)
		return failed(FailureStore, "could not save the appointment: "+err.Error())
	}

	s.metrics.ObserveOperation("create", "committed")
	s.publish(appevents.TypeAppointmentBooked, t, slot, a.Phone, a.PatientName, "")
	s.logger.Info("appointment saved", "tenant", t.ID, "slot", slot.ID(), "phone", a.Phone)
	return committed("appointment saved at both index paths", sectorPath, phonePath)
}

func (s *Service) publish(eventType string, t tenancy.Tenant, slot Slot, phone, patient, reason string) {
	if s.events == nil {
		return
	}
	evt := appevents.NewAppointmentChange(eventType, t.ID, slot.Sector, slot.Date, slot.Time, phone)
	evt.PatientName = patient
	evt.Reason = reason
	s.events.PublishAppointmentChange(evt)
}
