package scheduling

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/agendadigital/agenda-platform/internal/tenancy"
)

// Booking pairs a decoded appointment with the tree path it was read from.
type Booking struct {
	Path        string      `json:"path"`
	Appointment Appointment `json:"appointment"`
}

// CancelledBooking is the cancelled-tree equivalent of Booking.
type CancelledBooking struct {
	Path   string          `json:"path"`
	Record CancelledRecord `json:"record"`
}

// ListScheduled walks the sector index. Sector narrows to one unit or
// physician, date to one day; both empty lists the whole tree. Results are
// ordered by path, which sorts sector, then date, then time.
func (s *Service) ListScheduled(ctx context.Context, t tenancy.Tenant, sector, date string) ([]Booking, error) {
	ctx, span := s.tracer.Start(ctx, "scheduling.list_scheduled")
	defer span.End()
	span.SetAttributes(attribute.String("agenda.tenant", t.ID))

	prefix := ScheduledIndexPrefix(t)
	if sector != "" {
		prefix = ScheduledSectorPrefix(t, sector, date)
	}
	nodes, err := s.store.ListByPrefix(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("scheduling: list scheduled: %w", err)
	}

	out := make([]Booking, 0, len(nodes))
	for path, node := range nodes {
		if sector == "" && date != "" && !strings.Contains(path, "/"+date+"/") {
			continue
		}
		a, decErr := DecodeScheduled(node)
		if decErr != nil {
			s.logger.Warn("skipping undecodable scheduled node", "path", path, "error", decErr)
			continue
		}
		out = append(out, Booking{Path: path, Appointment: a})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// ListByPhone returns every scheduled booking of one patient phone.
func (s *Service) ListByPhone(ctx context.Context, t tenancy.Tenant, phone string) ([]Booking, error) {
	ctx, span := s.tracer.Start(ctx, "scheduling.list_by_phone")
	defer span.End()

	nodes, err := s.store.ListByPrefix(ctx, ScheduledPhonePrefix(t, phone))
	if err != nil {
		return nil, fmt.Errorf("scheduling: list by phone: %w", err)
	}
	out := make([]Booking, 0, len(nodes))
	for path, node := range nodes {
		a, decErr := DecodeScheduled(node)
		if decErr != nil {
			s.logger.Warn("skipping undecodable scheduled node", "path", path, "error", decErr)
			continue
		}
		out = append(out, Booking{Path: path, Appointment: a})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// ListCancelled walks the cancelled tree's sector index.
func (s *Service) ListCancelled(ctx context.Context, t tenancy.Tenant) ([]CancelledBooking, error) {
	ctx, span := s.tracer.Start(ctx, "scheduling.list_cancelled")
	defer span.End()

	nodes, err := s.store.ListByPrefix(ctx, CancelledIndexPrefix(t))
	if err != nil {
		return nil, fmt.Errorf("scheduling: list cancelled: %w", err)
	}
	out := make([]CancelledBooking, 0, len(nodes))
	for path, node := range nodes {
		rec, decErr := DecodeCancelled(node)
		if decErr != nil {
			s.logger.Warn("skipping undecodable cancelled node", "path", path, "error", decErr)
			continue
		}
		out = append(out, CancelledBooking{Path: path, Record: rec})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// GetCancelled does a point read of one slot's cancelled-tree record.
// Missing slots return a nil record and no error.
func (s *Service) GetCancelled(ctx context.Context, t tenancy.Tenant, slot Slot) (*CancelledRecord, error) {
	node, err := s.store.Get(ctx, CancelledSectorPath(t, slot))
	if err != nil {
		return nil, fmt.Errorf("scheduling: get cancelled: %w", err)
	}
	if node == nil {
		return nil, nil
	}
	rec, err := DecodeCancelled(node)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetScheduled does a point read of one slot's sector-index record. Missing
// slots return a nil booking and no error.
func (s *Service) GetScheduled(ctx context.Context, t tenancy.Tenant, slot Slot) (*Booking, error) {
	path := ScheduledSectorPath(t, slot)
	node, err := s.store.Get(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("scheduling: get scheduled: %w", err)
	}
	if node == nil {
		return nil, nil
	}
	a, err := DecodeScheduled(node)
	if err != nil {
		return nil, err
	}
	return &Booking{Path: path, Appointment: a}, nil
}
