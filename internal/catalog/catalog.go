// Package catalog exposes the read-only configuration subtrees: bookable
// sectors, accepted insurers, the exam price list and the holiday calendar.
// The dashboard edits these nodes out of band; this service only reads.
package catalog

import (
	"context"
	"fmt"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/agendadigital/agenda-platform/internal/scheduling"
	"github.com/agendadigital/agenda-platform/internal/tenancy"
	"github.com/agendadigital/agenda-platform/pkg/logging"
)

// Configuration node names under agendamentoWhatsApp/configuracoes.
const (
	nodeUnits    = "unidades"
	nodeDoctors  = "medicos"
	nodeInsurers = "convenios"
	nodeExams    = "exames"
	nodeHolidays = "feriados"
)

// Exam is one priced catalog entry.
type Exam struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// Holiday is one blocked calendar day.
type Holiday struct {
	Date string `json:"date"` // yyyy-MM-dd
	Name string `json:"name"`
}

type Service struct {
	store  scheduling.TreeStore
	logger *logging.Logger
	tracer trace.Tracer
}

func NewService(store scheduling.TreeStore, logger *logging.Logger) *Service {
	if store == nil {
		panic("catalog: tree store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		store:  store,
		logger: logger,
		tracer: otel.Tracer("agenda.internal.catalog"),
	}
}

// Sectors lists the bookable sectors of the tenant: physical units for
// unit-indexed tenants, physicians for doctor-indexed ones.
func (s *Service) Sectors(ctx context.Context, t tenancy.Tenant) ([]string, error) {
	node := nodeUnits
	if t.Mode == tenancy.ModeDoctor {
		node = nodeDoctors
	}
	return s.names(ctx, t, node)
}

// Insurers lists the accepted insurance plans.
func (s *Service) Insurers(ctx context.Context, t tenancy.Tenant) ([]string, error) {
	return s.names(ctx, t, nodeInsurers)
}

// Exams lists the exam catalog with prices, sorted by name. Entries whose
// value is not numeric get price zero rather than being dropped.
func (s *Service) Exams(ctx context.Context, t tenancy.Tenant) ([]Exam, error) {
	node, err := s.read(ctx, t, nodeExams)
	if err != nil {
		return nil, err
	}
	out := make([]Exam, 0, len(node))
	for name, raw := range node {
		price, _ := raw.(float64)
		out = append(out, Exam{Name: name, Price: price})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// PriceTable returns exam prices keyed by name for revenue estimates.
func (s *Service) PriceTable(ctx context.Context, t tenancy.Tenant) (map[string]float64, error) {
	exams, err := s.Exams(ctx, t)
	if err != nil {
		return nil, err
	}
	table := make(map[string]float64, len(exams))
	for _, e := range exams {
		table[e.Name] = e.Price
	}
	return table, nil
}

// Holidays lists the blocked days sorted by date.
func (s *Service) Holidays(ctx context.Context, t tenancy.Tenant) ([]Holiday, error) {
	node, err := s.read(ctx, t, nodeHolidays)
	if err != nil {
		return nil, err
	}
	out := make([]Holiday, 0, len(node))
	for date, raw := range node {
		name, _ := raw.(string)
		out = append(out, Holiday{Date: date, Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

// IsHoliday reports whether date (yyyy-MM-dd) is blocked, and the holiday
// name when it is.
func (s *Service) IsHoliday(ctx context.Context, t tenancy.Tenant, date string) (string, bool, error) {
	node, err := s.read(ctx, t, nodeHolidays)
	if err != nil {
		return "", false, err
	}
	raw, ok := node[date]
	if !ok {
		return "", false, nil
	}
	name, _ := raw.(string)
	return name, true, nil
}

func (s *Service) names(ctx context.Context, t tenancy.Tenant, node string) ([]string, error) {
	values, err := s.read(ctx, t, node)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(values))
	for name := range values {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

// read fetches one configuration node. A missing node is an empty catalog,
// not an error: new tenants start with nothing configured.
func (s *Service) read(ctx context.Context, t tenancy.Tenant, node string) (map[string]any, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.read")
	defer span.End()
	span.SetAttributes(
		attribute.String("agenda.tenant", t.ID),
		attribute.String("agenda.node", node),
	)

	values, err := s.store.Get(ctx, scheduling.ConfigPath(t, node))
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("catalog: read %s: %w", node, err)
	}
	if values == nil {
		return map[string]any{}, nil
	}
	return values, nil
}
