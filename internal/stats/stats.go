// Package stats aggregates the scheduled and cancelled trees into the
// numbers the dashboard charts: volume by sector, insurer, exam, month and
// patient age band, plus an estimated revenue from the exam price table.
package stats

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/agendadigital/agenda-platform/internal/catalog"
	"github.com/agendadigital/agenda-platform/internal/scheduling"
	"github.com/agendadigital/agenda-platform/internal/tenancy"
	"github.com/agendadigital/agenda-platform/pkg/logging"
)

// Overview is one tenant's aggregate picture, optionally narrowed to one
// month.
type Overview struct {
	TenantID         string          `json:"tenantId"`
	Month            string          `json:"month,omitempty"`
	TotalScheduled   int             `json:"totalScheduled"`
	TotalCancelled   int             `json:"totalCancelled"`
	BySector         map[string]int  `json:"bySector"`
	ByInsurer        map[string]int  `json:"byInsurer"`
	ByExam           map[string]int  `json:"byExam"`
	ByMonth          map[string]int  `json:"byMonth"`
	ByAgeBand        map[string]int  `json:"byAgeBand"`
	EstimatedRevenue float64         `json:"estimatedRevenue"`
	SendLatency      LatencySnapshot `json:"sendLatency"`
}

// LatencySnapshot summarizes the gateway send histogram for one tenant.
type LatencySnapshot struct {
	Total   int64           `json:"total"`
	P90Ms   float64         `json:"p90_ms"`
	P95Ms   float64         `json:"p95_ms"`
	Buckets []LatencyBucket `json:"buckets,omitempty"`
}

type LatencyBucket struct {
	LeSeconds float64 `json:"le_seconds"`
	Count     int64   `json:"count"`
}

type Service struct {
	sched    *scheduling.Service
	catalog  *catalog.Service
	gatherer prometheus.Gatherer
	logger   *logging.Logger
	now      func() time.Time
}

func NewService(sched *scheduling.Service, cat *catalog.Service, gatherer prometheus.Gatherer, logger *logging.Logger) *Service {
	if sched == nil {
		panic("stats: scheduling service required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		sched:    sched,
		catalog:  cat,
		gatherer: gatherer,
		logger:   logger,
		now:      time.Now,
	}
}

// Overview scans both trees and folds every booking into the aggregates.
// A non-empty month (yyyy-MM) narrows the scheduled aggregates to bookings
// in that month; cancelled totals always cover the whole tree.
func (s *Service) Overview(ctx context.Context, t tenancy.Tenant, month string) (Overview, error) {
	scheduled, err := s.sched.ListScheduled(ctx, t, "", "")
	if err != nil {
		return Overview{}, fmt.Errorf("stats: list scheduled: %w", err)
	}
	cancelled, err := s.sched.ListCancelled(ctx, t)
	if err != nil {
		return Overview{}, fmt.Errorf("stats: list cancelled: %w", err)
	}

	var prices map[string]float64
	if s.catalog != nil {
		prices, err = s.catalog.PriceTable(ctx, t)
		if err != nil {
			s.logger.Warn("price table unavailable, revenue estimate skipped", "tenant", t.ID, "error", err)
			prices = nil
		}
	}

	out := Overview{
		TenantID:       t.ID,
		Month:          month,
		TotalCancelled: len(cancelled),
		BySector:       map[string]int{},
		ByInsurer:      map[string]int{},
		ByExam:         map[string]int{},
		ByMonth:        map[string]int{},
		ByAgeBand:      map[string]int{},
	}

	now := s.now()
	for _, b := range scheduled {
		a := b.Appointment
		if month != "" && !strings.HasPrefix(a.Date, month) {
			continue
		}
		out.TotalScheduled++
		out.BySector[a.Sector]++
		out.ByInsurer[a.Insurance]++
		if len(a.Date) >= 7 {
			out.ByMonth[a.Date[:7]]++
		}
		out.ByAgeBand[ageBand(a.BirthDate, now)]++
		for _, exam := range a.Exams {
			out.ByExam[exam]++
			if prices != nil {
				out.EstimatedRevenue += prices[exam]
			}
		}
	}

	out.SendLatency = snapshotSendLatency(s.gatherer, t.ID)
	return out, nil
}

// ageBand buckets a patient by age at the reference time.
func ageBand(birthISO string, now time.Time) string {
	birth, err := time.Parse("2006-01-02", birthISO)
	if err != nil {
		return "desconhecida"
	}
	age := now.Year() - birth.Year()
	if now.YearDay() < birth.YearDay() {
		age--
	}
	switch {
	case age < 18:
		return "0-17"
	case age < 30:
		return "18-29"
	case age < 45:
		return "30-44"
	case age < 60:
		return "45-59"
	default:
		return "60+"
	}
}

func snapshotSendLatency(gatherer prometheus.Gatherer, tenantID string) LatencySnapshot {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	mfs, err := gatherer.Gather()
	if err != nil {
		return LatencySnapshot{}
	}

	var family *dto.MetricFamily
	for _, mf := range mfs {
		if mf != nil && mf.GetName() == "agenda_messaging_send_latency_seconds" {
			family = mf
			break
		}
	}
	if family == nil {
		return LatencySnapshot{}
	}

	cumulativeByUpper := map[float64]uint64{}
	var sampleCount uint64
	for _, metric := range family.Metric {
		if metric == nil || !hasLabel(metric, "tenant", tenantID) {
			continue
		}
		h := metric.GetHistogram()
		if h == nil {
			continue
		}
		sampleCount += h.GetSampleCount()
		for _, b := range h.Bucket {
			if b == nil {
				continue
			}
			cumulativeByUpper[b.GetUpperBound()] += b.GetCumulativeCount()
		}
	}
	if sampleCount == 0 || len(cumulativeByUpper) == 0 {
		return LatencySnapshot{}
	}

	uppers := make([]float64, 0, len(cumulativeByUpper))
	for upper := range cumulativeByUpper {
		uppers = append(uppers, upper)
	}
	sort.Float64s(uppers)

	snapshot := LatencySnapshot{Total: int64(sampleCount)}
	var prev uint64
	for _, upper := range uppers {
		cum := cumulativeByUpper[upper]
		count := int64(cum)
		if cum >= prev {
			count = int64(cum - prev)
		}
		prev = cum
		if math.IsInf(upper, 1) {
			continue
		}
		snapshot.Buckets = append(snapshot.Buckets, LatencyBucket{LeSeconds: upper, Count: count})
	}
	snapshot.P90Ms = quantileMs(uppers, cumulativeByUpper, sampleCount, 0.90)
	snapshot.P95Ms = quantileMs(uppers, cumulativeByUpper, sampleCount, 0.95)
	return snapshot
}

// quantileMs reads an upper-bound estimate of the q quantile off the
// cumulative histogram, in milliseconds.
func quantileMs(uppers []float64, cumulative map[float64]uint64, total uint64, q float64) float64 {
	threshold := uint64(math.Ceil(q * float64(total)))
	for _, upper := range uppers {
		if cumulative[upper] >= threshold {
			if math.IsInf(upper, 1) {
				return 0
			}
			return upper * 1000
		}
	}
	return 0
}

func hasLabel(metric *dto.Metric, name, value string) bool {
	for _, lp := range metric.GetLabel() {
		if lp.GetName() == name && lp.GetValue() == value {
			return true
		}
	}
	return false
}
