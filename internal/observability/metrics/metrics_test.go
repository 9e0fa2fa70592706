package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestSchedulingMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSchedulingMetrics(reg)
	m.ObserveOperation("create", "committed")
	m.ObserveOperation("cancel", "failed")
	m.ObserveConflict()
	m.ObservePartialReschedule()
}

func TestMessagingMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMessagingMetrics(reg)
	m.ObserveOutbound("drm", "sent")
	m.ObserveSendLatency("drm", 0.25)
}

func TestMetricsNilSafe(t *testing.T) {
	var s *SchedulingMetrics
	s.ObserveOperation("create", "committed")
	s.ObserveConflict()
	s.ObservePartialReschedule()

	var m *MessagingMetrics
	m.ObserveOutbound("drm", "sent")
	m.ObserveSendLatency("drm", 0.1)
}
