package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// OutboxDispatchTotal counts persistence command dispatch outcomes.
	OutboxDispatchTotal *prometheus.CounterVec
	// OutboxDispatchLatency records dispatch latency in milliseconds.
	OutboxDispatchLatency *prometheus.HistogramVec
	// OutboxDropped counts commands dropped because the queue was full.
	OutboxDropped prometheus.Counter
	// EditorSessions tracks open editor sessions.
	EditorSessions prometheus.Gauge
	// SavesTotal counts save outcomes by editor mode.
	SavesTotal *prometheus.CounterVec
	// MergeConflicts counts purchase/sale rows flagged with a basis conflict on add.
	MergeConflicts prometheus.Counter
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		OutboxDispatchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_dispatch_total",
			Help:      "Count of persistence command dispatch outcomes.",
		}, []string{"kind", "result"})
		OutboxDispatchLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "outbox_dispatch_duration_ms",
			Help:      "Latency for persistence command dispatch in milliseconds.",
			Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"kind"})
		OutboxDropped = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_dropped_total",
			Help:      "Number of persistence commands dropped because the queue was full.",
		})
		EditorSessions = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "editor_sessions",
			Help:      "Number of open editor sessions.",
		})
		SavesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "saves_total",
			Help:      "Count of liquidation saves by mode and outcome.",
		}, []string{"mode", "result"})
		MergeConflicts = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "merge_conflicts_total",
			Help:      "Number of item adds that left a rubro with conflicting bases.",
		})

		mustRegisterCollector(reg, OutboxDispatchTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				OutboxDispatchTotal = v
			}
		})
		mustRegisterCollector(reg, OutboxDispatchLatency, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.HistogramVec); ok {
				OutboxDispatchLatency = v
			}
		})
		mustRegisterCollector(reg, OutboxDropped, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				OutboxDropped = v
			}
		})
		mustRegisterCollector(reg, EditorSessions, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Gauge); ok {
				EditorSessions = v
			}
		})
		mustRegisterCollector(reg, SavesTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				SavesTotal = v
			}
		})
		mustRegisterCollector(reg, MergeConflicts, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				MergeConflicts = v
			}
		})
	})
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
