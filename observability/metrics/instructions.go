package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type InstructionMetrics struct {
	applied        *prometheus.CounterVec
	failures       *prometheus.CounterVec
	applyDuration  prometheus.Histogram
	streamsActive  prometheus.Gauge
	bountiesActive prometheus.Gauge
}

var (
	instructionsOnce     sync.Once
	instructionsRegistry *InstructionMetrics
)

func Instructions() *InstructionMetrics {
	instructionsOnce.Do(func() {
		instructionsRegistry = &InstructionMetrics{
			applied: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "paystream_instructions_applied_total",
				Help: "Count of successfully applied instructions by kind.",
			}, []string{"kind"}),
			failures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "paystream_instruction_failures_total",
				Help: "Count of rejected instructions by kind and error code.",
			}, []string{"kind", "code"}),
			applyDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
				Name:    "paystream_instruction_apply_seconds",
				Help:    "Latency of instruction application including state commit.",
				Buckets: prometheus.DefBuckets,
			}),
			streamsActive: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "paystream_streams_active",
				Help: "Number of stream sessions currently open.",
			}),
			bountiesActive: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "paystream_bounties_active",
				Help: "Number of bounty pools currently open.",
			}),
		}
		prometheus.MustRegister(
			instructionsRegistry.applied,
			instructionsRegistry.failures,
			instructionsRegistry.applyDuration,
			instructionsRegistry.streamsActive,
			instructionsRegistry.bountiesActive,
		)
	})
	return instructionsRegistry
}

func (m *InstructionMetrics) ObserveApplied(kind string, elapsed time.Duration) {
	if m == nil {
		return
	}
	if kind == "" {
		kind = "unknown"
	}
	m.applied.WithLabelValues(kind).Inc()
	m.applyDuration.Observe(elapsed.Seconds())
}

func (m *InstructionMetrics) ObserveFailure(kind, code string) {
	if m == nil {
		return
	}
	if kind == "" {
		kind = "unknown"
	}
	if code == "" {
		code = "unknown"
	}
	m.failures.WithLabelValues(kind, code).Inc()
}

func (m *InstructionMetrics) AdjustStreamsActive(delta int) {
	if m == nil {
		return
	}
	m.streamsActive.Add(float64(delta))
}

func (m *InstructionMetrics) AdjustBountiesActive(delta int) {
	if m == nil {
		return
	}
	m.bountiesActive.Add(float64(delta))
}
