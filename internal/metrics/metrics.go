package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ykvlv/stockwatch-bot/internal/domain"
)

// Metrics collects polling counters. A nil *Metrics is a valid no-op recorder.
type Metrics struct {
	Cycles        prometheus.Counter
	SkippedTicks  prometheus.Counter
	Results       *prometheus.CounterVec
	Notifications *prometheus.CounterVec
	CycleDuration prometheus.Histogram
	FetchLatency  prometheus.Histogram
	SchedulerUp   *prometheus.GaugeVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Cycles: f.NewCounter(prometheus.CounterOpts{
			Name: "stockwatch_cycles_total",
			Help: "Completed polling cycles",
		}),
		SkippedTicks: f.NewCounter(prometheus.CounterOpts{
			Name: "stockwatch_skipped_ticks_total",
			Help: "Ticks skipped because the previous cycle was still running",
		}),
		Results: f.NewCounterVec(prometheus.CounterOpts{
			Name: "stockwatch_results_total",
			Help: "Per-product classification results",
		}, []string{"product", "state"}),
		Notifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "stockwatch_notifications_total",
			Help: "Notification attempts by outcome",
		}, []string{"outcome"}),
		CycleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "stockwatch_cycle_duration_seconds",
			Help:    "Wall time of a polling cycle",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		FetchLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "stockwatch_fetch_duration_seconds",
			Help:    "Fetch and classify time per product",
			Buckets: prometheus.DefBuckets,
		}),
		SchedulerUp: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "stockwatch_scheduler_state",
			Help: "1 for the scheduler's current state, 0 otherwise",
		}, []string{"state"}),
	}
}

func (m *Metrics) RecordResult(r domain.CycleResult) {
	if m == nil {
		return
	}
	m.Results.WithLabelValues(r.Product.ID, r.State.String()).Inc()
	m.FetchLatency.Observe(r.Latency.Seconds())
}

func (m *Metrics) RecordCycle(d time.Duration) {
	if m == nil {
		return
	}
	m.Cycles.Inc()
	m.CycleDuration.Observe(d.Seconds())
}

func (m *Metrics) RecordNotification(err error) {
	if m == nil {
		return
	}
	outcome := "sent"
	if err != nil {
		outcome = "failed"
	}
	m.Notifications.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordSkippedTick() {
	if m == nil {
		return
	}
	m.SkippedTicks.Inc()
}

// SetSchedulerState marks current as the only active state among all.
func (m *Metrics) SetSchedulerState(current string, all ...string) {
	if m == nil {
		return
	}
	for _, s := range all {
		v := 0.0
		if s == current {
			v = 1
		}
		m.SchedulerUp.WithLabelValues(s).Set(v)
	}
}
