// Package metrics exposes the controller's Prometheus instrumentation:
// reconcile outcome counters, per-strategy duration histograms, a gauge
// of active rollouts by phase/strategy, and a gauge of each rollout's
// current traffic weight. The HTTP exposition endpoint that scrapes
// this registry is an external collaborator (§1 of the spec); this
// package only owns the metric definitions and update methods.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Result labels kulta_reconciliations_total.
type Result string

const (
	ResultSuccess Result = "success"
	ResultError   Result = "error"
	ResultSkipped Result = "skipped"
)

var reconcileDurationBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// Registry wraps the controller's Prometheus collectors. Every field is
// already safe for concurrent use, matching CounterVec/HistogramVec/
// GaugeVec's own documented concurrency guarantees, so Registry needs no
// locking of its own.
type Registry struct {
	reconciliations *prometheus.CounterVec
	duration        *prometheus.HistogramVec
	activeRollouts  *prometheus.GaugeVec
	trafficWeight   *prometheus.GaugeVec
}

// NewRegistry constructs the four collectors named in the spec's
// external-interfaces section and registers them against reg.
func NewRegistry(reg prometheus.Registerer) *Registry {
	m := &Registry{
		reconciliations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kulta_reconciliations_total",
			Help: "Total number of rollout reconcile passes, by result.",
		}, []string{"result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kulta_reconciliation_duration_seconds",
			Help:    "Reconcile pass latency in seconds, by strategy.",
			Buckets: reconcileDurationBuckets,
		}, []string{"strategy"}),
		activeRollouts: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "kulta_rollouts_active",
			Help: "Number of rollouts currently in each phase, by strategy.",
		}, []string{"phase", "strategy"}),
		trafficWeight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "kulta_traffic_weight",
			Help: "Current canary/preview traffic weight percentage, by rollout.",
		}, []string{"namespace", "rollout"}),
	}
	reg.MustRegister(m.reconciliations, m.duration, m.activeRollouts, m.trafficWeight)
	return m
}

// ObserveReconcile records one reconcile pass's result and, for passes
// that actually ran a strategy, its wall-clock duration.
func (m *Registry) ObserveReconcile(result Result, strategy string, seconds float64) {
	m.reconciliations.WithLabelValues(string(result)).Inc()
	if strategy != "" {
		m.duration.WithLabelValues(strategy).Observe(seconds)
	}
}

// SetActiveRollouts replaces the active-rollout gauge for one
// (phase, strategy) pair. The rollout controller resets the gauge and
// recomputes the full set from its informer cache on a fixed interval,
// so stale label combinations read back to zero rather than lingering
// at a stale count.
func (m *Registry) SetActiveRollouts(phase, strategy string, count float64) {
	m.activeRollouts.WithLabelValues(phase, strategy).Set(count)
}

// ResetActiveRollouts clears every previously observed phase/strategy
// combination, used before a full recount so retired phases don't keep
// reporting a stale nonzero value.
func (m *Registry) ResetActiveRollouts() {
	m.activeRollouts.Reset()
}

// SetTrafficWeight records the canary/preview weight currently applied
// to a rollout's traffic split.
func (m *Registry) SetTrafficWeight(namespace, rollout string, weight int32) {
	m.trafficWeight.WithLabelValues(namespace, rollout).Set(float64(weight))
}
