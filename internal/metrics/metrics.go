package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for reconciliation operations.
const (
	OutcomeChanged = "changed"
	OutcomeNoop    = "noop"
	OutcomeError   = "error"
)

// Metrics holds the Prometheus collectors for the registry.
type Metrics struct {
	Operations     *prometheus.CounterVec
	ChangeEvents   *prometheus.CounterVec
	DigestsSent    prometheus.Counter
	InvariantFails *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Operations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "birdcount_reconciliation_operations_total",
			Help: "Reconciliation operations by operation and outcome",
		}, []string{"operation", "outcome"}),
		ChangeEvents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "birdcount_change_events_total",
			Help: "Change events appended to the change log by kind",
		}, []string{"kind"}),
		DigestsSent: f.NewCounter(prometheus.CounterOpts{
			Name: "birdcount_leader_digests_sent_total",
			Help: "Leader digest emails sent",
		}),
		InvariantFails: f.NewCounterVec(prometheus.CounterOpts{
			Name: "birdcount_invariant_violations_total",
			Help: "Invariant violations found by audits, by invariant number",
		}, []string{"invariant"}),
	}
}

// ObserveOperation counts one reconciliation call. Safe on a nil receiver.
func (m *Metrics) ObserveOperation(op, outcome string) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(op, outcome).Inc()
}

// ObserveChangeEvent counts one appended change event. Safe on a nil receiver.
func (m *Metrics) ObserveChangeEvent(kind string) {
	if m == nil {
		return
	}
	m.ChangeEvents.WithLabelValues(kind).Inc()
}

// IncrementDigestsSent counts one digest email. Safe on a nil receiver.
func (m *Metrics) IncrementDigestsSent() {
	if m == nil {
		return
	}
	m.DigestsSent.Inc()
}

// ObserveViolation counts one invariant violation. Safe on a nil receiver.
func (m *Metrics) ObserveViolation(invariant string) {
	if m == nil {
		return
	}
	m.InvariantFails.WithLabelValues(invariant).Inc()
}
