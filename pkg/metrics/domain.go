package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "restaurant_core"

// Operation outcomes.
const (
	OutcomeOK    = "ok"
	OutcomeNoop  = "noop"
	OutcomeError = "error"
)

// DomainMetrics counts business operations and outbox deliveries.
type DomainMetrics struct {
	operations *prometheus.CounterVec
	published  *prometheus.CounterVec
}

// NewDomainMetrics registers the domain counters on the provided registerer.
func NewDomainMetrics(reg prometheus.Registerer) *DomainMetrics {
	if reg == nil {
		return &DomainMetrics{}
	}
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "operations_total",
		Help:      "Domain operations by name and outcome.",
	}, []string{"operation", "outcome"})
	published := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_events_published_total",
		Help: "Outbox events handled by the publisher by type and outcome.",
	}, []string{"event_type", "outcome"})
	reg.MustRegister(operations, published)
	return &DomainMetrics{operations: operations, published: published}
}

// ObserveOperation counts one execution of a domain operation. A nil err with
// applied=false is a concurrency no-op.
func (d *DomainMetrics) ObserveOperation(operation string, applied bool, err error) {
	if d == nil || d.operations == nil {
		return
	}
	outcome := OutcomeOK
	switch {
	case err != nil:
		outcome = OutcomeError
	case !applied:
		outcome = OutcomeNoop
	}
	d.operations.WithLabelValues(normalizeLabel(operation), outcome).Inc()
}

// ObservePublish counts one publish attempt of an outbox event.
func (d *DomainMetrics) ObservePublish(eventType, outcome string) {
	if d == nil || d.published == nil {
		return
	}
	d.published.WithLabelValues(normalizeLabel(eventType), outcome).Inc()
}
