package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// FulfillmentMetrics counts bag operations and label purchases.
type FulfillmentMetrics struct {
	operations  *prometheus.CounterVec
	labels      *prometheus.CounterVec
	transitions *prometheus.CounterVec
}

func NewFulfillmentMetrics(reg prometheus.Registerer) *FulfillmentMetrics {
	if reg == nil {
		return &FulfillmentMetrics{}
	}
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "livebag_operations_total",
		Help: "Bag operations by name and result code.",
	}, []string{"operation", "result"})
	labels := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "livebag_label_outcomes_total",
		Help: "Shipping label attempts by outcome.",
	}, []string{"outcome"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "livebag_status_transitions_total",
		Help: "Operational status changes by target status.",
	}, []string{"to"})
	reg.MustRegister(operations, labels, transitions)
	return &FulfillmentMetrics{operations: operations, labels: labels, transitions: transitions}
}

// ObserveOperation records one orchestrator call. result is "ok" or an error code.
func (f *FulfillmentMetrics) ObserveOperation(operation, result string) {
	if f == nil || f.operations == nil {
		return
	}
	f.operations.WithLabelValues(normalizeLabel(operation), normalizeLabel(result)).Inc()
}

func (f *FulfillmentMetrics) ObserveLabel(outcome string) {
	if f == nil || f.labels == nil {
		return
	}
	f.labels.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (f *FulfillmentMetrics) ObserveTransition(to string) {
	if f == nil || f.transitions == nil {
		return
	}
	f.transitions.WithLabelValues(normalizeLabel(to)).Inc()
}
