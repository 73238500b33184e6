package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestFulfillmentMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewFulfillmentMetrics(reg)
	metrics.ObserveOperation("generate_label", "ok")
	metrics.ObserveOperation("generate_label", "EXTERNAL_SERVICE_ERROR")
	metrics.ObserveOperation("generate_label", "ok")
	metrics.ObserveLabel("awaiting_shipping_payment")
	metrics.ObserveTransition("")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	cases := []struct {
		name   string
		labels map[string]string
		want   float64
	}{
		{name: "livebag_operations_total", labels: map[string]string{"operation": "generate_label", "result": "ok"}, want: 2},
		{name: "livebag_operations_total", labels: map[string]string{"operation": "generate_label", "result": "EXTERNAL_SERVICE_ERROR"}, want: 1},
		{name: "livebag_label_outcomes_total", labels: map[string]string{"outcome": "awaiting_shipping_payment"}, want: 1},
		{name: "livebag_status_transitions_total", labels: map[string]string{"to": "unknown"}, want: 1},
	}
	for _, tc := range cases {
		got, err := fetchCounterValue(mfs, tc.name, tc.labels)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("%s %v: expected %v got %v", tc.name, tc.labels, tc.want, got)
		}
	}
}

func TestNilFulfillmentMetricsAreSafe(t *testing.T) {
	var metrics *FulfillmentMetrics
	metrics.ObserveOperation("x", "ok")
	metrics.ObserveLabel("x")
	metrics.ObserveTransition("x")
}
