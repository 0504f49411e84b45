package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func newTestSink(t *testing.T) (*PrometheusSink, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	sink := NewPrometheusSink(reg)
	return sink, reg
}

func getCounterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() == name {
			for _, m := range mf.GetMetric() {
				if m.GetCounter() != nil {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func getGaugeValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() == name {
			for _, m := range mf.GetMetric() {
				if m.GetGauge() != nil {
					return m.GetGauge().GetValue()
				}
			}
		}
	}
	return 0
}

func getCounterVecValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() == name {
			for _, m := range mf.GetMetric() {
				if matchLabels(m.GetLabel(), labels) {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func matchLabels(pairs []*dto.LabelPair, want map[string]string) bool {
	if len(pairs) != len(want) {
		return false
	}
	for _, p := range pairs {
		if v, ok := want[p.GetName()]; !ok || v != p.GetValue() {
			return false
		}
	}
	return true
}

func TestPrometheusSink_Registration(t *testing.T) {
	// Should not panic or error with a fresh registry.
	reg := prometheus.NewRegistry()
	sink := NewPrometheusSink(reg)
	if sink == nil {
		t.Fatal("NewPrometheusSink returned nil")
	}
}

func TestPrometheusSink_CommandReceived(t *testing.T) {
	sink, reg := newTestSink(t)

	sink.CommandReceived("single")
	sink.CommandReceived("single")
	sink.CommandReceived("recurring")

	val := getCounterVecValue(t, reg, "eventbot_commands_received_total",
		map[string]string{"mode": "single"})
	if val != 2 {
		t.Errorf("mode=single = %v, want 2", val)
	}
}

func TestPrometheusSink_SpecRejected(t *testing.T) {
	sink, reg := newTestSink(t)

	sink.SpecRejected("end_before_start")
	sink.SpecRejected("end_before_start")
	sink.SpecRejected("time_in_past")

	val := getCounterVecValue(t, reg, "eventbot_specs_rejected_total",
		map[string]string{"reason": "end_before_start"})
	if val != 2 {
		t.Errorf("reason=end_before_start = %v, want 2", val)
	}
}

func TestPrometheusSink_CreateAttemptLabels(t *testing.T) {
	sink, reg := newTestSink(t)

	sink.CreateAttemptCompleted(1, "2xx", 100*time.Millisecond)
	sink.CreateAttemptCompleted(2, "5xx", 200*time.Millisecond)

	val1 := getCounterVecValue(t, reg, "eventbot_create_attempts_total",
		map[string]string{"attempt": "1", "status_class": "2xx"})
	if val1 != 1 {
		t.Errorf("attempt=1,status=2xx = %v, want 1", val1)
	}

	val2 := getCounterVecValue(t, reg, "eventbot_create_attempts_total",
		map[string]string{"attempt": "2", "status_class": "5xx"})
	if val2 != 1 {
		t.Errorf("attempt=2,status=5xx = %v, want 1", val2)
	}
}

func TestPrometheusSink_CreateOutcome(t *testing.T) {
	sink, reg := newTestSink(t)

	sink.CreateOutcome(OutcomeSuccess)
	sink.CreateOutcome(OutcomeFailed)
	sink.CreateOutcome(OutcomeSuccess)

	successVal := getCounterVecValue(t, reg, "eventbot_create_outcomes_total",
		map[string]string{"outcome": "success"})
	if successVal != 2 {
		t.Errorf("outcome=success = %v, want 2", successVal)
	}

	failedVal := getCounterVecValue(t, reg, "eventbot_create_outcomes_total",
		map[string]string{"outcome": "failed"})
	if failedVal != 1 {
		t.Errorf("outcome=failed = %v, want 1", failedVal)
	}
}

func TestPrometheusSink_CommandsInFlight(t *testing.T) {
	sink, reg := newTestSink(t)

	sink.CommandsInFlightIncr()
	sink.CommandsInFlightIncr()
	sink.CommandsInFlightDecr()

	val := getGaugeValue(t, reg, "eventbot_commands_in_flight")
	if val != 1 {
		t.Errorf("commands_in_flight = %v, want 1", val)
	}
}

func TestPrometheusSink_BufferMetrics(t *testing.T) {
	sink, reg := newTestSink(t)

	sink.BufferCapacitySet(100)
	sink.BufferSizeUpdate(42)
	sink.BufferSaturationUpdate(0.42)

	capVal := getGaugeValue(t, reg, "eventbot_commandbus_buffer_capacity")
	if capVal != 100 {
		t.Errorf("buffer_capacity = %v, want 100", capVal)
	}

	sizeVal := getGaugeValue(t, reg, "eventbot_commandbus_buffer_size")
	if sizeVal != 42 {
		t.Errorf("buffer_size = %v, want 42", sizeVal)
	}

	satVal := getGaugeValue(t, reg, "eventbot_commandbus_buffer_saturation")
	if satVal != 0.42 {
		t.Errorf("buffer_saturation = %v, want 0.42", satVal)
	}
}

func TestPrometheusSink_StaleAttemptsMarked(t *testing.T) {
	sink, reg := newTestSink(t)

	sink.StaleAttemptsMarked(3)
	sink.StaleAttemptsMarked(2)

	val := getCounterValue(t, reg, "eventbot_stale_attempts_marked_total")
	if val != 5 {
		t.Errorf("stale_attempts_marked_total = %v, want 5", val)
	}
}

func TestPrometheusSink_DuplicateRegistration_NoPanic(t *testing.T) {
	// Registering metrics twice with the same registry should not panic.
	reg := prometheus.NewRegistry()
	NewPrometheusSink(reg)
	NewPrometheusSink(reg)
}

// Verify PrometheusSink implements Sink interface.
var _ Sink = (*PrometheusSink)(nil)
