package metrics

import (
	"testing"
	"time"
)

func TestNoopSink_AllMethods(t *testing.T) {
	// Verify that calling all methods on NoopSink does not panic.
	s := NewNoopSink()

	// Intake metrics
	s.CommandReceived("single")
	s.CommandReceived("recurring")
	s.SpecAccepted(true)
	s.SpecAccepted(false)
	s.SpecRejected("end_before_start")

	// Scheduling API client metrics
	s.CreateAttemptCompleted(1, StatusClass2xx, 200*time.Millisecond)
	s.CreateOutcome(OutcomeSuccess)
	s.CreateOutcome(OutcomeFailed)
	s.CreateOutcome(OutcomeAbandoned)
	s.RetryAttempt(true)
	s.RetryAttempt(false)
	s.CommandsInFlightIncr()
	s.CommandsInFlightDecr()

	// CommandBus metrics
	s.BufferSizeUpdate(10)
	s.BufferCapacitySet(100)
	s.BufferSaturationUpdate(0.1)
	s.EmitError()

	// Reconciler metrics
	s.StaleAttemptsMarked(3)
}

// Verify NoopSink implements Sink interface.
var _ Sink = (*NoopSink)(nil)
