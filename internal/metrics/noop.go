package metrics

import "time"

// NoopSink is a no-op implementation of Sink.
// Used when metrics are disabled to avoid nil checks.
type NoopSink struct{}

// NewNoopSink returns a no-op metrics sink.
func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (n *NoopSink) CommandReceived(mode string)                                           {}
func (n *NoopSink) SpecAccepted(recurring bool)                                           {}
func (n *NoopSink) SpecRejected(reason string)                                            {}
func (n *NoopSink) CreateAttemptCompleted(attempt int, statusClass string, d time.Duration) {}
func (n *NoopSink) CreateOutcome(outcome string)                                          {}
func (n *NoopSink) RetryAttempt(retryable bool)                                           {}
func (n *NoopSink) CommandsInFlightIncr()                                                 {}
func (n *NoopSink) CommandsInFlightDecr()                                                 {}
func (n *NoopSink) BufferSizeUpdate(size int)                                             {}
func (n *NoopSink) BufferCapacitySet(capacity int)                                        {}
func (n *NoopSink) BufferSaturationUpdate(saturation float64)                             {}
func (n *NoopSink) EmitError()                                                            {}
func (n *NoopSink) StaleAttemptsMarked(count int)                                         {}
