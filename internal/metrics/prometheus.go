package metrics

import (
	"log"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink implements Sink using the Prometheus client library.
// All methods are non-blocking and fire-and-forget.
// Registration errors are logged but never propagated.
type PrometheusSink struct {
	// Intake metrics
	commandsReceivedTotal *prometheus.CounterVec
	specsAcceptedTotal    *prometheus.CounterVec
	specsRejectedTotal    *prometheus.CounterVec

	// Scheduling API client metrics
	createAttemptsTotal *prometheus.CounterVec
	createOutcomesTotal *prometheus.CounterVec
	createDuration      prometheus.Histogram
	retryAttemptsTotal  *prometheus.CounterVec
	commandsInFlight    prometheus.Gauge

	// CommandBus metrics
	bufferSize       prometheus.Gauge
	bufferCapacity   prometheus.Gauge
	bufferSaturation prometheus.Gauge
	emitErrorsTotal  prometheus.Counter

	// Reconciler metrics
	staleAttemptsTotal prometheus.Counter
}

// NewPrometheusSink creates a new Prometheus metrics sink.
// If registration fails, it logs a warning and returns a functional sink.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	s := &PrometheusSink{}
	s.initIntakeMetrics(reg)
	s.initClientMetrics(reg)
	s.initBusMetrics(reg)
	s.initReconcilerMetrics(reg)
	return s
}

func (s *PrometheusSink) initIntakeMetrics(reg prometheus.Registerer) {
	s.commandsReceivedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "eventbot_commands_received_total",
		Help: "Total number of event-creation commands received.",
	}, []string{"mode"})
	s.specsAcceptedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "eventbot_specs_accepted_total",
		Help: "Total number of specifications that passed validation.",
	}, []string{"recurring"})
	s.specsRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "eventbot_specs_rejected_total",
		Help: "Total number of rejected specifications, by reason.",
	}, []string{"reason"})

	s.register(reg, s.commandsReceivedTotal, "eventbot_commands_received_total")
	s.register(reg, s.specsAcceptedTotal, "eventbot_specs_accepted_total")
	s.register(reg, s.specsRejectedTotal, "eventbot_specs_rejected_total")
}

func (s *PrometheusSink) initClientMetrics(reg prometheus.Registerer) {
	s.createAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "eventbot_create_attempts_total",
		Help: "Total number of scheduling API creation attempts.",
	}, []string{"attempt", "status_class"})

	s.createOutcomesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "eventbot_create_outcomes_total",
		Help: "Total number of final creation outcomes per command.",
	}, []string{"outcome"})

	s.createDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "eventbot_create_duration_seconds",
		Help:    "Scheduling API request latency in seconds (excludes backoff wait).",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})

	s.retryAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "eventbot_retry_attempts_total",
		Help: "Total number of retry attempts (excludes first attempt).",
	}, []string{"retryable"})

	s.commandsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "eventbot_commands_in_flight",
		Help: "Number of commands currently being processed.",
	})

	s.register(reg, s.createAttemptsTotal, "eventbot_create_attempts_total")
	s.register(reg, s.createOutcomesTotal, "eventbot_create_outcomes_total")
	s.register(reg, s.createDuration, "eventbot_create_duration_seconds")
	s.register(reg, s.retryAttemptsTotal, "eventbot_retry_attempts_total")
	s.register(reg, s.commandsInFlight, "eventbot_commands_in_flight")
}

func (s *PrometheusSink) initBusMetrics(reg prometheus.Registerer) {
	s.bufferSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "eventbot_commandbus_buffer_size",
		Help: "Current number of commands in the bus buffer.",
	})
	s.bufferCapacity = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "eventbot_commandbus_buffer_capacity",
		Help: "Configured capacity of the bus buffer.",
	})
	s.bufferSaturation = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "eventbot_commandbus_buffer_saturation",
		Help: "Bus buffer fill ratio between 0 and 1.",
	})
	s.emitErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "eventbot_commandbus_emit_errors_total",
		Help: "Total number of emit errors (buffer full).",
	})

	s.register(reg, s.bufferSize, "eventbot_commandbus_buffer_size")
	s.register(reg, s.bufferCapacity, "eventbot_commandbus_buffer_capacity")
	s.register(reg, s.bufferSaturation, "eventbot_commandbus_buffer_saturation")
	s.register(reg, s.emitErrorsTotal, "eventbot_commandbus_emit_errors_total")
}

func (s *PrometheusSink) initReconcilerMetrics(reg prometheus.Registerer) {
	s.staleAttemptsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "eventbot_stale_attempts_marked_total",
		Help: "Total number of stale pending attempts marked failed by the reconciler.",
	})

	s.register(reg, s.staleAttemptsTotal, "eventbot_stale_attempts_marked_total")
}

// register attempts to register a collector, logging any errors without propagating them.
func (s *PrometheusSink) register(reg prometheus.Registerer, c prometheus.Collector, name string) {
	if err := reg.Register(c); err != nil {
		log.Printf("metrics: failed to register %s: %v", name, err)
	}
}

// Intake metrics implementation

func (s *PrometheusSink) CommandReceived(mode string) {
	s.commandsReceivedTotal.WithLabelValues(mode).Inc()
}

func (s *PrometheusSink) SpecAccepted(recurring bool) {
	s.specsAcceptedTotal.WithLabelValues(strconv.FormatBool(recurring)).Inc()
}

func (s *PrometheusSink) SpecRejected(reason string) {
	s.specsRejectedTotal.WithLabelValues(reason).Inc()
}

// Scheduling API client metrics implementation

func (s *PrometheusSink) CreateAttemptCompleted(attempt int, statusClass string, duration time.Duration) {
	s.createAttemptsTotal.WithLabelValues(strconv.Itoa(attempt), statusClass).Inc()
	s.createDuration.Observe(duration.Seconds())
}

func (s *PrometheusSink) CreateOutcome(outcome string) {
	s.createOutcomesTotal.WithLabelValues(outcome).Inc()
}

func (s *PrometheusSink) RetryAttempt(retryable bool) {
	s.retryAttemptsTotal.WithLabelValues(strconv.FormatBool(retryable)).Inc()
}

func (s *PrometheusSink) CommandsInFlightIncr() {
	s.commandsInFlight.Inc()
}

func (s *PrometheusSink) CommandsInFlightDecr() {
	s.commandsInFlight.Dec()
}

// CommandBus metrics implementation

func (s *PrometheusSink) BufferSizeUpdate(size int) {
	s.bufferSize.Set(float64(size))
}

func (s *PrometheusSink) BufferCapacitySet(capacity int) {
	s.bufferCapacity.Set(float64(capacity))
}

func (s *PrometheusSink) BufferSaturationUpdate(saturation float64) {
	s.bufferSaturation.Set(saturation)
}

func (s *PrometheusSink) EmitError() {
	s.emitErrorsTotal.Inc()
}

// Reconciler metrics implementation

func (s *PrometheusSink) StaleAttemptsMarked(count int) {
	s.staleAttemptsTotal.Add(float64(count))
}
