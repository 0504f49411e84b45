// Package dispatcher consumes event-creation commands, runs them through
// extraction and validation, and hands accepted specifications to the
// external scheduling API. Rejections never reach the API; they are
// turned into operator-facing replies.
package dispatcher

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/dajanosw/Event-Manager-Bot/internal/domain"
	"github.com/dajanosw/Event-Manager-Bot/internal/metrics"
	"github.com/dajanosw/Event-Manager-Bot/internal/parse"
	"github.com/dajanosw/Event-Manager-Bot/internal/validate"
)

var defaultBackoff = []time.Duration{
	0,
	5 * time.Second,
	30 * time.Second,
	2 * time.Minute,
}

const maxAttempts = 4

// ErrStatusTransitionDenied is returned when a status update would regress
// from a terminal state (created/rejected/failed).
var ErrStatusTransitionDenied = errors.New("status transition denied: attempt already in terminal state")

// ErrDuplicateCommand is returned by Store.InsertCommand when the command ID
// was already recorded, which happens when a command is redelivered.
var ErrDuplicateCommand = errors.New("duplicate command")

type Store interface {
	InsertCommand(ctx context.Context, cmd domain.Command) error
	InsertCreationAttempt(ctx context.Context, attempt domain.CreationAttempt) error
	// UpdateAttemptStatus sets the attempt status. Implementations MUST
	// reject transitions from terminal states (created/rejected/failed)
	// and return ErrStatusTransitionDenied. This ensures idempotency on
	// replay.
	UpdateAttemptStatus(ctx context.Context, attemptID uuid.UUID, status domain.AttemptStatus, attempts int, errMsg string) error
}

// ScheduleClient is the external scheduling API. It accepts a finished
// specification and reports success or failure; it never re-validates.
type ScheduleClient interface {
	Create(ctx context.Context, req CreateRequest) CreateResult
}

// ReplySender relays a human-readable message back to the channel the
// command came from. The messaging platform behind it is out of scope.
type ReplySender interface {
	Reply(ctx context.Context, channelID, message string) error
}

type AnalyticsSink interface {
	Record(ctx context.Context, channelID, outcome string, at time.Time) error
}

// MetricsSink defines the interface for recording dispatcher metrics.
// All methods must be non-blocking and fire-and-forget.
type MetricsSink interface {
	CommandReceived(mode string)
	SpecAccepted(recurring bool)
	SpecRejected(reason string)
	CreateAttemptCompleted(attempt int, statusClass string, duration time.Duration)
	CreateOutcome(outcome string)
	RetryAttempt(retryable bool)
	CommandsInFlightIncr()
	CommandsInFlightDecr()
}

// Breaker guards calls to the scheduling API endpoint.
type Breaker interface {
	Allow(endpoint string) error
	RecordSuccess(endpoint string)
	RecordFailure(endpoint string)
}

// Endpoint identifies the scheduling API deployment to call.
type Endpoint struct {
	URL     string
	Secret  string // HMAC secret
	Timeout time.Duration
}

type CreateRequest struct {
	Endpoint  Endpoint
	Payload   CreatePayload
	AttemptID string
}

type CreatePayload struct {
	Name        string `json:"name"`
	StartsAt    string `json:"starts_at"`
	EndsAt      string `json:"ends_at"`
	Timezone    string `json:"timezone"`
	Location    string `json:"location"`
	Description string `json:"description"`

	Recurrence *RecurrencePayload `json:"recurrence,omitempty"`
}

// RecurrencePayload mirrors the scheduling API's recurrence object.
// Weekday uses Sunday = 0 and is present for weekly recurrence only.
type RecurrencePayload struct {
	Kind     string `json:"kind"`
	Interval int    `json:"interval"`
	Weekday  *int   `json:"weekday,omitempty"`
}

type CreateResult struct {
	StatusCode int
	Error      error
	Duration   time.Duration
}

func (r CreateResult) IsSuccess() bool {
	return r.Error == nil && r.StatusCode >= 200 && r.StatusCode < 300
}

func (r CreateResult) IsRetryable() bool {
	if r.Error != nil {
		return true
	}
	if r.StatusCode == 429 {
		return true
	}
	return r.StatusCode >= 500
}

type Dispatcher struct {
	extractor *parse.Extractor
	validator *validate.Validator
	store     Store
	client    ScheduleClient
	replies   ReplySender
	endpoint  Endpoint

	breaker   Breaker       // optional, nil = disabled
	analytics AnalyticsSink // optional, nil = disabled
	metrics   MetricsSink   // optional, nil = disabled
	backoff   []time.Duration

	drainTimeout time.Duration
}

func New(extractor *parse.Extractor, validator *validate.Validator, store Store, client ScheduleClient, replies ReplySender, endpoint Endpoint) *Dispatcher {
	return &Dispatcher{
		extractor:    extractor,
		validator:    validator,
		store:        store,
		client:       client,
		replies:      replies,
		endpoint:     endpoint,
		backoff:      defaultBackoff,
		drainTimeout: DefaultDrainTimeout,
	}
}

// WithBreaker attaches a circuit breaker to the dispatcher.
func (d *Dispatcher) WithBreaker(b Breaker) *Dispatcher {
	d.breaker = b
	return d
}

func (d *Dispatcher) WithAnalytics(sink AnalyticsSink) *Dispatcher {
	d.analytics = sink
	return d
}

// WithMetrics attaches a metrics sink to the dispatcher.
func (d *Dispatcher) WithMetrics(sink MetricsSink) *Dispatcher {
	d.metrics = sink
	return d
}

// Run processes commands from the channel until the context is cancelled.
// After cancellation, it drains remaining buffered commands with a timeout.
func (d *Dispatcher) Run(ctx context.Context, ch <-chan domain.Command) {
	for {
		select {
		case <-ctx.Done():
			d.drain(ch)
			return
		case cmd := <-ch:
			if err := d.Process(ctx, cmd); err != nil {
				log.Printf("dispatcher: error: %v", err)
			}
		}
	}
}

// DefaultDrainTimeout is the maximum time to wait for buffered commands during shutdown.
const DefaultDrainTimeout = 30 * time.Second

// WithDrainTimeout overrides the shutdown drain window.
func (d *Dispatcher) WithDrainTimeout(timeout time.Duration) *Dispatcher {
	d.drainTimeout = timeout
	return d
}

// drain processes remaining commands in the channel buffer after the shutdown
// signal. Uses a background context since the main context is already cancelled.
func (d *Dispatcher) drain(ch <-chan domain.Command) {
	drainCtx, cancel := context.WithTimeout(context.Background(), d.drainTimeout)
	defer cancel()

	count := 0
	for {
		select {
		case <-drainCtx.Done():
			if count > 0 {
				log.Printf("dispatcher: drain timeout, processed %d commands", count)
			}
			return
		case cmd, ok := <-ch:
			if !ok {
				log.Printf("dispatcher: drain complete, processed %d commands", count)
				return
			}
			if err := d.Process(drainCtx, cmd); err != nil {
				log.Printf("dispatcher: drain error: %v", err)
			}
			count++
		default:
			if count > 0 {
				log.Printf("dispatcher: drain complete, processed %d commands", count)
			}
			return
		}
	}
}

// Process runs one command through extract, validate and create.
// Classified rejections are consumed here (reply + audit record); only
// infrastructure failures surface as errors.
func (d *Dispatcher) Process(ctx context.Context, cmd domain.Command) error {
	if d.metrics != nil {
		d.metrics.CommandsInFlightIncr()
		defer d.metrics.CommandsInFlightDecr()
		d.metrics.CommandReceived(string(cmd.Mode))
	}

	// The command record is an audit trail; losing it must not block
	// the operator's request.
	if err := d.store.InsertCommand(ctx, cmd); err != nil && !errors.Is(err, ErrDuplicateCommand) {
		log.Printf("dispatcher: failed to record command %s: %v", cmd.ID, err)
	}

	spec, err := d.extractor.Extract(cmd.RawText, cmd.Mode)
	if err != nil {
		return d.reject(ctx, cmd, spec, err)
	}

	spec, err = d.validator.Validate(spec)
	if err != nil {
		return d.reject(ctx, cmd, spec, err)
	}

	if d.metrics != nil {
		d.metrics.SpecAccepted(spec.IsRecurring())
	}
	d.writeAnalytics(ctx, cmd.ChannelID, "accepted")

	return d.create(ctx, cmd, spec)
}

func (d *Dispatcher) reject(ctx context.Context, cmd domain.Command, spec domain.EventSpec, err error) error {
	rej, ok := domain.AsRejection(err)
	if !ok {
		return err
	}

	log.Printf("dispatcher: command=%s rejected: %v", cmd.ID, rej)
	if d.metrics != nil {
		d.metrics.SpecRejected(string(rej.Reason))
	}
	d.writeAnalytics(ctx, cmd.ChannelID, "rejected")

	attempt := newAttempt(cmd, spec)
	attempt.Status = domain.AttemptStatusRejected
	attempt.Error = rej.Error()
	if err := d.store.InsertCreationAttempt(ctx, attempt); err != nil {
		log.Printf("dispatcher: failed to record rejection: %v", err)
	}

	d.sendReply(ctx, cmd.ChannelID, rejectionMessage(rej))
	return nil
}

func (d *Dispatcher) create(ctx context.Context, cmd domain.Command, spec domain.EventSpec) error {
	attempt := newAttempt(cmd, spec)
	if err := d.store.InsertCreationAttempt(ctx, attempt); err != nil {
		log.Printf("dispatcher: failed to record attempt: %v", err)
	}

	if d.breaker != nil {
		if err := d.breaker.Allow(d.endpoint.URL); err != nil {
			log.Printf("dispatcher: command=%s circuit open, not calling scheduling API", cmd.ID)
			if d.metrics != nil {
				d.metrics.CreateOutcome(metrics.OutcomeAbandoned)
			}
			d.finishAttempt(ctx, attempt.ID, domain.AttemptStatusFailed, 0, err.Error())
			d.sendReply(ctx, cmd.ChannelID, unavailableMessage())
			return nil
		}
	}

	req := CreateRequest{
		Endpoint: d.endpoint,
		Payload:  buildPayload(spec),
	}

	var lastResult CreateResult
	attemptsMade := 0

	for attemptNo := 1; attemptNo <= maxAttempts; attemptNo++ {
		if attemptNo > 1 {
			if d.metrics != nil {
				d.metrics.RetryAttempt(lastResult.IsRetryable())
			}

			idx := attemptNo - 1
			if idx >= len(d.backoff) {
				idx = len(d.backoff) - 1
			}
			backoff := d.backoff[idx]

			log.Printf("dispatcher: command=%s attempt=%d backoff=%s", cmd.ID, attemptNo, backoff)

			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				return ctx.Err()
			case <-timer.C:
			}
		}

		req.AttemptID = uuid.New().String()

		result := d.client.Create(ctx, req)
		lastResult = result
		attemptsMade = attemptNo

		if d.metrics != nil {
			statusClass := metrics.ClassifyStatus(result.StatusCode, result.Error)
			d.metrics.CreateAttemptCompleted(attemptNo, statusClass, result.Duration)
		}

		if result.IsSuccess() {
			log.Printf("dispatcher: command=%s event created attempt=%d", cmd.ID, attemptNo)
			if d.breaker != nil {
				d.breaker.RecordSuccess(d.endpoint.URL)
			}
			if d.metrics != nil {
				d.metrics.CreateOutcome(metrics.OutcomeSuccess)
			}
			d.finishAttempt(ctx, attempt.ID, domain.AttemptStatusCreated, attemptNo, "")
			d.sendReply(ctx, cmd.ChannelID, confirmationMessage(spec))
			return nil
		}

		if d.breaker != nil {
			d.breaker.RecordFailure(d.endpoint.URL)
		}

		if !result.IsRetryable() {
			log.Printf("dispatcher: command=%s non-retryable status=%d", cmd.ID, result.StatusCode)
			break
		}

		log.Printf("dispatcher: command=%s attempt=%d failed status=%d err=%v", cmd.ID, attemptNo, result.StatusCode, result.Error)
	}

	log.Printf("dispatcher: command=%s failed status=%d err=%v", cmd.ID, lastResult.StatusCode, lastResult.Error)
	if d.metrics != nil {
		d.metrics.CreateOutcome(metrics.OutcomeFailed)
	}
	errMsg := ""
	if lastResult.Error != nil {
		errMsg = lastResult.Error.Error()
	}
	d.finishAttempt(ctx, attempt.ID, domain.AttemptStatusFailed, attemptsMade, errMsg)
	d.sendReply(ctx, cmd.ChannelID, failureMessage(spec))
	return nil
}

func (d *Dispatcher) finishAttempt(ctx context.Context, attemptID uuid.UUID, status domain.AttemptStatus, attempts int, errMsg string) {
	err := d.store.UpdateAttemptStatus(ctx, attemptID, status, attempts, errMsg)
	if err == nil {
		return
	}
	if errors.Is(err, ErrStatusTransitionDenied) {
		// Attempt already in terminal state (likely reprocessing). Safe to ignore.
		log.Printf("dispatcher: attempt=%s already terminal, skipping status update", attemptID)
		return
	}
	log.Printf("dispatcher: failed to update attempt %s: %v", attemptID, err)
}

func (d *Dispatcher) sendReply(ctx context.Context, channelID, message string) {
	if err := d.replies.Reply(ctx, channelID, message); err != nil {
		log.Printf("dispatcher: failed to send reply to channel %s: %v", channelID, err)
	}
}

// writeAnalytics records the command outcome as a best-effort side effect.
// Analytics never affects dispatch correctness.
func (d *Dispatcher) writeAnalytics(ctx context.Context, channelID, outcome string) {
	if d.analytics == nil {
		return
	}
	if err := d.analytics.Record(ctx, channelID, outcome, time.Now().UTC()); err != nil {
		log.Printf("dispatcher: analytics write failed: %v", err)
	}
}

func newAttempt(cmd domain.Command, spec domain.EventSpec) domain.CreationAttempt {
	now := time.Now().UTC()
	return domain.CreationAttempt{
		ID:             uuid.New(),
		CommandID:      cmd.ID,
		ChannelID:      cmd.ChannelID,
		EventName:      spec.Name,
		Start:          spec.Start,
		End:            spec.End,
		Timezone:       spec.Timezone,
		RecurrenceKind: spec.RecurrenceKind,
		Status:         domain.AttemptStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func buildPayload(spec domain.EventSpec) CreatePayload {
	payload := CreatePayload{
		Name:        spec.Name,
		StartsAt:    spec.Start.UTC().Format(time.RFC3339),
		EndsAt:      spec.End.UTC().Format(time.RFC3339),
		Timezone:    spec.Timezone,
		Location:    spec.Location,
		Description: spec.Description,
	}

	if spec.Recurrence != nil {
		rp := &RecurrencePayload{
			Kind:     string(spec.Recurrence.Kind),
			Interval: spec.Recurrence.Interval,
		}
		if spec.Recurrence.Kind == domain.RecurrenceWeekly {
			weekday := int(spec.Recurrence.Weekday)
			rp.Weekday = &weekday
		}
		payload.Recurrence = rp
	}

	return payload
}
