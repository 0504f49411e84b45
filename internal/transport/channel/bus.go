// Package channel provides the in-memory hand-off between the platform
// connection and the command dispatcher.
package channel

import (
	"context"
	"errors"
	"time"

	"github.com/dajanosw/Event-Manager-Bot/internal/domain"
)

// DefaultEmitTimeout bounds how long Emit waits for buffer space before
// giving up. Incoming chat commands are latency-sensitive; a stuck
// dispatcher should surface as an error, not a hung connection handler.
const DefaultEmitTimeout = 5 * time.Second

var ErrBufferFull = errors.New("command bus buffer full")

// MetricsSink receives buffer gauge updates. All methods must be
// non-blocking and fire-and-forget.
type MetricsSink interface {
	BufferSizeUpdate(size int)
	BufferCapacitySet(capacity int)
	BufferSaturationUpdate(saturation float64)
	EmitError()
}

// CommandBus carries inbound event-creation commands. The platform glue
// emits one Command per incoming line; the dispatcher consumes them.
type CommandBus struct {
	ch          chan domain.Command
	emitTimeout time.Duration
	metrics     MetricsSink // optional, nil = disabled
}

type Option func(*CommandBus)

// WithEmitTimeout overrides DefaultEmitTimeout.
func WithEmitTimeout(d time.Duration) Option {
	return func(b *CommandBus) { b.emitTimeout = d }
}

// WithMetrics attaches a metrics sink to the bus.
func WithMetrics(sink MetricsSink) Option {
	return func(b *CommandBus) { b.metrics = sink }
}

func NewCommandBus(buffer int, opts ...Option) *CommandBus {
	b := &CommandBus{
		ch:          make(chan domain.Command, buffer),
		emitTimeout: DefaultEmitTimeout,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.metrics != nil {
		b.metrics.BufferCapacitySet(buffer)
	}
	return b
}

// Emit enqueues a command. It returns ErrBufferFull when no buffer space
// frees up within the emit timeout, or the context error on cancellation.
func (b *CommandBus) Emit(ctx context.Context, cmd domain.Command) error {
	timer := time.NewTimer(b.emitTimeout)
	defer timer.Stop()

	select {
	case b.ch <- cmd:
		b.updateGauges()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		if b.metrics != nil {
			b.metrics.EmitError()
		}
		return ErrBufferFull
	}
}

func (b *CommandBus) Channel() <-chan domain.Command {
	return b.ch
}

func (b *CommandBus) updateGauges() {
	if b.metrics == nil {
		return
	}
	size := len(b.ch)
	b.metrics.BufferSizeUpdate(size)
	if c := cap(b.ch); c > 0 {
		b.metrics.BufferSaturationUpdate(float64(size) / float64(c))
	}
}
