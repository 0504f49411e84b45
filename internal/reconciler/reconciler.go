// Package reconciler sweeps up creation attempts that never reached a
// terminal state.
//
// An attempt goes stale when it has status='pending' but the dispatcher
// never recorded an outcome (e.g., due to a crash mid-retry). The
// reconciler periodically marks such attempts as failed so the audit
// trail does not accumulate attempts that look in-flight forever.
// Attempts still being worked on are skipped via row locks, and the
// store's terminal state guard makes the sweep safe against a
// dispatcher finishing concurrently.
package reconciler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dajanosw/Event-Manager-Bot/internal/domain"
)

// Store defines the interface for finding and failing stale attempts.
type Store interface {
	GetStalePendingAttempts(ctx context.Context, olderThan time.Time, limit int) ([]domain.CreationAttempt, error)
	FailStaleAttempts(ctx context.Context, olderThan time.Time, limit int) (int64, error)
}

// MetricsSink records how many attempts each sweep marked as failed.
type MetricsSink interface {
	StaleAttemptsMarked(count int)
}

// Config holds reconciler configuration.
type Config struct {
	// Schedule is a standard five-field cron expression controlling when
	// sweeps run. Default: every 5 minutes.
	Schedule string

	// Threshold is the age after which a pending attempt is considered stale.
	// Default: 10 minutes.
	Threshold time.Duration

	// BatchSize is the maximum number of attempts to sweep per cycle.
	// Default: 100.
	BatchSize int
}

// DefaultConfig returns the default reconciler configuration.
func DefaultConfig() Config {
	return Config{
		Schedule:  "*/5 * * * *",
		Threshold: 10 * time.Minute,
		BatchSize: 100,
	}
}

// Reconciler marks stale pending attempts as failed.
type Reconciler struct {
	config   Config
	schedule cron.Schedule
	store    Store
	metrics  MetricsSink // optional, nil = disabled
	clock    func() time.Time
}

// New creates a new Reconciler. It returns an error when the cron
// expression does not parse.
func New(config Config, store Store) (*Reconciler, error) {
	schedule, err := cron.ParseStandard(config.Schedule)
	if err != nil {
		return nil, fmt.Errorf("parse reconcile schedule %q: %w", config.Schedule, err)
	}
	return &Reconciler{
		config:   config,
		schedule: schedule,
		store:    store,
		clock:    time.Now,
	}, nil
}

// WithMetrics attaches a metrics sink to the reconciler.
func (r *Reconciler) WithMetrics(sink MetricsSink) *Reconciler {
	r.metrics = sink
	return r
}

// WithClock overrides the time source. Used in tests.
func (r *Reconciler) WithClock(clock func() time.Time) *Reconciler {
	r.clock = clock
	return r
}

// Run starts the sweep loop. It blocks until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	log.Printf("reconciler: started (schedule=%q, threshold=%s, batch=%d)",
		r.config.Schedule, r.config.Threshold, r.config.BatchSize)

	// Run immediately on startup, then on schedule
	r.runCycle(ctx)

	for {
		now := r.clock()
		next := r.schedule.Next(now)

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			log.Println("reconciler: stopped")
			return
		case <-timer.C:
			r.runCycle(ctx)
		}
	}
}

// runCycle executes one sweep.
func (r *Reconciler) runCycle(ctx context.Context) {
	now := r.clock().UTC()
	cutoff := now.Add(-r.config.Threshold)

	stale, err := r.store.GetStalePendingAttempts(ctx, cutoff, r.config.BatchSize)
	if err != nil {
		// DB error: log and abort cycle. Will retry next run.
		log.Printf("reconciler: failed to fetch stale attempts: %v", err)
		return
	}

	if len(stale) == 0 {
		// Nothing to do. Silent success.
		return
	}

	for _, attempt := range stale {
		log.Printf("reconciler: stale attempt=%s command=%s channel=%s (age=%s)",
			attempt.ID, attempt.CommandID, attempt.ChannelID,
			now.Sub(attempt.CreatedAt).Round(time.Second))
	}

	marked, err := r.store.FailStaleAttempts(ctx, cutoff, r.config.BatchSize)
	if err != nil {
		log.Printf("reconciler: failed to mark stale attempts: %v", err)
		return
	}

	if r.metrics != nil {
		r.metrics.StaleAttemptsMarked(int(marked))
	}
	log.Printf("reconciler: cycle complete, marked %d attempts failed", marked)
}
