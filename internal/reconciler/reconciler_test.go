package reconciler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/dajanosw/Event-Manager-Bot/internal/domain"
	"github.com/dajanosw/Event-Manager-Bot/internal/testutil"
)

// mockStore returns configurable stale attempts and records sweeps.
type mockStore struct {
	mu       sync.Mutex
	stale    []domain.CreationAttempt
	fetchErr error
	failErr  error
	sweeps   []time.Time
}

func (s *mockStore) GetStalePendingAttempts(ctx context.Context, olderThan time.Time, limit int) ([]domain.CreationAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fetchErr != nil {
		return nil, s.fetchErr
	}

	var result []domain.CreationAttempt
	for _, attempt := range s.stale {
		if attempt.CreatedAt.Before(olderThan) {
			result = append(result, attempt)
			if len(result) >= limit {
				break
			}
		}
	}
	return result, nil
}

func (s *mockStore) FailStaleAttempts(ctx context.Context, olderThan time.Time, limit int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failErr != nil {
		return 0, s.failErr
	}

	s.sweeps = append(s.sweeps, olderThan)
	var count int64
	for _, attempt := range s.stale {
		if attempt.CreatedAt.Before(olderThan) {
			count++
			if count >= int64(limit) {
				break
			}
		}
	}
	return count, nil
}

func (s *mockStore) sweepCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sweeps)
}

type mockMetrics struct {
	mu     sync.Mutex
	marked []int
}

func (m *mockMetrics) StaleAttemptsMarked(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.marked = append(m.marked, count)
}

func staleAttempt(createdAt time.Time) domain.CreationAttempt {
	return domain.CreationAttempt{
		ID:        uuid.New(),
		CommandID: uuid.New(),
		ChannelID: "general",
		EventName: "Standup",
		Status:    domain.AttemptStatusPending,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func TestNew_InvalidSchedule(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Schedule = "not a cron expression"

	if _, err := New(cfg, &mockStore{}); err == nil {
		t.Error("New should reject an unparseable schedule")
	}
}

func TestRunCycle_MarksStaleAttempts(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	clock := testutil.NewFakeClock(now)

	store := &mockStore{stale: []domain.CreationAttempt{
		staleAttempt(now.Add(-30 * time.Minute)),
		staleAttempt(now.Add(-20 * time.Minute)),
	}}
	metrics := &mockMetrics{}

	r, err := New(DefaultConfig(), store)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	r.WithMetrics(metrics).WithClock(clock.Now)

	r.runCycle(context.Background())

	if got := store.sweepCount(); got != 1 {
		t.Fatalf("sweeps = %d, want 1", got)
	}
	metrics.mu.Lock()
	defer metrics.mu.Unlock()
	if len(metrics.marked) != 1 || metrics.marked[0] != 2 {
		t.Errorf("marked = %v, want [2]", metrics.marked)
	}
}

func TestRunCycle_RespectsThreshold(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	clock := testutil.NewFakeClock(now)

	// One attempt is younger than the threshold and must stay untouched.
	store := &mockStore{stale: []domain.CreationAttempt{
		staleAttempt(now.Add(-30 * time.Minute)),
		staleAttempt(now.Add(-2 * time.Minute)),
	}}
	metrics := &mockMetrics{}

	r, err := New(DefaultConfig(), store)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	r.WithMetrics(metrics).WithClock(clock.Now)

	r.runCycle(context.Background())

	metrics.mu.Lock()
	defer metrics.mu.Unlock()
	if len(metrics.marked) != 1 || metrics.marked[0] != 1 {
		t.Errorf("marked = %v, want [1]", metrics.marked)
	}
}

func TestRunCycle_NothingStale(t *testing.T) {
	store := &mockStore{}
	metrics := &mockMetrics{}

	r, err := New(DefaultConfig(), store)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	r.WithMetrics(metrics)

	r.runCycle(context.Background())

	if got := store.sweepCount(); got != 0 {
		t.Errorf("sweeps = %d, want 0 when nothing is stale", got)
	}
	metrics.mu.Lock()
	defer metrics.mu.Unlock()
	if len(metrics.marked) != 0 {
		t.Errorf("marked = %v, want no metric on an empty cycle", metrics.marked)
	}
}

func TestRunCycle_FetchErrorAbortsCycle(t *testing.T) {
	store := &mockStore{
		stale:    []domain.CreationAttempt{staleAttempt(time.Now().Add(-time.Hour))},
		fetchErr: errors.New("connection refused"),
	}

	r, err := New(DefaultConfig(), store)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	r.runCycle(context.Background())

	if got := store.sweepCount(); got != 0 {
		t.Errorf("sweeps = %d, want 0 after fetch error", got)
	}
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	store := &mockStore{}
	r, err := New(DefaultConfig(), store)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after context cancel")
	}
}
