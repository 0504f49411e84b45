package dispatcher

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/dajanosw/Event-Manager-Bot/internal/circuitbreaker"
	"github.com/dajanosw/Event-Manager-Bot/internal/domain"
	"github.com/dajanosw/Event-Manager-Bot/internal/parse"
	"github.com/dajanosw/Event-Manager-Bot/internal/testutil"
	"github.com/dajanosw/Event-Manager-Bot/internal/validate"
)

type fakeStore struct {
	mu       sync.Mutex
	commands []domain.Command
	attempts []domain.CreationAttempt
	statuses map[uuid.UUID]domain.AttemptStatus
	counts   map[uuid.UUID]int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		statuses: make(map[uuid.UUID]domain.AttemptStatus),
		counts:   make(map[uuid.UUID]int),
	}
}

func (s *fakeStore) InsertCommand(ctx context.Context, cmd domain.Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commands = append(s.commands, cmd)
	return nil
}

func (s *fakeStore) InsertCreationAttempt(ctx context.Context, attempt domain.CreationAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts = append(s.attempts, attempt)
	s.statuses[attempt.ID] = attempt.Status
	return nil
}

func (s *fakeStore) UpdateAttemptStatus(ctx context.Context, attemptID uuid.UUID, status domain.AttemptStatus, attempts int, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current := s.statuses[attemptID]
	if current == domain.AttemptStatusCreated || current == domain.AttemptStatusRejected || current == domain.AttemptStatusFailed {
		return ErrStatusTransitionDenied
	}
	s.statuses[attemptID] = status
	s.counts[attemptID] = attempts
	return nil
}

func (s *fakeStore) lastAttemptStatus(t *testing.T) domain.AttemptStatus {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.attempts) == 0 {
		t.Fatal("no creation attempts recorded")
	}
	return s.statuses[s.attempts[len(s.attempts)-1].ID]
}

func (s *fakeStore) lastAttemptCount(t *testing.T) int {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.attempts) == 0 {
		t.Fatal("no creation attempts recorded")
	}
	return s.counts[s.attempts[len(s.attempts)-1].ID]
}

type fakeClient struct {
	mu      sync.Mutex
	results []CreateResult
	calls   []CreateRequest
}

func (c *fakeClient) Create(ctx context.Context, req CreateRequest) CreateResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, req)
	if len(c.results) == 0 {
		return CreateResult{StatusCode: 200}
	}
	result := c.results[0]
	c.results = c.results[1:]
	return result
}

func (c *fakeClient) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

type fakeReplies struct {
	mu       sync.Mutex
	messages []string
	channels []string
}

func (r *fakeReplies) Reply(ctx context.Context, channelID, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channels = append(r.channels, channelID)
	r.messages = append(r.messages, message)
	return nil
}

func (r *fakeReplies) lastMessage(t *testing.T) string {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.messages) == 0 {
		t.Fatal("no replies sent")
	}
	return r.messages[len(r.messages)-1]
}

type openBreaker struct{}

func (openBreaker) Allow(endpoint string) error   { return circuitbreaker.ErrCircuitOpen }
func (openBreaker) RecordSuccess(endpoint string) {}
func (openBreaker) RecordFailure(endpoint string) {}

func testEndpoint() Endpoint {
	return Endpoint{
		URL:     "https://scheduler.example.com/v1/events",
		Secret:  "secret",
		Timeout: time.Second,
	}
}

func newTestDispatcher(store *fakeStore, client *fakeClient, replies *fakeReplies) *Dispatcher {
	clock := testutil.NewFakeClock(time.Date(2999, 1, 3, 12, 0, 0, 0, time.UTC))
	d := New(
		parse.NewExtractor("UTC"),
		validate.New().WithClock(clock.Now),
		store,
		client,
		replies,
		testEndpoint(),
	)
	// No waiting between retries in tests.
	d.backoff = []time.Duration{0, 0, 0, 0}
	return d
}

func testCommand(raw string, mode domain.Mode) domain.Command {
	return domain.Command{
		ID:         uuid.New(),
		ChannelID:  "general",
		RawText:    raw,
		Mode:       mode,
		ReceivedAt: time.Now().UTC(),
	}
}

func TestProcess_ValidSingleCommand(t *testing.T) {
	store := newFakeStore()
	client := &fakeClient{}
	replies := &fakeReplies{}
	d := newTestDispatcher(store, client, replies)

	cmd := testCommand("Standup; 2999-01-10 09:00; 2999-01-10 09:30; Europe/Berlin; Office; Check-in", domain.ModeSingle)
	if err := d.Process(context.Background(), cmd); err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	if got := client.callCount(); got != 1 {
		t.Errorf("client called %d times, want 1", got)
	}
	if got := store.lastAttemptStatus(t); got != domain.AttemptStatusCreated {
		t.Errorf("attempt status = %q, want created", got)
	}
	if msg := replies.lastMessage(t); !strings.Contains(msg, "Created") {
		t.Errorf("reply %q should confirm creation", msg)
	}

	payload := client.calls[0].Payload
	if payload.StartsAt != "2999-01-10T08:00:00Z" {
		t.Errorf("StartsAt = %q, want UTC instant", payload.StartsAt)
	}
	if payload.Recurrence != nil {
		t.Error("single event payload should not carry recurrence")
	}
}

func TestProcess_ValidWeeklyCommand(t *testing.T) {
	store := newFakeStore()
	client := &fakeClient{}
	replies := &fakeReplies{}
	d := newTestDispatcher(store, client, replies)

	cmd := testCommand("Retro; 2999-01-10 09:00; 2999-01-10 10:00; Europe/Berlin; Office; Team retro; weekly; 1", domain.ModeRecurring)
	if err := d.Process(context.Background(), cmd); err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	payload := client.calls[0].Payload
	if payload.Recurrence == nil {
		t.Fatal("weekly payload should carry recurrence")
	}
	if payload.Recurrence.Kind != "weekly" || payload.Recurrence.Interval != 1 {
		t.Errorf("recurrence = %+v, want weekly interval 1", payload.Recurrence)
	}
	if payload.Recurrence.Weekday == nil {
		t.Fatal("weekly recurrence should carry a weekday")
	}
	// 2999-01-10 is a Thursday in Berlin.
	if *payload.Recurrence.Weekday != int(time.Thursday) {
		t.Errorf("weekday = %d, want %d (Thursday)", *payload.Recurrence.Weekday, int(time.Thursday))
	}

	if msg := replies.lastMessage(t); !strings.Contains(msg, "next occurrence") {
		t.Errorf("reply %q should preview the next occurrence", msg)
	}
}

func TestProcess_RejectionDoesNotReachAPI(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		mode      domain.Mode
		wantReply string
	}{
		{
			name:      "end before start",
			raw:       "X; 2999-01-10 10:00; 2999-01-10 09:00; Europe/Berlin; Y; Z",
			mode:      domain.ModeSingle,
			wantReply: "end after it starts",
		},
		{
			name:      "weekly interval out of bounds",
			raw:       "X; 2999-01-10 09:00; 2999-01-10 10:00; UTC; Y; Z; weekly; 5",
			mode:      domain.ModeRecurring,
			wantReply: "1 or 2 weeks",
		},
		{
			name:      "monthly unsupported",
			raw:       "X; 2999-01-10 09:00; 2999-01-10 10:00; UTC; Y; Z; monthly; 1",
			mode:      domain.ModeRecurring,
			wantReply: "not supported",
		},
		{
			name:      "malformed date",
			raw:       "X; soon; 2999-01-10 10:00; UTC; Y; Z",
			mode:      domain.ModeSingle,
			wantReply: "as a date",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			client := &fakeClient{}
			replies := &fakeReplies{}
			d := newTestDispatcher(store, client, replies)

			if err := d.Process(context.Background(), testCommand(tt.raw, tt.mode)); err != nil {
				t.Fatalf("Process returned error: %v", err)
			}

			if got := client.callCount(); got != 0 {
				t.Errorf("client called %d times, want 0 for rejected spec", got)
			}
			if got := store.lastAttemptStatus(t); got != domain.AttemptStatusRejected {
				t.Errorf("attempt status = %q, want rejected", got)
			}
			if msg := replies.lastMessage(t); !strings.Contains(msg, tt.wantReply) {
				t.Errorf("reply %q should contain %q", msg, tt.wantReply)
			}
		})
	}
}

func TestProcess_RetriesOnServerError(t *testing.T) {
	store := newFakeStore()
	client := &fakeClient{results: []CreateResult{
		{StatusCode: 500},
		{StatusCode: 200},
	}}
	replies := &fakeReplies{}
	d := newTestDispatcher(store, client, replies)

	cmd := testCommand("Standup; 2999-01-10 09:00; 2999-01-10 09:30; UTC; Office; Check-in", domain.ModeSingle)
	if err := d.Process(context.Background(), cmd); err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	if got := client.callCount(); got != 2 {
		t.Errorf("client called %d times, want 2", got)
	}
	if got := store.lastAttemptStatus(t); got != domain.AttemptStatusCreated {
		t.Errorf("attempt status = %q, want created after retry", got)
	}
}

func TestProcess_NonRetryableStatusFailsImmediately(t *testing.T) {
	store := newFakeStore()
	client := &fakeClient{results: []CreateResult{
		{StatusCode: 400},
		{StatusCode: 200},
	}}
	replies := &fakeReplies{}
	d := newTestDispatcher(store, client, replies)

	cmd := testCommand("Standup; 2999-01-10 09:00; 2999-01-10 09:30; UTC; Office; Check-in", domain.ModeSingle)
	if err := d.Process(context.Background(), cmd); err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	if got := client.callCount(); got != 1 {
		t.Errorf("client called %d times, want 1 for non-retryable status", got)
	}
	if got := store.lastAttemptStatus(t); got != domain.AttemptStatusFailed {
		t.Errorf("attempt status = %q, want failed", got)
	}
	if got := store.lastAttemptCount(t); got != 1 {
		t.Errorf("recorded attempts = %d, want 1 (only one call was made)", got)
	}
	if msg := replies.lastMessage(t); !strings.Contains(msg, "Could not create") {
		t.Errorf("reply %q should report the failure", msg)
	}
}

func TestProcess_ExhaustedRetriesFail(t *testing.T) {
	store := newFakeStore()
	client := &fakeClient{results: []CreateResult{
		{StatusCode: 503},
		{StatusCode: 503},
		{StatusCode: 503},
		{StatusCode: 503},
	}}
	replies := &fakeReplies{}
	d := newTestDispatcher(store, client, replies)

	cmd := testCommand("Standup; 2999-01-10 09:00; 2999-01-10 09:30; UTC; Office; Check-in", domain.ModeSingle)
	if err := d.Process(context.Background(), cmd); err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	if got := client.callCount(); got != maxAttempts {
		t.Errorf("client called %d times, want %d", got, maxAttempts)
	}
	if got := store.lastAttemptStatus(t); got != domain.AttemptStatusFailed {
		t.Errorf("attempt status = %q, want failed", got)
	}
	if got := store.lastAttemptCount(t); got != maxAttempts {
		t.Errorf("recorded attempts = %d, want %d", got, maxAttempts)
	}
}

func TestProcess_OpenBreakerSkipsAPI(t *testing.T) {
	store := newFakeStore()
	client := &fakeClient{}
	replies := &fakeReplies{}
	d := newTestDispatcher(store, client, replies).WithBreaker(openBreaker{})

	cmd := testCommand("Standup; 2999-01-10 09:00; 2999-01-10 09:30; UTC; Office; Check-in", domain.ModeSingle)
	if err := d.Process(context.Background(), cmd); err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	if got := client.callCount(); got != 0 {
		t.Errorf("client called %d times, want 0 with open circuit", got)
	}
	if got := store.lastAttemptStatus(t); got != domain.AttemptStatusFailed {
		t.Errorf("attempt status = %q, want failed", got)
	}
	if msg := replies.lastMessage(t); !strings.Contains(msg, "unavailable") {
		t.Errorf("reply %q should report unavailability", msg)
	}
}

func TestCreateResult_IsSuccess(t *testing.T) {
	tests := []struct {
		name   string
		result CreateResult
		want   bool
	}{
		{"200", CreateResult{StatusCode: 200}, true},
		{"201", CreateResult{StatusCode: 201}, true},
		{"400", CreateResult{StatusCode: 400}, false},
		{"500", CreateResult{StatusCode: 500}, false},
		{"transport error", CreateResult{StatusCode: 200, Error: context.DeadlineExceeded}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.result.IsSuccess(); got != tt.want {
				t.Errorf("IsSuccess() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCreateResult_IsRetryable(t *testing.T) {
	tests := []struct {
		name   string
		result CreateResult
		want   bool
	}{
		{"transport error", CreateResult{Error: context.DeadlineExceeded}, true},
		{"429 rate limit", CreateResult{StatusCode: 429}, true},
		{"500", CreateResult{StatusCode: 500}, true},
		{"503", CreateResult{StatusCode: 503}, true},
		{"400", CreateResult{StatusCode: 400}, false},
		{"404", CreateResult{StatusCode: 404}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.result.IsRetryable(); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}
