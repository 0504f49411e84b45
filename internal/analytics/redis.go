// Package analytics records per-channel command outcomes in Redis so
// operators can see how many events a channel creates and how many of
// its commands get bounced.
package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Outcome labels used in analytics keys.
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
)

type RedisSink struct {
	client    *redis.Client
	window    time.Duration // counter bucket size: 1m, 5m or 1h
	retention time.Duration // TTL, must be >= window
}

func NewRedisSink(client *redis.Client, window, retention time.Duration) *RedisSink {
	return &RedisSink{client: client, window: window, retention: retention}
}

// Record increments the bucketed counter for one command outcome.
func (s *RedisSink) Record(ctx context.Context, channelID, outcome string, at time.Time) error {
	key := buildKey(channelID, outcome, at, s.window)

	pipe := s.client.Pipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, s.retention)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline: %w", err)
	}

	return nil
}

func buildKey(channelID, outcome string, t time.Time, window time.Duration) string {
	return fmt.Sprintf("ch:%s:%s:%s", channelID, outcome, truncateToBucket(t, window))
}

func truncateToBucket(t time.Time, window time.Duration) string {
	t = t.UTC()
	switch window {
	case time.Minute:
		return t.Format("200601021504")
	case 5 * time.Minute:
		minute := (t.Minute() / 5) * 5
		return t.Format("2006010215") + fmt.Sprintf("%02d", minute)
	case time.Hour:
		return t.Format("2006010215")
	default:
		return t.Format("200601021504")
	}
}
