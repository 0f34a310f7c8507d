// Package redisstream delivers notifications onto a Redis stream consumed by
// the notification service.
package redisstream

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"rolesync/pkg/platform/notify"
)

const (
	DefaultStream = "rolesync:notifications"
	defaultMaxLen = 100_000
)

type Sink struct {
	client redis.Cmdable
	stream string
	maxLen int64
}

type Option func(*Sink)

func WithStream(name string) Option {
	return func(s *Sink) {
		if name != "" {
			s.stream = name
		}
	}
}

// WithMaxLen caps the stream length (approximate trimming).
func WithMaxLen(n int64) Option {
	return func(s *Sink) {
		if n > 0 {
			s.maxLen = n
		}
	}
}

func New(client redis.Cmdable, opts ...Option) *Sink {
	s := &Sink{client: client, stream: DefaultStream, maxLen: defaultMaxLen}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Deliver appends the batch in one pipeline.
func (s *Sink) Deliver(ctx context.Context, events []notify.Event) error {
	if len(events) == 0 {
		return nil
	}
	pipe := s.client.Pipeline()
	for _, e := range events {
		payload, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal notification: %w", err)
		}
		pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: s.stream,
			MaxLen: s.maxLen,
			Approx: true,
			Values: map[string]any{
				"id":         e.ID,
				"type":       string(e.Type),
				"category":   string(e.Type.Category()),
				"account_id": e.AccountID.String(),
				"payload":    payload,
			},
		})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("xadd notifications: %w", err)
	}
	return nil
}
