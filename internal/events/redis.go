package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultStream = "boq:job-events"

// RedisSink mirrors job events onto a Redis stream for external consumers.
type RedisSink struct {
	client  *redis.Client
	stream  string
	maxLen  int64
	timeout time.Duration
	logger  *slog.Logger
}

func NewRedisSink(client *redis.Client, stream string, maxLen int64, logger *slog.Logger) *RedisSink {
	if logger == nil {
		logger = slog.Default()
	}
	if stream == "" {
		stream = DefaultStream
	}
	return &RedisSink{client: client, stream: stream, maxLen: maxLen, timeout: 2 * time.Second, logger: logger}
}

// DialRedis parses url and verifies the server answers.
func DialRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (s *RedisSink) values(e Event) (map[string]any, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"job_id":   e.JobID.String(),
		"kind":     string(e.Kind),
		"status":   string(e.Status),
		"progress": e.Progress,
		"payload":  string(payload),
	}, nil
}

// Publish appends the event; failures are logged and dropped.
func (s *RedisSink) Publish(ctx context.Context, e Event) {
	fields, err := s.values(e)
	if err != nil {
		s.logger.Error("events.redis.encode_failed", "job_id", e.JobID, "err", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	args := &redis.XAddArgs{Stream: s.stream, Values: fields}
	if s.maxLen > 0 {
		args.MaxLen, args.Approx = s.maxLen, true
	}
	if err := s.client.XAdd(ctx, args).Err(); err != nil {
		s.logger.Warn("events.redis.publish_failed", "job_id", e.JobID, "kind", e.Kind, "err", err)
		return
	}
	s.logger.Debug("events.redis.published", "job_id", e.JobID, "kind", e.Kind)
}

func (s *RedisSink) Close() error {
	return s.client.Close()
}
