package events

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Publisher emits events for external observers. Publishing is
// best-effort: callers fire after their state change has committed
// and must not roll back on a failed emit.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// RedisPublisher appends events to a Redis stream.
type RedisPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
	logger *zap.Logger
}

// NewRedisPublisher returns a publisher writing to the given stream.
func NewRedisPublisher(client *redis.Client, stream string, maxLen int64, logger *zap.Logger) *RedisPublisher {
	return &RedisPublisher{client: client, stream: stream, maxLen: maxLen, logger: logger}
}

// Publish appends the event to the stream, trimming to the configured
// approximate length.
func (p *RedisPublisher) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		p.logger.Warn("event payload marshal failed", zap.String("type", string(event.Type)), zap.Error(err))
		return err
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"id":          event.ID,
			"type":        string(event.Type),
			"occurred_at": event.OccurredAt.Format(timeLayout),
			"payload":     string(payload),
		},
	}

	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		p.logger.Warn("event publish failed", zap.String("type", string(event.Type)), zap.Error(err))
		return err
	}

	return nil
}

const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// LogPublisher mirrors events into the application log. It stands in
// for the stream when events are disabled.
type LogPublisher struct {
	logger *zap.Logger
}

// NewLogPublisher returns a log-backed publisher.
func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

// Publish writes the event to the log.
func (p *LogPublisher) Publish(_ context.Context, event Event) error {
	p.logger.Info("event",
		zap.String("id", event.ID),
		zap.String("type", string(event.Type)),
		zap.Time("occurred_at", event.OccurredAt),
		zap.Any("payload", event.Payload),
	)
	return nil
}
