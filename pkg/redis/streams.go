package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/Ramsey-B/clover/pkg/events"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// StreamPublisher appends change notifications to a Redis stream
type StreamPublisher struct {
	client *Client
	stream string
	maxLen int64
}

func NewStreamPublisher(client *Client, stream string, maxLen int64) *StreamPublisher {
	return &StreamPublisher{
		client: client,
		stream: stream,
		maxLen: maxLen,
	}
}

func (s *StreamPublisher) Name() string {
	return "redis"
}

// Publish appends every event in one pipeline round trip. The stream is
// trimmed approximately to maxLen when it is set.
func (s *StreamPublisher) Publish(ctx context.Context, batch []*events.EntityEvent) error {
	ctx, span := tracing.StartSpan(ctx, "redis.StreamPublisher.Publish")
	defer span.End()

	if len(batch) == 0 {
		return nil
	}

	pipe := s.client.rdb.Pipeline()
	for _, event := range batch {
		args, err := s.xaddArgs(event)
		if err != nil {
			return err
		}
		pipe.XAdd(ctx, args)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		s.client.logger.WithContext(ctx).WithError(err).Errorf("Failed to publish to stream %s", s.stream)
		return err
	}

	s.client.logger.WithContext(ctx).WithField("batch_size", len(batch)).Debugf("Published events to stream %s", s.stream)
	return nil
}

func (s *StreamPublisher) xaddArgs(event *events.EntityEvent) (*redis.XAddArgs, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]interface{}{
			"event_type":  event.EventType,
			"entity_type": event.EntityType,
			"entity_key":  event.EntityKey,
			"data":        string(payload),
		},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}
	return args, nil
}
