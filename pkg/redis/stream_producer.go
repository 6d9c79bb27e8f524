// Package redis publishes the JobRunner's optional lifecycle events onto
// a Redis stream, reusing the Streams API shape this codebase has always
// used for event fan-out, scoped here to dedup job events.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/vncatalog/dedup-engine/pkg/events"
	"github.com/vncatalog/dedup-engine/pkg/interfaces"
)

// StreamProducer publishes lifecycle events onto Redis streams via XADD.
type StreamProducer struct {
	client *redis.Client
	logger *slog.Logger
}

var _ interfaces.StreamProducer = (*StreamProducer)(nil)

// NewStreamProducer wraps client as a stream publisher.
func NewStreamProducer(client *redis.Client, logger *slog.Logger) *StreamProducer {
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamProducer{
		client: client,
		logger: logger.With("component", "stream-producer"),
	}
}

// PublishEvent appends one event to streamName, letting Redis assign the
// entry ID.
func (p *StreamProducer) PublishEvent(ctx context.Context, streamName string, event *events.Event) error {
	if streamName == "" {
		return fmt.Errorf("stream name cannot be empty")
	}
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}

	eventData, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	messageID, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: streamName,
		ID:     "*",
		Values: map[string]any{"event": string(eventData)},
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to publish event to stream: %w", err)
	}

	p.logger.Debug("event published to stream",
		"stream", streamName,
		"event_type", event.Type,
		"event_id", event.ID,
		"message_id", messageID)
	return nil
}

// TrimStream caps streamName at maxLen entries so a long-lived
// deployment's lifecycle stream doesn't grow without bound. The dedup
// command runs it after every pass.
func (p *StreamProducer) TrimStream(ctx context.Context, streamName string, maxLen int64) error {
	return p.client.XTrimMaxLen(ctx, streamName, maxLen).Err()
}
