// Package interfaces defines the narrow stream-publishing contract the
// JobRunner depends on for its optional lifecycle-event side channel.
package interfaces

import (
	"context"

	"github.com/vncatalog/dedup-engine/pkg/events"
)

// StreamProducer publishes an event onto a named stream.
type StreamProducer interface {
	PublishEvent(ctx context.Context, streamName string, event *events.Event) error
}
