// Package events defines the job-lifecycle event envelope the engine
// optionally publishes to a Redis stream so an out-of-scope dashboard
// can tail deduplication progress. The envelope shape mirrors the
// CloudEvents-flavored event the upstream crawl pipeline already uses.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event types for the dedup job lifecycle.
const (
	EventTypeJobStarted      = "JOB_STARTED"
	EventTypeJobPhaseChanged = "JOB_PHASE_CHANGED"
	EventTypeJobProgress     = "JOB_PROGRESS"
	EventTypeJobCompleted    = "JOB_COMPLETED"
	EventTypeJobFailed       = "JOB_FAILED"
)

// Event is the envelope published for every job lifecycle transition.
type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Source    string          `json:"source"`
	Subject   string          `json:"subject"` // job ID
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// New builds an Event with a fresh ID and the current timestamp,
// marshalling data into the envelope's Data field.
func New(eventType, source, subject string, data any) (*Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("events: marshal data: %w", err)
	}
	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    source,
		Subject:   subject,
		Data:      raw,
		Timestamp: time.Now(),
	}, nil
}
