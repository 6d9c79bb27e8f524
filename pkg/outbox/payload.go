// Package outbox provides size-validated JSON payload encoding for the
// repository's JSON columns (canonical specs, history change sets,
// review payloads, job breakdowns). Oversized payloads are rejected at
// marshal time rather than silently truncated by a column limit.
package outbox

import (
	"encoding/json"
	"fmt"
)

// MaxPayloadSize bounds an encoded payload (16KB).
const MaxPayloadSize = 16 * 1024

// PayloadError wraps a marshal/unmarshal/validation failure with the
// operation that produced it.
type PayloadError struct {
	Operation string
	Err       error
}

func (e *PayloadError) Error() string {
	return fmt.Sprintf("payload %s error: %v", e.Operation, e.Err)
}

func (e *PayloadError) Unwrap() error { return e.Err }

// MarshalPayload encodes payload as JSON, enforcing MaxPayloadSize.
func MarshalPayload(payload any) (json.RawMessage, error) {
	if payload == nil {
		return json.RawMessage("null"), nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, &PayloadError{Operation: "marshal", Err: err}
	}
	if len(data) > MaxPayloadSize {
		return nil, &PayloadError{
			Operation: "validation",
			Err:       fmt.Errorf("payload size %d bytes exceeds maximum %d bytes", len(data), MaxPayloadSize),
		}
	}
	return json.RawMessage(data), nil
}

// UnmarshalPayload decodes payload into target.
func UnmarshalPayload(payload json.RawMessage, target any) error {
	if len(payload) == 0 {
		return &PayloadError{Operation: "unmarshal", Err: fmt.Errorf("empty payload")}
	}
	if err := json.Unmarshal(payload, target); err != nil {
		return &PayloadError{Operation: "unmarshal", Err: err}
	}
	return nil
}
