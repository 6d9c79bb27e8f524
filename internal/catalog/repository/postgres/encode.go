package postgres

import (
	"encoding/json"

	"github.com/lib/pq"

	"github.com/vncatalog/dedup-engine/internal/catalog/model"
	"github.com/vncatalog/dedup-engine/pkg/outbox"
)

// idArray adapts a []string to the driver's array literal form, per
// lib/pq's documented Array helper.
func idArray(ids []string) any {
	return pq.Array(ids)
}

// changesJSON and payloadJSON route through outbox.MarshalPayload so a
// pathologically large history/review payload is rejected before it
// reaches the database rather than silently truncated by a column limit.
func changesJSON(changes map[string]model.FieldChange) []byte {
	raw, err := outbox.MarshalPayload(changes)
	if err != nil {
		return []byte("{}")
	}
	return raw
}

func decodeChanges(raw []byte) map[string]model.FieldChange {
	var out map[string]model.FieldChange
	if err := outbox.UnmarshalPayload(raw, &out); err != nil {
		return nil
	}
	return out
}

func payloadJSON(payload map[string]any) []byte {
	raw, err := outbox.MarshalPayload(payload)
	if err != nil {
		return []byte("{}")
	}
	return raw
}

func decodePayload(raw []byte) map[string]any {
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

// jobMapJSON/jobMatrixJSON encode a Job's per-source breakdown and
// cross-source matrix for the jobs table's JSON columns.
func jobMapJSON(m map[string]model.SourceCounters) []byte {
	raw, err := outbox.MarshalPayload(m)
	if err != nil {
		return []byte("{}")
	}
	return raw
}

func jobMatrixJSON(m map[string]map[string]int) []byte {
	raw, err := outbox.MarshalPayload(m)
	if err != nil {
		return []byte("{}")
	}
	return raw
}

// specsJSON encodes a canonical's spec map for its JSON column.
func specsJSON(specs map[string]string) []byte {
	raw, err := outbox.MarshalPayload(specs)
	if err != nil {
		return []byte("{}")
	}
	return raw
}

func decodeSpecs(raw []byte) map[string]string {
	if len(raw) == 0 {
		return nil
	}
	var out map[string]string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}
