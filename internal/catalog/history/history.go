// Package history implements HistoryLog: an append-only, version-per-
// canonical change log with rollback.
package history

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/vncatalog/dedup-engine/internal/catalog/model"
	"github.com/vncatalog/dedup-engine/internal/catalog/repository"
)

// Log is a CanonicalRepository-backed HistoryLog.
type Log struct {
	repo repository.CanonicalRepository
}

// New builds a Log over repo.
func New(repo repository.CanonicalRepository) *Log {
	return &Log{repo: repo}
}

// TrackChange reads the current max version for canonicalID and inserts
// version+1 with a rendered diff. triggeredBy/user are recorded
// verbatim; an empty user is valid for system-triggered events.
// Two concurrent writers can race on max(version)+1; the loser's insert
// hits the (canonical_id, version) unique constraint, so the version is
// re-read and the insert retried once before the error surfaces.
func (l *Log) TrackChange(ctx context.Context, canonicalID string, event model.HistoryEvent, changes map[string]model.FieldChange, triggeredBy model.TriggeredBy, user string) (model.HistoryEntry, error) {
	var insertErr error
	for attempt := 0; attempt < 2; attempt++ {
		existing, err := l.repo.GetHistory(ctx, canonicalID)
		if err != nil {
			return model.HistoryEntry{}, fmt.Errorf("history: read existing: %w", err)
		}

		version := 1
		for _, e := range existing {
			if e.Version >= version {
				version = e.Version + 1
			}
		}

		entry := model.HistoryEntry{
			ID:          uuid.NewString(),
			CanonicalID: canonicalID,
			Version:     version,
			Event:       event,
			Changes:     changes,
			Diff:        RenderDiff(changes),
			TriggeredBy: triggeredBy,
			CreatedBy:   user,
			CreatedAt:   time.Now(),
		}

		if insertErr = l.repo.InsertHistoryEntry(ctx, entry); insertErr == nil {
			return entry, nil
		}
	}
	return model.HistoryEntry{}, fmt.Errorf("history: insert: %w", insertErr)
}

// GetHistory returns the full, version-ordered history for a canonical.
func (l *Log) GetHistory(ctx context.Context, canonicalID string) ([]model.HistoryEntry, error) {
	return l.repo.GetHistory(ctx, canonicalID)
}

// GetVersion reads a single version of a canonical's history.
func (l *Log) GetVersion(ctx context.Context, canonicalID string, version int) (model.HistoryEntry, error) {
	return l.repo.GetHistoryVersion(ctx, canonicalID, version)
}

// GetRecentChanges returns all history entries created since the given
// unix timestamp, across canonicals.
func (l *Log) GetRecentChanges(ctx context.Context, sinceUnix int) ([]model.HistoryEntry, error) {
	return l.repo.GetRecentChanges(ctx, sinceUnix)
}

// RollbackToVersion replays every change from version 1 through v
// inclusive to reconstruct a snapshot, diffs it against live, and writes
// the delta as a new "updated" entry carrying a _rollback_to marker.
func (l *Log) RollbackToVersion(ctx context.Context, canonicalID string, v int, user string) (model.HistoryEntry, error) {
	entries, err := l.repo.GetHistory(ctx, canonicalID)
	if err != nil {
		return model.HistoryEntry{}, fmt.Errorf("history: rollback read: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Version < entries[j].Version })

	snapshot := make(map[string]any)
	for _, e := range entries {
		if e.Version > v {
			break
		}
		for field, change := range e.Changes {
			snapshot[field] = change.New
		}
	}

	live, err := l.repo.GetCanonical(ctx, canonicalID)
	if err != nil {
		return model.HistoryEntry{}, fmt.Errorf("history: rollback get live: %w", err)
	}
	liveFields := canonicalFields(live)

	delta := make(map[string]model.FieldChange)
	for field, snapVal := range snapshot {
		if liveVal, ok := liveFields[field]; ok && fmt.Sprint(liveVal) != fmt.Sprint(snapVal) {
			delta[field] = model.FieldChange{Old: liveVal, New: snapVal}
		}
	}
	delta["_rollback_to"] = model.FieldChange{Old: nil, New: v}

	restored := applySnapshot(live, snapshot)
	if err := l.repo.UpdateCanonicalAggregates(ctx, restored); err != nil {
		return model.HistoryEntry{}, fmt.Errorf("history: rollback update canonical: %w", err)
	}

	return l.TrackChange(ctx, canonicalID, model.HistoryEventUpdated, delta, model.TriggeredByManualReview, user)
}

// applySnapshot writes a replayed version-1..v snapshot's fields onto a
// live Canonical, leaving any field the snapshot never touched alone.
func applySnapshot(live model.Canonical, snapshot map[string]any) model.Canonical {
	for field, val := range snapshot {
		switch field {
		case "name":
			live.Name = fmt.Sprint(val)
		case "name_normalized":
			live.NameNormalized = fmt.Sprint(val)
		case "brand_id":
			live.BrandID = fmt.Sprint(val)
		case "category_id":
			live.CategoryID = fmt.Sprint(val)
		case "description":
			live.Description = fmt.Sprint(val)
		case "min_price":
			if f, ok := toFloat(val); ok {
				live.MinPrice = f
			}
		case "max_price":
			if f, ok := toFloat(val); ok {
				live.MaxPrice = f
			}
		case "avg_rating":
			if f, ok := toFloat(val); ok {
				live.AvgRating = f
			}
		}
	}
	return live
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

func canonicalFields(c model.Canonical) map[string]any {
	return map[string]any{
		"name":            c.Name,
		"name_normalized": c.NameNormalized,
		"brand_id":        c.BrandID,
		"category_id":     c.CategoryID,
		"description":     c.Description,
		"min_price":       c.MinPrice,
		"max_price":       c.MaxPrice,
		"avg_rating":      c.AvgRating,
	}
}

// RenderDiff produces a human-readable unified diff of a field-change
// map, alongside the structured map itself.
func RenderDiff(changes map[string]model.FieldChange) string {
	if len(changes) == 0 {
		return ""
	}

	fields := make([]string, 0, len(changes))
	for field := range changes {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var oldLines, newLines []string
	for _, field := range fields {
		c := changes[field]
		oldLines = append(oldLines, fmt.Sprintf("%s: %v\n", field, c.Old))
		newLines = append(newLines, fmt.Sprintf("%s: %v\n", field, c.New))
	}

	diff := difflib.UnifiedDiff{
		A:        oldLines,
		B:        newLines,
		FromFile: "before",
		ToFile:   "after",
		Context:  len(oldLines),
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return ""
	}
	return text
}
