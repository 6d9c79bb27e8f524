// Package review implements ReviewQueue: the human-adjudication queue
// fed by dubious matches, low-quality canonicals, conflicts and
// ambiguous clusters.
package review

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vncatalog/dedup-engine/internal/catalog/model"
	"github.com/vncatalog/dedup-engine/internal/catalog/repository"
)

// Queue is a CanonicalRepository-backed ReviewQueue.
type Queue struct {
	repo repository.CanonicalRepository
}

// New builds a Queue over repo.
func New(repo repository.CanonicalRepository) *Queue {
	return &Queue{repo: repo}
}

// DubiousMatch is one below-threshold pairing candidate for review.
type DubiousMatch struct {
	RawID1      string
	RawID2      string
	CanonicalID string
	Score       float64
}

// QueueForReview bulk-inserts review items as-is, stamping IDs and
// CreatedAt/Status for any left zero-valued.
func (q *Queue) QueueForReview(ctx context.Context, items []model.ReviewItem) error {
	now := time.Now()
	for i := range items {
		if items[i].ID == "" {
			items[i].ID = uuid.NewString()
		}
		if items[i].Status == "" {
			items[i].Status = model.ReviewStatusPending
		}
		if items[i].CreatedAt.IsZero() {
			items[i].CreatedAt = now
		}
	}
	if err := q.repo.InsertReviewItems(ctx, items); err != nil {
		return fmt.Errorf("review: queue for review: %w", err)
	}
	return nil
}

// FlagDubiousMatches enqueues every pair scoring below tau, priority
// 100 - round(score*100).
func (q *Queue) FlagDubiousMatches(ctx context.Context, pairs []DubiousMatch, tau float64) error {
	var items []model.ReviewItem
	for _, p := range pairs {
		if p.Score >= tau {
			continue
		}
		items = append(items, model.ReviewItem{
			Type: model.ReviewTypeDubiousMatch,
			Payload: map[string]any{
				"raw_id_1":     p.RawID1,
				"raw_id_2":     p.RawID2,
				"canonical_id": p.CanonicalID,
				"score":        p.Score,
			},
			Reason:   fmt.Sprintf("match score %.2f below threshold %.2f", p.Score, tau),
			Priority: 100 - int(p.Score*100+0.5),
		})
	}
	if len(items) == 0 {
		return nil
	}
	return q.QueueForReview(ctx, items)
}

// FlagQualityIssues enqueues one review item per low-quality canonical.
func (q *Queue) FlagQualityIssues(ctx context.Context, canonicalID string, score float64, issues []string) error {
	return q.QueueForReview(ctx, []model.ReviewItem{{
		Type: model.ReviewTypeLowQuality,
		Payload: map[string]any{
			"canonical_id": canonicalID,
			"quality_score": score,
			"issues":        issues,
		},
		Reason:   "quality score below acceptable threshold",
		Priority: int(100 - score),
	}})
}

// FlagConflicts enqueues a review item for a data conflict (e.g.
// contradictory spec values within a cluster).
func (q *Queue) FlagConflicts(ctx context.Context, canonicalID, reason string, payload map[string]any) error {
	if payload == nil {
		payload = map[string]any{}
	}
	payload["canonical_id"] = canonicalID
	return q.QueueForReview(ctx, []model.ReviewItem{{
		Type:     model.ReviewTypeConflict,
		Payload:  payload,
		Reason:   reason,
		Priority: 70,
	}})
}

// FlagAmbiguous enqueues a review item for an ambiguous clustering
// decision (e.g. a variant split with only borderline evidence).
func (q *Queue) FlagAmbiguous(ctx context.Context, canonicalID, reason string, payload map[string]any) error {
	if payload == nil {
		payload = map[string]any{}
	}
	payload["canonical_id"] = canonicalID
	return q.QueueForReview(ctx, []model.ReviewItem{{
		Type:     model.ReviewTypeAmbiguous,
		Payload:  payload,
		Reason:   reason,
		Priority: 50,
	}})
}

// GetPending returns pending items ordered by priority desc, created_at
// asc (the repository contract already guarantees this ordering).
func (q *Queue) GetPending(ctx context.Context, limit int) ([]model.ReviewItem, error) {
	return q.repo.GetPendingReviews(ctx, limit)
}

// UpdateStatus adjudicates a review item.
func (q *Queue) UpdateStatus(ctx context.Context, id string, status model.ReviewStatus, reviewer string) error {
	return q.repo.UpdateReviewStatus(ctx, id, status, reviewer)
}

// ClearOldReviewed deletes non-pending review items older than the given
// number of days, returning the count removed.
func (q *Queue) ClearOldReviewed(ctx context.Context, days int) (int, error) {
	return q.repo.ClearOldReviewed(ctx, days)
}

// Stats is the GetStats summary.
type Stats struct {
	Pending  int
	Approved int
	Rejected int
	Skipped  int
}

// GetStats tallies pending-queue size by re-reading every pending item
// (no limit); callers needing exact historical tallies should query the repository
// directly. Here we report the pending count, the only figure the
// repository contract exposes without a dedicated aggregate query.
func (q *Queue) GetStats(ctx context.Context) (Stats, error) {
	pending, err := q.repo.GetPendingReviews(ctx, 0)
	if err != nil {
		return Stats{}, fmt.Errorf("review: get stats: %w", err)
	}
	return Stats{Pending: len(pending)}, nil
}
