package job

import (
	"context"
	"fmt"
	"time"

	"github.com/vncatalog/dedup-engine/internal/catalog/model"
	"github.com/vncatalog/dedup-engine/internal/catalog/repository"
)

// phaseInit loads active sources, counts the raw listings this run will
// touch, allocates the cross-source pair matrix, and creates the Job
// row.
func (r *Runner) phaseInit(ctx context.Context, cfg Config) (*state, []model.Source, error) {
	sources, err := r.repo.ListActiveSources(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list active sources: %w", err)
	}

	filter := repository.RawListingFilter{}
	if cfg.Mode == model.JobModeIncremental {
		filter.DedupStatus = model.DedupStatusPending
	}
	total, err := r.repo.CountRawListings(ctx, filter)
	if err != nil {
		return nil, nil, fmt.Errorf("count raw listings: %w", err)
	}

	now := time.Now()
	j := model.Job{
		ID:              newJobID(),
		Mode:            cfg.Mode,
		Status:          model.JobStatusRunning,
		Phase:           model.JobPhaseInit,
		TotalRaw:        total,
		SourceBreakdown: make(map[string]model.SourceCounters),
		StartedAt:       now,
		UpdatedAt:       now,
	}
	if err := r.repo.CreateJob(ctx, j); err != nil {
		return nil, nil, fmt.Errorf("create job: %w", err)
	}

	return newState(j, sources), sources, nil
}

// phaseCleanup wipes derived state for a fresh-mode run: every
// matching-pair/mapping/canonical/variant row, and resets every raw
// listing back to pending.
func (r *Runner) phaseCleanup(ctx context.Context) error {
	canonicals, err := r.repo.SearchCanonicalsByNamePrefix(ctx, "", 0)
	if err != nil {
		return fmt.Errorf("list canonicals: %w", err)
	}

	ids := make([]string, 0, len(canonicals))
	for _, c := range canonicals {
		if err := r.repo.DeleteMappings(ctx, c.ID); err != nil {
			return fmt.Errorf("delete mappings for %s: %w", c.ID, err)
		}
		if err := r.repo.DeleteVariants(ctx, c.ID); err != nil {
			return fmt.Errorf("delete variants for %s: %w", c.ID, err)
		}
		ids = append(ids, c.ID)
	}
	if err := r.repo.DeleteCanonicals(ctx, ids); err != nil {
		return fmt.Errorf("delete canonicals: %w", err)
	}
	if err := r.repo.ClearMatchingPairs(ctx); err != nil {
		return fmt.Errorf("clear matching pairs: %w", err)
	}
	if err := r.repo.ResetRawListingsPending(ctx); err != nil {
		return fmt.Errorf("reset raw listings: %w", err)
	}
	return nil
}
