package job

import (
	"context"
	"fmt"

	"github.com/vncatalog/dedup-engine/internal/catalog/model"
)

// phaseReconcile recomputes every canonical's source_count from its
// current mappings, since cross-source linking can have changed it
// since the value was last written.
func (r *Runner) phaseReconcile(ctx context.Context, st *state) error {
	st.job.Phase = model.JobPhaseSaving
	canonicals, err := r.repo.SearchCanonicalsByNamePrefix(ctx, "", 0)
	if err != nil {
		return fmt.Errorf("list canonicals: %w", err)
	}

	for _, c := range canonicals {
		mappings, err := r.repo.GetMappingsForCanonical(ctx, c.ID)
		if err != nil {
			return fmt.Errorf("get mappings for %s: %w", c.ID, err)
		}

		sourceIDs := make(map[string]struct{})
		for _, m := range mappings {
			raw, err := r.repo.GetRawListing(ctx, m.RawID)
			if err != nil {
				continue
			}
			sourceIDs[raw.SourceID] = struct{}{}
		}

		if len(sourceIDs) == c.SourceCount {
			continue
		}
		c.SourceCount = len(sourceIDs)
		if err := r.repo.UpdateCanonicalAggregates(ctx, c); err != nil {
			return fmt.Errorf("update canonical aggregates for %s: %w", c.ID, err)
		}
	}
	return nil
}
