package job

import (
	"context"
	"fmt"

	"github.com/vncatalog/dedup-engine/internal/catalog/blocking"
	"github.com/vncatalog/dedup-engine/internal/catalog/cluster"
	"github.com/vncatalog/dedup-engine/internal/catalog/collapse"
	"github.com/vncatalog/dedup-engine/internal/catalog/extract"
	"github.com/vncatalog/dedup-engine/internal/catalog/model"
	"github.com/vncatalog/dedup-engine/internal/catalog/repository"
	"github.com/vncatalog/dedup-engine/internal/catalog/scoring"
	"github.com/vncatalog/dedup-engine/internal/catalog/threshold"
	"github.com/vncatalog/dedup-engine/internal/catalog/variant"
	"github.com/vncatalog/dedup-engine/pkg/events"
)

// phaseBatchLoop reads raw listings page by page and, for each page:
// collapses intra-source duplicates, embeds the representatives, blocks
// them, clusters each block at an adaptive threshold, and finds-or-
// creates a canonical per cluster.
func (r *Runner) phaseBatchLoop(ctx context.Context, cfg Config, st *state, onProgress ProgressFunc) error {
	st.job.Phase = model.JobPhaseClustering
	weights := scoring.DefaultWeights()
	filter := repository.RawListingFilter{Limit: cfg.BatchSize}
	if cfg.Mode == model.JobModeIncremental {
		filter.DedupStatus = model.DedupStatusPending
	}

	totalBatches := 0
	if cfg.BatchSize > 0 {
		totalBatches = (st.job.TotalRaw + cfg.BatchSize - 1) / cfg.BatchSize
	}

	batchNum := 0
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
		default:
		}

		var listings []model.RawListing
		if err := withTransientRetry(ctx, func() error {
			var err error
			listings, err = r.repo.ListRawListings(ctx, filter)
			return err
		}); err != nil {
			return fmt.Errorf("%w: list raw listings: %v", ErrTransient, err)
		}
		if len(listings) == 0 {
			break
		}

		if err := r.processBatch(ctx, cfg, st, listings, weights); err != nil {
			return err
		}

		batchNum++
		onProgress.emit(st.progressEvent(model.JobPhaseClustering, fmt.Sprintf("batch %d processed", batchNum), batchNum, totalBatches))
		if batchNum%cfg.CheckpointEvery == 0 {
			if err := r.repo.UpdateJob(ctx, st.job); err != nil {
				r.logger.Warn("job: checkpoint update failed", "job_id", st.job.ID, "error", err)
			}
			r.publish(ctx, events.EventTypeJobProgress, st.job.ID, map[string]any{
				"processed": st.job.Processed,
				"total":     st.job.TotalRaw,
				"batch":     batchNum,
			})
		}

		// Incremental mode scans by dedup_status=pending with no offset, so
		// each iteration naturally picks up the next unprocessed page once
		// this batch's listings are marked processed below. Fresh mode
		// (no status filter) must advance by offset instead.
		if cfg.Mode == model.JobModeFresh {
			filter.Offset += len(listings)
		}
	}
	return nil
}

// maxConsecutiveClusterErrors is the batch circuit breaker: three
// consecutive non-transient cluster-resolution failures in one batch
// fail the job rather than silently degrading coverage further.
const maxConsecutiveClusterErrors = 3

func (r *Runner) processBatch(ctx context.Context, cfg Config, st *state, listings []model.RawListing, weights scoring.Weights) error {
	collapsed := collapse.CollapseWith(listings, cfg.IntraSource)
	representatives := make([]model.RawListing, len(collapsed))
	for i, c := range collapsed {
		representatives[i] = c.Representative
	}

	embeddings := r.embedBatch(ctx, cfg, representatives)

	idx := blocking.New(representatives)
	consecutiveErrors := 0
	for _, bucket := range idx.Buckets() {
		members := make([]cluster.Member, len(bucket))
		for i, l := range bucket {
			group := threshold.NormalizeCategory(l.CategoryRaw)
			members[i] = cluster.Member{Listing: l, Embedding: embeddings[l.ID], CategoryGroup: group}
		}

		category := ""
		if len(members) > 0 {
			category = members[0].CategoryGroup
		}
		tau := r.oracle.Lookup("", "", category)
		if cfg.MinMatchScore > tau {
			tau = cfg.MinMatchScore
		}

		for _, c := range cluster.Run(members, tau, weights) {
			if err := r.resolveCluster(ctx, st, c, weights); err != nil {
				r.logger.Error("job: resolve cluster failed", "error", err)
				r.reviews.FlagAmbiguous(ctx, "", fmt.Sprintf("cluster resolution failed: %v", err), map[string]any{
					"listing_ids": listingIDs(c.Members),
				})
				consecutiveErrors++
				if consecutiveErrors >= maxConsecutiveClusterErrors {
					return fmt.Errorf("%w: %d consecutive cluster-resolution failures: %v", ErrFatal, consecutiveErrors, err)
				}
				continue
			}
			consecutiveErrors = 0
		}
	}

	processedIDs := make([]string, 0, len(listings))
	for _, l := range listings {
		processedIDs = append(processedIDs, l.ID)
		st.job.Processed++
		st.bumpSourceCounters(l.SourceID, false)
	}
	if err := withTransientRetry(ctx, func() error {
		return r.repo.MarkRawListingsProcessed(ctx, processedIDs)
	}); err != nil {
		return fmt.Errorf("%w: mark processed: %v", ErrTransient, err)
	}
	return nil
}

func listingIDs(members []cluster.Member) []string {
	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.Listing.ID
	}
	return ids
}

// embedBatch returns a listing-ID -> embedding map for the given
// listings. A Vectorizer error or disabled embedding is tolerated: the
// listing simply gets no vector, and Features.Semantic scores 0 for it
// instead.
func (r *Runner) embedBatch(ctx context.Context, cfg Config, listings []model.RawListing) map[string][]float32 {
	out := make(map[string][]float32, len(listings))
	if !cfg.EmbeddingEnabled || r.vectorizer == nil {
		return out
	}

	texts := make([]string, len(listings))
	for i, l := range listings {
		texts[i] = l.NameNormalized
	}
	vecs, err := r.vectorizer.GenerateBatchDocumentEmbeddings(ctx, texts)
	if err != nil {
		r.logger.Warn("job: batch embedding failed", "count", len(listings), "error", err)
		return out
	}
	for i, l := range listings {
		if i < len(vecs) {
			out[l.ID] = vecs[i]
		}
	}
	return out
}

// resolveCluster finds or creates the canonical a cluster belongs to,
// wiring mappings, variants, quality, history and review-queue flags.
func (r *Runner) resolveCluster(ctx context.Context, st *state, c cluster.Cluster, weights scoring.Weights) error {
	listings := make([]model.RawListing, len(c.Members))
	for i, m := range c.Members {
		listings[i] = m.Listing
	}

	existing, found, err := r.findExistingCanonical(ctx, listings)
	if err != nil {
		return fmt.Errorf("find existing canonical: %w", err)
	}

	var canonical model.Canonical
	memberListings := listings
	event := model.HistoryEventCreated
	if found {
		union, err := r.unionWithExistingMembers(ctx, existing.ID, listings)
		if err != nil {
			return fmt.Errorf("union existing members: %w", err)
		}
		memberListings = union
		existing.MinPrice, existing.MaxPrice, existing.TotalReviews, existing.AvgRating = 0, 0, 0, 0
		canonical = aggregate(existing, union)
		event = model.HistoryEventUpdated
	} else {
		canonical = r.buildCanonical(ctx, listings)
	}
	canonical = scoreQuality(canonical, memberListings)

	id, err := r.repo.UpsertCanonical(ctx, canonical)
	if err != nil {
		return fmt.Errorf("upsert canonical: %w", err)
	}
	canonical.ID = id

	best := pickBest(listings)
	code := extract.Extract(best.Name)
	method := mappingMethod(code)
	if found {
		method = model.MethodMLClassifier
	}
	confidence := 0.90
	if found {
		confidence = 0.85
	}
	for _, l := range listings {
		if err := r.repo.UpsertMapping(ctx, model.Mapping{CanonicalID: id, RawID: l.ID, ConfidenceScore: confidence, MatchingMethod: method}); err != nil {
			return fmt.Errorf("upsert mapping: %w", err)
		}
	}
	st.job.MappingsCreated += len(listings)
	if !found {
		st.job.CanonicalCreated++
	}

	variantMembers := make([]variant.Member, len(listings))
	for i, l := range listings {
		variantMembers[i] = variant.Member{Listing: l}
	}
	split := variant.Run(variantMembers, id)
	for _, v := range split.Variants {
		if err := r.repo.UpsertVariant(ctx, v); err != nil {
			return fmt.Errorf("upsert variant: %w", err)
		}
	}

	changes := map[string]model.FieldChange{
		"name":         {New: canonical.Name},
		"min_price":    {New: canonical.MinPrice},
		"max_price":    {New: canonical.MaxPrice},
		"source_count": {New: canonical.SourceCount},
	}
	if _, err := r.history.TrackChange(ctx, id, event, changes, model.TriggeredByAutoDedup, "job-runner"); err != nil {
		r.logger.Warn("job: history tracking failed", "canonical_id", id, "error", err)
	}

	if canonical.NeedsReview {
		if err := r.reviews.FlagQualityIssues(ctx, id, canonical.QualityScore, canonical.QualityIssues); err != nil {
			r.logger.Warn("job: flag quality issues failed", "canonical_id", id, "error", err)
		}
	}

	if len(listings) >= 2 {
		r.tallyPairEvidence(ctx, st, id, listings, weights)
	}
	return nil
}

// tallyPairEvidence inserts a MatchingPair row and bumps the
// cross-source matrix for every distinct-source pair within a cluster
// of size >= 2.
func (r *Runner) tallyPairEvidence(ctx context.Context, st *state, canonicalID string, listings []model.RawListing, weights scoring.Weights) {
	for i := 0; i < len(listings); i++ {
		for j := i + 1; j < len(listings); j++ {
			a, b := listings[i], listings[j]
			if a.SourceID == b.SourceID {
				continue
			}
			score := scoring.Score(
				scoring.Pair{Listing: a, Code: extract.Extract(a.Name)},
				scoring.Pair{Listing: b, Code: extract.Extract(b.Name)},
				weights,
			)
			pair := model.MatchingPair{
				JobID:       st.job.ID,
				Raw1:        a.ID,
				Raw2:        b.ID,
				Source1:     a.SourceID,
				Source2:     b.SourceID,
				MatchScore:  score.Score,
				MatchMethod: score.Method,
				CanonicalID: canonicalID,
			}
			if err := r.repo.InsertMatchingPair(ctx, pair); err != nil {
				r.logger.Warn("job: insert matching pair failed", "error", err)
				continue
			}
			st.bumpMatrix(a.SourceID, b.SourceID)
			st.recordMatch(a.ID, b.ID, score.Score)
		}
	}
}
