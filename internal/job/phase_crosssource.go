package job

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/vncatalog/dedup-engine/internal/catalog/extract"
	"github.com/vncatalog/dedup-engine/internal/catalog/model"
	"github.com/vncatalog/dedup-engine/internal/catalog/normalize"
)

const crossSourceCandidatePageSize = 30

// maxConsecutiveFetchErrors is the cross-source-linking circuit
// breaker: three consecutive candidate-fetch failures (across the
// bounded fan-out) fail the phase rather than silently skipping
// canonicals one by one.
const maxConsecutiveFetchErrors = 3

// phaseCrossSourceLink looks for a second-source match for every
// canonical currently backed by a single source. Each
// canonical is searched independently, so the fan-out runs through a
// bounded errgroup.
func (r *Runner) phaseCrossSourceLink(ctx context.Context, cfg Config, st *state, sources []model.Source) error {
	canonicals, err := r.repo.SearchCanonicalsByNamePrefix(ctx, "", 0)
	if err != nil {
		return fmt.Errorf("list canonicals: %w", err)
	}

	var mu sync.Mutex
	var consecutiveFetchErrors atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.CrossSourceConcurrency)

	for _, c := range canonicals {
		c := c
		if c.SourceCount != 1 {
			continue
		}
		g.Go(func() error {
			return r.linkOneCanonical(gctx, cfg, st, &mu, &consecutiveFetchErrors, c)
		})
	}
	return g.Wait()
}

func (r *Runner) linkOneCanonical(ctx context.Context, cfg Config, st *state, mu *sync.Mutex, consecutiveFetchErrors *atomic.Int32, c model.Canonical) error {
	mappings, err := r.repo.GetMappingsForCanonical(ctx, c.ID)
	if err != nil {
		return fmt.Errorf("get mappings for %s: %w", c.ID, err)
	}
	if len(mappings) != 1 {
		return nil
	}

	raw, err := r.repo.GetRawListing(ctx, mappings[0].RawID)
	if err != nil {
		return fmt.Errorf("get raw listing %s: %w", mappings[0].RawID, err)
	}

	code := extract.Extract(raw.Name)
	if code.Brand == "" && code.Model == "" {
		return nil
	}

	var candidates []model.RawListing
	for _, term := range candidateSearchTerms(code, raw.NameNormalized) {
		if term == "" {
			continue
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
		default:
		}
		found, err := r.repo.SearchRawListings(ctx, term, raw.SourceID, crossSourceCandidatePageSize)
		if err != nil {
			if consecutiveFetchErrors.Add(1) >= maxConsecutiveFetchErrors {
				return fmt.Errorf("%w: %d consecutive candidate-fetch failures: %v", ErrFatal, maxConsecutiveFetchErrors, err)
			}
			r.logger.Warn("job: candidate fetch failed", "canonical_id", c.ID, "term", term, "error", err)
			continue
		}
		consecutiveFetchErrors.Store(0)
		if len(found) > 0 {
			candidates = found
			break
		}
	}

	for _, cand := range candidates {
		mapped, err := r.repo.IsRawListingMapped(ctx, cand.ID)
		if err != nil {
			return fmt.Errorf("check mapped status for %s: %w", cand.ID, err)
		}
		if mapped {
			continue
		}

		candCode := extract.Extract(cand.Name)
		score := extract.Compare(code, candCode)
		if score < cfg.MinMatchScore {
			continue
		}

		if err := r.repo.UpsertMapping(ctx, model.Mapping{
			CanonicalID:     c.ID,
			RawID:           cand.ID,
			ConfidenceScore: score,
			MatchingMethod:  model.MethodCrossSource,
		}); err != nil {
			return fmt.Errorf("upsert cross-source mapping: %w", err)
		}
		if err := r.repo.InsertMatchingPair(ctx, model.MatchingPair{
			JobID:       st.job.ID,
			Raw1:        raw.ID,
			Raw2:        cand.ID,
			Source1:     raw.SourceID,
			Source2:     cand.SourceID,
			MatchScore:  score,
			MatchMethod: model.MethodCrossSource,
			CanonicalID: c.ID,
		}); err != nil {
			return fmt.Errorf("insert cross-source matching pair: %w", err)
		}
		if err := r.repo.MarkRawListingsProcessed(ctx, []string{cand.ID}); err != nil {
			return fmt.Errorf("mark cross-source candidate processed: %w", err)
		}

		mu.Lock()
		st.bumpMatrix(raw.SourceID, cand.SourceID)
		st.recordMatch(raw.ID, cand.ID, score)
		st.job.MappingsCreated++
		mu.Unlock()
	}
	return nil
}

// candidateSearchTerms builds the cross-source candidate lookup terms
// in priority order: the model token, brand plus storage digits, then
// the name's first 20 characters.
func candidateSearchTerms(code model.ExtractedCode, nameNormalized string) []string {
	var terms []string
	if tokens := modelTokens(code.Model); len(tokens) >= 2 {
		terms = append(terms, strings.Join(tokens, "%"))
	}
	if code.Brand != "" && code.StorageGB > 0 {
		terms = append(terms, code.Brand+"%"+strconv.Itoa(code.StorageGB))
	}
	terms = append(terms, normalize.Prefix(nameNormalized, 20))
	return terms
}

// modelTokens splits a model string into its length->1 tokens, the unit
// candidateSearchTerms joins with "%" to build a multi-segment ILIKE
// pattern.
func modelTokens(modelStr string) []string {
	var tokens []string
	for _, t := range strings.Fields(strings.ToLower(modelStr)) {
		if len(t) > 1 {
			tokens = append(tokens, t)
		}
	}
	return tokens
}
