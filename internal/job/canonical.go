package job

import (
	"context"
	"errors"
	"strings"

	"github.com/vncatalog/dedup-engine/internal/catalog/extract"
	"github.com/vncatalog/dedup-engine/internal/catalog/model"
	"github.com/vncatalog/dedup-engine/internal/catalog/normalize"
	"github.com/vncatalog/dedup-engine/internal/catalog/quality"
	"github.com/vncatalog/dedup-engine/internal/catalog/repository"
)

// pickBest selects a cluster's representative listing: highest rating,
// then review count, then availability (the same tie-break order
// collapse uses for a duplicate group's representative; variant's main
// product pick orders review count before rating).
func pickBest(listings []model.RawListing) model.RawListing {
	best := listings[0]
	for _, l := range listings[1:] {
		if better(l, best) {
			best = l
		}
	}
	return best
}

func better(candidate, current model.RawListing) bool {
	if candidate.Rating != current.Rating {
		return candidate.Rating > current.Rating
	}
	if candidate.ReviewCount != current.ReviewCount {
		return candidate.ReviewCount > current.ReviewCount
	}
	return candidate.Available && !current.Available
}

// aggregate folds a cluster's listings into a Canonical's price/rating/
// review/source-count summary fields.
func aggregate(c model.Canonical, listings []model.RawListing) model.Canonical {
	sourceSet := make(map[string]struct{})
	var ratingSum float64
	var ratingN int
	minSet := false

	for _, l := range listings {
		if l.Price > 0 && (!minSet || l.Price < c.MinPrice) {
			c.MinPrice = l.Price
			minSet = true
		}
		if l.Price > c.MaxPrice {
			c.MaxPrice = l.Price
		}
		if l.Rating > 0 {
			ratingSum += l.Rating * float64(max1(l.ReviewCount))
			ratingN += max1(l.ReviewCount)
		}
		c.TotalReviews += l.ReviewCount
		sourceSet[l.SourceID] = struct{}{}
	}
	if ratingN > 0 {
		c.AvgRating = ratingSum / float64(ratingN)
	}
	c.SourceCount = len(sourceSet)
	return c
}

func max1(n int) int {
	if n <= 0 {
		return 1
	}
	return n
}

// buildCanonical constructs a brand-new Canonical from a cluster's
// listings: name/slug/specs from the best representative, aggregates
// folded across the whole cluster.
func (r *Runner) buildCanonical(ctx context.Context, listings []model.RawListing) model.Canonical {
	best := pickBest(listings)
	code := extract.Extract(best.Name)

	c := model.Canonical{
		Name:           best.Name,
		NameNormalized: best.NameNormalized,
		Slug:           canonicalSlug(best, code),
		Description:    best.Description,
		ImageURL:       best.ImageURL,
		Images:         best.Images,
		CanonicalSpecs: best.Specs,
		IsActive:       true,
	}
	c = aggregate(c, listings)

	if brandID, err := r.repo.ResolveBrandID(ctx, best.BrandRaw); err == nil {
		c.BrandID = brandID
	} else if !errors.Is(err, repository.ErrNotFound) {
		r.logger.Warn("job: resolve brand id", "brand_raw", best.BrandRaw, "error", err)
	}
	if categoryID, err := r.repo.ResolveCategoryID(ctx, best.CategoryRaw); err == nil {
		c.CategoryID = categoryID
	} else if !errors.Is(err, repository.ErrNotFound) {
		r.logger.Warn("job: resolve category id", "category_raw", best.CategoryRaw, "error", err)
	}

	return c.Truncated()
}

// scoreQuality runs the QualityScorer over a just-built/updated
// canonical and folds the verdict back into it.
func scoreQuality(c model.Canonical, listings []model.RawListing) model.Canonical {
	members := make([]quality.Member, len(listings))
	for i, l := range listings {
		members[i] = quality.Member{Listing: l, Code: extract.Extract(l.Name)}
	}
	result := quality.Score(c, members, c.SourceCount)
	c.QualityScore = result.Score
	c.QualityIssues = result.Issues
	c.NeedsReview = result.NeedsReview
	return c
}

// mappingMethod picks the MatchingMethod recorded for a newly-created
// canonical's mappings: code_extract when the cluster agreed on both
// brand and model, ml_classifier otherwise.
func mappingMethod(code model.ExtractedCode) model.MatchingMethod {
	if code.Brand != "" && code.Model != "" {
		return model.MethodCodeExtract
	}
	return model.MethodMLClassifier
}

// unionWithExistingMembers fetches the raw listings already mapped to
// an existing canonical and unions them (deduped by ID) with a cluster's
// new listings, so aggregates recompute over the full member set rather
// than drifting with each incremental update.
func (r *Runner) unionWithExistingMembers(ctx context.Context, canonicalID string, listings []model.RawListing) ([]model.RawListing, error) {
	mappings, err := r.repo.GetMappingsForCanonical(ctx, canonicalID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(listings))
	out := make([]model.RawListing, 0, len(listings)+len(mappings))
	for _, l := range listings {
		seen[l.ID] = struct{}{}
		out = append(out, l)
	}
	for _, m := range mappings {
		if _, ok := seen[m.RawID]; ok {
			continue
		}
		l, err := r.repo.GetRawListing(ctx, m.RawID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				continue
			}
			return nil, err
		}
		seen[m.RawID] = struct{}{}
		out = append(out, l)
	}
	return out, nil
}

// canonicalSlug derives the slug a cluster's canonical keys on: the
// extracted code when it is specific enough to identify a product (a
// model or storage size, not just a brand word), else a dashed prefix of
// the representative's normalized name. A bare-brand or empty code would
// collapse every "sony"-only listing onto one slug, merging products the
// clusterer deliberately kept apart.
func canonicalSlug(best model.RawListing, code model.ExtractedCode) string {
	if codeIsSpecific(code) {
		return extract.ToCanonicalCode(code)
	}
	if named := strings.ReplaceAll(normalize.Prefix(best.NameNormalized, 60), " ", "-"); named != "" {
		return named
	}
	return "unknown-" + best.ID
}

// codeIsSpecific reports whether an extracted code pins down a concrete
// product rather than just a brand.
func codeIsSpecific(code model.ExtractedCode) bool {
	return code.Model != "" || code.ModelNumber != "" || code.StorageGB > 0
}

// findExistingCanonical looks for a canonical this cluster should merge
// into: first an exact slug match, then a name-prefix search scored by
// CodeExtractor.Compare.
func (r *Runner) findExistingCanonical(ctx context.Context, listings []model.RawListing) (model.Canonical, bool, error) {
	best := pickBest(listings)
	code := extract.Extract(best.Name)

	if c, err := r.repo.FindCanonicalBySlug(ctx, canonicalSlug(best, code)); err == nil {
		return c, true, nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return model.Canonical{}, false, err
	}

	// The Compare fallback only carries weight when the code has a model
	// or storage to agree on; on a bare brand it reports a vacuous 1.0.
	if !codeIsSpecific(code) {
		return model.Canonical{}, false, nil
	}

	prefix := normalize.Prefix(best.NameNormalized, 30)
	candidates, err := r.repo.SearchCanonicalsByNamePrefix(ctx, prefix, 20)
	if err != nil {
		return model.Canonical{}, false, err
	}
	for _, cand := range candidates {
		candCode := extract.Extract(cand.Name)
		if extract.Compare(code, candCode) >= 0.80 {
			return cand, true, nil
		}
	}
	return model.Canonical{}, false, nil
}
