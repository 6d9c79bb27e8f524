// Package collapse implements IntraSourceCollapser: merging duplicate
// observations of the same listing within a single source before
// cross-source clustering ever sees them.
package collapse

import (
	"math"
	"sort"

	"github.com/vncatalog/dedup-engine/internal/catalog/model"
	"github.com/vncatalog/dedup-engine/internal/catalog/strmatch"
)

// Thresholds tunes the near-duplicate name/price predicate.
type Thresholds struct {
	NameSimNear float64 // name similarity that, with an equal price, marks a duplicate
	NameSimHigh float64 // name similarity that marks a duplicate on its own terms
	PriceTol    float64 // relative price tolerance paired with NameSimHigh
}

// DefaultThresholds returns the production tuning.
func DefaultThresholds() Thresholds {
	return Thresholds{NameSimNear: 0.90, NameSimHigh: 0.95, PriceTol: 0.02}
}

// Result is one collapsed representative plus the duplicates it absorbed.
type Result struct {
	Representative   model.RawListing
	DuplicateCount   int
	DuplicateIDs     []string
	DuplicateShopIDs []string
}

// Collapse partitions listings by SourceID and single-link-clusters
// duplicates within each partition per the isDuplicate predicate, at the
// default thresholds.
func Collapse(listings []model.RawListing) []Result {
	return CollapseWith(listings, DefaultThresholds())
}

// CollapseWith is Collapse with explicit thresholds.
func CollapseWith(listings []model.RawListing, th Thresholds) []Result {
	bySource := make(map[string][]model.RawListing)
	for _, l := range listings {
		bySource[l.SourceID] = append(bySource[l.SourceID], l)
	}

	var out []Result
	sources := make([]string, 0, len(bySource))
	for s := range bySource {
		sources = append(sources, s)
	}
	sort.Strings(sources)

	for _, src := range sources {
		out = append(out, collapseSource(bySource[src], th)...)
	}
	return out
}

func collapseSource(listings []model.RawListing, th Thresholds) []Result {
	sort.Slice(listings, func(i, j int) bool {
		if listings[i].ExternalID != listings[j].ExternalID {
			return listings[i].ExternalID < listings[j].ExternalID
		}
		return listings[i].NameNormalized < listings[j].NameNormalized
	})

	visited := make([]bool, len(listings))
	var results []Result

	for i := range listings {
		if visited[i] {
			continue
		}
		visited[i] = true
		cluster := []model.RawListing{listings[i]}

		for j := i + 1; j < len(listings); j++ {
			if visited[j] {
				continue
			}
			if isDuplicate(listings[i], listings[j], th) {
				visited[j] = true
				cluster = append(cluster, listings[j])
			}
		}

		results = append(results, buildResult(cluster))
	}

	return results
}

// isDuplicate decides identity-duplication within a source (source_id already
// guaranteed equal by the caller's partitioning).
func isDuplicate(a, b model.RawListing, th Thresholds) bool {
	if a.ExternalID != "" && a.ExternalID == b.ExternalID {
		return true
	}
	if a.ExternalURL != "" && a.ExternalURL == b.ExternalURL {
		return true
	}

	// The remaining predicates all need name similarity above 0.9, so the
	// cheap prefilter can reject before the full five-signal blend runs.
	if !strmatch.QuickCheck(a.NameNormalized, b.NameNormalized, 0.3) {
		return false
	}
	sim := strmatch.Combined(a.NameNormalized, b.NameNormalized, strmatch.DefaultWeights())

	if a.Price == b.Price && sim > th.NameSimNear {
		return true
	}
	if sim > th.NameSimHigh {
		if a.Price <= 0 || b.Price <= 0 {
			return true
		}
		max := a.Price
		if b.Price > max {
			max = b.Price
		}
		delta := math.Abs(a.Price - b.Price)
		if delta/max < th.PriceTol {
			return true
		}
	}
	return false
}

// buildResult picks the representative (max rating, tie-break
// review_count, tie-break available) and tallies duplicates.
func buildResult(cluster []model.RawListing) Result {
	best := cluster[0]
	for _, c := range cluster[1:] {
		if better(c, best) {
			best = c
		}
	}

	var dupIDs, dupShops []string
	for _, c := range cluster {
		if c.ID == best.ID {
			continue
		}
		dupIDs = append(dupIDs, c.ID)
		if c.ShopID != "" {
			dupShops = append(dupShops, c.ShopID)
		}
	}

	return Result{
		Representative:   best,
		DuplicateCount:   len(cluster) - 1,
		DuplicateIDs:     dupIDs,
		DuplicateShopIDs: dupShops,
	}
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
