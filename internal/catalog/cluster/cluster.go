// Package cluster implements the Clusterer: deterministic greedy
// single-link clustering of listings within one primary-block bucket.
package cluster

import (
	"sort"

	"github.com/vncatalog/dedup-engine/internal/catalog/extract"
	"github.com/vncatalog/dedup-engine/internal/catalog/model"
	"github.com/vncatalog/dedup-engine/internal/catalog/scoring"
)

// Member is one clustered listing together with its precomputed
// embedding and category group, so the caller only embeds once per
// batch. Run extracts each member's code itself.
type Member struct {
	Listing       model.RawListing
	Embedding     []float32
	CategoryGroup string
}

// Cluster is one greedy single-link group, in the order listings were
// added (representative-selection order is the caller's concern).
type Cluster struct {
	Members []Member
}

// Run clusters members at threshold tau using greedy single-link: for
// each unvisited listing p, open a cluster, then walk the remaining
// unvisited listings and fold in any q scoring >= tau against p. Members
// are traversed in the fixed order (brand_raw, name_normalized,
// source_id, external_id) for determinism.
func Run(members []Member, tau float64, weights scoring.Weights) []Cluster {
	ordered := make([]Member, len(members))
	copy(ordered, members)
	sort.Slice(ordered, func(i, j int) bool {
		a, b := ordered[i].Listing, ordered[j].Listing
		if a.BrandRaw != b.BrandRaw {
			return a.BrandRaw < b.BrandRaw
		}
		if a.NameNormalized != b.NameNormalized {
			return a.NameNormalized < b.NameNormalized
		}
		if a.SourceID != b.SourceID {
			return a.SourceID < b.SourceID
		}
		return a.ExternalID < b.ExternalID
	})

	codes := make([]model.ExtractedCode, len(ordered))
	for i, m := range ordered {
		codes[i] = extract.Extract(m.Listing.Name)
	}

	visited := make([]bool, len(ordered))
	var clusters []Cluster

	for i := range ordered {
		if visited[i] {
			continue
		}
		visited[i] = true
		c := Cluster{Members: []Member{ordered[i]}}

		p := scoring.Pair{
			Listing:       ordered[i].Listing,
			Code:          codes[i],
			Embedding:     ordered[i].Embedding,
			CategoryGroup: ordered[i].CategoryGroup,
		}

		for j := i + 1; j < len(ordered); j++ {
			if visited[j] {
				continue
			}
			q := scoring.Pair{
				Listing:       ordered[j].Listing,
				Code:          codes[j],
				Embedding:     ordered[j].Embedding,
				CategoryGroup: ordered[j].CategoryGroup,
			}
			result := scoring.Score(p, q, weights)
			if result.Score >= tau {
				visited[j] = true
				c.Members = append(c.Members, ordered[j])
			}
		}

		clusters = append(clusters, c)
	}

	return clusters
}
