// Package variant implements the VariantSplitter: deciding whether a
// cluster fans out into spec-specific variants (storage/ram/color) and
// picking the cluster's main product.
package variant

import (
	"fmt"
	"sort"

	"github.com/vncatalog/dedup-engine/internal/catalog/extract"
	"github.com/vncatalog/dedup-engine/internal/catalog/model"
)

// Member is one clustered listing as seen by the splitter.
type Member struct {
	Listing model.RawListing
}

// Split computes each member's variant key and groups members that
// share one. IsVariantGroup reports whether the cluster has >= 2
// distinct keys.
type Split struct {
	IsVariantGroup bool
	Variants       []model.Variant
	Main           model.RawListing
}

const baseKey = "base"

// Key derives the "storage|ram|color" key from an ExtractedCode, with
// "base" standing in for each absent field ("128gb|base|blue"). A code
// with none of the three present keys to plain "base".
func Key(code model.ExtractedCode) string {
	storage, ram, color := baseKey, baseKey, baseKey
	if code.StorageGB > 0 {
		storage = fmt.Sprintf("%dgb", code.StorageGB)
	}
	if code.RAMGB > 0 {
		ram = fmt.Sprintf("%dgb", code.RAMGB)
	}
	if code.Color != "" {
		color = code.Color
	}
	if storage == baseKey && ram == baseKey && color == baseKey {
		return baseKey
	}
	return storage + "|" + ram + "|" + color
}

// Run splits a cluster of listings into variant rows, if warranted, and
// selects the cluster-wide main product.
func Run(members []Member, canonicalID string) Split {
	byKey := make(map[string][]Member)
	for _, m := range members {
		code := extract.Extract(m.Listing.Name)
		k := Key(code)
		byKey[k] = append(byKey[k], m)
	}

	main := members[0].Listing
	for _, m := range members[1:] {
		if betterMain(m.Listing, main) {
			main = m.Listing
		}
	}

	if len(byKey) < 2 {
		return Split{IsVariantGroup: false, Main: main}
	}

	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	variants := make([]model.Variant, 0, len(keys))
	for _, k := range keys {
		group := byKey[k]
		v := model.Variant{
			CanonicalID: canonicalID,
			VariantKey:  k,
		}
		if k != baseKey {
			code := extract.Extract(group[0].Listing.Name)
			if code.StorageGB > 0 {
				v.Storage = fmt.Sprintf("%dGB", code.StorageGB)
			}
			if code.RAMGB > 0 {
				v.RAM = fmt.Sprintf("%dGB", code.RAMGB)
			}
			v.Color = code.Color
		}

		min, max := group[0].Listing.Price, group[0].Listing.Price
		for _, g := range group {
			v.RawIDs = append(v.RawIDs, g.Listing.ID)
			if g.Listing.Price > 0 && (min <= 0 || g.Listing.Price < min) {
				min = g.Listing.Price
			}
			if g.Listing.Price > max {
				max = g.Listing.Price
			}
		}
		v.MinPrice = min
		v.MaxPrice = max

		variants = append(variants, v)
	}

	return Split{IsVariantGroup: true, Variants: variants, Main: main}
}

// betterMain implements the main-product ordering: best across the
// whole cluster by (review_count, rating, available).
func betterMain(candidate, current model.RawListing) bool {
	if candidate.ReviewCount != current.ReviewCount {
		return candidate.ReviewCount > current.ReviewCount
	}
	if candidate.Rating != current.Rating {
		return candidate.Rating > current.Rating
	}
	return candidate.Available && !current.Available
}
