// Package blocking computes the multi-level blocking keys that keep the
// pairwise-scoring stage tractable: only listings sharing a primary block
// key are ever compared.
package blocking

import (
	"fmt"
	"strings"

	"github.com/vncatalog/dedup-engine/internal/catalog/extract"
	"github.com/vncatalog/dedup-engine/internal/catalog/model"
	"github.com/vncatalog/dedup-engine/internal/catalog/normalize"
)

// Level identifies a blocking key's granularity.
type Level int

const (
	L1Brand Level = iota + 1
	L2BrandModel
	L3BrandStorage
	L4CategoryPriceBand
)

// Block is one generated blocking key for a listing.
type Block struct {
	Level Level
	Type  string
	Key   string
}

// PrimaryKey returns the listing's primary blocking key: "brand|model" if a
// model was extracted (with "promax" spelled "pro max", so both spellings
// share a block), else "brand|first-25-normalized-name-runes".
func PrimaryKey(l model.RawListing) string {
	code := extract.Extract(l.Name)
	brand := code.Brand
	if brand == "" {
		brand = normalize.Name(l.BrandRaw)
	}

	if code.Model != "" {
		return brand + "|" + strings.ReplaceAll(code.Model, "promax", "pro max")
	}
	return brand + "|" + normalize.Prefix(l.NameNormalized, 25)
}

// PriceBand buckets a price into budget/mid/premium/flagship/unknown,
// VND-denominated thresholds.
func PriceBand(price float64) string {
	switch {
	case price <= 0:
		return "unknown"
	case price < 3_000_000:
		return "budget"
	case price < 10_000_000:
		return "mid"
	case price < 25_000_000:
		return "premium"
	default:
		return "flagship"
	}
}

// GenerateBlocks emits up to four blocking keys for a listing: L1 brand,
// L2 brand+model, L3 brand+storage, L4 category+price-band.
func GenerateBlocks(l model.RawListing, categoryGroup string) []Block {
	code := extract.Extract(l.Name)
	brand := code.Brand
	if brand == "" {
		brand = normalize.Name(l.BrandRaw)
	}

	var blocks []Block
	if brand != "" {
		blocks = append(blocks, Block{Level: L1Brand, Type: "brand", Key: brand})
	}
	if brand != "" && code.Model != "" {
		blocks = append(blocks, Block{Level: L2BrandModel, Type: "brand_model", Key: fmt.Sprintf("%s|%s", brand, code.Model)})
	}
	if brand != "" && code.StorageGB > 0 {
		blocks = append(blocks, Block{Level: L3BrandStorage, Type: "brand_storage", Key: fmt.Sprintf("%s|%d", brand, code.StorageGB)})
	}
	if categoryGroup != "" {
		blocks = append(blocks, Block{Level: L4CategoryPriceBand, Type: "category_price", Key: fmt.Sprintf("%s|%s", categoryGroup, PriceBand(l.Price))})
	}

	return blocks
}

// Index groups listings by their primary blocking key. It is a per-batch,
// not-shared grouping device: pairs are only ever compared within the
// same bucket.
type Index struct {
	buckets map[string][]model.RawListing
}

// New builds an Index over the given listings, keyed by PrimaryKey.
func New(listings []model.RawListing) *Index {
	idx := &Index{buckets: make(map[string][]model.RawListing)}
	for _, l := range listings {
		key := PrimaryKey(l)
		idx.buckets[key] = append(idx.buckets[key], l)
	}
	return idx
}

// Buckets returns all non-empty buckets, keyed by primary block key.
func (idx *Index) Buckets() map[string][]model.RawListing {
	return idx.buckets
}

// SharesBlock reports whether two listings share a block at level >= L:
// true iff any pair of generated keys at level >= L match.
func SharesBlock(a, b []Block, minLevel Level) bool {
	for _, ba := range a {
		if ba.Level < minLevel {
			continue
		}
		for _, bb := range b {
			if bb.Level < minLevel {
				continue
			}
			if ba.Type == bb.Type && ba.Key == bb.Key {
				return true
			}
		}
	}
	return false
}
