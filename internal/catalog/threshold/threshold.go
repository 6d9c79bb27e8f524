// Package threshold implements the ThresholdOracle: pure, runtime-mutable
// clustering-threshold lookups by category and source pair.
package threshold

import (
	"sort"
	"strings"
	"sync/atomic"

	"github.com/vncatalog/dedup-engine/internal/catalog/normalize"
)

const defaultThreshold = 0.75

var categoryDefaults = map[string]float64{
	"phone":      0.80,
	"laptop":     0.78,
	"tablet":     0.78,
	"audio":      0.72,
	"watch":      0.75,
	"tv":         0.80,
	"appliance":  0.82,
}

var sourcePairDefaults = map[string]float64{
	pairKey("tiki", "shopee"):            0.72,
	pairKey("tiki", "lazada"):            0.70,
	pairKey("shopee", "lazada"):          0.68,
	pairKey("cellphones", "dienmayxanh"): 0.78,
}

// categorySynonyms collapses Vietnamese/English category spellings onto
// the canonical group keys used by categoryDefaults.
var categorySynonyms = map[string]string{
	"điện thoại":  "phone",
	"dien thoai":  "phone",
	"smartphone":  "phone",
	"phone":       "phone",
	"laptop":      "laptop",
	"máy tính":    "laptop",
	"may tinh":    "laptop",
	"tablet":      "tablet",
	"máy tính bảng": "tablet",
	"tai nghe":    "audio",
	"loa":         "audio",
	"audio":       "audio",
	"đồng hồ":     "watch",
	"dong ho":     "watch",
	"watch":       "watch",
	"tivi":        "tv",
	"tv":          "tv",
	"gia dụng":    "appliance",
	"gia dung":    "appliance",
	"appliance":   "appliance",
}

// pairKey normalizes an unordered source pair into a stable lookup key.
func pairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

// synonymKeys fixes the scan order for the containment fallback below,
// longest first so "máy tính bảng" wins over "máy tính".
var synonymKeys = func() []string {
	keys := make([]string, 0, len(categorySynonyms))
	for k := range categorySynonyms {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}()

// NormalizeCategory folds a raw category string to one of the oracle's
// canonical group keys, or "" if unrecognized. Exact match on the
// normalized form first, then the longest synonym contained in it, then
// the same two steps again with diacritics stripped so accent-drifted
// crawler output ("dien thoai") still resolves.
func NormalizeCategory(raw string) string {
	n := normalize.Name(raw)
	if n == "" {
		return ""
	}
	if g := lookupSynonym(n); g != "" {
		return g
	}
	if folded := normalize.StripDiacritics(n); folded != n {
		return lookupSynonym(folded)
	}
	return ""
}

func lookupSynonym(n string) string {
	if g, ok := categorySynonyms[n]; ok {
		return g
	}
	for _, k := range synonymKeys {
		if strings.Contains(n, k) {
			return categorySynonyms[k]
		}
	}
	return ""
}

// Oracle is a pure threshold lookup with a copy-on-write runtime
// override map: Set swaps the whole table, so readers always observe a
// consistent snapshot.
type Oracle struct {
	overrides atomic.Pointer[map[string]float64]
}

// New builds an Oracle with no runtime overrides; lookups fall back to
// the built-in category/source-pair/default tables.
func New() *Oracle {
	o := &Oracle{}
	empty := map[string]float64{}
	o.overrides.Store(&empty)
	return o
}

// SetOverride installs a runtime override, keyed either by a normalized
// category group or a pairKey(source1, source2) string. Copy-on-write:
// builds a new map and atomically swaps it in.
func (o *Oracle) SetOverride(key string, value float64) {
	old := *o.overrides.Load()
	next := make(map[string]float64, len(old)+1)
	for k, v := range old {
		next[k] = v
	}
	next[key] = value
	o.overrides.Store(&next)
}

// Lookup resolves a threshold: source-pair override/default, then
// category override/default, then the global default.
func (o *Oracle) Lookup(sourceA, sourceB, category string) float64 {
	overrides := *o.overrides.Load()
	pk := pairKey(sourceA, sourceB)

	if v, ok := overrides[pk]; ok {
		return v
	}
	if v, ok := sourcePairDefaults[pk]; ok {
		return v
	}

	group := NormalizeCategory(category)
	if group != "" {
		if v, ok := overrides[group]; ok {
			return v
		}
		if v, ok := categoryDefaults[group]; ok {
			return v
		}
	}

	if v, ok := overrides["default"]; ok {
		return v
	}
	return defaultThreshold
}
