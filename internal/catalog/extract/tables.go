// Package extract parses brand, model, storage, RAM, color, year, variant
// tags and product-type out of a raw product name. The alias and
// pattern tables below are compiled once at package init, per the design
// note that regex-heavy lookups belong in a single data file.
package extract

import (
	"regexp"
	"sort"
)

// brandAlias maps a lowercase keyword found in a name to a canonical brand
// id. Lookups scan brandKeywords in sorted order and keep the longest
// keyword match.
var brandAlias = map[string]string{
	"iphone":   "apple",
	"ipad":     "apple",
	"macbook":  "apple",
	"airpods":  "apple",
	"imac":     "apple",
	"apple":    "apple",
	"galaxy":   "samsung",
	"samsung":  "samsung",
	"redmi":    "xiaomi",
	"poco":     "xiaomi",
	"mi ":      "xiaomi",
	"xiaomi":   "xiaomi",
	"honor":    "huawei",
	"huawei":   "huawei",
	"oppo":     "oppo",
	"reno":     "oppo",
	"vivo":     "vivo",
	"oneplus":  "oneplus",
	"pixel":    "google",
	"google":   "google",
	"asus":     "asus",
	"lenovo":   "lenovo",
	"dell":     "dell",
	"hp":       "hp",
	"acer":     "acer",
	"sony":     "sony",
	"lg":       "lg",
	"nokia":    "nokia",
	"realme":   "realme",
}

// modelPatterns are regex families per brand line. Each captures the
// full model substring; normalization folds whitespace/punctuation
// separately.
var modelPatterns = map[string][]*regexp.Regexp{
	"apple": {
		regexp.MustCompile(`(?i)iphone\s*(\d{1,2})\s*(pro\s*max|promax|pro|plus|mini)?`),
		regexp.MustCompile(`(?i)ipad\s*(pro|air|mini)?\s*(\d{1,2})?`),
		regexp.MustCompile(`(?i)macbook\s*(air|pro)?\s*(\d{1,2})?`),
	},
	"samsung": {
		regexp.MustCompile(`(?i)galaxy\s*(s|a|m|z|note)\s*(\d{1,3})\s*(ultra|plus|fe|5g|fold|flip)?`),
	},
	"xiaomi": {
		regexp.MustCompile(`(?i)(redmi|poco|mi)\s*(note)?\s*(\d{1,2})\s*(pro|ultra|lite)?`),
	},
	"oppo": {
		regexp.MustCompile(`(?i)(reno|find\s*x)\s*(\d{1,2})?\s*(pro|plus)?`),
	},
	"vivo": {
		regexp.MustCompile(`(?i)(y|x|v)\s*(\d{1,3})\s*(pro|plus)?`),
	},
	"oneplus": {
		regexp.MustCompile(`(?i)oneplus\s*(\d{1,2})\s*(pro|t|r)?`),
	},
	"google": {
		regexp.MustCompile(`(?i)pixel\s*(\d{1,2})\s*(pro|a|xl)?`),
	},
}

// storagePatterns: NN-NNNN GB, or N TB (TB normalized to GB by caller).
var (
	storageGBPattern = regexp.MustCompile(`(?i)(\d{2,4})\s*gb`)
	storageTBPattern = regexp.MustCompile(`(?i)(\d)\s*tb`)
)

// ramPatterns: explicit "NGB RAM", "RAM NGB", or the dual-memory "NGB/MMGB"
// form where the smaller value is RAM.
var (
	ramExplicitPattern = regexp.MustCompile(`(?i)(\d{1,3})\s*gb\s*ram`)
	ramPrefixPattern   = regexp.MustCompile(`(?i)ram\s*(\d{1,3})\s*gb`)
	dualMemoryPattern  = regexp.MustCompile(`(?i)(\d{1,3})\s*gb\s*/\s*(\d{2,4})\s*gb`)
)

var yearPattern = regexp.MustCompile(`\b(20[12]\d)\b`)

// colorSynonyms maps Vietnamese/English color words to a canonical label.
var colorSynonyms = map[string]string{
	"đen": "black", "black": "black", "midnight": "black", "graphite": "black",
	"trắng": "white", "white": "white", "silver": "silver", "bạc": "silver", "starlight": "white",
	"xanh": "blue", "blue": "blue", "xanh dương": "blue", "navy": "blue",
	"xanh lá": "green", "green": "green",
	"đỏ": "red", "red": "red",
	"vàng": "gold", "gold": "gold", "champagne": "gold",
	"tím": "purple", "purple": "purple",
	"hồng": "pink", "pink": "pink", "rose": "pink",
	"cam": "orange", "orange": "orange",
	"xám": "gray", "gray": "gray", "grey": "gray",
}

// brandKeywords and colorKeywords fix the scan order over their alias
// maps so longest-match ties resolve the same way on every run.
var (
	brandKeywords = sortedKeys(brandAlias)
	colorKeywords = sortedKeys(colorSynonyms)
)

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// accessoryKeywords are checked before deviceKeywords: a mixed brand+bare
// accessory noun classifies as accessory.
var accessoryKeywords = []string{
	"ốp", "case", "kính cường lực", "sạc", "adapter", "cáp", "ốp lưng",
	"đế", "stand", "chuột", "bàn phím", "tai nghe", "airpods", "buds",
	"dán màn hình", "cường lực", "dây đeo", "bao da",
}

var deviceKeywords = []string{
	"điện thoại", "smartphone", "laptop", "máy tính", "tablet", "iphone",
	"ipad", "macbook", "galaxy", "redmi", "poco", "xiaomi", "oppo", "vivo",
	"oneplus", "pixel", "tivi", "tv", "tủ lạnh", "máy giặt", "điều hòa",
}
