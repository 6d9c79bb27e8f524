package extract

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/vncatalog/dedup-engine/internal/catalog/model"
	"github.com/vncatalog/dedup-engine/internal/catalog/normalize"
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Extract parses an ExtractedCode out of a raw product name. Pure,
// deterministic: the same name always yields the same code.
func Extract(name string) model.ExtractedCode {
	lower := strings.ToLower(name)
	norm := normalize.Name(name)

	code := model.ExtractedCode{}
	code.Brand = detectBrand(lower)
	code.Model, code.ModelNumber = detectModel(lower, code.Brand)
	code.StorageGB = detectStorage(lower)
	code.RAMGB = detectRAM(lower, code.StorageGB)
	code.Color = detectColor(lower)
	code.Year = detectYear(lower)
	code.VariantTags = detectVariantTags(norm)
	code.Type = detectType(lower)
	code.Confidence = confidence(code)

	return code
}

func detectBrand(lower string) string {
	best := ""
	bestLen := 0
	for _, kw := range brandKeywords {
		if strings.Contains(lower, kw) && len(kw) > bestLen {
			best = brandAlias[kw]
			bestLen = len(kw)
		}
	}
	return best
}

func detectModel(lower, brand string) (modelStr, modelNumber string) {
	patterns, ok := modelPatterns[brand]
	if !ok {
		return "", ""
	}
	for _, re := range patterns {
		if m := re.FindString(lower); m != "" {
			modelStr = strings.Join(strings.Fields(m), " ")
			modelNumber = modelNumberFrom(modelStr)
			return modelStr, modelNumber
		}
	}
	return "", ""
}

// modelNumberFrom reduces a matched model string to its distinguishing
// tail: the leading line word goes ("iphone 15 pro max" and
// "galaxy s24 ultra" become "15promax" and "s24ultra"), so two lines
// that share a number but not a tier never compare equal.
func modelNumberFrom(modelStr string) string {
	toks := strings.Fields(modelStr)
	if len(toks) > 1 && !strings.ContainsAny(toks[0], "0123456789") {
		toks = toks[1:]
	}
	return strings.ReplaceAll(modelFold(strings.Join(toks, " ")), " ", "")
}

func detectStorage(lower string) int {
	if m := storageTBPattern.FindStringSubmatch(lower); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n * 1024
	}
	// Dual-memory form "8GB/256GB": the larger value is storage.
	if m := dualMemoryPattern.FindStringSubmatch(lower); m != nil {
		a, _ := strconv.Atoi(m[1])
		b, _ := strconv.Atoi(m[2])
		if b > a {
			return b
		}
		return a
	}
	if m := storageGBPattern.FindStringSubmatch(lower); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n
	}
	return 0
}

func detectRAM(lower string, storageGB int) int {
	if m := ramExplicitPattern.FindStringSubmatch(lower); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n
	}
	if m := ramPrefixPattern.FindStringSubmatch(lower); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n
	}
	if m := dualMemoryPattern.FindStringSubmatch(lower); m != nil {
		a, _ := strconv.Atoi(m[1])
		b, _ := strconv.Atoi(m[2])
		if a < b {
			return a
		}
		return b
	}
	return 0
}

func detectColor(lower string) string {
	best := ""
	bestLen := 0
	for _, kw := range colorKeywords {
		if strings.Contains(lower, kw) && len(kw) > bestLen {
			best = colorSynonyms[kw]
			bestLen = len(kw)
		}
	}
	return best
}

func detectYear(lower string) int {
	if m := yearPattern.FindStringSubmatch(lower); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n
	}
	return 0
}

func detectVariantTags(normalized string) []string {
	var tags []string
	for _, tag := range []string{"5g", "plus", "pro", "max", "ultra", "lite", "fe"} {
		for _, tok := range strings.Fields(normalized) {
			if tok == tag {
				tags = append(tags, tag)
				break
			}
		}
	}
	sort.Strings(tags)
	return tags
}

func detectType(lower string) model.ProductType {
	for _, kw := range accessoryKeywords {
		if strings.Contains(lower, kw) {
			return model.ProductTypeAccessory
		}
	}
	for _, kw := range deviceKeywords {
		if strings.Contains(lower, kw) {
			return model.ProductTypeDevice
		}
	}
	return model.ProductTypeUnknown
}

// confidence sums field-presence weights, clamped to 1.
func confidence(c model.ExtractedCode) float64 {
	var sum float64
	if c.Brand != "" {
		sum += 0.20
	}
	if c.Model != "" {
		sum += 0.25
	}
	if c.StorageGB > 0 {
		sum += 0.20
	}
	if c.RAMGB > 0 {
		sum += 0.10
	}
	if c.Color != "" {
		sum += 0.10
	}
	if len(c.VariantTags) > 0 {
		sum += 0.05
	}
	if c.Year > 0 {
		sum += 0.10
	}
	if sum > 1 {
		sum = 1
	}
	return sum
}

// modelFold canonicalizes whitespace and pro max <-> promax, plus <-> +.
func modelFold(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	s = strings.ReplaceAll(s, "pro max", "promax")
	s = strings.ReplaceAll(s, "plus", "+")
	return s
}

// ToCanonicalCode renders "brand-modelnumber-storage[-ramN]", falling back
// to "unknown" if no parts are present.
func ToCanonicalCode(c model.ExtractedCode) string {
	var parts []string
	if c.Brand != "" {
		parts = append(parts, nonAlnum.ReplaceAllString(c.Brand, ""))
	}
	if mn := modelFold(c.ModelNumber); mn != "" {
		parts = append(parts, nonAlnum.ReplaceAllString(mn, ""))
	}
	if c.StorageGB > 0 {
		parts = append(parts, strconv.Itoa(c.StorageGB))
	}
	if c.RAMGB > 0 {
		parts = append(parts, "ram"+strconv.Itoa(c.RAMGB))
	}
	if len(parts) == 0 {
		return "unknown"
	}
	return strings.Join(parts, "-")
}

// fieldWeight is the weight table Compare normalizes over.
var fieldWeight = map[string]float64{
	"brand":   0.20,
	"model":   0.35,
	"storage": 0.25,
	"ram":     0.10,
	"color":   0.10,
}

// Compare returns a weighted partial-match score over fields present in
// both codes, normalized by the total weight of present fields. Returns 0
// if one side is a device and the other an accessory.
func Compare(a, b model.ExtractedCode) float64 {
	if (a.Type == model.ProductTypeDevice && b.Type == model.ProductTypeAccessory) ||
		(a.Type == model.ProductTypeAccessory && b.Type == model.ProductTypeDevice) {
		return 0
	}

	var score, totalWeight float64

	if a.Brand != "" && b.Brand != "" {
		totalWeight += fieldWeight["brand"]
		if a.Brand == b.Brand {
			score += fieldWeight["brand"]
		}
	}
	if a.ModelNumber != "" && b.ModelNumber != "" {
		totalWeight += fieldWeight["model"]
		if modelFold(a.ModelNumber) == modelFold(b.ModelNumber) {
			score += fieldWeight["model"]
		}
	} else if a.Model != "" && b.Model != "" {
		totalWeight += fieldWeight["model"]
		if modelFold(a.Model) == modelFold(b.Model) {
			score += fieldWeight["model"]
		}
	}
	if a.StorageGB > 0 && b.StorageGB > 0 {
		totalWeight += fieldWeight["storage"]
		if a.StorageGB == b.StorageGB {
			score += fieldWeight["storage"]
		}
	}
	if a.RAMGB > 0 && b.RAMGB > 0 {
		totalWeight += fieldWeight["ram"]
		if a.RAMGB == b.RAMGB {
			score += fieldWeight["ram"]
		}
	}
	if a.Color != "" && b.Color != "" {
		totalWeight += fieldWeight["color"]
		if a.Color == b.Color {
			score += fieldWeight["color"]
		}
	}

	if totalWeight == 0 {
		return 0
	}
	return score / totalWeight
}
