// Package scoring implements the PairScorer: the weighted, multi-signal
// comparison between two raw listings that the clusterer and
// cross-source linker both drive off of.
package scoring

import (
	"strings"

	"github.com/vncatalog/dedup-engine/internal/catalog/extract"
	"github.com/vncatalog/dedup-engine/internal/catalog/model"
	"github.com/vncatalog/dedup-engine/internal/catalog/normalize"
	"github.com/vncatalog/dedup-engine/internal/catalog/strmatch"
	"github.com/vncatalog/dedup-engine/internal/catalog/vectorize"
)

// Confidence levels a Result is reported at.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Weights are the PairScorer's per-feature weights. The combined score
// normalizes by their sum, so only the ratios matter; rating carries
// weight 0 but is still reported.
type Weights struct {
	Name     float64
	Semantic float64
	Brand    float64
	Code     float64
	Price    float64
	Specs    float64
	Category float64
	Rating   float64
}

// DefaultWeights is the hand-tuned feature weighting. The declared
// values sum to 1.05; weightedSum divides by the total, so the blend is
// a true convex combination and the score stays in [0,1].
func DefaultWeights() Weights {
	return Weights{
		Name:     0.25,
		Semantic: 0.20,
		Brand:    0.10,
		Code:     0.25,
		Price:    0.15,
		Specs:    0.05,
		Category: 0.05,
		Rating:   0,
	}
}

// Features is the full set of [0,1] per-signal scores a comparison
// produces, reported alongside the weighted result.
type Features struct {
	NameString float64
	Semantic   float64
	Brand      float64
	Code       float64
	Price      float64
	Specs      float64
	Category   float64
	Rating     float64
}

// Result is a PairScorer verdict.
type Result struct {
	Score      float64
	Method     model.MatchingMethod
	Confidence Confidence
	Features   Features
}

// Pair bundles everything PairScorer needs about one side of a
// comparison. Embedding may be nil when the Vectorizer had no vector for
// this listing.
type Pair struct {
	Listing       model.RawListing
	Code          model.ExtractedCode
	Embedding     []float32
	CategoryGroup string // "" if category unresolved
}

// Score compares two listings and returns a full PairScorer verdict.
// Both Pair.Code values should come from extract.Extract on the
// listing's name; callers compute them once and pass them in so batch
// scoring doesn't repeat the extraction.
func Score(a, b Pair, w Weights) Result {
	f := Features{
		NameString: strmatch.Combined(a.Listing.NameNormalized, b.Listing.NameNormalized, strmatch.DefaultWeights()),
		Semantic:   vectorize.CosineSimilarity(a.Embedding, b.Embedding),
		Brand:      brandScore(a.Listing.BrandRaw, b.Listing.BrandRaw, a.Code.Brand, b.Code.Brand),
		Code:       extract.Compare(a.Code, b.Code),
		Price:      priceScore(a.Listing.Price, b.Listing.Price),
		Specs:      specsScore(a.Listing.Specs, b.Listing.Specs),
		Category:   categoryScore(a.Listing.CategoryRaw, b.Listing.CategoryRaw, a.CategoryGroup, b.CategoryGroup),
		Rating:     ratingScore(a.Listing.Rating, b.Listing.Rating),
	}

	// Hard gates: evaluated before weighting, short-circuit the
	// rest of the pipeline.
	if (a.Code.Type == model.ProductTypeDevice && b.Code.Type == model.ProductTypeAccessory) ||
		(a.Code.Type == model.ProductTypeAccessory && b.Code.Type == model.ProductTypeDevice) {
		return Result{Score: 0.1, Method: model.MethodNoMatch, Confidence: ConfidenceHigh, Features: f}
	}
	if a.CategoryGroup != "" && b.CategoryGroup != "" && a.CategoryGroup != b.CategoryGroup {
		return Result{Score: 0.1, Method: model.MethodNoMatch, Confidence: ConfidenceHigh, Features: f}
	}
	if f.Price == 0 && a.Listing.Price > 0 && b.Listing.Price > 0 {
		return Result{Score: 0.2, Method: model.MethodNoMatch, Confidence: ConfidenceHigh, Features: f}
	}

	s := weightedSum(f, w)

	switch {
	case f.Code == 1 && f.Brand == 1 && f.Price > 0.8:
		return Result{Score: max(s, 0.98), Method: model.MethodCodeExtract, Confidence: ConfidenceHigh, Features: f}
	case f.Brand == 1 && (f.NameString >= 0.85 || f.Semantic >= 0.96):
		return Result{Score: max(s, 0.90), Method: model.MethodExactMatch, Confidence: ConfidenceHigh, Features: f}
	case f.Code >= 0.8 && f.Price > 0.7:
		return Result{Score: max(s, 0.85), Method: model.MethodCodeExtract, Confidence: ConfidenceHigh, Features: f}
	case s > 0.75:
		return Result{Score: s, Method: model.MethodMLClassifier, Confidence: ConfidenceHigh, Features: f}
	case s > 0.65:
		return Result{Score: s, Method: model.MethodHighSimilarity, Confidence: ConfidenceMedium, Features: f}
	case s > 0.50:
		return Result{Score: s, Method: model.MethodModerateSimilarity, Confidence: ConfidenceLow, Features: f}
	default:
		return Result{Score: s, Method: model.MethodNoMatch, Confidence: ConfidenceLow, Features: f}
	}
}

// weightedSum normalizes by the weight total, the same idiom
// strmatch.Combined uses, so the result is bounded by the largest
// feature value regardless of what the weights add up to.
func weightedSum(f Features, w Weights) float64 {
	total := w.Name + w.Semantic + w.Brand + w.Code + w.Price + w.Specs + w.Category + w.Rating
	if total <= 0 {
		return 0
	}
	score := w.Name*f.NameString +
		w.Semantic*f.Semantic +
		w.Brand*f.Brand +
		w.Code*f.Code +
		w.Price*f.Price +
		w.Specs*f.Specs +
		w.Category*f.Category +
		w.Rating*f.Rating
	return score / total
}

func max(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// brandScore prefers the extracted canonical brand when both sides have
// one (exact alias-normalized match); falls back to raw-string
// comparison otherwise.
func brandScore(rawA, rawB, codeA, codeB string) float64 {
	if codeA != "" && codeB != "" {
		if codeA == codeB {
			return 1
		}
		return 0
	}
	na, nb := normalize.Name(rawA), normalize.Name(rawB)
	switch {
	case na == "" && nb == "":
		return 0.5
	case na == "" || nb == "":
		return 0.5
	case na == nb:
		return 1
	case contains(na, nb) || contains(nb, na):
		return 0.8
	default:
		return 0
	}
}

func contains(haystack, needle string) bool {
	return needle != "" && strings.Contains(haystack, needle)
}

// priceScore buckets the relative price gap into five tiers,
// returning 0 past a 30% gap (one of the hard-gate triggers).
func priceScore(a, b float64) float64 {
	if a <= 0 || b <= 0 {
		return 0.5
	}
	max := a
	if b > max {
		max = b
	}
	delta := a - b
	if delta < 0 {
		delta = -delta
	}
	ratio := delta / max

	switch {
	case ratio <= 0.02:
		return 1
	case ratio <= 0.05:
		return 0.95
	case ratio <= 0.10:
		return 0.85
	case ratio <= 0.20:
		return 0.70
	case ratio <= 0.30:
		return 0.50
	default:
		return 0
	}
}

// specsScore compares shared spec keys key-by-key: exact match scores 1,
// edit-similarity ≥0.8 scores 0.8, else 0; averaged over shared keys. 0.5
// when either side has no specs at all.
func specsScore(a, b map[string]string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0.5
	}

	var total float64
	var n int
	for k, va := range a {
		vb, ok := b[k]
		if !ok {
			continue
		}
		n++
		na, nb := normalize.Name(va), normalize.Name(vb)
		switch {
		case na == nb:
			total += 1
		case strmatch.LevenshteinSimilarity(na, nb) >= 0.8:
			total += 0.8
		default:
			total += 0
		}
	}
	if n == 0 {
		return 0.5
	}
	return total / float64(n)
}

// categoryScore compares raw category strings, falling back to the
// resolved coarse group.
func categoryScore(rawA, rawB, groupA, groupB string) float64 {
	na, nb := normalize.Name(rawA), normalize.Name(rawB)
	switch {
	case na == "" && nb == "":
	case na == nb && na != "":
		return 1
	case (contains(na, nb) && nb != "") || (contains(nb, na) && na != ""):
		return 0.9
	}

	switch {
	case groupA != "" && groupB != "" && groupA == groupB:
		return 1
	case groupA != "" && groupB != "" && groupA != groupB:
		return 0
	default:
		return 0.5
	}
}

// ratingScore reports a [0,1] rating-closeness feature even though its
// final-score weight is 0, so callers can log or inspect it.
func ratingScore(a, b float64) float64 {
	if a <= 0 || b <= 0 {
		return 0.5
	}
	delta := a - b
	if delta < 0 {
		delta = -delta
	}
	score := 1 - delta/5
	if score < 0 {
		return 0
	}
	return score
}
