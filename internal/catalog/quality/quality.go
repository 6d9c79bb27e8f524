// Package quality implements the QualityScorer: the 100-point deduction
// rubric run over a finished cluster/canonical to flag weak
// consolidations for review.
package quality

import (
	"fmt"
	"math"
	"unicode"

	"github.com/vncatalog/dedup-engine/internal/catalog/model"
)

// Label is the human-readable confidence bucket for a score.
type Label string

const (
	LabelExcellent Label = "excellent"
	LabelGood      Label = "good"
	LabelFair      Label = "fair"
	LabelPoor      Label = "poor"
)

// Member is one raw listing folded into the canonical under scoring,
// together with its extracted code (for spec-consistency and name
// quality).
type Member struct {
	Listing model.RawListing
	Code    model.ExtractedCode
}

// Result is the QualityScorer's verdict.
type Result struct {
	Score       float64
	Label       Label
	Issues      []string
	NeedsReview bool
}

// Score evaluates a candidate canonical against its cluster members and
// returns the deduction-rubric verdict.
func Score(c model.Canonical, members []Member, sourceCount int) Result {
	score := 100.0
	var issues []string

	score, issues = sourceCoverage(score, issues, sourceCount)
	score, issues = priceVariance(score, issues, members)
	score, issues = specConsistency(score, issues, members)
	score, issues = reviewVolume(score, issues, c.TotalReviews)
	score, issues = availability(score, issues, members)
	score, issues = completeness(score, issues, c)
	score, issues = ratingConfidence(score, issues, c.TotalReviews)
	score, issues = nameQuality(score, issues, c.Name, members)

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	return Result{
		Score:       score,
		Label:       label(score),
		Issues:      issues,
		NeedsReview: score < 60 || len(issues) > 2,
	}
}

func label(score float64) Label {
	switch {
	case score >= 85:
		return LabelExcellent
	case score >= 70:
		return LabelGood
	case score >= 50:
		return LabelFair
	default:
		return LabelPoor
	}
}

func sourceCoverage(score float64, issues []string, sourceCount int) (float64, []string) {
	if sourceCount >= 5 {
		return score, issues
	}
	deduction := 10.0 * float64(5-sourceCount) / 5.0
	score -= deduction
	if sourceCount <= 1 {
		issues = append(issues, "single source")
	}
	return score, issues
}

func priceVariance(score float64, issues []string, members []Member) (float64, []string) {
	var prices []float64
	for _, m := range members {
		if m.Listing.Price > 0 {
			prices = append(prices, m.Listing.Price)
		}
	}
	if len(prices) < 2 {
		return score, issues
	}

	mean := 0.0
	for _, p := range prices {
		mean += p
	}
	mean /= float64(len(prices))
	if mean == 0 {
		return score, issues
	}

	var variance float64
	for _, p := range prices {
		variance += (p - mean) * (p - mean)
	}
	variance /= float64(len(prices))
	cv := math.Sqrt(variance) / mean

	switch {
	case cv > 0.30:
		score -= 15
		issues = append(issues, "high price variance")
	case cv > 0.15:
		score -= 5
	}
	return score, issues
}

func specConsistency(score float64, issues []string, members []Member) (float64, []string) {
	if len(members) < 2 {
		return score, issues
	}

	counts := make(map[string]int)
	for _, m := range members {
		key := fmt.Sprintf("%d|%d", m.Code.StorageGB, m.Code.RAMGB)
		counts[key]++
	}
	best := 0
	for _, n := range counts {
		if n > best {
			best = n
		}
	}
	consistency := float64(best) / float64(len(members))

	switch {
	case consistency < 0.70:
		score -= 15
		issues = append(issues, "inconsistent specifications")
	case consistency < 0.85:
		score -= 7
	}
	return score, issues
}

func reviewVolume(score float64, issues []string, totalReviews int) (float64, []string) {
	switch {
	case totalReviews < 5:
		score -= 10
	case totalReviews < 20:
		score -= 5
	}
	return score, issues
}

func availability(score float64, issues []string, members []Member) (float64, []string) {
	if len(members) == 0 {
		return score, issues
	}
	available := 0
	for _, m := range members {
		if m.Listing.Available {
			available++
		}
	}
	rate := float64(available) / float64(len(members))

	switch {
	case rate < 0.30:
		score -= 10
	case rate < 0.50:
		score -= 5
	}
	return score, issues
}

func completeness(score float64, issues []string, c model.Canonical) (float64, []string) {
	fields := []bool{
		c.Name != "",
		c.BrandID != "",
		c.CategoryID != "",
		c.Description != "",
		c.MinPrice > 0,
		c.MaxPrice > 0,
		c.AvgRating > 0,
		c.ImageURL != "",
	}
	present := 0
	for _, f := range fields {
		if f {
			present++
		}
	}
	ratio := float64(present) / float64(len(fields))

	switch {
	case ratio < 0.50:
		score -= 15
		issues = append(issues, "incomplete canonical data")
	case ratio < 0.70:
		score -= 7
	}
	return score, issues
}

func ratingConfidence(score float64, issues []string, totalReviews int) (float64, []string) {
	var confidence float64
	switch {
	case totalReviews >= 500:
		confidence = 1.0
	case totalReviews >= 100:
		confidence = 0.9
	case totalReviews >= 50:
		confidence = 0.7
	case totalReviews >= 20:
		confidence = 0.5
	case totalReviews >= 5:
		confidence = 0.3
	default:
		confidence = 0.1
	}

	switch {
	case confidence < 0.3:
		score -= 7
	case confidence < 0.5:
		score -= 3
	}
	return score, issues
}

func nameQuality(score float64, issues []string, name string, members []Member) (float64, []string) {
	runes := []rune(name)
	if len(runes) == 0 {
		return score, issues
	}

	special, letters, upper := 0, 0, 0
	for _, r := range runes {
		switch {
		case unicode.IsLetter(r):
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		case unicode.IsSpace(r) || unicode.IsDigit(r):
		default:
			special++
		}
	}

	if float64(special)/float64(len(runes)) > 0.2 {
		score -= 0.3
	}
	if letters > 0 && float64(upper)/float64(letters) > 0.8 {
		score -= 0.2
	}
	if len(runes) < 20 {
		score -= 0.2
	}

	if len(members) > 0 {
		code := members[0].Code
		extracted := 0
		if code.Brand != "" {
			extracted++
		}
		if code.Model != "" {
			extracted++
		}
		if code.StorageGB > 0 {
			extracted++
		}
		if code.Color != "" {
			extracted++
		}
		score += 0.1 * float64(extracted)
	}

	return score, issues
}
