package strmatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevenshteinSimilarityIdentical(t *testing.T) {
	assert.Equal(t, 1.0, LevenshteinSimilarity("iphone 15", "iphone 15"))
}

func TestLevenshteinSimilarityEmpty(t *testing.T) {
	assert.Equal(t, 1.0, LevenshteinSimilarity("", ""))
	assert.Equal(t, 0.0, LevenshteinSimilarity("abc", ""))
}

func TestJaccardAndDice(t *testing.T) {
	a := "iphone 15 pro max 256gb"
	b := "iphone 15 promax 256gb"
	// Shared tokens {iphone, 15, 256gb}: 3 of a 6-token union, 2*3 of 5+4.
	assert.InDelta(t, 0.5, Jaccard(a, b), 1e-9)
	assert.InDelta(t, 2.0/3.0, Dice(a, b), 1e-9)
}

func TestNGram(t *testing.T) {
	assert.Equal(t, 1.0, NGram("abc", "abc"))
	assert.Equal(t, 0.0, NGram("", "abc"))
}

func TestWordOrder(t *testing.T) {
	a := "iphone 15 pro max"
	b := "iphone 15 pro max"
	assert.Equal(t, 1.0, WordOrder(a, b))

	assert.Equal(t, 0.0, WordOrder("iphone", "a"))
}

func TestCombinedWeightsNormalized(t *testing.T) {
	w := Weights{Levenshtein: 1, Jaccard: 1, Dice: 1, NGram: 1, WordOrder: 1}
	score := Combined("iphone 15 pro max", "iphone 15 pro max", w)
	assert.InDelta(t, 1.0, score, 1e-9)
}

func TestQuickCheckRejectsLengthMismatch(t *testing.T) {
	assert.False(t, QuickCheck("a", "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", 0.3))
}

func TestQuickCheckAcceptsSimilarPrefix(t *testing.T) {
	assert.True(t, QuickCheck("iphone 15 pro max 256gb blue", "iphone 15 pro max 256gb black", 0.3))
}
