package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vncatalog/dedup-engine/internal/catalog/extract"
	"github.com/vncatalog/dedup-engine/internal/catalog/model"
	"github.com/vncatalog/dedup-engine/internal/catalog/normalize"
)

func pair(name string, price float64, categoryGroup string) Pair {
	return Pair{
		Listing: model.RawListing{
			Name:           name,
			NameNormalized: normalize.Name(name),
			BrandRaw:       "",
			Price:          price,
		},
		Code:          extract.Extract(name),
		CategoryGroup: categoryGroup,
	}
}

func TestScoreExactMatch(t *testing.T) {
	a := pair("iPhone 15 Pro Max 256GB Titanium Xanh", 34_000_000, "phone")
	b := pair("iPhone 15 Pro Max 256GB Titan Xanh Dương", 34_200_000, "phone")
	r := Score(a, b, DefaultWeights())
	assert.GreaterOrEqual(t, r.Score, 0.85)
	assert.Equal(t, ConfidenceHigh, r.Confidence)
}

func TestScoreCategoryGateRejects(t *testing.T) {
	a := pair("iPhone 15 Pro Max 256GB", 34_000_000, "phone")
	b := pair("MacBook Air M2", 28_000_000, "laptop")
	r := Score(a, b, DefaultWeights())
	assert.Equal(t, 0.1, r.Score)
	assert.Equal(t, model.MethodNoMatch, r.Method)
}

func TestScorePriceGateRejects(t *testing.T) {
	a := pair("iPhone 15 Pro Max 256GB", 34_000_000, "phone")
	b := pair("iPhone 15 Pro Max 256GB", 10_000_000, "phone")
	r := Score(a, b, DefaultWeights())
	assert.Equal(t, 0.2, r.Score)
	assert.Equal(t, model.MethodNoMatch, r.Method)
}

func TestScoreNoMatch(t *testing.T) {
	a := pair("Ốp lưng iPhone 15", 150_000, "accessory")
	b := pair("Samsung Galaxy S24 Ultra", 28_000_000, "phone")
	r := Score(a, b, DefaultWeights())
	assert.Equal(t, model.MethodNoMatch, r.Method)
}

// TestScoreTypeGateRejects isolates the device/accessory hard gate: same
// category group (phone cases are routinely listed under the phone
// category) and near-identical price, so nothing but the type mismatch
// itself could cap the score at 0.1.
func TestScoreTypeGateRejects(t *testing.T) {
	a := pair("Ốp lưng kính cường lực iPhone 15 Pro Max", 990_000, "phone")
	b := pair("iPhone 15 Pro Max 256GB", 990_000, "phone")
	require.Equal(t, model.ProductTypeAccessory, a.Code.Type)
	require.Equal(t, model.ProductTypeDevice, b.Code.Type)
	r := Score(a, b, DefaultWeights())
	assert.LessOrEqual(t, r.Score, 0.1)
	assert.Equal(t, model.MethodNoMatch, r.Method)
}

// TestScoreTypeGateUnresolvedSidePasses confirms the gate only fires when
// both sides resolve a type: an "unknown" side must not trip it.
func TestScoreTypeGateUnresolvedSidePasses(t *testing.T) {
	a := pair("iPhone 15 Pro Max 256GB", 34_000_000, "phone")
	b := pair("iPhone 15 Pro Max 256GB", 34_100_000, "phone")
	b.Code.Type = model.ProductTypeUnknown
	r := Score(a, b, DefaultWeights())
	assert.NotEqual(t, 0.1, r.Score)
}

func TestWeightedSumNormalizes(t *testing.T) {
	f := Features{NameString: 1, Semantic: 1, Brand: 1, Code: 1, Price: 1, Specs: 1, Category: 1, Rating: 1}
	assert.InDelta(t, 1.0, weightedSum(f, DefaultWeights()), 1e-9)
}

func TestScoreBoundedByOne(t *testing.T) {
	a := pair("iPhone 15 Pro Max 256GB Xanh", 34_000_000, "phone")
	r := Score(a, a, DefaultWeights())
	assert.LessOrEqual(t, r.Score, 1.0)
}

func TestPriceScoreTiers(t *testing.T) {
	assert.Equal(t, 1.0, priceScore(100, 101))
	assert.Equal(t, 0.95, priceScore(100, 104))
	assert.Equal(t, 0.85, priceScore(100, 109))
	assert.Equal(t, 0.70, priceScore(100, 118))
	assert.Equal(t, 0.50, priceScore(100, 128))
	assert.Equal(t, 0.0, priceScore(100, 150))
}

func TestSpecsScoreEmptySideIsNeutral(t *testing.T) {
	assert.Equal(t, 0.5, specsScore(nil, map[string]string{"ram": "8GB"}))
}

func TestSpecsScoreAgreement(t *testing.T) {
	a := map[string]string{"ram": "8GB", "color": "black"}
	b := map[string]string{"ram": "8GB", "color": "blue"}
	s := specsScore(a, b)
	assert.Greater(t, s, 0.0)
	assert.Less(t, s, 1.0)
}

func TestBrandScoreCanonicalMismatch(t *testing.T) {
	assert.Equal(t, 0.0, brandScore("", "", "apple", "samsung"))
	assert.Equal(t, 1.0, brandScore("", "", "apple", "apple"))
}
