package quality

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vncatalog/dedup-engine/internal/catalog/model"
)

func fullCanonical() model.Canonical {
	return model.Canonical{
		Name:        "iPhone 15 Pro Max 256GB Titan Xanh Chính Hãng",
		BrandID:     "b1",
		CategoryID:  "c1",
		Description: "Điện thoại iPhone 15 Pro Max chính hãng VN/A",
		ImageURL:    "https://example.com/img.jpg",
		MinPrice:    33_000_000,
		MaxPrice:    34_500_000,
		AvgRating:   4.7,
		TotalReviews: 600,
	}
}

func TestScoreExcellentForStrongCluster(t *testing.T) {
	members := []Member{
		{Listing: model.RawListing{Price: 34_000_000, Available: true, ReviewCount: 200}, Code: model.ExtractedCode{Brand: "apple", Model: "iphone 15 pro max", StorageGB: 256, Color: "blue"}},
		{Listing: model.RawListing{Price: 34_200_000, Available: true, ReviewCount: 180}, Code: model.ExtractedCode{Brand: "apple", Model: "iphone 15 pro max", StorageGB: 256, Color: "blue"}},
	}
	r := Score(fullCanonical(), members, 5)
	assert.GreaterOrEqual(t, r.Score, 85.0)
	assert.Equal(t, LabelExcellent, r.Label)
	assert.False(t, r.NeedsReview)
}

func TestScoreSingleSourceFlagged(t *testing.T) {
	c := fullCanonical()
	c.TotalReviews = 2
	members := []Member{
		{Listing: model.RawListing{Price: 34_000_000, Available: true}, Code: model.ExtractedCode{Brand: "apple"}},
	}
	r := Score(c, members, 1)
	assert.Contains(t, r.Issues, "single source")
}

func TestScoreHighPriceVarianceFlagged(t *testing.T) {
	c := fullCanonical()
	members := []Member{
		{Listing: model.RawListing{Price: 10_000_000, Available: true}, Code: model.ExtractedCode{Brand: "apple"}},
		{Listing: model.RawListing{Price: 30_000_000, Available: true}, Code: model.ExtractedCode{Brand: "apple"}},
	}
	r := Score(c, members, 5)
	assert.Contains(t, r.Issues, "high price variance")
}

func TestScoreNeedsReviewBelowThreshold(t *testing.T) {
	c := model.Canonical{Name: "x"}
	members := []Member{{Listing: model.RawListing{}}}
	r := Score(c, members, 1)
	assert.True(t, r.NeedsReview)
	assert.Equal(t, LabelPoor, r.Label)
}
