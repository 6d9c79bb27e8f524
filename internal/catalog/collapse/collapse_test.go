package collapse

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vncatalog/dedup-engine/internal/catalog/model"
)

func TestCollapseSameExternalID(t *testing.T) {
	listings := []model.RawListing{
		{ID: "1", SourceID: "tiki", ExternalID: "p1", NameNormalized: "iphone 15", Rating: 4.5, ReviewCount: 10},
		{ID: "2", SourceID: "tiki", ExternalID: "p1", NameNormalized: "iphone 15", Rating: 4.8, ReviewCount: 5},
	}
	results := Collapse(listings)
	assert := assert.New(t)
	assert.Len(results, 1)
	assert.Equal("2", results[0].Representative.ID)
	assert.Equal(1, results[0].DuplicateCount)
	assert.Equal([]string{"1"}, results[0].DuplicateIDs)
}

func TestCollapseDistinctSourcesNeverMerge(t *testing.T) {
	listings := []model.RawListing{
		{ID: "1", SourceID: "tiki", ExternalID: "p1", NameNormalized: "iphone 15"},
		{ID: "2", SourceID: "shopee", ExternalID: "p1", NameNormalized: "iphone 15"},
	}
	results := Collapse(listings)
	assert.Len(t, results, 2)
}

func TestCollapseNameSimilarityWithMatchingPrice(t *testing.T) {
	listings := []model.RawListing{
		{ID: "1", SourceID: "tiki", ExternalID: "a", NameNormalized: "iphone 15 pro max 256gb chinh hang", Price: 34_000_000},
		{ID: "2", SourceID: "tiki", ExternalID: "b", NameNormalized: "iphone 15 pro max 256gb chinh hang vn", Price: 34_000_000},
	}
	results := Collapse(listings)
	assert.Len(t, results, 1)
}

func TestCollapseDissimilarNamesStaySeparate(t *testing.T) {
	listings := []model.RawListing{
		{ID: "1", SourceID: "tiki", ExternalID: "a", NameNormalized: "iphone 15 pro max", Price: 34_000_000},
		{ID: "2", SourceID: "tiki", ExternalID: "b", NameNormalized: "samsung galaxy s24 ultra", Price: 28_000_000},
	}
	results := Collapse(listings)
	assert.Len(t, results, 2)
}
