package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vncatalog/dedup-engine/internal/catalog/model"
	"github.com/vncatalog/dedup-engine/internal/catalog/normalize"
	"github.com/vncatalog/dedup-engine/internal/catalog/scoring"
)

func member(source, name string, price float64) Member {
	return Member{
		Listing: model.RawListing{
			SourceID:       source,
			ExternalID:     source + "-" + name,
			Name:           name,
			NameNormalized: normalize.Name(name),
			Price:          price,
		},
		CategoryGroup: "phone",
	}
}

func TestRunMergesCloseMatches(t *testing.T) {
	members := []Member{
		member("tiki", "iPhone 15 Pro Max 256GB", 34_000_000),
		member("shopee", "iPhone 15 ProMax 256G", 34_200_000),
		member("lazada", "Samsung Galaxy S24 Ultra", 28_000_000),
	}
	clusters := Run(members, 0.5, scoring.DefaultWeights())
	assert.Len(t, clusters, 2)
}

func TestRunDeterministicAcrossInputOrder(t *testing.T) {
	a := []Member{
		member("tiki", "iPhone 15 Pro Max 256GB", 34_000_000),
		member("shopee", "iPhone 15 ProMax 256G", 34_200_000),
	}
	b := []Member{a[1], a[0]}

	ca := Run(a, 0.5, scoring.DefaultWeights())
	cb := Run(b, 0.5, scoring.DefaultWeights())
	assert.Equal(t, len(ca), len(cb))
}

func TestRunSingletonWhenNoMatch(t *testing.T) {
	members := []Member{
		member("tiki", "iPhone 15 Pro Max", 34_000_000),
		member("shopee", "Xiaomi Redmi Note 13", 5_000_000),
	}
	clusters := Run(members, 0.5, scoring.DefaultWeights())
	assert.Len(t, clusters, 2)
	for _, c := range clusters {
		assert.Len(t, c.Members, 1)
	}
}
