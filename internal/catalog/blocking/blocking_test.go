package blocking

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vncatalog/dedup-engine/internal/catalog/model"
	"github.com/vncatalog/dedup-engine/internal/catalog/normalize"
)

func listing(name string, price float64) model.RawListing {
	return model.RawListing{
		Name:           name,
		NameNormalized: normalize.Name(name),
		Price:          price,
	}
}

func TestPrimaryKeyWithModel(t *testing.T) {
	key := PrimaryKey(listing("iPhone 15 Pro Max 256GB", 34_000_000))
	assert.Equal(t, "apple|iphone 15 pro max", key)
}

func TestPrimaryKeyWithoutModel(t *testing.T) {
	l := listing("Bộ sạc nhanh 20W chính hãng", 250_000)
	key := PrimaryKey(l)
	assert.Contains(t, key, "|")
}

func TestPriceBand(t *testing.T) {
	assert.Equal(t, "unknown", PriceBand(0))
	assert.Equal(t, "budget", PriceBand(1_000_000))
	assert.Equal(t, "mid", PriceBand(5_000_000))
	assert.Equal(t, "premium", PriceBand(15_000_000))
	assert.Equal(t, "flagship", PriceBand(30_000_000))
}

func TestGenerateBlocksCount(t *testing.T) {
	l := listing("iPhone 15 Pro Max 256GB", 34_000_000)
	blocks := GenerateBlocks(l, "phone")
	assert.LessOrEqual(t, len(blocks), 4)
	assert.GreaterOrEqual(t, len(blocks), 3)
}

func TestSharesBlock(t *testing.T) {
	a := []Block{{Level: L1Brand, Type: "brand", Key: "apple"}}
	b := []Block{{Level: L1Brand, Type: "brand", Key: "apple"}}
	assert.True(t, SharesBlock(a, b, L1Brand))

	c := []Block{{Level: L1Brand, Type: "brand", Key: "samsung"}}
	assert.False(t, SharesBlock(a, c, L1Brand))
}

func TestIndexBuckets(t *testing.T) {
	idx := New([]model.RawListing{
		listing("iPhone 15 Pro Max 256GB", 34_000_000),
		listing("iPhone 15 ProMax 256G", 35_000_000),
	})
	assert.Len(t, idx.Buckets(), 1)
}
