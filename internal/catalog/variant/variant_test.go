package variant

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vncatalog/dedup-engine/internal/catalog/model"
)

func TestKeyBase(t *testing.T) {
	assert.Equal(t, "base", Key(model.ExtractedCode{}))
}

func TestKeyFull(t *testing.T) {
	assert.Equal(t, "256gb|8gb|black", Key(model.ExtractedCode{StorageGB: 256, RAMGB: 8, Color: "black"}))
}

func TestKeyPartial(t *testing.T) {
	assert.Equal(t, "128gb|base|blue", Key(model.ExtractedCode{StorageGB: 128, Color: "blue"}))
}

func TestRunDetectsVariantGroup(t *testing.T) {
	members := []Member{
		{Listing: model.RawListing{ID: "1", Name: "iPhone 15 128GB Đen", Price: 20_000_000, ReviewCount: 10}},
		{Listing: model.RawListing{ID: "2", Name: "iPhone 15 256GB Đen", Price: 23_000_000, ReviewCount: 5}},
	}
	split := Run(members, "canon-1")
	assert.True(t, split.IsVariantGroup)
	assert.Len(t, split.Variants, 2)
	assert.Equal(t, "1", split.Main.ID)
}

func TestRunNotVariantGroupWhenSingleKey(t *testing.T) {
	members := []Member{
		{Listing: model.RawListing{ID: "1", Name: "iPhone 15 128GB Đen", Price: 20_000_000}},
		{Listing: model.RawListing{ID: "2", Name: "iPhone 15 128GB Đen Chính Hãng", Price: 20_500_000}},
	}
	split := Run(members, "canon-1")
	assert.False(t, split.IsVariantGroup)
}
