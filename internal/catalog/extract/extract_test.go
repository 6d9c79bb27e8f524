package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vncatalog/dedup-engine/internal/catalog/model"
)

func TestExtractIPhone(t *testing.T) {
	c := Extract("iPhone 15 Pro Max 256GB Titanium Xanh Chính Hãng VN/A")
	assert.Equal(t, "apple", c.Brand)
	assert.Equal(t, 256, c.StorageGB)
	assert.Equal(t, model.ProductTypeDevice, c.Type)
	assert.Equal(t, "blue", c.Color)
}

func TestExtractDeterministic(t *testing.T) {
	name := "Samsung Galaxy S24 Ultra 512GB 12GB RAM Đen"
	a := Extract(name)
	b := Extract(name)
	assert.Equal(t, a, b)
}

func TestExtractAccessory(t *testing.T) {
	c := Extract("Ốp Lưng Sạc Từ Tính cho iPhone 16 Pro")
	assert.Equal(t, model.ProductTypeAccessory, c.Type)
}

func TestExtractDualMemory(t *testing.T) {
	c := Extract("OPPO Reno10 5G (8GB/256GB)")
	assert.Equal(t, 256, c.StorageGB)
	assert.Equal(t, 8, c.RAMGB)
}

func TestExtractTB(t *testing.T) {
	c := Extract("MacBook Pro 1TB SSD")
	assert.Equal(t, 1024, c.StorageGB)
}

func TestExtractModelNumberKeepsTier(t *testing.T) {
	base := Extract("iPhone 15 128GB")
	proMax := Extract("iPhone 15 Pro Max 256GB")
	proMaxJoined := Extract("iPhone 15 ProMax 256GB")
	assert.Equal(t, "15", base.ModelNumber)
	assert.Equal(t, "15promax", proMax.ModelNumber)
	assert.Equal(t, proMax.ModelNumber, proMaxJoined.ModelNumber)
}

func TestCompareHardRuleDeviceVsAccessory(t *testing.T) {
	device := model.ExtractedCode{Type: model.ProductTypeDevice, Brand: "apple"}
	accessory := model.ExtractedCode{Type: model.ProductTypeAccessory, Brand: "apple"}
	assert.Equal(t, 0.0, Compare(device, accessory))
}

func TestCompareWeighted(t *testing.T) {
	a := model.ExtractedCode{Brand: "apple", ModelNumber: "15", StorageGB: 256}
	b := model.ExtractedCode{Brand: "apple", ModelNumber: "15", StorageGB: 256}
	assert.Equal(t, 1.0, Compare(a, b))
}

func TestToCanonicalCodeFallback(t *testing.T) {
	assert.Equal(t, "unknown", ToCanonicalCode(model.ExtractedCode{}))
}

func TestToCanonicalCodeParts(t *testing.T) {
	c := model.ExtractedCode{Brand: "apple", ModelNumber: "15", StorageGB: 256, RAMGB: 8}
	assert.Equal(t, "apple-15-256-ram8", ToCanonicalCode(c))
}
