package normalize

import "testing"

import "github.com/stretchr/testify/assert"

func TestNameIdempotent(t *testing.T) {
	inputs := []string{
		"iPhone 15 Pro Max 256GB Titanium Xanh — Chính Hãng VN/A",
		"   Điện   Thoại!!  iPhone 15 ProMax 256G  ",
		"",
		"OPPO Reno10 5G (8GB/256GB)",
	}
	for _, in := range inputs {
		once := Name(in)
		twice := Name(once)
		assert.Equal(t, once, twice, "normalization must be idempotent for %q", in)
	}
}

func TestNameCollapsesPunctuationAndCase(t *testing.T) {
	got := Name("iPhone 15 Pro Max (256GB) — Blue Titanium")
	assert.Equal(t, "iphone 15 pro max 256gb blue titanium", got)
}

func TestTokens(t *testing.T) {
	assert.Equal(t, []string{"iphone", "15", "pro", "max"}, Tokens(Name("iPhone 15 Pro Max")))
	assert.Nil(t, Tokens(""))
}

func TestStripDiacritics(t *testing.T) {
	assert.Equal(t, "dien thoai", StripDiacritics("điện thoại"))
	assert.Equal(t, "dong ho", StripDiacritics("đồng hồ"))
	assert.Equal(t, "iphone 15", StripDiacritics("iphone 15"))
}

func TestPrefix(t *testing.T) {
	assert.Equal(t, "iphone 15 pro", Prefix("iphone 15 pro max 256gb", 13))
	assert.Equal(t, "abc", Prefix("abc", 10))
}
