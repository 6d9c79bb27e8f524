package threshold

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLookupDefault(t *testing.T) {
	o := New()
	assert.Equal(t, 0.75, o.Lookup("foo", "bar", "unknown-category"))
}

func TestLookupCategoryOverridesDefault(t *testing.T) {
	o := New()
	assert.Equal(t, 0.80, o.Lookup("foo", "bar", "phone"))
}

func TestLookupSourcePairBeatsCategory(t *testing.T) {
	o := New()
	assert.Equal(t, 0.72, o.Lookup("tiki", "shopee", "phone"))
}

func TestLookupSourcePairIsOrderIndependent(t *testing.T) {
	o := New()
	assert.Equal(t, o.Lookup("tiki", "shopee", "phone"), o.Lookup("shopee", "tiki", "phone"))
}

func TestSetOverrideTakesPrecedence(t *testing.T) {
	o := New()
	o.SetOverride("phone", 0.95)
	assert.Equal(t, 0.95, o.Lookup("foo", "bar", "phone"))
}

func TestNormalizeCategorySynonyms(t *testing.T) {
	assert.Equal(t, "phone", NormalizeCategory("điện thoại"))
	assert.Equal(t, "phone", NormalizeCategory("Điện Thoại - Smartphone"))
	assert.Equal(t, "phone", NormalizeCategory("dien thoai"))
	assert.Equal(t, "", NormalizeCategory("nonsense"))
}
