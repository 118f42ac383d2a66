package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	assert.Equal(t, "cafe-creme", Slugify("Café Crème"))
	assert.Equal(t, "t-shirt-xl", Slugify("  T-Shirt (XL) "))
	assert.Equal(t, "", Slugify("!!!"))
}

func TestProductVariant_DisplayName(t *testing.T) {
	assert.Equal(t, "Blue", ProductVariant{Name: "Blue", SKU: "B-1"}.DisplayName())
	assert.Equal(t, "blue, XL", ProductVariant{SKU: "B-1", Attributes: Attributes{"color": "blue", "size": "XL"}}.DisplayName())
	assert.Equal(t, "B-1", ProductVariant{SKU: "B-1"}.DisplayName())
}

func TestCategory_FullPath(t *testing.T) {
	root := Category{Slug: "acme"}
	mid := Category{Slug: "office"}
	leaf := Category{Slug: "chairs"}

	assert.Equal(t, "acme/office/chairs", leaf.FullPath([]Category{root, mid}))
	assert.Equal(t, "acme", root.FullPath(nil))
}
