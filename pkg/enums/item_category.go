package enums

import "fmt"

// ItemCategory classifies an inventory item.
type ItemCategory string

const (
	ItemCategoryRawMaterial    ItemCategory = "raw_material"
	ItemCategoryInHouseProduct ItemCategory = "in_house_product"
	ItemCategoryPurchasedItem  ItemCategory = "purchased_item"
	ItemCategoryAssembledKit   ItemCategory = "assembled_kit"
	ItemCategoryDonated        ItemCategory = "donated"
)

var validItemCategories = []ItemCategory{
	ItemCategoryRawMaterial,
	ItemCategoryInHouseProduct,
	ItemCategoryPurchasedItem,
	ItemCategoryAssembledKit,
	ItemCategoryDonated,
}

// String implements fmt.Stringer.
func (c ItemCategory) String() string {
	return string(c)
}

// IsValid reports whether the value is a known ItemCategory.
func (c ItemCategory) IsValid() bool {
	for _, candidate := range validItemCategories {
		if candidate == c {
			return true
		}
	}
	return false
}

// IsKit reports whether items of this category are assembled from templates.
func (c ItemCategory) IsKit() bool {
	return c == ItemCategoryAssembledKit
}

// ParseItemCategory converts raw input into an ItemCategory.
func ParseItemCategory(value string) (ItemCategory, error) {
	for _, candidate := range validItemCategories {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid item category %q", value)
}
