package enums

import "fmt"

// CollectionCategory distinguishes courier delivery from campus pickup.
type CollectionCategory string

const (
	CollectionCategoryDelivery CollectionCategory = "delivery"
	CollectionCategoryPickup   CollectionCategory = "pickup"
)

var validCollectionCategories = []CollectionCategory{
	CollectionCategoryDelivery,
	CollectionCategoryPickup,
}

// String implements fmt.Stringer.
func (c CollectionCategory) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CollectionCategory.
func (c CollectionCategory) IsValid() bool {
	for _, candidate := range validCollectionCategories {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCollectionCategory converts raw input into a CollectionCategory.
func ParseCollectionCategory(value string) (CollectionCategory, error) {
	for _, candidate := range validCollectionCategories {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid collection category %q", value)
}
