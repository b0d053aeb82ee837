package fitting

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var categoryFold = cases.Lower(language.Und)

// NormalizeCategory folds a product category into its canonical lower-case form.
func NormalizeCategory(category string) string {
	return categoryFold.String(strings.TrimSpace(category))
}

// SlotForCategory maps a product category to the slot a product image seeds.
func SlotForCategory(category string) (Slot, bool) {
	switch NormalizeCategory(category) {
	case "top", "outer", "dress":
		return SlotGarment, true
	case "bottom":
		return SlotLower, true
	}
	return "", false
}
