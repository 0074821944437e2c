package catalog

import (
	"slices"
	"strings"
)

// unfilteredLimit caps the result size when no search term is given.
const unfilteredLimit = 100

// Filter applies the storefront search rules to an in-memory product list.
//
// The term is trimmed and matched case-insensitively. An empty term means "no
// filter" and returns the first unfilteredLimit products. When the term
// equals a SKU exactly, only the exact matches are returned, so a search for
// "559" does not also surface "1559" or "5590". Otherwise the term is
// substring-matched against name and SKU.
func Filter(products []Product, term string) []Product {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		if len(products) > unfilteredLimit {
			return slices.Clone(products[:unfilteredLimit])
		}
		return slices.Clone(products)
	}

	var exact []Product
	for _, p := range products {
		if strings.ToLower(strings.TrimSpace(p.SKU)) == term {
			exact = append(exact, p)
		}
	}
	if len(exact) > 0 {
		return exact
	}

	var matched []Product
	for _, p := range products {
		if strings.Contains(strings.ToLower(p.Name), term) ||
			strings.Contains(strings.ToLower(p.SKU), term) {
			matched = append(matched, p)
		}
	}
	return matched
}
