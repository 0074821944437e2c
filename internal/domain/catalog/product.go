// Package catalog holds the product model and the search semantics shared by
// the storefront widget and the proxy.
package catalog

import "github.com/shopspring/decimal"

// Product is a catalog item as served by /api/produtos. The price is a
// snapshot from the ERP; the cart copies it at add time and never re-reads it.
type Product struct {
	// ID is an opaque, stable identifier. It is the merge key for cart lines.
	ID   string
	SKU  string
	Name string

	Price decimal.Decimal

	// WeightKg is the net weight when the ERP declares one. HasWeight is
	// false when the field was absent; downstream code applies its own
	// default in that case.
	WeightKg  float64
	HasWeight bool

	// Stock is nil when the ERP does not report inventory for the item.
	Stock *int

	ImageURL string
}
