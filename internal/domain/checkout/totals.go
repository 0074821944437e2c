// Package checkout aggregates the cart subtotal and the selected shipping
// option into the storefront's grand total.
package checkout

import (
	"github.com/shopspring/decimal"

	"github.com/posv-labs/storefront/internal/domain/cart"
	"github.com/posv-labs/storefront/internal/domain/shipping"
)

// Summary holds the three totals rendered by the storefront. The invariant
// Grand = Products + Shipping holds in every reachable state.
type Summary struct {
	Products decimal.Decimal
	Shipping decimal.Decimal
	Grand    decimal.Decimal
}

// Summarize computes the current totals. Shipping is the selected quote
// option's price; any flow state without a selection (idle, invalid, failed,
// empty) contributes zero.
func Summarize(c *cart.Store, f *shipping.Flow) Summary {
	products := c.Subtotal().Round(2)

	shippingCost := decimal.Zero
	if opt, ok := f.Selected(); ok {
		shippingCost = opt.Price.Round(2)
	}

	return Summary{
		Products: products,
		Shipping: shippingCost,
		Grand:    products.Add(shippingCost),
	}
}
