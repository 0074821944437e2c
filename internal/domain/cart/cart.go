// Package cart implements the in-memory shopping cart. The cart is ephemeral:
// it lives for one storefront session and is never persisted.
package cart

import (
	"slices"

	"github.com/shopspring/decimal"

	"github.com/posv-labs/storefront/internal/domain/catalog"
)

// defaultItemWeightKg is applied when a product reaches the cart without a
// declared weight. It is intentionally independent from the package weight
// floor in the shipping package.
const defaultItemWeightKg = 0.5

// Line is one cart row: a product snapshot plus a quantity. UnitPrice is
// fixed at add time; later catalog price changes do not affect it.
type Line struct {
	ID        string
	SKU       string
	Name      string
	UnitPrice decimal.Decimal
	WeightKg  float64
	Quantity  int
}

// Total returns UnitPrice multiplied by Quantity.
func (l Line) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Store is an ordered list of cart lines with merge-by-ID semantics.
// It holds at most one Line per product ID.
//
// Store is not safe for concurrent use; all mutations are expected to happen
// on a single event loop. Callers on multi-threaded hosts must add their own
// synchronization.
type Store struct {
	lines    []Line
	onChange []func()
}

// NewStore returns an empty cart.
func NewStore() *Store {
	return &Store{}
}

// OnChange registers fn to run after every mutation that changed cart state.
// This is how shipping-relevant derived state stays in sync with the cart
// without relying on caller discipline.
func (s *Store) OnChange(fn func()) {
	s.onChange = append(s.onChange, fn)
}

func (s *Store) notify() {
	for _, fn := range s.onChange {
		fn()
	}
}

// Add puts p in the cart. If a line with the same product ID already exists
// its quantity is incremented, and the product's weight is adopted only when
// the line has none recorded. Otherwise a new line with quantity 1 is
// appended, snapshotting price, name and SKU.
func (s *Store) Add(p catalog.Product) {
	weight := defaultItemWeightKg
	if p.HasWeight && p.WeightKg > 0 {
		weight = p.WeightKg
	}

	for i := range s.lines {
		if s.lines[i].ID != p.ID {
			continue
		}
		s.lines[i].Quantity++
		if s.lines[i].WeightKg == 0 {
			s.lines[i].WeightKg = weight
		}
		s.notify()
		return
	}

	s.lines = append(s.lines, Line{
		ID:        p.ID,
		SKU:       p.SKU,
		Name:      p.Name,
		UnitPrice: p.Price,
		WeightKg:  weight,
		Quantity:  1,
	})
	s.notify()
}

// SetQuantity sets the quantity of the line at index i, clamped to a minimum
// of 1. Out-of-range indexes are ignored.
func (s *Store) SetQuantity(i, qty int) {
	if i < 0 || i >= len(s.lines) {
		return
	}
	if qty < 1 {
		qty = 1
	}
	if s.lines[i].Quantity == qty {
		return
	}
	s.lines[i].Quantity = qty
	s.notify()
}

// Remove deletes the line at index i; following lines shift down by one.
// Out-of-range indexes are ignored.
func (s *Store) Remove(i int) {
	if i < 0 || i >= len(s.lines) {
		return
	}
	s.lines = slices.Delete(s.lines, i, i+1)
	s.notify()
}

// Clear empties the cart.
func (s *Store) Clear() {
	if len(s.lines) == 0 {
		return
	}
	s.lines = nil
	s.notify()
}

// Items returns a copy of the cart lines in order.
func (s *Store) Items() []Line {
	return slices.Clone(s.lines)
}

// Len returns the number of distinct lines in the cart.
func (s *Store) Len() int {
	return len(s.lines)
}

// Subtotal sums UnitPrice times Quantity over all lines.
func (s *Store) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, l := range s.lines {
		sum = sum.Add(l.Total())
	}
	return sum
}
