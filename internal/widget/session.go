// Package widget ties the storefront stores together: catalog search results,
// the cart, the derived shipping package, the quote flow and the totals. It is
// the surface the presentation layer talks to.
package widget

import (
	"context"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/posv-labs/storefront/internal/client"
	"github.com/posv-labs/storefront/internal/domain/cart"
	"github.com/posv-labs/storefront/internal/domain/catalog"
	"github.com/posv-labs/storefront/internal/domain/checkout"
	"github.com/posv-labs/storefront/internal/domain/shipping"
)

// ErrNoSuchResult is returned when an add refers to a search result index
// that does not exist.
var ErrNoSuchResult = errors.New("no search result at that position")

// API is the backend surface the session needs. *client.Client satisfies it.
type API interface {
	SearchProducts(ctx context.Context, term string, forceRefresh bool) (client.SearchResult, error)
	shipping.Requester
}

// Session is one storefront page lifetime: an empty cart at construction,
// mutated only through the methods below, never persisted.
//
// The session sequences the derived-state recomputation itself: every cart
// mutation re-derives the shipping package and re-renders the totals, and
// every quote transition re-renders them. Callers never have to remember to.
type Session struct {
	api API
	lg  *zap.Logger

	cart      *cart.Store
	estimator *shipping.Estimator
	flow      *shipping.Flow

	results []catalog.Product
	pkg     shipping.Package

	onRender []func(checkout.Summary)
}

// NewSession builds a session with an empty cart and an idle quote flow.
func NewSession(api API, lg *zap.Logger) *Session {
	s := &Session{
		api:       api,
		lg:        lg,
		cart:      cart.NewStore(),
		estimator: shipping.NewEstimator(),
	}
	s.flow = shipping.NewFlow(api)

	s.cart.OnChange(func() {
		s.pkg = s.estimator.Derive(s.cart.Items())
		s.render()
	})
	s.flow.OnChange(s.render)

	s.pkg = s.estimator.Derive(nil)
	return s
}

// OnRender registers fn to receive the recomputed totals after every cart or
// quote change.
func (s *Session) OnRender(fn func(checkout.Summary)) {
	s.onRender = append(s.onRender, fn)
}

func (s *Session) render() {
	summary := s.Totals()
	for _, fn := range s.onRender {
		fn(summary)
	}
}

// Search queries the catalog and keeps the results for index-based AddToCart
// calls. A failed search leaves the previous results in place.
func (s *Session) Search(ctx context.Context, term string, forceRefresh bool) (client.SearchResult, error) {
	res, err := s.api.SearchProducts(ctx, term, forceRefresh)
	if err != nil {
		s.lg.Warn("search failed", zap.String("term", term), zap.Error(err))
		return client.SearchResult{}, err
	}
	s.results = res.Products
	return res, nil
}

// Results returns the current search results.
func (s *Session) Results() []catalog.Product {
	return s.results
}

// AddToCart adds the i-th search result to the cart.
func (s *Session) AddToCart(i int) error {
	if i < 0 || i >= len(s.results) {
		return ErrNoSuchResult
	}
	s.cart.Add(s.results[i])
	return nil
}

// SetQuantity sets the quantity of cart line i, clamped to a minimum of 1.
func (s *Session) SetQuantity(i, qty int) {
	s.cart.SetQuantity(i, qty)
}

// RemoveItem removes cart line i.
func (s *Session) RemoveItem(i int) {
	s.cart.Remove(i)
}

// CartItems returns the current cart lines.
func (s *Session) CartItems() []cart.Line {
	return s.cart.Items()
}

// SetDimensions overrides the shipping box dimensions and re-derives the
// package immediately.
func (s *Session) SetDimensions(widthCm, heightCm, lengthCm float64) {
	s.estimator.SetDimensions(widthCm, heightCm, lengthCm)
	s.pkg = s.estimator.Derive(s.cart.Items())
}

// CurrentPackage returns the package as it would be quoted right now.
func (s *Session) CurrentPackage() shipping.Package {
	return s.pkg
}

// RequestQuote derives the package from the current cart and runs the quote
// flow against the given provider and destination postal code.
func (s *Session) RequestQuote(ctx context.Context, provider, postalCode string) error {
	s.pkg = s.estimator.Derive(s.cart.Items())
	return s.flow.Request(ctx, provider, postalCode, s.pkg)
}

// SelectOption changes the selected quote option.
func (s *Session) SelectOption(i int) {
	s.flow.Select(i)
}

// Quote exposes the flow for rendering (state, options, error message).
func (s *Session) Quote() *shipping.Flow {
	return s.flow
}

// Totals recomputes the three totals from current state.
func (s *Session) Totals() checkout.Summary {
	return checkout.Summarize(s.cart, s.flow)
}
