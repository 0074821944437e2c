// Package rates implements the shipping-rate providers the proxy can quote
// against: Melhor Envio (default) and Correios.
package rates

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/posv-labs/storefront/internal/domain/shipping"
)

// Provider errors the handler maps to specific HTTP statuses.
var (
	// ErrUnauthorized means the provider rejected the configured token.
	ErrUnauthorized = errors.New("provider rejected the access token")
	// ErrOriginRequired means the origin postal code is not configured.
	ErrOriginRequired = errors.New("origin postal code not configured")
	// ErrNoValidPackage means no package in the request had all of
	// width/height/length/weight set.
	ErrNoValidPackage = errors.New("no valid package to quote")
)

// QuoteError carries a provider failure message meant for the user.
type QuoteError struct {
	Provider string
	Message  string
}

func (e *QuoteError) Error() string {
	return e.Provider + ": " + e.Message
}

// UserMessage returns the provider's message for direct display.
func (e *QuoteError) UserMessage() string { return e.Message }

// Provider quotes shipping options for a set of packages.
type Provider interface {
	Name() string
	Quote(ctx context.Context, originCEP, destCEP string, pkgs []shipping.Package) ([]shipping.Option, error)
}

// Set selects a Provider by its lowercase name, falling back to a default.
type Set struct {
	def       Provider
	providers map[string]Provider
}

// NewSet builds a Set with def as the fallback provider.
func NewSet(def Provider, others ...Provider) *Set {
	s := &Set{
		def:       def,
		providers: map[string]Provider{def.Name(): def},
	}
	for _, p := range others {
		s.providers[p.Name()] = p
	}
	return s
}

// ByName returns the provider for name, or the default for unknown or empty
// names.
func (s *Set) ByName(name string) Provider {
	if p, ok := s.providers[strings.ToLower(strings.TrimSpace(name))]; ok {
		return p
	}
	return s.def
}

// onlyDigits strips everything but ASCII digits from s.
func onlyDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// parseMoney converts a provider price into a decimal, accepting numbers and
// strings using either comma or dot as the decimal separator.
func parseMoney(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}
	if v, err := decimal.NewFromString(s); err == nil {
		return v
	}
	if v, err := decimal.NewFromString(strings.ReplaceAll(s, ",", ".")); err == nil {
		return v
	}
	return decimal.Zero
}

// parseBRMoney converts a Brazilian-formatted amount ("1.234,56") into a
// decimal. Plain dot-decimal input still parses.
func parseBRMoney(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return v
}
