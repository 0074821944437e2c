// Package currency formats monetary amounts for display in Brazilian
// Portuguese (BRL).
package currency

import (
	"math"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.BrazilianPortuguese)

// Format renders d as a localized BRL string, e.g. "R$ 1.234,56".
func Format(d decimal.Decimal) string {
	return FormatFloat(d.InexactFloat64())
}

// FormatFloat renders f as a localized BRL string. NaN and infinities are
// treated as zero.
func FormatFloat(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		f = 0
	}
	return printer.Sprint(currency.Symbol(currency.BRL.Amount(f)))
}
