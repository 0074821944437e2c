// Package shipping holds the shippable-package estimator and the quote flow
// that turns cart contents into selectable carrier options.
package shipping

import (
	"github.com/shopspring/decimal"

	"github.com/posv-labs/storefront/internal/domain/cart"
)

// minPackageWeightKg is the floor applied to the derived package weight so
// rate APIs do not reject a weightless parcel. Kept separate from the cart's
// per-item weight default even though the values coincide today.
const minPackageWeightKg = 0.5

// Default box dimensions applied once when the user has not set any.
const (
	defaultWidthCm  = 11
	defaultHeightCm = 17
	defaultLengthCm = 11
)

// Package describes one shippable parcel: outer dimensions in centimeters,
// total weight in kilograms and the declared insurance value.
type Package struct {
	WidthCm   float64
	HeightCm  float64
	LengthCm  float64
	WeightKg  float64
	Insurance decimal.Decimal
}

// Valid reports whether the package can be quoted: all three dimensions and
// the weight must be strictly positive.
func (p Package) Valid() bool {
	return p.WidthCm > 0 && p.HeightCm > 0 && p.LengthCm > 0 && p.WeightKg > 0
}

// Estimator derives a single Package from cart contents. Dimensions are
// initialized once with defaults and afterwards only changed by the user;
// weight and insurance are recomputed from the cart on every Derive call.
type Estimator struct {
	widthCm     float64
	heightCm    float64
	lengthCm    float64
	initialized bool
}

// NewEstimator returns an Estimator with no dimensions set yet.
func NewEstimator() *Estimator {
	return &Estimator{}
}

// SetDimensions records user-chosen box dimensions. Once set, Derive never
// overwrites them. Non-positive values are ignored per axis.
func (e *Estimator) SetDimensions(widthCm, heightCm, lengthCm float64) {
	if widthCm > 0 {
		e.widthCm = widthCm
	}
	if heightCm > 0 {
		e.heightCm = heightCm
	}
	if lengthCm > 0 {
		e.lengthCm = lengthCm
	}
	e.initialized = true
}

// Dimensions returns the current box dimensions.
func (e *Estimator) Dimensions() (widthCm, heightCm, lengthCm float64) {
	return e.widthCm, e.heightCm, e.lengthCm
}

// Derive recomputes the package from the given cart lines. Blank dimensions
// are filled with the defaults exactly once; weight is the sum of line
// weight times quantity floored at minPackageWeightKg; insurance is the cart
// subtotal.
func (e *Estimator) Derive(items []cart.Line) Package {
	if !e.initialized {
		e.initialized = true
		if e.widthCm == 0 {
			e.widthCm = defaultWidthCm
		}
		if e.heightCm == 0 {
			e.heightCm = defaultHeightCm
		}
		if e.lengthCm == 0 {
			e.lengthCm = defaultLengthCm
		}
	}

	weight := 0.0
	insurance := decimal.Zero
	for _, l := range items {
		weight += l.WeightKg * float64(l.Quantity)
		insurance = insurance.Add(l.Total())
	}
	if weight < minPackageWeightKg {
		weight = minPackageWeightKg
	}

	return Package{
		WidthCm:   e.widthCm,
		HeightCm:  e.heightCm,
		LengthCm:  e.lengthCm,
		WeightKg:  weight,
		Insurance: insurance,
	}
}
