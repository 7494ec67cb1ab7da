// Package money converts between USD and SAR at a fixed rate.
package money

import (
	"github.com/shopspring/decimal"

	"github.com/ps-vitor/phone-prices/internal/domain"
)

// DefaultSARPerUSD is the pegged riyal rate.
const DefaultSARPerUSD = 3.75

// FX converts prices at a fixed rate, rounding to whole currency units
// (half away from zero).
type FX struct {
	rate decimal.Decimal
}

// NewFX returns a converter. A non-positive rate falls back to DefaultSARPerUSD.
func NewFX(sarPerUSD float64) FX {
	if sarPerUSD <= 0 {
		sarPerUSD = DefaultSARPerUSD
	}
	return FX{rate: decimal.NewFromFloat(sarPerUSD)}
}

// Rate returns the configured SAR per USD.
func (f FX) Rate() float64 {
	r, _ := f.rate.Float64()
	return r
}

// FromUSD derives the SAR amount: sar = round(usd * rate).
func (f FX) FromUSD(usd float64) domain.Price {
	u := decimal.NewFromFloat(usd).Round(0)
	s := u.Mul(f.rate).Round(0)
	return domain.Price{USD: u.InexactFloat64(), SAR: s.InexactFloat64()}
}

// FromSAR keeps the native SAR amount and derives usd = round(sar / rate).
func (f FX) FromSAR(sar float64) domain.Price {
	s := decimal.NewFromFloat(sar)
	u := s.Div(f.rate).Round(0)
	return domain.Price{USD: u.InexactFloat64(), SAR: s.InexactFloat64()}
}

// Consistent reports whether p follows one of the two catalog conversion
// rules: sar derived from usd, or usd derived from a native sar amount. A
// SAR-sourced price can sit up to rate/2 units away from round(usd * rate).
func (f FX) Consistent(p domain.Price) bool {
	return f.DerivedFromUSD(p) || f.DerivedFromSAR(p)
}

// DerivedFromUSD reports |round(usd * rate) - sar| <= 1.
func (f FX) DerivedFromUSD(p domain.Price) bool {
	usd := decimal.NewFromFloat(p.USD)
	sar := decimal.NewFromFloat(p.SAR)
	return usd.Mul(f.rate).Round(0).Sub(sar).Abs().LessThanOrEqual(decimal.NewFromInt(1))
}

// DerivedFromSAR reports |round(sar / rate) - usd| <= 1.
func (f FX) DerivedFromSAR(p domain.Price) bool {
	usd := decimal.NewFromFloat(p.USD)
	sar := decimal.NewFromFloat(p.SAR)
	return sar.Div(f.rate).Round(0).Sub(usd).Abs().LessThanOrEqual(decimal.NewFromInt(1))
}
