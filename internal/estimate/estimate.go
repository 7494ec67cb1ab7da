// Package estimate synthesizes a plausible price for a model when no live
// source produced a usable quote. Without jitter the result depends only on
// the inputs and the configured reference year.
package estimate

import (
	"math/rand"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ps-vitor/phone-prices/internal/domain"
	"github.com/ps-vitor/phone-prices/internal/money"
)

// Age step function, applied as a multiplier on the base price.
const (
	NewerPremium      = 1.10 // released after the reference year
	CurrentFactor     = 1.00
	OneGenFactor      = 0.80
	TwoGenFactor      = 0.60
	ThreeGenFactor    = 0.40
	OlderFactor       = 0.30
	OldestStepInYears = 3

	// DefaultMarketMultiplier reflects Saudi retail pricing over US list prices.
	DefaultMarketMultiplier = 1.10

	// DefaultJitterFraction bounds simulated fluctuation to +/-5%.
	DefaultJitterFraction = 0.05

	// MinimumUSD keeps every estimate strictly positive.
	MinimumUSD = 1
)

// Samsung base prices (USD).
const (
	SamsungFold    = 1799
	SamsungFlip    = 999
	SamsungUltra   = 1199
	SamsungPlus    = 999
	SamsungFE      = 599
	SamsungS       = 799
	SamsungNote    = 899
	SamsungAHigh   = 449 // A50 and up
	SamsungAMid    = 299 // A30 to A49
	SamsungALow    = 199 // below A30
	SamsungAPlain  = 299 // A series without a number
	SamsungDefault = 499

	SamsungAHighFrom = 50
	SamsungAMidFrom  = 30
)

// Apple base prices (USD).
const (
	AppleProMax   = 1099
	ApplePro      = 999
	ApplePlus     = 899
	AppleMini     = 699
	AppleSE       = 429
	AppleIPhone   = 799
	AppleIPadPro  = 799
	AppleIPadAir  = 599
	AppleIPadMini = 499
	AppleIPad     = 329
	AppleDefault  = 699
)

// Base prices for brands without a dedicated table.
const (
	GenericFold    = 1799
	GenericFlip    = 999
	GenericUltra   = 1199
	GenericProMax  = 1099
	GenericPro     = 999
	GenericPlus    = 899
	GenericDefault = 499
)

var (
	aSeries = regexp.MustCompile(`\ba(\d+)`)
	feWord  = regexp.MustCompile(`\bfe\b`)
)

type tier struct {
	name  string
	match func(lower string) bool
	price float64
}

func contains(kw string) func(string) bool {
	return func(s string) bool { return strings.Contains(s, kw) }
}

// Tiers are checked in order; the first match wins, so more specific keywords
// come first ("pro max" before "pro", "ultra" before "galaxy s").
var samsungTiers = []tier{
	{"fold", contains("fold"), SamsungFold},
	{"flip", contains("flip"), SamsungFlip},
	{"ultra", contains("ultra"), SamsungUltra},
	{"plus", func(s string) bool { return strings.Contains(s, "plus") || strings.Contains(s, "+") }, SamsungPlus},
	{"fe", feWord.MatchString, SamsungFE},
	{"galaxy s", contains("galaxy s"), SamsungS},
	{"note", contains("note"), SamsungNote},
}

var appleTiers = []tier{
	{"pro max", contains("pro max"), AppleProMax},
	{"ipad pro", contains("ipad pro"), AppleIPadPro},
	{"ipad air", contains("ipad air"), AppleIPadAir},
	{"ipad mini", contains("ipad mini"), AppleIPadMini},
	{"ipad", contains("ipad"), AppleIPad},
	{"pro", contains("pro"), ApplePro},
	{"plus", contains("plus"), ApplePlus},
	{"mini", contains("mini"), AppleMini},
	{"iphone se", contains("iphone se"), AppleSE},
	{"iphone", contains("iphone"), AppleIPhone},
}

var genericTiers = []tier{
	{"fold", contains("fold"), GenericFold},
	{"flip", contains("flip"), GenericFlip},
	{"ultra", contains("ultra"), GenericUltra},
	{"pro max", contains("pro max"), GenericProMax},
	{"pro", contains("pro"), GenericPro},
	{"plus", func(s string) bool { return strings.Contains(s, "plus") || strings.Contains(s, "+") }, GenericPlus},
}

// BasePrice picks the tier price for a model name.
func BasePrice(brand, model string) float64 {
	lower := strings.ToLower(domain.StripEstimated(model))
	switch {
	case strings.EqualFold(brand, domain.BrandSamsung):
		if p, ok := firstTier(samsungTiers, lower); ok {
			return p
		}
		if strings.Contains(lower, "galaxy a") {
			return samsungASeries(lower)
		}
		return SamsungDefault
	case strings.EqualFold(brand, domain.BrandApple):
		if p, ok := firstTier(appleTiers, lower); ok {
			return p
		}
		return AppleDefault
	default:
		if p, ok := firstTier(genericTiers, lower); ok {
			return p
		}
		return GenericDefault
	}
}

func firstTier(tiers []tier, lower string) (float64, bool) {
	for _, t := range tiers {
		if t.match(lower) {
			return t.price, true
		}
	}
	return 0, false
}

func samsungASeries(lower string) float64 {
	m := aSeries.FindStringSubmatch(lower)
	if m == nil {
		return SamsungAPlain
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return SamsungAPlain
	}
	switch {
	case n >= SamsungAHighFrom:
		return SamsungAHigh
	case n >= SamsungAMidFrom:
		return SamsungAMid
	default:
		return SamsungALow
	}
}

// AgeFactor maps generations behind the reference year to a multiplier.
func AgeFactor(age int) float64 {
	switch {
	case age < 0:
		return NewerPremium
	case age == 0:
		return CurrentFactor
	case age == 1:
		return OneGenFactor
	case age == 2:
		return TwoGenFactor
	case age == OldestStepInYears:
		return ThreeGenFactor
	default:
		return OlderFactor
	}
}

// Options configures an Estimator.
type Options struct {
	// ReferenceYear anchors the age step function. Zero means the current year
	// at the time of each call.
	ReferenceYear    int
	MarketMultiplier float64
	FX               money.FX
}

// Estimator is safe for concurrent use unless jitter is enabled.
type Estimator struct {
	referenceYear int
	market        decimal.Decimal
	fx            money.FX

	rnd            *rand.Rand
	jitterFraction float64
}

func New(opts Options) *Estimator {
	m := opts.MarketMultiplier
	if m <= 0 {
		m = DefaultMarketMultiplier
	}
	fx := opts.FX
	if fx.Rate() == 0 {
		fx = money.NewFX(money.DefaultSARPerUSD)
	}
	return &Estimator{
		referenceYear: opts.ReferenceYear,
		market:        decimal.NewFromFloat(m),
		fx:            fx,
	}
}

// WithJitter returns a copy that perturbs every estimate by a random factor in
// [1-fraction, 1+fraction]. Only simulated updates use it.
func (e *Estimator) WithJitter(rnd *rand.Rand, fraction float64) *Estimator {
	cp := *e
	if fraction <= 0 {
		fraction = DefaultJitterFraction
	}
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	cp.rnd = rnd
	cp.jitterFraction = fraction
	return &cp
}

// FX returns the converter estimates are priced with.
func (e *Estimator) FX() money.FX { return e.fx }

// ReferenceYear returns the year the age step function is anchored to.
func (e *Estimator) ReferenceYear() int {
	if e.referenceYear > 0 {
		return e.referenceYear
	}
	return time.Now().Year()
}

// Estimate always returns a usable quote tagged "estimated". An unknown
// release year (zero) is priced as current.
func (e *Estimator) Estimate(brand, model string, releaseYear int) domain.PriceQuote {
	usd := decimal.NewFromFloat(BasePrice(brand, model))

	age := 0
	if releaseYear > 0 {
		age = e.ReferenceYear() - releaseYear
	}
	usd = usd.Mul(decimal.NewFromFloat(AgeFactor(age))).Round(0)
	usd = usd.Mul(e.market).Round(0)

	if e.rnd != nil {
		f := 1 - e.jitterFraction + e.rnd.Float64()*2*e.jitterFraction
		usd = usd.Mul(decimal.NewFromFloat(f)).Round(0)
	}
	if usd.LessThan(decimal.NewFromInt(MinimumUSD)) {
		usd = decimal.NewFromInt(MinimumUSD)
	}

	p := e.fx.FromUSD(usd.InexactFloat64())
	return domain.PriceQuote{
		TitleMatched: domain.StripEstimated(model),
		USD:          p.USD,
		SAR:          p.SAR,
		Source:       domain.SourceEstimated,
	}
}
