package scraping

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ps-vitor/phone-prices/internal/domain"
	"github.com/ps-vitor/phone-prices/internal/money"
)

// CleanOptions captures how a site wants the model name phrased.
type CleanOptions struct {
	// CompactApple turns "iPhone 15" into "iPhone15" for Apple models.
	CompactApple bool
	// StripGalaxy drops the "Galaxy " prefix for non-Apple models.
	StripGalaxy bool
	// PlusWord spells "+" as " Plus" for non-Apple models.
	PlusWord bool
}

var spaces = regexp.MustCompile(`\s+`)

// CleanQuery builds the search term for a site. The "(Estimated)" tag is
// always removed.
func CleanQuery(brand, model string, opts CleanOptions) string {
	term := domain.StripEstimated(model)
	if strings.EqualFold(brand, domain.BrandApple) {
		if opts.CompactApple {
			term = strings.ReplaceAll(term, "iPhone ", "iPhone")
		}
	} else {
		if opts.StripGalaxy {
			term = strings.ReplaceAll(term, "Galaxy ", "")
		}
		if opts.PlusWord {
			term = strings.ReplaceAll(term, "+", " Plus")
		}
	}
	return strings.TrimSpace(spaces.ReplaceAllString(term, " "))
}

// TitleMatches applies the permissive listing filter: the title must mention
// the brand (when required) and either contain the search term or be
// contained by it.
func TitleMatches(title, brand, term string, requireBrand bool) bool {
	t := strings.ToLower(strings.TrimSpace(title))
	s := strings.ToLower(strings.TrimSpace(term))
	if t == "" || s == "" {
		return false
	}
	if requireBrand && !strings.Contains(t, strings.ToLower(brand)) {
		return false
	}
	return strings.Contains(t, s) || strings.Contains(s, t)
}

var (
	nonPrice    = regexp.MustCompile(`[^\d.]`)
	priceNumber = regexp.MustCompile(`\d+(?:\.\d+)?`)
)

// ParsePrice strips everything but digits and dots and reads the first number.
// Zero and unparseable text are rejected.
func ParsePrice(text string) (float64, bool) {
	cleaned := nonPrice.ReplaceAllString(text, "")
	m := priceNumber.FindString(cleaned)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

// Selectors locate listings on a results page.
type Selectors struct {
	Item  string
	Title string
	Price string
}

// Listing is what ScanListing needs to know about the query.
type Listing struct {
	Source       string
	Brand        string
	Term         string
	RequireBrand bool
	Selectors    Selectors
}

// ScanListing returns the first matching listing with a parseable SAR price.
// Same-site duplicates are not ranked.
func ScanListing(root *goquery.Selection, l Listing, fx money.FX) (domain.PriceQuote, bool) {
	var (
		quote domain.PriceQuote
		found bool
	)
	root.Find(l.Selectors.Item).EachWithBreak(func(_ int, item *goquery.Selection) bool {
		title := strings.TrimSpace(item.Find(l.Selectors.Title).First().Text())
		if !TitleMatches(title, l.Brand, l.Term, l.RequireBrand) {
			return true
		}
		priceEl := item.Find(l.Selectors.Price).First()
		if priceEl.Length() == 0 {
			return true
		}
		sar, ok := ParsePrice(priceEl.Text())
		if !ok {
			return true
		}
		p := fx.FromSAR(sar)
		quote = domain.PriceQuote{TitleMatched: title, USD: p.USD, SAR: p.SAR, Source: l.Source}
		found = true
		return false
	})
	return quote, found
}
