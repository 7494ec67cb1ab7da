// Package collectors holds one strategy per retailer. Each strategy only knows
// its site's URL scheme, markup and naming quirks.
package collectors

import (
	"strings"

	"github.com/ps-vitor/phone-prices/internal/money"
	"github.com/ps-vitor/phone-prices/internal/scraping"
)

// Source names double as the priceSource tag written to the catalog.
const (
	ExtraName   = "extra.com"
	NoonName    = "noon.com"
	JarirName   = "jarir.com"
	MobilyName  = "mobily.com.sa"
	AlmaneaName = "almanea.sa"
)

// Default base URLs.
const (
	ExtraBaseURL   = "https://www.extra.com"
	NoonBaseURL    = "https://www.noon.com"
	JarirBaseURL   = "https://www.jarir.com"
	MobilyBaseURL  = "https://shop.mobily.com.sa"
	AlmaneaBaseURL = "https://www.almanea.sa"
)

// PriorityOrder is the tie-break order used when two sources quote the same price.
var PriorityOrder = []string{ExtraName, NoonName, JarirName, MobilyName, AlmaneaName}

func base(u, def string) string {
	u = strings.TrimSpace(u)
	if u == "" {
		u = def
	}
	return strings.TrimRight(u, "/")
}

// NewExtra drops "Galaxy " and spells "+" as "Plus"; iPhone names are compacted.
func NewExtra(baseURL string, f *scraping.Fetcher, fx money.FX) *scraping.SearchAdapter {
	return scraping.NewSearchAdapter(scraping.SearchSite{
		Name:      ExtraName,
		SearchURL: base(baseURL, ExtraBaseURL) + "/ar-sa/search/?text=%s",
		Clean:     scraping.CleanOptions{CompactApple: true, StripGalaxy: true, PlusWord: true},
		Selectors: scraping.Selectors{
			Item:  ".product-item",
			Title: ".product-title",
			Price: ".product-price .product-price__main",
		},
		RequireBrand: true,
	}, f, fx)
}

func NewNoon(baseURL string, f *scraping.Fetcher, fx money.FX) *scraping.SearchAdapter {
	return scraping.NewSearchAdapter(scraping.SearchSite{
		Name:      NoonName,
		SearchURL: base(baseURL, NoonBaseURL) + "/saudi-ar/search?q=%s",
		Clean:     scraping.CleanOptions{CompactApple: true, StripGalaxy: true},
		Selectors: scraping.Selectors{
			Item:  `[data-qa="product-item"]`,
			Title: `[data-qa="product-name"]`,
			Price: `[data-qa="product-price"]`,
		},
		RequireBrand: true,
	}, f, fx)
}

func NewJarir(baseURL string, f *scraping.Fetcher, fx money.FX) *scraping.SearchAdapter {
	return scraping.NewSearchAdapter(scraping.SearchSite{
		Name:      JarirName,
		SearchURL: base(baseURL, JarirBaseURL) + "/sa-en/catalogsearch/result/?q=%s",
		Clean:     scraping.CleanOptions{CompactApple: true, StripGalaxy: true},
		Selectors: scraping.Selectors{
			Item:  ".product-item",
			Title: ".product-item-link",
			Price: ".price",
		},
		RequireBrand: true,
	}, f, fx)
}

// NewAlmanea searches with the full model name.
func NewAlmanea(baseURL string, f *scraping.Fetcher, fx money.FX) *scraping.SearchAdapter {
	return scraping.NewSearchAdapter(scraping.SearchSite{
		Name:      AlmaneaName,
		SearchURL: base(baseURL, AlmaneaBaseURL) + "/search?q=%s",
		Selectors: scraping.Selectors{
			Item:  ".product-item",
			Title: ".product-title",
			Price: ".price",
		},
		RequireBrand: true,
	}, f, fx)
}
