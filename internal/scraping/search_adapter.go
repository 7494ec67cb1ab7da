package scraping

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/ps-vitor/phone-prices/internal/domain"
	"github.com/ps-vitor/phone-prices/internal/money"
)

// SearchSite describes a retailer with a query-string search page.
type SearchSite struct {
	Name string
	// SearchURL contains a single %s that receives the escaped search term.
	SearchURL    string
	Clean        CleanOptions
	Selectors    Selectors
	RequireBrand bool
}

// SearchAdapter quotes a model from the first page of a site's search results.
type SearchAdapter struct {
	site    SearchSite
	fetcher *Fetcher
	fx      money.FX
}

func NewSearchAdapter(site SearchSite, fetcher *Fetcher, fx money.FX) *SearchAdapter {
	return &SearchAdapter{site: site, fetcher: fetcher, fx: fx}
}

func (a *SearchAdapter) Name() string { return a.site.Name }

// SearchURL returns the page that will be fetched for a model.
func (a *SearchAdapter) SearchURL(brand, model string) (string, string) {
	term := CleanQuery(brand, model, a.site.Clean)
	if strings.Contains(a.site.SearchURL, "%s") {
		return fmt.Sprintf(a.site.SearchURL, url.QueryEscape(term)), term
	}
	return a.site.SearchURL, term
}

func (a *SearchAdapter) Lookup(ctx context.Context, brand, model string) (domain.PriceQuote, error) {
	u, term := a.SearchURL(brand, model)
	if term == "" {
		return domain.PriceQuote{}, ErrNotFound
	}
	doc, err := a.fetcher.Document(ctx, u)
	if err != nil {
		return domain.PriceQuote{}, err
	}
	q, ok := ScanListing(doc.Selection, Listing{
		Source:       a.site.Name,
		Brand:        brand,
		Term:         term,
		RequireBrand: a.site.RequireBrand,
		Selectors:    a.site.Selectors,
	}, a.fx)
	if !ok {
		return domain.PriceQuote{}, ErrNotFound
	}
	return q, nil
}
