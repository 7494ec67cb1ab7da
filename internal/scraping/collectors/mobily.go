// internal/scraping/collectors/mobily.go
package collectors

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly"

	"github.com/ps-vitor/phone-prices/internal/domain"
	"github.com/ps-vitor/phone-prices/internal/money"
	"github.com/ps-vitor/phone-prices/internal/scraping"
)

// Mobily has no usable search; every lookup scans the brand's category page.
var mobilyCategoryPaths = map[string]string{
	domain.BrandSamsung: "/product-category/smartphones-ar/%D8%A7%D8%AC%D9%87%D8%B2%D8%A9-%D8%B3%D8%A7%D9%85%D8%B3%D9%88%D9%86%D8%AC/",
	domain.BrandApple:   "/product-category/smartphones-ar/%D8%A7%D8%AC%D9%87%D8%B2%D8%A9-%D8%A7%D9%8A%D9%81%D9%88%D9%86/",
}

var mobilySelectors = scraping.Selectors{
	Item:  ".product-small",
	Title: ".product-title a",
	Price: ".price .amount",
}

// MobilyOptions tunes the colly collector.
type MobilyOptions struct {
	BaseURL        string
	Timeout        time.Duration
	UserAgent      string
	AcceptLanguage string
	// Parallelism and RandomDelay feed colly's per-domain limit rule.
	Parallelism int
	RandomDelay time.Duration
}

type MobilyCollector struct {
	collector      *colly.Collector
	baseURL        string
	acceptLanguage string
	fx             money.FX

	mu sync.Mutex
}

func NewMobilyCollector(opts MobilyOptions, fx money.FX) (*MobilyCollector, error) {
	baseURL := base(opts.BaseURL, MobilyBaseURL)
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("mobily base url: %w", err)
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = scraping.DefaultUserAgent
	}
	c := colly.NewCollector(
		colly.AllowedDomains(u.Hostname(), u.Host),
		colly.UserAgent(ua),
		colly.AllowURLRevisit(),
	)
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = scraping.DefaultTimeout
	}
	c.SetRequestTimeout(timeout)

	parallelism := opts.Parallelism
	if parallelism <= 0 {
		parallelism = 2
	}
	if err := c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: parallelism,
		RandomDelay: opts.RandomDelay,
	}); err != nil {
		return nil, fmt.Errorf("mobily limit rule: %w", err)
	}

	al := opts.AcceptLanguage
	if al == "" {
		al = scraping.DefaultAcceptLanguage
	}
	return &MobilyCollector{collector: c, baseURL: baseURL, acceptLanguage: al, fx: fx}, nil
}

func (m *MobilyCollector) Name() string { return MobilyName }

// CategoryURL returns the listing page scanned for a brand.
func (m *MobilyCollector) CategoryURL(brand string) (string, bool) {
	for b, path := range mobilyCategoryPaths {
		if strings.EqualFold(b, brand) {
			return m.baseURL + path, true
		}
	}
	return "", false
}

// Lookup matches on the model name alone: category titles rarely repeat the brand.
func (m *MobilyCollector) Lookup(ctx context.Context, brand, model string) (domain.PriceQuote, error) {
	pageURL, ok := m.CategoryURL(brand)
	if !ok {
		return domain.PriceQuote{}, scraping.ErrNotFound
	}
	if err := ctx.Err(); err != nil {
		return domain.PriceQuote{}, err
	}
	term := scraping.CleanQuery(brand, model, scraping.CleanOptions{})

	// Clone shares the limit rule and http backend but not the callbacks.
	m.mu.Lock()
	c := m.collector.Clone()
	m.mu.Unlock()

	var (
		quote    domain.PriceQuote
		found    bool
		visitErr error
	)
	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept-Language", m.acceptLanguage)
	})
	c.OnHTML("html", func(e *colly.HTMLElement) {
		if found {
			return
		}
		quote, found = scraping.ScanListing(e.DOM, scraping.Listing{
			Source:    MobilyName,
			Brand:     brand,
			Term:      term,
			Selectors: mobilySelectors,
		}, m.fx)
	})
	c.OnError(func(r *colly.Response, err error) {
		visitErr = fmt.Errorf("request URL %v failed with status %d: %w", r.Request.URL, r.StatusCode, err)
	})

	if err := c.Visit(pageURL); err != nil && visitErr == nil {
		visitErr = err
	}
	c.Wait()

	if visitErr != nil {
		return domain.PriceQuote{}, visitErr
	}
	if !found {
		return domain.PriceQuote{}, scraping.ErrNotFound
	}
	return quote, nil
}
