package collectors

import (
	"fmt"
	"strings"
	"time"

	"github.com/ps-vitor/phone-prices/internal/money"
	"github.com/ps-vitor/phone-prices/internal/scraping"
	"github.com/ps-vitor/phone-prices/pkg/logger"
)

// SourceSettings toggles and relocates one source.
type SourceSettings struct {
	Enabled bool
	BaseURL string
}

// Options is everything needed to build the default registry.
type Options struct {
	Fetch       scraping.FetchOptions
	Sources     map[string]SourceSettings
	Parallelism int
	RandomDelay time.Duration
}

func enabled(opts Options, name string) (SourceSettings, bool) {
	if opts.Sources == nil {
		return SourceSettings{Enabled: true}, true
	}
	for k, s := range opts.Sources {
		if strings.EqualFold(k, name) {
			return s, s.Enabled
		}
	}
	return SourceSettings{}, false
}

// NewRegistry builds the enabled sources in PriorityOrder, each wrapped by
// scraping.Guard.
func NewRegistry(opts Options, fx money.FX, log *logger.Logger, obs scraping.Observer) (*scraping.Registry, error) {
	if log == nil {
		log = logger.Discard()
	}
	fetcher := scraping.NewFetcher(opts.Fetch)
	reg := &scraping.Registry{}

	for _, name := range PriorityOrder {
		s, ok := enabled(opts, name)
		if !ok {
			continue
		}
		var src scraping.Source
		switch name {
		case ExtraName:
			src = NewExtra(s.BaseURL, fetcher, fx)
		case NoonName:
			src = NewNoon(s.BaseURL, fetcher, fx)
		case JarirName:
			src = NewJarir(s.BaseURL, fetcher, fx)
		case AlmaneaName:
			src = NewAlmanea(s.BaseURL, fetcher, fx)
		case MobilyName:
			m, err := NewMobilyCollector(MobilyOptions{
				BaseURL:        s.BaseURL,
				Timeout:        fetcher.Timeout(),
				UserAgent:      fetcher.UserAgent(),
				AcceptLanguage: fetcher.AcceptLanguage(),
				Parallelism:    opts.Parallelism,
				RandomDelay:    opts.RandomDelay,
			}, fx)
			if err != nil {
				return nil, err
			}
			src = m
		}
		if err := reg.Register(scraping.Guard(src, log.With(name), obs)); err != nil {
			return nil, fmt.Errorf("register %s: %w", name, err)
		}
	}
	return reg, nil
}
