// Package scraping defines the source adapter contract and the helpers every
// retailer strategy shares: query cleaning, title matching, price parsing and
// page fetching.
package scraping

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ps-vitor/phone-prices/internal/domain"
	"github.com/ps-vitor/phone-prices/pkg/logger"
)

// ErrNotFound is returned by a Source when no listing matched.
var ErrNotFound = errors.New("no matching listing")

// Adapter is the contract the pricing layer depends on. Quote never fails:
// network, parse and timeout problems all surface as ok=false.
type Adapter interface {
	Name() string
	Quote(ctx context.Context, brand, model string) (domain.PriceQuote, bool)
}

// Source is a site strategy that reports its failures. Wrap it with Guard to
// obtain an Adapter.
type Source interface {
	Name() string
	Lookup(ctx context.Context, brand, model string) (domain.PriceQuote, error)
}

// Observer receives one outcome per adapter call.
type Observer interface {
	ObserveQuote(source, outcome string, took time.Duration)
}

// Outcomes reported to an Observer.
const (
	OutcomeFound    = "found"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
)

type guarded struct {
	src Source
	log *logger.Logger
	obs Observer
}

// Guard turns a Source into an Adapter that logs and swallows every failure,
// including panics raised by the strategy.
func Guard(src Source, log *logger.Logger, obs Observer) Adapter {
	if log == nil {
		log = logger.Discard()
	}
	return &guarded{src: src, log: log, obs: obs}
}

func (g *guarded) Name() string { return g.src.Name() }

func (g *guarded) Quote(ctx context.Context, brand, model string) (q domain.PriceQuote, ok bool) {
	start := time.Now()
	outcome := OutcomeError
	defer func() {
		if r := recover(); r != nil {
			g.log.Errorf("%s: panic while quoting %s %s: %v", g.src.Name(), brand, model, r)
			q, ok, outcome = domain.PriceQuote{}, false, OutcomeError
		}
		if g.obs != nil {
			g.obs.ObserveQuote(g.src.Name(), outcome, time.Since(start))
		}
	}()

	q, err := g.src.Lookup(ctx, brand, model)
	switch {
	case errors.Is(err, ErrNotFound):
		outcome = OutcomeNotFound
		g.log.Debugf("%s: no listing for %s %s", g.src.Name(), brand, model)
		return domain.PriceQuote{}, false
	case err != nil:
		g.log.Warnf("%s: error quoting %s %s: %v", g.src.Name(), brand, model, err)
		return domain.PriceQuote{}, false
	case !q.Usable():
		outcome = OutcomeNotFound
		return domain.PriceQuote{}, false
	}
	if q.Source == "" {
		q.Source = g.src.Name()
	}
	outcome = OutcomeFound
	g.log.Infof("%s: found %s %s: %q SAR %.2f (USD %.0f)", g.src.Name(), brand, model, q.TitleMatched, q.SAR, q.USD)
	return q, true
}

// Registry holds adapters in priority order. Priority breaks price ties
// during reconciliation.
type Registry struct {
	mu       sync.RWMutex
	adapters []Adapter
}

// NewRegistry registers adapters in priority order. A duplicate name is an
// error.
func NewRegistry(adapters ...Adapter) (*Registry, error) {
	r := &Registry{}
	for _, a := range adapters {
		if err := r.Register(a); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register appends an adapter at the lowest priority. Names must be unique.
func (r *Registry) Register(a Adapter) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.adapters {
		if existing.Name() == a.Name() {
			return fmt.Errorf("adapter %q already registered", a.Name())
		}
	}
	r.adapters = append(r.adapters, a)
	return nil
}

// Adapters returns a copy of the registered adapters, highest priority first.
func (r *Registry) Adapters() []Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Adapter, len(r.adapters))
	copy(out, r.adapters)
	return out
}

// Names lists adapter names in priority order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.adapters))
	for _, a := range r.adapters {
		names = append(names, a.Name())
	}
	return names
}

// Get looks an adapter up by name.
func (r *Registry) Get(name string) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.adapters {
		if a.Name() == name {
			return a, true
		}
	}
	return nil, false
}
