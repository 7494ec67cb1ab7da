// Package pricing reconciles quotes from every source into one price per
// catalog entry, falling back to the estimation model.
package pricing

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/ps-vitor/phone-prices/internal/domain"
	"github.com/ps-vitor/phone-prices/internal/estimate"
	"github.com/ps-vitor/phone-prices/internal/scraping"
	"github.com/ps-vitor/phone-prices/pkg/logger"
)

// Resolve picks the quote with the lowest SAR price. quotes must be in
// adapter priority order; on a tie the earlier quote wins. Unusable quotes
// are ignored. ok is false when nothing usable remains.
func Resolve(quotes []domain.PriceQuote) (best domain.PriceQuote, ok bool) {
	for _, q := range quotes {
		if !q.Usable() {
			continue
		}
		if !ok || q.SAR < best.SAR {
			best, ok = q, true
		}
	}
	return best, ok
}

// Result is the outcome of pricing one entry.
type Result struct {
	Quote domain.PriceQuote
	// Candidates holds every live quote received, in priority order.
	Candidates []domain.PriceQuote
	// Live is false when the price came from the estimation model.
	Live bool
}

type Resolver struct {
	registry  *scraping.Registry
	estimator *estimate.Estimator
	log       *logger.Logger
}

func NewResolver(registry *scraping.Registry, estimator *estimate.Estimator, log *logger.Logger) *Resolver {
	if registry == nil {
		registry = &scraping.Registry{}
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Resolver{registry: registry, estimator: estimator, log: log}
}

// Estimator returns the fallback model.
func (r *Resolver) Estimator() *estimate.Estimator { return r.estimator }

// Quotes asks every adapter at once and returns the usable answers in
// priority order, regardless of completion order.
func (r *Resolver) Quotes(ctx context.Context, brand, model string) []domain.PriceQuote {
	adapters := r.registry.Adapters()
	slots := make([]domain.PriceQuote, len(adapters))
	found := make([]bool, len(adapters))

	var g errgroup.Group
	for i, a := range adapters {
		i, a := i, a
		g.Go(func() error {
			slots[i], found[i] = a.Quote(ctx, brand, model)
			return nil
		})
	}
	_ = g.Wait()

	out := make([]domain.PriceQuote, 0, len(adapters))
	for i := range slots {
		if found[i] && slots[i].Usable() {
			out = append(out, slots[i])
		}
	}
	return out
}

// Price resolves one entry. With live=false no adapter is contacted.
func (r *Resolver) Price(ctx context.Context, brand, model string, releaseYear int, live bool) Result {
	if live {
		candidates := r.Quotes(ctx, brand, model)
		if best, ok := Resolve(candidates); ok {
			r.log.Debugf("%s %s: %d quote(s), best %s SAR %.0f", brand, model, len(candidates), best.Source, best.SAR)
			return Result{Quote: best, Candidates: candidates, Live: true}
		}
		r.log.Infof("%s %s: no live quote, estimating", brand, model)
	}
	return Result{Quote: r.estimator.Estimate(brand, model, releaseYear)}
}
