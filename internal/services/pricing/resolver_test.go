package pricing

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ps-vitor/phone-prices/internal/domain"
	"github.com/ps-vitor/phone-prices/internal/estimate"
	"github.com/ps-vitor/phone-prices/internal/money"
	"github.com/ps-vitor/phone-prices/internal/scraping"
)

type fakeAdapter struct {
	name  string
	sar   float64
	delay time.Duration
	calls int32
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) Quote(ctx context.Context, brand, model string) (domain.PriceQuote, bool) {
	atomic.AddInt32(&f.calls, 1)
	time.Sleep(f.delay)
	if f.sar == 0 {
		return domain.PriceQuote{}, false
	}
	p := money.NewFX(3.75).FromSAR(f.sar)
	return domain.PriceQuote{TitleMatched: model, USD: p.USD, SAR: p.SAR, Source: f.name}, true
}

func registry(t *testing.T, adapters ...scraping.Adapter) *scraping.Registry {
	t.Helper()
	reg, err := scraping.NewRegistry(adapters...)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return reg
}

func newEstimator() *estimate.Estimator {
	return estimate.New(estimate.Options{ReferenceYear: 2025})
}

func TestResolve_LowestPriceFirstPriorityOnTie(t *testing.T) {
	quotes := []domain.PriceQuote{
		{SAR: 1500, USD: 400, Source: "A"},
		{SAR: 1200, USD: 320, Source: "B"},
		{SAR: 1200, USD: 320, Source: "C"},
	}
	best, ok := Resolve(quotes)
	if !ok || best.Source != "B" {
		t.Fatalf("got %+v ok=%v, want B", best, ok)
	}
}

func TestResolve_IgnoresUnusable(t *testing.T) {
	if _, ok := Resolve(nil); ok {
		t.Fatalf("empty input must be unresolved")
	}
	best, ok := Resolve([]domain.PriceQuote{{Source: "zero"}, {SAR: 900, USD: 240, Source: "ok"}})
	if !ok || best.Source != "ok" {
		t.Fatalf("got %+v", best)
	}
}

func TestResolver_OrderIndependentOfCompletion(t *testing.T) {
	// The first adapter is the slowest, yet it still wins the tie.
	a := &fakeAdapter{name: "A", sar: 1200, delay: 40 * time.Millisecond}
	b := &fakeAdapter{name: "B", sar: 1200}
	c := &fakeAdapter{name: "C", sar: 1500, delay: 10 * time.Millisecond}
	r := NewResolver(registry(t, a, b, c), newEstimator(), nil)

	res := r.Price(context.Background(), "Samsung", "Galaxy S24", 2024, true)
	if !res.Live || res.Quote.Source != "A" {
		t.Fatalf("got %+v", res)
	}
	if len(res.Candidates) != 3 || res.Candidates[0].Source != "A" || res.Candidates[2].Source != "C" {
		t.Fatalf("candidates not in priority order: %+v", res.Candidates)
	}
}

func TestResolver_RunsAdaptersConcurrently(t *testing.T) {
	var adapters []scraping.Adapter
	for _, n := range []string{"A", "B", "C"} {
		adapters = append(adapters, &fakeAdapter{name: n, sar: 1000, delay: 100 * time.Millisecond})
	}
	r := NewResolver(registry(t, adapters...), newEstimator(), nil)

	start := time.Now()
	r.Price(context.Background(), "Apple", "iPhone 15", 2023, true)
	if took := time.Since(start); took > 250*time.Millisecond {
		t.Fatalf("adapters ran sequentially: %v", took)
	}
}

func TestResolver_AllNullFallsBackToEstimate(t *testing.T) {
	r := NewResolver(registry(t,
		&fakeAdapter{name: "A"}, &fakeAdapter{name: "B"}, &fakeAdapter{name: "C"},
	), newEstimator(), nil)

	res := r.Price(context.Background(), "Samsung", "Galaxy S23 Ultra", 2024, true)
	if res.Live || res.Quote.Source != domain.SourceEstimated {
		t.Fatalf("got %+v", res)
	}
	if res.Quote.USD <= 0 || res.Quote.SAR <= 0 {
		t.Fatalf("estimate must be positive: %+v", res.Quote)
	}
}

func TestResolver_OfflineSkipsAdapters(t *testing.T) {
	a := &fakeAdapter{name: "A", sar: 1000}
	r := NewResolver(registry(t, a), newEstimator(), nil)

	res := r.Price(context.Background(), "Samsung", "Galaxy S27 (Estimated)", 2027, false)
	if res.Quote.Source != domain.SourceEstimated {
		t.Fatalf("got %+v", res)
	}
	if atomic.LoadInt32(&a.calls) != 0 {
		t.Fatalf("adapter was called")
	}
}
