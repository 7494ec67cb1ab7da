// Package catalog is the read side of the catalog plus the discovery import
// entry point.
package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/ps-vitor/phone-prices/internal/domain"
	"github.com/ps-vitor/phone-prices/internal/estimate"
	"github.com/ps-vitor/phone-prices/internal/history"
	"github.com/ps-vitor/phone-prices/internal/repositories"
)

// Store is the catalog store as seen by this service.
type Store interface {
	repositories.CatalogRepository
	Merge(ctx context.Context, brand string, incoming []domain.CatalogEntry) (repositories.MergeResult, error)
}

// PriceSources aggregates where current prices came from.
type PriceSources struct {
	LastUpdate           *time.Time     `json:"lastUpdate"`
	TotalEntries         int            `json:"totalEntries"`
	TotalFromLiveSources int            `json:"totalFromLiveSources"`
	BySource             map[string]int `json:"bySource"`
}

type CatalogService struct {
	store     Store
	history   history.Store
	estimator *estimate.Estimator
	brands    []string
	now       func() time.Time
}

func NewCatalogService(store Store, hist history.Store, est *estimate.Estimator, brands []string) *CatalogService {
	if est == nil {
		est = estimate.New(estimate.Options{})
	}
	return &CatalogService{store: store, history: hist, estimator: est, brands: brands, now: time.Now}
}

// Brands returns the configured brands in update order.
func (s *CatalogService) Brands() []string {
	return append([]string(nil), s.brands...)
}

func (s *CatalogService) GetCatalog(ctx context.Context, brand string) ([]domain.CatalogEntry, error) {
	entries, err := s.store.Load(ctx, brand)
	if err != nil {
		return nil, err
	}
	domain.SortEntries(entries)
	return entries, nil
}

// GetPriceSources counts entries priced by a live source, grouped by source.
// With no brands given every configured brand is included.
func (s *CatalogService) GetPriceSources(ctx context.Context, brands ...string) (PriceSources, error) {
	if len(brands) == 0 {
		brands = s.brands
	}
	out := PriceSources{BySource: map[string]int{}}
	for _, b := range brands {
		entries, err := s.store.Load(ctx, b)
		if err != nil {
			return PriceSources{}, fmt.Errorf("%s: %w", b, err)
		}
		for _, e := range entries {
			out.TotalEntries++
			if t := e.LastPriceUpdate; t != nil && (out.LastUpdate == nil || t.After(*out.LastUpdate)) {
				ts := *t
				out.LastUpdate = &ts
			}
			if e.PriceSource == "" || e.PriceSource == domain.SourceEstimated {
				continue
			}
			out.TotalFromLiveSources++
			out.BySource[e.PriceSource]++
		}
	}
	return out, nil
}

// History lists recorded prices for one model, oldest first. limit > 0 keeps
// only the most recent points.
func (s *CatalogService) History(ctx context.Context, brand, model string, limit int) ([]history.Point, error) {
	if s.history == nil {
		return []history.Point{}, nil
	}
	pts, err := s.history.List(ctx, brand, model)
	if err != nil {
		return nil, err
	}
	if pts == nil {
		pts = []history.Point{}
	}
	return history.Tail(pts, limit), nil
}

// Import merges discovered models into the brand catalog. Prices are settled
// first so nothing is stored at zero or with only one currency.
func (s *CatalogService) Import(ctx context.Context, brand string, incoming []domain.CatalogEntry) (repositories.MergeResult, error) {
	now := s.now().UTC()
	prepared := make([]domain.CatalogEntry, 0, len(incoming))
	for _, e := range incoming {
		if e.Company == "" {
			e.Company = brand
		}
		s.settlePrice(brand, &e, now)
		prepared = append(prepared, e)
	}
	return s.store.Merge(ctx, brand, prepared)
}

// settlePrice derives a missing currency from the one given, preferring USD
// when both are present but disagree. Anything still not positive in both
// currencies is replaced by an estimate.
func (s *CatalogService) settlePrice(brand string, e *domain.CatalogEntry, now time.Time) {
	fx := s.estimator.FX()
	p := e.Price
	switch {
	case p.USD > 0 && (p.SAR <= 0 || !fx.Consistent(p)):
		p = fx.FromUSD(p.USD)
	case p.USD <= 0 && p.SAR > 0:
		p = fx.FromSAR(p.SAR)
	}
	if p.USD > 0 && p.SAR > 0 {
		e.Price = p
		return
	}
	q := s.estimator.Estimate(brand, e.Model, e.ReleaseYear)
	e.Price = q.Price()
	e.PriceSource = q.Source
	e.LastPriceUpdate = &now
}
