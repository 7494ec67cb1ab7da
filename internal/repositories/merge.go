package repositories

import (
	"strings"

	"github.com/ps-vitor/phone-prices/internal/domain"
)

// MergeResult counts what a merge did.
type MergeResult struct {
	Added   int `json:"added"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

func unset(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || strings.EqualFold(s, domain.Unknown)
}

// Merge folds incoming records into existing ones. A record whose normalized
// model name matches an existing entry only fills fields that are unset or
// "Unknown"; populated fields are never overwritten. Unmatched records are
// appended. The result is sorted.
func Merge(existing, incoming []domain.CatalogEntry) ([]domain.CatalogEntry, MergeResult) {
	out := make([]domain.CatalogEntry, len(existing), len(existing)+len(incoming))
	copy(out, existing)

	index := make(map[string]int, len(out))
	for i, e := range out {
		if _, dup := index[e.Key()]; !dup {
			index[e.Key()] = i
		}
	}

	var res MergeResult
	for _, in := range incoming {
		key := in.Key()
		if key == "" {
			res.Skipped++
			continue
		}
		if i, ok := index[key]; ok {
			if fillUnset(&out[i], in) {
				out[i].RefreshLabels()
				res.Updated++
			} else {
				res.Skipped++
			}
			continue
		}
		in.RefreshLabels()
		index[key] = len(out)
		out = append(out, in)
		res.Added++
	}
	domain.SortEntries(out)
	return out, res
}

func fillUnset(dst *domain.CatalogEntry, src domain.CatalogEntry) bool {
	changed := false
	fill := func(field *string, v string) {
		if unset(*field) && !unset(v) {
			*field = v
			changed = true
		}
	}
	fill(&dst.Company, src.Company)
	fill(&dst.ScreenSize, src.ScreenSize)
	fill(&dst.CameraQuality, src.CameraQuality)
	fill(&dst.BatteryLife, src.BatteryLife)
	fill(&dst.ScreenType, src.ScreenType)

	if dst.ReleaseYear == 0 && src.ReleaseYear != 0 {
		dst.ReleaseYear = src.ReleaseYear
		changed = true
	}
	if dst.Price.IsZero() && !src.Price.IsZero() {
		dst.Price = src.Price
		if unset(dst.PriceSource) {
			dst.PriceSource = src.PriceSource
		}
		if dst.LastPriceUpdate == nil {
			dst.LastPriceUpdate = src.LastPriceUpdate
		}
		changed = true
	}
	return changed
}

// ApplyPrices copies the price fields of updates onto the matching entries of
// current, leaving every other field and every unmatched current entry alone.
// Updates without a positive USD price are ignored. Updates with no match are
// appended. The result is sorted.
func ApplyPrices(current, updates []domain.CatalogEntry) []domain.CatalogEntry {
	out := make([]domain.CatalogEntry, len(current), len(current)+len(updates))
	copy(out, current)

	index := make(map[string]int, len(out))
	for i, e := range out {
		if _, dup := index[e.Key()]; !dup {
			index[e.Key()] = i
		}
	}
	for _, u := range updates {
		if u.Price.USD <= 0 || u.Key() == "" {
			continue
		}
		i, ok := index[u.Key()]
		if !ok {
			index[u.Key()] = len(out)
			out = append(out, u)
			continue
		}
		out[i].Price = u.Price
		out[i].PriceSource = u.PriceSource
		out[i].LastPriceUpdate = u.LastPriceUpdate
		out[i].IsNew = u.IsNew
	}
	domain.SortEntries(out)
	return out
}
