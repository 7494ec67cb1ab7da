package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ps-vitor/phone-prices/internal/domain"
)

func entry(model string, year int, usd float64) domain.CatalogEntry {
	return domain.CatalogEntry{
		Model:       model,
		Company:     domain.BrandSamsung,
		ReleaseYear: year,
		Price:       domain.Price{USD: usd, SAR: usd * 3.75},
		PriceSource: domain.SourceEstimated,
	}
}

func TestCatalog_SaveSortsAndUsesBrandKey(t *testing.T) {
	dir := t.TempDir()
	repo := NewFileCatalogRepository(dir, domain.BrandSamsung, domain.BrandApple)
	ctx := context.Background()

	in := []domain.CatalogEntry{
		entry("Galaxy A55", 2024, 449),
		entry("Galaxy S22", 2022, 499),
		entry("Galaxy S24", 2024, 799),
		entry("Galaxy S25 (Estimated)", 2025, 899),
	}
	if err := repo.Save(ctx, "samsung", in); err != nil {
		t.Fatalf("save: %v", err)
	}
	if in[0].Model != "Galaxy A55" {
		t.Fatalf("Save must not reorder the caller's slice")
	}

	raw, err := os.ReadFile(filepath.Join(dir, "Samsung.json"))
	if err != nil {
		t.Fatal(err)
	}
	var doc map[string][]domain.CatalogEntry
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatal(err)
	}
	got := doc["samsungPhones"]
	want := []string{"Galaxy S25 (Estimated)", "Galaxy A55", "Galaxy S24", "Galaxy S22"}
	if len(got) != len(want) {
		t.Fatalf("got %d entries", len(got))
	}
	for i := range want {
		if got[i].Model != want[i] {
			t.Fatalf("position %d: got %q want %q", i, got[i].Model, want[i])
		}
	}

	loaded, err := repo.Load(ctx, domain.BrandSamsung)
	if err != nil || len(loaded) != 4 {
		t.Fatalf("load: %v (%d entries)", err, len(loaded))
	}

	if fi, _ := os.ReadDir(dir); len(fi) != 1 {
		t.Fatalf("temporary files left behind: %v", fi)
	}
}

func TestCatalog_MissingFileIsEmpty(t *testing.T) {
	repo := NewFileCatalogRepository(t.TempDir())
	got, err := repo.Load(context.Background(), domain.BrandApple)
	if err != nil || got == nil || len(got) != 0 {
		t.Fatalf("got %v, %v", got, err)
	}
}

func TestCatalog_UnknownBrand(t *testing.T) {
	repo := NewFileCatalogRepository(t.TempDir(), domain.BrandSamsung)
	if _, err := repo.Load(context.Background(), "Nokia"); !errors.Is(err, ErrUnknownBrand) {
		t.Fatalf("want ErrUnknownBrand, got %v", err)
	}
	open := NewFileCatalogRepository(t.TempDir())
	if err := open.Save(context.Background(), "../etc", nil); !errors.Is(err, ErrUnknownBrand) {
		t.Fatalf("path traversal accepted: %v", err)
	}
	if open.Brands() != nil {
		t.Fatalf("unrestricted store lists brands")
	}
}

func TestMerge_NeverRegressesPopulatedFields(t *testing.T) {
	existing := []domain.CatalogEntry{{
		Model:       "Galaxy S23 Ultra",
		ReleaseYear: 2023,
		ScreenSize:  "6.8 inches",
		BatteryLife: domain.Unknown,
		Price:       domain.Price{USD: 1055, SAR: 3956},
		PriceSource: "extra.com",
	}}
	incoming := []domain.CatalogEntry{{
		Model:       "galaxy S23 Ultra (5G)",
		ScreenSize:  "6.1 inches",
		BatteryLife: "5000 mAh",
		ScreenType:  "Dynamic AMOLED 2X",
		Price:       domain.Price{USD: 10, SAR: 38},
	}}
	merged, res := Merge(existing, incoming)

	if len(merged) != 1 || res.Updated != 1 || res.Added != 0 {
		t.Fatalf("got %+v, %d entries", res, len(merged))
	}
	e := merged[0]
	if e.ScreenSize != "6.8 inches" {
		t.Fatalf("screenSize overwritten: %q", e.ScreenSize)
	}
	if e.BatteryLife != "5000 mAh" || e.BatteryLifeLabel != domain.LabelVeryGood {
		t.Fatalf("unknown battery not filled: %q %q", e.BatteryLife, e.BatteryLifeLabel)
	}
	if e.ScreenType != "Dynamic AMOLED 2X" {
		t.Fatalf("screenType not filled")
	}
	if e.Price.USD != 1055 || e.PriceSource != "extra.com" {
		t.Fatalf("price overwritten: %+v", e.Price)
	}
	if existing[0].BatteryLife != domain.Unknown {
		t.Fatalf("Merge mutated its input")
	}
}

func TestMerge_AppendsNewModelsAndSorts(t *testing.T) {
	existing := []domain.CatalogEntry{entry("Galaxy S23", 2023, 599)}
	merged, res := Merge(existing, []domain.CatalogEntry{
		entry("Galaxy S23 Ultra", 2023, 899),
		entry("Galaxy S24", 2024, 799),
		entry("Galaxy S24", 2024, 1),
		{Model: "   "},
	})
	if res.Added != 2 || res.Skipped != 2 {
		t.Fatalf("result=%+v", res)
	}
	var names []string
	for _, e := range merged {
		names = append(names, e.Model)
	}
	want := []string{"Galaxy S24", "Galaxy S23", "Galaxy S23 Ultra"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("order=%v", names)
		}
	}
}

func TestCatalog_MergePersists(t *testing.T) {
	repo := NewFileCatalogRepository(t.TempDir())
	ctx := context.Background()
	if err := repo.Save(ctx, domain.BrandApple, []domain.CatalogEntry{entry("iPhone 15", 2023, 799)}); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.Merge(ctx, domain.BrandApple, []domain.CatalogEntry{entry("iPhone 16", 2024, 799)}); err != nil {
		t.Fatal(err)
	}
	got, _ := repo.Load(ctx, domain.BrandApple)
	if len(got) != 2 || got[0].Model != "iPhone 16" {
		t.Fatalf("got %+v", got)
	}
}

func TestCatalog_ApplyPricesKeepsConcurrentMerge(t *testing.T) {
	repo := NewFileCatalogRepository(t.TempDir())
	ctx := context.Background()
	if err := repo.Save(ctx, domain.BrandSamsung, []domain.CatalogEntry{
		entry("Galaxy S24", 2024, 799),
		entry("Galaxy A15", 2023, 0),
	}); err != nil {
		t.Fatal(err)
	}
	snapshot, err := repo.Load(ctx, domain.BrandSamsung)
	if err != nil {
		t.Fatal(err)
	}

	fold := entry("Galaxy Z Fold7", 2025, 1899)
	s24 := entry("Galaxy S24", 0, 0)
	s24.ScreenSize = "6.2 inches"
	a15 := entry("Galaxy A15", 0, 200)
	if _, err := repo.Merge(ctx, domain.BrandSamsung, []domain.CatalogEntry{fold, s24, a15}); err != nil {
		t.Fatal(err)
	}

	ts := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := range snapshot {
		if snapshot[i].Model == "Galaxy S24" {
			snapshot[i].Price = domain.Price{USD: 850, SAR: 3188}
			snapshot[i].PriceSource = "extra.com"
			snapshot[i].LastPriceUpdate = &ts
		}
	}
	if err := repo.ApplyPrices(ctx, domain.BrandSamsung, snapshot); err != nil {
		t.Fatalf("apply: %v", err)
	}

	got, _ := repo.Load(ctx, domain.BrandSamsung)
	byModel := map[string]domain.CatalogEntry{}
	for _, e := range got {
		byModel[e.Model] = e
	}
	if len(got) != 3 {
		t.Fatalf("got %d entries, want 3: %+v", len(got), got)
	}
	if _, ok := byModel["Galaxy Z Fold7"]; !ok {
		t.Fatalf("merged model lost")
	}
	if e := byModel["Galaxy S24"]; e.Price.USD != 850 || e.PriceSource != "extra.com" || e.ScreenSize != "6.2 inches" {
		t.Fatalf("S24 = %+v", e)
	}
	if e := byModel["Galaxy A15"]; e.Price.USD != 200 {
		t.Fatalf("zero price in snapshot overwrote merged price: %+v", e)
	}
}

func TestState_RoundTripAndFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scheduler-state.json")
	repo := NewFileStateRepository(path)
	ctx := context.Background()

	st, err := repo.LoadState(ctx)
	if err != nil || st.LastUpdateTime != nil || st.UpdateInterval != domain.DefaultUpdateInterval {
		t.Fatalf("default state: %+v, %v", st, err)
	}

	last := time.Date(2025, 3, 1, 10, 30, 0, 0, time.UTC)
	if err := repo.SaveState(ctx, domain.SchedulerState{LastUpdateTime: &last, UpdateInterval: 12 * time.Hour}); err != nil {
		t.Fatal(err)
	}

	raw, _ := os.ReadFile(path)
	var f map[string]any
	if err := json.Unmarshal(raw, &f); err != nil {
		t.Fatal(err)
	}
	if f["lastUpdateTime"] != "2025-03-01T10:30:00.000Z" || f["updateInterval"] != float64(43200000) {
		t.Fatalf("file=%s", raw)
	}

	st, err = repo.LoadState(ctx)
	if err != nil || !st.LastUpdateTime.Equal(last) || st.UpdateInterval != 12*time.Hour {
		t.Fatalf("loaded %+v, %v", st, err)
	}
}

func TestState_NullLastUpdate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte(`{"lastUpdateTime":null,"updateInterval":3600000}`), 0o644); err != nil {
		t.Fatal(err)
	}
	st, err := NewFileStateRepository(path).LoadState(context.Background())
	if err != nil || st.LastUpdateTime != nil || st.UpdateInterval != time.Hour {
		t.Fatalf("got %+v, %v", st, err)
	}
	if !st.Due(time.Now()) {
		t.Fatalf("state without a prior run must be due")
	}
}
