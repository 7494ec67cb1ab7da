package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ps-vitor/phone-prices/internal/domain"
)

// ErrUnknownBrand is returned for brands the store was not configured with.
var ErrUnknownBrand = errors.New("unknown brand")

// CatalogRepository is the only access path to the persisted catalog.
type CatalogRepository interface {
	Load(ctx context.Context, brand string) ([]domain.CatalogEntry, error)
	Save(ctx context.Context, brand string, entries []domain.CatalogEntry) error
}

// PriceWriter writes price fields into the stored catalog without replacing
// entries written by others since the caller's Load.
type PriceWriter interface {
	ApplyPrices(ctx context.Context, brand string, entries []domain.CatalogEntry) error
}

// FileCatalogRepository keeps one JSON file per brand:
// {"<brandPhonesKey>": [CatalogEntry, ...]}.
type FileCatalogRepository struct {
	dir    string
	brands map[string]domain.BrandFile
	order  []string

	mu sync.Mutex
}

// NewFileCatalogRepository stores brand files under dir. When brands is empty
// any brand name is accepted.
func NewFileCatalogRepository(dir string, brands ...string) *FileCatalogRepository {
	r := &FileCatalogRepository{dir: dir}
	if len(brands) > 0 {
		r.brands = make(map[string]domain.BrandFile, len(brands))
		for _, b := range brands {
			bf := domain.FileFor(b)
			if _, dup := r.brands[strings.ToLower(bf.Brand)]; !dup {
				r.order = append(r.order, bf.Brand)
			}
			r.brands[strings.ToLower(bf.Brand)] = bf
		}
	}
	return r
}

// Dir returns the directory holding the brand files.
func (r *FileCatalogRepository) Dir() string { return r.dir }

// Brands lists the configured brands in configuration order, or nil when
// unrestricted.
func (r *FileCatalogRepository) Brands() []string {
	if r.order == nil {
		return nil
	}
	return append([]string(nil), r.order...)
}

func (r *FileCatalogRepository) file(brand string) (domain.BrandFile, error) {
	brand = strings.TrimSpace(brand)
	if brand == "" || strings.ContainsAny(brand, `/\`) || strings.Contains(brand, "..") {
		return domain.BrandFile{}, fmt.Errorf("%w: %q", ErrUnknownBrand, brand)
	}
	if r.brands == nil {
		return domain.FileFor(brand), nil
	}
	bf, ok := r.brands[strings.ToLower(brand)]
	if !ok {
		return domain.BrandFile{}, fmt.Errorf("%w: %q", ErrUnknownBrand, brand)
	}
	return bf, nil
}

// Load returns the brand's entries. A missing file is an empty catalog.
func (r *FileCatalogRepository) Load(ctx context.Context, brand string) ([]domain.CatalogEntry, error) {
	bf, err := r.file(brand)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load(bf)
}

func (r *FileCatalogRepository) load(bf domain.BrandFile) ([]domain.CatalogEntry, error) {
	data, err := os.ReadFile(filepath.Join(r.dir, bf.FileName))
	if errors.Is(err, os.ErrNotExist) {
		return []domain.CatalogEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s catalog: %w", bf.Brand, err)
	}
	var doc map[string][]domain.CatalogEntry
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode %s catalog: %w", bf.Brand, err)
	}
	entries := doc[bf.Key]
	if entries == nil {
		entries = []domain.CatalogEntry{}
	}
	return entries, nil
}

// Save sorts a copy of entries and replaces the brand file atomically.
func (r *FileCatalogRepository) Save(ctx context.Context, brand string, entries []domain.CatalogEntry) error {
	bf, err := r.file(brand)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.save(bf, entries)
}

func (r *FileCatalogRepository) save(bf domain.BrandFile, entries []domain.CatalogEntry) error {
	sorted := make([]domain.CatalogEntry, len(entries))
	copy(sorted, entries)
	domain.SortEntries(sorted)
	if err := writeJSON(filepath.Join(r.dir, bf.FileName), map[string][]domain.CatalogEntry{bf.Key: sorted}); err != nil {
		return fmt.Errorf("save %s catalog: %w", bf.Brand, err)
	}
	return nil
}

// Merge applies discovery data with merge-on-write semantics under the store
// lock, then persists the sorted result.
func (r *FileCatalogRepository) Merge(ctx context.Context, brand string, incoming []domain.CatalogEntry) (MergeResult, error) {
	bf, err := r.file(brand)
	if err != nil {
		return MergeResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return MergeResult{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, err := r.load(bf)
	if err != nil {
		return MergeResult{}, err
	}
	merged, res := Merge(existing, incoming)
	if err := r.save(bf, merged); err != nil {
		return MergeResult{}, err
	}
	return res, nil
}

// ApplyPrices reloads the brand file under the store lock, copies the price
// fields of entries onto it by model key and persists the sorted result.
// Entries merged in since the caller loaded its snapshot are kept.
func (r *FileCatalogRepository) ApplyPrices(ctx context.Context, brand string, entries []domain.CatalogEntry) error {
	bf, err := r.file(brand)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	current, err := r.load(bf)
	if err != nil {
		return err
	}
	return r.save(bf, ApplyPrices(current, entries))
}

// writeJSON writes v next to path and renames it into place so readers never
// see a partial file.
func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create: %w", err)
	}
	defer os.Remove(tmp.Name())

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		tmp.Close()
		return fmt.Errorf("encode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}
