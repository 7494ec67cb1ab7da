package history

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/cockroachdb/pebble"
)

// PebbleStore implements Store using PebbleDB.
type PebbleStore struct {
	db *pebble.DB
}

func NewPebbleStore(dir string) (*PebbleStore, error) {
	opts := &pebble.Options{
		MemTableSize:          16 << 20,
		L0CompactionThreshold: 4,
		L0StopWritesThreshold: 8,
	}
	d, err := pebble.Open(filepath.Clean(dir), opts)
	if err != nil {
		return nil, fmt.Errorf("pebble open: %w", err)
	}
	return &PebbleStore{db: d}, nil
}

func (p *PebbleStore) Close() error { return p.db.Close() }

func (p *PebbleStore) Append(ctx context.Context, pt Point) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	v, err := json.Marshal(&pt)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if err := p.db.Set([]byte(key(pt)), v, pebble.Sync); err != nil {
		return fmt.Errorf("pebble set: %w", err)
	}
	return nil
}

func (p *PebbleStore) List(ctx context.Context, brand, model string) ([]Point, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pre := []byte(prefix(brand, model))
	upper := append([]byte(nil), pre...)
	upper[len(upper)-1]++ // '#' + 1 bounds the prefix

	it, err := p.db.NewIter(&pebble.IterOptions{LowerBound: pre, UpperBound: upper})
	if err != nil {
		return nil, fmt.Errorf("pebble iter: %w", err)
	}
	defer it.Close()

	var out []Point
	for it.First(); it.Valid(); it.Next() {
		var pt Point
		if err := json.Unmarshal(it.Value(), &pt); err != nil {
			return nil, fmt.Errorf("decode %s: %w", it.Key(), err)
		}
		out = append(out, pt)
	}
	if err := it.Error(); err != nil {
		return nil, err
	}
	return out, nil
}
