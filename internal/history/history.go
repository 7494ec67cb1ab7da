// Package history keeps every price ever written for a model.
package history

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ps-vitor/phone-prices/internal/domain"
)

// Point is one recorded price.
type Point struct {
	Brand  string       `json:"brand"`
	Model  string       `json:"model"`
	Price  domain.Price `json:"price"`
	Source string       `json:"source"`
	At     time.Time    `json:"at"`
	RunID  string       `json:"runId,omitempty"`
}

// Store is implemented by the in-memory and Pebble backends.
type Store interface {
	Append(ctx context.Context, p Point) error
	// List returns the points for a model oldest first.
	List(ctx context.Context, brand, model string) ([]Point, error)
	Close() error
}

// prefix is the key range holding one model's points.
func prefix(brand, model string) string {
	return strings.ToLower(strings.TrimSpace(brand)) + "#" + domain.NormalizeModel(model) + "#"
}

// key sorts lexically in time order.
func key(p Point) string {
	return prefix(p.Brand, p.Model) + fmt.Sprintf("%020d", p.At.UnixNano())
}

// Tail keeps the last n points. n <= 0 keeps everything.
func Tail(points []Point, n int) []Point {
	if n <= 0 || len(points) <= n {
		return points
	}
	return points[len(points)-n:]
}

// MemoryStore is a Store for tests and ephemeral runs.
type MemoryStore struct {
	mu     sync.RWMutex
	points map[string]Point
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{points: make(map[string]Point)}
}

func (m *MemoryStore) Append(ctx context.Context, p Point) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.points[key(p)] = p
	return nil
}

func (m *MemoryStore) List(ctx context.Context, brand, model string) ([]Point, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pre := prefix(brand, model)
	m.mu.RLock()
	keys := make([]string, 0)
	for k := range m.points {
		if strings.HasPrefix(k, pre) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := make([]Point, 0, len(keys))
	for _, k := range keys {
		out = append(out, m.points[k])
	}
	m.mu.RUnlock()
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }
