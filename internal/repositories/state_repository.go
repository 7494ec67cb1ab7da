package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/ps-vitor/phone-prices/internal/domain"
)

// StateRepository persists the recurring loop's state.
type StateRepository interface {
	LoadState(ctx context.Context) (domain.SchedulerState, error)
	SaveState(ctx context.Context, st domain.SchedulerState) error
}

// stateFile is the on-disk form: {"lastUpdateTime": ISO-8601|null, "updateInterval": ms}.
type stateFile struct {
	LastUpdateTime *string `json:"lastUpdateTime"`
	UpdateInterval int64   `json:"updateInterval"`
}

type FileStateRepository struct {
	path            string
	defaultInterval time.Duration
	mu              sync.Mutex
}

func NewFileStateRepository(path string) *FileStateRepository {
	return &FileStateRepository{path: path, defaultInterval: domain.DefaultUpdateInterval}
}

// WithDefaultInterval sets the interval reported when nothing was persisted.
func (r *FileStateRepository) WithDefaultInterval(d time.Duration) *FileStateRepository {
	if d > 0 {
		r.defaultInterval = d
	}
	return r
}

// LoadState returns the persisted state. A missing file yields the default
// interval and no prior run.
func (r *FileStateRepository) LoadState(ctx context.Context) (domain.SchedulerState, error) {
	st := domain.SchedulerState{UpdateInterval: r.defaultInterval}
	if err := ctx.Err(); err != nil {
		return st, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return st, nil
	}
	if err != nil {
		return st, fmt.Errorf("read scheduler state: %w", err)
	}
	var f stateFile
	if err := json.Unmarshal(data, &f); err != nil {
		return st, fmt.Errorf("decode scheduler state: %w", err)
	}
	if f.UpdateInterval > 0 {
		st.UpdateInterval = time.Duration(f.UpdateInterval) * time.Millisecond
	}
	if f.LastUpdateTime != nil && *f.LastUpdateTime != "" {
		t, err := time.Parse(time.RFC3339Nano, *f.LastUpdateTime)
		if err != nil {
			return st, fmt.Errorf("parse lastUpdateTime: %w", err)
		}
		st.LastUpdateTime = &t
	}
	return st, nil
}

func (r *FileStateRepository) SaveState(ctx context.Context, st domain.SchedulerState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f := stateFile{UpdateInterval: st.UpdateInterval.Milliseconds()}
	if st.LastUpdateTime != nil {
		s := st.LastUpdateTime.UTC().Format("2006-01-02T15:04:05.000Z07:00")
		f.LastUpdateTime = &s
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := writeJSON(r.path, &f); err != nil {
		return fmt.Errorf("save scheduler state: %w", err)
	}
	return nil
}
