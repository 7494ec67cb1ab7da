// Package updater refreshes catalog prices in fixed-size batches, saving the
// whole catalog after each batch so a crash loses at most one batch of work.
package updater

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ps-vitor/phone-prices/internal/changelog"
	"github.com/ps-vitor/phone-prices/internal/checkpoint"
	"github.com/ps-vitor/phone-prices/internal/domain"
	"github.com/ps-vitor/phone-prices/internal/estimate"
	"github.com/ps-vitor/phone-prices/internal/history"
	"github.com/ps-vitor/phone-prices/internal/metrics"
	"github.com/ps-vitor/phone-prices/internal/repositories"
	"github.com/ps-vitor/phone-prices/internal/services/pricing"
	"github.com/ps-vitor/phone-prices/pkg/logger"
)

const (
	DefaultBatchSize       = 3
	DefaultInterBatchDelay = 8 * time.Second
	DefaultFreshnessYears  = 3
	DefaultSaveAttempts    = 3
	DefaultSaveBackoff     = 500 * time.Millisecond
)

// Pricer prices one entry. *pricing.Resolver is the production implementation.
type Pricer interface {
	Price(ctx context.Context, brand, model string, releaseYear int, live bool) pricing.Result
}

type Options struct {
	BatchSize       int
	InterBatchDelay time.Duration
	// FreshnessYears limits live scraping to models released within the
	// last N years. Older entries are estimated directly.
	FreshnessYears int
	// EntryConcurrency > 1 prices that many entries of a batch at once.
	EntryConcurrency int
	// Simulate estimates every entry with jitter and never hits the network.
	Simulate bool
	// Resume skips batches already saved by an interrupted run.
	Resume       bool
	SaveAttempts int
	SaveBackoff  time.Duration
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.InterBatchDelay < 0 {
		o.InterBatchDelay = 0
	}
	if o.FreshnessYears <= 0 {
		o.FreshnessYears = DefaultFreshnessYears
	}
	if o.EntryConcurrency <= 0 {
		o.EntryConcurrency = 1
	}
	if o.SaveAttempts <= 0 {
		o.SaveAttempts = DefaultSaveAttempts
	}
	if o.SaveBackoff < 0 {
		o.SaveBackoff = 0
	}
	return o
}

// Deps are the collaborators of an Updater. Catalog and Pricer are required;
// Estimator is required when simulating. Everything else is optional.
type Deps struct {
	Catalog     repositories.CatalogRepository
	Pricer      Pricer
	Estimator   *estimate.Estimator
	Checkpoints checkpoint.Publisher
	Resume      checkpoint.Reader
	Changelog   changelog.Writer
	History     history.Store
	Metrics     *metrics.Registry
	Log         *logger.Logger

	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
	Rand  *rand.Rand
}

// Summary reports what one brand run did.
type Summary struct {
	RunID              string    `json:"runId"`
	Brand              string    `json:"brand"`
	Total              int       `json:"total"`
	Updated            int       `json:"updated"`
	Live               int       `json:"live"`
	Estimated          int       `json:"estimated"`
	Failed             int       `json:"failed"`
	Batches            int       `json:"batches"`
	BatchesSkipped     int       `json:"batchesSkipped"`
	Saves              int       `json:"saves"`
	SaveFailures       int       `json:"saveFailures"`
	CheckpointFailures int       `json:"checkpointFailures"`
	StartedAt          time.Time `json:"startedAt"`
	FinishedAt         time.Time `json:"finishedAt"`
}

type Updater struct {
	deps Deps
	opts Options
	log  *logger.Logger

	simMu sync.Mutex
	sim   *estimate.Estimator
}

func New(deps Deps, opts Options) (*Updater, error) {
	if deps.Catalog == nil {
		return nil, errors.New("updater: catalog repository is required")
	}
	opts = opts.withDefaults()
	if deps.Log == nil {
		deps.Log = logger.Discard()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Sleep == nil {
		deps.Sleep = sleep
	}
	u := &Updater{deps: deps, opts: opts, log: deps.Log}
	if opts.Simulate {
		if deps.Estimator == nil {
			return nil, errors.New("updater: simulated updates need an estimator")
		}
		u.sim = deps.Estimator.WithJitter(deps.Rand, estimate.DefaultJitterFraction)
	} else if deps.Pricer == nil {
		return nil, errors.New("updater: pricer is required")
	}
	return u, nil
}

// Options returns the effective options.
func (u *Updater) Options() Options { return u.opts }

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Partition splits n items into consecutive [start, end) ranges of size.
func Partition(n, size int) [][2]int {
	if size <= 0 {
		size = 1
	}
	var out [][2]int
	for start := 0; start < n; start += size {
		out = append(out, [2]int{start, min(start+size, n)})
	}
	return out
}

// Eligible reports whether an entry may be priced from live sources.
func (u *Updater) Eligible(e domain.CatalogEntry, now time.Time) bool {
	if e.Estimated() {
		return false
	}
	return e.ReleaseYear >= now.Year()-u.opts.FreshnessYears
}

// RunAll updates each brand in turn. A failing brand does not stop the others.
func (u *Updater) RunAll(ctx context.Context, brands []string) ([]Summary, error) {
	var (
		out  []Summary
		errs []error
	)
	for _, b := range brands {
		s, err := u.RunUpdate(ctx, b)
		out = append(out, s)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", b, err))
			if ctx.Err() != nil {
				break
			}
		}
	}
	return out, errors.Join(errs...)
}

// RunUpdate refreshes every entry of one brand. Entry failures are absorbed.
// The returned error is non-nil only when the catalog cannot be loaded or the
// context is cancelled between batches.
func (u *Updater) RunUpdate(ctx context.Context, brand string) (Summary, error) {
	sum := Summary{RunID: uuid.NewString(), Brand: brand, StartedAt: u.deps.Now()}
	log := u.log.With(brand)

	if m := u.deps.Metrics; m != nil {
		m.RunInProgress.Inc()
		defer m.RunInProgress.Dec()
	}

	entries, err := u.deps.Catalog.Load(ctx, brand)
	if err != nil {
		return sum, fmt.Errorf("load catalog: %w", err)
	}
	// Persisted order is the processing order.
	domain.SortEntries(entries)

	batches := Partition(len(entries), u.opts.BatchSize)
	sum.Total, sum.Batches = len(entries), len(batches)

	first := u.resumePoint(brand, len(entries), len(batches), &sum, log)

	log.Infof("run %s: %d entries in %d batches of %d (simulate=%v)",
		sum.RunID, len(entries), len(batches), u.opts.BatchSize, u.opts.Simulate)

	for bi := first; bi < len(batches); bi++ {
		if bi > first {
			if err := u.deps.Sleep(ctx, u.opts.InterBatchDelay); err != nil {
				log.Warnf("run %s interrupted before batch %d/%d: %v", sum.RunID, bi+1, len(batches), err)
				sum.FinishedAt = u.deps.Now()
				return sum, err
			}
		}
		start := time.Now()
		lo, hi := batches[bi][0], batches[bi][1]
		log.Infof("batch %d/%d: entries %d-%d", bi+1, len(batches), lo+1, hi)

		u.processBatch(ctx, brand, sum.RunID, entries[lo:hi], &sum, log)

		if err := u.save(ctx, brand, entries, log); err != nil {
			sum.SaveFailures++
			if m := u.deps.Metrics; m != nil {
				m.BatchSaveFailures.Inc()
			}
			log.Errorf("batch %d/%d: save failed, continuing with in-memory catalog: %v", bi+1, len(batches), err)
			continue
		}
		sum.Saves++
		if m := u.deps.Metrics; m != nil {
			m.BatchesSaved.Inc()
			m.BatchDurationSec.Observe(time.Since(start).Seconds())
		}
		u.checkpoint(ctx, checkpoint.Checkpoint{
			RunID:        sum.RunID,
			Brand:        brand,
			BatchIndex:   bi + 1,
			TotalBatches: len(batches),
			TotalEntries: len(entries),
			Complete:     bi+1 == len(batches),
			CreatedAt:    u.deps.Now().Unix(),
		}, &sum, log)
	}

	sum.FinishedAt = u.deps.Now()
	if m := u.deps.Metrics; m != nil {
		m.LastRunUnixSec.Set(float64(sum.FinishedAt.Unix()))
	}
	log.Infof("run %s done: %d/%d updated (%d live, %d estimated), %d failed, %d save failure(s)",
		sum.RunID, sum.Updated, sum.Total, sum.Live, sum.Estimated, sum.Failed, sum.SaveFailures)
	return sum, nil
}

func (u *Updater) resumePoint(brand string, total, batches int, sum *Summary, log *logger.Logger) int {
	if !u.opts.Resume || u.deps.Resume == nil {
		return 0
	}
	cp, err := u.deps.Resume.ReadLatest(brand)
	if err != nil {
		if !errors.Is(err, checkpoint.ErrNoCheckpoint) {
			log.Warnf("cannot read checkpoint, starting from scratch: %v", err)
		}
		return 0
	}
	skip := checkpoint.ResumeFrom(cp, total, batches)
	if skip > 0 {
		sum.RunID = cp.RunID
		sum.BatchesSkipped = skip
		log.Infof("resuming run %s after batch %d/%d", cp.RunID, skip, batches)
	}
	return skip
}

type outcome int

const (
	outcomeFailed outcome = iota
	outcomeLive
	outcomeEstimated
)

func (u *Updater) processBatch(ctx context.Context, brand, runID string, batch []domain.CatalogEntry, sum *Summary, log *logger.Logger) {
	results := make([]outcome, len(batch))

	var g errgroup.Group
	g.SetLimit(u.opts.EntryConcurrency)
	for i := range batch {
		i := i
		g.Go(func() error {
			results[i] = u.updateEntry(ctx, brand, runID, &batch[i], log)
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range results {
		switch r {
		case outcomeLive:
			sum.Updated++
			sum.Live++
		case outcomeEstimated:
			sum.Updated++
			sum.Estimated++
		default:
			sum.Failed++
		}
	}
}

// updateEntry writes a new price into e. On failure e is left untouched.
func (u *Updater) updateEntry(ctx context.Context, brand, runID string, e *domain.CatalogEntry, log *logger.Logger) (res outcome) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("%s: update failed: %v", e.Model, r)
			res = outcomeFailed
		}
		if res == outcomeFailed && u.deps.Metrics != nil {
			u.deps.Metrics.EntriesFailed.Inc()
		}
	}()

	now := u.deps.Now()
	var r pricing.Result
	if u.opts.Simulate {
		u.simMu.Lock()
		r.Quote = u.sim.Estimate(brand, e.Model, e.ReleaseYear)
		u.simMu.Unlock()
	} else {
		r = u.deps.Pricer.Price(ctx, brand, e.Model, e.ReleaseYear, u.Eligible(*e, now))
	}

	if err := ctx.Err(); err != nil {
		log.Warnf("%s: run cancelled, keeping %.0f USD", e.Model, e.Price.USD)
		return outcomeFailed
	}
	q := r.Quote
	if !q.Usable() {
		log.Warnf("%s: no usable price, keeping %.0f USD", e.Model, e.Price.USD)
		return outcomeFailed
	}

	old := e.Price
	e.Price = q.Price()
	e.PriceSource = q.Source
	ts := now.UTC()
	e.LastPriceUpdate = &ts
	e.IsNew = false

	u.record(ctx, runID, brand, *e, old, ts, log)

	if r.Live {
		return outcomeLive
	}
	return outcomeEstimated
}

func (u *Updater) record(ctx context.Context, runID, brand string, e domain.CatalogEntry, old domain.Price, ts time.Time, log *logger.Logger) {
	if m := u.deps.Metrics; m != nil {
		m.EntriesUpdated.WithLabelValues(brand, e.PriceSource).Inc()
	}
	if w := u.deps.Changelog; w != nil {
		err := w.Append(ctx, changelog.Change{
			RunID:  runID,
			Brand:  brand,
			Model:  e.Model,
			Old:    old,
			New:    e.Price,
			Source: e.PriceSource,
			TS:     ts.UnixMilli(),
		})
		if err != nil {
			log.Warnf("%s: changelog append failed: %v", e.Model, err)
		} else if m := u.deps.Metrics; m != nil {
			m.ChangelogAppended.Inc()
		}
	}
	if h := u.deps.History; h != nil {
		err := h.Append(ctx, history.Point{
			Brand:  brand,
			Model:  e.Model,
			Price:  e.Price,
			Source: e.PriceSource,
			At:     ts,
			RunID:  runID,
		})
		if err != nil {
			log.Warnf("%s: history append failed: %v", e.Model, err)
		}
	}
}

// save retries with linear backoff. Stores that can apply prices in place are
// preferred so entries imported during the run survive the batch write.
func (u *Updater) save(ctx context.Context, brand string, entries []domain.CatalogEntry, log *logger.Logger) error {
	write := u.deps.Catalog.Save
	if pw, ok := u.deps.Catalog.(repositories.PriceWriter); ok {
		write = pw.ApplyPrices
	}
	var err error
	for attempt := 1; attempt <= u.opts.SaveAttempts; attempt++ {
		if err = write(ctx, brand, entries); err == nil {
			return nil
		}
		if attempt == u.opts.SaveAttempts {
			break
		}
		log.Warnf("save attempt %d/%d failed: %v", attempt, u.opts.SaveAttempts, err)
		if serr := u.deps.Sleep(ctx, u.opts.SaveBackoff*time.Duration(attempt)); serr != nil {
			return errors.Join(err, serr)
		}
	}
	return err
}

func (u *Updater) checkpoint(ctx context.Context, cp checkpoint.Checkpoint, sum *Summary, log *logger.Logger) {
	if u.deps.Checkpoints == nil {
		return
	}
	if err := u.deps.Checkpoints.Publish(ctx, cp); err != nil {
		sum.CheckpointFailures++
		if m := u.deps.Metrics; m != nil {
			m.CheckpointFailures.Inc()
		}
		log.Warnf("checkpoint %d/%d not published: %v", cp.BatchIndex, cp.TotalBatches, err)
	}
}
