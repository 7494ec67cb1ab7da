// Package scheduler re-runs the price update on a fixed interval. It keeps a
// single "next run" timestamp and reschedules itself after every run, so runs
// never overlap.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ps-vitor/phone-prices/internal/domain"
	"github.com/ps-vitor/phone-prices/internal/metrics"
	"github.com/ps-vitor/phone-prices/internal/repositories"
	"github.com/ps-vitor/phone-prices/pkg/logger"
)

const (
	MinIntervalHours = 1
	MaxIntervalHours = 168
	DefaultWarmUp    = 5 * time.Second
)

var ErrInvalidInterval = fmt.Errorf("interval must be between %d and %d hours", MinIntervalHours, MaxIntervalHours)

// Clock abstracts time so tests can drive the loop.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// RunFunc performs one full update.
type RunFunc func(ctx context.Context) error

type Options struct {
	WarmUp  time.Duration
	Clock   Clock
	Log     *logger.Logger
	Metrics *metrics.Registry
}

// Status is what getStatus reports.
type Status struct {
	IsRunning           bool       `json:"isRunning"`
	LastUpdateTime      *time.Time `json:"lastUpdateTime"`
	NextUpdateTime      *time.Time `json:"nextUpdateTime"`
	UpdateInterval      int64      `json:"updateInterval"`
	UpdateIntervalHours float64    `json:"updateIntervalHours"`
}

// TriggerResult answers a manual trigger.
type TriggerResult struct {
	Accepted bool   `json:"accepted"`
	Message  string `json:"message"`
}

type Scheduler struct {
	repo    repositories.StateRepository
	run     RunFunc
	clock   Clock
	warmUp  time.Duration
	log     *logger.Logger
	metrics *metrics.Registry

	mu      sync.Mutex
	state   domain.SchedulerState
	next    time.Time
	ctx     context.Context
	cancel  context.CancelFunc
	started bool

	updating atomic.Bool
	wake     chan struct{}
	loopDone chan struct{}
	runs     sync.WaitGroup
}

func New(repo repositories.StateRepository, run RunFunc, opts Options) *Scheduler {
	if opts.Clock == nil {
		opts.Clock = realClock{}
	}
	if opts.WarmUp <= 0 {
		opts.WarmUp = DefaultWarmUp
	}
	if opts.Log == nil {
		opts.Log = logger.Discard()
	}
	return &Scheduler{
		repo:    repo,
		run:     run,
		clock:   opts.Clock,
		warmUp:  opts.WarmUp,
		log:     opts.Log,
		metrics: opts.Metrics,
		state:   domain.SchedulerState{UpdateInterval: domain.DefaultUpdateInterval},
		ctx:     context.Background(),
		wake:    make(chan struct{}, 1),
	}
}

// Start reads the persisted state and begins the loop. An overdue or
// never-run update fires after the warm-up delay.
func (s *Scheduler) Start(ctx context.Context) error {
	st, err := s.repo.LoadState(ctx)
	if err != nil {
		s.log.Warnf("scheduler state unreadable, using defaults: %v", err)
		st = domain.SchedulerState{UpdateInterval: domain.DefaultUpdateInterval}
	}

	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.New("scheduler already started")
	}
	s.started = true
	s.state = st
	now := s.clock.Now()
	if st.Due(now) {
		s.next = now.Add(s.warmUp)
		s.log.Infof("update overdue, first run in %s", s.warmUp)
	} else {
		s.next = st.LastUpdateTime.Add(st.UpdateInterval)
		s.log.Infof("next update at %s", s.next.Format(time.RFC3339))
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.loopDone = make(chan struct{})
	loopCtx := s.ctx
	s.mu.Unlock()

	go s.loop(loopCtx)
	return nil
}

// Stop ends the loop and waits for an in-flight run to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.loopDone
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.runs.Wait()
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.loopDone)
	for {
		s.mu.Lock()
		wait := s.next.Sub(s.clock.Now())
		s.mu.Unlock()
		if wait < 0 {
			wait = 0
		}

		select {
		case <-ctx.Done():
			return
		case <-s.wake:
			continue
		case <-s.clock.After(wait):
		}

		s.mu.Lock()
		now := s.clock.Now()
		if now.Before(s.next) {
			s.mu.Unlock()
			continue
		}
		// Tentative; replaced when the run finishes.
		s.next = now.Add(s.state.UpdateInterval)
		s.mu.Unlock()

		if !s.updating.CompareAndSwap(false, true) {
			s.log.Warn("scheduled update skipped: a run is already active")
			continue
		}
		s.launch(ctx, "scheduled")
	}
}

// TriggerUpdate starts a run in the background unless one is active.
func (s *Scheduler) TriggerUpdate() TriggerResult {
	if !s.updating.CompareAndSwap(false, true) {
		if s.metrics != nil {
			s.metrics.TriggerRejected.Inc()
		}
		return TriggerResult{Accepted: false, Message: "Price update already in progress"}
	}
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	s.launch(ctx, "manual")
	return TriggerResult{Accepted: true, Message: "Price update started"}
}

// launch expects the updating flag to be held by the caller.
func (s *Scheduler) launch(ctx context.Context, kind string) {
	s.runs.Add(1)
	go func() {
		defer s.runs.Done()
		s.execute(ctx, kind)
	}()
}

func (s *Scheduler) execute(ctx context.Context, kind string) {
	start := s.clock.Now()
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorf("%s update panicked: %v", kind, r)
		}
		s.finish(ctx)
	}()

	s.log.Infof("%s update started", kind)
	if err := s.run(ctx); err != nil {
		s.log.Errorf("%s update failed: %v", kind, err)
		return
	}
	s.log.Infof("%s update finished in %s", kind, s.clock.Now().Sub(start).Round(time.Millisecond))
}

// finish records the run, whatever its outcome, and schedules the next one.
func (s *Scheduler) finish(ctx context.Context) {
	s.mu.Lock()
	now := s.clock.Now()
	s.state.LastUpdateTime = &now
	s.next = now.Add(s.state.UpdateInterval)
	st := s.state
	s.mu.Unlock()

	if err := s.repo.SaveState(context.WithoutCancel(ctx), st); err != nil {
		s.log.Errorf("persist scheduler state: %v", err)
	}
	s.updating.Store(false)
	s.poke()
}

func (s *Scheduler) poke() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// SetInterval changes the interval and reschedules from the last run.
func (s *Scheduler) SetInterval(ctx context.Context, hours int) error {
	if hours < MinIntervalHours || hours > MaxIntervalHours {
		return ErrInvalidInterval
	}
	s.mu.Lock()
	s.state.UpdateInterval = time.Duration(hours) * time.Hour
	if last := s.state.LastUpdateTime; last != nil && !s.updating.Load() {
		s.next = last.Add(s.state.UpdateInterval)
		if now := s.clock.Now(); s.next.Before(now) {
			s.next = now.Add(s.warmUp)
		}
	}
	st := s.state
	s.mu.Unlock()

	s.poke()
	if err := s.repo.SaveState(ctx, st); err != nil {
		return fmt.Errorf("persist interval: %w", err)
	}
	s.log.Infof("update interval set to %dh", hours)
	return nil
}

func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		IsRunning:           s.updating.Load(),
		UpdateInterval:      s.state.UpdateInterval.Milliseconds(),
		UpdateIntervalHours: s.state.UpdateInterval.Hours(),
	}
	if s.state.LastUpdateTime != nil {
		t := *s.state.LastUpdateTime
		st.LastUpdateTime = &t
	}
	if s.started && !s.next.IsZero() {
		t := s.next
		st.NextUpdateTime = &t
	}
	return st
}
