// Package app wires configuration into the services shared by the binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/ps-vitor/phone-prices/internal/api/handlers"
	"github.com/ps-vitor/phone-prices/internal/changelog"
	"github.com/ps-vitor/phone-prices/internal/checkpoint"
	"github.com/ps-vitor/phone-prices/internal/config"
	"github.com/ps-vitor/phone-prices/internal/estimate"
	"github.com/ps-vitor/phone-prices/internal/history"
	"github.com/ps-vitor/phone-prices/internal/metrics"
	"github.com/ps-vitor/phone-prices/internal/money"
	"github.com/ps-vitor/phone-prices/internal/repositories"
	"github.com/ps-vitor/phone-prices/internal/scraping"
	"github.com/ps-vitor/phone-prices/internal/scraping/collectors"
	"github.com/ps-vitor/phone-prices/internal/services/catalog"
	"github.com/ps-vitor/phone-prices/internal/services/pricing"
	"github.com/ps-vitor/phone-prices/internal/services/scheduler"
	"github.com/ps-vitor/phone-prices/internal/services/updater"
	"github.com/ps-vitor/phone-prices/pkg/logger"
)

type App struct {
	Config  *config.Config
	Log     *logger.Logger
	Metrics *metrics.Registry

	FX        money.FX
	Estimator *estimate.Estimator
	Adapters  *scraping.Registry
	Resolver  *pricing.Resolver

	Catalog     *repositories.FileCatalogRepository
	State       *repositories.FileStateRepository
	History     history.Store
	Changelog   changelog.Writer
	Checkpoints checkpoint.Publisher
	Resume      checkpoint.Reader

	CatalogService *catalog.CatalogService

	closers []func() error
}

func New(cfg *config.Config, log *logger.Logger) (*App, error) {
	if log == nil {
		log = logger.New(cfg.App.Name)
	}
	log.SetDebug(cfg.App.Debug)

	a := &App{Config: cfg, Log: log, Metrics: metrics.NewRegistry()}
	a.FX = money.NewFX(cfg.Pricing.SARPerUSD)
	a.Estimator = estimate.New(estimate.Options{
		ReferenceYear:    cfg.Pricing.ReferenceYear,
		MarketMultiplier: cfg.Pricing.MarketMultiplier,
		FX:               a.FX,
	})

	reg, err := collectors.NewRegistry(collectorOptions(cfg), a.FX, log.With("adapter"), a.Metrics)
	if err != nil {
		return nil, fmt.Errorf("adapters: %w", err)
	}
	a.Adapters = reg
	a.Resolver = pricing.NewResolver(reg, a.Estimator, log.With("pricing"))

	a.Catalog = repositories.NewFileCatalogRepository(cfg.Storage.CatalogDir, cfg.Updater.Brands...)
	a.State = repositories.NewFileStateRepository(cfg.Storage.StateFile).WithDefaultInterval(cfg.Scheduler.Interval)

	if err := a.openHistory(); err != nil {
		return nil, err
	}
	if err := a.openSinks(); err != nil {
		a.Close()
		return nil, err
	}

	a.CatalogService = catalog.NewCatalogService(a.Catalog, a.History, a.Estimator, cfg.Updater.Brands)
	log.Infof("adapters: %v; brands: %v; data: %s", reg.Names(), cfg.Updater.Brands, cfg.Storage.DataDir)
	return a, nil
}

func collectorOptions(cfg *config.Config) collectors.Options {
	opts := collectors.Options{
		Fetch: scraping.FetchOptions{
			Timeout:        cfg.Scraping.Timeout,
			UserAgent:      cfg.Scraping.UserAgent,
			AcceptLanguage: cfg.Scraping.AcceptLanguage,
			MaxAttempts:    cfg.Scraping.RetryPolicy.MaxAttempts,
			Backoff:        cfg.Scraping.RetryPolicy.Backoff,
		},
		Parallelism: cfg.Scraping.RateLimit.Parallelism,
		RandomDelay: cfg.Scraping.RateLimit.RandomDelay,
	}
	if len(cfg.Scraping.Sources) > 0 {
		opts.Sources = make(map[string]collectors.SourceSettings, len(cfg.Scraping.Sources))
		for name, s := range cfg.Scraping.Sources {
			opts.Sources[name] = collectors.SourceSettings{Enabled: s.Enabled, BaseURL: s.BaseURL}
		}
	}
	return opts
}

func (a *App) openHistory() error {
	switch a.Config.Storage.HistoryBackend {
	case "pebble":
		st, err := history.NewPebbleStore(a.Config.Storage.HistoryDir)
		if err != nil {
			return fmt.Errorf("history: %w", err)
		}
		a.History = st
	default:
		a.History = history.NewMemoryStore()
	}
	a.closers = append(a.closers, a.History.Close)
	return nil
}

func (a *App) openSinks() error {
	cfg := a.Config
	files := checkpoint.NewFilesystemManifest(cfg.Storage.CheckpointDir)
	a.Resume = files

	clFile, err := changelog.NewFileWriter(cfg.Storage.ChangelogDir, "price-changes.jsonl")
	if err != nil {
		return fmt.Errorf("changelog: %w", err)
	}

	if cfg.Kafka.Bootstrap == "" {
		a.Checkpoints = files
		a.Changelog = clFile
		return nil
	}
	kcl := changelog.NewKafkaWriter(cfg.Kafka.Bootstrap, cfg.Kafka.ChangelogTopic)
	kcp := checkpoint.NewKafkaManifest(cfg.Kafka.Bootstrap, cfg.Kafka.CheckpointTopic, cfg.Kafka.CheckpointKeyPrefix)
	a.closers = append(a.closers, kcl.Close, kcp.Close)
	a.Changelog = changelog.NewMultiWriter(clFile, kcl)
	a.Checkpoints = checkpoint.NewMultiPublisher(files, kcp)
	a.Log.Infof("kafka sinks enabled: %s", cfg.Kafka.Bootstrap)
	return nil
}

// NewUpdater builds the batch scheduler over the shared dependencies.
func (a *App) NewUpdater(simulate bool) (*updater.Updater, error) {
	u := a.Config.Updater
	return updater.New(updater.Deps{
		Catalog:     a.Catalog,
		Pricer:      a.Resolver,
		Estimator:   a.Estimator,
		Checkpoints: a.Checkpoints,
		Resume:      a.Resume,
		Changelog:   a.Changelog,
		History:     a.History,
		Metrics:     a.Metrics,
		Log:         a.Log.With("updater"),
	}, updater.Options{
		BatchSize:        u.BatchSize,
		InterBatchDelay:  u.InterBatchDelay,
		FreshnessYears:   u.FreshnessYears,
		EntryConcurrency: u.EntryConcurrency,
		Simulate:         simulate,
		Resume:           u.ResumeInterrupted,
		SaveAttempts:     u.SaveAttempts,
		SaveBackoff:      u.SaveBackoff,
	})
}

// NewScheduler runs u over every configured brand on the recurring interval.
func (a *App) NewScheduler(u *updater.Updater) *scheduler.Scheduler {
	brands := a.Config.Updater.Brands
	run := func(ctx context.Context) error {
		_, err := u.RunAll(ctx, brands)
		return err
	}
	return scheduler.New(a.State, run, scheduler.Options{
		WarmUp:  a.Config.Scheduler.WarmUp,
		Log:     a.Log.With("scheduler"),
		Metrics: a.Metrics,
	})
}

// Router mounts the HTTP API. sched may be nil when the loop is disabled.
func (a *App) Router(sched *scheduler.Scheduler) http.Handler {
	var sh *handlers.SchedulerHandler
	if sched != nil {
		sh = handlers.NewSchedulerHandler(sched, a.Log.With("api"))
	}
	return handlers.NewRouter(handlers.NewAPIHandler(a.CatalogService, a.Log.With("api")), sh, a.Metrics.Handler(), a.Log.With("http"))
}

func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
