package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Registry struct {
	reg *prometheus.Registry

	AdapterQuotes  *prometheus.CounterVec
	AdapterLatency *prometheus.HistogramVec

	EntriesUpdated *prometheus.CounterVec
	EntriesFailed  prometheus.Counter

	BatchesSaved       prometheus.Counter
	BatchSaveFailures  prometheus.Counter
	BatchDurationSec   prometheus.Histogram
	CheckpointFailures prometheus.Counter
	ChangelogAppended  prometheus.Counter

	RunInProgress   prometheus.Gauge
	LastRunUnixSec  prometheus.Gauge
	TriggerRejected prometheus.Counter
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()

	quotes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "phoneprices_adapter_quotes_total",
		Help: "Adapter calls by source and outcome.",
	}, []string{"source", "outcome"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "phoneprices_adapter_latency_seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"source"})
	updated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "phoneprices_entries_updated_total",
		Help: "Price writes by brand and price source.",
	}, []string{"brand", "source"})
	failed := prometheus.NewCounter(prometheus.CounterOpts{Name: "phoneprices_entries_failed_total"})
	saved := prometheus.NewCounter(prometheus.CounterOpts{Name: "phoneprices_batches_saved_total"})
	saveFailures := prometheus.NewCounter(prometheus.CounterOpts{Name: "phoneprices_batch_save_failures_total"})
	batchDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "phoneprices_batch_duration_seconds",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
	})
	cpFailures := prometheus.NewCounter(prometheus.CounterOpts{Name: "phoneprices_checkpoint_failures_total"})
	appended := prometheus.NewCounter(prometheus.CounterOpts{Name: "phoneprices_changelog_appended_total"})
	running := prometheus.NewGauge(prometheus.GaugeOpts{Name: "phoneprices_update_in_progress"})
	lastRun := prometheus.NewGauge(prometheus.GaugeOpts{Name: "phoneprices_last_update_timestamp_seconds"})
	rejected := prometheus.NewCounter(prometheus.CounterOpts{Name: "phoneprices_trigger_rejected_total"})

	r.MustRegister(quotes, latency, updated, failed, saved, saveFailures, batchDuration,
		cpFailures, appended, running, lastRun, rejected)
	return &Registry{
		reg:                r,
		AdapterQuotes:      quotes,
		AdapterLatency:     latency,
		EntriesUpdated:     updated,
		EntriesFailed:      failed,
		BatchesSaved:       saved,
		BatchSaveFailures:  saveFailures,
		BatchDurationSec:   batchDuration,
		CheckpointFailures: cpFailures,
		ChangelogAppended:  appended,
		RunInProgress:      running,
		LastRunUnixSec:     lastRun,
		TriggerRejected:    rejected,
	}
}

// ObserveQuote records one adapter call.
func (r *Registry) ObserveQuote(source, outcome string, took time.Duration) {
	r.AdapterQuotes.WithLabelValues(source, outcome).Inc()
	r.AdapterLatency.WithLabelValues(source).Observe(took.Seconds())
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
