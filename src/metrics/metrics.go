package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/username/tradelink/src/models"
)

// Registry holds the reconciliation metrics on a private prometheus registry.
type Registry struct {
	reg *prometheus.Registry

	Runs            *prometheus.CounterVec
	Trades          *prometheus.CounterVec
	Unusable        *prometheus.CounterVec
	MatchConfidence prometheus.Histogram
	RunDuration     prometheus.Histogram
	CacheHits       prometheus.Counter
	CacheMisses     prometheus.Counter
}

func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		Runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradelink_runs_total",
				Help: "Reconciliation runs by outcome",
			},
			[]string{"outcome"},
		),

		Trades: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradelink_trades_total",
				Help: "Emitted trade records by link kind and status",
			},
			[]string{"link", "status"},
		),

		Unusable: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradelink_unusable_observations_total",
				Help: "Observations set aside before matching, by kind",
			},
			[]string{"kind"},
		),

		MatchConfidence: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tradelink_match_confidence",
				Help:    "Confidence of committed signal/result pairs",
				Buckets: []float64{0.8, 0.85, 0.9, 0.95, 1.0},
			},
		),

		RunDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tradelink_run_duration_seconds",
				Help:    "Wall time of one reconciliation run",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
			},
		),

		CacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tradelink_report_cache_hits_total",
				Help: "Runs served from the report cache",
			},
		),

		CacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tradelink_report_cache_misses_total",
				Help: "Runs computed because the report cache had no entry",
			},
		),
	}

	r.reg.MustRegister(
		r.Runs, r.Trades, r.Unusable, r.MatchConfidence, r.RunDuration, r.CacheHits, r.CacheMisses,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Handler exposes the registry in the prometheus text format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// Gatherer returns the underlying registry, mainly for tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// ObserveRun records the outcome of one completed run.
func (r *Registry) ObserveRun(trades []models.TradeRecord, unusable []models.UnusableObservation, elapsed time.Duration) {
	r.Runs.WithLabelValues("success").Inc()
	r.RunDuration.Observe(elapsed.Seconds())
	for _, t := range trades {
		r.Trades.WithLabelValues(linkKind(t), string(t.Status)).Inc()
		if t.Matched() {
			r.MatchConfidence.Observe(t.MatchConfidence)
		}
	}
	for _, u := range unusable {
		r.Unusable.WithLabelValues(kindLabel(u.Kind)).Inc()
	}
}

// kindLabel folds anything outside the known kinds into one label value.
func kindLabel(k models.Kind) string {
	if !k.Valid() {
		return "unknown"
	}
	return string(k)
}

// ObserveFailure counts a run that failed before producing output.
func (r *Registry) ObserveFailure(stage string) {
	r.Runs.WithLabelValues("failed_" + stage).Inc()
}

func linkKind(t models.TradeRecord) string {
	switch {
	case t.Matched():
		return "matched"
	case t.SignalRef != nil:
		return "signal_only"
	default:
		return "result_only"
	}
}
