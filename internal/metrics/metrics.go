// Package metrics records synchronizer activity on a private Prometheus registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder owns the registry and every collector. A nil *Recorder is a
// valid no-op.
type Recorder struct {
	registry *prometheus.Registry

	refreshes          prometheus.Counter
	refreshDuration    prometheus.Histogram
	fieldFailures      *prometheus.CounterVec
	priceFetchFailures prometheus.Counter
	trades             *prometheus.CounterVec
	watched            prometheus.Gauge
}

// New creates a Recorder with namespace "stocksim".
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	const ns = "stocksim"

	return &Recorder{
		registry: reg,
		refreshes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "sync",
			Name:      "refreshes_total",
			Help:      "Completed snapshot refreshes.",
		}),
		refreshDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns,
			Subsystem: "sync",
			Name:      "refresh_duration_seconds",
			Help:      "Wall time of a snapshot refresh including the price fan-out.",
			Buckets:   prometheus.DefBuckets,
		}),
		fieldFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "sync",
			Name:      "field_failures_total",
			Help:      "Base reads that fell back to their default.",
		}, []string{"field"}),
		priceFetchFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "sync",
			Name:      "price_fetch_failures_total",
			Help:      "Per-ticker price fetches that failed.",
		}),
		trades: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "trade",
			Name:      "trades_total",
			Help:      "Trade attempts by side and outcome.",
		}, []string{"side", "outcome"}),
		watched: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Subsystem: "sync",
			Name:      "watched_stocks",
			Help:      "Tickers on the watch list.",
		}),
	}
}

func (r *Recorder) ObserveRefresh(d time.Duration) {
	if r == nil {
		return
	}
	r.refreshes.Inc()
	r.refreshDuration.Observe(d.Seconds())
}

func (r *Recorder) FieldFailure(field string) {
	if r == nil {
		return
	}
	r.fieldFailures.WithLabelValues(field).Inc()
}

func (r *Recorder) PriceFetchFailure() {
	if r == nil {
		return
	}
	r.priceFetchFailures.Inc()
}

func (r *Recorder) Trade(side, outcome string) {
	if r == nil {
		return
	}
	r.trades.WithLabelValues(side, outcome).Inc()
}

func (r *Recorder) SetWatched(n int) {
	if r == nil {
		return
	}
	r.watched.Set(float64(n))
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
