// Package metrics exposes Prometheus collectors for search, the upstream
// catalog, and manual ordering.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "bookshelf"

// Search outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeEmpty    = "empty"
	OutcomeDegraded = "degraded"
	OutcomeFailed   = "failed"
	OutcomeInvalid  = "invalid"
)

var (
	registerOnce sync.Once

	searchRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "search_requests_total",
		Help:      "Search requests by outcome",
	}, []string{"outcome"})
	searchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "search_duration_seconds",
		Help:      "End-to-end search pipeline latency",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
	})
	upstreamRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "upstream_requests_total",
		Help:      "Catalog requests by result (ok, cached, timeout, rate_limited, upstream, transport)",
	}, []string{"result"})
	upstreamRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "upstream_retries_total",
		Help:      "Catalog requests retried after a transient failure",
	})
	orderingMoves = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ordering_moves_total",
		Help:      "Reorder attempts by result (ok, not_found, conflict, retried, error)",
	}, []string{"result"})
	orderingRenormalizations = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ordering_renormalizations_total",
		Help:      "Scope-wide position rewrites",
	})
)

// Register adds the collectors to the default registry. Idempotent.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(searchRequests, searchDuration, upstreamRequests, upstreamRetries,
			orderingMoves, orderingRenormalizations)
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

func IncSearch(outcome string)              { searchRequests.WithLabelValues(outcome).Inc() }
func ObserveSearchDuration(d time.Duration) { searchDuration.Observe(d.Seconds()) }
func IncUpstream(result string)             { upstreamRequests.WithLabelValues(result).Inc() }
func IncUpstreamRetry()                     { upstreamRetries.Inc() }
func IncMove(result string)                 { orderingMoves.WithLabelValues(result).Inc() }
func IncRenormalization()                   { orderingRenormalizations.Inc() }
