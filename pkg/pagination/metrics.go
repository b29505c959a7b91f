package pagination

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for pagination runs.
var (
	pagesFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pms_pagination_pages_fetched_total",
		Help: "Total pages fetched by pagination mode",
	}, []string{"mode"})

	itemsYieldedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pms_pagination_items_yielded_total",
		Help: "Total items yielded by pagination mode",
	}, []string{"mode"})

	fetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pms_pagination_fetch_duration_seconds",
		Help:    "Duration of single page fetches by pagination mode",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"mode"})

	fetchErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pms_pagination_fetch_errors_total",
		Help: "Total page fetch failures that aborted a run",
	}, []string{"mode"})

	boundsExceededTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pms_pagination_bounds_exceeded_total",
		Help: "Total runs rejected because page*size exceeded max_total_results",
	}, []string{"mode"})

	malformedResponsesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pms_pagination_malformed_responses_total",
		Help: "Total responses without an items container",
	}, []string{"mode"})
)
