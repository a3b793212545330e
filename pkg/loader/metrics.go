package loader

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	loaderFetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "category_loader_fetches_total",
		Help: "Total page fetches completed by result (success, failure)",
	}, []string{"result"})

	loaderFetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "category_loader_fetch_duration_seconds",
		Help:    "Duration of page fetches dispatched by loaders",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	})

	loaderGuardSkipsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "category_loader_guard_skips_total",
		Help: "Total LoadNextPage calls ignored by reason (loading, end_reached, closed)",
	}, []string{"reason"})

	loaderDiscardedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "category_loader_discarded_completions_total",
		Help: "Total fetch completions discarded because the loader was closed",
	})

	loaderItemsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "category_loader_items_loaded_total",
		Help: "Total items appended by loaders",
	})

	loaderActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "category_loader_active",
		Help: "Number of loaders not yet closed",
	})
)
