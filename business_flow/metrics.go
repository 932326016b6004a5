package businessflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Last count observed by a read or an increment
	counterValue = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tally_counter_value",
			Help: "Last observed value of the persisted counter",
		},
	)

	counterIncrementsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tally_counter_increments_total",
			Help: "Number of successful counter increments",
		},
	)

	counterStorageErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tally_counter_storage_errors_total",
			Help: "Counter store failures partitioned by operation",
		},
		[]string{"operation"},
	)

	counterCacheRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tally_counter_cache_requests_total",
			Help: "Counter cache lookups partitioned by result (hit, miss, error)",
		},
		[]string{"result"},
	)
)
