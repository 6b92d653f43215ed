package partition

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	hits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offline_gateway_partition_hits_total",
			Help: "Total number of partition lookup hits",
		},
		[]string{"partition"},
	)

	misses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offline_gateway_partition_misses_total",
			Help: "Total number of partition lookup misses",
		},
		[]string{"partition"},
	)

	storeErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offline_gateway_partition_errors_total",
			Help: "Total number of partition store operation errors",
		},
		[]string{"operation"}, // "open", "get", "put", "drop"
	)
)
