package syncqueue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var deliveries = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "offline_gateway_sync_deliveries_total",
		Help: "Total number of deferred submission delivery attempts by result",
	},
	[]string{"result"}, // "delivered", "failed"
)
