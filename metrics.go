package offlinegateway

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offline_gateway_requests_total",
			Help: "Total number of intercepted requests by class and outcome",
		},
		[]string{"class", "outcome"}, // outcome: "hit", "network", "fallback"
	)

	offlineResponses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "offline_gateway_offline_responses_total",
			Help: "Total number of synthesized service-unavailable responses",
		},
	)

	preloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offline_gateway_preloads_total",
			Help: "Total number of preloaded manifest assets by result",
		},
		[]string{"result"}, // "succeeded", "skipped"
	)
)
