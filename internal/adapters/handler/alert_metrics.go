package handler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AlertsConsumedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alerts_consumed_total",
			Help: "Total number of labour events consumed from RabbitMQ",
		},
		[]string{"type", "status"},
	)

	AlertsBroadcastTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alerts_broadcast_total",
			Help: "Total number of labour events broadcasted via WebSocket",
		},
		[]string{"type"},
	)

	RabbitMQConsumeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rabbitmq_consume_duration_seconds",
			Help:    "Duration of RabbitMQ message consumption",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"status"},
	)
)
