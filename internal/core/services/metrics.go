package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	statusTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labour_status_transitions_total",
			Help: "Total number of applied patient status transitions",
		},
		[]string{"from", "to"},
	)

	statusConflictsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "labour_status_conflicts_total",
			Help: "Total number of status updates that lost an optimistic concurrency race",
		},
	)

	clinicalAlertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labour_clinical_alerts_total",
			Help: "Total number of clinical alerts raised by saved observations",
		},
		[]string{"field"},
	)

	stageClockRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labour_stage_clock_rejections_total",
			Help: "Total number of rejected stage clock updates",
		},
		[]string{"stage", "reason"},
	)
)
