// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DispatchesCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broadcast_dispatches_completed_total",
			Help: "Total number of completed dispatches by outcome status",
		},
		[]string{"status"},
	)

	DeliveryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broadcast_delivery_attempts_total",
			Help: "Total number of per-recipient delivery attempts by outcome",
		},
		[]string{"outcome"},
	)

	DispatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "broadcast_dispatch_duration_seconds",
			Help: "Duration of a full dispatch fan-out in seconds",
		},
	)

	SchedulerClaims = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broadcast_scheduler_claims_total",
			Help: "Total number of due-queue claim attempts by result",
		},
		[]string{"result"},
	)

	OpensRecorded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcast_opens_recorded_total",
			Help: "Total number of recipient opens recorded",
		},
	)
)
