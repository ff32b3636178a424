// Copyright (C) 2017 ScyllaDB

package repair

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	repairSegmentsPostponed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "repaird",
		Subsystem: "repair",
		Name:      "segments_postponed_total",
		Help:      "Total number of postponed segment attempts.",
	})

	repairAdmissionDeclined = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "repaird",
		Subsystem: "repair",
		Name:      "admission_declined_total",
		Help:      "Number of admission checks declined by reason.",
	}, []string{"reason"})

	repairDurationSeconds = prometheus.NewSummary(prometheus.SummaryOpts{
		Namespace: "repaird",
		Subsystem: "repair",
		Name:      "duration_seconds",
		Help:      "Duration of a single segment repair.",
		MaxAge:    30 * time.Minute,
	})

	repairActiveRunners = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "repaird",
		Subsystem: "repair",
		Name:      "active_runners",
		Help:      "Number of currently registered segment runners.",
	})
)

func init() {
	prometheus.MustRegister(
		repairSegmentsPostponed,
		repairAdmissionDeclined,
		repairDurationSeconds,
		repairActiveRunners,
	)
}
