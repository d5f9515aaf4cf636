// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	GateDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queryproctor_gate_decisions_total", Help: "Assessment access decisions by outcome and stage",
		},
		[]string{"outcome", "stage"},
	)

	Grades = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queryproctor_grades_total", Help: "Graded answers by grade",
		},
		[]string{"grade"},
	)

	MailsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queryproctor_mails_total", Help: "Mail deliveries by kind and result",
		},
		[]string{"kind", "result"},
	)

	QueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "queryproctor_queue_depth", Help: "Pending jobs per worker queue",
		},
		[]string{"queue"},
	)

	ClockOffset = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "queryproctor_clock_offset_seconds", Help: "Last measured offset of the NTS clock from the system clock",
		},
	)
)

// Register adds every collector to reg.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(GateDecisions, Grades, MailsSent, QueueDepth, ClockOffset)
}
