// Package metrics exposes the daemon's observability counters. The worst
// acceptable outcome in this design is "alarm does not ring", so every path
// that could swallow a trigger increments a counter here.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Scheduling metrics
	AlarmsArmed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "alarmd_alarms_armed_total",
			Help: "Total timer arm registrations issued",
		},
	)

	ArmFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "alarmd_arm_failures_total",
			Help: "Arm registrations that failed after exhausting retries",
		},
	)

	DisarmFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "alarmd_disarm_failures_total",
			Help: "Disarm calls that failed and were deferred for retry",
		},
	)

	// Trigger metrics
	AlarmsFired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "alarmd_alarms_fired_total",
			Help: "Timer fires delivered to the engine",
		},
	)

	StaleFires = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "alarmd_stale_fires_total",
			Help: "Fires for deleted or disabled alarms treated as no-ops",
		},
	)

	// Ringing metrics
	RingingSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "alarmd_ringing_sessions",
			Help: "Number of active ringing sessions",
		},
	)

	Dismissals = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "alarmd_dismissals_total",
			Help: "Ringing sessions ended by the charger-connected edge",
		},
	)

	Snoozes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "alarmd_snoozes_total",
			Help: "Ringing sessions ended by a snooze re-arm",
		},
	)

	PresentationFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "alarmd_presentation_failures_total",
			Help: "Alert presentation requests that failed (non-fatal)",
		},
	)
)

func init() {
	prometheus.MustRegister(
		AlarmsArmed,
		ArmFailures,
		DisarmFailures,
		AlarmsFired,
		StaleFires,
		RingingSessions,
		Dismissals,
		Snoozes,
		PresentationFailures,
	)
}
