// Package metrics exposes Prometheus counters for the scheduling core.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	scheduleTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hms",
			Name:      "theatre_schedule_total",
			Help:      "Count of theatre scheduling attempts by outcome.",
		},
		[]string{"outcome"},
	)

	transitionTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hms",
			Name:      "theatre_transition_total",
			Help:      "Count of theatre status transitions by event.",
		},
		[]string{"event"},
	)

	eventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hms",
			Name:      "ws_events_published_total",
			Help:      "Count of real-time events published to the hub.",
		},
		[]string{"event"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(scheduleTotal, transitionTotal, eventsPublished)
	})
}

func IncSchedule(outcome string) {
	scheduleTotal.WithLabelValues(outcome).Inc()
}

func IncTransition(event string) {
	transitionTotal.WithLabelValues(event).Inc()
}

func IncEventPublished(event string) {
	eventsPublished.WithLabelValues(event).Inc()
}
