// Package metrics provides Prometheus metrics for the reminder platform.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics
type Metrics struct {
	MedicinesCreated      prometheus.Counter
	AlarmsUpserted        prometheus.Counter
	UpcomingQueries       prometheus.Counter
	AdherenceMarks        *prometheus.CounterVec
	RequestDuration       prometheus.Histogram
	KafkaMessagesProduced prometheus.Counter
	KafkaMessagesConsumed prometheus.Counter
	OutboxPending         prometheus.Gauge
	CircuitBreakerState   *prometheus.GaugeVec
}

// New creates and registers all metrics
func New() *Metrics {
	m := &Metrics{
		MedicinesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "medicines_created_total",
			Help: "Total medicines registered",
		}),
		AlarmsUpserted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alarms_upserted_total",
			Help: "Total alarm create-or-merge operations",
		}),
		UpcomingQueries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "upcoming_queries_total",
			Help: "Total upcoming-alarm queries served",
		}),
		AdherenceMarks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "adherence_marks_total",
			Help: "Adherence responses recorded by status",
		}, []string{"status"}),
		RequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "request_duration_seconds",
			Help:    "API request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
		KafkaMessagesProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kafka_messages_produced_total",
			Help: "Total Kafka messages produced",
		}),
		KafkaMessagesConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kafka_messages_consumed_total",
			Help: "Total Kafka messages consumed",
		}),
		OutboxPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "outbox_pending_entries",
			Help: "Pending outbox entries",
		}),
		CircuitBreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		}, []string{"name"}),
	}

	prometheus.MustRegister(
		m.MedicinesCreated,
		m.AlarmsUpserted,
		m.UpcomingQueries,
		m.AdherenceMarks,
		m.RequestDuration,
		m.KafkaMessagesProduced,
		m.KafkaMessagesConsumed,
		m.OutboxPending,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
