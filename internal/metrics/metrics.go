package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airwatch_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "airwatch_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint", "status"},
	)

	// Ingestion metrics
	ReadingsAcceptedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "airwatch_readings_accepted_total",
			Help: "Total number of sensor readings accepted for processing",
		},
	)

	ReadingsRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airwatch_readings_rejected_total",
			Help: "Total number of sensor readings rejected during validation",
		},
		[]string{"reason"},
	)

	ReadingBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "airwatch_reading_batch_size",
			Help:    "Size of reading batches received",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		},
	)

	// Engine metrics
	AlertTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airwatch_alert_transitions_total",
			Help: "Total number of alert lifecycle transitions applied",
		},
		[]string{"transition", "alert_type"},
	)

	// Alert event publisher metrics
	AlertEventsPublishedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "airwatch_alert_events_published_total",
			Help: "Total number of alert transition events published",
		},
	)

	AlertEventsDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "airwatch_alert_events_dropped_total",
			Help: "Total number of alert transition events dropped (queue full or publish failure)",
		},
	)

	AlertEventQueueSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "airwatch_alert_event_queue_size",
			Help: "Current size of the alert event queue",
		},
	)

	AlertEventQueueCapacity = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "airwatch_alert_event_queue_capacity",
			Help: "Capacity of the alert event queue",
		},
	)

	KafkaPublishRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "airwatch_kafka_publish_retries_total",
			Help: "Total number of Kafka publish retries",
		},
	)

	PublishBatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "airwatch_publish_batch_duration_seconds",
			Help:    "Time spent publishing a batch of alert events",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Runtime metrics
	PanicsRecovered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airwatch_panics_recovered_total",
			Help: "Total number of panics recovered",
		},
		[]string{"location"},
	)
)
