package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingest metrics
	MessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_messages_received_total",
			Help: "Total number of MQTT messages received",
		},
		[]string{"status"}, // status: accepted, rejected, liveness
	)

	ReadingsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_readings_ingested_total",
			Help: "Total number of metric readings parsed from inbound messages",
		},
		[]string{"metric"},
	)

	PayloadErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_payload_errors_total",
			Help: "Total number of payload parse and validation errors",
		},
		[]string{"error_type"},
	)

	// Storage metrics
	StorageWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_storage_writes_total",
			Help: "Total number of points written to the time-series store",
		},
		[]string{"status"}, // status: success, failed
	)

	StorageQueryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "notifier_storage_query_duration_seconds",
			Help:    "Time taken by time-series range queries",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)

	// Alert metrics
	AlertsDecided = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_alerts_decided_total",
			Help: "Total number of alert decisions produced by the engine",
		},
		[]string{"kind", "metric"},
	)

	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_notifications_sent_total",
			Help: "Total number of notifications dispatched",
		},
		[]string{"status"}, // status: success, failed
	)

	ReportsGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_reports_generated_total",
			Help: "Total number of daily report runs",
		},
		[]string{"status"}, // status: sent, empty, failed
	)

	// Worker metrics
	WorkerQueueSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notifier_worker_queue_size",
			Help: "Current size of the inbound message queue",
		},
	)

	WorkerQueueCapacity = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notifier_worker_queue_capacity",
			Help: "Capacity of the inbound message queue",
		},
	)

	WorkerProcessedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notifier_worker_processed_total",
			Help: "Total number of messages processed by workers",
		},
	)

	WorkerFailedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notifier_worker_failed_total",
			Help: "Total number of messages failed in workers",
		},
	)

	EvaluationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "notifier_evaluation_duration_seconds",
			Help:    "Time taken to fully process one inbound message",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)

	// Kafka archive metrics
	ArchivePublishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_archive_publish_total",
			Help: "Total number of readings published to the Kafka archive",
		},
		[]string{"status"}, // status: success, failed
	)

	ArchivePublishRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notifier_archive_publish_retries_total",
			Help: "Total number of Kafka archive publish retries",
		},
	)

	ArchiveBytesWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notifier_archive_bytes_written_total",
			Help: "Total bytes written to the Kafka archive",
		},
	)

	// Panic recovery
	PanicsRecovered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_panics_recovered_total",
			Help: "Total number of panics recovered",
		},
		[]string{"component"},
	)
)
