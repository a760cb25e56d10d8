// Package metrics provides Prometheus metrics for fern.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "fern"

var (
	// StageLogsOpened tracks stage logs opened per stage
	StageLogsOpened = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stage_log",
			Name:      "opened_total",
			Help:      "Total number of stage logs opened",
		},
		[]string{"stage_id"},
	)

	// StageLogsClosed tracks stage logs closed per stage and outcome
	StageLogsClosed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stage_log",
			Name:      "closed_total",
			Help:      "Total number of stage logs closed by outcome",
		},
		[]string{"stage_id", "success"},
	)

	// StageLogMessages tracks appended messages
	StageLogMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stage_log",
			Name:      "messages_total",
			Help:      "Total number of stage log messages appended",
		},
		[]string{"is_error"},
	)

	// RecordsProcessed tracks records reported by closed stage logs
	RecordsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stage_log",
			Name:      "records_processed_total",
			Help:      "Total number of records processed by closed stage logs",
		},
		[]string{"stage_id"},
	)

	// PassesTotal tracks orchestration passes by kind and status
	PassesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orchestration",
			Name:      "passes_total",
			Help:      "Total number of orchestration passes by kind and status",
		},
		[]string{"kind", "status"},
	)

	// PassDuration tracks orchestration pass duration in seconds
	PassDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "orchestration",
			Name:      "pass_duration_seconds",
			Help:      "Duration of orchestration passes in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 900, 1800},
		},
		[]string{"kind"},
	)

	// MoverCalls tracks dataset mover calls by operation and outcome
	MoverCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mover",
			Name:      "calls_total",
			Help:      "Total number of dataset mover calls by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	// MoverDuration tracks dataset mover call duration
	MoverDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "mover",
			Name:      "call_duration_seconds",
			Help:      "Duration of dataset mover calls in seconds",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
		},
		[]string{"operation"},
	)

	// TablesPromoted tracks enriched tables created by promotion
	TablesPromoted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orchestration",
			Name:      "tables_promoted_total",
			Help:      "Total number of tables created by promotion",
		},
	)

	// HTTPRequestDuration tracks inbound API request duration
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of API requests in seconds",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "route", "status_code"},
	)

	// KafkaMessagesPublished tracks Kafka messages published
	KafkaMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "kafka",
			Name:      "messages_published_total",
			Help:      "Total number of messages published to Kafka",
		},
		[]string{"topic", "status"},
	)

	// KafkaPublishDuration tracks Kafka publish duration
	KafkaPublishDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "kafka",
			Name:      "publish_duration_seconds",
			Help:      "Duration of Kafka publish operations in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		},
	)
)

func id(v int64) string {
	return strconv.FormatInt(v, 10)
}

// RecordStageLogOpened records an opened stage log
func RecordStageLogOpened(stageID int64) {
	StageLogsOpened.WithLabelValues(id(stageID)).Inc()
}

// RecordStageLogClosed records a closed stage log and its record count
func RecordStageLogClosed(stageID int64, success bool, records int64) {
	StageLogsClosed.WithLabelValues(id(stageID), strconv.FormatBool(success)).Inc()
	if records > 0 {
		RecordsProcessed.WithLabelValues(id(stageID)).Add(float64(records))
	}
}

// RecordStageLogMessage records an appended message
func RecordStageLogMessage(isError bool) {
	StageLogMessages.WithLabelValues(strconv.FormatBool(isError)).Inc()
}

// RecordPass records a finished orchestration pass
func RecordPass(kind, status string, durationSeconds float64) {
	PassesTotal.WithLabelValues(kind, status).Inc()
	PassDuration.WithLabelValues(kind).Observe(durationSeconds)
}

// RecordMoverCall records a dataset mover call
func RecordMoverCall(operation, outcome string, durationSeconds float64) {
	MoverCalls.WithLabelValues(operation, outcome).Inc()
	MoverDuration.WithLabelValues(operation).Observe(durationSeconds)
}

// RecordTablePromoted records an enriched table created by promotion
func RecordTablePromoted() {
	TablesPromoted.Inc()
}

// RecordHTTPRequest records an inbound API request
func RecordHTTPRequest(method, route string, statusCode int, durationSeconds float64) {
	HTTPRequestDuration.WithLabelValues(method, route, strconv.Itoa(statusCode)).Observe(durationSeconds)
}

// RecordKafkaPublish records a Kafka publish operation
func RecordKafkaPublish(topic, status string, durationSeconds float64) {
	KafkaMessagesPublished.WithLabelValues(topic, status).Inc()
	KafkaPublishDuration.Observe(durationSeconds)
}
