package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/mtskcm/iot-service-notifier/internal/archive"
	"github.com/mtskcm/iot-service-notifier/internal/logger"
	"github.com/mtskcm/iot-service-notifier/internal/metrics"
	"github.com/mtskcm/iot-service-notifier/internal/models"
	"github.com/mtskcm/iot-service-notifier/internal/storage"
	"github.com/mtskcm/iot-service-notifier/internal/worker"
)

// Evaluator decides alerts for one reading.
type Evaluator interface {
	Evaluate(ctx context.Context, reading models.MetricReading) []models.AlertDecision
}

// AlertSink receives resolved alert decisions.
type AlertSink interface {
	Dispatch(decisions []models.AlertDecision)
}

// ReportRunner generates the daily report.
type ReportRunner interface {
	Run(ctx context.Context) error
}

// Pipeline runs one inbound message through normalize, persist, evaluate and
// dispatch. It implements worker.Handler; every failure class is recovered
// here or in a collaborator, so a bad message can never take down the
// consumer.
type Pipeline struct {
	store        storage.Store
	evaluator    Evaluator
	alerts       AlertSink
	archive      archive.Publisher
	reports      ReportRunner
	reportHour   int
	reportMinute int
}

// NewPipeline wires the per-message pipeline.
func NewPipeline(store storage.Store, evaluator Evaluator, alerts AlertSink, archivePub archive.Publisher, reports ReportRunner, reportHour, reportMinute int) *Pipeline {
	return &Pipeline{
		store:        store,
		evaluator:    evaluator,
		alerts:       alerts,
		archive:      archivePub,
		reports:      reports,
		reportHour:   reportHour,
		reportMinute: reportMinute,
	}
}

// Handle processes one raw inbound message.
func (p *Pipeline) Handle(ctx context.Context, msg worker.Message) error {
	log := logger.WithMessageID(msg.ID)

	batch, err := models.ParsePayload(msg.Payload)
	if err != nil {
		metrics.MessagesReceived.WithLabelValues("rejected").Inc()
		metrics.PayloadErrors.WithLabelValues(payloadErrorType(err)).Inc()
		return err
	}

	// A status-only message is a liveness signal: no readings, no storage
	// writes, no further processing.
	if batch.IsStatus() {
		log.Info().Str("status", batch.Status).Msg("received status update")
		metrics.MessagesReceived.WithLabelValues("liveness").Inc()
		return nil
	}

	metrics.MessagesReceived.WithLabelValues("accepted").Inc()
	if batch.Rejected > 0 {
		log.Warn().Int("rejected", batch.Rejected).Msg("skipped invalid metric entries")
		metrics.PayloadErrors.WithLabelValues("invalid_metric_entry").Add(float64(batch.Rejected))
	}

	// The daily report fires at most once per message, off the batch
	// timestamp, regardless of its metrics content.
	if batch.AtReportTrigger(p.reportHour, p.reportMinute) {
		if err := p.reports.Run(ctx); err != nil {
			log.Error().Err(err).Msg("daily report failed")
		}
	}

	for _, reading := range batch.Readings {
		p.processReading(ctx, log, reading)
	}

	return nil
}

// processReading persists, archives and evaluates one reading. A failed
// storage write is logged but the reading is still evaluated, so a storage
// outage degrades alerting to threshold-only rather than silencing it.
func (p *Pipeline) processReading(ctx context.Context, log zerolog.Logger, reading models.MetricReading) {
	if err := p.store.WritePoint(ctx, reading); err != nil {
		log.Error().
			Err(err).
			Str("metric", reading.Name).
			Msg("storage write failed")
		metrics.StorageWrites.WithLabelValues("failed").Inc()
	} else {
		log.Info().
			Str("metric", reading.Name).
			Float64("value", reading.Value).
			Str("unit", reading.Unit).
			Msg("reading stored")
		metrics.StorageWrites.WithLabelValues("success").Inc()
	}
	metrics.ReadingsIngested.WithLabelValues(reading.Name).Inc()

	if err := p.archive.Publish(ctx, reading); err != nil {
		log.Warn().
			Err(err).
			Str("metric", reading.Name).
			Msg("archive publish failed")
	}

	decisions := p.evaluator.Evaluate(ctx, reading)
	if len(decisions) > 0 {
		p.alerts.Dispatch(decisions)
	}
}

func payloadErrorType(err error) string {
	switch {
	case errors.Is(err, models.ErrMissingTimestamp):
		return "missing_timestamp"
	case errors.Is(err, models.ErrInvalidTimestamp):
		return "invalid_timestamp"
	case errors.Is(err, models.ErrMalformedPayload):
		return "malformed_payload"
	default:
		return "unknown"
	}
}
