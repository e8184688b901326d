// Package engine holds the alert decision logic: given one normalized reading
// and its recent trend, decide whether and what to alert.
package engine

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/mtskcm/iot-service-notifier/internal/logger"
	"github.com/mtskcm/iot-service-notifier/internal/metrics"
	"github.com/mtskcm/iot-service-notifier/internal/models"
	"github.com/mtskcm/iot-service-notifier/internal/thresholds"
	"github.com/mtskcm/iot-service-notifier/internal/trend"
)

// TrendAnalyzer is the trend computation consumed by the engine.
type TrendAnalyzer interface {
	Compute(ctx context.Context, metric string, lookback time.Duration) (models.TrendResult, error)
}

// Engine evaluates readings against the threshold table and recent trends.
// The table is read-only after construction, so Evaluate is safe for
// concurrent use.
type Engine struct {
	table    thresholds.Table
	analyzer TrendAnalyzer
	lookback time.Duration
}

// New creates an Engine. A zero lookback selects the default 6 hour window.
func New(table thresholds.Table, analyzer TrendAnalyzer, lookback time.Duration) *Engine {
	if lookback <= 0 {
		lookback = trend.DefaultLookback
	}
	return &Engine{table: table, analyzer: analyzer, lookback: lookback}
}

// Evaluate produces zero or more alert decisions for one reading.
//
// A metric with no threshold spec is unmonitored and produces nothing. The
// threshold check and the trend check are independent; a single reading can
// raise both. High and low are mutually exclusive per reading. A storage
// failure in the trend path degrades to "no trend signal" and never blocks
// the threshold decision.
func (e *Engine) Evaluate(ctx context.Context, reading models.MetricReading) []models.AlertDecision {
	spec, ok := e.table.Lookup(reading.Name)
	if !ok {
		return nil
	}

	log := logger.WithComponent("engine")
	var decisions []models.AlertDecision

	if spec.High != nil && reading.Value > *spec.High {
		log.Warn().
			Str("metric", reading.Name).
			Float64("value", reading.Value).
			Float64("high", *spec.High).
			Msg("high threshold exceeded")
		decisions = append(decisions, models.AlertDecision{
			Kind:   models.AlertThresholdHigh,
			Metric: reading.Name,
			Title:  alertTitle(reading.Name),
			Body:   thresholds.Message(reading.Name, thresholds.LevelHigh, reading.Value, reading.Unit),
		})
	} else if spec.Low != nil && reading.Value < *spec.Low {
		log.Warn().
			Str("metric", reading.Name).
			Float64("value", reading.Value).
			Float64("low", *spec.Low).
			Msg("low threshold crossed")
		decisions = append(decisions, models.AlertDecision{
			Kind:   models.AlertThresholdLow,
			Metric: reading.Name,
			Title:  alertTitle(reading.Name),
			Body:   thresholds.Message(reading.Name, thresholds.LevelLow, reading.Value, reading.Unit),
		})
	}

	if d := e.evaluateTrend(ctx, reading, spec); d != nil {
		decisions = append(decisions, *d)
	}

	for _, d := range decisions {
		metrics.AlertsDecided.WithLabelValues(string(d.Kind), d.Metric).Inc()
	}

	return decisions
}

func (e *Engine) evaluateTrend(ctx context.Context, reading models.MetricReading, spec models.ThresholdSpec) *models.AlertDecision {
	log := logger.WithComponent("engine")

	result, err := e.analyzer.Compute(ctx, reading.Name, e.lookback)
	if err != nil {
		// No trend signal this cycle; the reading was still processed
		// for the threshold check.
		log.Warn().
			Err(err).
			Str("metric", reading.Name).
			Msg("trend lookback failed, skipping trend check")
		return nil
	}

	bound := thresholds.TrendBound(spec)
	if math.Abs(result.Delta) <= bound {
		return nil
	}

	log.Warn().
		Str("metric", reading.Name).
		Float64("delta", result.Delta).
		Int("samples", result.SampleCount).
		Msg("significant trend detected")

	return &models.AlertDecision{
		Kind:   models.AlertTrend,
		Metric: reading.Name,
		Title:  alertTitle(reading.Name),
		Body: fmt.Sprintf("Significant trend detected for %s: %v %s/hour",
			reading.Name, result.Delta, reading.Unit),
	}
}

func alertTitle(metric string) string {
	return thresholds.Capitalize(metric) + " Alert"
}
