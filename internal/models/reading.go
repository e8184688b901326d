package models

import (
	"errors"
	"time"
)

// MetricReading represents a single sensor observation. Immutable once
// constructed by the ingest normalizer.
type MetricReading struct {
	// Metric name, e.g. "temperature"
	Name string `json:"name"`

	// Observed value
	Value float64 `json:"value"`

	// Unit of measurement; "unknown" when the sender omitted it
	Unit string `json:"unit"`

	// Timestamp of the observation (UTC)
	Timestamp time.Time `json:"timestamp"`
}

// ThresholdSpec holds the static alerting bounds for one metric. A nil bound
// means that side is not monitored.
type ThresholdSpec struct {
	Metric     string
	High       *float64
	Low        *float64
	TrendBound *float64
}

// TrendResult is the outcome of a trend lookback computation. Ephemeral,
// never persisted.
type TrendResult struct {
	Metric      string
	Delta       float64
	SampleCount int
}

// AlertKind classifies an alert decision.
type AlertKind string

const (
	AlertThresholdHigh AlertKind = "threshold_high"
	AlertThresholdLow  AlertKind = "threshold_low"
	AlertTrend         AlertKind = "trend"
)

// AlertDecision is a single resolved alert ready for dispatch.
type AlertDecision struct {
	Kind   AlertKind
	Metric string
	Title  string
	Body   string
}

// EnvironmentInsight summarizes one metric over the daily report window.
type EnvironmentInsight struct {
	Metric     string
	Average    float64
	AboveCount int
	BelowCount int
}

// Failure taxonomy. Every class is recovered locally by the per-message
// handler; none may terminate the process or drop the transport connection.
var (
	ErrMalformedPayload   = errors.New("payload is not valid JSON")
	ErrMissingTimestamp   = errors.New("payload is missing the dt timestamp")
	ErrInvalidTimestamp   = errors.New("invalid timestamp format")
	ErrInvalidMetricEntry = errors.New("metric entry is missing name or value")
	ErrStorageUnavailable = errors.New("time-series store unavailable")
	ErrNotifyFailed       = errors.New("notification delivery failed")
)
