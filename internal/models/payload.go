package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Batch is the result of normalizing one inbound message.
type Batch struct {
	// Liveness status string, set when the message was a status-only signal.
	// A status batch carries no readings and no timestamp.
	Status string

	// Timestamp shared by every reading in the batch
	Timestamp time.Time

	// Readings in the order they appeared in the payload
	Readings []MetricReading

	// Number of metric entries skipped for missing name or value
	Rejected int
}

// IsStatus reports whether the batch is a liveness-only signal.
func (b *Batch) IsStatus() bool { return b.Status != "" }

// AtReportTrigger reports whether the batch timestamp's UTC hour and minute
// exactly match the configured daily report trigger.
func (b *Batch) AtReportTrigger(hour, minute int) bool {
	if b.IsStatus() || b.Timestamp.IsZero() {
		return false
	}
	t := b.Timestamp.UTC()
	return t.Hour() == hour && t.Minute() == minute
}

type payloadEnvelope struct {
	Status  *string       `json:"status"`
	DT      string        `json:"dt"`
	Metrics []metricEntry `json:"metrics"`
}

type metricEntry struct {
	Name  string   `json:"name"`
	Value *float64 `json:"value"`
	Units string   `json:"units"`
}

// supportedTimestampFormats lists formats we attempt to parse, after the
// trailing-Z normalization
var supportedTimestampFormats = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
}

// ParsePayload normalizes one raw inbound payload into a Batch.
//
// A payload with a "status" field is a liveness signal and yields zero
// readings. Otherwise "dt" is required and must parse as an ISO-8601 instant;
// each metrics entry needs name and value, and entries missing either are
// skipped without failing the batch (partial success). "units" defaults to
// "unknown".
func ParsePayload(raw []byte) (*Batch, error) {
	var env payloadEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	if env.Status != nil {
		return &Batch{Status: *env.Status}, nil
	}

	if strings.TrimSpace(env.DT) == "" {
		return nil, ErrMissingTimestamp
	}

	ts, err := ParseTimestamp(env.DT)
	if err != nil {
		return nil, err
	}

	batch := &Batch{Timestamp: ts}
	for _, m := range env.Metrics {
		if m.Name == "" || m.Value == nil {
			batch.Rejected++
			continue
		}
		units := m.Units
		if units == "" {
			units = "unknown"
		}
		batch.Readings = append(batch.Readings, MetricReading{
			Name:      m.Name,
			Value:     *m.Value,
			Unit:      units,
			Timestamp: ts,
		})
	}

	return batch, nil
}

// ParseTimestamp parses an ISO-8601 instant. A trailing literal "Z" is
// normalized to an explicit UTC offset before parsing.
func ParseTimestamp(ts string) (time.Time, error) {
	ts = strings.TrimSpace(ts)
	if strings.HasSuffix(ts, "Z") {
		ts = strings.TrimSuffix(ts, "Z") + "+00:00"
	}

	for _, format := range supportedTimestampFormats {
		if t, err := time.Parse(format, ts); err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, ts)
}
