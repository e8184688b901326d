package models_test

import (
	"errors"
	"testing"
	"time"

	"github.com/mtskcm/iot-service-notifier/internal/models"
)

func TestParsePayloadStatusOnly(t *testing.T) {
	batch, err := models.ParsePayload([]byte(`{"status":"online"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !batch.IsStatus() {
		t.Error("expected a status batch")
	}
	if batch.Status != "online" {
		t.Errorf("Status = %q, want %q", batch.Status, "online")
	}
	if len(batch.Readings) != 0 {
		t.Errorf("status batch yielded %d readings, want 0", len(batch.Readings))
	}
}

func TestParsePayloadErrors(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantErr error
	}{
		{"not json", `{{{`, models.ErrMalformedPayload},
		{"missing dt", `{"metrics":[{"name":"temperature","value":21}]}`, models.ErrMissingTimestamp},
		{"empty dt", `{"dt":"","metrics":[]}`, models.ErrMissingTimestamp},
		{"bad dt", `{"dt":"yesterday","metrics":[]}`, models.ErrInvalidTimestamp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := models.ParsePayload([]byte(tt.payload))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ParsePayload(%s) error = %v, want %v", tt.payload, err, tt.wantErr)
			}
		})
	}
}

func TestParsePayloadReadings(t *testing.T) {
	payload := `{
		"dt": "2024-01-01T00:00:00Z",
		"metrics": [
			{"name": "temperature", "value": 21.5, "units": "C"},
			{"name": "humidity", "value": 40},
			{"value": 3},
			{"name": "sound"}
		]
	}`

	batch, err := models.ParsePayload([]byte(payload))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(batch.Readings) != 2 {
		t.Fatalf("got %d readings, want 2", len(batch.Readings))
	}
	if batch.Rejected != 2 {
		t.Errorf("Rejected = %d, want 2", batch.Rejected)
	}

	first := batch.Readings[0]
	if first.Name != "temperature" || first.Value != 21.5 || first.Unit != "C" {
		t.Errorf("unexpected first reading: %+v", first)
	}

	// units defaults to "unknown" when absent
	second := batch.Readings[1]
	if second.Unit != "unknown" {
		t.Errorf("Unit = %q, want %q", second.Unit, "unknown")
	}

	want := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, r := range batch.Readings {
		if !r.Timestamp.Equal(want) {
			t.Errorf("reading %d timestamp = %v, want %v", i, r.Timestamp, want)
		}
	}
}

func TestParsePayloadZeroValueEntryKept(t *testing.T) {
	// A present-but-zero value is valid; only a missing value rejects the entry.
	batch, err := models.ParsePayload([]byte(`{"dt":"2024-01-01T12:00:00Z","metrics":[{"name":"light","value":0}]}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(batch.Readings) != 1 || batch.Rejected != 0 {
		t.Errorf("got %d readings (%d rejected), want 1 (0 rejected)", len(batch.Readings), batch.Rejected)
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"trailing Z", "2024-01-15T10:30:00Z", false},
		{"explicit offset", "2024-01-15T10:30:00+02:00", false},
		{"nanoseconds", "2024-01-15T10:30:00.123456789Z", false},
		{"naive", "2024-01-15T10:30:00", false},
		{"with whitespace", "  2024-01-15T10:30:00Z  ", false},
		{"invalid", "not-a-timestamp", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := models.ParseTimestamp(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseTimestamp(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestParseTimestampReturnsUTC(t *testing.T) {
	ts, err := models.ParseTimestamp("2024-01-15T12:30:00+02:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ts.Location() != time.UTC {
		t.Errorf("expected UTC, got %v", ts.Location())
	}
	if ts.Hour() != 10 {
		t.Errorf("expected 10:30 UTC, got %v", ts)
	}
}

func TestAtReportTrigger(t *testing.T) {
	tests := []struct {
		name         string
		batch        models.Batch
		hour, minute int
		want         bool
	}{
		{
			"exact match",
			models.Batch{Timestamp: time.Date(2024, 1, 1, 0, 0, 30, 0, time.UTC)},
			0, 0, true,
		},
		{
			"minute off",
			models.Batch{Timestamp: time.Date(2024, 1, 1, 0, 1, 0, 0, time.UTC)},
			0, 0, false,
		},
		{
			"offset timestamp compared in UTC",
			models.Batch{Timestamp: time.Date(2024, 1, 1, 2, 0, 0, 0, time.FixedZone("CET+1", 2*3600))},
			0, 0, true,
		},
		{
			"status batch never triggers",
			models.Batch{Status: "online"},
			0, 0, false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.batch.AtReportTrigger(tt.hour, tt.minute); got != tt.want {
				t.Errorf("AtReportTrigger(%d, %d) = %v, want %v", tt.hour, tt.minute, got, tt.want)
			}
		})
	}
}
