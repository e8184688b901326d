package trend

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mtskcm/iot-service-notifier/internal/models"
	"github.com/mtskcm/iot-service-notifier/internal/storage"
)

type fakeStore struct {
	samples []storage.Sample
	err     error

	gotMetric string
	gotStart  time.Time
	gotEnd    time.Time
}

func (f *fakeStore) WritePoint(ctx context.Context, r models.MetricReading) error { return nil }

func (f *fakeStore) Query(ctx context.Context, metric string, start, end time.Time) ([]storage.Sample, error) {
	f.gotMetric = metric
	f.gotStart = start
	f.gotEnd = end
	return f.samples, f.err
}

func (f *fakeStore) Ping(ctx context.Context) error { return nil }
func (f *fakeStore) Close() error                   { return nil }

func samplesAt(values ...float64) []storage.Sample {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]storage.Sample, len(values))
	for i, v := range values {
		out[i] = storage.Sample{Metric: "temperature", Time: base.Add(time.Duration(i) * time.Hour), Value: v}
	}
	return out
}

func TestComputeTooFewSamples(t *testing.T) {
	tests := []struct {
		name    string
		samples []storage.Sample
	}{
		{"no samples", nil},
		{"one sample", samplesAt(10.0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAnalyzer(&fakeStore{samples: tt.samples})
			result, err := a.Compute(context.Background(), "temperature", DefaultLookback)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.Delta != 0 {
				t.Errorf("Delta = %v, want 0", result.Delta)
			}
			if result.SampleCount != len(tt.samples) {
				t.Errorf("SampleCount = %d, want %d", result.SampleCount, len(tt.samples))
			}
		})
	}
}

func TestComputeDelta(t *testing.T) {
	a := NewAnalyzer(&fakeStore{samples: samplesAt(10.0, 22.0)})

	result, err := a.Compute(context.Background(), "temperature", DefaultLookback)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Delta != 12.0 {
		t.Errorf("Delta = %v, want 12.0", result.Delta)
	}
	if result.SampleCount != 2 {
		t.Errorf("SampleCount = %d, want 2", result.SampleCount)
	}
}

func TestComputeUsesChronologicalEndpoints(t *testing.T) {
	// The middle spike must not affect the delta: first vs last, not min/max.
	a := NewAnalyzer(&fakeStore{samples: samplesAt(20.0, 95.0, 18.0)})

	result, err := a.Compute(context.Background(), "temperature", DefaultLookback)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Delta != -2.0 {
		t.Errorf("Delta = %v, want -2.0", result.Delta)
	}
}

func TestComputeLookbackWindow(t *testing.T) {
	store := &fakeStore{}
	a := NewAnalyzer(store)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return now }

	if _, err := a.Compute(context.Background(), "humidity", 6*time.Hour); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if store.gotMetric != "humidity" {
		t.Errorf("queried metric = %q, want humidity", store.gotMetric)
	}
	if !store.gotStart.Equal(now.Add(-6 * time.Hour)) {
		t.Errorf("window start = %v, want %v", store.gotStart, now.Add(-6*time.Hour))
	}
	if !store.gotEnd.Equal(now) {
		t.Errorf("window end = %v, want %v", store.gotEnd, now)
	}
}

func TestComputeStorageFailure(t *testing.T) {
	a := NewAnalyzer(&fakeStore{err: models.ErrStorageUnavailable})

	_, err := a.Compute(context.Background(), "temperature", DefaultLookback)
	if !errors.Is(err, models.ErrStorageUnavailable) {
		t.Errorf("error = %v, want ErrStorageUnavailable", err)
	}
}
