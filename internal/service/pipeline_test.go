package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mtskcm/iot-service-notifier/internal/archive"
	"github.com/mtskcm/iot-service-notifier/internal/engine"
	"github.com/mtskcm/iot-service-notifier/internal/models"
	"github.com/mtskcm/iot-service-notifier/internal/storage"
	"github.com/mtskcm/iot-service-notifier/internal/thresholds"
	"github.com/mtskcm/iot-service-notifier/internal/worker"
)

type fakeStore struct {
	written  []models.MetricReading
	writeErr error
}

func (f *fakeStore) WritePoint(ctx context.Context, r models.MetricReading) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.written = append(f.written, r)
	return nil
}

func (f *fakeStore) Query(ctx context.Context, metric string, start, end time.Time) ([]storage.Sample, error) {
	return nil, nil
}

func (f *fakeStore) Ping(ctx context.Context) error { return nil }
func (f *fakeStore) Close() error                   { return nil }

type fakeSink struct {
	decisions []models.AlertDecision
}

func (f *fakeSink) Dispatch(decisions []models.AlertDecision) {
	f.decisions = append(f.decisions, decisions...)
}

type fakeReports struct {
	runs int
}

func (f *fakeReports) Run(ctx context.Context) error {
	f.runs++
	return nil
}

type fakeArchive struct {
	published int
}

func (f *fakeArchive) Publish(ctx context.Context, reading models.MetricReading) error {
	f.published++
	return nil
}

func (f *fakeArchive) Stats() archive.Stats { return archive.Stats{} }
func (f *fakeArchive) Close() error         { return nil }

type noTrend struct{}

func (noTrend) Compute(ctx context.Context, metric string, lookback time.Duration) (models.TrendResult, error) {
	return models.TrendResult{Metric: metric}, nil
}

type fixture struct {
	store    *fakeStore
	sink     *fakeSink
	reports  *fakeReports
	archive  *fakeArchive
	pipeline *Pipeline
}

func newFixture(reportHour, reportMinute int) *fixture {
	f := &fixture{
		store:   &fakeStore{},
		sink:    &fakeSink{},
		reports: &fakeReports{},
		archive: &fakeArchive{},
	}
	eng := engine.New(thresholds.Default(), noTrend{}, 0)
	f.pipeline = NewPipeline(f.store, eng, f.sink, f.archive, f.reports, reportHour, reportMinute)
	return f
}

func message(payload string) worker.Message {
	return worker.Message{
		ID:         "test-msg",
		Topic:      "home/sensor/zen-1/data",
		Payload:    []byte(payload),
		ReceivedAt: time.Now().UTC(),
	}
}

func TestHandleThresholdAlertEndToEnd(t *testing.T) {
	f := newFixture(0, 0)

	err := f.pipeline.Handle(context.Background(),
		message(`{"dt":"2024-01-01T06:30:00Z","metrics":[{"name":"temperature","value":35,"units":"C"}]}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(f.store.written) != 1 {
		t.Fatalf("stored %d points, want 1", len(f.store.written))
	}
	point := f.store.written[0]
	if point.Name != "temperature" || point.Value != 35 || point.Unit != "C" {
		t.Errorf("stored point = %+v", point)
	}

	if len(f.sink.decisions) != 1 {
		t.Fatalf("dispatched %d decisions, want 1", len(f.sink.decisions))
	}
	d := f.sink.decisions[0]
	if d.Kind != models.AlertThresholdHigh {
		t.Errorf("Kind = %v, want ThresholdHigh", d.Kind)
	}
	if !strings.Contains(d.Title, "Temperature") {
		t.Errorf("Title = %q, want it to contain Temperature", d.Title)
	}

	if f.archive.published != 1 {
		t.Errorf("archived %d readings, want 1", f.archive.published)
	}
	if f.reports.runs != 0 {
		t.Errorf("report ran %d times, want 0", f.reports.runs)
	}
}

func TestHandleStatusMessage(t *testing.T) {
	f := newFixture(0, 0)

	if err := f.pipeline.Handle(context.Background(), message(`{"status":"online"}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(f.store.written) != 0 {
		t.Errorf("status message stored %d points, want 0", len(f.store.written))
	}
	if len(f.sink.decisions) != 0 {
		t.Errorf("status message dispatched %d decisions, want 0", len(f.sink.decisions))
	}
	if f.reports.runs != 0 {
		t.Errorf("status message ran the report %d times, want 0", f.reports.runs)
	}
}

func TestHandleMalformedPayload(t *testing.T) {
	f := newFixture(0, 0)

	err := f.pipeline.Handle(context.Background(), message(`not json`))
	if !errors.Is(err, models.ErrMalformedPayload) {
		t.Fatalf("error = %v, want ErrMalformedPayload", err)
	}
	if len(f.store.written) != 0 {
		t.Errorf("malformed payload stored %d points, want 0", len(f.store.written))
	}
}

func TestHandleMissingTimestamp(t *testing.T) {
	f := newFixture(0, 0)

	err := f.pipeline.Handle(context.Background(),
		message(`{"metrics":[{"name":"temperature","value":21}]}`))
	if !errors.Is(err, models.ErrMissingTimestamp) {
		t.Fatalf("error = %v, want ErrMissingTimestamp", err)
	}
	if len(f.store.written) != 0 {
		t.Errorf("stored %d points, want 0", len(f.store.written))
	}
}

func TestHandleReportTriggerRunsOnce(t *testing.T) {
	f := newFixture(0, 0)

	// Timestamp matches the trigger; the report fires once regardless of
	// how many metrics the message carries.
	err := f.pipeline.Handle(context.Background(),
		message(`{"dt":"2024-01-01T00:00:00Z","metrics":[{"name":"temperature","value":21,"units":"C"},{"name":"humidity","value":40,"units":"%"}]}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if f.reports.runs != 1 {
		t.Errorf("report ran %d times, want 1", f.reports.runs)
	}
	if len(f.store.written) != 2 {
		t.Errorf("stored %d points, want 2", len(f.store.written))
	}
}

func TestHandleStorageFailureStillEvaluates(t *testing.T) {
	f := newFixture(0, 0)
	f.store.writeErr = models.ErrStorageUnavailable

	err := f.pipeline.Handle(context.Background(),
		message(`{"dt":"2024-01-01T06:30:00Z","metrics":[{"name":"temperature","value":35,"units":"C"}]}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The write failed, but the threshold alert still went out.
	if len(f.sink.decisions) != 1 || f.sink.decisions[0].Kind != models.AlertThresholdHigh {
		t.Errorf("decisions = %+v, want one ThresholdHigh", f.sink.decisions)
	}
}

func TestHandlePreservesReadingOrder(t *testing.T) {
	f := newFixture(0, 0)

	err := f.pipeline.Handle(context.Background(),
		message(`{"dt":"2024-01-01T06:30:00Z","metrics":[{"name":"temperature","value":21,"units":"C"},{"name":"humidity","value":40,"units":"%"},{"name":"pressure","value":100000,"units":"Pa"}]}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"temperature", "humidity", "pressure"}
	if len(f.store.written) != len(want) {
		t.Fatalf("stored %d points, want %d", len(f.store.written), len(want))
	}
	for i, name := range want {
		if f.store.written[i].Name != name {
			t.Errorf("written[%d] = %q, want %q", i, f.store.written[i].Name, name)
		}
	}
}
