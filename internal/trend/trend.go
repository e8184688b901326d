// Package trend computes lookback-window trend deltas from stored readings.
package trend

import (
	"context"
	"time"

	"github.com/mtskcm/iot-service-notifier/internal/metrics"
	"github.com/mtskcm/iot-service-notifier/internal/models"
	"github.com/mtskcm/iot-service-notifier/internal/storage"
)

// DefaultLookback is the window used for per-reading trend evaluation.
const DefaultLookback = 6 * time.Hour

// Analyzer computes trend deltas against the time-series store.
type Analyzer struct {
	store storage.Store
	now   func() time.Time
}

// NewAnalyzer creates an Analyzer over the given store.
func NewAnalyzer(store storage.Store) *Analyzer {
	return &Analyzer{store: store, now: time.Now}
}

// Compute returns the trend for a metric over [now-lookback, now].
//
// The delta is the chronologically newest sample's value minus the oldest's,
// not a min/max span: trend direction matters, not magnitude. Fewer than two
// samples is a defined non-error outcome with a zero delta; callers must not
// alert on it. A store failure returns models.ErrStorageUnavailable and the
// caller proceeds without a trend signal for this cycle.
func (a *Analyzer) Compute(ctx context.Context, metric string, lookback time.Duration) (models.TrendResult, error) {
	now := a.now()
	start := time.Now()
	samples, err := a.store.Query(ctx, metric, now.Add(-lookback), now)
	metrics.StorageQueryDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return models.TrendResult{}, err
	}

	result := models.TrendResult{Metric: metric, SampleCount: len(samples)}
	if len(samples) < 2 {
		return result, nil
	}

	result.Delta = samples[len(samples)-1].Value - samples[0].Value
	return result, nil
}
