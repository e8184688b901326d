package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/mtskcm/iot-service-notifier/internal/config"
	"github.com/mtskcm/iot-service-notifier/internal/models"
)

// Sample is one stored observation returned by a range query.
type Sample struct {
	Metric string
	Time   time.Time
	Value  float64
}

// Store persists metric readings and serves time-range queries. Query results
// are ordered by time ascending. An empty metric filter matches all metrics.
type Store interface {
	WritePoint(ctx context.Context, r models.MetricReading) error
	Query(ctx context.Context, metric string, start, end time.Time) ([]Sample, error)
	Ping(ctx context.Context) error
	Close() error
}

// Open constructs the configured storage backend.
func Open(cfg *config.Config) (Store, error) {
	switch cfg.StorageBackend {
	case "influx":
		return NewInflux(cfg.InfluxURL, cfg.InfluxToken, cfg.InfluxOrg, cfg.InfluxBucket), nil
	case "sqlite":
		return NewSQLite(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}
