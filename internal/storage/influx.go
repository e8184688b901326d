package storage

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/mtskcm/iot-service-notifier/internal/logger"
	"github.com/mtskcm/iot-service-notifier/internal/models"
)

// Influx is the InfluxDB 2.x backed Store. Writes are synchronous so a
// dropped point surfaces to the caller immediately.
type Influx struct {
	client influxdb2.Client
	write  api.WriteAPIBlocking
	query  api.QueryAPI
	bucket string
}

// NewInflux creates an InfluxDB-backed store.
func NewInflux(url, token, org, bucket string) *Influx {
	client := influxdb2.NewClient(url, token)
	return &Influx{
		client: client,
		write:  client.WriteAPIBlocking(org, bucket),
		query:  client.QueryAPI(org),
		bucket: bucket,
	}
}

// WritePoint persists one reading as a point measured by metric name, with
// value and unit fields.
func (s *Influx) WritePoint(ctx context.Context, r models.MetricReading) error {
	point := influxdb2.NewPoint(
		r.Name,
		nil,
		map[string]interface{}{"value": r.Value, "unit": r.Unit},
		r.Timestamp,
	)
	if err := s.write.WritePoint(ctx, point); err != nil {
		return fmt.Errorf("%w: influx write: %v", models.ErrStorageUnavailable, err)
	}
	return nil
}

// Query returns value samples in [start, end], ordered by time ascending.
func (s *Influx) Query(ctx context.Context, metric string, start, end time.Time) ([]Sample, error) {
	flux := fmt.Sprintf(`from(bucket: %q)
  |> range(start: %s, stop: %s)
  |> filter(fn: (r) => r._field == "value")`,
		s.bucket, start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339))
	if metric != "" {
		flux += fmt.Sprintf("\n  |> filter(fn: (r) => r._measurement == %q)", metric)
	}
	flux += "\n  |> sort(columns: [\"_time\"])"

	result, err := s.query.Query(ctx, flux)
	if err != nil {
		return nil, fmt.Errorf("%w: influx query: %v", models.ErrStorageUnavailable, err)
	}

	log := logger.WithComponent("storage")
	var samples []Sample
	for result.Next() {
		rec := result.Record()
		value, ok := rec.Value().(float64)
		if !ok {
			log.Debug().
				Str("metric", rec.Measurement()).
				Interface("value", rec.Value()).
				Msg("skipping non-numeric sample")
			continue
		}
		samples = append(samples, Sample{
			Metric: rec.Measurement(),
			Time:   rec.Time(),
			Value:  value,
		})
	}
	if result.Err() != nil {
		return nil, fmt.Errorf("%w: influx result: %v", models.ErrStorageUnavailable, result.Err())
	}

	return samples, nil
}

// Ping verifies connectivity to the InfluxDB server.
func (s *Influx) Ping(ctx context.Context) error {
	ok, err := s.client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrStorageUnavailable, err)
	}
	if !ok {
		return models.ErrStorageUnavailable
	}
	return nil
}

// Close releases the underlying client.
func (s *Influx) Close() error {
	s.client.Close()
	return nil
}
