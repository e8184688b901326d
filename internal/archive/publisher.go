// Package archive mirrors accepted readings to a Kafka topic for downstream
// analytics. Archiving is best effort: a failed publish is logged and counted
// but never blocks the evaluation pipeline.
package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/mtskcm/iot-service-notifier/internal/logger"
	"github.com/mtskcm/iot-service-notifier/internal/metrics"
	"github.com/mtskcm/iot-service-notifier/internal/models"
)

// Publisher errors
var (
	ErrPublisherClosed = errors.New("archive publisher is closed")
)

const (
	maxRetries   = 3
	retryBackoff = 250 * time.Millisecond
)

// Publisher archives readings to Kafka.
type Publisher interface {
	Publish(ctx context.Context, reading models.MetricReading) error
	Stats() Stats
	Close() error
}

// Stats holds archive counters.
type Stats struct {
	Published    uint64
	Failed       uint64
	BytesWritten uint64
}

// Kafka is the kafka-go backed Publisher. Readings are keyed by metric name
// so one metric's points land on one partition in order.
type Kafka struct {
	writer *kafka.Writer
	closed atomic.Bool

	published    atomic.Uint64
	failed       atomic.Uint64
	bytesWritten atomic.Uint64
}

// NewKafka creates a Kafka archive publisher.
func NewKafka(brokers []string, topic string) (*Kafka, error) {
	if len(brokers) == 0 {
		return nil, errors.New("at least one broker is required")
	}
	if topic == "" {
		return nil, errors.New("topic is required")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{}, // partition by metric name
		RequiredAcks: kafka.RequireOne,
		WriteTimeout: 10 * time.Second,
		Async:        false,
	}

	return &Kafka{writer: writer}, nil
}

// Publish archives one reading, retrying transient failures with exponential
// backoff.
func (p *Kafka) Publish(ctx context.Context, reading models.MetricReading) error {
	if p.closed.Load() {
		return ErrPublisherClosed
	}

	data, err := json.Marshal(reading)
	if err != nil {
		p.failed.Add(1)
		return fmt.Errorf("serialize reading: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(reading.Name),
		Value: data,
		Time:  reading.Timestamp,
	}

	if err := p.publishWithRetry(ctx, msg); err != nil {
		p.failed.Add(1)
		metrics.ArchivePublishTotal.WithLabelValues("failed").Inc()
		return err
	}

	p.published.Add(1)
	p.bytesWritten.Add(uint64(len(data)))
	metrics.ArchivePublishTotal.WithLabelValues("success").Inc()
	metrics.ArchiveBytesWritten.Add(float64(len(data)))
	return nil
}

func (p *Kafka) publishWithRetry(ctx context.Context, msg kafka.Message) error {
	log := logger.WithComponent("archive")
	var lastErr error
	backoff := retryBackoff

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			log.Warn().
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Msg("retrying archive publish")
			metrics.ArchivePublishRetries.Inc()

			select {
			case <-time.After(backoff):
				backoff *= 2
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err := p.writer.WriteMessages(ctx, msg)
		if err == nil {
			return nil
		}

		lastErr = err
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
	}

	return fmt.Errorf("archive publish failed after %d attempts: %w", maxRetries+1, lastErr)
}

// Stats returns archive counters.
func (p *Kafka) Stats() Stats {
	return Stats{
		Published:    p.published.Load(),
		Failed:       p.failed.Load(),
		BytesWritten: p.bytesWritten.Load(),
	}
}

// Close closes the underlying writer.
func (p *Kafka) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	return p.writer.Close()
}

// Nop is the disabled archive: every publish succeeds without I/O.
type Nop struct{}

// NewNop returns a disabled archive publisher.
func NewNop() *Nop { return &Nop{} }

func (*Nop) Publish(ctx context.Context, reading models.MetricReading) error { return nil }
func (*Nop) Stats() Stats                                                    { return Stats{} }
func (*Nop) Close() error                                                    { return nil }
