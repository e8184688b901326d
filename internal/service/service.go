// Package service wires the notifier together: MQTT consumption, the worker
// pool, storage, the alert engine, dispatch, and the ops HTTP server.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mtskcm/iot-service-notifier/internal/archive"
	"github.com/mtskcm/iot-service-notifier/internal/config"
	"github.com/mtskcm/iot-service-notifier/internal/dispatch"
	"github.com/mtskcm/iot-service-notifier/internal/engine"
	"github.com/mtskcm/iot-service-notifier/internal/logger"
	"github.com/mtskcm/iot-service-notifier/internal/metrics"
	"github.com/mtskcm/iot-service-notifier/internal/middleware"
	"github.com/mtskcm/iot-service-notifier/internal/mqtt"
	"github.com/mtskcm/iot-service-notifier/internal/notify"
	"github.com/mtskcm/iot-service-notifier/internal/report"
	"github.com/mtskcm/iot-service-notifier/internal/storage"
	"github.com/mtskcm/iot-service-notifier/internal/thresholds"
	"github.com/mtskcm/iot-service-notifier/internal/trend"
	"github.com/mtskcm/iot-service-notifier/internal/worker"
)

// Service is the high-level coordinator for consuming, evaluating, and
// alerting.
type Service struct {
	cfg        *config.Config
	store      storage.Store
	dispatcher *dispatch.Dispatcher
	archivePub archive.Publisher
	workerPool *worker.Pool
	broker     *mqtt.Client
	httpServer *http.Server
	msgChan    chan worker.Message
	wg         sync.WaitGroup
}

// New constructs a Service with the given config.
func New(cfg *config.Config) *Service {
	return &Service{
		cfg:     cfg,
		msgChan: make(chan worker.Message, 1000),
	}
}

// Run starts the service and blocks until the context is cancelled or a
// shutdown command arrives on the command topic.
func (s *Service) Run(ctx context.Context) error {
	log := logger.WithComponent("service")
	log.Info().Msg("service starting")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	store, err := storage.Open(s.cfg)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	s.store = store

	notifier, err := notify.NewShoutrrr(s.cfg.NotifyURL)
	if err != nil {
		return fmt.Errorf("init notifier: %w", err)
	}
	s.dispatcher = dispatch.New(notifier)

	if s.cfg.ArchiveEnabled() {
		pub, err := archive.NewKafka(s.cfg.KafkaBrokers, s.cfg.KafkaTopic)
		if err != nil {
			return fmt.Errorf("init archive: %w", err)
		}
		s.archivePub = pub
		log.Info().
			Strs("brokers", s.cfg.KafkaBrokers).
			Str("topic", s.cfg.KafkaTopic).
			Msg("kafka archive enabled")
	} else {
		s.archivePub = archive.NewNop()
	}

	table := thresholds.Default()
	analyzer := trend.NewAnalyzer(store)
	eng := engine.New(table, analyzer, s.cfg.TrendLookback)
	reports := report.NewGenerator(store, table, s.dispatcher)
	pipeline := NewPipeline(store, eng, s.dispatcher, s.archivePub, reports,
		s.cfg.ReportHour, s.cfg.ReportMinute)

	s.workerPool = worker.NewPool(worker.Config{
		Handler: pipeline,
		MsgChan: s.msgChan,
		Workers: s.cfg.Workers,
	})
	s.workerPool.Start()
	metrics.WorkerQueueCapacity.Set(float64(cap(s.msgChan)))

	s.broker = mqtt.NewClient(s.cfg, s.enqueue, cancel)
	if err := s.broker.Connect(); err != nil {
		s.workerPool.Stop()
		return fmt.Errorf("connect broker: %w", err)
	}

	s.initHTTPServer()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		log.Info().Str("addr", s.cfg.HTTPAddr).Msg("starting ops HTTP server")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server error")
		}
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.reportStats(ctx)
	}()

	log.Info().Msg("waiting for messages")
	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	return s.shutdown()
}

// enqueue hands one inbound message to the worker queue. It runs on the paho
// dispatch path, so it never blocks: when the queue is full the message is
// dropped and counted.
func (s *Service) enqueue(topic string, payload []byte) {
	msg := worker.Message{
		ID:         uuid.New().String(),
		Topic:      topic,
		Payload:    payload,
		ReceivedAt: time.Now().UTC(),
	}

	select {
	case s.msgChan <- msg:
		metrics.WorkerQueueSize.Set(float64(len(s.msgChan)))
	default:
		log := logger.WithComponent("service")
		log.Warn().
			Str("topic", topic).
			Msg("worker queue full, dropping message")
		metrics.MessagesReceived.WithLabelValues("dropped").Inc()
	}
}

// initHTTPServer initializes the ops HTTP server
func (s *Service) initHTTPServer() {
	mux := http.NewServeMux()
	mux.Handle("/health", middleware.Chain(
		http.HandlerFunc(s.healthHandler),
		middleware.Recovery,
		middleware.Logging,
	))
	mux.Handle("/stats", middleware.Chain(
		http.HandlerFunc(s.statsHandler),
		middleware.Recovery,
		middleware.Logging,
	))
	mux.Handle("/metrics", promhttp.Handler())

	s.httpServer = &http.Server{
		Addr:         s.cfg.HTTPAddr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// shutdown performs graceful shutdown
func (s *Service) shutdown() error {
	log := logger.WithComponent("service")
	log.Info().Msg("initiating graceful shutdown")

	// 1. Publish retained offline status and stop consuming.
	s.broker.Disconnect()

	// 2. Stop the ops HTTP server.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 3. Drain in-flight messages with a timeout.
	close(s.msgChan)
	done := make(chan struct{})
	go func() {
		s.workerPool.Stop()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("workers stopped gracefully")
	case <-time.After(15 * time.Second):
		log.Warn().Msg("worker shutdown timeout - forcing exit")
	}

	// 4. Close the archive and the store.
	if err := s.archivePub.Close(); err != nil {
		log.Error().Err(err).Msg("archive close error")
	}
	if err := s.store.Close(); err != nil {
		log.Error().Err(err).Msg("storage close error")
	}

	s.wg.Wait()
	log.Info().Msg("service stopped gracefully")
	return nil
}

// reportStats periodically logs statistics
func (s *Service) reportStats(ctx context.Context) {
	log := logger.WithComponent("service")
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			workerStats := s.workerPool.Stats()
			dispatchStats := s.dispatcher.Stats()
			archiveStats := s.archivePub.Stats()

			metrics.WorkerQueueSize.Set(float64(len(s.msgChan)))

			log.Info().
				Uint64("worker_processed", workerStats.Processed).
				Uint64("worker_failed", workerStats.Failed).
				Uint64("notifications_sent", dispatchStats.Sent).
				Uint64("notifications_failed", dispatchStats.Failed).
				Uint64("archive_published", archiveStats.Published).
				Uint64("archive_failed", archiveStats.Failed).
				Int("queue_size", len(s.msgChan)).
				Msg("stats")
		}
	}
}

// healthHandler handles health check requests
func (s *Service) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		http.Error(w, fmt.Sprintf("unhealthy: %v", err), http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","timestamp":"%s"}`, time.Now().Format(time.RFC3339))
}

// statsHandler returns current statistics
func (s *Service) statsHandler(w http.ResponseWriter, r *http.Request) {
	workerStats := s.workerPool.Stats()
	dispatchStats := s.dispatcher.Stats()
	archiveStats := s.archivePub.Stats()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{
		"worker": {
			"processed": %d,
			"failed": %d
		},
		"notifications": {
			"sent": %d,
			"failed": %d
		},
		"archive": {
			"published": %d,
			"failed": %d,
			"bytes_written": %d
		},
		"queue": {
			"buffered": %d,
			"capacity": %d
		}
	}`,
		workerStats.Processed,
		workerStats.Failed,
		dispatchStats.Sent,
		dispatchStats.Failed,
		archiveStats.Published,
		archiveStats.Failed,
		archiveStats.BytesWritten,
		len(s.msgChan),
		cap(s.msgChan),
	)
}
