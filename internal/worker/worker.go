package worker

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mtskcm/iot-service-notifier/internal/logger"
	"github.com/mtskcm/iot-service-notifier/internal/metrics"
)

// Message is one raw inbound transport message queued for evaluation.
type Message struct {
	// ID traces the message through logs
	ID string

	// Topic the message arrived on
	Topic string

	// Raw payload bytes
	Payload []byte

	// ReceivedAt is when the transport delivered the message
	ReceivedAt time.Time
}

// Handler runs the full per-message pipeline: normalize, persist, evaluate,
// dispatch. It must recover every per-message failure class internally; an
// error return only marks the message failed in the stats.
type Handler interface {
	Handle(ctx context.Context, msg Message) error
}

// Pool drains the inbound message queue with a fixed set of workers so the
// transport callback never blocks on storage or notifier I/O. Each message is
// handled by exactly one worker; a message's readings are processed
// sequentially in payload order by that worker.
type Pool struct {
	handler Handler
	msgChan chan Message
	workers int
	timeout time.Duration

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	processed atomic.Uint64
	failed    atomic.Uint64
}

// Config holds worker pool configuration
type Config struct {
	Handler Handler
	MsgChan chan Message
	Workers int
	// Timeout bounds one message's handling so a hung storage call cannot
	// stall a worker indefinitely
	Timeout time.Duration
}

// NewPool creates a new worker pool
func NewPool(cfg Config) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Pool{
		handler: cfg.Handler,
		msgChan: cfg.MsgChan,
		workers: cfg.Workers,
		timeout: cfg.Timeout,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start begins processing messages
func (p *Pool) Start() {
	log := logger.WithComponent("worker_pool")
	log.Info().
		Int("workers", p.workers).
		Dur("timeout", p.timeout).
		Msg("starting worker pool")

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop gracefully stops all workers
func (p *Pool) Stop() {
	log := logger.WithComponent("worker_pool")
	log.Info().Msg("stopping worker pool")
	p.cancel()
	p.wg.Wait()
	log.Info().Msg("worker pool stopped")
}

// worker drains messages from the channel
func (p *Pool) worker(id int) {
	defer p.wg.Done()

	log := logger.WithComponent("worker").With().Int("worker_id", id).Logger()
	log.Info().Msg("worker started")
	defer log.Info().Msg("worker stopped")

	for {
		select {
		case <-p.ctx.Done():
			return
		case msg, ok := <-p.msgChan:
			if !ok {
				return
			}
			p.handle(msg)
			metrics.WorkerQueueSize.Set(float64(len(p.msgChan)))
		}
	}
}

// handle runs one message through the pipeline with panic recovery, so a
// malformed message can never take a worker down.
func (p *Pool) handle(msg Message) {
	log := logger.WithMessageID(msg.ID)

	defer func() {
		if r := recover(); r != nil {
			stack := debug.Stack()
			log.Error().
				Interface("panic", r).
				Bytes("stack", stack).
				Msg("worker panic recovered")
			metrics.PanicsRecovered.WithLabelValues("worker").Inc()
			p.failed.Add(1)
			metrics.WorkerFailedTotal.Inc()
		}
	}()

	start := time.Now()
	ctx, cancel := context.WithTimeout(p.ctx, p.timeout)
	defer cancel()

	err := p.handler.Handle(ctx, msg)
	duration := time.Since(start)
	metrics.EvaluationDuration.Observe(duration.Seconds())

	if err != nil {
		log.Error().
			Err(err).
			Str("topic", msg.Topic).
			Dur("duration", duration).
			Msg("message handling failed")
		p.failed.Add(1)
		metrics.WorkerFailedTotal.Inc()
		return
	}

	p.processed.Add(1)
	metrics.WorkerProcessedTotal.Inc()
}

// Stats returns worker pool statistics
func (p *Pool) Stats() Stats {
	return Stats{
		Processed: p.processed.Load(),
		Failed:    p.failed.Load(),
	}
}

// Stats holds worker pool counters
type Stats struct {
	Processed uint64
	Failed    uint64
}
