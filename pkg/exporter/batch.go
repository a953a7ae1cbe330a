package exporter

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/opentrail/opentrail/pkg/tracer/model"
)

const (
	DefaultQueueSize     = 2048
	DefaultBatchSize     = 512
	DefaultFlushInterval = 5 * time.Second
	DefaultMaxRetries    = 3
	DefaultRetryBackoff  = 100 * time.Millisecond
)

type BatchConfig struct {
	QueueSize     int
	BatchSize     int
	FlushInterval time.Duration
	MaxRetries    int
	RetryBackoff  time.Duration
}

func (c BatchConfig) withDefaults() BatchConfig {
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = DefaultFlushInterval
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = DefaultRetryBackoff
	}
	return c
}

// BatchProcessor buffers completed spans on a bounded queue and flushes them
// to the exporter from a single goroutine, on a size threshold or a timer.
// Many producers may call OnEnd concurrently; when the queue is full the span
// is dropped and counted rather than blocking the instrumented code. Export
// failures are retried with capped exponential backoff and then dropped.
type BatchProcessor struct {
	exporter Exporter
	cfg      BatchConfig
	logger   *zap.Logger
	metrics  *Metrics

	queue   chan model.Span
	stopCh  chan struct{}
	done    chan struct{}
	stopped atomic.Bool
	dropped atomic.Uint64
}

func NewBatchProcessor(exporter Exporter, cfg BatchConfig, logger *zap.Logger, metrics *Metrics) *BatchProcessor {
	cfg = cfg.withDefaults()
	p := &BatchProcessor{
		exporter: exporter,
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
		queue:    make(chan model.Span, cfg.QueueSize),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
	go p.run()
	return p
}

// OnEnd enqueues a completed span. Never blocks.
func (p *BatchProcessor) OnEnd(span model.Span) {
	if p.stopped.Load() {
		p.recordDropped(1)
		return
	}
	select {
	case p.queue <- span:
	default:
		p.recordDropped(1)
	}
}

// DroppedSpans returns the number of spans dropped so far.
func (p *BatchProcessor) DroppedSpans() uint64 {
	return p.dropped.Load()
}

// Shutdown stops the flusher, drains the queue and shuts the exporter down.
func (p *BatchProcessor) Shutdown(ctx context.Context) error {
	if p.stopped.Swap(true) {
		return ErrProcessorStopped
	}
	close(p.stopCh)
	select {
	case <-p.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return p.exporter.Shutdown(ctx)
}

func (p *BatchProcessor) run() {
	defer close(p.done)

	ticker := time.NewTicker(p.cfg.FlushInterval)
	defer ticker.Stop()

	batch := make([]model.Span, 0, p.cfg.BatchSize)
	for {
		select {
		case span := <-p.queue:
			batch = append(batch, span)
			if len(batch) >= p.cfg.BatchSize {
				p.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				p.flush(batch)
				batch = batch[:0]
			}
		case <-p.stopCh:
			// Drain whatever producers managed to enqueue before stop.
			for {
				select {
				case span := <-p.queue:
					batch = append(batch, span)
				default:
					if len(batch) > 0 {
						p.flush(batch)
					}
					return
				}
			}
		}
	}
}

func (p *BatchProcessor) flush(batch []model.Span) {
	spans := make([]model.Span, len(batch))
	copy(spans, batch)

	backoff := p.cfg.RetryBackoff
	var err error
	for attempt := 0; attempt <= p.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if p.metrics != nil {
				p.metrics.ExportRetries.Inc()
			}
			time.Sleep(backoff)
			backoff *= 2
		}
		ctx, cancel := context.WithTimeout(context.Background(), p.cfg.FlushInterval)
		err = p.exporter.Export(ctx, spans)
		cancel()
		if err == nil {
			if p.metrics != nil {
				p.metrics.ExportedSpans.Add(float64(len(spans)))
			}
			return
		}
	}

	p.logger.Error(
		"Dropping batch after repeated export failures",
		zap.Int("spans", len(spans)),
		zap.Int("retries", p.cfg.MaxRetries),
		zap.Error(err),
	)
	p.recordDropped(len(spans))
}

func (p *BatchProcessor) recordDropped(n int) {
	p.dropped.Add(uint64(n))
	if p.metrics != nil {
		p.metrics.DroppedSpans.Add(float64(n))
	}
}
