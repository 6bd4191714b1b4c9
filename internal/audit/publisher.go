// Package audit publishes completed predictions to an audit trail without
// putting the publisher on the request path.
package audit

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/couchcryptid/fire-risk-service/internal/domain"
	"github.com/couchcryptid/fire-risk-service/internal/observability"
)

// BatchLoader writes multiple audit events to the destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, events []domain.AuditEvent) error
}

// Nop discards every event. It is the sink used when auditing is disabled.
type Nop struct{}

// Record does nothing.
func (Nop) Record(domain.AuditEvent) {}

// Options tunes buffering, batching and retry.
type Options struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
	MaxRetries    uint64

	// NewBackOff returns the retry schedule for one batch. Defaults to
	// exponential backoff from 200ms capped at 5s.
	NewBackOff func() backoff.BackOff
}

// Publisher buffers audit events in a bounded queue and writes them in
// batches from a single goroutine.
type Publisher struct {
	loader  BatchLoader
	logger  *slog.Logger
	metrics *observability.Metrics
	opts    Options

	events   chan domain.AuditEvent
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	stopped  atomic.Bool
}

// New creates a Publisher. Call Run to start publishing.
func New(loader BatchLoader, logger *slog.Logger, metrics *observability.Metrics, opts Options) *Publisher {
	if opts.BufferSize <= 0 {
		opts.BufferSize = 1000
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = 500 * time.Millisecond
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 5
	}
	if opts.NewBackOff == nil {
		opts.NewBackOff = defaultBackOff
	}
	return &Publisher{
		loader:  loader,
		logger:  logger,
		metrics: metrics,
		opts:    opts,
		events:  make(chan domain.AuditEvent, opts.BufferSize),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = 30 * time.Second
	return b
}

// Record enqueues an event without blocking. The event is dropped when the
// buffer is full or the publisher has been shut down.
func (p *Publisher) Record(event domain.AuditEvent) {
	if p.stopped.Load() {
		p.metrics.AuditDropped.Inc()
		return
	}
	select {
	case p.events <- event:
	default:
		p.metrics.AuditDropped.Inc()
		p.logger.Warn("audit buffer full, dropping event", "id", event.ID)
	}
}

// Run publishes batches until Shutdown is called or ctx is cancelled.
// On Shutdown the buffered events are flushed first; on cancellation they
// are abandoned.
func (p *Publisher) Run(ctx context.Context) error {
	defer close(p.done)

	p.logger.Info("audit publisher started",
		"batch_size", p.opts.BatchSize,
		"flush_interval", p.opts.FlushInterval,
	)
	p.metrics.AuditRunning.Set(1)
	defer p.metrics.AuditRunning.Set(0)

	ticker := time.NewTicker(p.opts.FlushInterval)
	defer ticker.Stop()

	batch := make([]domain.AuditEvent, 0, p.opts.BatchSize)
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("audit publisher stopping", "reason", ctx.Err(), "abandoned", len(batch)+len(p.events))
			return nil
		case <-p.stop:
			batch = p.drain(batch)
			p.flush(ctx, batch)
			p.logger.Info("audit publisher stopped")
			return nil
		case event := <-p.events:
			batch = append(batch, event)
			if len(batch) >= p.opts.BatchSize {
				p.flush(ctx, batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				p.flush(ctx, batch)
				batch = batch[:0]
			}
		}
	}
}

// Shutdown stops accepting events and waits for the buffered ones to be
// published, or for ctx to expire.
func (p *Publisher) Shutdown(ctx context.Context) error {
	p.stopOnce.Do(func() {
		p.stopped.Store(true)
		close(p.stop)
	})
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// drain moves every buffered event onto batch.
func (p *Publisher) drain(batch []domain.AuditEvent) []domain.AuditEvent {
	for {
		select {
		case event := <-p.events:
			batch = append(batch, event)
		default:
			return batch
		}
	}
}

// flush writes events in chunks of BatchSize, retrying each chunk with
// backoff. A chunk that still fails is dropped.
func (p *Publisher) flush(ctx context.Context, events []domain.AuditEvent) {
	for len(events) > 0 {
		n := min(len(events), p.opts.BatchSize)
		p.publish(ctx, events[:n])
		events = events[n:]
	}
}

func (p *Publisher) publish(ctx context.Context, batch []domain.AuditEvent) {
	attempt := 0
	operation := func() error {
		attempt++
		err := p.loader.LoadBatch(ctx, batch)
		if err != nil {
			p.metrics.AuditPublishErrors.Inc()
			p.logger.Warn("audit publish failed", "error", err, "attempt", attempt, "batch_size", len(batch))
		}
		return err
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(p.opts.NewBackOff(), p.opts.MaxRetries), ctx)
	if err := backoff.Retry(operation, bo); err != nil {
		p.metrics.AuditDropped.Add(float64(len(batch)))
		p.logger.Error("audit batch dropped", "error", err, "batch_size", len(batch))
		return
	}

	p.metrics.AuditPublished.Add(float64(len(batch)))
	p.metrics.AuditBatchSize.Observe(float64(len(batch)))
}
