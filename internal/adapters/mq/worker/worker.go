// Package worker runs the per-shard consumers that drive the progress
// engine. One worker owns one queue shard, so every player's events are
// handled by a single goroutine in arrival order.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/clanhall/bingo/internal/domain/event"
	"github.com/clanhall/bingo/pkg/logger"
	"github.com/clanhall/bingo/pkg/metrics"
)

const (
	workerShutdownTimeout = 5 * time.Second
	poolShutdownTimeout   = 30 * time.Second
)

// Handler applies one normalized event to competition state.
type Handler interface {
	HandleEvent(ctx context.Context, e event.UnifiedGameEvent) error
}

// Queue defines how workers receive events.
type Queue interface {
	Dequeue(ctx context.Context, shard int) <-chan event.UnifiedGameEvent
	Shards() int
}

// ShardWorker consumes a single queue shard.
type ShardWorker struct {
	queue   Queue
	handler Handler
	shard   int
	name    string

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewShardWorker creates a worker bound to one shard.
func NewShardWorker(queue Queue, handler Handler, shard int, opts ...Option) *ShardWorker {
	w := &ShardWorker{
		queue:    queue,
		handler:  handler,
		shard:    shard,
		name:     "worker-" + strconv.Itoa(shard),
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named(w.name)
	}
	return w
}

// Run starts the worker loop until ctx is canceled, shutdown is
// signaled, or the shard channel closes.
func (w *ShardWorker) Run(ctx context.Context) {
	defer close(w.done)

	events := w.queue.Dequeue(ctx, w.shard)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			if err := w.process(ctx, e); err != nil {
				w.logger.Error(ctx, "event processing failed",
					logger.String("event_id", e.ID),
					logger.String("player", e.Player),
					logger.Error(err),
				)
			}
		}
	}
}

func (w *ShardWorker) process(ctx context.Context, e event.UnifiedGameEvent) error {
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	if err := w.handler.HandleEvent(ctx, e); err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "handler_error")
		return fmt.Errorf("handle event %s: %w", e.ID, err)
	}
	metrics.RecordEventProcessed()
	return nil
}

// Shutdown gracefully stops the worker.
func (w *ShardWorker) Shutdown(ctx context.Context) error {
	close(w.shutdown)
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Pool runs one worker per queue shard.
type Pool struct {
	workers []*ShardWorker
	queue   Queue

	shutdown chan struct{}

	logger logger.Logger
}

// NewPool creates a pool sized to the queue's shard count.
func NewPool(queue Queue, handler Handler) *Pool {
	n := queue.Shards()
	pool := &Pool{
		workers:  make([]*ShardWorker, n),
		queue:    queue,
		shutdown: make(chan struct{}),
		logger:   logger.Get().Named("worker-pool"),
	}
	for i := 0; i < n; i++ {
		pool.workers[i] = NewShardWorker(queue, handler, i)
	}
	metrics.UpdateWorkerCount(n)
	return pool
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Stop signals shutdown and waits briefly for each worker.
func (p *Pool) Stop() {
	close(p.shutdown)
	for _, w := range p.workers {
		close(w.shutdown)
	}
	for _, w := range p.workers {
		select {
		case <-w.done:
		case <-time.After(workerShutdownTimeout):
		}
	}
}

// Shutdown closes the queue, then drains and stops all workers.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	return nil
}
