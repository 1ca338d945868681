// Package queue provides the bounded in-memory event queue feeding the
// progress workers.
//
// The queue is sharded by player name so that all events from one player
// land on the same shard and are consumed in arrival order.
package queue

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/clanhall/bingo/internal/domain/event"
	"github.com/clanhall/bingo/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultCapacity = 100_000
	defaultShards   = 16
)

// Event represents the payload type flowing through the queue.
type Event = event.UnifiedGameEvent

// Queue provides non-blocking enqueue and per-shard channel dequeue.
type Queue interface {
	// Enqueue routes an event to its player's shard.
	// Returns false if the shard is full or the queue is closed.
	Enqueue(ctx context.Context, e Event) bool

	// Dequeue returns the consume channel of one shard. The channel is
	// closed when the queue is closed.
	Dequeue(ctx context.Context, shard int) <-chan Event

	// Shards returns the number of shards.
	Shards() int

	// Len returns the total number of queued events across shards.
	Len(ctx context.Context) int

	// Close gracefully shuts down the queue.
	Close() error

	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

// ShardedQueue implements Queue over a fixed set of buffered channels.
type ShardedQueue struct {
	shards   []chan Event
	capacity int
	numShard int
	mu       sync.RWMutex
	closed   bool
}

// NewShardedQueue creates a sharded queue with configuration options.
// Capacity is the total budget, split evenly across shards.
func NewShardedQueue(opts ...Option) *ShardedQueue {
	q := &ShardedQueue{
		capacity: defaultCapacity,
		numShard: defaultShards,
	}
	for _, opt := range opts {
		opt(q)
	}

	perShard := q.capacity / q.numShard
	if perShard < 1 {
		perShard = 1
	}
	q.shards = make([]chan Event, q.numShard)
	for i := range q.shards {
		q.shards[i] = make(chan Event, perShard)
	}

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	metrics.UpdateQueueUtilization(0.0)

	return q
}

// shardFor maps a player name to a shard index. Events from the same
// player always hash to the same shard.
func (q *ShardedQueue) shardFor(player string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(player))
	return int(h.Sum32() % uint32(q.numShard))
}

// Enqueue routes e to its player's shard without blocking.
func (q *ShardedQueue) Enqueue(ctx context.Context, e Event) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "closed")
		return false
	}

	select {
	case q.shards[q.shardFor(e.Player)] <- e:
		metrics.RecordQueueEnqueue()
		q.publishGauges()
		return true
	case <-ctx.Done():
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "context_cancelled")
		return false
	default:
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "queue_full")
		return false
	}
}

// Dequeue returns the consume channel of the given shard.
func (q *ShardedQueue) Dequeue(ctx context.Context, shard int) <-chan Event {
	out := make(chan Event)
	go func() {
		defer close(out)
		for ev := range q.shards[shard] {
			select {
			case out <- ev:
				metrics.RecordQueueDequeue()
				q.publishGauges()
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Shards returns the number of shards.
func (q *ShardedQueue) Shards() int { return q.numShard }

// Len returns the total number of queued events across all shards.
func (q *ShardedQueue) Len(ctx context.Context) int {
	total := 0
	for _, ch := range q.shards {
		total += len(ch)
	}
	return total
}

func (q *ShardedQueue) publishGauges() {
	total := 0
	for _, ch := range q.shards {
		total += len(ch)
	}
	metrics.UpdateQueueSize(total)
	metrics.UpdateQueueUtilization(float64(total) / float64(q.capacity))
}

// Close gracefully shuts down the queue.
func (q *ShardedQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	for _, ch := range q.shards {
		close(ch)
	}
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *ShardedQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
