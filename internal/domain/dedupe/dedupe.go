// Package dedupe defines the interface for idempotency tracking.
//
// The game client's webhook delivery retries on timeouts, and the
// cumulative calculators would double-count a redelivered event. Every
// inbound event carries an idempotency key (see event.RawEvent) that is
// checked here before anything is enqueued.
package dedupe

import (
	"context"
	"sync"
	"sync/atomic"
)

// Deduper records seen event IDs to ensure at-most-once processing.
type Deduper interface {
	// SeenAndRecord atomically checks if id was seen and records it if
	// not. Returns true if id was already seen, false if it was newly
	// recorded. This is the ONLY method for deduplication.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord removes an ID from the seen list, allowing a retry.
	// Only used when an event was marked seen but failed to enqueue.
	Unrecord(ctx context.Context, id string)

	Size() int64
}

// inMemoryDeduper implements Deduper with a map plus a ring of insertion
// order. When the ring is full the oldest id is evicted. maxSize <= 0
// disables eviction entirely.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]struct{}
	ring    []string
	next    int
	maxSize int
	size    atomic.Int64
}

// NewInMemoryDeduper creates a new in-memory deduper with options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: 50000,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]struct{})
	if d.maxSize > 0 {
		d.ring = make([]string, d.maxSize)
	}
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.seen[id]; exists {
		return true
	}

	if d.maxSize > 0 {
		if evicted := d.ring[d.next]; evicted != "" {
			if _, ok := d.seen[evicted]; ok {
				delete(d.seen, evicted)
				d.size.Add(-1)
			}
		}
		d.ring[d.next] = id
		d.next = (d.next + 1) % d.maxSize
	}
	d.seen[id] = struct{}{}
	d.size.Add(1)
	return false
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.seen[id]; !exists {
		return
	}
	delete(d.seen, id)
	d.size.Add(-1)
	// The ring slot stays; eviction tolerates ids no longer in the map.
}

func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}
