package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/clanhall/bingo/internal/domain/event"

	"github.com/clanhall/bingo/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

type fakeQueue struct {
	chans  []chan event.UnifiedGameEvent
	closed bool
	mu     sync.Mutex
}

func newFakeQueue(shards int) *fakeQueue {
	q := &fakeQueue{chans: make([]chan event.UnifiedGameEvent, shards)}
	for i := range q.chans {
		q.chans[i] = make(chan event.UnifiedGameEvent, 64)
	}
	return q
}

func (q *fakeQueue) Dequeue(ctx context.Context, shard int) <-chan event.UnifiedGameEvent {
	return q.chans[shard]
}

func (q *fakeQueue) Shards() int { return len(q.chans) }

func (q *fakeQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		for _, ch := range q.chans {
			close(ch)
		}
		q.closed = true
	}
	return nil
}

type recordingHandler struct {
	mu     sync.Mutex
	seen   []string
	errFor string
}

func (h *recordingHandler) HandleEvent(ctx context.Context, e event.UnifiedGameEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if e.ID == h.errFor {
		return errors.New("boom")
	}
	h.seen = append(h.seen, e.ID)
	return nil
}

func (h *recordingHandler) ids() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.seen...)
}

func TestShardWorker_ProcessesInOrder(t *testing.T) {
	q := newFakeQueue(1)
	h := &recordingHandler{}
	w := NewShardWorker(q, h, 0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	for _, id := range []string{"e1", "e2", "e3"} {
		q.chans[0] <- event.UnifiedGameEvent{ID: id, Player: "Zezima"}
	}
	_ = q.Close()

	select {
	case <-w.done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after queue close")
	}

	got := h.ids()
	want := []string{"e1", "e2", "e3"}
	if len(got) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestShardWorker_HandlerErrorDoesNotStopWorker(t *testing.T) {
	q := newFakeQueue(1)
	h := &recordingHandler{errFor: "bad"}
	w := NewShardWorker(q, h, 0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	q.chans[0] <- event.UnifiedGameEvent{ID: "bad", Player: "a"}
	q.chans[0] <- event.UnifiedGameEvent{ID: "good", Player: "a"}
	_ = q.Close()

	select {
	case <-w.done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}

	got := h.ids()
	if len(got) != 1 || got[0] != "good" {
		t.Errorf("expected only the good event, got %v", got)
	}
}

func TestShardWorker_Shutdown(t *testing.T) {
	q := newFakeQueue(1)
	w := NewShardWorker(q, &recordingHandler{}, 0)

	ctx := context.Background()
	go w.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := w.Shutdown(shutdownCtx); err != nil {
		t.Errorf("shutdown failed: %v", err)
	}
}

func TestPool_RunsOneWorkerPerShard(t *testing.T) {
	q := newFakeQueue(4)
	h := &recordingHandler{}
	p := NewPool(q, h)

	if len(p.workers) != 4 {
		t.Fatalf("expected 4 workers, got %d", len(p.workers))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)

	for shard := 0; shard < 4; shard++ {
		q.chans[shard] <- event.UnifiedGameEvent{ID: "e", Player: "p"}
	}
	if err := p.Shutdown(ctx); err != nil {
		t.Errorf("pool shutdown failed: %v", err)
	}
	if got := len(h.ids()); got != 4 {
		t.Errorf("expected 4 processed events, got %d", got)
	}
}
