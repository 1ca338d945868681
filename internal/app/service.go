// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/clanhall/bingo/internal/adapters/hiscores"
	eventqueue "github.com/clanhall/bingo/internal/adapters/mq/queue"
	workerpool "github.com/clanhall/bingo/internal/adapters/mq/worker"
	"github.com/clanhall/bingo/internal/adapters/notify"
	"github.com/clanhall/bingo/internal/adapters/repository"
	"github.com/clanhall/bingo/internal/domain/dedupe"
	"github.com/clanhall/bingo/internal/domain/event"
	"github.com/clanhall/bingo/internal/domain/types"
	"github.com/clanhall/bingo/internal/effects"
	"github.com/clanhall/bingo/internal/engine"
	"github.com/clanhall/bingo/pkg/logger"
	"github.com/clanhall/bingo/pkg/metrics"
)

// Service wires the event pipeline: webhook ingestion through dedupe and
// the sharded queue into the progress engine, plus the effects engine for
// activations and the expiry sweep.
type Service struct {
	mu sync.RWMutex

	// Core components
	store      repository.Store
	deduper    dedupe.Deduper
	adapter    *event.Adapter
	eventQueue eventqueue.Queue
	workerPool *workerpool.Pool
	effects    *effects.Engine
	orch       *engine.Orchestrator

	// Configuration
	workerCount   int
	queueSize     int
	dedupeSize    int
	dbPath        string
	hiscoresURL   string
	sweepInterval time.Duration
	retryLimit    int

	// State
	started bool
	stopCh  chan struct{}
	sweepWG sync.WaitGroup

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of shard workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum size of the event queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the deduplication cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithDBPath sets the sqlite database location.
func WithDBPath(path string) Option {
	return func(s *Service) {
		if path != "" {
			s.dbPath = path
		}
	}
}

// WithHiscoresURL sets the base URL of the skill-lookup service.
func WithHiscoresURL(url string) Option {
	return func(s *Service) {
		s.hiscoresURL = url
	}
}

// WithSweepInterval sets the effect expiry sweep interval.
func WithSweepInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.sweepInterval = d
		}
	}
}

// WithRetryLimit bounds progress write retries under version conflicts.
func WithRetryLimit(limit int) Option {
	return func(s *Service) {
		if limit > 0 {
			s.retryLimit = limit
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:   runtime.NumCPU() * 4,
		queueSize:     100_000,
		dedupeSize:    500_000,
		dbPath:        "bingo.db",
		sweepInterval: time.Minute,
		retryLimit:    5,
		stopCh:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting bingo service...")

	store, err := repository.Open(s.dbPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	s.store = store

	s.deduper = dedupe.NewInMemoryDeduper(
		dedupe.WithMaxSize(s.dedupeSize),
	)
	s.adapter = event.NewAdapter(store, event.WithAdapterLogger(s.logger))
	s.eventQueue = eventqueue.NewShardedQueue(
		eventqueue.WithCapacity(s.queueSize),
		eventqueue.WithShards(s.workerCount),
	)

	sink := notify.NewLogSink(notify.WithLogger(s.logger))
	s.effects = effects.New(store, sink, effects.WithLogger(s.logger))

	var skills hiscores.SkillLookup = hiscores.NewClient(s.hiscoresURL, hiscores.WithLogger(s.logger))
	s.orch = engine.New(store, skills, s.effects, sink,
		engine.WithRetryLimit(s.retryLimit),
		engine.WithLogger(s.logger),
	)

	s.workerPool = workerpool.NewPool(s.eventQueue, s.orch)
	s.workerPool.Start(ctx)

	s.sweepWG.Add(1)
	go s.sweepLoop()

	s.started = true
	s.logger.Info(ctx, "bingo service started",
		logger.Int("workers", s.eventQueue.Shards()),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.String("dbPath", s.dbPath),
	)
	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping bingo service...")

	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}
	s.sweepWG.Wait()

	if s.workerPool != nil {
		_ = s.workerPool.Shutdown(ctx)
	}
	if s.store != nil {
		_ = s.store.Close()
	}

	s.started = false
	s.logger.Info(ctx, "bingo service stopped")
}

// sweepLoop periodically expires effects past their TTL.
func (s *Service) sweepLoop() {
	defer s.sweepWG.Done()
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := s.effects.SweepExpired(ctx); err != nil {
				s.logger.Warn(ctx, "effect expiry sweep failed", logger.Error(err))
			}
			cancel()
		}
	}
}

// SeenAndRecord atomically checks if an event id was seen and records it
// if not. Returns true if the event was already seen.
func (s *Service) SeenAndRecord(ctx context.Context, id string) bool {
	seen := s.deduper.SeenAndRecord(ctx, id)
	if seen {
		metrics.RecordEventDuplicate()
	}
	return seen
}

// Unrecord removes an event ID from the seen list, allowing it to be retried.
func (s *Service) Unrecord(ctx context.Context, id string) {
	s.deduper.Unrecord(ctx, id)
}

// Size returns the current number of entries in the deduper.
func (s *Service) Size() int64 {
	if s.deduper == nil {
		return 0
	}
	return s.deduper.Size()
}

// Enqueue normalizes a raw webhook event and submits it for asynchronous
// processing. Unsupported and unattributable events are dropped here, and
// count as accepted: the webhook has nothing to retry.
func (s *Service) Enqueue(ctx context.Context, raw event.RawEvent) bool {
	ev, err := s.adapter.Normalize(ctx, raw)
	if err != nil {
		metrics.RecordNormalizeError()
		s.logger.Warn(ctx, "failed to normalize event",
			logger.String("type", raw.Type),
			logger.String("player", raw.Player),
			logger.Error(err),
		)
		return true
	}
	if ev == nil {
		metrics.RecordEventUnsupported()
		return true
	}

	ok := s.eventQueue.Enqueue(ctx, *ev)
	if ok {
		metrics.UpdateQueueSize(s.eventQueue.Len(ctx))
	}
	return ok
}

// UseEffect activates an earned effect on behalf of a team.
func (s *Service) UseEffect(ctx context.Context, req effects.ActivationRequest) (types.ActivationOutcome, error) {
	return s.effects.UseEffect(ctx, req)
}

// TeamScore returns the score summary for one team.
func (s *Service) TeamScore(ctx context.Context, teamID string) (types.TeamScore, error) {
	team, err := s.store.Team(ctx, teamID)
	if err != nil {
		return types.TeamScore{}, fmt.Errorf("load team: %w", err)
	}
	return types.TeamScore{TeamID: team.ID, Name: team.Name, Score: team.Score}, nil
}

// TeamEffects returns the team's usable earned effects.
func (s *Service) TeamEffects(ctx context.Context, teamID string) ([]types.EffectView, error) {
	if _, err := s.store.Team(ctx, teamID); err != nil {
		return nil, fmt.Errorf("load team: %w", err)
	}
	earned, err := s.store.AvailableEffects(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("load effects: %w", err)
	}
	views := make([]types.EffectView, 0, len(earned))
	for _, e := range earned {
		view := types.EffectView{
			ID:            e.ID,
			EffectID:      e.EffectID,
			Status:        string(e.Status),
			RemainingUses: e.RemainingUses,
			ExpiresAt:     e.ExpiresAt,
		}
		if cfg, err := s.store.EffectConfig(ctx, e.EffectID); err == nil {
			view.Name = cfg.Name
		}
		views = append(views, view)
	}
	return views, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
	}
	if s.started {
		queueLen := s.eventQueue.Len(ctx)
		stats["queueLength"] = queueLen
		stats["dedupeEntries"] = s.deduper.Size()
		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateWorkerCount(s.eventQueue.Shards())
	}
	return stats
}
