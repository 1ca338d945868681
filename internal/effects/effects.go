// Package effects implements line-completion detection, effect
// granting, activation with defensive interception, and expiry.
//
// Activation and granting are serialized per team with keyed mutexes
// so two simultaneous activations never double-consume a charge.
package effects

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clanhall/bingo/internal/adapters/notify"
	"github.com/clanhall/bingo/internal/adapters/repository"
	"github.com/clanhall/bingo/internal/domain/model"
	"github.com/clanhall/bingo/pkg/logger"
	"github.com/clanhall/bingo/pkg/metrics"
)

// Engine owns the effect lifecycle.
type Engine struct {
	store  repository.Store
	sink   notify.Sink
	locks  keyedMutex
	now    func() time.Time
	logger logger.Logger
}

// New creates an effects engine.
func New(store repository.Store, sink notify.Sink, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		sink:   sink,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger.Get().Named("effects"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Grant creates an earned effect for the team from cfg. Immediate
// triggers apply and consume at grant time; everything else waits in
// the available state for manual activation.
func (e *Engine) Grant(ctx context.Context, teamID string, cfg model.EffectConfig) (model.EarnedEffect, error) {
	unlock := e.locks.lockPair(teamID, "")
	defer unlock()
	return e.grantLocked(ctx, teamID, cfg)
}

// grantLocked is Grant without the team lock, for callers already
// holding it.
func (e *Engine) grantLocked(ctx context.Context, teamID string, cfg model.EffectConfig) (model.EarnedEffect, error) {
	now := e.now()
	earned := model.EarnedEffect{
		ID:            uuid.NewString(),
		TeamID:        teamID,
		EffectID:      cfg.ID,
		Status:        model.EffectAvailable,
		RemainingUses: cfg.Uses,
		EarnedAt:      now,
	}
	if earned.RemainingUses < 1 {
		earned.RemainingUses = 1
	}
	if cfg.TTL > 0 {
		expires := now.Add(cfg.TTL)
		earned.ExpiresAt = &expires
	}

	if err := e.store.CreateEarnedEffect(ctx, earned); err != nil {
		return model.EarnedEffect{}, fmt.Errorf("create earned effect: %w", err)
	}
	e.appendLog(ctx, model.ActivationLogEntry{
		TeamID:   teamID,
		EffectID: cfg.ID,
		Action:   model.LogGrant,
		Detail:   cfg.Name,
	})
	metrics.RecordEffectGranted()
	if err := e.sink.EffectGranted(ctx, teamID, cfg, earned); err != nil {
		e.logger.Warn(ctx, "grant notification failed", logger.Error(err))
	}

	if cfg.Trigger == model.TriggerImmediate {
		if err := e.applyImmediate(ctx, teamID, cfg, &earned); err != nil {
			e.logger.Error(ctx, "immediate effect failed",
				logger.String("team_id", teamID),
				logger.String("effect", cfg.Name),
				logger.Error(err),
			)
		}
	}
	return earned, nil
}

// applyImmediate executes an immediate-trigger effect against the
// owning team and consumes it.
func (e *Engine) applyImmediate(ctx context.Context, teamID string, cfg model.EffectConfig, earned *model.EarnedEffect) error {
	switch act := cfg.Action.(type) {
	case model.PointBonus:
		if err := e.store.IncrementTeamScore(ctx, teamID, act.Points); err != nil {
			return err
		}
	case model.PointMultiplier:
		if err := e.store.MultiplyTeamScore(ctx, teamID, act.Factor); err != nil {
			return err
		}
	default:
		return fmt.Errorf("action %s cannot trigger immediately", cfg.Action.ActionKind())
	}

	used := model.EffectUsed
	zero := 0
	if err := e.store.UpdateEarnedEffect(ctx, earned.ID, repository.EffectPatch{Status: &used, RemainingUses: &zero}); err != nil {
		return err
	}
	earned.Status = used
	earned.RemainingUses = 0
	e.appendLog(ctx, model.ActivationLogEntry{
		TeamID:   teamID,
		EffectID: cfg.ID,
		Action:   model.LogActivate,
		Detail:   "immediate: " + cfg.Name,
	})
	metrics.RecordEffectActivated()
	return nil
}

// SweepExpired transitions every available effect past its expiry into
// expired. The app runs this on a ticker.
func (e *Engine) SweepExpired(ctx context.Context) error {
	expired, err := e.store.ExpireEffects(ctx, e.now())
	if err != nil {
		return fmt.Errorf("expire effects: %w", err)
	}
	if len(expired) == 0 {
		return nil
	}
	for _, ef := range expired {
		e.appendLog(ctx, model.ActivationLogEntry{
			TeamID:   ef.TeamID,
			EffectID: ef.EffectID,
			Action:   model.LogExpire,
		})
	}
	metrics.RecordEffectsExpired(len(expired))
	e.logger.Info(ctx, "expired effects swept", logger.Int("count", len(expired)))
	return nil
}

// appendLog writes one audit entry; the log is append-only and a
// write failure never fails the operation that produced it.
func (e *Engine) appendLog(ctx context.Context, entry model.ActivationLogEntry) {
	entry.ID = uuid.NewString()
	if entry.At.IsZero() {
		entry.At = e.now()
	}
	if err := e.store.AppendActivationLog(ctx, entry); err != nil {
		e.logger.Error(ctx, "activation log append failed",
			logger.String("team_id", entry.TeamID),
			logger.String("action", string(entry.Action)),
			logger.Error(err),
		)
	}
}
