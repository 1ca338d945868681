package effects

import (
	"context"
	"errors"
	"fmt"

	"github.com/clanhall/bingo/internal/adapters/repository"
	"github.com/clanhall/bingo/internal/domain/model"
	"github.com/clanhall/bingo/internal/domain/types"
	"github.com/clanhall/bingo/pkg/metrics"
)

// Outcome action labels.
const (
	OutcomeActivated = "activated"
	OutcomeBlocked   = "blocked"
	OutcomeReflected = "reflected"
)

// ActivationRequest asks to use one earned effect. Target fields are
// only consulted for the actions that need them.
type ActivationRequest struct {
	EarnedEffectID string
	TeamID         string
	TargetTeamID   string
	TargetBoardID  string

	// Tile coordinates for swap and lock/unlock actions.
	SwapA, SwapB model.Position
	TilePos      model.Position
}

// UseEffect activates an earned effect. Domain-level refusals (unknown
// effect, not available, blocked by the target's defenses) come back
// as a structured outcome with a nil error; the error return is
// reserved for infrastructure failures.
func (e *Engine) UseEffect(ctx context.Context, req ActivationRequest) (types.ActivationOutcome, error) {
	unlock := e.locks.lockPair(req.TeamID, req.TargetTeamID)
	defer unlock()

	earned, err := e.store.EarnedEffect(ctx, req.EarnedEffectID)
	if errors.Is(err, repository.ErrNotFound) {
		return refuse("effect not found"), nil
	}
	if err != nil {
		return types.ActivationOutcome{}, fmt.Errorf("load earned effect: %w", err)
	}
	if earned.TeamID != req.TeamID {
		return refuse("effect not owned by team"), nil
	}
	if !earned.Available(e.now()) {
		return refuse("effect not available"), nil
	}

	cfg, err := e.store.EffectConfig(ctx, earned.EffectID)
	if err != nil {
		return types.ActivationOutcome{}, fmt.Errorf("load effect config: %w", err)
	}
	if model.Defensive(cfg.Action) {
		return refuse("defensive effects intercept automatically"), nil
	}
	if cfg.Targeted && req.TargetTeamID == "" {
		return refuse("target team required"), nil
	}

	targeted := cfg.Targeted && req.TargetTeamID != req.TeamID
	if targeted {
		intercepted, outcome, err := e.intercept(ctx, req, earned, cfg)
		if err != nil {
			return types.ActivationOutcome{}, err
		}
		if intercepted {
			return outcome, nil
		}
	}

	if err := e.execute(ctx, req, cfg); err != nil {
		return types.ActivationOutcome{}, fmt.Errorf("execute %s: %w", cfg.Action.ActionKind(), err)
	}
	if err := e.consumeCharge(ctx, earned); err != nil {
		return types.ActivationOutcome{}, fmt.Errorf("consume charge: %w", err)
	}

	e.appendLog(ctx, model.ActivationLogEntry{
		TeamID:       req.TeamID,
		TargetTeamID: req.TargetTeamID,
		EffectID:     cfg.ID,
		Action:       model.LogActivate,
		Detail:       cfg.Name,
	})
	metrics.RecordEffectActivated()
	e.notifyActivation(ctx, req, cfg, OutcomeActivated)

	return types.ActivationOutcome{Success: true, Action: OutcomeActivated}, nil
}

// intercept checks the target team's defenses, reflect before shield.
func (e *Engine) intercept(ctx context.Context, req ActivationRequest, earned model.EarnedEffect, cfg model.EffectConfig) (bool, types.ActivationOutcome, error) {
	defenses, err := e.store.AvailableEffects(ctx, req.TargetTeamID)
	if err != nil {
		return false, types.ActivationOutcome{}, fmt.Errorf("load target defenses: %w", err)
	}

	now := e.now()
	var shield *defense
	for i := range defenses {
		d := defenses[i]
		if !d.Available(now) {
			continue
		}
		dcfg, err := e.store.EffectConfig(ctx, d.EffectID)
		if err != nil {
			return false, types.ActivationOutcome{}, fmt.Errorf("load defense config: %w", err)
		}
		switch dcfg.Action.ActionKind() {
		case model.ActionReflect:
			outcome, err := e.reflect(ctx, req, earned, cfg, defense{d, dcfg})
			return true, outcome, err
		case model.ActionShield:
			if shield == nil {
				shield = &defense{d, dcfg}
			}
		}
	}
	if shield != nil {
		outcome, err := e.block(ctx, req, earned, cfg, *shield)
		return true, outcome, err
	}
	return false, types.ActivationOutcome{}, nil
}

type defense struct {
	earned model.EarnedEffect
	cfg    model.EffectConfig
}

// reflect consumes the target's reflect entirely, consumes the caster's
// charge, and grants the incoming effect back to the caster.
func (e *Engine) reflect(ctx context.Context, req ActivationRequest, earned model.EarnedEffect, cfg model.EffectConfig, d defense) (types.ActivationOutcome, error) {
	if err := e.exhaust(ctx, d.earned); err != nil {
		return types.ActivationOutcome{}, fmt.Errorf("consume reflect: %w", err)
	}
	if err := e.consumeCharge(ctx, earned); err != nil {
		return types.ActivationOutcome{}, fmt.Errorf("consume charge: %w", err)
	}
	if _, err := e.grantLocked(ctx, req.TeamID, cfg); err != nil {
		return types.ActivationOutcome{}, fmt.Errorf("grant back: %w", err)
	}

	e.appendLog(ctx, model.ActivationLogEntry{
		TeamID:       req.TargetTeamID,
		TargetTeamID: req.TeamID,
		EffectID:     d.cfg.ID,
		Action:       model.LogReflect,
		Detail:       "reflected " + cfg.Name,
	})
	metrics.RecordEffectReflected()
	e.notifyActivation(ctx, req, cfg, OutcomeReflected)

	return types.ActivationOutcome{Success: false, Action: OutcomeReflected, Reason: "reflected by target"}, nil
}

// block consumes one shield charge and the caster's charge; the
// incoming action never executes.
func (e *Engine) block(ctx context.Context, req ActivationRequest, earned model.EarnedEffect, cfg model.EffectConfig, d defense) (types.ActivationOutcome, error) {
	if err := e.consumeCharge(ctx, d.earned); err != nil {
		return types.ActivationOutcome{}, fmt.Errorf("consume shield: %w", err)
	}
	if err := e.consumeCharge(ctx, earned); err != nil {
		return types.ActivationOutcome{}, fmt.Errorf("consume charge: %w", err)
	}

	e.appendLog(ctx, model.ActivationLogEntry{
		TeamID:       req.TargetTeamID,
		TargetTeamID: req.TeamID,
		EffectID:     d.cfg.ID,
		Action:       model.LogBlock,
		Detail:       "blocked " + cfg.Name,
	})
	metrics.RecordEffectBlocked()
	e.notifyActivation(ctx, req, cfg, OutcomeBlocked)

	return types.ActivationOutcome{Success: false, Action: OutcomeBlocked, Reason: "blocked by shield"}, nil
}

// execute runs the effect's concrete action.
func (e *Engine) execute(ctx context.Context, req ActivationRequest, cfg model.EffectConfig) error {
	targetTeam := req.TeamID
	if cfg.Targeted && req.TargetTeamID != "" {
		targetTeam = req.TargetTeamID
	}

	switch act := cfg.Action.(type) {
	case model.PointBonus:
		return e.store.IncrementTeamScore(ctx, targetTeam, act.Points)
	case model.PointMultiplier:
		return e.store.MultiplyTeamScore(ctx, targetTeam, act.Factor)
	case model.TileSwap:
		return e.store.SwapTiles(ctx, req.TargetBoardID, req.SwapA, req.SwapB)
	case model.TileLock:
		return e.store.SetTileLocked(ctx, req.TargetBoardID, req.TilePos, true)
	case model.TileUnlock:
		return e.store.SetTileLocked(ctx, req.TargetBoardID, req.TilePos, false)
	default:
		return fmt.Errorf("unsupported action %s", cfg.Action.ActionKind())
	}
}

// consumeCharge decrements remaining uses, transitioning to used at zero.
func (e *Engine) consumeCharge(ctx context.Context, earned model.EarnedEffect) error {
	remaining := earned.RemainingUses - 1
	if remaining < 0 {
		remaining = 0
	}
	patch := repository.EffectPatch{RemainingUses: &remaining}
	if remaining == 0 {
		used := model.EffectUsed
		patch.Status = &used
	}
	return e.store.UpdateEarnedEffect(ctx, earned.ID, patch)
}

// exhaust consumes an effect entirely regardless of remaining charges.
func (e *Engine) exhaust(ctx context.Context, earned model.EarnedEffect) error {
	used := model.EffectUsed
	zero := 0
	return e.store.UpdateEarnedEffect(ctx, earned.ID, repository.EffectPatch{Status: &used, RemainingUses: &zero})
}

func (e *Engine) notifyActivation(ctx context.Context, req ActivationRequest, cfg model.EffectConfig, outcome string) {
	if err := e.sink.EffectActivated(ctx, req.TeamID, req.TargetTeamID, cfg, outcome); err != nil {
		e.logger.Warn(ctx, "activation notification failed")
	}
}

func refuse(reason string) types.ActivationOutcome {
	return types.ActivationOutcome{Success: false, Reason: reason}
}
