// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"time"

	"github.com/clanhall/bingo/internal/domain/progress"
	"github.com/clanhall/bingo/internal/domain/requirement"
)

// Team owns a board, a score, and its earned effects.
type Team struct {
	ID               string
	Name             string
	Score            int64
	CompetitionStart time.Time
	CompetitionEnd   *time.Time // nil while open-ended
}

// Active reports whether the team's competition is running at t.
func (t Team) Active(at time.Time) bool {
	if at.Before(t.CompetitionStart) {
		return false
	}
	return t.CompetitionEnd == nil || at.Before(*t.CompetitionEnd)
}

// Board is a team's grid of tiles.
type Board struct {
	ID      string
	TeamID  string
	Columns int // lettered A..; Columns=5 means A-E
	Rows    int
}

// Position addresses one tile: column letter plus 1-based row number.
type Position struct {
	Column string
	Row    int
}

func (p Position) String() string { return fmt.Sprintf("%s%d", p.Column, p.Row) }

// ColumnLetter returns the letter for a 0-based column index.
func ColumnLetter(i int) string { return string(rune('A' + i)) }

// Tile is one cell of a board.
type Tile struct {
	ID           string
	BoardID      string
	Position     Position
	Points       int64
	Locked       bool
	Requirements requirement.TileRequirements
}

// TileProgress is the single progress row owned by a (board, tile) pair.
// Version backs the optimistic-concurrency check on writes.
type TileProgress struct {
	TileID      string
	Version     int64
	Value       int64
	Metadata    progress.Metadata
	CompletedAt *time.Time
	CompletedBy string
}

// Completed reports base completion of the tile.
func (p *TileProgress) Completed() bool { return p != nil && p.CompletedAt != nil }

// Membership ties a player to a team-scoped account on a board.
type Membership struct {
	AccountID string
	Player    string
	TeamID    string
	BoardID   string
}

// LineType distinguishes row and column completions.
type LineType string

const (
	LineRow    LineType = "row"
	LineColumn LineType = "column"
)

// LineCompletion is an idempotent record created at most once per
// (board, line), gating repeated effect granting.
type LineCompletion struct {
	BoardID     string
	LineType    LineType
	Identifier  string
	CompletedAt time.Time
}

// EffectStatus is the earned-effect lifecycle state.
type EffectStatus string

const (
	EffectAvailable EffectStatus = "available"
	EffectUsed      EffectStatus = "used"
	EffectExpired   EffectStatus = "expired"
)

// EffectTrigger decides whether an effect waits for manual activation.
type EffectTrigger string

const (
	TriggerManual    EffectTrigger = "manual"
	TriggerImmediate EffectTrigger = "immediate"
)

// ActionKind tags an effect action variant.
type ActionKind string

const (
	ActionPointBonus      ActionKind = "point_bonus"
	ActionPointMultiplier ActionKind = "point_multiplier"
	ActionTileSwap        ActionKind = "tile_swap"
	ActionTileLock        ActionKind = "tile_lock"
	ActionTileUnlock      ActionKind = "tile_unlock"
	ActionShield          ActionKind = "shield"
	ActionReflect         ActionKind = "reflect"
)

// EffectAction is the closed union of concrete effect behaviors.
type EffectAction interface {
	ActionKind() ActionKind
}

// PointBonus adds (or with negative points, removes) a flat score delta.
type PointBonus struct {
	Points int64
}

// PointMultiplier scales the target team's current score.
type PointMultiplier struct {
	Factor float64
}

// TileSwap exchanges two tile positions on the target board.
type TileSwap struct{}

// TileLock freezes a tile so events cannot progress it.
type TileLock struct{}

// TileUnlock releases a locked tile.
type TileUnlock struct{}

// Shield blocks one incoming effect activation per charge.
type Shield struct{}

// Reflect redirects an incoming effect back to its caster, consuming itself.
type Reflect struct{}

func (PointBonus) ActionKind() ActionKind      { return ActionPointBonus }
func (PointMultiplier) ActionKind() ActionKind { return ActionPointMultiplier }
func (TileSwap) ActionKind() ActionKind        { return ActionTileSwap }
func (TileLock) ActionKind() ActionKind        { return ActionTileLock }
func (TileUnlock) ActionKind() ActionKind      { return ActionTileUnlock }
func (Shield) ActionKind() ActionKind          { return ActionShield }
func (Reflect) ActionKind() ActionKind         { return ActionReflect }

// Defensive reports whether the action intercepts incoming activations.
func Defensive(a EffectAction) bool {
	k := a.ActionKind()
	return k == ActionShield || k == ActionReflect
}

// EffectConfig describes an effect as configured on a board line.
type EffectConfig struct {
	ID       string
	Name     string
	Trigger  EffectTrigger
	Action   EffectAction
	Uses     int           // charge count granted
	TTL      time.Duration // 0 = never expires
	Targeted bool          // true when activated against an opposing team
}

// EarnedEffect is one granted instance of an effect.
type EarnedEffect struct {
	ID            string
	TeamID        string
	EffectID      string
	Status        EffectStatus
	RemainingUses int
	ExpiresAt     *time.Time
	EarnedAt      time.Time
}

// Available reports whether the effect can be activated at t.
func (e EarnedEffect) Available(at time.Time) bool {
	if e.Status != EffectAvailable || e.RemainingUses <= 0 {
		return false
	}
	return e.ExpiresAt == nil || at.Before(*e.ExpiresAt)
}

// LogAction tags one activation-log entry.
type LogAction string

const (
	LogGrant    LogAction = "grant"
	LogActivate LogAction = "activate"
	LogBlock    LogAction = "block"
	LogReflect  LogAction = "reflect"
	LogExpire   LogAction = "expire"
)

// ActivationLogEntry is an append-only audit record of every grant,
// activation, block, reflection, and expiry. Never mutated.
type ActivationLogEntry struct {
	ID           string
	TeamID       string
	TargetTeamID string
	EffectID     string
	Action       LogAction
	Detail       string
	At           time.Time
}
