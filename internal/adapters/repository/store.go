// Package repository defines the persistence contract of the progress
// and effects engine, and its sqlite implementation.
//
// The engine only ever talks to the Store interface. The implementation
// maps domain values to snake_case columns explicitly (see mapping.go)
// so the domain model never depends on storage naming.
package repository

import (
	"context"
	"time"

	"github.com/clanhall/bingo/internal/domain/model"
)

// EffectPatch is a partial update to an earned effect. Nil fields are
// left untouched.
type EffectPatch struct {
	Status        *model.EffectStatus
	RemainingUses *int
}

// Store provides read/write access to competition state.
type Store interface {
	// Teams and scores.
	CreateTeam(ctx context.Context, t model.Team) error
	Team(ctx context.Context, id string) (model.Team, error)
	// IncrementTeamScore atomically adds delta to the team score.
	IncrementTeamScore(ctx context.Context, teamID string, delta int64) error
	// MultiplyTeamScore atomically scales the team score by factor.
	MultiplyTeamScore(ctx context.Context, teamID string, factor float64) error

	// Boards and tiles.
	CreateBoard(ctx context.Context, b model.Board) error
	Board(ctx context.Context, id string) (model.Board, error)
	CreateTile(ctx context.Context, t model.Tile) error
	Tile(ctx context.Context, id string) (model.Tile, error)
	TilesForTeam(ctx context.Context, teamID string) ([]model.Tile, error)
	TilesForBoard(ctx context.Context, boardID string) ([]model.Tile, error)
	SwapTiles(ctx context.Context, boardID string, a, b model.Position) error
	SetTileLocked(ctx context.Context, boardID string, pos model.Position, locked bool) error

	// Memberships resolve players to team-scoped accounts.
	AddMember(ctx context.Context, m model.Membership) error
	ResolveAccount(ctx context.Context, player string) (string, error)
	// ActiveMemberships returns memberships whose competition is
	// running at the given instant.
	ActiveMemberships(ctx context.Context, player string, at time.Time) ([]model.Membership, error)

	// Tile progress. Exactly one row exists per tile after an upsert.
	// Progress returns (nil, nil) when no row exists yet.
	Progress(ctx context.Context, tileID string) (*model.TileProgress, error)
	ProgressForBoard(ctx context.Context, boardID string) (map[string]model.TileProgress, error)
	// UpsertProgress writes p, comparing p.Version against the stored
	// row. ErrVersionConflict means a concurrent writer won; reload
	// and retry.
	UpsertProgress(ctx context.Context, p model.TileProgress) error

	// Line completions. RecordLineCompletion returns false when the
	// line was already recorded, making the caller idempotent.
	RecordLineCompletion(ctx context.Context, boardID string, lt model.LineType, identifier string) (bool, error)

	// Effect configuration and earned effects.
	AddLineEffect(ctx context.Context, boardID string, cfg model.EffectConfig) error
	LineEffects(ctx context.Context, boardID string) ([]model.EffectConfig, error)
	EffectConfig(ctx context.Context, id string) (model.EffectConfig, error)
	CreateEarnedEffect(ctx context.Context, e model.EarnedEffect) error
	EarnedEffect(ctx context.Context, id string) (model.EarnedEffect, error)
	UpdateEarnedEffect(ctx context.Context, id string, patch EffectPatch) error
	AvailableEffects(ctx context.Context, teamID string) ([]model.EarnedEffect, error)
	// ExpireEffects transitions every available effect whose expiry
	// passed into expired and returns them.
	ExpireEffects(ctx context.Context, now time.Time) ([]model.EarnedEffect, error)

	// Activation audit log, append-only.
	AppendActivationLog(ctx context.Context, e model.ActivationLogEntry) error
	ActivationLog(ctx context.Context, teamID string) ([]model.ActivationLogEntry, error)

	Close() error
}
