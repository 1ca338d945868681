// Package notify delivers progress and effect announcements. Delivery
// is best-effort: callers log and continue when a sink fails.
package notify

import (
	"context"

	"github.com/clanhall/bingo/internal/domain/model"
	"github.com/clanhall/bingo/pkg/logger"
)

// Sink receives competition announcements.
type Sink interface {
	// TileProgress announces a progress change, including completion.
	TileProgress(ctx context.Context, teamID string, tile model.Tile, p model.TileProgress) error

	// EffectGranted announces a newly earned effect.
	EffectGranted(ctx context.Context, teamID string, cfg model.EffectConfig, e model.EarnedEffect) error

	// EffectActivated announces the outcome of an activation.
	EffectActivated(ctx context.Context, teamID, targetTeamID string, cfg model.EffectConfig, outcome string) error
}

// LogSink writes announcements to the structured log.
type LogSink struct {
	logger logger.Logger
}

// NewLogSink creates a log-backed sink.
func NewLogSink(opts ...Option) *LogSink {
	s := &LogSink{logger: logger.Get().Named("notify")}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *LogSink) TileProgress(ctx context.Context, teamID string, tile model.Tile, p model.TileProgress) error {
	fields := []logger.Field{
		logger.String("team_id", teamID),
		logger.String("tile", tile.Position.String()),
		logger.Int64("value", p.Value),
	}
	if p.Completed() {
		fields = append(fields, logger.String("completed_by", p.CompletedBy))
		s.logger.Info(ctx, "tile completed", fields...)
		return nil
	}
	s.logger.Info(ctx, "tile progress", fields...)
	return nil
}

func (s *LogSink) EffectGranted(ctx context.Context, teamID string, cfg model.EffectConfig, e model.EarnedEffect) error {
	s.logger.Info(ctx, "effect granted",
		logger.String("team_id", teamID),
		logger.String("effect", cfg.Name),
		logger.Int("uses", e.RemainingUses),
	)
	return nil
}

func (s *LogSink) EffectActivated(ctx context.Context, teamID, targetTeamID string, cfg model.EffectConfig, outcome string) error {
	s.logger.Info(ctx, "effect activated",
		logger.String("team_id", teamID),
		logger.String("target_team_id", targetTeamID),
		logger.String("effect", cfg.Name),
		logger.String("outcome", outcome),
	)
	return nil
}
