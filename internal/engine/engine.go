// Package engine drives one inbound event through eligibility checks,
// requirement matching, progress calculation, point awarding, and line
// completion for every tile it can advance.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/clanhall/bingo/internal/adapters/hiscores"
	"github.com/clanhall/bingo/internal/adapters/notify"
	"github.com/clanhall/bingo/internal/adapters/repository"
	"github.com/clanhall/bingo/internal/domain/event"
	"github.com/clanhall/bingo/internal/domain/model"
	"github.com/clanhall/bingo/internal/domain/progress"
	"github.com/clanhall/bingo/internal/domain/requirement"
	"github.com/clanhall/bingo/pkg/logger"
	"github.com/clanhall/bingo/pkg/metrics"
)

const defaultRetryLimit = 5

// LineChecker receives tile completions for line detection.
type LineChecker interface {
	OnTileCompleted(ctx context.Context, boardID string, pos model.Position) error
}

// Orchestrator folds normalized events into tile progress.
type Orchestrator struct {
	store      repository.Store
	skills     hiscores.SkillLookup
	lines      LineChecker
	sink       notify.Sink
	retryLimit int
	logger     logger.Logger
}

// New creates an orchestrator over the given collaborators.
func New(store repository.Store, skills hiscores.SkillLookup, lines LineChecker, sink notify.Sink, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:      store,
		skills:     skills,
		lines:      lines,
		sink:       sink,
		retryLimit: defaultRetryLimit,
		logger:     logger.Get().Named("engine"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// HandleEvent applies ev to every eligible tile across the player's
// active memberships. A failure on one tile never aborts the others;
// the joined error reports all of them.
func (o *Orchestrator) HandleEvent(ctx context.Context, ev event.UnifiedGameEvent) error {
	memberships, err := o.store.ActiveMemberships(ctx, ev.Player, ev.Timestamp)
	if err != nil {
		return fmt.Errorf("resolve memberships: %w", err)
	}
	if len(memberships) == 0 {
		return nil
	}

	var errs []error
	for _, m := range memberships {
		team, err := o.store.Team(ctx, m.TeamID)
		if err != nil {
			errs = append(errs, fmt.Errorf("team %s: %w", m.TeamID, err))
			continue
		}
		tiles, err := o.store.TilesForTeam(ctx, m.TeamID)
		if err != nil {
			errs = append(errs, fmt.Errorf("tiles for team %s: %w", m.TeamID, err))
			continue
		}
		for _, tile := range tiles {
			if tile.Locked {
				continue
			}
			// A tile is worth processing when the event satisfies the
			// combined predicate or can advance at least one base
			// requirement index (ALL tiles complete across events).
			if !requirement.Matches(ev, tile.Requirements) &&
				len(requirement.MatchingIndices(ev, tile.Requirements)) == 0 {
				continue
			}
			// The skill lookup blocks on I/O, so it runs before the
			// serialized read-modify-write section.
			xp := o.prefetchXP(ctx, ev, tile, team)
			if err := o.processTile(ctx, m, tile, ev, xp); err != nil {
				metrics.RecordErrorByComponent("engine", "tile_update")
				errs = append(errs, fmt.Errorf("tile %s: %w", tile.ID, err))
			}
		}
	}
	return errors.Join(errs...)
}

// processTile runs the optimistic-concurrency loop for one tile.
func (o *Orchestrator) processTile(ctx context.Context, m model.Membership, tile model.Tile, ev event.UnifiedGameEvent, xp *progress.XPSample) error {
	for attempt := 0; attempt <= o.retryLimit; attempt++ {
		prior, err := o.store.Progress(ctx, tile.ID)
		if err != nil {
			return fmt.Errorf("load progress: %w", err)
		}
		cur := model.TileProgress{TileID: tile.ID}
		if prior != nil {
			cur = *prior
		}
		if fullyComplete(tile, cur) {
			return nil
		}

		res := applyEvent(ev, tile, cur, xp, time.Now().UTC())
		if !res.changed {
			return nil
		}

		err = o.store.UpsertProgress(ctx, res.next)
		if errors.Is(err, repository.ErrVersionConflict) {
			metrics.RecordVersionConflict()
			continue
		}
		if err != nil {
			return fmt.Errorf("persist progress: %w", err)
		}
		metrics.RecordProgressUpdate()

		o.settle(ctx, m, tile, res)
		return nil
	}
	return fmt.Errorf("tile %s after %d attempts: %w", tile.ID, o.retryLimit+1, ErrRetryExhausted)
}

// settle performs the post-persist actions of a successful update:
// point awards, line checks, and notifications. Only the score write
// can fail the event; line checks and notifications are best-effort.
func (o *Orchestrator) settle(ctx context.Context, m model.Membership, tile model.Tile, res applyResult) {
	if res.points > 0 {
		if err := o.store.IncrementTeamScore(ctx, m.TeamID, res.points); err != nil {
			o.logger.Error(ctx, "score award failed",
				logger.String("team_id", m.TeamID),
				logger.String("tile_id", tile.ID),
				logger.Int64("points", res.points),
				logger.Error(err),
			)
		} else {
			metrics.RecordPointsAwarded(res.points)
		}
	}
	if len(res.newTiers) > 0 {
		metrics.RecordTiersCompleted(len(res.newTiers))
	}
	if res.newlyCompleted {
		metrics.RecordTileCompleted()
		if err := o.lines.OnTileCompleted(ctx, tile.BoardID, tile.Position); err != nil {
			o.logger.Error(ctx, "line check failed",
				logger.String("board_id", tile.BoardID),
				logger.String("position", tile.Position.String()),
				logger.Error(err),
			)
		}
	}
	// Notify only on genuinely new completions, never on plain
	// progress increments.
	if res.newlyCompleted || len(res.newTiers) > 0 {
		if err := o.sink.TileProgress(ctx, m.TeamID, tile, res.next); err != nil {
			o.logger.Warn(ctx, "notification failed",
				logger.String("tile_id", tile.ID),
				logger.Error(err),
			)
		}
	}
}

// prefetchXP fetches a skill-lookup sample when the tile carries an
// experience requirement and the event is an XP snapshot. Returns nil
// otherwise.
func (o *Orchestrator) prefetchXP(ctx context.Context, ev event.UnifiedGameEvent, tile model.Tile, team model.Team) *progress.XPSample {
	snap, ok := ev.Payload.(event.XPSnapshotPayload)
	if !ok || !snap.Logout {
		return nil
	}
	exp, ok := experienceRequirement(tile.Requirements)
	if !ok {
		return nil
	}

	current, ok := o.skills.CurrentXP(ctx, ev.Player, exp.Skill)
	if !ok {
		return &progress.XPSample{Player: ev.Player, Skill: exp.Skill, Valid: false}
	}
	baseline, ok := o.skills.HistoricalXPAt(ctx, ev.Player, exp.Skill, team.CompetitionStart)
	if !ok {
		// No history for the player: start counting from now.
		baseline = current
	}
	return &progress.XPSample{
		Player:   ev.Player,
		Skill:    exp.Skill,
		Baseline: baseline,
		Current:  current,
		Valid:    true,
	}
}

func experienceRequirement(tr requirement.TileRequirements) (requirement.Experience, bool) {
	for _, r := range tr.Requirements {
		if exp, ok := r.(requirement.Experience); ok {
			return exp, true
		}
	}
	for _, t := range tr.Tiers {
		if exp, ok := t.Requirement.(requirement.Experience); ok {
			return exp, true
		}
	}
	return requirement.Experience{}, false
}
