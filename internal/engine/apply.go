package engine

import (
	"reflect"
	"sort"
	"time"

	"github.com/clanhall/bingo/internal/domain/event"
	"github.com/clanhall/bingo/internal/domain/model"
	"github.com/clanhall/bingo/internal/domain/progress"
	"github.com/clanhall/bingo/internal/domain/requirement"
)

// applyResult is the outcome of folding one event into one tile.
type applyResult struct {
	next           model.TileProgress
	changed        bool
	newlyCompleted bool
	newTiers       []requirement.Tier
	points         int64
}

// applyEvent folds ev into the tile's progress. Pure: no I/O, no clock
// reads (now is injected), callers persist next and act on the flags.
//
// Base requirements take precedence: when the event matches any base
// requirement those are computed first; matched tiers are merged into
// the same update so base completion and tier bonuses land together.
func applyEvent(ev event.UnifiedGameEvent, tile model.Tile, prior model.TileProgress, xp *progress.XPSample, now time.Time) applyResult {
	tr := tile.Requirements
	meta := prior.Metadata.Clone()
	value := prior.Value
	wasComplete := prior.Completed()

	indices := requirement.MatchingIndices(ev, tr)
	matchedTiers := requirement.MatchingTiers(ev, tr)

	// Base requirements first.
	if len(indices) > 0 {
		if len(tr.Requirements) == 1 {
			res := progress.Calculate(ev, tr.Requirements[0], value, meta, xp)
			value, meta = res.Value, res.Metadata
			if res.Completed {
				meta.MarkIndex(0)
			}
		} else {
			// Multi-requirement tiles keep one running value per
			// index; the tile value is the completed-index count.
			for _, i := range indices {
				res := progress.Calculate(ev, tr.Requirements[i], meta.IndexValue(i), meta, xp)
				meta = res.Metadata
				meta.SetIndexValue(i, res.Value)
				if res.Completed {
					meta.MarkIndex(i)
				}
			}
			value = int64(len(meta.CompletedIndices))
		}
	}

	// Tier accumulation happens once; tier requirements share a kind,
	// so a single calculator pass advances the shared state.
	tierOnly := len(tr.Requirements) == 0
	tierValue := meta.TierValue
	if tierOnly {
		tierValue = value
	}
	if len(matchedTiers) > 0 {
		res := progress.Calculate(ev, matchedTiers[0].Requirement, tierValue, meta, xp)
		// When a base requirement already folded this event, the
		// shared metadata has advanced; keep only the tier value so
		// the event is not counted twice.
		if len(indices) == 0 {
			meta = res.Metadata
		}
		tierValue = res.Value
		if tierOnly {
			value = tierValue
		} else {
			meta.TierValue = tierValue
		}
	}

	// Completion check across every configured tier against the
	// accumulated state. Calculators double as state predicates when
	// handed an event whose payload does not apply.
	var newTiers []requirement.Tier
	sorted := append([]requirement.Tier(nil), tr.Tiers...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Tier < sorted[j].Tier })
	for _, tier := range sorted {
		if meta.HasTier(tier.Tier) {
			continue
		}
		probe := progress.Calculate(event.UnifiedGameEvent{}, tier.Requirement, tierValue, meta, nil)
		if probe.Completed && meta.MarkTier(tier.Tier, now, ev.Player) {
			newTiers = append(newTiers, tier)
		}
	}
	// Cascade: every tier below the highest completed one completes too.
	if highest, ok := highestCompleted(meta); ok {
		for _, tier := range sorted {
			if tier.Tier < highest && meta.MarkTier(tier.Tier, now, ev.Player) {
				newTiers = append(newTiers, tier)
			}
		}
	}

	baseComplete := baseDone(tr, meta)
	complete := baseComplete || len(meta.CompletedTiers) > 0
	if tierOnly {
		complete = len(meta.CompletedTiers) > 0
	}

	next := model.TileProgress{
		TileID:      tile.ID,
		Version:     prior.Version,
		Value:       value,
		Metadata:    meta,
		CompletedAt: prior.CompletedAt,
		CompletedBy: prior.CompletedBy,
	}

	newlyCompleted := complete && !wasComplete
	var points int64
	for _, t := range newTiers {
		points += t.Points
	}
	if newlyCompleted {
		points += tile.Points
		next.CompletedAt = &now
		if solo, ok := meta.SoleContributor(); ok {
			next.CompletedBy = solo
		}
	}

	changed := value != prior.Value ||
		newlyCompleted ||
		len(newTiers) > 0 ||
		!reflect.DeepEqual(meta, prior.Metadata)

	return applyResult{
		next:           next,
		changed:        changed,
		newlyCompleted: newlyCompleted,
		newTiers:       newTiers,
		points:         points,
	}
}

func baseDone(tr requirement.TileRequirements, meta progress.Metadata) bool {
	if len(tr.Requirements) == 0 {
		return false
	}
	if tr.Match == requirement.MatchAll {
		return len(meta.CompletedIndices) == len(tr.Requirements)
	}
	return len(meta.CompletedIndices) > 0
}

func highestCompleted(meta progress.Metadata) (int, bool) {
	if len(meta.CompletedTiers) == 0 {
		return 0, false
	}
	return meta.CompletedTiers[len(meta.CompletedTiers)-1].Tier, true
}

// fullyComplete reports whether no event can progress the tile further.
// A base-complete tile with unresolved tiers stays eligible.
func fullyComplete(tile model.Tile, p model.TileProgress) bool {
	if !p.Completed() {
		return false
	}
	for _, tier := range tile.Requirements.Tiers {
		if !p.Metadata.HasTier(tier.Tier) {
			return false
		}
	}
	return true
}
