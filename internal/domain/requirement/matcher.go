package requirement

import (
	"strings"

	"github.com/clanhall/bingo/internal/domain/event"
)

// Matches reports whether ev can progress the tile at all. With tiers
// configured, satisfying any single tier is enough; otherwise the base
// requirements combine under the tile's match type. Pure; never errors.
func Matches(ev event.UnifiedGameEvent, tr TileRequirements) bool {
	for _, tier := range tr.Tiers {
		if MatchesRequirement(ev, tier.Requirement) {
			return true
		}
	}
	if len(tr.Requirements) == 0 {
		return false
	}
	switch tr.Match {
	case MatchAll:
		for _, r := range tr.Requirements {
			if !MatchesRequirement(ev, r) {
				return false
			}
		}
		return true
	default: // MatchAny
		for _, r := range tr.Requirements {
			if MatchesRequirement(ev, r) {
				return true
			}
		}
		return false
	}
}

// MatchingIndices returns the base requirement indices ev satisfies.
func MatchingIndices(ev event.UnifiedGameEvent, tr TileRequirements) []int {
	var idx []int
	for i, r := range tr.Requirements {
		if MatchesRequirement(ev, r) {
			idx = append(idx, i)
		}
	}
	return idx
}

// MatchingTiers returns the tiers ev satisfies on its own.
func MatchingTiers(ev event.UnifiedGameEvent, tr TileRequirements) []Tier {
	var tiers []Tier
	for _, t := range tr.Tiers {
		if MatchesRequirement(ev, t.Requirement) {
			tiers = append(tiers, t)
		}
	}
	return tiers
}

// MatchesRequirement reports whether ev satisfies a single requirement.
func MatchesRequirement(ev event.UnifiedGameEvent, r Requirement) bool {
	switch req := r.(type) {
	case ItemDrop:
		return matchItemDrop(ev, req)
	case Pet:
		return matchPet(ev, req)
	case ValueDrop:
		return matchValueDrop(ev, req)
	case Speedrun:
		return matchSpeedrun(ev, req)
	case Experience:
		// Deferred: fires on logout snapshots only, XP deltas are
		// validated by the calculator against the skill lookup.
		p, ok := ev.Payload.(event.XPSnapshotPayload)
		return ok && p.Logout
	case BAGambles:
		p, ok := ev.Payload.(event.GamblePayload)
		return ok && p.Count > 0
	case Chat:
		p, ok := ev.Payload.(event.ChatPayload)
		return ok && containsFold(p.Message, req.Phrase)
	case Puzzle:
		p, ok := ev.Payload.(event.ChatPayload)
		return ok && strings.EqualFold(strings.TrimSpace(p.Message), req.Answer)
	default:
		return false
	}
}

// matchItemDrop: any listed item appearing in the drop is a match.
// Quantity targets and multi-item completion are settled by the
// calculator, which accumulates across events.
func matchItemDrop(ev event.UnifiedGameEvent, req ItemDrop) bool {
	p, ok := ev.Payload.(event.LootPayload)
	if !ok {
		return false
	}
	for _, item := range p.Items {
		for _, want := range req.Items {
			if strings.EqualFold(item.Name, want) && item.Quantity > 0 {
				return true
			}
		}
	}
	return false
}

func matchPet(ev event.UnifiedGameEvent, req Pet) bool {
	p, ok := ev.Payload.(event.PetPayload)
	if !ok {
		return false
	}
	for _, want := range req.Names {
		if strings.EqualFold(p.Name, want) {
			return true
		}
	}
	return false
}

// matchValueDrop: a single stack must meet the target on its own, the
// event's total drop value does not count.
func matchValueDrop(ev event.UnifiedGameEvent, req ValueDrop) bool {
	p, ok := ev.Payload.(event.LootPayload)
	if !ok {
		return false
	}
	for _, item := range p.Items {
		if item.Value() >= req.TargetValue {
			return true
		}
	}
	return false
}

// matchSpeedrun: location must match case-insensitively and the run must
// be at or under goal (lower is better).
func matchSpeedrun(ev event.UnifiedGameEvent, req Speedrun) bool {
	p, ok := ev.Payload.(event.SpeedrunPayload)
	if !ok {
		return false
	}
	return strings.EqualFold(p.Location, req.Location) && p.Seconds > 0 && p.Seconds <= req.GoalSeconds
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
