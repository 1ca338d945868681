package progress

import (
	"strings"

	"github.com/clanhall/bingo/internal/domain/event"
	"github.com/clanhall/bingo/internal/domain/requirement"
)

// Result is the outcome of applying one event to one requirement.
type Result struct {
	Value     int64
	Metadata  Metadata
	Completed bool
}

// XPSample is a pre-fetched skill-lookup snapshot for one player. The
// orchestrator fetches it before taking the tile write section so the
// experience calculator stays pure. Valid is false when the lookup
// failed; the calculator then leaves progress unchanged.
type XPSample struct {
	Player   string
	Skill    string
	Baseline int64
	Current  int64
	Valid    bool
}

// Calculate dispatches to the calculator for the requirement's kind.
// Calculators are total functions: given prior state they return new
// state, never an error. xp is only consulted for experience
// requirements and may be nil otherwise.
func Calculate(ev event.UnifiedGameEvent, req requirement.Requirement, value int64, meta Metadata, xp *XPSample) Result {
	switch r := req.(type) {
	case requirement.ItemDrop:
		return calcItemDrop(ev, r, value, meta)
	case requirement.Pet:
		return calcPet(ev, value, meta)
	case requirement.ValueDrop:
		return calcValueDrop(ev, r, value, meta)
	case requirement.Speedrun:
		return calcSpeedrun(ev, r, value, meta)
	case requirement.Experience:
		return calcExperience(r, value, meta, xp)
	case requirement.BAGambles:
		return calcGambles(ev, r, value, meta)
	case requirement.Chat:
		return calcChat(ev, r, value, meta)
	case requirement.Puzzle:
		return calcPuzzle(ev, value, meta)
	default:
		return Result{Value: value, Metadata: meta.Clone()}
	}
}

// calcItemDrop accumulates matching quantities. With a total target the
// summed quantity completes the requirement; without one, every listed
// item must have been obtained at least once across events.
func calcItemDrop(ev event.UnifiedGameEvent, req requirement.ItemDrop, value int64, meta Metadata) Result {
	out := meta.Clone()
	p, ok := ev.Payload.(event.LootPayload)
	if !ok {
		return Result{Value: value, Metadata: out, Completed: itemDropDone(req, value, out)}
	}
	var gained int64
	for _, item := range p.Items {
		for _, want := range req.Items {
			if strings.EqualFold(item.Name, want) && item.Quantity > 0 {
				gained += item.Quantity
				if out.ObtainedItems == nil {
					out.ObtainedItems = make(map[string]int64)
				}
				out.ObtainedItems[strings.ToLower(want)] += item.Quantity
				break
			}
		}
	}
	newValue := value + gained
	out.Contribute(ev.Player, gained)
	return Result{Value: newValue, Metadata: out, Completed: itemDropDone(req, newValue, out)}
}

func itemDropDone(req requirement.ItemDrop, value int64, meta Metadata) bool {
	if req.TotalQuantity > 0 {
		return value >= req.TotalQuantity
	}
	for _, want := range req.Items {
		if meta.ObtainedItems[strings.ToLower(want)] <= 0 {
			return false
		}
	}
	return len(req.Items) > 0
}

// calcPet counts unlocks; the matcher already checked the name, so any
// invocation completes the requirement.
func calcPet(ev event.UnifiedGameEvent, value int64, meta Metadata) Result {
	out := meta.Clone()
	if _, ok := ev.Payload.(event.PetPayload); !ok {
		return Result{Value: value, Metadata: out, Completed: value > 0}
	}
	out.Contribute(ev.Player, 1)
	return Result{Value: value + 1, Metadata: out, Completed: true}
}

// calcValueDrop adds the value of every qualifying stack. A qualifying
// stack completes the requirement outright (single-drop threshold).
func calcValueDrop(ev event.UnifiedGameEvent, req requirement.ValueDrop, value int64, meta Metadata) Result {
	out := meta.Clone()
	p, ok := ev.Payload.(event.LootPayload)
	if !ok {
		return Result{Value: value, Metadata: out, Completed: hadQualifyingDrop(value)}
	}
	var gained int64
	qualified := false
	for _, item := range p.Items {
		if item.Value() >= req.TargetValue {
			gained += item.Value()
			qualified = true
		}
	}
	out.Contribute(ev.Player, gained)
	return Result{Value: value + gained, Metadata: out, Completed: qualified || hadQualifyingDrop(value)}
}

func hadQualifyingDrop(value int64) bool { return value > 0 }

// calcSpeedrun keeps the best (minimum) time seen. Progress value is the
// best time, so histories are monotonically non-increasing.
func calcSpeedrun(ev event.UnifiedGameEvent, req requirement.Speedrun, value int64, meta Metadata) Result {
	out := meta.Clone()
	p, ok := ev.Payload.(event.SpeedrunPayload)
	if !ok || !strings.EqualFold(p.Location, req.Location) || p.Seconds <= 0 {
		done := out.BestSeconds > 0 && out.BestSeconds <= req.GoalSeconds
		return Result{Value: value, Metadata: out, Completed: done}
	}
	if out.BestSeconds == 0 || p.Seconds < out.BestSeconds {
		out.BestSeconds = p.Seconds
		out.Contribute(ev.Player, 1)
	}
	return Result{
		Value:     out.BestSeconds,
		Metadata:  out,
		Completed: out.BestSeconds <= req.GoalSeconds,
	}
}

// calcExperience sums per-player XP deltas against baselines captured at
// competition start. A failed lookup degrades to "progress unchanged".
func calcExperience(req requirement.Experience, value int64, meta Metadata, xp *XPSample) Result {
	out := meta.Clone()
	if xp == nil || !xp.Valid || !strings.EqualFold(xp.Skill, req.Skill) {
		return Result{Value: value, Metadata: out, Completed: value >= req.TargetXP && req.TargetXP > 0}
	}
	if out.XPBaselines == nil {
		out.XPBaselines = make(map[string]int64)
	}
	// The baseline is fetched once per player and then pinned.
	baseline, seen := out.XPBaselines[xp.Player]
	if !seen {
		baseline = xp.Baseline
		out.XPBaselines[xp.Player] = baseline
	}
	delta := xp.Current - baseline
	if delta < 0 {
		delta = 0
	}
	if out.Contributions == nil {
		out.Contributions = make(map[string]int64)
	}
	out.Contributions[xp.Player] = delta
	if out.XPGained == nil {
		out.XPGained = make(map[string]int64)
	}
	out.XPGained[xp.Player] = delta
	// The team total only counts XP gains; Contributions may carry
	// tallies from other requirement kinds on the same tile.
	var total int64
	for _, d := range out.XPGained {
		total += d
	}
	return Result{Value: total, Metadata: out, Completed: total >= req.TargetXP && req.TargetXP > 0}
}

func calcGambles(ev event.UnifiedGameEvent, req requirement.BAGambles, value int64, meta Metadata) Result {
	out := meta.Clone()
	p, ok := ev.Payload.(event.GamblePayload)
	if !ok {
		return Result{Value: value, Metadata: out, Completed: value >= req.Target}
	}
	out.Contribute(ev.Player, p.Count)
	newValue := value + p.Count
	return Result{Value: newValue, Metadata: out, Completed: newValue >= req.Target}
}

func calcChat(ev event.UnifiedGameEvent, req requirement.Chat, value int64, meta Metadata) Result {
	out := meta.Clone()
	if _, ok := ev.Payload.(event.ChatPayload); !ok {
		return Result{Value: value, Metadata: out, Completed: chatDone(req, value)}
	}
	out.Contribute(ev.Player, 1)
	newValue := value + 1
	return Result{Value: newValue, Metadata: out, Completed: chatDone(req, newValue)}
}

func chatDone(req requirement.Chat, value int64) bool {
	target := req.Count
	if target <= 0 {
		target = 1
	}
	return value >= target
}

// calcPuzzle completes on the first correct answer; the matcher verified it.
func calcPuzzle(ev event.UnifiedGameEvent, value int64, meta Metadata) Result {
	out := meta.Clone()
	if _, ok := ev.Payload.(event.ChatPayload); !ok {
		return Result{Value: value, Metadata: out, Completed: value > 0}
	}
	out.Contribute(ev.Player, 1)
	return Result{Value: value + 1, Metadata: out, Completed: true}
}
