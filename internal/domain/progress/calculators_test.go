package progress

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/clanhall/bingo/internal/domain/event"
	"github.com/clanhall/bingo/internal/domain/requirement"
)

func lootEvent(player string, items ...event.LootItem) event.UnifiedGameEvent {
	var total int64
	for _, it := range items {
		total += it.Value()
	}
	return event.UnifiedGameEvent{
		Kind: event.KindLoot, Player: player, Timestamp: time.Now(),
		Payload: event.LootPayload{Items: items, TotalValue: total},
	}
}

func TestItemDropCalculator(t *testing.T) {
	req := requirement.ItemDrop{Items: []string{"Zulrah scale"}, TotalQuantity: 100}

	Convey("Quantities accumulate across events toward the target", t, func() {
		r1 := Calculate(lootEvent("Zezima", event.LootItem{Name: "Zulrah scale", Quantity: 60, Price: 1}), req, 0, Metadata{}, nil)
		So(r1.Value, ShouldEqual, 60)
		So(r1.Completed, ShouldBeFalse)

		r2 := Calculate(lootEvent("Durial", event.LootItem{Name: "zulrah SCALE", Quantity: 40, Price: 1}), req, r1.Value, r1.Metadata, nil)
		So(r2.Value, ShouldEqual, 100)
		So(r2.Completed, ShouldBeTrue)
		So(r2.Metadata.Contributions["Zezima"], ShouldEqual, 60)
		So(r2.Metadata.Contributions["Durial"], ShouldEqual, 40)
		_, sole := r2.Metadata.SoleContributor()
		So(sole, ShouldBeFalse)
	})

	Convey("Without a quantity target every listed item must appear once", t, func() {
		set := requirement.ItemDrop{Items: []string{"Tanzanite fang", "Magic fang"}}
		r1 := Calculate(lootEvent("Zezima", event.LootItem{Name: "Tanzanite fang", Quantity: 1, Price: 1}), set, 0, Metadata{}, nil)
		So(r1.Completed, ShouldBeFalse)
		r2 := Calculate(lootEvent("Zezima", event.LootItem{Name: "Magic fang", Quantity: 1, Price: 1}), set, r1.Value, r1.Metadata, nil)
		So(r2.Completed, ShouldBeTrue)
	})

	Convey("A non-loot event probes accumulated state without changing it", t, func() {
		probe := event.UnifiedGameEvent{Kind: event.KindPet, Payload: event.PetPayload{Name: "Heron"}}
		r := Calculate(probe, req, 100, Metadata{}, nil)
		So(r.Value, ShouldEqual, 100)
		So(r.Completed, ShouldBeTrue)
	})
}

func TestValueDropCalculator(t *testing.T) {
	req := requirement.ValueDrop{TargetValue: 1_000_000}

	Convey("Only qualifying stacks count and any one completes", t, func() {
		r := Calculate(lootEvent("Zezima",
			event.LootItem{Name: "Coal", Quantity: 100, Price: 200},
			event.LootItem{Name: "Elysian sigil", Quantity: 1, Price: 2_000_000},
		), req, 0, Metadata{}, nil)
		So(r.Value, ShouldEqual, 2_000_000)
		So(r.Completed, ShouldBeTrue)
	})

	Convey("Sub-threshold drops leave progress untouched", t, func() {
		r := Calculate(lootEvent("Zezima", event.LootItem{Name: "Coal", Quantity: 1, Price: 50}), req, 0, Metadata{}, nil)
		So(r.Value, ShouldEqual, 0)
		So(r.Completed, ShouldBeFalse)
	})

	Convey("Prior qualifying value keeps the requirement complete", t, func() {
		probe := event.UnifiedGameEvent{Kind: event.KindPet, Payload: event.PetPayload{Name: "Heron"}}
		r := Calculate(probe, req, 2_000_000, Metadata{}, nil)
		So(r.Completed, ShouldBeTrue)
	})
}

func TestSpeedrunCalculator(t *testing.T) {
	req := requirement.Speedrun{Location: "Inferno", GoalSeconds: 90}
	run := func(secs int64) event.UnifiedGameEvent {
		return event.UnifiedGameEvent{
			Kind: event.KindSpeedrun, Player: "Zezima",
			Payload: event.SpeedrunPayload{Location: "Inferno", Seconds: secs},
		}
	}

	Convey("Value tracks the best time and only improvements stick", t, func() {
		r1 := Calculate(run(120), req, 0, Metadata{}, nil)
		So(r1.Value, ShouldEqual, 120)
		So(r1.Completed, ShouldBeFalse)

		r2 := Calculate(run(85), req, r1.Value, r1.Metadata, nil)
		So(r2.Value, ShouldEqual, 85)
		So(r2.Completed, ShouldBeTrue)

		r3 := Calculate(run(100), req, r2.Value, r2.Metadata, nil)
		So(r3.Value, ShouldEqual, 85)
		So(r3.Completed, ShouldBeTrue)
	})

	Convey("Other locations do not affect the best time", t, func() {
		other := event.UnifiedGameEvent{
			Kind: event.KindSpeedrun, Player: "Zezima",
			Payload: event.SpeedrunPayload{Location: "Zulrah", Seconds: 10},
		}
		r := Calculate(other, req, 85, Metadata{BestSeconds: 85}, nil)
		So(r.Value, ShouldEqual, 85)
		So(r.Completed, ShouldBeTrue)
	})
}

func TestExperienceCalculator(t *testing.T) {
	req := requirement.Experience{Skill: "slayer", TargetXP: 500}
	Convey("Deltas sum per player against pinned baselines", t, func() {
		r1 := Calculate(event.UnifiedGameEvent{}, req, 0, Metadata{}, &XPSample{
			Player: "Zezima", Skill: "Slayer", Baseline: 1000, Current: 1300, Valid: true,
		})
		So(r1.Value, ShouldEqual, 300)
		So(r1.Completed, ShouldBeFalse)

		r2 := Calculate(event.UnifiedGameEvent{}, req, r1.Value, r1.Metadata, &XPSample{
			Player: "Durial", Skill: "slayer", Baseline: 2000, Current: 2250, Valid: true,
		})
		So(r2.Value, ShouldEqual, 550)
		So(r2.Completed, ShouldBeTrue)

		// The first sample pinned Zezima's baseline; later samples
		// reuse it even if the lookup reports a different one.
		r3 := Calculate(event.UnifiedGameEvent{}, req, r2.Value, r2.Metadata, &XPSample{
			Player: "Zezima", Skill: "slayer", Baseline: 9999, Current: 1400, Valid: true,
		})
		So(r3.Metadata.Contributions["Zezima"], ShouldEqual, 400)
		So(r3.Value, ShouldEqual, 650)
	})

	Convey("Contribution tallies from other kinds never count as XP", t, func() {
		seeded := Metadata{Contributions: map[string]int64{"Durial": 5}}
		r := Calculate(event.UnifiedGameEvent{}, requirement.Experience{Skill: "slayer", TargetXP: 100}, 0, seeded, &XPSample{
			Player: "Zezima", Skill: "slayer", Baseline: 1000, Current: 1096, Valid: true,
		})
		So(r.Value, ShouldEqual, 96)
		So(r.Completed, ShouldBeFalse)
		So(r.Metadata.XPGained["Zezima"], ShouldEqual, 96)
		So(r.Metadata.Contributions["Durial"], ShouldEqual, 5)
	})

	Convey("An invalid sample leaves progress unchanged", t, func() {
		r := Calculate(event.UnifiedGameEvent{}, req, 300, Metadata{}, &XPSample{Valid: false})
		So(r.Value, ShouldEqual, 300)
		So(r.Completed, ShouldBeFalse)
	})

	Convey("XP loss never reduces progress", t, func() {
		r := Calculate(event.UnifiedGameEvent{}, req, 0, Metadata{}, &XPSample{
			Player: "Zezima", Skill: "slayer", Baseline: 1000, Current: 800, Valid: true,
		})
		So(r.Value, ShouldEqual, 0)
	})
}

func TestCountingCalculators(t *testing.T) {
	Convey("Gamble counts accumulate toward the target", t, func() {
		req := requirement.BAGambles{Target: 5}
		ev := event.UnifiedGameEvent{Kind: event.KindGamble, Player: "Zezima", Payload: event.GamblePayload{Count: 3}}
		r1 := Calculate(ev, req, 0, Metadata{}, nil)
		So(r1.Value, ShouldEqual, 3)
		So(r1.Completed, ShouldBeFalse)
		r2 := Calculate(ev, req, r1.Value, r1.Metadata, nil)
		So(r2.Value, ShouldEqual, 6)
		So(r2.Completed, ShouldBeTrue)
	})

	Convey("Chat counts messages and defaults the target to one", t, func() {
		ev := event.UnifiedGameEvent{Kind: event.KindChat, Player: "Zezima", Payload: event.ChatPayload{Message: "gratz"}}
		r := Calculate(ev, requirement.Chat{Phrase: "gratz"}, 0, Metadata{}, nil)
		So(r.Completed, ShouldBeTrue)

		counted := Calculate(ev, requirement.Chat{Phrase: "gratz", Count: 2}, 0, Metadata{}, nil)
		So(counted.Completed, ShouldBeFalse)
	})

	Convey("Pet and puzzle complete on the first hit", t, func() {
		pet := event.UnifiedGameEvent{Kind: event.KindPet, Player: "Zezima", Payload: event.PetPayload{Name: "Heron"}}
		r := Calculate(pet, requirement.Pet{Names: []string{"Heron"}}, 0, Metadata{}, nil)
		So(r.Completed, ShouldBeTrue)
		by, sole := r.Metadata.SoleContributor()
		So(sole, ShouldBeTrue)
		So(by, ShouldEqual, "Zezima")

		answer := event.UnifiedGameEvent{Kind: event.KindChat, Player: "Zezima", Payload: event.ChatPayload{Message: "forty two"}}
		p := Calculate(answer, requirement.Puzzle{Answer: "forty two"}, 0, Metadata{}, nil)
		So(p.Completed, ShouldBeTrue)
	})
}

func TestMetadata(t *testing.T) {
	Convey("Clone isolates maps and slices from the original", t, func() {
		m := Metadata{}
		m.Contribute("Zezima", 5)
		m.MarkIndex(1)
		m.SetIndexValue(1, 5)
		m.MarkTier(1, time.Now(), "Zezima")

		c := m.Clone()
		c.Contribute("Zezima", 5)
		c.MarkIndex(0)
		c.SetIndexValue(1, 10)

		So(m.Contributions["Zezima"], ShouldEqual, 5)
		So(m.CompletedIndices, ShouldResemble, []int{1})
		So(m.IndexValue(1), ShouldEqual, 5)
	})

	Convey("Tier marks are idempotent and kept sorted", t, func() {
		m := Metadata{}
		So(m.MarkTier(2, time.Now(), "Zezima"), ShouldBeTrue)
		So(m.MarkTier(1, time.Now(), "Zezima"), ShouldBeTrue)
		So(m.MarkTier(2, time.Now(), "Durial"), ShouldBeFalse)
		So(len(m.CompletedTiers), ShouldEqual, 2)
		So(m.CompletedTiers[0].Tier, ShouldEqual, 1)
		So(m.HasTier(2), ShouldBeTrue)
	})
}
