// Package requirement defines tile requirements and the pure matching
// rules that decide whether a game event can progress them.
package requirement

import "errors"

// Kind tags a requirement variant.
type Kind string

const (
	KindItemDrop   Kind = "ITEM_DROP"
	KindPet        Kind = "PET"
	KindValueDrop  Kind = "VALUE_DROP"
	KindSpeedrun   Kind = "SPEEDRUN"
	KindExperience Kind = "EXPERIENCE"
	KindBAGambles  Kind = "BA_GAMBLES"
	KindChat       Kind = "CHAT"
	KindPuzzle     Kind = "PUZZLE"
)

// MatchType combines multiple base requirements on one tile.
type MatchType string

const (
	MatchAll MatchType = "ALL"
	MatchAny MatchType = "ANY"
)

// Requirement is the closed union of requirement variants.
type Requirement interface {
	Kind() Kind
}

// ItemDrop requires obtaining listed items. With TotalQuantity > 0 the
// matching quantities are summed to that target across events; with
// TotalQuantity == 0 every listed item must be obtained at least once.
type ItemDrop struct {
	Items         []string
	TotalQuantity int64
}

// Pet requires unlocking any of the named pets.
type Pet struct {
	Names []string
}

// ValueDrop requires a single dropped stack worth at least TargetValue.
type ValueDrop struct {
	TargetValue int64
}

// Speedrun requires finishing the location at or under GoalSeconds.
type Speedrun struct {
	Location    string
	GoalSeconds int64
}

// Experience requires gaining TargetXP in Skill over the competition.
// Validation happens in the calculator against a skill lookup; matching
// only fires on logout-class snapshot events.
type Experience struct {
	Skill    string
	TargetXP int64
}

// BAGambles requires accumulating Target gambles.
type BAGambles struct {
	Target int64
}

// Chat requires Count chat messages containing Phrase.
type Chat struct {
	Phrase string
	Count  int64
}

// Puzzle requires the exact answer phrase in chat.
type Puzzle struct {
	Answer string
}

func (ItemDrop) Kind() Kind   { return KindItemDrop }
func (Pet) Kind() Kind        { return KindPet }
func (ValueDrop) Kind() Kind  { return KindValueDrop }
func (Speedrun) Kind() Kind   { return KindSpeedrun }
func (Experience) Kind() Kind { return KindExperience }
func (BAGambles) Kind() Kind  { return KindBAGambles }
func (Chat) Kind() Kind       { return KindChat }
func (Puzzle) Kind() Kind     { return KindPuzzle }

// Tier is a progressively harder variant of a tile's requirement.
// Completing a higher tier implies all lower ones.
type Tier struct {
	Tier        int
	Requirement Requirement
	Points      int64
}

// TileRequirements is the full requirement set of one tile. At least one
// of Requirements and Tiers must be non-empty.
type TileRequirements struct {
	Match        MatchType
	Requirements []Requirement
	Tiers        []Tier
}

// ErrEmptyRequirements reports a tile with neither base requirements nor tiers.
var ErrEmptyRequirements = errors.New("tile has no requirements and no tiers")

// Validate checks the structural invariant.
func (t TileRequirements) Validate() error {
	if len(t.Requirements) == 0 && len(t.Tiers) == 0 {
		return ErrEmptyRequirements
	}
	return nil
}
