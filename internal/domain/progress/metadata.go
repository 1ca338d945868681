// Package progress holds the per-tile progress state and the pure
// calculators that advance it, one per requirement kind.
package progress

import (
	"sort"
	"time"
)

// TierCompletion records one completed tier. The list on Metadata is
// monotonically non-decreasing; tiers are never un-completed.
type TierCompletion struct {
	Tier        int
	CompletedAt time.Time
	CompletedBy string
}

// Metadata is the typed progress detail stored alongside the progress
// value. It replaces the loosely-typed blob of the storage layer with an
// owned value object.
type Metadata struct {
	// CompletedIndices tracks which base requirements of a
	// multi-requirement (ALL) tile are done.
	CompletedIndices []int

	// IndexValues holds the running progress value per base
	// requirement index on multi-requirement tiles.
	IndexValues map[int]int64

	// Contributions maps player name to their contributed amount,
	// used for completion attribution.
	Contributions map[string]int64

	// ObtainedItems maps item name (lowercased) to quantity obtained,
	// for item-drop requirements.
	ObtainedItems map[string]int64

	// BestSeconds is the best (lowest) speedrun time seen; 0 means none.
	BestSeconds int64

	// XPBaselines maps player name to baseline XP captured at
	// competition start for experience requirements.
	XPBaselines map[string]int64

	// XPGained maps player name to XP gained since baseline, for
	// experience requirements. Kept separate from Contributions so the
	// tile total is not polluted by other requirement kinds.
	XPGained map[string]int64

	// TierValue is the running progress value toward the next tier on
	// tiles that also carry base requirements. Tier-only tiles reuse
	// the tile value instead.
	TierValue int64

	// CompletedTiers lists tiers completed so far, ascending.
	CompletedTiers []TierCompletion
}

// Clone deep-copies the metadata so calculators never mutate prior state.
func (m Metadata) Clone() Metadata {
	out := m
	out.CompletedIndices = append([]int(nil), m.CompletedIndices...)
	out.CompletedTiers = append([]TierCompletion(nil), m.CompletedTiers...)
	if m.IndexValues != nil {
		out.IndexValues = make(map[int]int64, len(m.IndexValues))
		for k, v := range m.IndexValues {
			out.IndexValues[k] = v
		}
	}
	out.Contributions = cloneCounts(m.Contributions)
	out.ObtainedItems = cloneCounts(m.ObtainedItems)
	out.XPBaselines = cloneCounts(m.XPBaselines)
	out.XPGained = cloneCounts(m.XPGained)
	return out
}

func cloneCounts(in map[string]int64) map[string]int64 {
	if in == nil {
		return nil
	}
	out := make(map[string]int64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// HasIndex reports whether base requirement index i is recorded complete.
func (m Metadata) HasIndex(i int) bool {
	for _, idx := range m.CompletedIndices {
		if idx == i {
			return true
		}
	}
	return false
}

// MarkIndex records base requirement index i as complete.
func (m *Metadata) MarkIndex(i int) {
	if m.HasIndex(i) {
		return
	}
	m.CompletedIndices = append(m.CompletedIndices, i)
	sort.Ints(m.CompletedIndices)
}

// SetIndexValue records the running value of base requirement index i.
func (m *Metadata) SetIndexValue(i int, v int64) {
	if m.IndexValues == nil {
		m.IndexValues = make(map[int]int64)
	}
	m.IndexValues[i] = v
}

// IndexValue returns the running value of base requirement index i.
func (m Metadata) IndexValue(i int) int64 { return m.IndexValues[i] }

// HasTier reports whether tier t is recorded complete.
func (m Metadata) HasTier(t int) bool {
	for _, tc := range m.CompletedTiers {
		if tc.Tier == t {
			return true
		}
	}
	return false
}

// MarkTier appends tier t if not already present, keeping the list sorted.
func (m *Metadata) MarkTier(t int, at time.Time, by string) bool {
	if m.HasTier(t) {
		return false
	}
	m.CompletedTiers = append(m.CompletedTiers, TierCompletion{Tier: t, CompletedAt: at, CompletedBy: by})
	sort.Slice(m.CompletedTiers, func(i, j int) bool {
		return m.CompletedTiers[i].Tier < m.CompletedTiers[j].Tier
	})
	return true
}

// Contribute adds amount to a player's contribution tally.
func (m *Metadata) Contribute(player string, amount int64) {
	if player == "" || amount == 0 {
		return
	}
	if m.Contributions == nil {
		m.Contributions = make(map[string]int64)
	}
	m.Contributions[player] += amount
}

// SoleContributor returns the single contributing player, if exactly one
// player contributed. Otherwise the tile counts as a team effort.
func (m Metadata) SoleContributor() (string, bool) {
	if len(m.Contributions) != 1 {
		return "", false
	}
	for player := range m.Contributions {
		return player, true
	}
	return "", false
}
