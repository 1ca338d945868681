package repository

import (
	"encoding/json"
	"fmt"

	"github.com/clanhall/bingo/internal/domain/model"
	"github.com/clanhall/bingo/internal/domain/progress"
	"github.com/clanhall/bingo/internal/domain/requirement"
)

// Storage records. The domain model stays free of storage naming; these
// structs are the explicit translation layer for the JSON columns.

type requirementRecord struct {
	Kind          string   `json:"kind"`
	Items         []string `json:"items,omitempty"`
	TotalQuantity int64    `json:"total_quantity,omitempty"`
	Names         []string `json:"names,omitempty"`
	TargetValue   int64    `json:"target_value,omitempty"`
	Location      string   `json:"location,omitempty"`
	GoalSeconds   int64    `json:"goal_seconds,omitempty"`
	Skill         string   `json:"skill,omitempty"`
	TargetXP      int64    `json:"target_xp,omitempty"`
	Target        int64    `json:"target,omitempty"`
	Phrase        string   `json:"phrase,omitempty"`
	Count         int64    `json:"count,omitempty"`
	Answer        string   `json:"answer,omitempty"`
}

type tierRecord struct {
	Tier        int               `json:"tier"`
	Requirement requirementRecord `json:"requirement"`
	Points      int64             `json:"points"`
}

type tileRequirementsRecord struct {
	Match        string              `json:"match_type"`
	Requirements []requirementRecord `json:"requirements,omitempty"`
	Tiers        []tierRecord        `json:"tiers,omitempty"`
}

func toRequirementRecord(r requirement.Requirement) requirementRecord {
	switch req := r.(type) {
	case requirement.ItemDrop:
		return requirementRecord{Kind: string(requirement.KindItemDrop), Items: req.Items, TotalQuantity: req.TotalQuantity}
	case requirement.Pet:
		return requirementRecord{Kind: string(requirement.KindPet), Names: req.Names}
	case requirement.ValueDrop:
		return requirementRecord{Kind: string(requirement.KindValueDrop), TargetValue: req.TargetValue}
	case requirement.Speedrun:
		return requirementRecord{Kind: string(requirement.KindSpeedrun), Location: req.Location, GoalSeconds: req.GoalSeconds}
	case requirement.Experience:
		return requirementRecord{Kind: string(requirement.KindExperience), Skill: req.Skill, TargetXP: req.TargetXP}
	case requirement.BAGambles:
		return requirementRecord{Kind: string(requirement.KindBAGambles), Target: req.Target}
	case requirement.Chat:
		return requirementRecord{Kind: string(requirement.KindChat), Phrase: req.Phrase, Count: req.Count}
	case requirement.Puzzle:
		return requirementRecord{Kind: string(requirement.KindPuzzle), Answer: req.Answer}
	default:
		return requirementRecord{Kind: "unknown"}
	}
}

func fromRequirementRecord(rec requirementRecord) (requirement.Requirement, error) {
	switch requirement.Kind(rec.Kind) {
	case requirement.KindItemDrop:
		return requirement.ItemDrop{Items: rec.Items, TotalQuantity: rec.TotalQuantity}, nil
	case requirement.KindPet:
		return requirement.Pet{Names: rec.Names}, nil
	case requirement.KindValueDrop:
		return requirement.ValueDrop{TargetValue: rec.TargetValue}, nil
	case requirement.KindSpeedrun:
		return requirement.Speedrun{Location: rec.Location, GoalSeconds: rec.GoalSeconds}, nil
	case requirement.KindExperience:
		return requirement.Experience{Skill: rec.Skill, TargetXP: rec.TargetXP}, nil
	case requirement.KindBAGambles:
		return requirement.BAGambles{Target: rec.Target}, nil
	case requirement.KindChat:
		return requirement.Chat{Phrase: rec.Phrase, Count: rec.Count}, nil
	case requirement.KindPuzzle:
		return requirement.Puzzle{Answer: rec.Answer}, nil
	default:
		return nil, fmt.Errorf("unknown requirement kind %q", rec.Kind)
	}
}

func encodeTileRequirements(tr requirement.TileRequirements) (string, error) {
	rec := tileRequirementsRecord{Match: string(tr.Match)}
	for _, r := range tr.Requirements {
		rec.Requirements = append(rec.Requirements, toRequirementRecord(r))
	}
	for _, t := range tr.Tiers {
		rec.Tiers = append(rec.Tiers, tierRecord{Tier: t.Tier, Requirement: toRequirementRecord(t.Requirement), Points: t.Points})
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func decodeTileRequirements(raw string) (requirement.TileRequirements, error) {
	var rec tileRequirementsRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return requirement.TileRequirements{}, err
	}
	out := requirement.TileRequirements{Match: requirement.MatchType(rec.Match)}
	for _, r := range rec.Requirements {
		req, err := fromRequirementRecord(r)
		if err != nil {
			return requirement.TileRequirements{}, err
		}
		out.Requirements = append(out.Requirements, req)
	}
	for _, t := range rec.Tiers {
		req, err := fromRequirementRecord(t.Requirement)
		if err != nil {
			return requirement.TileRequirements{}, err
		}
		out.Tiers = append(out.Tiers, requirement.Tier{Tier: t.Tier, Requirement: req, Points: t.Points})
	}
	return out, nil
}

type tierCompletionRecord struct {
	Tier        int    `json:"tier"`
	CompletedAt string `json:"completed_at"`
	CompletedBy string `json:"completed_by,omitempty"`
}

type metadataRecord struct {
	CompletedIndices []int                  `json:"completed_indices,omitempty"`
	IndexValues      map[int]int64          `json:"index_values,omitempty"`
	Contributions    map[string]int64       `json:"contributions,omitempty"`
	ObtainedItems    map[string]int64       `json:"obtained_items,omitempty"`
	BestSeconds      int64                  `json:"best_seconds,omitempty"`
	XPBaselines      map[string]int64       `json:"xp_baselines,omitempty"`
	XPGained         map[string]int64       `json:"xp_gained,omitempty"`
	TierValue        int64                  `json:"tier_value,omitempty"`
	CompletedTiers   []tierCompletionRecord `json:"completed_tiers,omitempty"`
}

func encodeMetadata(m progress.Metadata) (string, error) {
	rec := metadataRecord{
		CompletedIndices: m.CompletedIndices,
		IndexValues:      m.IndexValues,
		Contributions:    m.Contributions,
		ObtainedItems:    m.ObtainedItems,
		BestSeconds:      m.BestSeconds,
		XPBaselines:      m.XPBaselines,
		XPGained:         m.XPGained,
		TierValue:        m.TierValue,
	}
	for _, tc := range m.CompletedTiers {
		rec.CompletedTiers = append(rec.CompletedTiers, tierCompletionRecord{
			Tier:        tc.Tier,
			CompletedAt: tc.CompletedAt.UTC().Format(timeLayout),
			CompletedBy: tc.CompletedBy,
		})
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func decodeMetadata(raw string) (progress.Metadata, error) {
	var rec metadataRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return progress.Metadata{}, err
	}
	out := progress.Metadata{
		CompletedIndices: rec.CompletedIndices,
		IndexValues:      rec.IndexValues,
		Contributions:    rec.Contributions,
		ObtainedItems:    rec.ObtainedItems,
		BestSeconds:      rec.BestSeconds,
		XPBaselines:      rec.XPBaselines,
		XPGained:         rec.XPGained,
		TierValue:        rec.TierValue,
	}
	for _, tc := range rec.CompletedTiers {
		at, err := parseStoredTime(tc.CompletedAt)
		if err != nil {
			return progress.Metadata{}, err
		}
		out.CompletedTiers = append(out.CompletedTiers, progress.TierCompletion{
			Tier:        tc.Tier,
			CompletedAt: at,
			CompletedBy: tc.CompletedBy,
		})
	}
	return out, nil
}

type actionRecord struct {
	Kind   string  `json:"kind"`
	Points int64   `json:"points,omitempty"`
	Factor float64 `json:"factor,omitempty"`
}

func encodeAction(a model.EffectAction) (string, error) {
	rec := actionRecord{Kind: string(a.ActionKind())}
	switch act := a.(type) {
	case model.PointBonus:
		rec.Points = act.Points
	case model.PointMultiplier:
		rec.Factor = act.Factor
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func decodeAction(raw string) (model.EffectAction, error) {
	var rec actionRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, err
	}
	switch model.ActionKind(rec.Kind) {
	case model.ActionPointBonus:
		return model.PointBonus{Points: rec.Points}, nil
	case model.ActionPointMultiplier:
		return model.PointMultiplier{Factor: rec.Factor}, nil
	case model.ActionTileSwap:
		return model.TileSwap{}, nil
	case model.ActionTileLock:
		return model.TileLock{}, nil
	case model.ActionTileUnlock:
		return model.TileUnlock{}, nil
	case model.ActionShield:
		return model.Shield{}, nil
	case model.ActionReflect:
		return model.Reflect{}, nil
	default:
		return nil, fmt.Errorf("unknown action kind %q", rec.Kind)
	}
}
