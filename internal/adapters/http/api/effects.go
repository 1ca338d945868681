// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/clanhall/bingo/internal/domain/model"
	"github.com/clanhall/bingo/internal/domain/types"
	"github.com/clanhall/bingo/internal/effects"
)

// EffectDependencies defines the interface for effect activation.
type EffectDependencies interface {
	UseEffect(ctx context.Context, req effects.ActivationRequest) (types.ActivationOutcome, error)
}

// EffectsHandler handles effect activation requests.
type EffectsHandler struct {
	deps EffectDependencies
}

// NewEffectsHandler creates a new effects handler.
func NewEffectsHandler(deps EffectDependencies) *EffectsHandler {
	return &EffectsHandler{deps: deps}
}

type position struct {
	Column string `json:"column"`
	Row    int    `json:"row"`
}

func (p position) model() model.Position { return model.Position{Column: p.Column, Row: p.Row} }

// useEffectRequest mirrors the request schema for POST /effects/use.
type useEffectRequest struct {
	EarnedEffectID string   `json:"earned_effect_id"`
	TeamID         string   `json:"team_id"`
	TargetTeamID   string   `json:"target_team_id,omitempty"`
	TargetBoardID  string   `json:"target_board_id,omitempty"`
	SwapA          position `json:"swap_a,omitempty"`
	SwapB          position `json:"swap_b,omitempty"`
	TilePos        position `json:"tile,omitempty"`
}

func (u useEffectRequest) validate() error {
	switch {
	case strings.TrimSpace(u.EarnedEffectID) == "":
		return errors.New("missing earned_effect_id")
	case strings.TrimSpace(u.TeamID) == "":
		return errors.New("missing team_id")
	}
	return nil
}

// HandleUseEffect handles POST /effects/use requests. Domain refusals
// (unknown effect, blocked, reflected) come back as 200 with a structured
// outcome; only transport and storage failures are HTTP errors.
func (h *EffectsHandler) HandleUseEffect(w http.ResponseWriter, r *http.Request) {
	const op = "api.use_effect"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req useEffectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	outcome, err := h.deps.UseEffect(r.Context(), effects.ActivationRequest{
		EarnedEffectID: req.EarnedEffectID,
		TeamID:         req.TeamID,
		TargetTeamID:   req.TargetTeamID,
		TargetBoardID:  req.TargetBoardID,
		SwapA:          req.SwapA.model(),
		SwapB:          req.SwapB.model(),
		TilePos:        req.TilePos.model(),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}
