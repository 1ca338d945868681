// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/clanhall/bingo/internal/adapters/repository"
	"github.com/clanhall/bingo/internal/domain/types"
)

// TeamDependencies defines the interface for team read operations.
type TeamDependencies interface {
	TeamScore(ctx context.Context, teamID string) (types.TeamScore, error)
	TeamEffects(ctx context.Context, teamID string) ([]types.EffectView, error)
}

// TeamsHandler handles team read requests.
type TeamsHandler struct {
	deps TeamDependencies
}

// NewTeamsHandler creates a new teams handler.
func NewTeamsHandler(deps TeamDependencies) *TeamsHandler {
	return &TeamsHandler{deps: deps}
}

// HandleTeam routes GET /teams/{id}/score and GET /teams/{id}/effects.
func (h *TeamsHandler) HandleTeam(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/teams/")
	teamID, resource, ok := strings.Cut(rest, "/")
	if !ok || teamID == "" {
		http.NotFound(w, r)
		return
	}
	switch resource {
	case "score":
		h.handleScore(w, r, teamID)
	case "effects":
		h.handleEffects(w, r, teamID)
	default:
		http.NotFound(w, r)
	}
}

func (h *TeamsHandler) handleScore(w http.ResponseWriter, r *http.Request, teamID string) {
	score, err := h.deps.TeamScore(r.Context(), teamID)
	if err != nil {
		if isNotFound(err) {
			writeError(w, http.StatusNotFound, "not_found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal", err)
		return
	}
	writeJSON(w, http.StatusOK, score)
}

func (h *TeamsHandler) handleEffects(w http.ResponseWriter, r *http.Request, teamID string) {
	views, err := h.deps.TeamEffects(r.Context(), teamID)
	if err != nil {
		if isNotFound(err) {
			writeError(w, http.StatusNotFound, "not_found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal", err)
		return
	}
	if views == nil {
		views = []types.EffectView{}
	}
	writeJSON(w, http.StatusOK, views)
}

func isNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound)
}
