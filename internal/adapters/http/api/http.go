// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/clanhall/bingo/internal/domain/dedupe"
	"github.com/clanhall/bingo/internal/domain/event"
	"github.com/clanhall/bingo/internal/domain/types"
	"github.com/clanhall/bingo/internal/effects"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	dedupe.Deduper

	// Enqueue pushes a raw webhook event for async processing.
	// Returns false on backpressure.
	Enqueue(ctx context.Context, raw event.RawEvent) bool

	// UseEffect activates an earned effect against a target.
	UseEffect(ctx context.Context, req effects.ActivationRequest) (types.ActivationOutcome, error)

	// Read operations expose team state.
	TeamScore(ctx context.Context, teamID string) (types.TeamScore, error)
	TeamEffects(ctx context.Context, teamID string) ([]types.EffectView, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	eventsHandler  *EventsHandler
	effectsHandler *EffectsHandler
	teamsHandler   *TeamsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:  NewHealthHandler(),
		statsHandler:   NewStatsHandler(statsProvider),
		eventsHandler:  NewEventsHandler(deps),
		effectsHandler: NewEffectsHandler(deps),
		teamsHandler:   NewTeamsHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/events", MetricsMiddleware(s.eventsHandler.HandlePostEvent, "events"))
	mux.HandleFunc("/effects/use", MetricsMiddleware(s.effectsHandler.HandleUseEffect, "effects_use"))
	mux.HandleFunc("/teams/", MetricsMiddleware(s.teamsHandler.HandleTeam, "teams"))
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
