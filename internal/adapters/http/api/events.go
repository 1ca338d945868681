// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/clanhall/bingo/internal/domain/dedupe"
	"github.com/clanhall/bingo/internal/domain/event"
)

// EventDependencies defines the interface for event ingestion dependencies.
type EventDependencies interface {
	dedupe.Deduper
	Enqueue(ctx context.Context, raw event.RawEvent) bool
}

// EventsHandler handles webhook event requests.
type EventsHandler struct {
	deps EventDependencies
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(deps EventDependencies) *EventsHandler {
	return &EventsHandler{deps: deps}
}

func validateRawEvent(raw event.RawEvent) error {
	switch {
	case strings.TrimSpace(raw.Type) == "":
		return errors.New("missing type")
	case strings.TrimSpace(raw.Player) == "":
		return errors.New("missing player_identifier")
	case raw.Timestamp.IsZero():
		return errors.New("missing timestamp")
	}
	return nil
}

// HandlePostEvent handles POST /events requests.
func (h *EventsHandler) HandlePostEvent(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_event"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var raw event.RawEvent
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := validateRawEvent(raw); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	// Idempotency check before anything is enqueued. Webhook retries
	// carry the same key and short-circuit here.
	if h.deps.SeenAndRecord(r.Context(), raw.IdempotencyKey()) {
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", Duplicate: true})
		return
	}

	if ok := h.deps.Enqueue(r.Context(), raw); !ok {
		// Roll back the seen mark so the client retry is not treated
		// as a duplicate of an event that was never queued.
		h.deps.Unrecord(r.Context(), raw.IdempotencyKey())
		writeError(w, http.StatusTooManyRequests, "backpressure", NewKind(op, ErrBackpressure))
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", Duplicate: false})
}
