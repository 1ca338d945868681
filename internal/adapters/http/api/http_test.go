package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/clanhall/bingo/internal/adapters/http/api"
	"github.com/clanhall/bingo/internal/adapters/repository"
	"github.com/clanhall/bingo/internal/domain/event"
	"github.com/clanhall/bingo/internal/domain/types"
	"github.com/clanhall/bingo/internal/effects"
)

// Mock implementations for testing.
type mockDeps struct {
	seen        map[string]bool
	enqueueOK   bool
	enqueued    []event.RawEvent
	outcome     types.ActivationOutcome
	outcomeErr  error
	lastRequest effects.ActivationRequest
	scores      map[string]types.TeamScore
	views       map[string][]types.EffectView
}

func newMockDeps() *mockDeps {
	return &mockDeps{
		seen:      make(map[string]bool),
		enqueueOK: true,
		scores:    make(map[string]types.TeamScore),
		views:     make(map[string][]types.EffectView),
	}
}

func (m *mockDeps) SeenAndRecord(_ context.Context, id string) bool {
	if m.seen[id] {
		return true
	}
	m.seen[id] = true
	return false
}

func (m *mockDeps) Unrecord(_ context.Context, id string) { delete(m.seen, id) }
func (m *mockDeps) Size() int64                           { return int64(len(m.seen)) }

func (m *mockDeps) Enqueue(_ context.Context, raw event.RawEvent) bool {
	if !m.enqueueOK {
		return false
	}
	m.enqueued = append(m.enqueued, raw)
	return true
}

func (m *mockDeps) UseEffect(_ context.Context, req effects.ActivationRequest) (types.ActivationOutcome, error) {
	m.lastRequest = req
	return m.outcome, m.outcomeErr
}

func (m *mockDeps) TeamScore(_ context.Context, teamID string) (types.TeamScore, error) {
	s, ok := m.scores[teamID]
	if !ok {
		return types.TeamScore{}, repository.ErrNotFound
	}
	return s, nil
}

func (m *mockDeps) TeamEffects(_ context.Context, teamID string) ([]types.EffectView, error) {
	if _, ok := m.scores[teamID]; !ok {
		return nil, repository.ErrNotFound
	}
	return m.views[teamID], nil
}

type mockStats struct{}

func (mockStats) GetStats() map[string]interface{} {
	return map[string]interface{}{"queue_size": 0}
}

func newTestServer(deps *mockDeps) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(deps, mockStats{}).Register(context.Background(), mux)
	return mux
}

func postJSON(mux *http.ServeMux, path string, body any) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func lootBody(eventID string) map[string]any {
	return map[string]any{
		"event_id":          eventID,
		"type":              "LOOT",
		"player_identifier": "Zezima",
		"timestamp":         time.Now().UTC().Format(time.RFC3339),
		"extra": map[string]any{
			"items": []map[string]any{{"name": "Coal", "quantity": 1, "price": 50}},
		},
	}
}

func TestPostEvent(t *testing.T) {
	Convey("Given the events endpoint", t, func() {
		deps := newMockDeps()
		mux := newTestServer(deps)

		Convey("a valid event is accepted and enqueued", func() {
			rec := postJSON(mux, "/events", lootBody("evt-1"))
			So(rec.Code, ShouldEqual, http.StatusAccepted)
			So(rec.Body.String(), ShouldContainSubstring, `"accepted"`)
			So(deps.enqueued, ShouldHaveLength, 1)
			So(deps.enqueued[0].Player, ShouldEqual, "Zezima")
		})

		Convey("a redelivery of the same event is acknowledged as duplicate", func() {
			So(postJSON(mux, "/events", lootBody("evt-1")).Code, ShouldEqual, http.StatusAccepted)
			rec := postJSON(mux, "/events", lootBody("evt-1"))
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Body.String(), ShouldContainSubstring, `"duplicate":true`)
			So(deps.enqueued, ShouldHaveLength, 1)
		})

		Convey("missing fields are rejected", func() {
			body := lootBody("evt-2")
			delete(body, "player_identifier")
			So(postJSON(mux, "/events", body).Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("malformed JSON is rejected", func() {
			req := httptest.NewRequest(http.MethodPost, "/events", bytes.NewReader([]byte("{")))
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("backpressure rolls back the idempotency mark", func() {
			deps.enqueueOK = false
			So(postJSON(mux, "/events", lootBody("evt-3")).Code, ShouldEqual, http.StatusTooManyRequests)

			// Once the queue drains, the client retry must go through
			// instead of being swallowed as a duplicate.
			deps.enqueueOK = true
			So(postJSON(mux, "/events", lootBody("evt-3")).Code, ShouldEqual, http.StatusAccepted)
		})

		Convey("GET is not routed", func() {
			req := httptest.NewRequest(http.MethodGet, "/events", nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)
			So(rec.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestUseEffect(t *testing.T) {
	Convey("Given the effect activation endpoint", t, func() {
		deps := newMockDeps()
		mux := newTestServer(deps)

		Convey("the request is forwarded and the outcome returned", func() {
			deps.outcome = types.ActivationOutcome{Success: false, Action: "blocked", Reason: "blocked by shield"}
			rec := postJSON(mux, "/effects/use", map[string]any{
				"earned_effect_id": "fx-1",
				"team_id":          "team-1",
				"target_team_id":   "team-2",
				"swap_a":           map[string]any{"column": "A", "row": 1},
				"swap_b":           map[string]any{"column": "C", "row": 3},
			})
			So(rec.Code, ShouldEqual, http.StatusOK)

			var out types.ActivationOutcome
			So(json.Unmarshal(rec.Body.Bytes(), &out), ShouldBeNil)
			So(out.Action, ShouldEqual, "blocked")
			So(deps.lastRequest.EarnedEffectID, ShouldEqual, "fx-1")
			So(deps.lastRequest.SwapA.Column, ShouldEqual, "A")
			So(deps.lastRequest.SwapB.Row, ShouldEqual, 3)
		})

		Convey("missing identifiers are rejected", func() {
			rec := postJSON(mux, "/effects/use", map[string]any{"team_id": "team-1"})
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("storage failures surface as internal errors", func() {
			deps.outcomeErr = fmt.Errorf("disk on fire")
			rec := postJSON(mux, "/effects/use", map[string]any{
				"earned_effect_id": "fx-1",
				"team_id":          "team-1",
			})
			So(rec.Code, ShouldEqual, http.StatusInternalServerError)
		})
	})
}

func TestTeamReads(t *testing.T) {
	Convey("Given the team read endpoints", t, func() {
		deps := newMockDeps()
		deps.scores["team-1"] = types.TeamScore{TeamID: "team-1", Name: "The Gnomes", Score: 120}
		deps.views["team-1"] = []types.EffectView{{ID: "fx-1", Name: "Shield", Status: "available", RemainingUses: 1}}
		mux := newTestServer(deps)

		get := func(path string) *httptest.ResponseRecorder {
			req := httptest.NewRequest(http.MethodGet, path, nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)
			return rec
		}

		Convey("score returns the stored summary", func() {
			rec := get("/teams/team-1/score")
			So(rec.Code, ShouldEqual, http.StatusOK)
			var score types.TeamScore
			So(json.Unmarshal(rec.Body.Bytes(), &score), ShouldBeNil)
			So(score.Score, ShouldEqual, 120)
			So(score.Name, ShouldEqual, "The Gnomes")
		})

		Convey("unknown teams are 404", func() {
			So(get("/teams/ghost/score").Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("effects lists earned effects", func() {
			rec := get("/teams/team-1/effects")
			So(rec.Code, ShouldEqual, http.StatusOK)
			var views []types.EffectView
			So(json.Unmarshal(rec.Body.Bytes(), &views), ShouldBeNil)
			So(views, ShouldHaveLength, 1)
			So(views[0].Name, ShouldEqual, "Shield")
		})

		Convey("unknown resources are 404", func() {
			So(get("/teams/team-1/roster").Code, ShouldEqual, http.StatusNotFound)
			So(get("/teams/").Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestStats(t *testing.T) {
	Convey("Stats returns the provider snapshot", t, func() {
		mux := newTestServer(newMockDeps())
		req := httptest.NewRequest(http.MethodGet, "/stats", nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		So(rec.Code, ShouldEqual, http.StatusOK)
		So(rec.Body.String(), ShouldContainSubstring, "queue_size")
	})
}
