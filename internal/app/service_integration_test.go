package service_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/clanhall/bingo/internal/adapters/notify"
	"github.com/clanhall/bingo/internal/adapters/repository"
	service "github.com/clanhall/bingo/internal/app"
	"github.com/clanhall/bingo/internal/domain/event"
	"github.com/clanhall/bingo/internal/domain/model"
	"github.com/clanhall/bingo/internal/domain/requirement"
	"github.com/clanhall/bingo/internal/effects"
)

// seedCompetition writes two teams with boards and a registered player,
// then closes its store handle so the service owns the database.
func seedCompetition(t *testing.T, dbPath string) (drainEffectID string) {
	t.Helper()
	ctx := context.Background()

	store, err := repository.Open(dbPath)
	So(err, ShouldBeNil)
	defer func() { So(store.Close(), ShouldBeNil) }()

	start := time.Now().Add(-time.Hour)
	So(store.CreateTeam(ctx, model.Team{ID: "team-1", Name: "Gnomes", CompetitionStart: start}), ShouldBeNil)
	So(store.CreateTeam(ctx, model.Team{ID: "team-2", Name: "Yaks", CompetitionStart: start}), ShouldBeNil)
	So(store.IncrementTeamScore(ctx, "team-2", 100), ShouldBeNil)

	So(store.CreateBoard(ctx, model.Board{ID: "board-1", TeamID: "team-1", Columns: 1, Rows: 1}), ShouldBeNil)
	So(store.CreateBoard(ctx, model.Board{ID: "board-2", TeamID: "team-2", Columns: 1, Rows: 1}), ShouldBeNil)

	So(store.CreateTile(ctx, model.Tile{
		ID: "tile-1", BoardID: "board-1",
		Position: model.Position{Column: "A", Row: 1},
		Points:   10,
		Requirements: requirement.TileRequirements{
			Match: requirement.MatchAny,
			Requirements: []requirement.Requirement{
				requirement.ItemDrop{Items: []string{"Dragon claws"}},
			},
		},
	}), ShouldBeNil)

	So(store.AddMember(ctx, model.Membership{
		AccountID: "acct-1", Player: "Zezima", TeamID: "team-1", BoardID: "board-1",
	}), ShouldBeNil)

	// A targeted score drain earned out of band, activated through the
	// service later.
	cfg := model.EffectConfig{
		ID: "fx-drain", Name: "Score Drain",
		Trigger:  model.TriggerManual,
		Action:   model.PointBonus{Points: -30},
		Uses:     1,
		Targeted: true,
	}
	So(store.AddLineEffect(ctx, "board-1", cfg), ShouldBeNil)

	fx := effects.New(store, notify.NewLogSink())
	earned, err := fx.Grant(ctx, "team-1", cfg)
	So(err, ShouldBeNil)
	return earned.ID
}

func lootEvent(eventID, player, item string) event.RawEvent {
	extra, _ := json.Marshal(map[string]any{
		"items": []map[string]any{{"name": item, "quantity": 1, "price_each": 1}},
	})
	return event.RawEvent{
		EventID:   eventID,
		Type:      "LOOT",
		Player:    player,
		Timestamp: time.Now().UTC(),
		Extra:     extra,
	}
}

func waitForScore(ctx context.Context, svc *service.Service, teamID string, want int64) error {
	deadline := time.After(5 * time.Second)
	for {
		score, err := svc.TeamScore(ctx, teamID)
		if err == nil && score.Score == want {
			return nil
		}
		select {
		case <-deadline:
			return fmt.Errorf("team %s never reached score %d", teamID, want)
		case <-time.After(20 * time.Millisecond):
		}
	}
}

func TestServicePipeline(t *testing.T) {
	Convey("Given a seeded competition behind a running service", t, func() {
		dbPath := t.TempDir() + "/bingo.db"
		earnedID := seedCompetition(t, dbPath)

		svc := service.New(
			service.WithDBPath(dbPath),
			service.WithWorkerCount(2),
			service.WithQueueSize(1000),
		)
		ctx := context.Background()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("a qualifying drop completes the tile and awards points", func() {
			So(svc.Enqueue(ctx, lootEvent("evt-1", "Zezima", "Dragon claws")), ShouldBeTrue)
			So(waitForScore(ctx, svc, "team-1", 10), ShouldBeNil)

			Convey("and replaying the completed tile awards nothing more", func() {
				So(svc.Enqueue(ctx, lootEvent("evt-2", "Zezima", "Dragon claws")), ShouldBeTrue)
				time.Sleep(200 * time.Millisecond)
				score, err := svc.TeamScore(ctx, "team-1")
				So(err, ShouldBeNil)
				So(score.Score, ShouldEqual, 10)
			})
		})

		Convey("events from unregistered players are dropped as accepted", func() {
			So(svc.Enqueue(ctx, lootEvent("evt-3", "Nobody", "Dragon claws")), ShouldBeTrue)
		})

		Convey("unsupported event types are dropped as accepted", func() {
			raw := event.RawEvent{Type: "QUEST_COMPLETE", Player: "Zezima", Timestamp: time.Now()}
			So(svc.Enqueue(ctx, raw), ShouldBeTrue)
		})

		Convey("the earned drain shows up and activates against the rival", func() {
			views, err := svc.TeamEffects(ctx, "team-1")
			So(err, ShouldBeNil)
			So(views, ShouldHaveLength, 1)
			So(views[0].Name, ShouldEqual, "Score Drain")

			outcome, err := svc.UseEffect(ctx, effects.ActivationRequest{
				EarnedEffectID: earnedID,
				TeamID:         "team-1",
				TargetTeamID:   "team-2",
			})
			So(err, ShouldBeNil)
			So(outcome.Success, ShouldBeTrue)

			score, err := svc.TeamScore(ctx, "team-2")
			So(err, ShouldBeNil)
			So(score.Score, ShouldEqual, 70)

			Convey("and the spent charge refuses a second activation", func() {
				outcome, err := svc.UseEffect(ctx, effects.ActivationRequest{
					EarnedEffectID: earnedID,
					TeamID:         "team-1",
					TargetTeamID:   "team-2",
				})
				So(err, ShouldBeNil)
				So(outcome.Success, ShouldBeFalse)
			})
		})

		Convey("unknown teams surface not-found from reads", func() {
			_, err := svc.TeamScore(ctx, "ghost")
			So(err, ShouldNotBeNil)
		})
	})
}

func TestServiceOrderingUnderLoad(t *testing.T) {
	Convey("Given a tile that needs accumulated drops", t, func() {
		dbPath := t.TempDir() + "/bingo.db"
		ctx := context.Background()

		store, err := repository.Open(dbPath)
		So(err, ShouldBeNil)
		start := time.Now().Add(-time.Hour)
		So(store.CreateTeam(ctx, model.Team{ID: "team-1", Name: "Gnomes", CompetitionStart: start}), ShouldBeNil)
		So(store.CreateBoard(ctx, model.Board{ID: "board-1", TeamID: "team-1", Columns: 1, Rows: 1}), ShouldBeNil)
		So(store.CreateTile(ctx, model.Tile{
			ID: "tile-1", BoardID: "board-1",
			Position: model.Position{Column: "A", Row: 1},
			Points:   25,
			Requirements: requirement.TileRequirements{
				Match: requirement.MatchAny,
				Requirements: []requirement.Requirement{
					requirement.ItemDrop{Items: []string{"Zulrah scale"}, TotalQuantity: 20},
				},
			},
		}), ShouldBeNil)
		So(store.AddMember(ctx, model.Membership{AccountID: "acct-1", Player: "Zezima", TeamID: "team-1", BoardID: "board-1"}), ShouldBeNil)
		So(store.Close(), ShouldBeNil)

		svc := service.New(
			service.WithDBPath(dbPath),
			service.WithWorkerCount(4),
			service.WithQueueSize(1000),
		)
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("twenty single drops land on one shard and all count", func() {
			for i := 0; i < 20; i++ {
				So(svc.Enqueue(ctx, lootEvent(fmt.Sprintf("evt-%d", i), "Zezima", "Zulrah scale")), ShouldBeTrue)
			}
			So(waitForScore(ctx, svc, "team-1", 25), ShouldBeNil)
		})
	})
}
