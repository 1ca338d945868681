package types_test

import (
	"testing"
	"time"

	types "github.com/clanhall/bingo/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestTeamScore(t *testing.T) {
	Convey("Given a TeamScore", t, func() {
		Convey("When populated", func() {
			s := types.TeamScore{TeamID: "team-1", Name: "Bandits", Score: 120}

			Convey("Then it carries the values", func() {
				So(s.TeamID, ShouldEqual, "team-1")
				So(s.Name, ShouldEqual, "Bandits")
				So(s.Score, ShouldEqual, 120)
			})
		})

		Convey("When zero-valued", func() {
			var s types.TeamScore

			Convey("Then all fields default", func() {
				So(s.TeamID, ShouldEqual, "")
				So(s.Score, ShouldEqual, 0)
			})
		})
	})
}

func TestEffectView(t *testing.T) {
	Convey("Given an EffectView", t, func() {
		expires := time.Now().Add(time.Hour)
		v := types.EffectView{
			ID:            "earned-1",
			EffectID:      "fx-shield",
			Name:          "Shield",
			Status:        "available",
			RemainingUses: 2,
			ExpiresAt:     &expires,
		}

		Convey("Then it carries the values", func() {
			So(v.Status, ShouldEqual, "available")
			So(v.RemainingUses, ShouldEqual, 2)
			So(v.ExpiresAt, ShouldNotBeNil)
		})
	})
}

func TestActivationOutcome(t *testing.T) {
	Convey("Given activation outcomes", t, func() {
		Convey("When an activation lands", func() {
			o := types.ActivationOutcome{Success: true, Action: "activated"}
			So(o.Success, ShouldBeTrue)
			So(o.Action, ShouldEqual, "activated")
		})

		Convey("When an activation fails validation", func() {
			o := types.ActivationOutcome{Success: false, Reason: "effect not available"}
			So(o.Success, ShouldBeFalse)
			So(o.Reason, ShouldNotBeEmpty)
		})
	})
}
