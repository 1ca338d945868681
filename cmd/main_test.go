package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/clanhall/bingo/internal/adapters/http/api"
	app "github.com/clanhall/bingo/internal/app"
	"github.com/clanhall/bingo/internal/config"
	"github.com/clanhall/bingo/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func TestConfigurationLoading(t *testing.T) {
	convey.Convey("Given environment overrides", t, func() {
		_ = os.Setenv("BINGO_ADDR", ":8080")
		_ = os.Setenv("BINGO_QUEUE_SIZE", "1000")
		_ = os.Setenv("BINGO_WORKER_COUNT", "4")
		defer func() {
			_ = os.Unsetenv("BINGO_ADDR")
			_ = os.Unsetenv("BINGO_QUEUE_SIZE")
			_ = os.Unsetenv("BINGO_WORKER_COUNT")
		}()

		convey.Convey("Then configuration should reflect them", func() {
			cfg, err := config.Load(context.Background())
			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
			convey.So(cfg.EventQueueSize, convey.ShouldEqual, 1000)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, 4)
		})
	})

	convey.Convey("Defaults stand without overrides", t, func() {
		cfg := config.New()
		convey.So(cfg.Addr, convey.ShouldNotBeEmpty)
		convey.So(cfg.EventQueueSize, convey.ShouldBeGreaterThan, 0)
		convey.So(cfg.ProgressRetryLimit, convey.ShouldBeGreaterThan, 0)
	})
}

func TestApplicationWiring(t *testing.T) {
	convey.Convey("Given a service wired the way main wires it", t, func() {
		svc := app.New(
			app.WithDBPath(t.TempDir()+"/bingo.db"),
			app.WithWorkerCount(2),
			app.WithQueueSize(100),
			app.WithSweepInterval(time.Minute),
		)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer svc.Stop()

		mux := http.NewServeMux()
		api.NewServer(svc, svc).Register(ctx, mux)

		convey.Convey("the health endpoint serves metrics", func() {
			req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)
			convey.So(rec.Code, convey.ShouldEqual, http.StatusOK)
		})

		convey.Convey("the stats endpoint reports service state", func() {
			req := httptest.NewRequest(http.MethodGet, "/stats", nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)
			convey.So(rec.Code, convey.ShouldEqual, http.StatusOK)
			convey.So(rec.Body.String(), convey.ShouldContainSubstring, "started")
		})
	})
}
