package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	dedupe "github.com/clanhall/bingo/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	Convey("Given a new InMemoryDeduper", t, func() {
		Convey("When recording a new id", func() {
			d := dedupe.NewInMemoryDeduper()
			seen := d.SeenAndRecord(context.Background(), "evt-1")

			Convey("Then it is newly recorded", func() {
				So(seen, ShouldBeFalse)
				So(d.Size(), ShouldEqual, 1)
			})

			Convey("And recording it again reports a duplicate", func() {
				So(d.SeenAndRecord(context.Background(), "evt-1"), ShouldBeTrue)
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When unrecording an id", func() {
			d := dedupe.NewInMemoryDeduper()
			d.SeenAndRecord(context.Background(), "evt-1")
			d.Unrecord(context.Background(), "evt-1")

			Convey("Then the id can be recorded again", func() {
				So(d.Size(), ShouldEqual, 0)
				So(d.SeenAndRecord(context.Background(), "evt-1"), ShouldBeFalse)
			})

			Convey("And unrecording an unknown id is a no-op", func() {
				d.Unrecord(context.Background(), "missing")
				So(d.Size(), ShouldBeGreaterThanOrEqualTo, 0)
			})
		})

		Convey("When the bound is exceeded", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(3))
			for i := 0; i < 5; i++ {
				d.SeenAndRecord(context.Background(), fmt.Sprintf("evt-%d", i))
			}

			Convey("Then old ids are evicted and size stays bounded", func() {
				So(d.Size(), ShouldEqual, 3)
				// The oldest ids fell out, so they read as unseen again.
				So(d.SeenAndRecord(context.Background(), "evt-0"), ShouldBeFalse)
				// The newest survived.
				So(d.SeenAndRecord(context.Background(), "evt-4"), ShouldBeTrue)
			})
		})

		Convey("When unbounded", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0))
			for i := 0; i < 1000; i++ {
				d.SeenAndRecord(context.Background(), fmt.Sprintf("evt-%d", i))
			}

			Convey("Then nothing is evicted", func() {
				So(d.Size(), ShouldEqual, 1000)
				So(d.SeenAndRecord(context.Background(), "evt-0"), ShouldBeTrue)
			})
		})

		Convey("When hammered concurrently with the same id", func() {
			d := dedupe.NewInMemoryDeduper()
			const workers = 32
			var wg sync.WaitGroup
			fresh := make(chan bool, workers)
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if !d.SeenAndRecord(context.Background(), "contended") {
						fresh <- true
					}
				}()
			}
			wg.Wait()
			close(fresh)

			Convey("Then exactly one caller records it", func() {
				count := 0
				for range fresh {
					count++
				}
				So(count, ShouldEqual, 1)
				So(d.Size(), ShouldEqual, 1)
			})
		})
	})
}
