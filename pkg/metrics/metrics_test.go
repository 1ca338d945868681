package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/model"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// prometheus/common >= v0.64 defaults to UTF-8 metric name validation;
	// the older version pinned here for Go 1.21 defaults to legacy, which
	// rejects the hyphenated names these tests use.
	model.NameValidationScheme = model.UTF8Validation
}

func TestMetricsOptions(t *testing.T) {
	Convey("Given metrics options", t, func() {
		Convey("When creating options", func() {
			opts := []Option{
				WithNamespace("test-namespace"),
				WithSubsystem("test-subsystem"),
				WithMetricPrefix("test-prefix"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithMetricsEnabled(true),
				WithRefreshInterval(5 * time.Second),
				WithCustomLabels(map[string]string{"env": "test"}),
			}

			Convey("Then they should be valid functions", func() {
				for _, opt := range opts {
					So(opt, ShouldNotBeNil)
				}
			})
		})
	})
}

func TestManagerCreation(t *testing.T) {
	Convey("Given manager creation", t, func() {
		Convey("When creating with a fresh registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then it should be created successfully", func() {
				So(manager, ShouldNotBeNil)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test-namespace"),
				WithSubsystem("test-subsystem"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then it should be created successfully", func() {
				So(manager, ShouldNotBeNil)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics helpers", t, func() {
		Convey("When recording pipeline metrics", func() {
			So(func() {
				RecordEventProcessed()
				RecordEventDuplicate()
				RecordEventUnsupported()
				RecordNormalizeError()
			}, ShouldNotPanic)
		})

		Convey("When recording queue and worker metrics", func() {
			So(func() {
				UpdateQueueSize(10)
				UpdateQueueCapacity(100)
				UpdateQueueUtilization(0.1)
				RecordQueueEnqueue()
				RecordQueueDequeue()
				RecordQueueEnqueueError()
				UpdateWorkerCount(4)
				RecordWorkerProcessingLatency(12.5)
				RecordWorkerError()
			}, ShouldNotPanic)
		})

		Convey("When recording progress and effect metrics", func() {
			So(func() {
				RecordProgressUpdate()
				RecordTileCompleted()
				RecordTiersCompleted(2)
				RecordPointsAwarded(30)
				RecordVersionConflict()
				RecordSkillLookupFailure()
				RecordLineCompleted()
				RecordEffectGranted()
				RecordEffectActivated()
				RecordEffectBlocked()
				RecordEffectReflected()
				RecordEffectsExpired(3)
			}, ShouldNotPanic)
		})

		Convey("When recording HTTP metrics", func() {
			So(func() {
				RecordHTTPRequest("/events", "POST", "202")
				RecordHTTPRequestDuration("/events", "POST", "202", 10.0)
				RecordErrorByComponent("queue", "full")
			}, ShouldNotPanic)
		})

		Convey("When reading the registry", func() {
			So(GetRegistry(), ShouldNotBeNil)
		})
	})
}
