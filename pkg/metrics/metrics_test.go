package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with a private registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then it should be created successfully", func() {
				So(manager, ShouldNotBeNil)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test_namespace"),
				WithSubsystem("test_subsystem"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithConstLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)
			manager.predictionsTotal.WithLabelValues(OutcomeOK).Inc()

			Convey("Then metric names carry the namespace and subsystem", func() {
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				found := false
				for _, f := range families {
					if strings.HasPrefix(f.GetName(), "test_namespace_test_subsystem_predictions_total") {
						found = true
					}
				}
				So(found, ShouldBeTrue)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording predictions", func() {
			before := testutil.ToFloat64(globalManager.predictionsTotal.WithLabelValues(OutcomeOK))
			RecordPrediction(OutcomeOK, 3*time.Millisecond)
			RecordPrediction(OutcomeOK, 5*time.Millisecond)
			RecordTopConfidence(87.5)

			Convey("Then the outcome counter increases", func() {
				after := testutil.ToFloat64(globalManager.predictionsTotal.WithLabelValues(OutcomeOK))
				So(after-before, ShouldEqual, 2)
			})
		})

		Convey("When recording artifact activity", func() {
			So(func() {
				RecordArtifactLoad(LoadHit, time.Millisecond)
				RecordArtifactLoad(LoadMiss, 10*time.Millisecond)
				RecordArtifactLoad(LoadError, time.Millisecond)
				RecordArtifactPublish()
				UpdateArtifactVersions(3)
			}, ShouldNotPanic)
		})

		Convey("When updating the active model", func() {
			UpdateActiveModel(12, 340, time.Unix(1_700_000_000, 0))

			Convey("Then gauges reflect the model shape", func() {
				So(testutil.ToFloat64(globalManager.activeModelClasses), ShouldEqual, 12)
				So(testutil.ToFloat64(globalManager.activeModelFeatures), ShouldEqual, 340)
				So(testutil.ToFloat64(globalManager.activeModelPublishedUnix), ShouldEqual, 1_700_000_000)
			})
		})

		Convey("When recording retraining runs", func() {
			before := testutil.ToFloat64(globalManager.retrainRuns.WithLabelValues(OutcomeSchemaError))
			RecordRetrain(OutcomeSchemaError, 20*time.Millisecond)
			UpdateRetrainDatasetRows(500)

			Convey("Then the outcome counter increases", func() {
				after := testutil.ToFloat64(globalManager.retrainRuns.WithLabelValues(OutcomeSchemaError))
				So(after-before, ShouldEqual, 1)
				So(testutil.ToFloat64(globalManager.retrainDatasetRows), ShouldEqual, 500)
			})
		})

		Convey("When recording queue, HTTP, error and system metrics", func() {
			So(func() {
				UpdateQueueSize(2)
				UpdateQueueCapacity(16)
				RecordQueueEnqueueError()
				RecordHTTPRequest("predict", "POST", "200")
				RecordHTTPRequestDuration("predict", "POST", "200", 4.2)
				RecordErrorByComponent("repository", "decode")
				RecordErrorByEndpoint("retrain", "POST", "client_error")
				UpdateSystemMemoryUsage(1024)
				UpdateSystemGoroutineCount(10)
				RecordSystemGCPauseTime(0.3)
			}, ShouldNotPanic)
		})

		Convey("When reading the registry", func() {
			So(GetRegistry(), ShouldNotBeNil)
		})
	})
}
