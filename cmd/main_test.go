package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/okian/jobfit/internal/config"
	"github.com/okian/jobfit/internal/domain/model"
	"github.com/okian/jobfit/internal/domain/training/trainingtest"
	"github.com/okian/jobfit/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.New()
	cfg.ArtifactDir = t.TempDir()
	cfg.ForestTrees = 10
	return cfg
}

func TestMainFunction(t *testing.T) {
	convey.Convey("Given the main application wiring", t, func() {
		ctx := context.Background()
		cfg := testConfig(t)

		svc, err := newService(ctx, cfg, logger.Nop())
		convey.So(err, convey.ShouldBeNil)
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer svc.Stop()

		mux, err := newMux(ctx, cfg, svc)
		convey.So(err, convey.ShouldBeNil)
		srv := httptest.NewServer(mux)
		defer srv.Close()

		convey.Convey("When predicting before any model exists", func() {
			resp, err := http.Post(srv.URL+"/predict", "application/json", strings.NewReader(`{"skills":["Python"]}`))
			convey.So(err, convey.ShouldBeNil)
			defer resp.Body.Close()

			convey.Convey("Then the service is unavailable", func() {
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusServiceUnavailable)
			})
		})

		convey.Convey("When a model is trained through the API", func() {
			resp, err := http.Post(srv.URL+"/retrain?wait=true", "text/csv", strings.NewReader(trainingtest.CSV(4)))
			convey.So(err, convey.ShouldBeNil)
			resp.Body.Close()
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)

			convey.Convey("Then predictions are ranked by the new model", func() {
				body := `{"degree":"B.Tech","specialization":"Computer Science","cgpa":8.2,"year_of_completion":2022,"skills":["Python","Django","SQL"]}`
				resp, err := http.Post(srv.URL+"/predict", "application/json", strings.NewReader(body))
				convey.So(err, convey.ShouldBeNil)
				defer resp.Body.Close()
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)

				var result model.PredictionResult
				convey.So(json.NewDecoder(resp.Body).Decode(&result), convey.ShouldBeNil)
				convey.So(result.ModelVersion, convey.ShouldNotBeEmpty)
				convey.So(len(result.Predictions), convey.ShouldEqual, cfg.TopK)
			})
		})

		convey.Convey("When the documentation routes are requested", func() {
			resp, err := http.Get(srv.URL + "/openapi.yaml")
			convey.So(err, convey.ShouldBeNil)
			resp.Body.Close()
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
		})

		convey.Convey("When retraining from an object without MinIO configured", func() {
			resp, err := http.Post(srv.URL+"/retrain", "application/json", strings.NewReader(`{"object":"train.csv"}`))
			convey.So(err, convey.ShouldBeNil)
			resp.Body.Close()
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusServiceUnavailable)
		})
	})
}

func TestNewServiceErrors(t *testing.T) {
	convey.Convey("Given a skills file that does not exist", t, func() {
		cfg := testConfig(t)
		cfg.SkillsFile = filepath.Join(t.TempDir(), "missing.yaml")

		_, err := newService(context.Background(), cfg, logger.Nop())
		convey.So(err, convey.ShouldNotBeNil)
		convey.So(err.Error(), convey.ShouldContainSubstring, "load skills table")
	})

	convey.Convey("Given an artifact dir that is a file", t, func() {
		cfg := testConfig(t)
		path := filepath.Join(t.TempDir(), "file")
		convey.So(os.WriteFile(path, []byte("x"), 0o600), convey.ShouldBeNil)
		cfg.ArtifactDir = path

		_, err := newService(context.Background(), cfg, logger.Nop())
		convey.So(err, convey.ShouldNotBeNil)
	})
}

func TestObjectSource(t *testing.T) {
	convey.Convey("Given a MinIO configuration", t, func() {
		cfg := testConfig(t)
		cfg.MinIOEndpoint = "localhost:9000"
		cfg.MinIOBucket = "datasets"

		objects, err := objectSource(cfg)
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("Then keys resolve inside the bucket", func() {
			src, err := objects("/train/2025.csv")
			convey.So(err, convey.ShouldBeNil)
			convey.So(src.Describe(), convey.ShouldEqual, "minio:datasets/train/2025.csv")
		})

		convey.Convey("Then empty keys are rejected", func() {
			_, err := objects("  ")
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

func TestMainApplicationComponents(t *testing.T) {
	convey.Convey("Given main application components", t, func() {
		ctx := context.Background()
		svc, err := newService(ctx, testConfig(t), logger.Nop())
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("When testing system metrics updater", func() {
			ctx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
			defer cancel()

			convey.So(func() {
				startSystemMetricsUpdater(ctx)
			}, convey.ShouldNotPanic)
		})

		convey.Convey("When testing service metrics updater", func() {
			ctx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
			defer cancel()

			convey.So(func() {
				startServiceMetricsUpdater(ctx, svc)
			}, convey.ShouldNotPanic)
		})

		convey.Convey("When updating metrics directly", func() {
			convey.So(updateSystemMetrics, convey.ShouldNotPanic)
			convey.So(func() { updateServiceMetrics(svc) }, convey.ShouldNotPanic)
		})
	})
}

func TestRunStopsOnCancel(t *testing.T) {
	convey.Convey("Given a running server", t, func() {
		cfg := testConfig(t)
		cfg.Addr = "127.0.0.1:0"
		ctx, cancel := context.WithCancel(context.Background())

		done := make(chan error, 1)
		go func() { done <- run(ctx, cfg, logger.Nop()) }()

		convey.Convey("When the context is cancelled", func() {
			time.Sleep(50 * time.Millisecond)
			cancel()

			convey.Convey("Then run returns cleanly", func() {
				select {
				case err := <-done:
					convey.So(err, convey.ShouldBeNil)
				case <-time.After(10 * time.Second):
					t.Fatal("run did not return")
				}
			})
		})
	})
}
