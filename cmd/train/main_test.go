package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/jobfit/internal/adapters/repository"
	"github.com/okian/jobfit/internal/config"
	"github.com/okian/jobfit/internal/domain/artifact"
	"github.com/okian/jobfit/internal/domain/training/trainingtest"
	"github.com/okian/jobfit/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func TestRun(t *testing.T) {
	convey.Convey("Given a dataset file and an empty artifact dir", t, func() {
		ctx := context.Background()
		dir := t.TempDir()
		artifacts := filepath.Join(dir, "artifacts")
		path := filepath.Join(dir, "train.csv")
		convey.So(os.WriteFile(path, []byte(trainingtest.CSV(4)), 0o600), convey.ShouldBeNil)

		convey.Convey("When training from the file", func() {
			var out bytes.Buffer
			err := run(ctx, []string{"--dataset", path, "--artifacts", artifacts, "--trees", "5"}, &out, logger.Nop())

			convey.Convey("Then the manifest is printed and published", func() {
				convey.So(err, convey.ShouldBeNil)

				var manifest artifact.Manifest
				convey.So(json.Unmarshal(out.Bytes(), &manifest), convey.ShouldBeNil)
				convey.So(manifest.Trees, convey.ShouldEqual, 5)
				convey.So(manifest.Classes, convey.ShouldEqual, len(trainingtest.Roles()))

				store, err := repository.NewFSStore(ctx, artifacts)
				convey.So(err, convey.ShouldBeNil)
				defer store.Close()
				set, err := store.Load(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(set.Manifest.Version, convey.ShouldEqual, manifest.Version)
			})
		})

		convey.Convey("When the dataset is missing", func() {
			err := run(ctx, []string{"-d", filepath.Join(dir, "missing.csv"), "-a", artifacts}, &bytes.Buffer{}, logger.Nop())
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

func TestRunUsage(t *testing.T) {
	convey.Convey("Given invalid arguments", t, func() {
		ctx := context.Background()
		artifacts := t.TempDir()

		convey.Convey("Then no input is rejected", func() {
			err := run(ctx, []string{"--artifacts", artifacts}, &bytes.Buffer{}, logger.Nop())
			convey.So(errors.Is(err, errUsage), convey.ShouldBeTrue)
		})

		convey.Convey("Then both inputs are rejected", func() {
			err := run(ctx, []string{"--dataset", "a.csv", "--object", "b.csv", "--artifacts", artifacts}, &bytes.Buffer{}, logger.Nop())
			convey.So(errors.Is(err, errUsage), convey.ShouldBeTrue)
		})

		convey.Convey("Then an object without MinIO is rejected", func() {
			_, err := source(config.New(), "", "train.csv")
			convey.So(errors.Is(err, errUsage), convey.ShouldBeTrue)
		})

		convey.Convey("Then unknown flags are rejected", func() {
			err := run(ctx, []string{"--bogus"}, &bytes.Buffer{}, logger.Nop())
			convey.So(err, convey.ShouldNotBeNil)
		})
	})

	convey.Convey("Given a MinIO configuration", t, func() {
		cfg := config.New()
		cfg.MinIOEndpoint = "localhost:9000"
		cfg.MinIOBucket = "datasets"

		src, err := source(cfg, "", "train.csv")
		convey.So(err, convey.ShouldBeNil)
		convey.So(src.Describe(), convey.ShouldEqual, "minio:datasets/train.csv")
	})
}
