package training_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/jobfit/internal/domain/forest"
	"github.com/okian/jobfit/internal/domain/model"
	"github.com/okian/jobfit/internal/domain/normalize"
	"github.com/okian/jobfit/internal/domain/training"
	"github.com/okian/jobfit/internal/domain/training/trainingtest"
	. "github.com/smartystreets/goconvey/convey"
)

func TestTrainer_Fit(t *testing.T) {
	Convey("Given a trainer and a separable dataset", t, func() {
		at := time.Date(2025, time.March, 4, 5, 6, 7, 0, time.UTC)
		tr := training.New(
			training.WithClock(func() time.Time { return at }),
			training.WithForestOptions(forest.WithTrees(15)),
		)
		rows := trainingtest.Rows(12)

		set, err := tr.Fit(context.Background(), rows)

		Convey("Then the bundle is complete and consistent", func() {
			So(err, ShouldBeNil)
			So(set.Validate(), ShouldBeNil)
			So(set.Labels.Classes, ShouldResemble, trainingtest.Roles())
			So(set.Manifest.Rows, ShouldEqual, len(rows))
			So(set.Manifest.Trees, ShouldEqual, 15)
			So(set.Manifest.TrainedAt, ShouldEqual, at)
			So(set.Manifest.Version, ShouldStartWith, "v20250304T050607Z-")
			So(set.Manifest.Features, ShouldEqual, len(set.Schema))
		})

		Convey("Then the schema leads with numeric columns, then skills, certifications and categories", func() {
			So(set.Schema[0], ShouldEqual, "year_of_completion")
			So(set.Schema[1], ShouldEqual, "cgpa")
			So(set.Schema[2], ShouldStartWith, "skill_")
			So(set.Schema, ShouldContain, "cert_aws developer")
			So(set.Schema, ShouldContain, "degree_B.Tech")
			So(set.Schema[len(set.Schema)-1], ShouldStartWith, "college_")
		})

		Convey("Then the classifier separates the roles", func() {
			n := normalize.New()
			p := n.Normalize(model.CandidateProfile{Degree: "btech", Specialization: "Computer Science", College: "IIT Bombay"})
			x, err := set.Schema.Vectorize(&p, []string{"python", "django", "sql"}, nil, set.Encoders())
			So(err, ShouldBeNil)

			proba, err := set.Classifier.PredictProba(x)
			So(err, ShouldBeNil)
			best := 0
			for i := range proba {
				if proba[i] > proba[best] {
					best = i
				}
			}
			So(set.Labels.Classes[best], ShouldEqual, "Backend Developer")
		})
	})

	Convey("Given a dataset with a single role", t, func() {
		rows := trainingtest.Rows(3)[:1]
		_, err := training.New().Fit(context.Background(), rows)
		So(errors.Is(err, training.ErrTooFewClasses), ShouldBeTrue)
	})

	Convey("Given no rows", t, func() {
		_, err := training.New().Fit(context.Background(), nil)
		So(errors.Is(err, training.ErrNoRows), ShouldBeTrue)
	})

	Convey("Given a cancelled context", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := training.New().Fit(ctx, trainingtest.Rows(4))
		So(errors.Is(err, context.Canceled), ShouldBeTrue)
	})
}
