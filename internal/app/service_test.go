package service_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/okian/jobfit/internal/adapters/dataset"
	"github.com/okian/jobfit/internal/adapters/mq/queue"
	"github.com/okian/jobfit/internal/adapters/repository"
	service "github.com/okian/jobfit/internal/app"
	"github.com/okian/jobfit/internal/domain/forest"
	"github.com/okian/jobfit/internal/domain/model"
	"github.com/okian/jobfit/internal/domain/training"
	"github.com/okian/jobfit/internal/domain/training/trainingtest"
	"github.com/okian/jobfit/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func newService(t *testing.T, opts ...service.Option) *service.Service {
	t.Helper()
	store, err := repository.NewFSStore(context.Background(), t.TempDir(), repository.WithLogger(logger.Nop()))
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	base := []service.Option{
		service.WithLogger(logger.Nop()),
		service.WithTrainer(training.New(training.WithForestOptions(forest.WithTrees(15)))),
	}
	svc := service.New(store, append(base, opts...)...)
	t.Cleanup(func() {
		svc.Stop()
		_ = store.Close()
	})
	return svc
}

func csvSource(perRole int) dataset.BytesSource {
	return dataset.BytesSource{Name: "train.csv", Data: []byte(trainingtest.CSV(perRole))}
}

func backendProfile() model.CandidateProfile {
	return model.CandidateProfile{
		Degree:         "btech",
		Specialization: "Computer Science",
		University:     "IIT Bombay",
		CGPA:           "85",
		GraduationYear: "2023",
		Skills:         []string{"Python", "SQL"},
	}
}

type panickingSource struct{}

func (panickingSource) Open(context.Context) (io.ReadCloser, error) { panic("disk on fire") }
func (panickingSource) Describe() string { return "panic:test" }

func waitForJob(svc *service.Service, id string) model.JobInfo {
	deadline := time.Now().Add(30 * time.Second)
	for {
		info, err := svc.Job(id)
		if err != nil || info.Terminal() || time.Now().After(deadline) {
			return info
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestService_Predict(t *testing.T) {
	Convey("Given a service without a trained model", t, func() {
		ctx := context.Background()
		svc := newService(t)

		Convey("When predicting", func() {
			_, err := svc.Predict(ctx, backendProfile(), 0)

			Convey("Then the artifact is reported unavailable", func() {
				So(errors.Is(err, repository.ErrArtifactUnavailable), ShouldBeTrue)
				So(svc.GetStats()["predictionErrors"], ShouldEqual, int64(1))
			})
		})

		Convey("When a model has been trained", func() {
			manifest, err := svc.Retrain(ctx, csvSource(6))
			So(err, ShouldBeNil)

			result, err := svc.Predict(ctx, backendProfile(), 0)
			So(err, ShouldBeNil)

			Convey("Then at most three roles are ranked by confidence", func() {
				So(result.ModelVersion, ShouldEqual, manifest.Version)
				So(len(result.Predictions), ShouldEqual, 3)
				for i, p := range result.Predictions {
					So(p.Confidence, ShouldBeBetweenOrEqual, 0.0, 100.0)
					if i > 0 {
						So(p.Confidence, ShouldBeLessThanOrEqualTo, result.Predictions[i-1].Confidence)
					}
				}
			})

			Convey("Then Backend Developer reports its missing skills", func() {
				var found bool
				for _, p := range result.Predictions {
					if p.JobRole == "Backend Developer" {
						found = true
						So(p.MissingSkills, ShouldResemble, []string{"Django", "REST APIs"})
					}
				}
				So(found, ShouldBeTrue)
			})

			Convey("Then repeating the request yields the same answer", func() {
				again, err := svc.Predict(ctx, backendProfile(), 0)
				So(err, ShouldBeNil)
				So(again, ShouldResemble, result)
			})

			Convey("Then a complete skill match scores exactly 100", func() {
				p := backendProfile()
				p.Skills = []string{"python", "Django", "REST APIs", "SQL", "Docker"}
				got, err := svc.Predict(ctx, p, 1)
				So(err, ShouldBeNil)
				So(len(got.Predictions), ShouldEqual, 1)
				So(got.Predictions[0].JobRole, ShouldEqual, "Backend Developer")
				So(got.Predictions[0].Confidence, ShouldEqual, 100.0)
				So(got.Predictions[0].MissingSkills, ShouldBeEmpty)
			})

			Convey("Then an empty profile still gets a ranking and names its fallbacks", func() {
				got, err := svc.Predict(ctx, model.CandidateProfile{CGPA: "not a number"}, 0)
				So(err, ShouldBeNil)
				So(len(got.Predictions), ShouldBeGreaterThan, 0)
				So(got.Fallbacks, ShouldContain, "cgpa")
				So(got.Fallbacks, ShouldContain, "degree")
			})
		})
	})
}

func TestService_Retrain(t *testing.T) {
	Convey("Given a service with an active model", t, func() {
		ctx := context.Background()
		svc := newService(t)
		first, err := svc.Retrain(ctx, csvSource(4))
		So(err, ShouldBeNil)

		Convey("When the dataset lacks a required column", func() {
			bad := strings.Replace(trainingtest.CSV(4), "cgpa,", "grade,", 1)
			_, err := svc.Retrain(ctx, dataset.BytesSource{Name: "bad.csv", Data: []byte(bad)})

			Convey("Then the column is named and the active model is untouched", func() {
				var sve *dataset.SchemaValidationError
				So(errors.As(err, &sve), ShouldBeTrue)
				So(sve.Column, ShouldEqual, "cgpa")

				result, err := svc.Predict(ctx, backendProfile(), 0)
				So(err, ShouldBeNil)
				So(result.ModelVersion, ShouldEqual, first.Version)
				So(svc.GetStats()["retrainsFailed"], ShouldEqual, int64(1))
			})
		})

		Convey("When retraining runs past its deadline", func() {
			slow := newService(t, service.WithRetrainTimeout(time.Nanosecond))
			_, err := slow.Retrain(ctx, csvSource(4))
			So(errors.Is(err, context.DeadlineExceeded), ShouldBeTrue)

			status, err := slow.ModelStatus(ctx)
			So(err, ShouldBeNil)
			So(status.Active, ShouldBeNil)
		})

		Convey("When retraining on a dataset with a wider vocabulary", func() {
			rows := trainingtest.CSV(4) +
				`mtech,Data Science,Data Science,NIT Trichy,2020,8.1,"Python, SQL, Rust",,Backend Developer` + "\n"
			second, err := svc.Retrain(ctx, dataset.BytesSource{Name: "wide.csv", Data: []byte(rows)})
			So(err, ShouldBeNil)

			Convey("Then the next prediction uses the new schema", func() {
				So(second.Features, ShouldBeGreaterThan, first.Features)
				result, err := svc.Predict(ctx, backendProfile(), 0)
				So(err, ShouldBeNil)
				So(result.ModelVersion, ShouldEqual, second.Version)
			})

			Convey("Then rolling back restores the previous version", func() {
				So(svc.Rollback(ctx, first.Version), ShouldBeNil)
				result, err := svc.Predict(ctx, backendProfile(), 0)
				So(err, ShouldBeNil)
				So(result.ModelVersion, ShouldEqual, first.Version)

				status, err := svc.ModelStatus(ctx)
				So(err, ShouldBeNil)
				So(status.Active.Version, ShouldEqual, first.Version)
				So(len(status.Versions), ShouldEqual, 2)
			})
		})
	})
}

func TestService_RetrainJobs(t *testing.T) {
	Convey("Given a stopped service", t, func() {
		svc := newService(t)
		_, err := svc.SubmitRetrain(context.Background(), csvSource(2), "")
		So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
	})

	Convey("Given a started service", t, func() {
		ctx := context.Background()
		svc := newService(t, service.WithQueueSize(4))
		So(svc.Start(ctx), ShouldBeNil)
		So(svc.Start(ctx), ShouldBeNil)

		Convey("When a job is submitted", func() {
			info, err := svc.SubmitRetrain(ctx, csvSource(4), "")
			So(err, ShouldBeNil)
			So(info.ID, ShouldNotBeBlank)
			So(info.Source, ShouldStartWith, "upload:train.csv")

			done := waitForJob(svc, info.ID)

			Convey("Then it succeeds and its version becomes active", func() {
				So(done.Status, ShouldEqual, model.JobSucceeded)
				So(done.Version, ShouldNotBeBlank)

				result, err := svc.Predict(ctx, backendProfile(), 0)
				So(err, ShouldBeNil)
				So(result.ModelVersion, ShouldEqual, done.Version)
			})
		})

		Convey("When a job has a broken dataset", func() {
			bad := strings.Replace(trainingtest.CSV(2), "job_role", "role", 1)
			info, err := svc.SubmitRetrain(ctx, dataset.BytesSource{Name: "bad.csv", Data: []byte(bad)}, "")
			So(err, ShouldBeNil)

			done := waitForJob(svc, info.ID)
			So(done.Status, ShouldEqual, model.JobFailed)
			So(done.Column, ShouldEqual, "job_role")
			So(done.Error, ShouldNotBeBlank)
		})

		Convey("When the same idempotency key is submitted twice", func() {
			first, err := svc.SubmitRetrain(ctx, csvSource(4), "nightly-2025-01-01")
			So(err, ShouldBeNil)
			second, err := svc.SubmitRetrain(ctx, csvSource(4), "nightly-2025-01-01")
			So(err, ShouldBeNil)
			other, err := svc.SubmitRetrain(ctx, csvSource(4), "nightly-2025-01-02")
			So(err, ShouldBeNil)

			Convey("Then only one job is queued for the key", func() {
				So(second.ID, ShouldEqual, first.ID)
				So(other.ID, ShouldNotEqual, first.ID)
				So(svc.GetStats()["idempotencyKeys"], ShouldEqual, int64(2))

				So(waitForJob(svc, first.ID).Status, ShouldEqual, model.JobSucceeded)
				So(waitForJob(svc, other.ID).Status, ShouldEqual, model.JobSucceeded)
			})
		})

		Convey("When many callers submit the same key at once", func() {
			const callers = 16
			var (
				wg  sync.WaitGroup
				ids = make([]string, callers)
			)
			for i := 0; i < callers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					info, err := svc.SubmitRetrain(ctx, csvSource(4), "weekly")
					if err == nil {
						ids[i] = info.ID
					}
				}(i)
			}
			wg.Wait()

			Convey("Then they all share one job", func() {
				So(ids[0], ShouldNotBeBlank)
				for _, id := range ids {
					So(id, ShouldEqual, ids[0])
				}
				So(svc.GetStats()["jobsTracked"], ShouldEqual, 1)
				So(waitForJob(svc, ids[0]).Status, ShouldEqual, model.JobSucceeded)
			})
		})

		Convey("When the pipeline panics", func() {
			info, err := svc.SubmitRetrain(ctx, panickingSource{}, "")
			So(err, ShouldBeNil)
			done := waitForJob(svc, info.ID)

			Convey("Then the job fails instead of running forever", func() {
				So(done.Status, ShouldEqual, model.JobFailed)
				So(done.Error, ShouldContainSubstring, "retrain panicked")
				So(done.Error, ShouldContainSubstring, "disk on fire")
			})

			Convey("Then the next job still runs", func() {
				next, err := svc.SubmitRetrain(ctx, csvSource(4), "")
				So(err, ShouldBeNil)
				So(waitForJob(svc, next.ID).Status, ShouldEqual, model.JobSucceeded)
			})
		})

		Convey("When an unknown job is requested", func() {
			_, err := svc.Job("missing")
			So(errors.Is(err, service.ErrJobNotFound), ShouldBeTrue)
		})

		Convey("When more jobs arrive than the queue holds", func() {
			var full bool
			for i := 0; i < 20 && !full; i++ {
				_, err := svc.SubmitRetrain(ctx, csvSource(8), "")
				full = errors.Is(err, queue.ErrFull)
			}
			So(full, ShouldBeTrue)
		})
	})
}

func TestService_ConcurrentPredictionsDuringRetrain(t *testing.T) {
	Convey("Given predictions racing repeated retrains", t, func() {
		ctx := context.Background()
		svc := newService(t)
		first, err := svc.Retrain(ctx, csvSource(4))
		So(err, ShouldBeNil)

		published := map[string]bool{first.Version: true}
		stop := make(chan struct{})
		type outcome struct {
			version string
			err     error
		}
		results := make(chan outcome, 1024)
		done := make(chan struct{})

		go func() {
			defer close(done)
			for {
				select {
				case <-stop:
					return
				default:
				}
				r, err := svc.Predict(ctx, backendProfile(), 0)
				select {
				case results <- outcome{r.ModelVersion, err}:
				default:
				}
			}
		}()

		for i := 0; i < 3; i++ {
			m, err := svc.Retrain(ctx, csvSource(4+i))
			So(err, ShouldBeNil)
			published[m.Version] = true
		}
		close(stop)
		<-done
		close(results)

		Convey("Then every prediction used a complete published version", func() {
			n := 0
			for r := range results {
				So(r.err, ShouldBeNil)
				So(published[r.version], ShouldBeTrue)
				n++
			}
			So(n, ShouldBeGreaterThan, 0)
		})
	})
}
