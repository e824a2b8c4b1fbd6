package dataset_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/okian/jobfit/internal/adapters/dataset"
	"github.com/okian/jobfit/internal/domain/training/trainingtest"
	"github.com/smartystreets/goconvey/convey"
)

const header = "degree,specialization,course,college,year_of_completion,cgpa,skills,certifications,job_role\n"

func TestRead(t *testing.T) {
	convey.Convey("Given a well-formed dataset", t, func() {
		data := header +
			`btech,Computer Science,CSE,IIT Bombay,2023,8.5,"Python, SQL, ,Django",AWS,Backend Developer` + "\n" +
			"\n" +
			`bcom,Finance,Finance,DU,2022.0,72,"Excel",,Data Analyst` + "\n"

		rows, err := dataset.Read(strings.NewReader(data))

		convey.Convey("Then every row is parsed", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(len(rows), convey.ShouldEqual, 2)

			first := rows[0]
			convey.So(first.JobRole, convey.ShouldEqual, "Backend Developer")
			convey.So(first.Profile.Skills, convey.ShouldResemble, []string{"Python", "SQL", "Django"})
			convey.So(first.Profile.Certifications, convey.ShouldResemble, []string{"AWS"})
			convey.So(first.Profile.CGPA.String(), convey.ShouldEqual, "8.5")
			convey.So(first.Profile.GraduationYear.String(), convey.ShouldEqual, "2023")
			convey.So(first.Profile.College, convey.ShouldEqual, "IIT Bombay")

			convey.So(rows[1].Profile.GraduationYear.String(), convey.ShouldEqual, "2022")
			convey.So(rows[1].Profile.Certifications, convey.ShouldResemble, []string{})
		})
	})

	convey.Convey("Given a dataset missing a column", t, func() {
		data := "degree,specialization,course,college,year_of_completion,skills,certifications,job_role\n"
		_, err := dataset.Read(strings.NewReader(data))

		convey.Convey("Then the error names the column", func() {
			var sve *dataset.SchemaValidationError
			convey.So(errors.As(err, &sve), convey.ShouldBeTrue)
			convey.So(sve.Column, convey.ShouldEqual, "cgpa")
			convey.So(errors.Is(err, dataset.ErrMissingColumn), convey.ShouldBeTrue)
		})
	})

	convey.Convey("Given a value that cannot be coerced", t, func() {
		data := header +
			"btech,CS,CS,IIT,2023,8.5,Python,,Backend Developer\n" +
			"btech,CS,CS,IIT,twenty,8.5,Python,,Backend Developer\n"
		_, err := dataset.Read(strings.NewReader(data))

		convey.Convey("Then the whole read fails naming column and row", func() {
			var sve *dataset.SchemaValidationError
			convey.So(errors.As(err, &sve), convey.ShouldBeTrue)
			convey.So(sve.Column, convey.ShouldEqual, "year_of_completion")
			convey.So(sve.Row, convey.ShouldEqual, 2)
			convey.So(sve.Value, convey.ShouldEqual, "twenty")
			convey.So(errors.Is(err, dataset.ErrInvalidValue), convey.ShouldBeTrue)
		})
	})

	convey.Convey("Given bad cgpa and role values", t, func() {
		_, err := dataset.Read(strings.NewReader(header + "btech,CS,CS,IIT,2023,85%,Python,,Dev\n"))
		convey.So(errors.Is(err, dataset.ErrInvalidValue), convey.ShouldBeTrue)

		_, err = dataset.Read(strings.NewReader(header + "btech,CS,CS,IIT,2023,8,Python,, \n"))
		var sve *dataset.SchemaValidationError
		convey.So(errors.As(err, &sve), convey.ShouldBeTrue)
		convey.So(sve.Column, convey.ShouldEqual, "job_role")
	})

	convey.Convey("Given empty inputs", t, func() {
		_, err := dataset.Read(strings.NewReader(""))
		convey.So(errors.Is(err, dataset.ErrEmptyDataset), convey.ShouldBeTrue)

		_, err = dataset.Read(strings.NewReader(header))
		convey.So(errors.Is(err, dataset.ErrEmptyDataset), convey.ShouldBeTrue)
	})

	convey.Convey("Given a header with a byte order mark and odd casing", t, func() {
		data := "\ufeffDegree, Specialization,course,college,year_of_completion,cgpa,skills,certifications,Job_Role\n" +
			"mca,AI,AI,VIT,2021,3.6,Python,,ML Engineer\n"
		rows, err := dataset.Read(strings.NewReader(data))
		convey.So(err, convey.ShouldBeNil)
		convey.So(rows[0].JobRole, convey.ShouldEqual, "ML Engineer")
	})

	convey.Convey("Given an unterminated quote", t, func() {
		_, err := dataset.Read(strings.NewReader(header + `btech,"CS,CS,IIT,2023,8,Python,,Dev` + "\n"))
		convey.So(errors.Is(err, dataset.ErrMalformed), convey.ShouldBeTrue)
	})

	convey.Convey("Given the synthetic training CSV", t, func() {
		rows, err := dataset.Read(strings.NewReader(trainingtest.CSV(3)))
		convey.So(err, convey.ShouldBeNil)
		convey.So(len(rows), convey.ShouldEqual, 9)
		for i, want := range trainingtest.Rows(3) {
			convey.So(rows[i].JobRole, convey.ShouldEqual, want.JobRole)
			convey.So(rows[i].Profile.Skills, convey.ShouldResemble, want.Profile.Skills)
			convey.So(rows[i].Profile.CGPA, convey.ShouldEqual, want.Profile.CGPA)
		}
	})
}

func TestSources(t *testing.T) {
	ctx := context.Background()
	csv := trainingtest.CSV(2)

	convey.Convey("Given a file source", t, func() {
		path := filepath.Join(t.TempDir(), "data.csv")
		convey.So(os.WriteFile(path, []byte(csv), 0o600), convey.ShouldBeNil)

		rows, err := dataset.Load(ctx, dataset.FileSource{Path: path})
		convey.So(err, convey.ShouldBeNil)
		convey.So(len(rows), convey.ShouldEqual, 6)
		convey.So(dataset.FileSource{Path: path}.Describe(), convey.ShouldEqual, "file:"+path)

		_, err = dataset.Load(ctx, dataset.FileSource{Path: path + ".missing"})
		convey.So(errors.Is(err, dataset.ErrSource), convey.ShouldBeTrue)
	})

	convey.Convey("Given a bytes source", t, func() {
		rows, err := dataset.Load(ctx, dataset.BytesSource{Name: "upload.csv", Data: []byte(csv)})
		convey.So(err, convey.ShouldBeNil)
		convey.So(len(rows), convey.ShouldEqual, 6)
	})

	convey.Convey("Given an S3-compatible server holding the dataset", t, func() {
		modified := time.Date(2025, time.January, 2, 3, 4, 5, 0, time.UTC)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/datasets/train.csv" {
				w.Header().Set("Content-Type", "application/xml")
				w.WriteHeader(http.StatusNotFound)
				_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`))
				return
			}
			w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
			w.Header().Set("Content-Type", "text/csv")
			http.ServeContent(w, r, "train.csv", modified, bytes.NewReader([]byte(csv)))
		}))
		defer srv.Close()

		client, err := dataset.NewMinIOClient(dataset.MinIOConfig{
			Endpoint:  strings.TrimPrefix(srv.URL, "http://"),
			AccessKey: "access",
			SecretKey: "secret",
			Region:    "us-east-1",
		})
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("When the object exists", func() {
			src := &dataset.MinIOSource{Client: client, Bucket: "datasets", Object: "train.csv"}
			rows, err := dataset.Load(ctx, src)

			convey.So(err, convey.ShouldBeNil)
			convey.So(len(rows), convey.ShouldEqual, 6)
			convey.So(src.Describe(), convey.ShouldEqual, "minio:datasets/train.csv")
		})

		convey.Convey("When the object is missing", func() {
			_, err := dataset.Load(ctx, &dataset.MinIOSource{Client: client, Bucket: "datasets", Object: "nope.csv"})
			convey.So(errors.Is(err, dataset.ErrSource), convey.ShouldBeTrue)
		})
	})

	convey.Convey("Given an unconfigured MinIO source", t, func() {
		_, err := dataset.Load(ctx, &dataset.MinIOSource{Bucket: "b", Object: "o"})
		convey.So(errors.Is(err, dataset.ErrSource), convey.ShouldBeTrue)

		_, err = dataset.NewMinIOClient(dataset.MinIOConfig{})
		convey.So(errors.Is(err, dataset.ErrSource), convey.ShouldBeTrue)
	})
}
