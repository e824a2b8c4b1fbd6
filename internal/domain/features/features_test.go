package features_test

import (
	"errors"
	"testing"

	"github.com/okian/jobfit/internal/domain/encoding"
	"github.com/okian/jobfit/internal/domain/features"
	"github.com/okian/jobfit/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func fittedEncoders() features.Encoders {
	cat, err := encoding.FitOneHot(features.CategoricalColumns, [][]string{
		{"B.Tech", "computer science", "computer science", "iit bombay"},
		{"MCA", "data science", "data science", "vit"},
	})
	if err != nil {
		panic(err)
	}
	return features.Encoders{
		Categorical:    cat,
		Skills:         encoding.FitMultiLabel(features.SkillPrefix, [][]string{{"python", "sql"}}),
		Certifications: encoding.FitMultiLabel(features.CertificationPrefix, [][]string{{"aws"}}),
	}
}

func TestBuild(t *testing.T) {
	Convey("Given fitted encoders and a normalized profile", t, func() {
		enc := fittedEncoders()
		p := &model.NormalizedProfile{
			Degree:         "B.Tech",
			Specialization: "computer science",
			Course:         "computer science",
			University:     "IIT Bombay",
			CGPA:           8.5,
			GraduationYear: 2023,
		}

		names, values, err := features.Build(p, []string{"Python", "Go"}, []string{"AWS"}, enc)

		Convey("Then blocks come numeric, skills, certifications, categorical", func() {
			So(err, ShouldBeNil)
			So(names, ShouldResemble, []string{
				"year_of_completion", "cgpa",
				"skill_python", "skill_sql",
				"cert_aws",
				"degree_B.Tech", "degree_MCA",
				"specialization_computer science", "specialization_data science",
				"course_computer science", "course_data science",
				"college_iit bombay", "college_vit",
			})
			So(values, ShouldResemble, []float64{2023, 8.5, 1, 0, 1, 1, 0, 1, 0, 1, 0, 1, 0})
		})
	})

	Convey("Given an incomplete encoder set", t, func() {
		_, _, err := features.Build(&model.NormalizedProfile{}, nil, nil, features.Encoders{})
		So(errors.Is(err, features.ErrEncoders), ShouldBeTrue)
	})
}

func TestReindex(t *testing.T) {
	Convey("Given a schema saved with the model", t, func() {
		schema := features.Schema{"cgpa", "skill_rust", "year_of_completion", "skill_python"}

		Convey("When the built vector has extra and missing columns", func() {
			out := schema.Reindex(
				[]string{"year_of_completion", "cgpa", "skill_python", "skill_sql"},
				[]float64{2022, 7.5, 1, 1},
			)

			Convey("Then it follows schema order, zero-filling absent columns", func() {
				So(out, ShouldResemble, []float64{7.5, 0, 2022, 1})
			})
		})

		Convey("When vectorizing with encoders from a different fit", func() {
			out, err := schema.Vectorize(&model.NormalizedProfile{CGPA: 9}, []string{"python"}, nil, fittedEncoders())

			Convey("Then the vector length is the schema length", func() {
				So(err, ShouldBeNil)
				So(len(out), ShouldEqual, len(schema))
				So(out, ShouldResemble, []float64{9, 0, 0, 1})
			})
		})
	})
}
