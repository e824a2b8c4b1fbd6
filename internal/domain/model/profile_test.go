package model_test

import (
	"encoding/json"
	"testing"

	model "github.com/okian/jobfit/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestCandidateProfileJSON(t *testing.T) {
	convey.Convey("Given inbound profile JSON", t, func() {
		convey.Convey("When cgpa and year are numbers", func() {
			var p model.CandidateProfile
			err := json.Unmarshal([]byte(`{"degree":"btech","cgpa":8.5,"year_of_completion":2023,"college":"IIT Bombay"}`), &p)

			convey.Convey("Then they are kept as raw text", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(p.CGPA, convey.ShouldEqual, model.RawNumber("8.5"))
				convey.So(p.GraduationYear, convey.ShouldEqual, model.RawNumber("2023"))
				convey.So(p.Institution(), convey.ShouldEqual, "IIT Bombay")
			})
		})

		convey.Convey("When cgpa is a string with a percent sign", func() {
			var p model.CandidateProfile
			err := json.Unmarshal([]byte(`{"cgpa":"85%"}`), &p)

			convey.Convey("Then the string is preserved", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(p.CGPA.String(), convey.ShouldEqual, "85%")
			})
		})

		convey.Convey("When cgpa is null", func() {
			var p model.CandidateProfile
			err := json.Unmarshal([]byte(`{"cgpa":null}`), &p)

			convey.Convey("Then it is empty", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(p.CGPA, convey.ShouldEqual, model.RawNumber(""))
			})
		})

		convey.Convey("When cgpa is an object", func() {
			var p model.CandidateProfile
			err := json.Unmarshal([]byte(`{"cgpa":{"value":8}}`), &p)

			convey.Convey("Then decoding fails", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})
	})
}

func TestCandidateProfileDefaults(t *testing.T) {
	convey.Convey("Given a profile without a course", t, func() {
		p := model.CandidateProfile{Specialization: "Data Science", University: "VIT", College: "ignored"}

		convey.So(p.CourseOrSpecialization(), convey.ShouldEqual, "Data Science")
		convey.So(p.Institution(), convey.ShouldEqual, "VIT")
		convey.So(model.Number(85).String(), convey.ShouldEqual, "85")
	})
}

func TestFallbackFields(t *testing.T) {
	convey.Convey("Given combined fallback flags", t, func() {
		f := model.FallbackDegree | model.FallbackCGPA

		convey.So(f.Has(model.FallbackCGPA), convey.ShouldBeTrue)
		convey.So(f.Has(model.FallbackUniversity), convey.ShouldBeFalse)
		convey.So(f.Fields(), convey.ShouldResemble, []string{"degree", "cgpa"})
		convey.So(model.Fallback(0).Fields(), convey.ShouldBeNil)
	})
}
