// Package trainingtest generates small deterministic training datasets.
package trainingtest

import (
	"fmt"
	"strings"

	"github.com/okian/jobfit/internal/domain/model"
)

type archetype struct {
	role           string
	degree         string
	specialization string
	college        string
	skills         []string
	certs          []string
}

var archetypes = []archetype{
	{"Backend Developer", "btech", "Computer Science", "IIT Bombay", []string{"Python", "Django", "SQL", "REST APIs"}, []string{"AWS Developer"}},
	{"Data Analyst", "bcom", "Finance", "University of Delhi", []string{"SQL", "Excel", "Power BI", "Statistics"}, []string{"Google Data Analytics"}},
	{"Web Developer", "bca", "Information Technology", "VIT", []string{"HTML", "CSS", "JavaScript"}, nil},
}

// Roles lists the job roles Rows produces, sorted.
func Roles() []string {
	return []string{"Backend Developer", "Data Analyst", "Web Developer"}
}

// Rows returns perRole labeled rows for each role. Rows are clearly
// separable by skills, with small variations in grades and years.
func Rows(perRole int) []model.TrainingRow {
	rows := make([]model.TrainingRow, 0, perRole*len(archetypes))
	for i := 0; i < perRole; i++ {
		for _, a := range archetypes {
			rows = append(rows, model.TrainingRow{
				JobRole: a.role,
				Profile: model.CandidateProfile{
					Degree:         a.degree,
					Specialization: a.specialization,
					Course:         a.specialization,
					College:        a.college,
					CGPA:           model.Number(6 + float64(i%4)),
					GraduationYear: model.Number(float64(2018 + i%5)),
					Skills:         a.skills[:len(a.skills)-i%2],
					Certifications: a.certs,
				},
			})
		}
	}
	return rows
}

// CSV renders Rows(perRole) as a dataset file with the required header.
func CSV(perRole int) string {
	var b strings.Builder
	b.WriteString("degree,specialization,course,college,year_of_completion,cgpa,skills,certifications,job_role\n")
	for _, r := range Rows(perRole) {
		p := r.Profile
		fmt.Fprintf(&b, "%s,%s,%s,%s,%s,%s,%q,%q,%s\n",
			p.Degree, p.Specialization, p.Course, p.College,
			p.GraduationYear, p.CGPA,
			strings.Join(p.Skills, ", "), strings.Join(p.Certifications, ", "),
			r.JobRole)
	}
	return b.String()
}
