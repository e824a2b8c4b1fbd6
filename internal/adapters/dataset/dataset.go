// Package dataset reads labeled training datasets and the sources they
// come from.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/okian/jobfit/internal/domain/model"
)

// Column names of the training dataset.
const (
	ColDegree         = "degree"
	ColSpecialization = "specialization"
	ColCourse         = "course"
	ColCollege        = "college"
	ColYear           = "year_of_completion"
	ColCGPA           = "cgpa"
	ColSkills         = "skills"
	ColCertifications = "certifications"
	ColJobRole        = "job_role"
)

// RequiredColumns must all be present in the header.
var RequiredColumns = []string{
	ColDegree, ColSpecialization, ColCourse, ColCollege,
	ColYear, ColCGPA, ColSkills, ColCertifications, ColJobRole,
}

const utf8BOM = "\ufeff"

// Read parses a CSV dataset with a header row. Every required column is
// checked before any row is processed. Any value that cannot be coerced
// fails the whole read; rows are never skipped.
func Read(r io.Reader) ([]model.TrainingRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, &SchemaValidationError{Kind: ErrEmptyDataset}
	}
	if err != nil {
		return nil, malformed(err)
	}

	idx := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, utf8BOM)))
		if _, dup := idx[name]; !dup {
			idx[name] = i
		}
	}
	for _, col := range RequiredColumns {
		if _, ok := idx[col]; !ok {
			return nil, &SchemaValidationError{Column: col, Kind: ErrMissingColumn}
		}
	}

	var rows []model.TrainingRow
	for n := 1; ; n++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, malformed(err)
		}
		if blank(rec) {
			n--
			continue
		}
		row, err := parseRecord(rec, idx, n)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, &SchemaValidationError{Kind: ErrEmptyDataset}
	}
	return rows, nil
}

func parseRecord(rec []string, idx map[string]int, n int) (model.TrainingRow, error) {
	field := func(col string) string {
		if i := idx[col]; i < len(rec) {
			return strings.TrimSpace(rec[i])
		}
		return ""
	}
	invalid := func(col string) error {
		return &SchemaValidationError{Column: col, Row: n, Value: field(col), Kind: ErrInvalidValue}
	}

	year, err := parseYear(field(ColYear))
	if err != nil {
		return model.TrainingRow{}, invalid(ColYear)
	}
	cgpa, err := strconv.ParseFloat(field(ColCGPA), 64)
	if err != nil || math.IsNaN(cgpa) || math.IsInf(cgpa, 0) || cgpa < 0 {
		return model.TrainingRow{}, invalid(ColCGPA)
	}
	role := field(ColJobRole)
	if role == "" {
		return model.TrainingRow{}, invalid(ColJobRole)
	}

	return model.TrainingRow{
		JobRole: role,
		Profile: model.CandidateProfile{
			Degree:         field(ColDegree),
			Specialization: field(ColSpecialization),
			Course:         field(ColCourse),
			College:        field(ColCollege),
			GraduationYear: model.Number(float64(year)),
			CGPA:           model.Number(cgpa),
			Skills:         SplitList(field(ColSkills)),
			Certifications: SplitList(field(ColCertifications)),
		},
	}, nil
}

// parseYear accepts integers and integral floats such as "2023.0".
func parseYear(s string) (int, error) {
	if v, err := strconv.Atoi(s); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %q is not a whole year", ErrInvalidValue, s)
	}
	return int(f), nil
}

// SplitList splits a comma separated cell, trimming items and dropping empties.
func SplitList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func blank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func malformed(err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &SchemaValidationError{Row: max(0, pe.Line-1), Kind: fmt.Errorf("%w: %v", ErrMalformed, pe.Err)}
	}
	return fmt.Errorf("%w: %w", ErrMalformed, err)
}
