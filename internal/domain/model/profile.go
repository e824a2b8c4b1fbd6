// Package model contains domain models passed between layers.
package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

// RawNumber keeps a numeric field exactly as it arrived. Profiles come from
// forms where CGPA may be "8.5", "85%" or 85; the normalizer decides what
// the value means.
type RawNumber string

// Number builds a RawNumber from a float.
func Number(v float64) RawNumber {
	return RawNumber(strconv.FormatFloat(v, 'f', -1, 64))
}

// UnmarshalJSON accepts JSON numbers, strings and null.
func (n *RawNumber) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*n = ""
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*n = RawNumber(s)
	case b[0] == '-' || (b[0] >= '0' && b[0] <= '9'):
		*n = RawNumber(b)
	default:
		return errors.New("number must be a JSON number or string")
	}
	return nil
}

// MarshalJSON writes the value as a JSON string.
func (n RawNumber) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(n))
}

// String returns the raw text.
func (n RawNumber) String() string { return string(n) }

// CandidateProfile is the inbound, not yet normalized candidate record.
type CandidateProfile struct {
	Degree         string    `json:"degree"`
	Specialization string    `json:"specialization"`
	Course         string    `json:"course,omitempty"`
	University     string    `json:"university,omitempty"`
	College        string    `json:"college,omitempty"`
	CGPA           RawNumber `json:"cgpa"`
	GraduationYear RawNumber `json:"year_of_completion"`
	Skills         []string  `json:"skills"`
	Certifications []string  `json:"certifications"`
}

// Institution returns the university name, falling back to the college field.
func (p CandidateProfile) Institution() string { //nolint:gocritic // value receiver keeps profiles immutable
	if strings.TrimSpace(p.University) != "" {
		return p.University
	}
	return p.College
}

// CourseOrSpecialization returns the course, which defaults to the specialization.
func (p CandidateProfile) CourseOrSpecialization() string { //nolint:gocritic // value receiver keeps profiles immutable
	if strings.TrimSpace(p.Course) != "" {
		return p.Course
	}
	return p.Specialization
}

// Fallback marks which normalized fields were replaced by a safe default.
type Fallback uint8

// Fallback flags.
const (
	FallbackDegree Fallback = 1 << iota
	FallbackSpecialization
	FallbackUniversity
	FallbackCGPA
	FallbackGraduationYear
)

var fallbackNames = []struct {
	flag Fallback
	name string
}{
	{FallbackDegree, "degree"},
	{FallbackSpecialization, "specialization"},
	{FallbackUniversity, "university"},
	{FallbackCGPA, "cgpa"},
	{FallbackGraduationYear, "year_of_completion"},
}

// Has reports whether flag is set.
func (f Fallback) Has(flag Fallback) bool { return f&flag != 0 }

// Fields lists the names of the fields that fell back to defaults.
func (f Fallback) Fields() []string {
	var out []string
	for _, fn := range fallbackNames {
		if f.Has(fn.flag) {
			out = append(out, fn.name)
		}
	}
	return out
}

// NormalizedProfile is the canonical form of a CandidateProfile.
type NormalizedProfile struct {
	// Degree is a canonical label such as "B.Tech", or "Other".
	Degree string
	// Specialization and Course are trimmed, lower-cased, single-spaced text.
	Specialization     string
	SpecializationCode int
	Course             string
	// University is the cleaned display name.
	University     string
	UniversityTier int
	// CGPA is on a 0-10 scale; 0 means unknown when FallbackCGPA is set.
	CGPA                 float64
	GraduationYear       int
	YearsSinceGraduation int
	Fallbacks            Fallback
}

// TrainingRow is one labeled example of the retraining dataset.
type TrainingRow struct {
	Profile CandidateProfile
	JobRole string
}

// RolePrediction is one ranked job role.
type RolePrediction struct {
	JobRole       string   `json:"job_role"`
	Confidence    float64  `json:"confidence"`
	MissingSkills []string `json:"missing_skills"`
}

// PredictionResult is the ranked output for one request.
type PredictionResult struct {
	ModelVersion string           `json:"model_version"`
	Predictions  []RolePrediction `json:"predictions"`
	// Fallbacks lists profile fields that were replaced by defaults.
	Fallbacks []string `json:"normalization_fallbacks,omitempty"`
}
