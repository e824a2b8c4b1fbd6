// Package features assembles model input vectors. Training and inference
// share Build so both sides name columns identically; inference then
// reindexes against the schema saved with the model.
package features

import (
	"fmt"

	"github.com/okian/jobfit/internal/domain/encoding"
	"github.com/okian/jobfit/internal/domain/model"
	"github.com/okian/jobfit/internal/domain/normalize"
)

// Column name prefixes and fixed numeric columns.
const (
	SkillPrefix         = "skill_"
	CertificationPrefix = "cert_"
	ColYear             = "year_of_completion"
	ColCGPA             = "cgpa"
)

// CategoricalColumns are the one-hot encoded profile fields, in order.
var CategoricalColumns = []string{"degree", "specialization", "course", "college"}

// NumericColumns lead every feature vector.
var NumericColumns = []string{ColYear, ColCGPA}

// Schema is the ordered list of feature names fixed at training time.
type Schema []string

// Encoders are the fitted encoders a vector is built from.
type Encoders struct {
	Categorical    *encoding.OneHotEncoder
	Skills         *encoding.MultiLabelBinarizer
	Certifications *encoding.MultiLabelBinarizer
}

// CategoricalValues extracts the categorical fields of a normalized profile
// in CategoricalColumns order.
func CategoricalValues(p *model.NormalizedProfile) []string {
	return []string{p.Degree, p.Specialization, p.Course, normalize.CleanText(p.University)}
}

// Numeric returns the numeric block in NumericColumns order.
func Numeric(p *model.NormalizedProfile) []float64 {
	return []float64{float64(p.GraduationYear), p.CGPA}
}

// Build concatenates the numeric, skill, certification and categorical
// blocks, returning column names alongside values.
func Build(p *model.NormalizedProfile, skills, certs []string, enc Encoders) ([]string, []float64, error) {
	if enc.Categorical == nil || enc.Skills == nil || enc.Certifications == nil {
		return nil, nil, fmt.Errorf("%w: missing encoder", ErrEncoders)
	}
	cat, err := enc.Categorical.Transform(CategoricalValues(p))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrEncoders, err)
	}

	names := append([]string(nil), NumericColumns...)
	names = append(names, enc.Skills.FeatureNames()...)
	names = append(names, enc.Certifications.FeatureNames()...)
	names = append(names, enc.Categorical.FeatureNames()...)

	values := Numeric(p)
	values = append(values, enc.Skills.Transform(skills)...)
	values = append(values, enc.Certifications.Transform(certs)...)
	values = append(values, cat...)
	return names, values, nil
}

// Reindex orders values by the schema. Schema columns missing from names
// are 0; columns not in the schema are dropped.
func (s Schema) Reindex(names []string, values []float64) []float64 {
	byName := make(map[string]float64, len(names))
	for i, n := range names {
		if i < len(values) {
			byName[n] = values[i]
		}
	}
	out := make([]float64, len(s))
	for i, col := range s {
		out[i] = byName[col]
	}
	return out
}

// Vectorize builds a profile's vector and reindexes it against the schema.
// The result always has len(s) entries.
func (s Schema) Vectorize(p *model.NormalizedProfile, skills, certs []string, enc Encoders) ([]float64, error) {
	names, values, err := Build(p, skills, certs, enc)
	if err != nil {
		return nil, err
	}
	return s.Reindex(names, values), nil
}
