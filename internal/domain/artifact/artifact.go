// Package artifact defines the immutable model bundle produced by training
// and consumed by inference.
package artifact

import (
	"errors"
	"fmt"
	"time"

	"github.com/okian/jobfit/internal/domain/encoding"
	"github.com/okian/jobfit/internal/domain/features"
	"github.com/okian/jobfit/internal/domain/forest"
)

// ErrInconsistent reports a bundle whose parts do not fit together.
var ErrInconsistent = errors.New("inconsistent artifact set")

// Manifest describes one published version.
type Manifest struct {
	Version   string    `json:"version"`
	TrainedAt time.Time `json:"trained_at"`
	Rows      int       `json:"rows"`
	Classes   int       `json:"classes"`
	Features  int       `json:"features"`
	Trees     int       `json:"trees"`
}

// Set is a complete model bundle. A Set is never mutated after it is built.
type Set struct {
	Manifest       Manifest
	Classifier     *forest.Forest
	Categorical    *encoding.OneHotEncoder
	Skills         *encoding.MultiLabelBinarizer
	Certifications *encoding.MultiLabelBinarizer
	Labels         *encoding.LabelEncoder
	Schema         features.Schema
}

// Encoders returns the feature encoders of the set.
func (s *Set) Encoders() features.Encoders {
	return features.Encoders{
		Categorical:    s.Categorical,
		Skills:         s.Skills,
		Certifications: s.Certifications,
	}
}

// Validate checks that every part is present and that the classifier, the
// schema and the label decoder agree on their sizes.
func (s *Set) Validate() error {
	switch {
	case s == nil:
		return fmt.Errorf("%w: nil set", ErrInconsistent)
	case s.Classifier == nil, s.Categorical == nil, s.Skills == nil, s.Certifications == nil, s.Labels == nil:
		return fmt.Errorf("%w: missing component", ErrInconsistent)
	case s.Manifest.Version == "":
		return fmt.Errorf("%w: empty version", ErrInconsistent)
	}
	if err := s.Classifier.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInconsistent, err)
	}
	if len(s.Schema) != s.Classifier.NumFeatures {
		return fmt.Errorf("%w: schema has %d columns, classifier expects %d", ErrInconsistent, len(s.Schema), s.Classifier.NumFeatures)
	}
	if s.Labels.Len() != s.Classifier.NumClasses {
		return fmt.Errorf("%w: %d labels, classifier has %d classes", ErrInconsistent, s.Labels.Len(), s.Classifier.NumClasses)
	}
	return nil
}
