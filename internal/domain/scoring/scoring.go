// Package scoring blends classifier probabilities with rule-based skill
// matching and ranks job roles.
package scoring

import (
	"fmt"
	"math"
	"sort"

	"github.com/okian/jobfit/internal/domain/model"
	"github.com/okian/jobfit/internal/domain/skills"
)

// Default blending configuration constants.
const (
	DefaultSkillWeight = 80.0
	DefaultModelWeight = 0.2
	DefaultTopK        = 3
	FullMatch          = 100.0
	maxConfidence      = 100.0
	roundTo            = 100.0
)

// Option applies a configuration option to the Blender.
type Option func(*Blender)

// WithWeights sets the skill-match and model-probability weights.
// Negative weights are ignored.
func WithWeights(skillWeight, modelWeight float64) Option {
	return func(b *Blender) {
		if skillWeight >= 0 && modelWeight >= 0 {
			b.skillWeight = skillWeight
			b.modelWeight = modelWeight
		}
	}
}

// WithTopK sets the default number of ranked roles returned.
func WithTopK(k int) Option {
	return func(b *Blender) {
		if k > 0 {
			b.topK = k
		}
	}
}

// Input holds the classifier output for one candidate.
type Input struct {
	// Roles[i] is the job role whose probability is Probabilities[i].
	Roles         []string
	Probabilities []float64
	// Skills are the candidate's skills as supplied.
	Skills []string
}

// Blender computes confidence scores. It is immutable after construction.
type Blender struct {
	table       *skills.Table
	skillWeight float64
	modelWeight float64
	topK        int
}

// NewBlender creates a blender gating roles by the given skill table.
func NewBlender(table *skills.Table, opts ...Option) *Blender {
	b := &Blender{
		table:       table,
		skillWeight: DefaultSkillWeight,
		modelWeight: DefaultModelWeight,
		topK:        DefaultTopK,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// TopK returns the default ranking length.
func (b *Blender) TopK() int { return b.topK }

// Score computes one role's confidence from its model probability.
//
// A role without required skills keeps probability*100. Otherwise the
// skill-match ratio dominates:
// min(ratio*skillWeight + probability*100*modelWeight, 100), and a
// complete skill match is exactly 100.
func (b *Blender) Score(role string, probability float64, have []string) model.RolePrediction {
	base := probability * 100
	missing, required := b.table.Missing(role, have)

	var confidence float64
	switch {
	case required == 0:
		confidence = base
	case len(missing) == 0:
		confidence = FullMatch
	default:
		ratio := float64(required-len(missing)) / float64(required)
		confidence = ratio*b.skillWeight + base*b.modelWeight
	}

	return model.RolePrediction{
		JobRole:       role,
		Confidence:    round2(math.Max(0, math.Min(maxConfidence, confidence))),
		MissingSkills: missing,
	}
}

// Rank scores every role and returns the top k, highest confidence first.
// Equal confidences are ordered by role name. k <= 0 uses the default.
func (b *Blender) Rank(in Input, k int) ([]model.RolePrediction, error) {
	if len(in.Roles) != len(in.Probabilities) {
		return nil, fmt.Errorf("%w: %d roles, %d probabilities", ErrMismatchedInput, len(in.Roles), len(in.Probabilities))
	}
	if k <= 0 {
		k = b.topK
	}

	out := make([]model.RolePrediction, len(in.Roles))
	for i, role := range in.Roles {
		out[i] = b.Score(role, in.Probabilities[i], in.Skills)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].JobRole < out[j].JobRole
	})
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func round2(v float64) float64 {
	return math.Round(v*roundTo) / roundTo
}
