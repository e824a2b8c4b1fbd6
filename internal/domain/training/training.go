// Package training fits a complete artifact set from labeled rows.
package training

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okian/jobfit/internal/domain/artifact"
	"github.com/okian/jobfit/internal/domain/encoding"
	"github.com/okian/jobfit/internal/domain/features"
	"github.com/okian/jobfit/internal/domain/forest"
	"github.com/okian/jobfit/internal/domain/model"
	"github.com/okian/jobfit/internal/domain/normalize"
	"github.com/okian/jobfit/pkg/logger"
)

const versionTimeLayout = "20060102T150405Z"

// Option configures a Trainer.
type Option func(*Trainer)

// WithNormalizer sets the normalizer. It must match the one used for inference.
func WithNormalizer(n *normalize.Normalizer) Option {
	return func(t *Trainer) {
		if n != nil {
			t.normalizer = n
		}
	}
}

// WithForestOptions passes options through to forest.Fit.
func WithForestOptions(opts ...forest.Option) Option {
	return func(t *Trainer) {
		t.forestOpts = append(t.forestOpts, opts...)
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(t *Trainer) {
		if l != nil {
			t.log = l
		}
	}
}

// WithClock sets the time source for manifests and version ids.
func WithClock(now func() time.Time) Option {
	return func(t *Trainer) {
		if now != nil {
			t.now = now
		}
	}
}

// Trainer builds artifact sets. It holds no state between Fit calls.
type Trainer struct {
	normalizer *normalize.Normalizer
	forestOpts []forest.Option
	log        logger.Logger
	now        func() time.Time
}

// New creates a Trainer.
func New(opts ...Option) *Trainer {
	t := &Trainer{
		normalizer: normalize.New(),
		log:        logger.Nop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

type prepared struct {
	profile model.NormalizedProfile
	skills  []string
	certs   []string
	role    string
}

// Fit normalizes every row, fits the encoders on the full dataset, builds
// the feature matrix (numeric, skills, certifications, categorical), records
// the schema and grows the classifier.
func (t *Trainer) Fit(ctx context.Context, rows []model.TrainingRow) (*artifact.Set, error) {
	if len(rows) == 0 {
		return nil, ErrNoRows
	}
	started := t.now()

	prep := make([]prepared, len(rows))
	catRows := make([][]string, len(rows))
	skillSets := make([][]string, len(rows))
	certSets := make([][]string, len(rows))
	roles := make([]string, len(rows))
	for i := range rows {
		p := t.normalizer.Normalize(rows[i].Profile)
		prep[i] = prepared{
			profile: p,
			skills:  normalize.CleanSet(rows[i].Profile.Skills),
			certs:   normalize.CleanSet(rows[i].Profile.Certifications),
			role:    strings.TrimSpace(rows[i].JobRole),
		}
		catRows[i] = features.CategoricalValues(&prep[i].profile)
		skillSets[i] = prep[i].skills
		certSets[i] = prep[i].certs
		roles[i] = prep[i].role
	}

	labels := encoding.FitLabels(roles)
	if labels.Len() < 2 {
		return nil, fmt.Errorf("%w: found %d", ErrTooFewClasses, labels.Len())
	}
	categorical, err := encoding.FitOneHot(features.CategoricalColumns, catRows)
	if err != nil {
		return nil, fmt.Errorf("fit categorical encoder: %w", err)
	}
	enc := features.Encoders{
		Categorical:    categorical,
		Skills:         encoding.FitMultiLabel(features.SkillPrefix, skillSets),
		Certifications: encoding.FitMultiLabel(features.CertificationPrefix, certSets),
	}

	var schema features.Schema
	x := make([][]float64, len(prep))
	y := make([]int, len(prep))
	for i := range prep {
		names, values, err := features.Build(&prep[i].profile, prep[i].skills, prep[i].certs, enc)
		if err != nil {
			return nil, fmt.Errorf("build features for row %d: %w", i+1, err)
		}
		if schema == nil {
			schema = names
		}
		x[i] = values
		if y[i], err = labels.Encode(prep[i].role); err != nil {
			return nil, fmt.Errorf("encode label for row %d: %w", i+1, err)
		}
	}

	clf, err := forest.Fit(ctx, x, y, labels.Len(), t.forestOpts...)
	if err != nil {
		return nil, fmt.Errorf("fit classifier: %w", err)
	}

	set := &artifact.Set{
		Manifest: artifact.Manifest{
			Version:   NewVersion(started),
			TrainedAt: started.UTC(),
			Rows:      len(rows),
			Classes:   labels.Len(),
			Features:  len(schema),
			Trees:     len(clf.Trees),
		},
		Classifier:     clf,
		Categorical:    enc.Categorical,
		Skills:         enc.Skills,
		Certifications: enc.Certifications,
		Labels:         labels,
		Schema:         schema,
	}

	t.log.Info(ctx, "model trained",
		logger.String("version", set.Manifest.Version),
		logger.Int("rows", set.Manifest.Rows),
		logger.Int("classes", set.Manifest.Classes),
		logger.Int("features", set.Manifest.Features),
		logger.Duration("took", t.now().Sub(started)),
	)
	return set, nil
}

// NewVersion returns a version id that sorts by training time.
func NewVersion(at time.Time) string {
	return "v" + at.UTC().Format(versionTimeLayout) + "-" + uuid.NewString()[:8]
}
