package forest

import "errors"

// Sentinel kinds for forest errors.
var (
	ErrEmptyTrainingSet = errors.New("empty training set")
	ErrShapeMismatch    = errors.New("training data shape mismatch")
	ErrFeatureCount     = errors.New("feature vector length mismatch")
	ErrCorruptModel     = errors.New("corrupt forest model")
)
