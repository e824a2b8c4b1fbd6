package training

import "errors"

// Sentinel kinds for training errors.
var (
	ErrNoRows        = errors.New("no training rows")
	ErrTooFewClasses = errors.New("at least two job roles are required")
)
