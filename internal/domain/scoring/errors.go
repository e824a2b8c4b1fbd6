package scoring

import "errors"

// ErrMismatchedInput reports roles and probabilities of different lengths.
var ErrMismatchedInput = errors.New("roles and probabilities differ in length")
