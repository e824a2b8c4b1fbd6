package encoding

import "errors"

// Sentinel kinds for encoder errors.
var (
	ErrColumnMismatch = errors.New("column count mismatch")
	ErrUnknownLabel   = errors.New("unknown label")
	ErrLabelIndex     = errors.New("label index out of range")
)
