package dataset

import (
	"errors"
	"fmt"
)

// Sentinel kinds for dataset errors.
var (
	ErrMissingColumn = errors.New("missing required column")
	ErrInvalidValue  = errors.New("invalid value")
	ErrEmptyDataset  = errors.New("dataset has no rows")
	ErrMalformed     = errors.New("malformed dataset")
	ErrSource        = errors.New("dataset source unavailable")
)

// SchemaValidationError names the column (and, for value errors, the
// 1-based data row) that made a dataset unusable.
type SchemaValidationError struct {
	Column string
	Row    int
	Value  string
	Kind   error
}

func (e *SchemaValidationError) Error() string {
	switch {
	case e.Row > 0 && e.Column != "":
		return fmt.Sprintf("%v: column %q row %d value %q", e.Kind, e.Column, e.Row, e.Value)
	case e.Row > 0:
		return fmt.Sprintf("%v: row %d", e.Kind, e.Row)
	case e.Column != "":
		return fmt.Sprintf("%v: %q", e.Kind, e.Column)
	default:
		return e.Kind.Error()
	}
}

// Unwrap exposes the error kind to errors.Is.
func (e *SchemaValidationError) Unwrap() error { return e.Kind }
