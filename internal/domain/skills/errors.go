package skills

import "errors"

// Sentinel kinds for skill table errors.
var (
	ErrInvalidTable = errors.New("invalid skill table")
	ErrLoadTable    = errors.New("load skill table failed")
)
