package repository

import "errors"

// Sentinel kinds for artifact store errors.
var (
	// ErrArtifactUnavailable means the active artifact set could not be
	// read or decoded. Prediction requests fail with it.
	ErrArtifactUnavailable = errors.New("artifact unavailable")
	// ErrNoActiveVersion means nothing has been published yet.
	ErrNoActiveVersion = errors.New("no active model version")
	ErrVersionNotFound = errors.New("model version not found")
	ErrInvalidVersion  = errors.New("invalid model version")
	ErrPublish         = errors.New("publish artifact set failed")
)
