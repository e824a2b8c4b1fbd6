package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrJobNotFound = errors.New("retrain job not found")
	ErrNotStarted  = errors.New("service not started")
	// ErrRetrainPanicked marks a queued job whose pipeline panicked.
	ErrRetrainPanicked = errors.New("retrain panicked")
)
