// Package repository persists versioned artifact sets and tracks which one
// is active.
package repository

import (
	"context"

	"github.com/okian/jobfit/internal/domain/artifact"
)

// VersionInfo describes a stored version.
type VersionInfo struct {
	Manifest artifact.Manifest `json:"manifest"`
	Active   bool              `json:"active"`
}

// Store provides versioned, atomically swapped artifact sets.
type Store interface {
	// Publish stores set as a new version and makes it active. Readers
	// observe either the previous set or the new one, never a mix.
	Publish(ctx context.Context, set *artifact.Set) error

	// Load returns the currently active set. It reflects the latest
	// successful Publish or Rollback. Failures wrap ErrArtifactUnavailable.
	Load(ctx context.Context) (*artifact.Set, error)

	// Versions lists stored versions, newest first.
	Versions(ctx context.Context) ([]VersionInfo, error)

	// Rollback makes an existing version active again.
	Rollback(ctx context.Context, version string) error

	// Close stops background work.
	Close() error
}

// Status describes the active version and every stored one.
type Status struct {
	Active   *artifact.Manifest `json:"active"`
	Versions []VersionInfo      `json:"versions"`
}
