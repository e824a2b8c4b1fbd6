// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() initializer to build a Config with defaults.
// - Load layers a YAML file and JOBFIT_* environment variables on top.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"time"
)

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// ArtifactDir is the root of the versioned artifact store.
	ArtifactDir string `koanf:"artifact_dir"`

	// ArtifactCacheSize bounds decoded artifact sets kept in memory.
	ArtifactCacheSize int `koanf:"artifact_cache_size"`

	// ArtifactRetention keeps at most this many versions on disk; 0 keeps all.
	ArtifactRetention int `koanf:"artifact_retention"`

	// SkillsFile points at a YAML skill-requirement table. Empty uses the
	// built-in table.
	SkillsFile string `koanf:"skills_file"`

	// TopK is the default number of ranked roles per prediction.
	TopK int `koanf:"top_k"`

	// RetrainTimeoutSec bounds one retraining run; 0 disables the limit.
	RetrainTimeoutSec int `koanf:"retrain_timeout_sec"`

	// RetrainQueueSize bounds pending asynchronous retrain jobs.
	RetrainQueueSize int `koanf:"retrain_queue_size"`

	// JobHistorySize caps finished retrain jobs kept for lookup.
	JobHistorySize int `koanf:"job_history_size"`

	// DedupeSize bounds remembered retrain idempotency keys; 0 keeps all.
	DedupeSize int `koanf:"dedupe_size"`

	// MaxUploadBytes caps request bodies, including dataset uploads.
	MaxUploadBytes int64 `koanf:"max_upload_bytes"`

	// Forest* tune the random forest grown on retrain.
	ForestTrees           int    `koanf:"forest_trees"`
	ForestMaxDepth        int    `koanf:"forest_max_depth"`
	ForestMinSamplesSplit int    `koanf:"forest_min_samples_split"`
	ForestSeed            uint64 `koanf:"forest_seed"`

	// ConfidenceSkillWeight and ConfidenceModelWeight blend the skill-match
	// ratio with the classifier probability.
	ConfidenceSkillWeight float64 `koanf:"confidence_skill_weight"`
	ConfidenceModelWeight float64 `koanf:"confidence_model_weight"`

	// CGPA* are the scale-detection boundaries used when normalising grades.
	CGPAPercentMax   float64 `koanf:"cgpa_percent_max"`
	CGPAFivePointMax float64 `koanf:"cgpa_five_point_max"`
	CGPAFourPointMax float64 `koanf:"cgpa_four_point_max"`
	CGPAFourPointMin float64 `koanf:"cgpa_four_point_min"`

	// MinIO* configure the optional S3-compatible dataset source. Retraining
	// from object keys is disabled while MinIOEndpoint is empty.
	MinIOEndpoint  string `koanf:"minio_endpoint"`
	MinIOAccessKey string `koanf:"minio_access_key"`
	MinIOSecretKey string `koanf:"minio_secret_key"`
	MinIOBucket    string `koanf:"minio_bucket"`
	MinIOUseSSL    bool   `koanf:"minio_use_ssl"`
}

// New creates a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel:              "info",
		LogFormat:             "text",
		Addr:                  ":9080",
		ArtifactDir:           "./artifacts",
		ArtifactCacheSize:     4,
		ArtifactRetention:     10,
		TopK:                  3,
		RetrainTimeoutSec:     600,
		RetrainQueueSize:      16,
		JobHistorySize:        100,
		DedupeSize:            1000,
		MaxUploadBytes:        32 << 20,
		ForestTrees:           200,
		ForestMinSamplesSplit: 2,
		ForestSeed:            42,
		ConfidenceSkillWeight: 80,
		ConfidenceModelWeight: 0.2,
		CGPAPercentMax:        100,
		CGPAFivePointMax:      5,
		CGPAFourPointMax:      4,
		CGPAFourPointMin:      1,
	}
}

// RetrainTimeout returns RetrainTimeoutSec as a duration.
func (c *Config) RetrainTimeout() time.Duration {
	return time.Duration(c.RetrainTimeoutSec) * time.Second
}

// MinIOEnabled reports whether an object-storage dataset source is configured.
func (c *Config) MinIOEnabled() bool {
	return c.MinIOEndpoint != "" && c.MinIOBucket != ""
}

// Validate checks the values the process cannot start without.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.ArtifactDir == "":
		return fmt.Errorf("%w: artifact_dir must not be empty", ErrInvalidConfig)
	case c.TopK < 1:
		return fmt.Errorf("%w: top_k must be at least 1, got %d", ErrInvalidConfig, c.TopK)
	case c.ConfidenceSkillWeight < 0 || c.ConfidenceModelWeight < 0:
		return fmt.Errorf("%w: confidence weights must not be negative", ErrInvalidConfig)
	case c.DedupeSize < 0:
		return fmt.Errorf("%w: dedupe_size must not be negative", ErrInvalidConfig)
	case c.RetrainTimeoutSec < 0:
		return fmt.Errorf("%w: retrain_timeout_sec must not be negative", ErrInvalidConfig)
	case c.MinIOEndpoint != "" && c.MinIOBucket == "":
		return fmt.Errorf("%w: minio_bucket is required with minio_endpoint", ErrInvalidConfig)
	}
	return nil
}
