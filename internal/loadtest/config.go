// Package loadtest drives a running prediction service with generated
// candidate profiles while retraining it, and checks that every answer is a
// well-formed ranking produced by a model version that was actually published.
package loadtest

import (
	"errors"
	"time"
)

// Default configuration constants.
const (
	DefaultRequests     = 1000
	DefaultWorkers      = 8
	DefaultTimeout      = 30 * time.Second
	DefaultTrainPerRole = 20
	DefaultRoles        = 8
)

// Sentinel kinds for load test errors.
var (
	ErrInvalidConfig = errors.New("invalid load test config")
	ErrUnhealthy     = errors.New("service unhealthy")
	ErrVerification  = errors.New("verification failed")
)

// Config holds configuration for a load test run.
type Config struct {
	BaseURL      string        // Base URL of the service
	Requests     int           // Number of prediction requests
	Workers      int           // Number of concurrent workers
	Timeout      time.Duration // HTTP request timeout
	TopK         int           // top_k sent with predictions; 0 uses the server default
	Roles        int           // Number of job roles in generated datasets
	TrainPerRole int           // Rows per role in generated datasets; 0 skips the bootstrap retrain
	RetrainEvery int           // Queue a retrain after every N predictions; 0 disables
	Seed         uint64        // Seed for profile generation
	OutputFile   string        // Optional JSON report path
}

func (c *Config) validate() error {
	switch {
	case c.BaseURL == "":
		return errors.Join(ErrInvalidConfig, errors.New("base url must not be empty"))
	case c.Requests < 1:
		return errors.Join(ErrInvalidConfig, errors.New("requests must be positive"))
	case c.Workers < 1:
		return errors.Join(ErrInvalidConfig, errors.New("workers must be positive"))
	case c.Roles < 2:
		return errors.Join(ErrInvalidConfig, errors.New("at least two roles are needed to train"))
	case c.RetrainEvery > 0 && c.TrainPerRole < 1:
		return errors.Join(ErrInvalidConfig, errors.New("retraining needs train rows per role"))
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return nil
}

// Stats holds run statistics.
type Stats struct {
	Requests       int           `json:"requests"`
	Successful     int           `json:"successful"`
	Unavailable    int           `json:"unavailable"`
	Failed         int           `json:"failed"`
	Violations     int           `json:"violations"`
	RetrainsQueued int           `json:"retrains_queued"`
	RetrainsFailed int           `json:"retrains_failed"`
	Rejected       int           `json:"retrains_rejected"`
	Published      []string      `json:"published_versions"`
	Observed       []string      `json:"observed_versions"`
	Unknown        []string      `json:"unknown_versions,omitempty"`
	StartTime      time.Time     `json:"start_time"`
	EndTime        time.Time     `json:"end_time"`
	Duration       time.Duration `json:"duration_ns"`
}
