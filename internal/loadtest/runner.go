package loadtest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/okian/jobfit/internal/domain/model"
	"github.com/okian/jobfit/internal/domain/skills"
	"github.com/okian/jobfit/pkg/logger"
)

// File and polling constants.
const (
	directoryPermission = 0o750
	filePermission      = 0o600
	jobPollInterval     = 100 * time.Millisecond
	maxLoggedFailures   = 5
)

// runner carries the shared state of one run.
type runner struct {
	cfg    *Config
	client *client
	table  *skills.Table
	log    logger.Logger

	mu        sync.Mutex
	stats     *Stats
	observed  map[string]struct{}
	published map[string]struct{}
	jobs      []string
	logged    int
}

// Run executes the complete load test. The returned stats are filled in
// even when verification fails.
func Run(ctx context.Context, cfg *Config, table *skills.Table, log logger.Logger) (*Stats, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if table == nil {
		table = skills.Default()
	}
	r := &runner{
		cfg:       cfg,
		client:    newClient(cfg.BaseURL, cfg.Timeout),
		table:     table,
		log:       log,
		stats:     &Stats{StartTime: time.Now()},
		observed:  make(map[string]struct{}),
		published: make(map[string]struct{}),
	}

	log.Info(ctx, "starting jobfit load test",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("requests", cfg.Requests),
		logger.Int("workers", cfg.Workers),
		logger.Int("retrainEvery", cfg.RetrainEvery),
	)

	// Step 1: Check service health
	if err := r.client.health(ctx); err != nil {
		return nil, err
	}

	// Step 2: Record versions published before the run
	if err := r.recordExisting(ctx); err != nil {
		return nil, err
	}

	// Step 3: Bootstrap a model
	if cfg.TrainPerRole > 0 {
		if err := r.bootstrap(ctx); err != nil {
			return nil, fmt.Errorf("bootstrap retrain failed: %w", err)
		}
	}

	// Step 4: Predict concurrently while retraining
	r.predictAll(ctx)

	// Step 5: Wait for queued retrains
	if err := r.waitForJobs(ctx); err != nil {
		return r.finish(ctx), err
	}

	// Step 6: Verify
	stats := r.finish(ctx)
	if stats.Failed > 0 || stats.Violations > 0 || len(stats.Unknown) > 0 {
		return stats, fmt.Errorf("%w: %d failed, %d violations, unknown versions %v",
			ErrVerification, stats.Failed, stats.Violations, stats.Unknown)
	}
	log.Info(ctx, "load test completed successfully")
	return stats, nil
}

func (r *runner) recordExisting(ctx context.Context) error {
	st, err := r.client.modelStatus(ctx)
	if err != nil {
		return fmt.Errorf("read model status: %w", err)
	}
	for _, v := range st.Versions {
		r.published[v.Manifest.Version] = struct{}{}
	}
	return nil
}

func (r *runner) bootstrap(ctx context.Context) error {
	data, err := NewGenerator(r.table, r.cfg.Roles, r.cfg.Seed).Dataset(r.cfg.TrainPerRole)
	if err != nil {
		return err
	}
	version, err := r.client.retrainWait(ctx, "loadtest-bootstrap.csv", data)
	if err != nil {
		return err
	}
	r.published[version] = struct{}{}
	r.log.Info(ctx, "bootstrap model published", logger.String("version", version))
	return nil
}

// predictAll fans the requests out over a worker pool.
func (r *runner) predictAll(ctx context.Context) {
	indexes := make(chan int, r.cfg.Workers*2)
	var wg sync.WaitGroup

	for w := 0; w < r.cfg.Workers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			gen := NewGenerator(r.table, r.cfg.Roles, r.cfg.Seed+uint64(workerID)+1)
			for i := range indexes {
				r.predictOne(ctx, gen)
				if r.cfg.RetrainEvery > 0 && i%r.cfg.RetrainEvery == 0 {
					r.submitOne(ctx, gen, i)
				}
			}
		}(w)
	}

	go func() {
		defer close(indexes)
		for i := 1; i <= r.cfg.Requests; i++ {
			select {
			case <-ctx.Done():
				return
			case indexes <- i:
			}
		}
	}()

	wg.Wait()
}

func (r *runner) predictOne(ctx context.Context, gen *Generator) {
	profile, _ := gen.Profile()
	result, outcome, err := r.client.predict(ctx, profile, r.cfg.TopK)

	var violation error
	if outcome == resultOK {
		violation = verifyPrediction(&result, r.cfg.TopK)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.Requests++
	switch outcome {
	case resultOK:
		r.stats.Successful++
		r.observed[result.ModelVersion] = struct{}{}
		if violation != nil {
			r.stats.Violations++
			r.logFailure(ctx, "ranking violation", violation)
		}
	case resultUnavailable:
		r.stats.Unavailable++
	default:
		r.stats.Failed++
		r.logFailure(ctx, "prediction failed", err)
	}
}

func (r *runner) submitOne(ctx context.Context, gen *Generator, i int) {
	data, err := gen.Dataset(r.cfg.TrainPerRole)
	var (
		info    model.JobInfo
		outcome = resultFailed
	)
	if err == nil {
		key := fmt.Sprintf("loadtest-%d-%d", r.cfg.Seed, i)
		info, outcome, err = r.client.submitRetrain(ctx, key, key+".csv", data)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	switch outcome {
	case resultOK:
		r.stats.RetrainsQueued++
		r.jobs = append(r.jobs, info.ID)
	case resultRejected:
		r.stats.Rejected++
	default:
		r.stats.RetrainsFailed++
		r.logFailure(ctx, "retrain submission failed", err)
	}
}

// logFailure must be called with mu held.
func (r *runner) logFailure(ctx context.Context, msg string, err error) {
	if r.logged >= maxLoggedFailures {
		return
	}
	r.logged++
	r.log.Warn(ctx, msg, logger.Error(err))
}

func (r *runner) waitForJobs(ctx context.Context) error {
	for _, id := range r.jobs {
		for {
			info, err := r.client.job(ctx, id)
			if errors.Is(err, errJobForgotten) {
				r.log.Warn(ctx, "retrain job evicted before it was polled", logger.String("job_id", id))
				break
			}
			if err != nil {
				return fmt.Errorf("poll job %s: %w", id, err)
			}
			if info.Terminal() {
				if info.Status == model.JobSucceeded {
					r.published[info.Version] = struct{}{}
				} else {
					r.stats.RetrainsFailed++
					r.log.Warn(ctx, "retrain job failed", logger.String("job_id", id), logger.String("error", info.Error))
				}
				break
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(jobPollInterval):
			}
		}
	}
	return nil
}

func (r *runner) finish(ctx context.Context) *Stats {
	s := r.stats
	s.EndTime = time.Now()
	s.Duration = s.EndTime.Sub(s.StartTime)
	s.Published = sortedKeys(r.published)
	s.Observed = sortedKeys(r.observed)
	s.Unknown = unknownVersions(r.observed, r.published)

	var rps float64
	if s.Duration > 0 {
		rps = float64(s.Requests) / s.Duration.Seconds()
	}
	r.log.Info(ctx, "final statistics",
		logger.Int("requests", s.Requests),
		logger.Int("successful", s.Successful),
		logger.Int("unavailable", s.Unavailable),
		logger.Int("failed", s.Failed),
		logger.Int("violations", s.Violations),
		logger.Int("retrainsQueued", s.RetrainsQueued),
		logger.Int("retrainsRejected", s.Rejected),
		logger.Int("retrainsFailed", s.RetrainsFailed),
		logger.Strings("observedVersions", s.Observed),
		logger.Duration("duration", s.Duration),
		logger.Float64("requestsPerSecond", rps),
	)

	if r.cfg.OutputFile != "" {
		if err := saveReport(r.cfg.OutputFile, s); err != nil {
			r.log.Warn(ctx, "failed to save report", logger.Error(err))
		}
	}
	return s
}

// saveReport writes stats as indented JSON.
func saveReport(filename string, stats *Stats) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.WriteFile(filename, append(data, '\n'), filePermission); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
