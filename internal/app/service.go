// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/okian/jobfit/internal/adapters/dataset"
	jobqueue "github.com/okian/jobfit/internal/adapters/mq/queue"
	"github.com/okian/jobfit/internal/adapters/mq/worker"
	"github.com/okian/jobfit/internal/adapters/repository"
	"github.com/okian/jobfit/internal/domain/artifact"
	"github.com/okian/jobfit/internal/domain/dedupe"
	"github.com/okian/jobfit/internal/domain/model"
	"github.com/okian/jobfit/internal/domain/normalize"
	"github.com/okian/jobfit/internal/domain/scoring"
	"github.com/okian/jobfit/internal/domain/skills"
	"github.com/okian/jobfit/internal/domain/training"
	"github.com/okian/jobfit/pkg/logger"
	"github.com/okian/jobfit/pkg/metrics"
)

// Default service configuration constants.
const (
	defaultRetrainTimeout = 10 * time.Minute
	defaultQueueSize      = 16
	defaultJobHistorySize = 100
	defaultDedupeSize     = 1000
	workerShutdownTimeout = 30 * time.Second
	errStoppedBeforeRun   = "service stopped before the job ran"
)

// Service implements the API dependencies for the prediction system.
//
// Predictions are fully concurrent and load the active artifact set on
// every call. Retraining is exclusive: synchronous calls and queued jobs
// share one slot, so at most one pipeline stages and publishes at a time.
type Service struct {
	mu sync.RWMutex

	// Core components
	store      repository.Store
	normalizer *normalize.Normalizer
	blender    *scoring.Blender
	trainer    *training.Trainer

	// Retraining
	retrainSlot    chan struct{}
	retrainTimeout time.Duration
	queue          *jobqueue.InMemoryQueue
	worker         *worker.InMemoryWorker
	jobs           *jobRegistry
	keys           dedupe.Index
	// submitMu makes claiming a key, tracking the job and queueing it one step.
	submitMu sync.Mutex
	cancelJobs     context.CancelFunc

	// Configuration
	queueSize      int
	jobHistorySize int
	dedupeSize     int
	now            func() time.Time

	// State
	started bool

	// Counters
	predictions      atomic.Int64
	predictionErrors atomic.Int64
	retrainsOK       atomic.Int64
	retrainsFailed   atomic.Int64

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithNormalizer sets the profile normalizer used at inference time.
// Training uses the trainer's own normalizer; pass the same one to both.
func WithNormalizer(n *normalize.Normalizer) Option {
	return func(s *Service) {
		if n != nil {
			s.normalizer = n
		}
	}
}

// WithBlender sets the confidence blender.
func WithBlender(b *scoring.Blender) Option {
	return func(s *Service) {
		if b != nil {
			s.blender = b
		}
	}
}

// WithTrainer sets the retraining pipeline.
func WithTrainer(t *training.Trainer) Option {
	return func(s *Service) {
		if t != nil {
			s.trainer = t
		}
	}
}

// WithRetrainTimeout bounds every retraining run. Zero disables the bound.
func WithRetrainTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.retrainTimeout = d
		}
	}
}

// WithQueueSize sets how many retraining jobs may wait.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithJobHistorySize sets how many jobs are remembered for status queries.
func WithJobHistorySize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.jobHistorySize = size
		}
	}
}

// WithDedupeSize bounds how many idempotency keys are remembered.
// size <= 0 remembers every key.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		s.dedupeSize = size
	}
}

// WithClock sets the time source for job timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a Service over an artifact store.
func New(store repository.Store, opts ...Option) *Service {
	s := &Service{
		store:          store,
		retrainSlot:    make(chan struct{}, 1),
		retrainTimeout: defaultRetrainTimeout,
		queueSize:      defaultQueueSize,
		jobHistorySize: defaultJobHistorySize,
		dedupeSize:     defaultDedupeSize,
		now:            time.Now,
		logger:         logger.GetOrNop().Named("service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.normalizer == nil {
		s.normalizer = normalize.New()
	}
	if s.blender == nil {
		s.blender = scoring.NewBlender(skills.Default())
	}
	if s.trainer == nil {
		s.trainer = training.New(training.WithNormalizer(s.normalizer), training.WithLogger(s.logger.Named("training")))
	}
	s.jobs = newJobRegistry(s.jobHistorySize, s.now)
	s.keys = dedupe.NewInMemoryIndex(dedupe.WithMaxSize(s.dedupeSize))
	return s
}

// Start launches the retraining worker. Jobs outlive ctx; they are
// cancelled by Stop.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	jobCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancelJobs = cancel
	s.queue = jobqueue.NewInMemoryQueue(jobqueue.WithCapacity(s.queueSize))
	s.worker = worker.NewInMemoryWorker(s.queue, worker.ProcessorFunc(s.process),
		worker.WithLogger(s.logger.Named("worker")),
	)
	go s.worker.Run(jobCtx)

	s.started = true
	s.logger.Info(ctx, "prediction service started",
		logger.Int("queueSize", s.queueSize),
		logger.Duration("retrainTimeout", s.retrainTimeout),
	)
	return nil
}

// Stop cancels the running job, fails the queued ones and closes the store.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping prediction service...")

	s.cancelJobs()
	shutdownCtx, cancel := context.WithTimeout(ctx, workerShutdownTimeout)
	defer cancel()
	if err := s.worker.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn(ctx, "retrain worker did not stop in time", logger.Error(err))
	}
	_ = s.queue.Close()
	for job := range s.queue.Dequeue() {
		s.jobs.finish(job.ID, "", errors.New(errStoppedBeforeRun))
	}

	if err := s.store.Close(); err != nil {
		s.logger.Warn(ctx, "closing artifact store", logger.Error(err))
	}

	s.started = false
	s.logger.Info(ctx, "prediction service stopped")
}

// Predict ranks job roles for a candidate against the active artifact set.
// topK <= 0 uses the configured default. It fails only when no consistent
// artifact set can be loaded; profile problems resolve to defaults.
func (s *Service) Predict(ctx context.Context, profile model.CandidateProfile, topK int) (model.PredictionResult, error) { //nolint:gocritic // profiles are passed by value
	start := time.Now()
	result, err := s.predict(ctx, profile, topK)
	if err != nil {
		s.predictionErrors.Add(1)
		outcome := metrics.OutcomeError
		if errors.Is(err, repository.ErrArtifactUnavailable) {
			outcome = metrics.OutcomeArtifactUnavailable
		}
		metrics.RecordPrediction(outcome, time.Since(start))
		metrics.RecordErrorByComponent("service", outcome)
		return model.PredictionResult{}, err
	}

	s.predictions.Add(1)
	metrics.RecordPrediction(metrics.OutcomeOK, time.Since(start))
	if len(result.Predictions) > 0 {
		metrics.RecordTopConfidence(result.Predictions[0].Confidence)
	}
	s.logger.Debug(ctx, "prediction served",
		logger.String("version", result.ModelVersion),
		logger.Int("roles", len(result.Predictions)),
		logger.Strings("fallbacks", result.Fallbacks),
		logger.Duration("took", time.Since(start)),
	)
	return result, nil
}

func (s *Service) predict(ctx context.Context, profile model.CandidateProfile, topK int) (model.PredictionResult, error) { //nolint:gocritic // profiles are passed by value
	set, err := s.store.Load(ctx)
	if err != nil {
		return model.PredictionResult{}, err
	}

	normalized := s.normalizer.Normalize(profile)
	vec, err := set.Schema.Vectorize(&normalized,
		normalize.CleanSet(profile.Skills),
		normalize.CleanSet(profile.Certifications),
		set.Encoders(),
	)
	if err != nil {
		return model.PredictionResult{}, unavailable(set, err)
	}
	probs, err := set.Classifier.PredictProba(vec)
	if err != nil {
		return model.PredictionResult{}, unavailable(set, err)
	}
	ranked, err := s.blender.Rank(scoring.Input{
		Roles:         set.Labels.Classes,
		Probabilities: probs,
		Skills:        profile.Skills,
	}, topK)
	if err != nil {
		return model.PredictionResult{}, unavailable(set, err)
	}

	return model.PredictionResult{
		ModelVersion: set.Manifest.Version,
		Predictions:  ranked,
		Fallbacks:    normalized.Fallbacks.Fields(),
	}, nil
}

// unavailable reports a loaded set that cannot serve a prediction.
func unavailable(set *artifact.Set, err error) error {
	return fmt.Errorf("%w: version %s: %w", repository.ErrArtifactUnavailable, set.Manifest.Version, err)
}

// Retrain reads the dataset, trains a new artifact set and publishes it.
// It waits for any retraining already in progress. On failure, timeout or
// cancellation the active set is left untouched.
func (s *Service) Retrain(ctx context.Context, src model.DatasetSource) (artifact.Manifest, error) {
	start := time.Now()
	if s.retrainTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.retrainTimeout)
		defer cancel()
	}

	select {
	case s.retrainSlot <- struct{}{}:
	case <-ctx.Done():
		return artifact.Manifest{}, s.retrainFailed(ctx, src, start, fmt.Errorf("waiting for retrain slot: %w", ctx.Err()))
	}
	defer func() { <-s.retrainSlot }()

	s.logger.Info(ctx, "retraining started", logger.String("source", src.Describe()))

	rows, err := dataset.Load(ctx, src)
	if err != nil {
		return artifact.Manifest{}, s.retrainFailed(ctx, src, start, err)
	}
	metrics.UpdateRetrainDatasetRows(len(rows))

	set, err := s.trainer.Fit(ctx, rows)
	if err != nil {
		return artifact.Manifest{}, s.retrainFailed(ctx, src, start, err)
	}
	if err := s.store.Publish(ctx, set); err != nil {
		return artifact.Manifest{}, s.retrainFailed(ctx, src, start, err)
	}

	s.retrainsOK.Add(1)
	metrics.RecordRetrain(metrics.OutcomeOK, time.Since(start))
	s.logger.Info(ctx, "retraining finished",
		logger.String("version", set.Manifest.Version),
		logger.Int("rows", set.Manifest.Rows),
		logger.Int("features", set.Manifest.Features),
		logger.Duration("took", time.Since(start)),
	)
	return set.Manifest, nil
}

func (s *Service) retrainFailed(ctx context.Context, src model.DatasetSource, start time.Time, err error) error {
	s.retrainsFailed.Add(1)
	outcome := retrainOutcome(err)
	metrics.RecordRetrain(outcome, time.Since(start))
	metrics.RecordErrorByComponent("retrain", outcome)
	s.logger.Error(ctx, "retraining failed",
		logger.String("source", src.Describe()),
		logger.String("outcome", outcome),
		logger.Duration("took", time.Since(start)),
		logger.Error(err),
	)
	return err
}

func retrainOutcome(err error) string {
	var sve *dataset.SchemaValidationError
	switch {
	case errors.As(err, &sve), errors.Is(err, training.ErrTooFewClasses):
		return metrics.OutcomeSchemaError
	case errors.Is(err, context.DeadlineExceeded):
		return metrics.OutcomeTimeout
	default:
		return metrics.OutcomeError
	}
}

// SubmitRetrain queues a retraining job and returns its initial state.
// A non-empty key makes the call idempotent: while the job first submitted
// under key is still tracked, its state is returned and nothing is queued.
// A full queue fails with queue.ErrFull.
func (s *Service) SubmitRetrain(ctx context.Context, src model.DatasetSource, key string) (model.JobInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return model.JobInfo{}, ErrNotStarted
	}

	s.submitMu.Lock()
	defer s.submitMu.Unlock()

	job := model.RetrainJob{ID: uuid.NewString(), Source: src, SubmittedAt: s.now().UTC()}
	if key != "" {
		if existing, seen := s.keys.Claim(ctx, key, job.ID); seen {
			if info, ok := s.jobs.get(existing); ok {
				s.logger.Debug(ctx, "duplicate retrain submission",
					logger.String("job_id", existing),
					logger.String("idempotency_key", key),
				)
				return info, nil
			}
			// The bound job was forgotten; rebind the key to the new one.
			s.keys.Release(ctx, key)
			s.keys.Claim(ctx, key, job.ID)
		}
	}

	s.jobs.add(job)
	if err := s.queue.Enqueue(ctx, job); err != nil {
		s.jobs.remove(job.ID)
		if key != "" {
			s.keys.Release(ctx, key)
		}
		return model.JobInfo{}, fmt.Errorf("submit retrain job: %w", err)
	}

	info, _ := s.jobs.get(job.ID)
	s.logger.Info(ctx, "retrain job queued",
		logger.String("job_id", job.ID),
		logger.String("source", src.Describe()),
	)
	return info, nil
}

// process runs one queued job on the worker. The job always reaches a
// terminal state, even when the pipeline panics.
func (s *Service) process(ctx context.Context, job model.RetrainJob) (err error) {
	s.jobs.start(job.ID)
	var version string
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrRetrainPanicked, r)
			s.retrainsFailed.Add(1)
			metrics.RecordErrorByComponent("retrain", "panic")
			s.logger.Error(ctx, "retrain job panicked",
				logger.String("job_id", job.ID),
				logger.Any("panic", r),
			)
		}
		s.jobs.finish(job.ID, version, err)
	}()

	manifest, err := s.Retrain(ctx, job.Source)
	version = manifest.Version
	return err
}

// Job returns the state of a submitted retraining job.
func (s *Service) Job(id string) (model.JobInfo, error) {
	info, ok := s.jobs.get(id)
	if !ok {
		return model.JobInfo{}, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return info, nil
}

// ModelStatus reports which version is active and which are kept.
func (s *Service) ModelStatus(ctx context.Context) (repository.Status, error) {
	versions, err := s.store.Versions(ctx)
	if err != nil {
		return repository.Status{}, err
	}
	status := repository.Status{Versions: versions}
	for i := range versions {
		if versions[i].Active {
			status.Active = &versions[i].Manifest
			break
		}
	}
	return status, nil
}

// Rollback makes a previously published version active again. It takes
// the retraining slot so it never interleaves with a publish.
func (s *Service) Rollback(ctx context.Context, version string) error {
	select {
	case s.retrainSlot <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-s.retrainSlot }()

	if err := s.store.Rollback(ctx, version); err != nil {
		metrics.RecordErrorByComponent("service", "rollback")
		return err
	}
	s.logger.Info(ctx, "model rolled back", logger.String("version", version))
	return nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":          s.started,
		"queueSize":        s.queueSize,
		"predictions":      s.predictions.Load(),
		"predictionErrors": s.predictionErrors.Load(),
		"retrainsOK":       s.retrainsOK.Load(),
		"retrainsFailed":   s.retrainsFailed.Load(),
		"jobsTracked":      s.jobs.len(),
		"idempotencyKeys":  s.keys.Size(),
	}
	if s.started {
		stats["queueLength"] = s.queue.Len()
	}
	return stats
}
