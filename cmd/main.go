package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/okian/jobfit/internal/adapters/dataset"
	"github.com/okian/jobfit/internal/adapters/http/api"
	"github.com/okian/jobfit/internal/adapters/http/swagger"
	"github.com/okian/jobfit/internal/adapters/repository"
	app "github.com/okian/jobfit/internal/app"
	"github.com/okian/jobfit/internal/config"
	"github.com/okian/jobfit/internal/domain/forest"
	"github.com/okian/jobfit/internal/domain/model"
	"github.com/okian/jobfit/internal/domain/normalize"
	"github.com/okian/jobfit/internal/domain/scoring"
	"github.com/okian/jobfit/internal/domain/skills"
	"github.com/okian/jobfit/internal/domain/training"
	"github.com/okian/jobfit/pkg/logger"
	"github.com/okian/jobfit/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTP server timeout constants.
const (
	readTimeout               = 30 * time.Second
	writeTimeout              = 15 * time.Minute // synchronous retrains hold the response
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// Disable default Go metrics collection to avoid duplicate metrics
	// We collect our own custom system metrics instead
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		// Use fmt for initialization errors since logger isn't available yet
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.Init(logger.WithJSON(strings.EqualFold(cfg.LogFormat, "json"))); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	loggerInstance := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		loggerInstance.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	if err := run(ctx, cfg, loggerInstance); err != nil {
		loggerInstance.Error(ctx, "jobfit stopped with error", logger.Error(err))
		os.Exit(1)
	}
}

// run serves the API until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	svc, err := newService(ctx, cfg, log)
	if err != nil {
		return err
	}
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer svc.Stop()

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	mux, err := newMux(ctx, cfg, svc)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server",
			logger.String("addr", cfg.Addr),
			logger.String("artifactDir", cfg.ArtifactDir),
			logger.Bool("objectSource", cfg.MinIOEnabled()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}
	log.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
	return nil
}

// newService wires the artifact store and prediction pipeline from cfg.
func newService(ctx context.Context, cfg *config.Config, log logger.Logger) (*app.Service, error) {
	table := skills.Default()
	if cfg.SkillsFile != "" {
		loaded, err := skills.LoadFile(cfg.SkillsFile)
		if err != nil {
			return nil, fmt.Errorf("load skills table: %w", err)
		}
		table = loaded
	}

	store, err := repository.NewFSStore(ctx, cfg.ArtifactDir,
		repository.WithCacheSize(cfg.ArtifactCacheSize),
		repository.WithRetention(cfg.ArtifactRetention),
		repository.WithLogger(log.Named("store")),
	)
	if err != nil {
		return nil, fmt.Errorf("open artifact store: %w", err)
	}

	normalizer := normalize.New(normalize.WithScale(normalize.Scale{
		PercentMax:   cfg.CGPAPercentMax,
		FivePointMax: cfg.CGPAFivePointMax,
		FourPointMax: cfg.CGPAFourPointMax,
		FourPointMin: cfg.CGPAFourPointMin,
	}))

	return app.New(store,
		app.WithLogger(log.Named("service")),
		app.WithNormalizer(normalizer),
		app.WithBlender(scoring.NewBlender(table,
			scoring.WithWeights(cfg.ConfidenceSkillWeight, cfg.ConfidenceModelWeight),
			scoring.WithTopK(cfg.TopK),
		)),
		app.WithTrainer(newTrainer(cfg, normalizer, log)),
		app.WithRetrainTimeout(cfg.RetrainTimeout()),
		app.WithQueueSize(cfg.RetrainQueueSize),
		app.WithJobHistorySize(cfg.JobHistorySize),
		app.WithDedupeSize(cfg.DedupeSize),
	), nil
}

func newTrainer(cfg *config.Config, normalizer *normalize.Normalizer, log logger.Logger) *training.Trainer {
	return training.New(
		training.WithNormalizer(normalizer),
		training.WithLogger(log.Named("trainer")),
		training.WithForestOptions(
			forest.WithTrees(cfg.ForestTrees),
			forest.WithMaxDepth(cfg.ForestMaxDepth),
			forest.WithMinSamplesSplit(cfg.ForestMinSamplesSplit),
			forest.WithSeed(cfg.ForestSeed),
		),
	)
}

// newMux registers the API and documentation routes.
func newMux(ctx context.Context, cfg *config.Config, svc *app.Service) (*http.ServeMux, error) {
	opts := []api.Option{api.WithMaxUploadBytes(cfg.MaxUploadBytes)}
	if cfg.MinIOEnabled() {
		objects, err := objectSource(cfg)
		if err != nil {
			return nil, err
		}
		opts = append(opts, api.WithObjectSource(objects))
	}

	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(svc, svc, opts...).Register(ctx, mux)
	return mux, nil
}

// objectSource resolves dataset keys in the configured MinIO bucket.
func objectSource(cfg *config.Config) (api.ObjectSource, error) {
	client, err := dataset.NewMinIOClient(dataset.MinIOConfig{
		Endpoint:  cfg.MinIOEndpoint,
		AccessKey: cfg.MinIOAccessKey,
		SecretKey: cfg.MinIOSecretKey,
		Bucket:    cfg.MinIOBucket,
		UseSSL:    cfg.MinIOUseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	return func(key string) (model.DatasetSource, error) {
		key = strings.TrimPrefix(strings.TrimSpace(key), "/")
		if key == "" {
			return nil, errors.New("object key must not be empty")
		}
		return &dataset.MinIOSource{Client: client, Bucket: cfg.MinIOBucket, Object: key}, nil
	}, nil
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater starts a background goroutine that updates service metrics.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)

	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

// updateServiceMetrics updates service-level metrics.
func updateServiceMetrics(svc *app.Service) {
	stats := svc.GetStats()

	if queueLen, ok := stats["queueLength"].(int); ok {
		metrics.UpdateQueueSize(queueLen)
	}
	if queueSize, ok := stats["queueSize"].(int); ok {
		metrics.UpdateQueueCapacity(queueSize)
	}
}
