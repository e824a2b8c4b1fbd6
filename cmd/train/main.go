// Command train fits a model from a dataset file or object and publishes it
// to the artifact store used by the prediction server.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/okian/jobfit/internal/adapters/dataset"
	"github.com/okian/jobfit/internal/adapters/repository"
	app "github.com/okian/jobfit/internal/app"
	"github.com/okian/jobfit/internal/config"
	"github.com/okian/jobfit/internal/domain/forest"
	"github.com/okian/jobfit/internal/domain/model"
	"github.com/okian/jobfit/internal/domain/normalize"
	"github.com/okian/jobfit/internal/domain/training"
	"github.com/okian/jobfit/pkg/logger"
)

var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := logger.Init(logger.WithWriter(os.Stderr)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := run(ctx, os.Args[1:], os.Stdout, logger.Get()); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		os.Stderr.WriteString("train: " + err.Error() + "\n")
		os.Exit(1)
	}
}

// run parses args, trains once and writes the published manifest to out.
func run(ctx context.Context, args []string, out io.Writer, log logger.Logger) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	flags := pflag.NewFlagSet("train", pflag.ContinueOnError)
	datasetPath := flags.StringP("dataset", "d", "", "Path to a CSV dataset")
	object := flags.StringP("object", "o", "", "Dataset object key in the configured MinIO bucket")
	artifactDir := flags.StringP("artifacts", "a", cfg.ArtifactDir, "Artifact store directory")
	trees := flags.IntP("trees", "t", cfg.ForestTrees, "Number of trees in the forest")
	seed := flags.Uint64("seed", cfg.ForestSeed, "Random seed")
	timeout := flags.Duration("timeout", cfg.RetrainTimeout(), "Training time limit, 0 for none")
	logLevel := flags.String("log-level", cfg.LogLevel, "Log level: debug, info, warn, error")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if err := logger.SetLevelString(*logLevel); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}

	src, err := source(cfg, *datasetPath, *object)
	if err != nil {
		return err
	}

	store, err := repository.NewFSStore(ctx, *artifactDir,
		repository.WithRetention(cfg.ArtifactRetention),
		repository.WithLogger(log.Named("store")),
	)
	if err != nil {
		return fmt.Errorf("open artifact store: %w", err)
	}

	normalizer := normalize.New(normalize.WithScale(normalize.Scale{
		PercentMax:   cfg.CGPAPercentMax,
		FivePointMax: cfg.CGPAFivePointMax,
		FourPointMax: cfg.CGPAFourPointMax,
		FourPointMin: cfg.CGPAFourPointMin,
	}))
	svc := app.New(store,
		app.WithLogger(log.Named("service")),
		app.WithNormalizer(normalizer),
		app.WithRetrainTimeout(*timeout),
		app.WithTrainer(training.New(
			training.WithNormalizer(normalizer),
			training.WithLogger(log.Named("trainer")),
			training.WithForestOptions(
				forest.WithTrees(*trees),
				forest.WithMaxDepth(cfg.ForestMaxDepth),
				forest.WithMinSamplesSplit(cfg.ForestMinSamplesSplit),
				forest.WithSeed(*seed),
			),
		)),
	)
	defer func() { _ = store.Close() }()

	manifest, err := svc.Retrain(ctx, src)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(manifest)
}

// source picks exactly one of the file and object inputs.
func source(cfg *config.Config, path, object string) (model.DatasetSource, error) {
	switch {
	case path != "" && object != "":
		return nil, fmt.Errorf("%w: --dataset and --object are mutually exclusive", errUsage)
	case path != "":
		return dataset.FileSource{Path: path}, nil
	case object != "":
		if !cfg.MinIOEnabled() {
			return nil, fmt.Errorf("%w: --object needs JOBFIT_MINIO_ENDPOINT and JOBFIT_MINIO_BUCKET", errUsage)
		}
		client, err := dataset.NewMinIOClient(dataset.MinIOConfig{
			Endpoint:  cfg.MinIOEndpoint,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			Bucket:    cfg.MinIOBucket,
			UseSSL:    cfg.MinIOUseSSL,
		})
		if err != nil {
			return nil, err
		}
		return &dataset.MinIOSource{Client: client, Bucket: cfg.MinIOBucket, Object: object}, nil
	default:
		return nil, fmt.Errorf("%w: one of --dataset or --object is required", errUsage)
	}
}
