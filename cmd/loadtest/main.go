// Command loadtest drives a running jobfit service with generated profiles
// while retraining it, then verifies every ranking it received.
package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/okian/jobfit/internal/domain/skills"
	"github.com/okian/jobfit/internal/loadtest"
	"github.com/okian/jobfit/pkg/logger"
)

const defaultTestTimeout = 10 * time.Minute

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		os.Stderr.WriteString("Test failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := pflag.NewFlagSet("loadtest", pflag.ContinueOnError)
	cfg := &loadtest.Config{}
	flags.StringVar(&cfg.BaseURL, "url", "http://localhost:9080", "Base URL of the service")
	flags.IntVarP(&cfg.Requests, "requests", "n", loadtest.DefaultRequests, "Number of prediction requests")
	flags.IntVarP(&cfg.Workers, "workers", "w", loadtest.DefaultWorkers, "Number of concurrent workers")
	flags.DurationVar(&cfg.Timeout, "timeout", loadtest.DefaultTimeout, "HTTP request timeout")
	flags.IntVar(&cfg.TopK, "top-k", 0, "top_k sent with each prediction, 0 for the server default")
	flags.IntVar(&cfg.Roles, "roles", loadtest.DefaultRoles, "Number of job roles in generated datasets")
	flags.IntVar(&cfg.TrainPerRole, "train-per-role", loadtest.DefaultTrainPerRole, "Rows per role in generated datasets, 0 skips the bootstrap retrain")
	flags.IntVar(&cfg.RetrainEvery, "retrain-every", 0, "Queue a retrain after every N predictions, 0 disables")
	flags.Uint64Var(&cfg.Seed, "seed", uint64(time.Now().UnixNano()), "Seed for generated profiles")
	flags.StringVarP(&cfg.OutputFile, "output", "o", "", "Write a JSON report to this file")
	skillsFile := flags.String("skills", "", "Skill table YAML used to generate profiles (default: built-in table)")
	testTimeout := flags.Duration("test-timeout", defaultTestTimeout, "Overall time limit")
	verbose := flags.BoolP("verbose", "v", false, "Enable debug logging")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if *verbose {
		_ = logger.SetLevelString("debug")
	}

	table := skills.Default()
	if *skillsFile != "" {
		loaded, err := skills.LoadFile(*skillsFile)
		if err != nil {
			return err
		}
		table = loaded
	}

	ctx, cancel := context.WithTimeout(context.Background(), *testTimeout)
	defer cancel()

	_, err := loadtest.Run(ctx, cfg, table, logger.Named("loadtest"))
	return err
}
