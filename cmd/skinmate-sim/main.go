package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/skinmate/internal/domain/retry"
	"github.com/okian/skinmate/internal/simclient"
)

// Default configuration constants.
const (
	defaultNumJobs     = 100
	defaultWorkers     = 2 // multiplier for runtime.NumCPU()
	defaultTimeout     = 30 * time.Second
	defaultBlurryRatio = 0.2
	defaultRunTimeout  = 10 * time.Minute
)

func main() {
	var (
		baseURL  = flag.String("url", "http://localhost:9080", "Base URL of the service")
		numJobs  = flag.Int("jobs", defaultNumJobs, "Number of photos to submit")
		workers  = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent clients")
		timeout  = flag.Duration("timeout", defaultTimeout, "Per-request HTTP timeout")
		blurry   = flag.Float64("blurry", defaultBlurryRatio, "Fraction of generated photos that are blurred")
		override = flag.Bool("override", false, "Upload photos that fail the local quality check")
		seed     = flag.Int64("seed", 1, "Photo generator seed")
		attempts = flag.Int("attempts", retry.DefaultMaxAttempts, "Attempts per API call")
		logFile  = flag.String("log", "", "Log file for run output (default: sim_log_TIMESTAMP.log)")
		verbose  = flag.Bool("verbose", false, "Log every progress record")
		help     = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		simclient.ShowHelp()
		return
	}

	log, closer, err := simclient.SetupLogging(*logFile)
	if err != nil {
		_, _ = os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = closer.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	cfg := &simclient.Config{
		BaseURL:     *baseURL,
		NumJobs:     *numJobs,
		Workers:     *workers,
		Timeout:     *timeout,
		BlurryRatio: *blurry,
		Override:    *override,
		Seed:        *seed,
		Verbose:     *verbose,
	}
	client := simclient.NewClient(cfg.BaseURL, cfg.Timeout,
		simclient.WithLogger(log),
		simclient.WithRetry(retry.WithMaxAttempts(*attempts)))

	if _, err := simclient.Run(ctx, cfg, client, log); err != nil {
		_, _ = os.Stderr.WriteString("Simulation failed: " + err.Error() + "\n")
		cancel()
		_ = closer.Close()
		os.Exit(1)
	}
}
