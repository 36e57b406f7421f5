package simclient

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/okian/skinmate/pkg/logger"
)

const logFilePermission = 0600

// SetupLogging returns a logger writing to stdout and to logFile. An empty
// logFile gets a timestamped name. The returned closer flushes the file.
func SetupLogging(logFile string) (logger.Logger, io.Closer, error) {
	if logFile == "" {
		logFile = "sim_log_" + time.Now().Format("20060102_150405") + ".log"
	}
	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create log file: %w", err)
	}
	l, err := logger.New(io.MultiWriter(os.Stdout, file), logger.FormatText)
	if err != nil {
		_ = file.Close()
		return nil, nil, err
	}
	l.Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	return l, file, nil
}

// ShowHelp prints usage information for the simulation tool.
func ShowHelp() {
	_, _ = os.Stdout.WriteString(`Skinmate Client Simulator
=========================

Drives the analysis API like a fleet of mobile clients: each photo is checked
locally, uploaded, followed over its progress stream, and its report is used
to ask for a mentor match.

Usage:
  go run ./cmd/skinmate-sim [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -jobs int
        Number of photos to submit (default 100)
  -workers int
        Number of concurrent clients (default CPU cores * 2)
  -timeout duration
        Per-request HTTP timeout (default 30s)
  -blurry float
        Fraction of generated photos that are blurred (default 0.2)
  -override
        Upload photos that fail the local quality check
  -seed int
        Photo generator seed (default 1)
  -attempts int
        Attempts per API call (default 3)
  -log string
        Log file for run output (default: sim_log_TIMESTAMP.log)
  -verbose
        Log every progress record
  -help
        Show this help message

Examples:
  # Default run against a local service
  go run ./cmd/skinmate-sim

  # Heavier run where every blurry photo is forced through
  go run ./cmd/skinmate-sim -jobs 2000 -workers 32 -blurry 0.5 -override
`)
}
