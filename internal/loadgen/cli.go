package loadgen

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/okian/benchmarks/pkg/logger"
)

// SetupLogging sends log output to stdout and, when logFile is set, to
// that file as well. The returned func closes the file.
func SetupLogging(logFile, format string) (func() error, error) {
	if logFile == "" {
		if err := logger.InitWithFormat(format, os.Stdout); err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
		return func() error { return nil }, nil
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, filePermission)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}
	if err := logger.InitWithFormat(format, io.MultiWriter(os.Stdout, file)); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	return file.Close, nil
}

// ShowHelp prints usage information for the load tool.
func ShowHelp(w io.Writer) {
	_, _ = io.WriteString(w, `Benchmark Load Tool
===================

Creates an assessment and a cohort, submits synthetic athlete entries
concurrently, recalculates the cohort's benchmarks, normalizes a sample of
entries and verifies the results.

Usage:
  go run ./cmd/loadgen [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -entries int
        Number of entries to generate and submit (default 2000)
  -workers int
        Number of concurrent submitters (default CPU cores * 2)
  -samples int
        Entries to normalize after the calculation (default 20)
  -retries int
        Retries for throttled or failed requests (default 8)
  -timeout duration
        HTTP request timeout (default 30s)
  -output string
        Write the generated entries to this JSON file
  -log string
        Also write logs to this file
  -log-format string
        text or json (default "text")
  -verbose
        Log every rejected entry
  -help
        Show this help message

Examples:
  go run ./cmd/loadgen -entries 50000 -workers 16 -url http://localhost:8080
`)
}
