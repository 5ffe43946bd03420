package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/benchmarks/internal/loadgen"
	"github.com/okian/benchmarks/pkg/logger"
)

// Default configuration constants.
const (
	defaultNumEntries = 2000
	defaultSamples    = 20
	defaultRetries    = 8
	defaultWorkers    = 2 // multiplier for runtime.NumCPU()
	defaultTimeout    = 30 * time.Second
	defaultRunTimeout = 10 * time.Minute
)

func main() {
	var (
		baseURL    = flag.String("url", "http://localhost:9080", "Base URL of the service")
		numEntries = flag.Int("entries", defaultNumEntries, "Number of entries to generate and submit")
		workers    = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent submitters")
		samples    = flag.Int("samples", defaultSamples, "Entries to normalize after the calculation")
		retries    = flag.Uint64("retries", defaultRetries, "Retries for throttled or failed requests")
		timeout    = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		outputFile = flag.String("output", "", "Write the generated entries to this JSON file")
		logFile    = flag.String("log", "", "Also write logs to this file")
		logFormat  = flag.String("log-format", logger.FormatText, "text or json")
		verbose    = flag.Bool("verbose", false, "Log every rejected entry")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		loadgen.ShowHelp(os.Stdout)
		return
	}

	closeLog, err := loadgen.SetupLogging(*logFile, *logFormat)
	if err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = closeLog() }()

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	cfg := &loadgen.Config{
		BaseURL:    *baseURL,
		NumEntries: *numEntries,
		Workers:    *workers,
		Samples:    *samples,
		Timeout:    *timeout,
		MaxRetries: *retries,
		OutputFile: *outputFile,
		Verbose:    *verbose,
	}
	if _, err := loadgen.Run(ctx, cfg); err != nil {
		logger.Get().Error(ctx, "load run failed", logger.Error(err))
		cancel()
		os.Exit(1)
	}
}
