package loadgen

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	service "github.com/okian/benchmarks/internal/app"
	"github.com/okian/benchmarks/internal/domain/benchmark"
	"github.com/okian/benchmarks/internal/domain/model"
	"github.com/okian/benchmarks/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0o750
	filePermission      = 0o600
)

const (
	percentageMultiplier = 100
	progressInterval     = time.Second
	listLimit            = 500
)

type benchmarksResponse struct {
	Count      int               `json:"count"`
	Benchmarks []model.Benchmark `json:"benchmarks"`
}

// Run executes the complete load run and returns its statistics.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	stats := &Stats{StartTime: time.Now()}
	log := logger.Get().Named("loadgen")
	client := NewClient(cfg.BaseURL, cfg.Timeout, cfg.MaxRetries)

	log.Info(ctx, "starting load run",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("entries", cfg.NumEntries),
		logger.Int("workers", cfg.Workers),
		logger.Int("samples", cfg.Samples),
		logger.Duration("timeout", cfg.Timeout))

	// Step 1: Check service health
	if err := client.Get(ctx, "/healthz", nil); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Create the template and cohort
	var assessment model.Assessment
	if err := client.Post(ctx, "/assessments", Assessment(), &assessment); err != nil {
		return stats, fmt.Errorf("create assessment: %w", err)
	}
	var cohort model.Cohort
	if err := client.Post(ctx, "/cohorts", model.Cohort{Name: "loadgen " + assessment.ID[:8]}, &cohort); err != nil {
		return stats, fmt.Errorf("create cohort: %w", err)
	}
	log.Info(ctx, "catalog ready", logger.String("assessment_id", assessment.ID), logger.String("cohort_id", cohort.ID))

	// Step 3: Generate and submit entries concurrently
	entries := generateEntries(ctx, cfg.NumEntries, cohort.ID, assessment.ID, stats)
	ids := submitEntries(ctx, cfg, client, entries, stats)
	if len(ids) == 0 {
		return stats, fmt.Errorf("%w: no entry was accepted", ErrVerification)
	}

	// Step 4: Recalculate everything synchronously
	var res benchmark.Result
	if err := client.Post(ctx, "/cohorts/"+cohort.ID+"/benchmarks", nil, &res); err != nil {
		return stats, fmt.Errorf("calculate benchmarks: %w", err)
	}
	stats.BenchmarksCreated, stats.BenchmarksUpdated = res.Created, res.Updated

	// Step 5: List and verify
	var listed benchmarksResponse
	path := fmt.Sprintf("/benchmarks?cohort_id=%s&limit=%d", cohort.ID, listLimit)
	if err := client.Get(ctx, path, &listed); err != nil {
		return stats, fmt.Errorf("list benchmarks: %w", err)
	}
	stats.BenchmarksListed = len(listed.Benchmarks)
	if err := verifyBenchmarks(listed.Benchmarks); err != nil {
		return stats, err
	}

	// Step 6: Normalize a sample of entries
	normalized, err := normalizeSample(ctx, client, ids, cfg.Samples)
	stats.EntriesNormalized = len(normalized)
	if err != nil {
		return stats, err
	}
	if err := verifyNormalized(normalized); err != nil {
		return stats, err
	}

	if cfg.OutputFile != "" {
		if err := saveEntriesToFile(cfg.OutputFile, entries); err != nil {
			log.Warn(ctx, "failed to save entries to file", logger.Error(err))
		}
	}

	stats.Throttled = client.Throttled()
	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, log, stats)
	return stats, nil
}

// submitEntries posts entries with cfg.Workers submitters and returns the
// ids of the stored ones.
func submitEntries(ctx context.Context, cfg *Config, client *Client, entries []service.EntryInput, stats *Stats) []string {
	log := logger.Get().Named("loadgen")
	log.Info(ctx, "submitting entries", logger.Int("entries", len(entries)), logger.Int("workers", cfg.Workers))

	var (
		submitted, successful, failed atomic.Int64
		mu                            sync.Mutex
		ids                           = make([]string, 0, len(entries))
		wg                            sync.WaitGroup
		lastReport                    atomic.Int64
	)

	work := make(chan service.EntryInput, cfg.Workers*2)
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for in := range work {
				var stored model.Entry
				err := client.Post(ctx, "/entries", in, &stored)
				submitted.Add(1)
				if err != nil {
					failed.Add(1)
					if cfg.Verbose {
						log.Warn(ctx, "entry rejected", logger.String("athlete_id", in.AthleteID), logger.Error(err))
					}
				} else {
					successful.Add(1)
					mu.Lock()
					ids = append(ids, stored.ID)
					mu.Unlock()
				}

				now := time.Now().UnixNano()
				last := lastReport.Load()
				if now-last >= int64(progressInterval) && lastReport.CompareAndSwap(last, now) {
					log.Info(ctx, "progress",
						logger.Int("submitted", int(submitted.Load())),
						logger.Int("total", len(entries)),
						logger.Int("successful", int(successful.Load())),
						logger.Int("failed", int(failed.Load())))
				}
			}
		}()
	}

	go func() {
		defer close(work)
		for _, in := range entries {
			select {
			case <-ctx.Done():
				return
			case work <- in:
			}
		}
	}()
	wg.Wait()

	stats.EntriesSubmitted = int(submitted.Load())
	stats.EntriesSuccessful = int(successful.Load())
	stats.EntriesFailed = int(failed.Load())
	log.Info(ctx, "entry submission completed",
		logger.Int("successful", stats.EntriesSuccessful),
		logger.Int("failed", stats.EntriesFailed))
	return ids
}

func normalizeSample(ctx context.Context, client *Client, ids []string, n int) ([]model.Entry, error) {
	if n > len(ids) {
		n = len(ids)
	}
	out := make([]model.Entry, 0, n)
	for _, id := range ids[:n] {
		var e model.Entry
		if err := client.Post(ctx, "/entries/"+id+"/normalize", nil, &e); err != nil {
			return out, fmt.Errorf("normalize entry %s: %w", id, err)
		}
		out = append(out, e)
	}
	return out, nil
}

// saveEntriesToFile writes the generated entries as a JSON array.
func saveEntriesToFile(filename string, entries []service.EntryInput) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal entries: %w", err)
	}
	return os.WriteFile(filename, data, filePermission)
}

func displayFinalStats(ctx context.Context, log logger.Logger, stats *Stats) {
	var successRate, entriesPerSecond float64
	if stats.EntriesSubmitted > 0 {
		successRate = float64(stats.EntriesSuccessful) / float64(stats.EntriesSubmitted) * percentageMultiplier
	}
	if stats.Duration > 0 {
		entriesPerSecond = float64(stats.EntriesSubmitted) / stats.Duration.Seconds()
	}

	log.Info(ctx, "final statistics",
		logger.Int("entriesGenerated", stats.EntriesGenerated),
		logger.Int("entriesSubmitted", stats.EntriesSubmitted),
		logger.Int("entriesSuccessful", stats.EntriesSuccessful),
		logger.Int("entriesFailed", stats.EntriesFailed),
		logger.Int("throttled", stats.Throttled),
		logger.Int("benchmarksCreated", stats.BenchmarksCreated),
		logger.Int("benchmarksUpdated", stats.BenchmarksUpdated),
		logger.Int("benchmarksListed", stats.BenchmarksListed),
		logger.Int("entriesNormalized", stats.EntriesNormalized),
		logger.Duration("duration", stats.Duration),
		logger.Float64("successRate", successRate),
		logger.Float64("entriesPerSecond", entriesPerSecond))
}
