// Package scanner performs the batch pass over the input directory: every
// unprocessed volume file or series directory is run through the pipeline
// once, with per-file failure isolation and a bounded worker pool.
package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/schollz/progressbar/v3"

	"neuroproc/internal/imaging"
	"neuroproc/internal/inflight"
	"neuroproc/internal/logging"
	"neuroproc/internal/markers"
	"neuroproc/internal/pipeline"
	"neuroproc/internal/readiness"
)

// Processor runs the pipeline for one file. Satisfied by *pipeline.Runner.
type Processor interface {
	Process(ctx context.Context, record pipeline.FileRecord) (pipeline.Result, error)
}

// Summary reports the outcome of one batch pass.
type Summary struct {
	Succeeded int
	Failed    int
	Skipped   int
}

// Total returns the number of files considered.
func (s Summary) Total() int {
	return s.Succeeded + s.Failed + s.Skipped
}

// Scanner walks the input directory and processes eligible files.
type Scanner struct {
	InputDir     string
	Workers      int
	ShowProgress bool

	Processor Processor
	Markers   *markers.Store
	InFlight  *inflight.Set
	Readiness *readiness.Detector
	Logger    *slog.Logger
}

// Run executes one batch pass and returns its summary. Individual file
// failures are counted, not propagated; only an unreadable input
// directory fails the pass itself.
func (s *Scanner) Run(ctx context.Context) (Summary, error) {
	logger := s.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	log := logger.With(logging.String(logging.FieldComponent, "scanner"))

	records, err := s.discover()
	if err != nil {
		return Summary{}, err
	}
	log.Info("batch pass starting",
		logging.String("input_dir", s.InputDir),
		logging.Int("files", len(records)),
		logging.Int("workers", s.workerCount()))

	var bar *progressbar.ProgressBar
	if s.ShowProgress && len(records) > 0 {
		bar = progressbar.Default(int64(len(records)), "processing")
	}

	var mu sync.Mutex
	var summary Summary
	record := func(update func(*Summary)) {
		mu.Lock()
		update(&summary)
		mu.Unlock()
		if bar != nil {
			_ = bar.Add(1)
		}
	}

	jobs := make(chan pipeline.FileRecord)
	var wg sync.WaitGroup
	for i := 0; i < s.workerCount(); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for rec := range jobs {
				switch s.processOne(ctx, log, rec) {
				case outcomeSucceeded:
					record(func(sum *Summary) { sum.Succeeded++ })
				case outcomeFailed:
					record(func(sum *Summary) { sum.Failed++ })
				case outcomeSkipped:
					record(func(sum *Summary) { sum.Skipped++ })
				}
			}
		}()
	}

	for _, rec := range records {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return summary, ctx.Err()
		case jobs <- rec:
		}
	}
	close(jobs)
	wg.Wait()

	if bar != nil {
		_ = bar.Finish()
	}
	log.Info("batch pass complete",
		logging.Int("succeeded", summary.Succeeded),
		logging.Int("failed", summary.Failed),
		logging.Int("skipped", summary.Skipped))
	return summary, nil
}

type outcome int

const (
	outcomeSucceeded outcome = iota
	outcomeFailed
	outcomeSkipped
)

func (s *Scanner) processOne(ctx context.Context, log *slog.Logger, rec pipeline.FileRecord) outcome {
	if !s.InFlight.TryAcquire(rec.Path) {
		log.Debug("already in flight", logging.String(logging.FieldFile, rec.Name))
		return outcomeSkipped
	}
	defer s.InFlight.Release(rec.Path)

	if s.Markers.HasOutcome(rec.MarkerName()) {
		log.Debug("outcome already recorded",
			logging.String(logging.FieldFile, rec.Name),
			logging.String("outcome", s.Markers.Outcome(rec.MarkerName()).String()))
		return outcomeSkipped
	}

	if s.Readiness != nil {
		result, err := s.Readiness.Wait(ctx, rec.Path)
		if err != nil {
			log.Warn("readiness wait interrupted",
				logging.String(logging.FieldFile, rec.Name),
				logging.Error(err))
			return outcomeSkipped
		}
		if result != readiness.Ready {
			// The file never stabilized. Proceed anyway; a partial
			// file fails the load stage and gets an error marker,
			// which is a diagnosable outcome rather than a silent
			// stall.
			log.Warn("file never stabilized, processing anyway",
				logging.String(logging.FieldFile, rec.Name))
		}
	}

	if _, err := s.Processor.Process(ctx, rec); err != nil {
		return outcomeFailed
	}
	return outcomeSucceeded
}

// discover lists the volume files and series directories directly under
// the input directory, sorted by name. Hidden entries are never eligible,
// which keeps markers and partial temp files out of the batch.
func (s *Scanner) discover() ([]pipeline.FileRecord, error) {
	entries, err := os.ReadDir(s.InputDir)
	if err != nil {
		return nil, fmt.Errorf("read input directory: %w", err)
	}

	var records []pipeline.FileRecord
	for _, entry := range entries {
		name := entry.Name()
		if len(name) > 0 && name[0] == '.' {
			continue
		}
		path := filepath.Join(s.InputDir, name)
		if entry.IsDir() {
			if !imaging.IsSeriesDir(path) {
				continue
			}
			records = append(records, pipeline.FileRecord{Path: path, Name: name, Kind: pipeline.KindSeries})
			continue
		}
		if !imaging.IsVolumeFile(name) {
			continue
		}
		records = append(records, pipeline.FileRecord{Path: path, Name: name, Kind: pipeline.KindVolume})
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Name < records[j].Name })
	return records, nil
}

func (s *Scanner) workerCount() int {
	if s.Workers < 1 {
		return 1
	}
	return s.Workers
}
