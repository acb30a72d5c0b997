package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"neuroproc/internal/fileutil"
	"neuroproc/internal/imaging"
	"neuroproc/internal/journal"
	"neuroproc/internal/logging"
	"neuroproc/internal/markers"
	"neuroproc/internal/quality"
)

// Runner processes one file end to end and commits the outcome. It is safe
// for concurrent use; each Process call is independent.
type Runner struct {
	stages  Stages
	markers *markers.Store
	journal *journal.Store
	outDir  string
	logger  *slog.Logger
	now     func() time.Time
}

// NewRunner wires a runner. journal may be nil to disable run history.
func NewRunner(stages Stages, store *markers.Store, jrnl *journal.Store, outDir string, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Runner{
		stages:  stages,
		markers: store,
		journal: jrnl,
		outDir:  outDir,
		logger:  logger.With(logging.String(logging.FieldComponent, "pipeline")),
		now:     time.Now,
	}
}

// Result describes one completed run: the extracted image, its quality
// metrics, and the two artifacts written. It belongs to the caller of the
// run that produced it and is not retained by the runner.
type Result struct {
	OutputPath string
	ReportPath string
	Metrics    quality.Metrics
	Image      *imaging.Volume
}

// Process runs the full pipeline for record. A failure in any stage is
// contained to this file: it is logged, recorded in the error marker and
// journal, and returned. Panics in stage code are recovered and treated as
// stage failures.
func (r *Runner) Process(ctx context.Context, record FileRecord) (result Result, err error) {
	start := r.now()
	log := r.logger.With(logging.String(logging.FieldFile, record.Name))

	runID := r.journalStart(ctx, record)

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("pipeline panic: %v", rec)
		}
		elapsed := r.now().Sub(start)
		if err != nil {
			log.Error("processing failed",
				logging.Error(err),
				logging.String(logging.FieldStage, StageOf(err)),
				logging.Duration("elapsed", elapsed))
			if markErr := r.markers.RecordError(record.MarkerName(), err.Error()); markErr != nil {
				log.Error("failed to write error marker", logging.Error(markErr))
			}
			r.journalFailure(ctx, runID, err, elapsed)
			return
		}
		log.Info("processing complete",
			logging.String("output", record.OutputName()),
			logging.Duration("elapsed", elapsed))
	}()

	log.Info("processing started", logging.String("kind", string(record.Kind)))

	img, err := r.stages.Load(record)
	if err != nil {
		return Result{}, stageErr(StageLoad, err)
	}
	if err := img.Validate(); err != nil {
		return Result{}, stageErr(StageLoad, err)
	}

	pre, err := r.stages.Preprocess(img)
	if err != nil {
		return Result{}, stageErr(StagePreprocess, err)
	}

	stripped, err := r.stages.Extract(pre)
	if err != nil {
		return Result{}, stageErr(StageExtract, err)
	}

	outPath := filepath.Join(r.outDir, record.OutputName())
	if err := fileutil.EnsureDir(r.outDir); err != nil {
		return Result{}, stageErr(StageSave, err)
	}
	if err := imaging.Save(stripped, outPath); err != nil {
		return Result{}, stageErr(StageSave, err)
	}

	metrics := r.stages.Assess(stripped)
	report := quality.Render(metrics, record.Name, r.now())
	reportPath := filepath.Join(r.outDir, record.ReportName())
	if err := fileutil.WriteAtomic(reportPath, []byte(report), 0o644); err != nil {
		return Result{}, stageErr(StagePersist, fmt.Errorf("write quality report: %w", err))
	}

	if !metrics.OverallPass {
		log.Warn("quality checks below threshold",
			logging.Int("passed", metrics.PassedChecks),
			logging.Int("total", metrics.TotalChecks))
	}

	if err := r.markers.RecordSuccess(record.MarkerName()); err != nil {
		return Result{}, stageErr(StagePersist, fmt.Errorf("write success marker: %w", err))
	}
	r.journalSuccess(ctx, runID, record, r.now().Sub(start))
	return Result{
		OutputPath: outPath,
		ReportPath: reportPath,
		Metrics:    metrics,
		Image:      stripped,
	}, nil
}

func (r *Runner) journalStart(ctx context.Context, record FileRecord) string {
	if r.journal == nil {
		return ""
	}
	id, err := r.journal.RecordStart(ctx, record.Name, record.Path, string(record.Kind))
	if err != nil {
		r.logger.Warn("journal write failed", logging.Error(err))
		return ""
	}
	return id
}

func (r *Runner) journalSuccess(ctx context.Context, runID string, record FileRecord, elapsed time.Duration) {
	if r.journal == nil || runID == "" {
		return
	}
	if err := r.journal.RecordSuccess(ctx, runID, record.OutputName(), record.ReportName(), elapsed); err != nil {
		r.logger.Warn("journal write failed", logging.Error(err))
	}
}

func (r *Runner) journalFailure(ctx context.Context, runID string, cause error, elapsed time.Duration) {
	if r.journal == nil || runID == "" {
		return
	}
	if err := r.journal.RecordFailure(ctx, runID, cause.Error(), elapsed); err != nil {
		r.logger.Warn("journal write failed", logging.Error(err))
	}
}
