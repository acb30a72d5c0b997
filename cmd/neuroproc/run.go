package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mattn/go-isatty"

	"neuroproc/internal/config"
	"neuroproc/internal/daemon"
	"neuroproc/internal/inflight"
	"neuroproc/internal/journal"
	"neuroproc/internal/logging"
	"neuroproc/internal/markers"
	"neuroproc/internal/pipeline"
	"neuroproc/internal/preprocess"
	"neuroproc/internal/readiness"
	"neuroproc/internal/register"
	"neuroproc/internal/scanner"
	"neuroproc/internal/watcher"
)

type runOptions struct {
	configPath string
	inputDir   string
	outputDir  string
	atlasDir   string
	watch      bool
	workers    int
	logLevel   string
	noProgress bool
}

// run executes either a one-shot batch pass or watch mode against the
// resolved configuration.
func run(ctx context.Context, cfg *config.Config, opts *runOptions) error {
	inputDir, err := config.ExpandPath(opts.inputDir)
	if err != nil {
		return err
	}
	outputDir, err := config.ExpandPath(opts.outputDir)
	if err != nil {
		return err
	}
	if info, err := os.Stat(inputDir); err != nil {
		return fmt.Errorf("input directory: %w", err)
	} else if !info.IsDir() {
		return fmt.Errorf("input path %s is not a directory", inputDir)
	}

	logger, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: os.Stderr,
	})
	if err != nil {
		return err
	}

	registration, err := register.ParseKind(cfg.Processing.RegistrationType)
	if err != nil {
		return err
	}

	var jrnl *journal.Store
	if cfg.Journal.Enabled {
		jrnl, err = journal.Open(cfg.JournalPath(outputDir))
		if err != nil {
			return err
		}
		defer jrnl.Close()
	}

	stages := pipeline.NewStages(pipeline.StageParams{
		AtlasDir: cfg.Paths.AtlasDir,
		Preprocess: preprocess.Params{
			NormalizeMethod: cfg.Processing.NormalizeMethod,
			Sigma:           cfg.Processing.GaussianSigma,
		},
		Registration: registration,
	})

	store := markers.NewStore(outputDir)
	runner := pipeline.NewRunner(stages, store, jrnl, outputDir, logger)
	detector := readiness.New(cfg.ReadinessPollInterval(), cfg.ReadinessTimeout())
	set := inflight.NewSet()

	scan := &scanner.Scanner{
		InputDir:     inputDir,
		Workers:      cfg.WorkerCount(),
		ShowProgress: !opts.noProgress && !opts.watch && isatty.IsTerminal(os.Stdout.Fd()),
		Processor:    runner,
		Markers:      store,
		InFlight:     set,
		Readiness:    detector,
		Logger:       logger,
	}

	if opts.watch {
		w := &watcher.Watcher{
			InputDir:  inputDir,
			Processor: runner,
			Markers:   store,
			InFlight:  set,
			Readiness: detector,
			Scanner:   scan,
			Logger:    logger,
		}
		return daemon.New(w, outputDir, logger).Run(ctx)
	}

	summary, err := scan.Run(ctx)
	if err != nil {
		return err
	}
	renderSummary(summary)
	// Per-file failures are already recorded in error markers and the
	// summary; they do not fail the batch run itself.
	if summary.Failed > 0 {
		logger.Warn("batch completed with failures",
			logging.Int("failed", summary.Failed),
			logging.Int("total", summary.Total()))
	}
	return nil
}

func renderSummary(summary scanner.Summary) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Result", "Files"})
	tw.AppendRows([]table.Row{
		{"Succeeded", summary.Succeeded},
		{"Failed", summary.Failed},
		{"Skipped", summary.Skipped},
	})
	tw.AppendFooter(table.Row{"Total", summary.Total()})
	tw.Render()
}
