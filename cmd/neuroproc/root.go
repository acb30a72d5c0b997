package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"neuroproc/internal/config"
)

func newRootCommand() *cobra.Command {
	opts := &runOptions{}

	rootCmd := &cobra.Command{
		Use:           "neuroproc",
		Short:         "Skull-stripping pipeline for incoming MRI volumes",
		Long: `neuroproc watches or scans an input directory for NIfTI volumes,
runs each new file through preprocessing, atlas-based skull stripping,
and quality assessment, and writes the stripped volume plus a quality
report to the output directory. Hidden marker files record which inputs
have already been handled, so repeated runs never reprocess a file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, _, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			applyFlagOverrides(cmd, cfg, opts)
			if opts.inputDir == "" || opts.outputDir == "" {
				return fmt.Errorf("both --input and --output are required")
			}
			return run(cmd.Context(), cfg, opts)
		},
	}

	flags := rootCmd.Flags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "Configuration file path")
	flags.StringVarP(&opts.inputDir, "input", "i", "", "Directory to scan or watch for incoming volumes")
	flags.StringVarP(&opts.outputDir, "output", "o", "", "Directory for stripped volumes, reports, and markers")
	flags.StringVar(&opts.atlasDir, "atlas", "", "Atlas directory containing the brain mask (overrides config)")
	flags.BoolVarP(&opts.watch, "watch", "w", false, "Keep running and process files as they arrive")
	flags.IntVar(&opts.workers, "workers", 0, "Batch worker count (0 = auto)")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flags.BoolVar(&opts.noProgress, "no-progress", false, "Disable the batch progress bar")

	rootCmd.AddCommand(newConfigCommand())
	rootCmd.AddCommand(newJournalCommand())
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

// applyFlagOverrides folds explicit command-line flags into the loaded
// configuration. Flags win over the file.
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config, opts *runOptions) {
	if opts.atlasDir != "" {
		if expanded, err := config.ExpandPath(opts.atlasDir); err == nil {
			cfg.Paths.AtlasDir = expanded
		}
	}
	if cmd.Flags().Changed("workers") {
		cfg.Batch.Workers = opts.workers
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
}
