package main

import (
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"neuroproc/internal/config"
	"neuroproc/internal/journal"
)

func newJournalCommand() *cobra.Command {
	var configPath string
	var outputDir string
	var limit int

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Show recent processing runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, _, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if outputDir == "" {
				return fmt.Errorf("--output is required to locate the journal")
			}
			expanded, err := config.ExpandPath(outputDir)
			if err != nil {
				return err
			}

			path := cfg.JournalPath(expanded)
			if _, err := os.Stat(path); err != nil {
				return fmt.Errorf("no journal found at %s", path)
			}
			store, err := journal.Open(path)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			stats, err := store.Stats(cmd.Context())
			if err != nil {
				return err
			}

			tw := table.NewWriter()
			tw.SetOutputMirror(cmd.OutOrStdout())
			tw.AppendHeader(table.Row{"Started", "File", "Kind", "Status", "Duration", "Detail"})
			for _, run := range runs {
				detail := run.OutputFile
				if run.Status == journal.StatusFailed {
					detail = run.ErrorMessage
				}
				tw.AppendRow(table.Row{
					run.StartedAt.Local().Format(time.DateTime),
					run.FileName,
					run.Kind,
					run.Status,
					run.Duration.Round(time.Millisecond),
					detail,
				})
			}
			tw.AppendFooter(table.Row{"", "", "", "",
				fmt.Sprintf("%d ok / %d failed", stats.Succeeded, stats.Failed),
				fmt.Sprintf("%d total", stats.Total)})
			tw.Render()
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Configuration file path")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Output directory whose journal to read")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum runs to show")
	return cmd
}
