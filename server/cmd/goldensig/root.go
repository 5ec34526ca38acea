package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "goldensig",
		Short: "goldensig - Golden Signature scoring for manufacturing batches",
		Long: `goldensig scores manufacturing batches on yield, energy and quality,
selects the best batch as the Golden Signature and compares other batches
against it.

Run "goldensig serve" for the HTTP API, or use score, compare and export
to work on a dataset file from the command line.`,
		Version:      version,
		SilenceUsage: true,
	}

	debugLogging := cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	cmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		// One-shot commands print results on stdout, so logs go to stderr.
		level := slog.LevelWarn
		if *debugLogging {
			level = slog.LevelDebug
		}
		setupLogger(os.Stderr, "text", level)
	}

	cmd.AddCommand(newServeCommand(debugLogging))
	cmd.AddCommand(newScoreCommand())
	cmd.AddCommand(newCompareCommand())
	cmd.AddCommand(newExportCommand())

	return cmd
}

func execute() error {
	return newRootCommand().Execute()
}

// setupLogger installs the process-wide slog handler.
func setupLogger(w io.Writer, format string, level slog.Level) {
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if format == "text" {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}
	slog.SetDefault(slog.New(h))
}
