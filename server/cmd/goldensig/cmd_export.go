package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/goldensig/goldensig/server/internal/dataset"
)

func newExportCommand() *cobra.Command {
	var (
		ds  datasetFlags
		out string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the scored dataset to a CSV or XLSX file",
		Long: `Write the scored dataset to a CSV or XLSX file.

The output carries every input column in its original order followed by
Yield_Score, Energy_Score, Quality_Score_Norm and Optimization_Score. The
format is chosen by the extension of --out.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ext := strings.ToLower(filepath.Ext(out))
			if ext != ".csv" && ext != ".xlsx" {
				return fmt.Errorf("unsupported output %q: must end in .csv or .xlsx", out)
			}
			d, err := ds.load()
			if err != nil {
				return err
			}

			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("create %s: %w", out, err)
			}
			if ext == ".xlsx" {
				err = dataset.WriteXLSX(f, d)
			} else {
				err = dataset.WriteCSV(f, d)
			}
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d batches to %s\n", d.Len(), out)
			return nil
		},
	}

	ds.register(cmd)
	cmd.Flags().StringVarP(&out, "out", "o", "scored_batches.csv", "Output file (.csv or .xlsx)")

	return cmd
}
