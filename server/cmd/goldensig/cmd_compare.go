package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/goldensig/goldensig/server/internal/compute"
)

func newCompareCommand() *cobra.Command {
	var (
		ds        datasetFlags
		batchID   string
		reference string
		format    string
	)

	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare a batch against the Golden Signature",
		Long: `Compare a batch against the Golden Signature.

The reference defaults to the initial Golden Signature of the dataset. The
verdict is OUTPERFORMS when the batch uses no more energy and yields no less,
HIGH_ENERGY_WARNING when it uses more energy, and NEAR_OPTIMAL otherwise.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			d, err := ds.load()
			if err != nil {
				return err
			}
			candidate, err := d.Lookup(batchID)
			if err != nil {
				return err
			}
			ref := compute.SelectInitial(d)
			if reference != "" {
				if ref, err = d.Lookup(reference); err != nil {
					return err
				}
			}

			ev := compute.Evaluate(candidate, ref)
			if format == "json" {
				return writeJSON(cmd.OutOrStdout(), ev)
			}
			printEvaluation(cmd.OutOrStdout(), ev)
			return nil
		},
	}

	ds.register(cmd)
	cmd.Flags().StringVar(&batchID, "batch", "", "Batch_ID to evaluate")
	cmd.Flags().StringVar(&reference, "reference", "", "Batch_ID to compare against (default: initial Golden Signature)")
	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format: table or json")
	_ = cmd.MarkFlagRequired("batch")

	return cmd
}

func printEvaluation(w io.Writer, ev compute.Evaluation) {
	fmt.Fprintf(w, "Batch %s vs %s\n\n", ev.BatchID, ev.ReferenceID)
	fmt.Fprintf(w, "  %-20s %+.2f\n", "Energy difference", ev.EnergyDiff)
	fmt.Fprintf(w, "  %-20s %+.2f\n", "Yield difference", ev.YieldDiff)
	fmt.Fprintf(w, "  %-20s %.3f\n", "Batch score", ev.BatchScore)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Verdict: %s\n", ev.Verdict)
	fmt.Fprintf(w, "  %s\n", ev.Message)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Recommendations:")
	for _, r := range ev.Recommendations {
		fmt.Fprintf(w, "  - %s\n", r)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Sustainability:")
	fmt.Fprintf(w, "  %-20s %.2f kWh\n", "Energy saved", ev.Sustainability.EnergySavedKWh)
	fmt.Fprintf(w, "  %-20s %.2f kg\n", "Carbon saved", ev.Sustainability.CarbonSavedKg)
	fmt.Fprintf(w, "  %-20s %.2f\n", "Cost saved", ev.Sustainability.CostSaved)
}
