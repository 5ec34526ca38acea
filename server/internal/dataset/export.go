package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/goldensig/goldensig/pkg/types"
	"github.com/goldensig/goldensig/server/internal/compute"
)

// ExportSheet is the worksheet name used by WriteXLSX.
const ExportSheet = "Batches"

// Header returns the export header: input columns in file order followed by
// the derived columns.
func Header(ds *compute.Dataset) []string {
	cols := ds.Columns
	if len(cols) == 0 {
		cols = types.RequiredColumns
	}
	out := make([]string, 0, len(cols)+len(types.DerivedColumns))
	out = append(out, cols...)
	return append(out, types.DerivedColumns...)
}

// Records returns the export rows (without header) as strings.
func Records(ds *compute.Dataset) [][]string {
	batches := ds.Batches()
	out := make([][]string, 0, len(batches))
	for _, b := range batches {
		out = append(out, record(ds, b))
	}
	return out
}

// WriteCSV writes the scored dataset as CSV, header first.
func WriteCSV(w io.Writer, ds *compute.Dataset) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header(ds)); err != nil {
		return fmt.Errorf("dataset: write csv header: %w", err)
	}
	if err := cw.WriteAll(Records(ds)); err != nil {
		return fmt.Errorf("dataset: write csv: %w", err)
	}
	return nil
}

// WriteXLSX writes the scored dataset as a single-sheet workbook. Cells that
// parse as numbers are written as numbers.
func WriteXLSX(w io.Writer, ds *compute.Dataset) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), ExportSheet); err != nil {
		return fmt.Errorf("dataset: rename sheet: %w", err)
	}

	header := Header(ds)
	if err := setRow(f, 1, stringsToCells(header)); err != nil {
		return err
	}
	for i, rec := range Records(ds) {
		cells := make([]interface{}, len(rec))
		for j, v := range rec {
			if n, err := strconv.ParseFloat(v, 64); err == nil && j != batchIDColumn(header) {
				cells[j] = n
			} else {
				cells[j] = v
			}
		}
		if err := setRow(f, i+2, cells); err != nil {
			return err
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("dataset: write xlsx: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, row int, cells []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("dataset: cell name: %w", err)
	}
	if err := f.SetSheetRow(ExportSheet, cell, &cells); err != nil {
		return fmt.Errorf("dataset: set row %d: %w", row, err)
	}
	return nil
}

func stringsToCells(ss []string) []interface{} {
	out := make([]interface{}, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func batchIDColumn(header []string) int {
	for i, h := range header {
		if h == types.ColBatchID {
			return i
		}
	}
	return -1
}

// record renders one batch in export column order. Input cells are copied
// verbatim; batches built without raw fields fall back to the parsed values.
func record(ds *compute.Dataset, b types.Batch) []string {
	var out []string
	if len(ds.Columns) > 0 && len(b.Fields) == len(ds.Columns) {
		out = make([]string, 0, len(b.Fields)+len(types.DerivedColumns))
		out = append(out, b.Fields...)
	} else {
		out = []string{
			b.BatchID,
			formatFloat(b.Yield),
			formatFloat(b.EnergyConsumption),
			formatFloat(b.QualityScore),
			formatFloat(b.Pressure),
		}
	}
	return append(out,
		formatFloat(b.YieldScore),
		formatFloat(b.EnergyScore),
		formatFloat(b.QualityScoreNorm),
		formatFloat(b.OptimizationScore),
	)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
