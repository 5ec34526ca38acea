package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/goldensig/goldensig/pkg/types"
	"github.com/goldensig/goldensig/server/internal/compute"
)

var (
	// ErrEmpty is returned when the file has no header or no data rows.
	ErrEmpty = errors.New("dataset: no data rows")

	// ErrMissingColumn is returned when a required column is absent.
	ErrMissingColumn = errors.New("dataset: missing required column")

	// ErrDuplicateBatch is returned when two rows share a Batch_ID.
	ErrDuplicateBatch = errors.New("dataset: duplicate batch id")

	// ErrDuplicateColumn is returned when a required column header appears twice.
	ErrDuplicateColumn = errors.New("dataset: duplicate column")

	// ErrUnsupportedFormat is returned for files that are neither CSV nor XLSX.
	ErrUnsupportedFormat = errors.New("dataset: unsupported file format")
)

// Options controls how a dataset file is read.
type Options struct {
	// Sheet is the worksheet to read from an XLSX file. Defaults to the first sheet.
	Sheet string
}

// Load reads the file at path, validates it and returns the scored dataset.
func Load(path string, opts Options) (*compute.Dataset, error) {
	start := time.Now()

	var (
		records [][]string
		err     error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		records, err = readCSVFile(path)
	case ".xlsx", ".xlsm":
		records, err = readXLSXFile(path, opts.Sheet)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, path)
	}
	if err != nil {
		return nil, err
	}

	ds, err := FromRecords(records)
	if err != nil {
		return nil, fmt.Errorf("dataset %q: %w", path, err)
	}
	ds.Source = path

	slog.Info("dataset: loaded",
		"path", path,
		"rows", ds.Len(),
		"columns", len(ds.Columns),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return ds, nil
}

// ReadCSV parses a CSV stream and returns the scored dataset.
func ReadCSV(r io.Reader) (*compute.Dataset, error) {
	records, err := readCSV(r)
	if err != nil {
		return nil, err
	}
	return FromRecords(records)
}

// FromRecords parses a header row plus data rows into a scored dataset.
func FromRecords(records [][]string) (*compute.Dataset, error) {
	rows, columns, err := parse(records)
	if err != nil {
		return nil, err
	}
	ds, err := compute.Score(rows)
	if err != nil {
		return nil, err
	}
	ds.Columns = columns
	ds.LoadedAt = time.Now().UTC()
	return ds, nil
}

func readCSVFile(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: open %q: %w", path, err)
	}
	defer f.Close()
	return readCSV(f)
}

func readCSV(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("dataset: read csv: %w", err)
	}
	return records, nil
}

func readXLSXFile(path, sheet string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: open workbook %q: %w", path, err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, ErrEmpty
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("dataset: read sheet %q: %w", sheet, err)
	}
	return rows, nil
}

// parse converts raw records into batches. The first record is the header.
// Blank rows are skipped; short rows are padded with empty cells.
func parse(records [][]string) ([]types.Batch, []string, error) {
	if len(records) == 0 {
		return nil, nil, ErrEmpty
	}

	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	idx := make(map[string]int, len(types.RequiredColumns))
	for i, h := range header {
		if !required(h) {
			continue
		}
		if prev, dup := idx[h]; dup {
			return nil, nil, fmt.Errorf("%w: %s at columns %d and %d", ErrDuplicateColumn, h, prev+1, i+1)
		}
		idx[h] = i
	}
	for _, col := range types.RequiredColumns {
		if _, ok := idx[col]; !ok {
			return nil, nil, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}

	var (
		rows = make([]types.Batch, 0, len(records)-1)
		seen = make(map[string]int, len(records)-1)
	)
	for n, rec := range records[1:] {
		line := n + 2 // 1-based, counting the header
		if blank(rec) {
			continue
		}
		fields := make([]string, len(header))
		for i := range fields {
			if i < len(rec) {
				fields[i] = strings.TrimSpace(rec[i])
			}
		}

		b := types.Batch{BatchID: fields[idx[types.ColBatchID]], Fields: fields}
		if b.BatchID == "" {
			return nil, nil, fmt.Errorf("dataset: row %d: empty %s", line, types.ColBatchID)
		}
		if prev, dup := seen[b.BatchID]; dup {
			return nil, nil, fmt.Errorf("%w: %q on rows %d and %d", ErrDuplicateBatch, b.BatchID, prev, line)
		}
		seen[b.BatchID] = line

		for _, nf := range []struct {
			col string
			dst *float64
		}{
			{types.ColYield, &b.Yield},
			{types.ColEnergyConsumption, &b.EnergyConsumption},
			{types.ColQualityScore, &b.QualityScore},
			{types.ColPressure, &b.Pressure},
		} {
			v, err := strconv.ParseFloat(fields[idx[nf.col]], 64)
			if err != nil {
				return nil, nil, fmt.Errorf("dataset: row %d column %s: %w", line, nf.col, err)
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, nil, fmt.Errorf("dataset: row %d column %s: %q: %w", line, nf.col, fields[idx[nf.col]], compute.ErrNonFinite)
			}
			*nf.dst = v
		}
		rows = append(rows, b)
	}

	if len(rows) == 0 {
		return nil, nil, ErrEmpty
	}
	return rows, header, nil
}

func required(col string) bool {
	for _, c := range types.RequiredColumns {
		if c == col {
			return true
		}
	}
	return false
}

func blank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
