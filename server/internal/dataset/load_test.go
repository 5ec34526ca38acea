package dataset

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/goldensig/goldensig/server/internal/compute"
)

const sampleCSV = `Batch_ID,Temperature,Yield,Energy_Consumption,Quality_Score,Pressure
B1,180,88,52,78,10.5
B2,175,92,47,83,11.0
B3,172,95,41,90,12.2
B4,185,85,60,70,9.8
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_CSV(t *testing.T) {
	path := writeFile(t, "data.csv", sampleCSV)

	ds, err := Load(path, Options{})
	require.NoError(t, err)
	assert.Equal(t, 4, ds.Len())
	assert.Equal(t, path, ds.Source)
	assert.Equal(t, []string{"Batch_ID", "Temperature", "Yield", "Energy_Consumption", "Quality_Score", "Pressure"}, ds.Columns)
	assert.False(t, ds.LoadedAt.IsZero())

	b, err := ds.Lookup("B3")
	require.NoError(t, err)
	assert.Equal(t, 95.0, b.Yield)
	assert.Equal(t, 12.2, b.Pressure)
	assert.Equal(t, "172", b.Fields[1])
	assert.Equal(t, "B3", compute.SelectInitial(ds).BatchID)
}

func TestLoad_XLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.xlsx")
	f := excelize.NewFile()
	rows := [][]interface{}{
		{"Batch_ID", "Yield", "Energy_Consumption", "Quality_Score", "Pressure"},
		{"A", 90, 50, 80, 10},
		{"B", 95, 40, 85, 12},
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &r))
	}
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	ds, err := Load(path, Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, ds.Len())
	assert.Equal(t, "B", compute.SelectInitial(ds).BatchID)

	_, err = Load(path, Options{Sheet: "Missing"})
	assert.Error(t, err)
}

func TestLoad_UnsupportedFormat(t *testing.T) {
	path := writeFile(t, "data.json", "{}")
	_, err := Load(path, Options{})
	assert.True(t, errors.Is(err, ErrUnsupportedFormat), "err = %v", err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.csv"), Options{})
	assert.Error(t, err)
}

func TestReadCSV_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  error
	}{
		{"empty file", "", ErrEmpty},
		{"header only", "Batch_ID,Yield,Energy_Consumption,Quality_Score,Pressure\n", ErrEmpty},
		{"missing pressure", "Batch_ID,Yield,Energy_Consumption,Quality_Score\nA,90,50,80\nB,95,40,85\n", ErrMissingColumn},
		{"duplicate id", "Batch_ID,Yield,Energy_Consumption,Quality_Score,Pressure\nA,90,50,80,10\nA,95,40,85,12\n", ErrDuplicateBatch},
		{"duplicate yield header", "Batch_ID,Yield,Energy_Consumption,Quality_Score,Pressure,Yield\nA,90,50,80,10,1\nB,95,40,85,12,2\n", ErrDuplicateColumn},
		{"nan yield", "Batch_ID,Yield,Energy_Consumption,Quality_Score,Pressure\nA,90,50,80,10\nB,95,40,85,12\nC,NaN,45,82,11\n", compute.ErrNonFinite},
		{"inf yield", "Batch_ID,Yield,Energy_Consumption,Quality_Score,Pressure\nA,90,50,80,10\nB,95,40,85,12\nC,Inf,45,82,11\n", compute.ErrNonFinite},
		{"negative inf energy", "Batch_ID,Yield,Energy_Consumption,Quality_Score,Pressure\nA,90,50,80,10\nB,95,-Inf,85,12\n", compute.ErrNonFinite},
		{"nan pressure", "Batch_ID,Yield,Energy_Consumption,Quality_Score,Pressure\nA,90,50,80,10\nB,95,40,85,nan\n", compute.ErrNonFinite},
		{"constant yield", "Batch_ID,Yield,Energy_Consumption,Quality_Score,Pressure\nA,90,50,80,10\nB,90,40,85,12\n", compute.ErrZeroRange},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tc.input))
			assert.True(t, errors.Is(err, tc.want), "err = %v, want %v", err, tc.want)
		})
	}
}

func TestReadCSV_BadNumber(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("Batch_ID,Yield,Energy_Consumption,Quality_Score,Pressure\nA,ninety,50,80,10\nB,95,40,85,12\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 2 column Yield")
}

func TestReadCSV_NonFiniteNamesCell(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("Batch_ID,Yield,Energy_Consumption,Quality_Score,Pressure\nA,90,50,80,10\nB,95,40,85,12\nC,NaN,45,82,11\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 4 column Yield")
}

func TestReadCSV_DuplicateExtraColumnAllowed(t *testing.T) {
	ds, err := ReadCSV(strings.NewReader("Batch_ID,Note,Yield,Energy_Consumption,Quality_Score,Pressure,Note\nA,x,90,50,80,10,y\nB,x,95,40,85,12,y\n"))
	require.NoError(t, err)
	assert.Equal(t, 2, ds.Len())
}

func TestReadCSV_EmptyBatchID(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("Batch_ID,Yield,Energy_Consumption,Quality_Score,Pressure\n,90,50,80,10\nB,95,40,85,12\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty Batch_ID")
}

func TestReadCSV_BOMAndBlankRows(t *testing.T) {
	input := "\ufeffBatch_ID, Yield, Energy_Consumption, Quality_Score, Pressure\nA,90,50,80,10\n,,,,\nB,95,40,85,12\n"
	ds, err := ReadCSV(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 2, ds.Len())
	assert.Equal(t, "Batch_ID", ds.Columns[0])
}

func TestReadCSV_ColumnOrderIndependent(t *testing.T) {
	input := "Pressure,Quality_Score,Energy_Consumption,Yield,Batch_ID\n10,80,50,90,A\n12,85,40,95,B\n"
	ds, err := ReadCSV(strings.NewReader(input))
	require.NoError(t, err)
	a, err := ds.Lookup("A")
	require.NoError(t, err)
	assert.Equal(t, 90.0, a.Yield)
	assert.Equal(t, 50.0, a.EnergyConsumption)
	assert.Equal(t, 10.0, a.Pressure)
}
