package compute

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/goldensig/goldensig/pkg/types"
)

// ColumnSummary describes the distribution of one numeric column.
type ColumnSummary struct {
	Column string  `json:"column"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"` // sample standard deviation; 0 for a single row
}

// Summarize returns per-column statistics for the raw and derived numeric
// columns, in export order.
func Summarize(d *Dataset) []ColumnSummary {
	getters := []struct {
		name string
		get  func(types.Batch) float64
	}{
		{types.ColYield, func(b types.Batch) float64 { return b.Yield }},
		{types.ColEnergyConsumption, func(b types.Batch) float64 { return b.EnergyConsumption }},
		{types.ColQualityScore, func(b types.Batch) float64 { return b.QualityScore }},
		{types.ColPressure, func(b types.Batch) float64 { return b.Pressure }},
		{types.ColYieldScore, func(b types.Batch) float64 { return b.YieldScore }},
		{types.ColEnergyScore, func(b types.Batch) float64 { return b.EnergyScore }},
		{types.ColQualityScoreNorm, func(b types.Batch) float64 { return b.QualityScoreNorm }},
		{types.ColOptimizationScore, func(b types.Batch) float64 { return b.OptimizationScore }},
	}

	out := make([]ColumnSummary, 0, len(getters))
	values := make([]float64, len(d.batches))
	for _, g := range getters {
		for i, b := range d.batches {
			values[i] = g.get(b)
		}
		s := ColumnSummary{
			Column: g.name,
			Min:    floats.Min(values),
			Max:    floats.Max(values),
			Mean:   stat.Mean(values, nil),
		}
		if len(values) > 1 {
			s.StdDev = stat.StdDev(values, nil)
		}
		out = append(out, s)
	}
	return out
}
