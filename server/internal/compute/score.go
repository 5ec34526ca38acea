package compute

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/montanaflynn/stats"

	"github.com/goldensig/goldensig/pkg/types"
)

// Weight constants for the optimization score formula.
// They must sum to 1.0.
const (
	weightYield   = 0.4
	weightEnergy  = 0.3
	weightQuality = 0.3
)

var (
	// ErrEmpty is returned when there are no rows to score.
	ErrEmpty = errors.New("compute: empty dataset")

	// ErrZeroRange is returned when a normalized column has max == min.
	ErrZeroRange = errors.New("cannot normalize: zero-range column")

	// ErrNonFinite is returned when a scored column holds NaN or an infinity.
	ErrNonFinite = errors.New("compute: non-finite value")

	// ErrUnknownBatch is returned by Lookup for an identifier not in the dataset.
	ErrUnknownBatch = errors.New("compute: unknown batch id")
)

// MinMax is the dataset-wide range of one column.
type MinMax struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Range returns max - min.
func (m MinMax) Range() float64 {
	return m.Max - m.Min
}

// Ranges holds the three ranges used for normalization, computed once.
type Ranges struct {
	Yield   MinMax `json:"yield"`
	Energy  MinMax `json:"energy_consumption"`
	Quality MinMax `json:"quality_score"`
}

// Dataset is an ordered, scored sequence of batches. It must not be modified
// after Score returns it.
type Dataset struct {
	// Columns is the input header in file order.
	Columns []string
	// Source is the file the rows were loaded from, if any.
	Source   string
	LoadedAt time.Time

	batches []types.Batch
	ranges  Ranges
	index   map[string]int
	initial int
}

// Score computes the derived columns for every row and returns the scored
// dataset. rows is not modified.
//
//	Yield_Score        = (Yield - min) / (max - min)
//	Energy_Score       = 1 - (Energy_Consumption - min) / (max - min)
//	Quality_Score_Norm = (Quality_Score - min) / (max - min)
//	Optimization_Score = 0.4*Yield_Score + 0.3*Energy_Score + 0.3*Quality_Score_Norm
func Score(rows []types.Batch) (*Dataset, error) {
	if len(rows) == 0 {
		return nil, ErrEmpty
	}

	var (
		yields    = make([]float64, len(rows))
		energies  = make([]float64, len(rows))
		qualities = make([]float64, len(rows))
	)
	for i, r := range rows {
		yields[i] = r.Yield
		energies[i] = r.EnergyConsumption
		qualities[i] = r.QualityScore
	}

	var (
		rg  Ranges
		err error
	)
	if rg.Yield, err = columnRange(types.ColYield, yields); err != nil {
		return nil, err
	}
	if rg.Energy, err = columnRange(types.ColEnergyConsumption, energies); err != nil {
		return nil, err
	}
	if rg.Quality, err = columnRange(types.ColQualityScore, qualities); err != nil {
		return nil, err
	}

	ds := &Dataset{
		batches: make([]types.Batch, len(rows)),
		ranges:  rg,
		index:   make(map[string]int, len(rows)),
	}
	for i, r := range rows {
		r.YieldScore = (r.Yield - rg.Yield.Min) / rg.Yield.Range()
		r.EnergyScore = 1 - (r.EnergyConsumption-rg.Energy.Min)/rg.Energy.Range()
		r.QualityScoreNorm = (r.QualityScore - rg.Quality.Min) / rg.Quality.Range()
		r.OptimizationScore = weightYield*r.YieldScore +
			weightEnergy*r.EnergyScore +
			weightQuality*r.QualityScoreNorm

		ds.batches[i] = r
		if _, dup := ds.index[r.BatchID]; !dup {
			ds.index[r.BatchID] = i
		}
	}
	ds.initial = argmax(ds.batches)
	return ds, nil
}

// columnRange returns the min/max of values, failing fast on a degenerate column.
func columnRange(name string, values []float64) (MinMax, error) {
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return MinMax{}, fmt.Errorf("compute: column %s row %d: %w", name, i, ErrNonFinite)
		}
	}
	lo, err := stats.Min(values)
	if err != nil {
		return MinMax{}, fmt.Errorf("compute: %s min: %w", name, err)
	}
	hi, err := stats.Max(values)
	if err != nil {
		return MinMax{}, fmt.Errorf("compute: %s max: %w", name, err)
	}
	if hi == lo {
		return MinMax{}, fmt.Errorf("compute: column %s: %w", name, ErrZeroRange)
	}
	return MinMax{Min: lo, Max: hi}, nil
}

// SelectInitial returns the batch with the maximal Optimization_Score. Ties go
// to the first such batch in dataset order.
func SelectInitial(ds *Dataset) types.Batch {
	return ds.batches[ds.initial]
}

// argmax is a stable arg-max over OptimizationScore. batches must be non-empty.
func argmax(batches []types.Batch) int {
	best := 0
	for i := 1; i < len(batches); i++ {
		if batches[i].OptimizationScore > batches[best].OptimizationScore {
			best = i
		}
	}
	return best
}

// Len returns the number of batches.
func (d *Dataset) Len() int { return len(d.batches) }

// Batches returns a copy of the scored rows in dataset order.
func (d *Dataset) Batches() []types.Batch {
	out := make([]types.Batch, len(d.batches))
	copy(out, d.batches)
	return out
}

// Ranges returns the normalization ranges.
func (d *Dataset) Ranges() Ranges { return d.ranges }

// Lookup returns the batch with the given identifier.
func (d *Dataset) Lookup(batchID string) (types.Batch, error) {
	i, ok := d.index[batchID]
	if !ok {
		return types.Batch{}, fmt.Errorf("%w: %q", ErrUnknownBatch, batchID)
	}
	return d.batches[i], nil
}
