package compute

import (
	"math"

	"github.com/goldensig/goldensig/pkg/types"
)

// Fixed sustainability factors.
const (
	// EmissionFactor is kg CO2 per kWh.
	EmissionFactor = 0.8
	// Tariff is currency units per kWh.
	Tariff = 8.0
)

// Recommendation strings, keyed on sign comparisons only.
const (
	RecReduceTemperature = "Reduce Temperature to decrease energy usage."
	RecIncreaseSpeed     = "Increase Machine Speed to improve yield."
	RecAdjustPressure    = "Adjust Pressure to optimal range."
	RecMaintain          = "Maintain current configuration — high efficiency detected."
)

// Comparison is the outcome of comparing a candidate against a reference.
type Comparison struct {
	EnergyDiff float64       `json:"energy_diff"`
	YieldDiff  float64       `json:"yield_diff"`
	Verdict    types.Verdict `json:"verdict"`
}

// Impact is the estimated sustainability gain of a candidate. All fields are
// non-negative.
type Impact struct {
	EnergySavedKWh float64 `json:"energy_saved_kwh"`
	CarbonSavedKg  float64 `json:"carbon_saved_kg"`
	CostSaved      float64 `json:"cost_saved"`
}

// Evaluation bundles everything the presentation layer renders for one
// selected batch.
type Evaluation struct {
	BatchID         string        `json:"batch_id"`
	ReferenceID     string        `json:"reference_id"`
	EnergyDiff      float64       `json:"energy_diff"`
	YieldDiff       float64       `json:"yield_diff"`
	QualityDiff     float64       `json:"quality_diff"`
	PressureDiff    float64       `json:"pressure_diff"`
	BatchScore      float64       `json:"batch_score"`
	Verdict         types.Verdict `json:"verdict"`
	Level           string        `json:"level"`
	Message         string        `json:"message"`
	Recommendations []string      `json:"recommendations"`
	Sustainability  Impact        `json:"sustainability"`
	// Approvable is true only for OUTPERFORMS.
	Approvable bool `json:"approvable"`
}

// Compare computes the energy and yield differences of candidate relative to
// reference and classifies the result.
//
// The branch order matters: NEAR_OPTIMAL is only reached when the candidate
// saves energy but loses yield.
func Compare(candidate, reference types.Batch) Comparison {
	c := Comparison{
		EnergyDiff: candidate.EnergyConsumption - reference.EnergyConsumption,
		YieldDiff:  candidate.Yield - reference.Yield,
	}
	switch {
	case c.EnergyDiff <= 0 && c.YieldDiff >= 0:
		c.Verdict = types.VerdictOutperforms
	case c.EnergyDiff > 0:
		c.Verdict = types.VerdictHighEnergyWarning
	default:
		c.Verdict = types.VerdictNearOptimal
	}
	return c
}

// Recommend returns the advisory strings for candidate. Each condition is
// evaluated independently. The result is never nil.
func Recommend(candidate, reference types.Batch) []string {
	c := Compare(candidate, reference)
	recs := make([]string, 0, 4)
	if c.EnergyDiff > 0 {
		recs = append(recs, RecReduceTemperature)
	}
	if c.YieldDiff < 0 {
		recs = append(recs, RecIncreaseSpeed)
	}
	if candidate.Pressure > reference.Pressure {
		recs = append(recs, RecAdjustPressure)
	}
	if c.EnergyDiff <= 0 && c.YieldDiff >= 0 {
		recs = append(recs, RecMaintain)
	}
	return recs
}

// Sustainability converts an energy difference into savings. Nothing is saved
// unless the candidate uses less energy than the reference.
func Sustainability(energyDiff float64) Impact {
	saved := math.Max(0, -energyDiff)
	return Impact{
		EnergySavedKWh: saved,
		CarbonSavedKg:  saved * EmissionFactor,
		CostSaved:      saved * Tariff,
	}
}

// Evaluate runs Compare, Recommend and Sustainability for candidate against
// golden.
func Evaluate(candidate, golden types.Batch) Evaluation {
	c := Compare(candidate, golden)
	return Evaluation{
		BatchID:         candidate.BatchID,
		ReferenceID:     golden.BatchID,
		EnergyDiff:      c.EnergyDiff,
		YieldDiff:       c.YieldDiff,
		QualityDiff:     candidate.QualityScore - golden.QualityScore,
		PressureDiff:    candidate.Pressure - golden.Pressure,
		BatchScore:      candidate.OptimizationScore,
		Verdict:         c.Verdict,
		Level:           c.Verdict.Level(),
		Message:         c.Verdict.Message(),
		Recommendations: Recommend(candidate, golden),
		Sustainability:  Sustainability(c.EnergyDiff),
		Approvable:      c.Verdict == types.VerdictOutperforms,
	}
}
