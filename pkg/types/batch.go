package types

// Required input column names. Names and types are fixed.
const (
	ColBatchID           = "Batch_ID"
	ColYield             = "Yield"
	ColEnergyConsumption = "Energy_Consumption"
	ColQualityScore      = "Quality_Score"
	ColPressure          = "Pressure"
)

// Derived column names appended by the scorer, in export order.
const (
	ColYieldScore        = "Yield_Score"
	ColEnergyScore       = "Energy_Score"
	ColQualityScoreNorm  = "Quality_Score_Norm"
	ColOptimizationScore = "Optimization_Score"
)

// RequiredColumns lists the input columns every dataset must carry.
var RequiredColumns = []string{
	ColBatchID,
	ColYield,
	ColEnergyConsumption,
	ColQualityScore,
	ColPressure,
}

// DerivedColumns lists the columns computed by the scorer.
var DerivedColumns = []string{
	ColYieldScore,
	ColEnergyScore,
	ColQualityScoreNorm,
	ColOptimizationScore,
}

// Batch is one manufacturing run: the raw measurements plus the derived
// scores. The derived fields are zero until the dataset has been scored.
type Batch struct {
	BatchID           string  `json:"batch_id"`
	Yield             float64 `json:"yield"`
	EnergyConsumption float64 `json:"energy_consumption"`
	QualityScore      float64 `json:"quality_score"`
	Pressure          float64 `json:"pressure"`

	// Derived, each in [0, 1].
	YieldScore        float64 `json:"yield_score"`
	EnergyScore       float64 `json:"energy_score"`
	QualityScoreNorm  float64 `json:"quality_score_norm"`
	OptimizationScore float64 `json:"optimization_score"`

	// Fields holds the raw input cells in dataset column order, so an export
	// reproduces every input column verbatim (including non-required ones).
	Fields []string `json:"-"`
}

// Verdict classifies a candidate batch against the Golden Signature.
type Verdict string

const (
	VerdictOutperforms       Verdict = "OUTPERFORMS"
	VerdictHighEnergyWarning Verdict = "HIGH_ENERGY_WARNING"
	VerdictNearOptimal       Verdict = "NEAR_OPTIMAL"
)

// Presentation levels a verdict renders as.
const (
	LevelSuccess = "success"
	LevelWarning = "warning"
	LevelInfo    = "info"
)

// Level returns the presentation level for v.
func (v Verdict) Level() string {
	switch v {
	case VerdictOutperforms:
		return LevelSuccess
	case VerdictHighEnergyWarning:
		return LevelWarning
	default:
		return LevelInfo
	}
}

// Message returns the banner text shown alongside the verdict.
func (v Verdict) Message() string {
	switch v {
	case VerdictOutperforms:
		return "This batch outperforms the current Golden Signature."
	case VerdictHighEnergyWarning:
		return "This batch consumes more energy than optimal."
	default:
		return "Performance close to optimal."
	}
}
