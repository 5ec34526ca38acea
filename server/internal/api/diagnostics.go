package api

import (
	"fmt"
	"math"
	"sort"

	"github.com/goldensig/goldensig/pkg/types"
	"github.com/goldensig/goldensig/server/internal/compute"
)

// DiagnosticHint is one human-readable insight about an evaluated batch.
// The UI shows these as chips next to the verdict; Detail is the long form.
type DiagnosticHint struct {
	// Key is a stable machine-readable identifier (used for dedup/ordering).
	Key string `json:"key"`
	// Level is "ok" | "info" | "warning"
	Level string `json:"level"`
	// Title is a short label shown on the chip.
	Title string `json:"title"`
	// Detail is the full explanation shown on click/hover.
	Detail string `json:"detail"`
	// Value is an optional numeric value associated with this hint.
	Value *float64 `json:"value,omitempty"`
}

var levelRank = map[string]int{
	types.LevelWarning: 0,
	types.LevelInfo:    1,
	"ok":               2,
}

// computeDiagnostics explains an evaluation in plain language. Hints are
// ordered warnings first, then info, then ok.
func computeDiagnostics(ev compute.Evaluation) []DiagnosticHint {
	var hints []DiagnosticHint

	if ev.BatchID == ev.ReferenceID {
		return []DiagnosticHint{{
			Key:   "is_golden",
			Level: "ok",
			Title: "Current Golden Signature",
			Detail: "This batch is the session's reference. Comparing it against itself " +
				"always outperforms, so approving it again changes nothing but the state.",
		}}
	}

	// ── Energy ───────────────────────────────────────────────────────────────
	if ev.EnergyDiff > 0 {
		v := ev.EnergyDiff
		hints = append(hints, DiagnosticHint{
			Key:   "energy_excess",
			Level: types.LevelWarning,
			Title: fmt.Sprintf("+%.2f kWh energy", v),
			Detail: fmt.Sprintf(
				"This batch consumed %.2f kWh more than golden batch %s. "+
					"At %.1f kg CO2 and %.0f currency units per kWh that is %.2f kg CO2 and %.2f "+
					"in extra cost per batch. Lowering the process temperature is the usual first step.",
				v, ev.ReferenceID, compute.EmissionFactor, compute.Tariff,
				v*compute.EmissionFactor, v*compute.Tariff,
			),
			Value: &v,
		})
	} else if ev.EnergyDiff < 0 {
		v := -ev.EnergyDiff
		hints = append(hints, DiagnosticHint{
			Key:   "energy_saving",
			Level: "ok",
			Title: fmt.Sprintf("-%.2f kWh energy", v),
			Detail: fmt.Sprintf(
				"This batch used %.2f kWh less than golden batch %s, saving an estimated "+
					"%.2f kg CO2 and %.2f cost units.",
				v, ev.ReferenceID, ev.Sustainability.CarbonSavedKg, ev.Sustainability.CostSaved,
			),
			Value: &v,
		})
	}

	// ── Yield ────────────────────────────────────────────────────────────────
	if ev.YieldDiff < 0 {
		v := ev.YieldDiff
		hints = append(hints, DiagnosticHint{
			Key:   "yield_shortfall",
			Level: yieldLevel(ev.Verdict),
			Title: fmt.Sprintf("%.2f yield", v),
			Detail: fmt.Sprintf(
				"Yield is %.2f below golden batch %s. A batch has to match or beat the golden "+
					"yield to be approved, whatever it saves on energy. Raising machine speed "+
					"is the usual lever.",
				-v, ev.ReferenceID,
			),
			Value: &v,
		})
	} else if ev.YieldDiff > 0 {
		v := ev.YieldDiff
		hints = append(hints, DiagnosticHint{
			Key:    "yield_gain",
			Level:  "ok",
			Title:  fmt.Sprintf("+%.2f yield", v),
			Detail: fmt.Sprintf("Yield is %.2f above golden batch %s.", v, ev.ReferenceID),
			Value:  &v,
		})
	}

	// ── Pressure ─────────────────────────────────────────────────────────────
	if ev.PressureDiff > 0 {
		v := ev.PressureDiff
		hints = append(hints, DiagnosticHint{
			Key:   "pressure_high",
			Level: types.LevelInfo,
			Title: fmt.Sprintf("+%.2f pressure", v),
			Detail: fmt.Sprintf(
				"Pressure ran %.2f above the golden batch. Pressure does not enter the score, "+
					"but running above the reference pressure often costs energy on later batches.",
				v,
			),
			Value: &v,
		})
	}

	// ── Quality ──────────────────────────────────────────────────────────────
	if math.Abs(ev.QualityDiff) > 0 {
		v := ev.QualityDiff
		level := types.LevelInfo
		if v > 0 {
			level = "ok"
		}
		hints = append(hints, DiagnosticHint{
			Key:   "quality_delta",
			Level: level,
			Title: fmt.Sprintf("%+.2f quality", v),
			Detail: "Quality counts for 30% of the optimization score but plays no part in the " +
				"approval rule, which looks only at energy and yield.",
			Value: &v,
		})
	}

	if ev.Approvable {
		hints = append(hints, DiagnosticHint{
			Key:   "approvable",
			Level: "ok",
			Title: "Eligible for approval",
			Detail: fmt.Sprintf(
				"Batch %s uses no more energy and yields no less than %s, so it can replace "+
					"the Golden Signature for this session.",
				ev.BatchID, ev.ReferenceID,
			),
		})
	}

	sort.SliceStable(hints, func(i, j int) bool {
		return levelRank[hints[i].Level] < levelRank[hints[j].Level]
	})
	return hints
}

// yieldLevel rates a yield shortfall: it only blocks approval outright when
// the batch was otherwise competitive.
func yieldLevel(v types.Verdict) string {
	if v == types.VerdictNearOptimal {
		return types.LevelWarning
	}
	return types.LevelInfo
}
