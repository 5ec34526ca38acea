// Package compute is the batch scorer.
//
// score.go normalizes the Yield, Energy_Consumption and Quality_Score columns
// with dataset-wide min-max ranges and combines them into the composite
// Optimization_Score: yield(40%) + energy(30%, inverted) + quality(30%).
// Score is a one-shot transform; the returned Dataset is immutable.
//
// compare.go holds the pure per-interaction functions: Compare (diffs and
// verdict), Recommend (advisory strings), Sustainability (energy, carbon and
// cost saved) and Evaluate, which bundles them for the presentation layer.
//
// Verdict branch order: OUTPERFORMS, then HIGH_ENERGY_WARNING, then
// NEAR_OPTIMAL as the catch-all.
package compute
