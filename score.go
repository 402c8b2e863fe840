/*
Copyright © 2024 the copdbias authors.
This file is part of copdbias.

copdbias is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

copdbias is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with copdbias.  If not, see <http://www.gnu.org/licenses/>.
*/

package copdbias

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/healthmodel/copdbias/internal/quantile"
)

// SpirometryTarget is the national administrative target for spirometry
// tests per 100,000 population aged 40 and older. It is a fixed
// standard, not derived from the data.
const SpirometryTarget = 1105.08

// direction selects which side of a benchmark is penalized.
type direction int

const (
	// deficitPenalized penalizes values below the benchmark
	// (insufficient testing or program access).
	deficitPenalized direction = iota

	// excessPenalized penalizes values above the benchmark
	// (excess lethality).
	excessPenalized
)

// shortfallPenalty returns the proportional distance of actual past
// benchmark on the penalized side, and 0 when actual is at or inside
// the benchmark. NaN inputs propagate so that missing rates surface as
// missing scores rather than zero penalties.
func shortfallPenalty(actual, benchmark float64, dir direction) float64 {
	var excess float64
	switch dir {
	case deficitPenalized:
		excess = (benchmark - actual) / benchmark
	case excessPenalized:
		excess = (actual - benchmark) / benchmark
	}
	if math.IsNaN(excess) {
		return excess
	}
	return math.Max(0, excess)
}

// Thresholds holds the benchmarks that department-year observations are
// scored against. The spirometry target is a fixed administrative
// standard; the other two are percentiles of the raw dataset, computed
// once before any row filtering and immutable afterwards.
type Thresholds struct {
	// SpirometryTarget is the spirometry testing target rate.
	SpirometryTarget float64

	// Lethality is the 75th percentile of the lethality rate across
	// all observations with a non-missing value.
	Lethality float64

	// Access is the 25th percentile of the patients-in-care rate
	// across all observations with a non-missing value.
	Access float64
}

// ComputeThresholds derives the scoring benchmarks from the raw,
// unfiltered table. Missing values are excluded from the percentile
// computations; a column with no non-missing values at all yields a
// ThresholdComputationError.
func ComputeThresholds(raw Table) (Thresholds, error) {
	lethality := quantile.DropMissing(column(raw, func(o *Observation) float64 { return o.LethalityRate }))
	if len(lethality) == 0 {
		return Thresholds{}, &ThresholdComputationError{Column: "lethality_rate"}
	}
	patients := quantile.DropMissing(column(raw, func(o *Observation) float64 { return o.PatientsRate }))
	if len(patients) == 0 {
		return Thresholds{}, &ThresholdComputationError{Column: "patients_rate"}
	}
	return Thresholds{
		SpirometryTarget: SpirometryTarget,
		Lethality:        quantile.Quantile(lethality, 0.75),
		Access:           quantile.Quantile(patients, 0.25),
	}, nil
}

func column(t Table, f func(*Observation) float64) []float64 {
	vals := make([]float64, len(t))
	for i, o := range t {
		vals[i] = f(o)
	}
	return vals
}

// SpirometryScore penalizes spirometry testing below the national
// target, proportionally to the shortfall.
func (th Thresholds) SpirometryScore(o *Observation) float64 {
	return shortfallPenalty(o.SpirometryRate, th.SpirometryTarget, deficitPenalized)
}

// LethalityScore penalizes case fatality above the national 75th
// percentile, proportionally to the excess.
func (th Thresholds) LethalityScore(o *Observation) float64 {
	return shortfallPenalty(o.LethalityRate, th.Lethality, excessPenalized)
}

// AccessScore penalizes patients-in-care rates below the national 25th
// percentile, proportionally to the shortfall.
func (th Thresholds) AccessScore(o *Observation) float64 {
	return shortfallPenalty(o.PatientsRate, th.Access, deficitPenalized)
}

// BiasIndex is the sum of the three penalty scores for o. It is not
// normalized or capped.
func (th Thresholds) BiasIndex(o *Observation) float64 {
	return th.SpirometryScore(o) + th.LethalityScore(o) + th.AccessScore(o)
}

// AdjustmentFactor is 1 plus the bias index, the multiplier applied to
// raw prevalence to correct for under-diagnosis. Always >= 1 for
// complete observations.
func (th Thresholds) AdjustmentFactor(o *Observation) float64 {
	return 1 + th.BiasIndex(o)
}

// BuildAnalysisTable scores every observation in raw against th and
// returns the cleaned analysis table: the surviving observations, in
// their original order, each with its AdjustmentFactor set and no
// missing value in any required analysis field. Rows with missing
// required fields are dropped, never scored with defaults.
//
// The input table is not modified.
func BuildAnalysisTable(raw Table, th Thresholds) Table {
	var out Table
	for _, o := range raw {
		scored := *o
		scored.AdjustmentFactor = th.AdjustmentFactor(o)
		if !scored.analysisComplete() {
			continue
		}
		out = append(out, &scored)
	}
	return out
}

// ScoreSummary describes the distribution of the computed scores and
// adjustment factors across a cleaned table, for audit reporting.
type ScoreSummary struct {
	Rows                 int
	MinFactor, MaxFactor float64
	MinIndex, MaxIndex   float64
}

// Summarize reports the range of bias indices and adjustment factors in
// the cleaned table t.
func (th Thresholds) Summarize(t Table) ScoreSummary {
	if len(t) == 0 {
		return ScoreSummary{}
	}
	factors := column(t, func(o *Observation) float64 { return o.AdjustmentFactor })
	s := ScoreSummary{
		Rows:      len(t),
		MinFactor: floats.Min(factors),
		MaxFactor: floats.Max(factors),
	}
	s.MinIndex = s.MinFactor - 1
	s.MaxIndex = s.MaxFactor - 1
	return s
}
