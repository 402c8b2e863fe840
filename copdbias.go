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

// Package copdbias estimates under-diagnosis-corrected COPD prevalence for
// Colombian departments. It scores each department-year against national
// diagnostic-capacity benchmarks, combines the scores into a bias adjustment
// factor, and prepares the analysis table consumed by the regression model
// and the posterior aggregation in package posterior.
package copdbias

import (
	"math"
)

// An Observation holds the administrative health indicators for one
// department in one year. Rates are per 100,000 population aged 40 and
// older unless noted otherwise; proportions are in [0, 1].
type Observation struct {
	// Department is the department name (DPNOM).
	Department string

	// Capital is the name of the department capital.
	Capital string

	// DeptCode is the DANE administrative code for the department.
	DeptCode string

	// Year is the reporting year.
	Year int

	// SpirometryRate is the rate of spirometry tests performed.
	SpirometryRate float64

	// LethalityRate is the COPD case-fatality proportion.
	LethalityRate float64

	// PatientsRate is the rate of patients in COPD care programs.
	PatientsRate float64

	// BiomassStoveUsage is the proportion of households cooking
	// with wood or other biomass fuels.
	BiomassStoveUsage float64

	// PovertyIndex is the multidimensional poverty index.
	PovertyIndex float64

	// PopOver40Percent is the percentage of the department population
	// aged 40 and older.
	PopOver40Percent float64

	// TotalPrevalence is the raw (registry-based) COPD prevalence
	// proportion.
	TotalPrevalence float64

	// TotalPopulation is the total department population.
	TotalPopulation float64

	// PopOver40 is the department population aged 40 and older
	// (Pob40_Depto). It is the weight for national aggregation.
	// NaN when the census figure is unavailable for the year.
	PopOver40 float64

	// AdjustmentFactor is the under-diagnosis correction multiplier,
	// 1 + the sum of the three penalty scores. Zero until scoring.
	AdjustmentFactor float64
}

// A Table is an ordered collection of department-year observations.
// Order is preserved through scoring and filtering.
type Table []*Observation

// missing reports whether v represents a missing value.
func missing(v float64) bool { return math.IsNaN(v) }

// analysisComplete reports whether every field required in the cleaned
// analysis table is present for o. The population weight is deliberately
// not included: observations without a census weight stay in the table
// and are only excluded from national aggregation.
func (o *Observation) analysisComplete() bool {
	for _, v := range []float64{
		o.SpirometryRate,
		o.LethalityRate,
		o.PatientsRate,
		o.BiomassStoveUsage,
		o.PovertyIndex,
		o.PopOver40Percent,
		o.TotalPrevalence,
		o.AdjustmentFactor,
	} {
		if missing(v) {
			return false
		}
	}
	return true
}

// Departments returns the distinct department names in t in order of
// first appearance.
func (t Table) Departments() []string {
	var names []string
	seen := make(map[string]bool)
	for _, o := range t {
		if !seen[o.Department] {
			seen[o.Department] = true
			names = append(names, o.Department)
		}
	}
	return names
}

// Prevalences returns the raw prevalence of every observation in t,
// in table order.
func (t Table) Prevalences() []float64 {
	p := make([]float64, len(t))
	for i, o := range t {
		p[i] = o.TotalPrevalence
	}
	return p
}

// Weights returns the population-over-40 weight of every observation in
// t, in table order. Missing weights are returned as NaN.
func (t Table) Weights() []float64 {
	w := make([]float64, len(t))
	for i, o := range t {
		w[i] = o.PopOver40
	}
	return w
}
