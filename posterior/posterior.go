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

// Package posterior turns the posterior draw matrix returned by the
// regression model into department-level and national prevalence
// estimates with 95% credible intervals.
//
// The draw matrix holds one expected adjustment factor per posterior
// draw (rows) and observation (columns), columns matching the analysis
// table rows by position. Multiplying each column by its observation's
// raw prevalence gives per-draw "true prevalence" values, which are
// aggregated to a median across years within each department and a
// population-weighted mean nationally, then summarized as a median with
// a central 95% interval.
package posterior

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/healthmodel/copdbias"
	"github.com/healthmodel/copdbias/internal/quantile"
)

// DefaultNationalLabel labels the national summary row.
const DefaultNationalLabel = "Colombia"

// A DimensionMismatchError reports a posterior draw matrix whose
// column count disagrees with the analysis table row count. The two
// must match exactly; the engine never truncates or pads.
type DimensionMismatchError struct {
	MatrixCols, TableRows int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("posterior: draw matrix has %d columns but the analysis table has %d rows", e.MatrixCols, e.TableRows)
}

// An EmptyDepartmentError reports a department with no matched
// observations. The upstream join precludes this, but it is checked
// anyway.
type EmptyDepartmentError struct {
	Department string
}

func (e *EmptyDepartmentError) Error() string {
	return fmt.Sprintf("posterior: department %s has no observations", e.Department)
}

// A MissingWeightError reports that no observation carries a
// population weight, leaving the national weighted mean undefined.
// Partial missingness is not an error: those rows are excluded from
// the national aggregation and counted in Summary.ExcludedFromNational.
type MissingWeightError struct {
	Excluded int
}

func (e *MissingWeightError) Error() string {
	return fmt.Sprintf("posterior: no observation has a population weight (%d excluded); national aggregate is undefined", e.Excluded)
}

// An Estimate is a posterior point estimate with its central 95%
// credible interval. Exactly one of Region and Department is set:
// Region for the national row, Department for department rows.
type Estimate struct {
	Region     string
	Department string

	// Prevalence is the posterior median.
	Prevalence float64

	// Lower and Upper bound the central 95% credible interval.
	Lower, Upper float64
}

// PrevalenceString formats the point estimate for the manuscript table.
func (e Estimate) PrevalenceString() string { return fmt.Sprintf("%.4f", e.Prevalence) }

// CrIString formats the credible interval for the manuscript table.
func (e Estimate) CrIString() string { return fmt.Sprintf("[%.4f, %.4f]", e.Lower, e.Upper) }

// A Summary holds the aggregated posterior estimates: the national row
// followed by the departments in descending order of estimated
// prevalence.
type Summary struct {
	National    Estimate
	Departments []Estimate

	// ExcludedFromNational counts observations left out of the
	// national aggregation because they lack a population weight.
	ExcludedFromNational int
}

// TruePrevalence converts a D×N matrix of expected adjustment factors
// into a D×N matrix of true-prevalence draws by scaling each column by
// the corresponding observation's raw prevalence.
func TruePrevalence(draws *mat.Dense, t copdbias.Table) (*mat.Dense, error) {
	_, n := draws.Dims()
	if n != len(t) {
		return nil, &DimensionMismatchError{MatrixCols: n, TableRows: len(t)}
	}
	prev := t.Prevalences()
	var tp mat.Dense
	tp.Apply(func(i, j int, v float64) float64 { return v * prev[j] }, draws)
	return &tp, nil
}

// Aggregate computes the department and national posterior summaries
// from the draw matrix and the analysis table. nationalLabel labels the
// national row; the empty string means DefaultNationalLabel.
//
// Each department's per-draw value is the median true prevalence across
// its year-observations, robust to any single extreme year. The
// national per-draw value is the mean true prevalence across all
// weighted observations, weighted by population aged 40 and older.
func Aggregate(draws *mat.Dense, t copdbias.Table, nationalLabel string) (*Summary, error) {
	if nationalLabel == "" {
		nationalLabel = DefaultNationalLabel
	}
	tp, err := TruePrevalence(draws, t)
	if err != nil {
		return nil, err
	}
	d, n := tp.Dims()

	// Department aggregation.
	byDept := make(map[string][]int)
	for i, o := range t {
		byDept[o.Department] = append(byDept[o.Department], i)
	}
	var departments []Estimate
	for _, name := range t.Departments() {
		idx := byDept[name]
		if len(idx) == 0 {
			return nil, &EmptyDepartmentError{Department: name}
		}
		sample := make([]float64, d)
		vals := make([]float64, len(idx))
		for di := 0; di < d; di++ {
			for k, i := range idx {
				vals[k] = tp.At(di, i)
			}
			sample[di] = quantile.Median(vals)
		}
		departments = append(departments, summarize(sample, Estimate{Department: name}))
	}
	sort.SliceStable(departments, func(i, j int) bool {
		return departments[i].Prevalence > departments[j].Prevalence
	})

	// National aggregation over all weighted department-year
	// observations (not department medians).
	allWeights := t.Weights()
	var weighted []int
	for i, w := range allWeights {
		if !math.IsNaN(w) {
			weighted = append(weighted, i)
		}
	}
	excluded := n - len(weighted)
	if len(weighted) == 0 {
		return nil, &MissingWeightError{Excluded: excluded}
	}
	weights := make([]float64, len(weighted))
	for k, i := range weighted {
		weights[k] = allWeights[i]
	}
	sample := make([]float64, d)
	vals := make([]float64, len(weighted))
	for di := 0; di < d; di++ {
		for k, i := range weighted {
			vals[k] = tp.At(di, i)
		}
		sample[di] = stat.Mean(vals, weights)
	}

	return &Summary{
		National:             summarize(sample, Estimate{Region: nationalLabel}),
		Departments:          departments,
		ExcludedFromNational: excluded,
	}, nil
}

// summarize fills e with the median and central 95% interval of the
// posterior sample.
func summarize(sample []float64, e Estimate) Estimate {
	e.Prevalence = quantile.Median(sample)
	e.Lower = quantile.Quantile(sample, 0.025)
	e.Upper = quantile.Quantile(sample, 0.975)
	return e
}
