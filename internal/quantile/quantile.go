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

// Package quantile computes sample quantiles with linear interpolation
// between order statistics (the R default convention, type 7). The same
// convention is used for the benchmark thresholds in the scoring stage
// and for the credible intervals in the posterior stage so that the two
// stages are internally consistent.
package quantile

import (
	"math"
	"sort"
)

// Quantile returns the p-th quantile of xs, 0 <= p <= 1, interpolating
// linearly between order statistics: with n = len(xs) sorted ascending,
// the quantile is taken at rank h = (n-1)p + 1.
//
// xs is not modified. Quantile panics if xs is empty or p is outside
// [0, 1]; callers are expected to remove missing values first.
func Quantile(xs []float64, p float64) float64 {
	if len(xs) == 0 {
		panic("quantile: no values")
	}
	if p < 0 || p > 1 || math.IsNaN(p) {
		panic("quantile: p out of range")
	}
	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)

	h := float64(len(sorted)-1) * p
	lo := int(math.Floor(h))
	if lo == len(sorted)-1 {
		return sorted[lo]
	}
	frac := h - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}

// Median returns the 0.5 quantile of xs.
func Median(xs []float64) float64 { return Quantile(xs, 0.5) }

// DropMissing returns the values of xs that are not NaN, preserving
// order.
func DropMissing(xs []float64) []float64 {
	var out []float64
	for _, v := range xs {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}
