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

package posterior

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/healthmodel/copdbias"
)

// tableRow builds a minimal analysis-table row for aggregation tests.
func tableRow(dept string, year int, prevalence, weight float64) *copdbias.Observation {
	return &copdbias.Observation{
		Department:       dept,
		Year:             year,
		TotalPrevalence:  prevalence,
		PopOver40:        weight,
		AdjustmentFactor: 1,
	}
}

// Three departments with one year each, two draws: draw 1 leaves the
// raw prevalences unchanged and draw 2 doubles them.
func scenario() (*mat.Dense, copdbias.Table) {
	t := copdbias.Table{
		tableRow("A", 2019, 0.01, 1000),
		tableRow("B", 2019, 0.02, 1000),
		tableRow("C", 2019, 0.03, 1000),
	}
	draws := mat.NewDense(2, 3, []float64{
		1, 1, 1,
		2, 2, 2,
	})
	return draws, t
}

func TestTruePrevalence(t *testing.T) {
	draws, table := scenario()
	tp, err := TruePrevalence(draws, table)
	if err != nil {
		t.Fatal(err)
	}
	want := [][]float64{
		{0.01, 0.02, 0.03},
		{0.02, 0.04, 0.06},
	}
	for i := range want {
		for j := range want[i] {
			if have := tp.At(i, j); math.Abs(have-want[i][j]) > 1e-12 {
				t.Errorf("T[%d,%d] = %g, want %g", i, j, have, want[i][j])
			}
		}
	}
}

func TestDimensionMismatch(t *testing.T) {
	_, table := scenario() // 3 rows
	draws := mat.NewDense(2, 5, nil)
	_, err := Aggregate(draws, table, "")
	if err == nil {
		t.Fatal("expected error for mismatched dimensions")
	}
	de, ok := err.(*DimensionMismatchError)
	if !ok {
		t.Fatalf("error type = %T, want *DimensionMismatchError", err)
	}
	if de.MatrixCols != 5 || de.TableRows != 3 {
		t.Errorf("mismatch = %d columns vs %d rows, want 5 vs 3", de.MatrixCols, de.TableRows)
	}
}

func TestAggregateScenario(t *testing.T) {
	draws, table := scenario()
	s, err := Aggregate(draws, table, "")
	if err != nil {
		t.Fatal(err)
	}

	// Departments are sorted descending by estimated prevalence.
	wantOrder := []string{"C", "B", "A"}
	wantMedian := []float64{0.045, 0.03, 0.015}
	if len(s.Departments) != 3 {
		t.Fatalf("departments = %d, want 3", len(s.Departments))
	}
	for i, e := range s.Departments {
		if e.Department != wantOrder[i] {
			t.Errorf("department %d = %s, want %s", i, e.Department, wantOrder[i])
		}
		if math.Abs(e.Prevalence-wantMedian[i]) > 1e-12 {
			t.Errorf("%s: prevalence = %g, want %g", e.Department, e.Prevalence, wantMedian[i])
		}
		if !(e.Lower <= e.Prevalence && e.Prevalence <= e.Upper) {
			t.Errorf("%s: interval [%g, %g] does not contain %g", e.Department, e.Lower, e.Upper, e.Prevalence)
		}
	}

	// With equal weights the national draws are the plain means 0.02
	// and 0.04, so the national median is 0.03 and the interval
	// interpolates between the two draws.
	if s.National.Region != "Colombia" {
		t.Errorf("national label = %s, want Colombia", s.National.Region)
	}
	if math.Abs(s.National.Prevalence-0.03) > 1e-12 {
		t.Errorf("national prevalence = %g, want 0.03", s.National.Prevalence)
	}
	if math.Abs(s.National.Lower-0.0205) > 1e-12 {
		t.Errorf("national lower = %g, want 0.0205", s.National.Lower)
	}
	if math.Abs(s.National.Upper-0.0395) > 1e-12 {
		t.Errorf("national upper = %g, want 0.0395", s.National.Upper)
	}
	if s.ExcludedFromNational != 0 {
		t.Errorf("excluded = %d, want 0", s.ExcludedFromNational)
	}
}

// The weighted mean of a constant is the constant, whatever the weight
// distribution.
func TestNationalWeightedMeanOfConstant(t *testing.T) {
	table := copdbias.Table{
		tableRow("A", 2019, 0.02, 100),
		tableRow("B", 2019, 0.02, 900000),
		tableRow("C", 2019, 0.02, 1),
	}
	draws := mat.NewDense(1, 3, []float64{1, 1, 1})
	s, err := Aggregate(draws, table, "")
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(s.National.Prevalence-0.02) > 1e-12 {
		t.Errorf("national prevalence = %g, want 0.02", s.National.Prevalence)
	}
}

func TestMissingWeights(t *testing.T) {
	table := copdbias.Table{
		tableRow("A", 2018, 0.01, 500),
		tableRow("A", 2019, 0.03, math.NaN()),
		tableRow("B", 2019, 0.02, 500),
	}
	draws := mat.NewDense(2, 3, []float64{
		1, 1, 1,
		1, 1, 1,
	})
	s, err := Aggregate(draws, table, "")
	if err != nil {
		t.Fatal(err)
	}
	if s.ExcludedFromNational != 1 {
		t.Errorf("excluded = %d, want 1", s.ExcludedFromNational)
	}
	// The unweighted row still participates in its department's
	// aggregate: A's per-draw median is median(0.01, 0.03) = 0.02.
	var a Estimate
	for _, e := range s.Departments {
		if e.Department == "A" {
			a = e
		}
	}
	if math.Abs(a.Prevalence-0.02) > 1e-12 {
		t.Errorf("department A prevalence = %g, want 0.02", a.Prevalence)
	}
	// The national mean uses only the weighted rows: (0.01+0.02)/2.
	if math.Abs(s.National.Prevalence-0.015) > 1e-12 {
		t.Errorf("national prevalence = %g, want 0.015", s.National.Prevalence)
	}
}

func TestAllWeightsMissing(t *testing.T) {
	table := copdbias.Table{
		tableRow("A", 2019, 0.01, math.NaN()),
	}
	draws := mat.NewDense(1, 1, []float64{1})
	_, err := Aggregate(draws, table, "")
	if err == nil {
		t.Fatal("expected error when no observation has a weight")
	}
	we, ok := err.(*MissingWeightError)
	if !ok {
		t.Fatalf("error type = %T, want *MissingWeightError", err)
	}
	if we.Excluded != 1 {
		t.Errorf("excluded = %d, want 1", we.Excluded)
	}
}

func TestSummaryWriteCSV(t *testing.T) {
	draws, table := scenario()
	s, err := Aggregate(draws, table, "")
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := s.WriteCSV(&buf); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 5 {
		t.Fatalf("lines = %d, want 5:\n%s", len(lines), buf.String())
	}
	if lines[0] != "Region,Department,Prevalence,95% CrI" {
		t.Errorf("header = %s", lines[0])
	}
	// The national row comes first, then departments in the summary's
	// order, each formatted to 4 decimal places.
	if lines[1] != `Colombia,,0.0300,"[0.0205, 0.0395]"` {
		t.Errorf("national row = %s", lines[1])
	}
	for i, e := range s.Departments {
		want := "," + e.Department + "," + e.PrevalenceString() + `,"` + e.CrIString() + `"`
		if lines[i+2] != want {
			t.Errorf("line %d = %s, want %s", i+2, lines[i+2], want)
		}
	}
}

func TestEstimateFormatting(t *testing.T) {
	e := Estimate{Department: "Nariño", Prevalence: 0.031234, Lower: 0.02, Upper: 0.04129}
	if have := e.PrevalenceString(); have != "0.0312" {
		t.Errorf("prevalence string = %s, want 0.0312", have)
	}
	if have := e.CrIString(); have != "[0.0200, 0.0413]" {
		t.Errorf("CrI string = %s, want [0.0200, 0.0413]", have)
	}
}

func TestDrawsCSVRoundTrip(t *testing.T) {
	m := mat.NewDense(2, 3, []float64{
		1.25, 0.5, 3,
		2, 1.75, 0.125,
	})
	var buf bytes.Buffer
	if err := WriteDrawsCSV(&buf, m); err != nil {
		t.Fatal(err)
	}
	back, err := ReadDrawsCSV(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	if !mat.Equal(m, back) {
		t.Errorf("round trip mismatch:\ngot  %v\nwant %v", mat.Formatted(back), mat.Formatted(m))
	}
}
