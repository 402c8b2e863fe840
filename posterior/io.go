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
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"gonum.org/v1/gonum/mat"
)

// WriteCSV writes the manuscript table: a header, the national row, and
// then one row per department in descending order of estimated
// prevalence.
func (s *Summary) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Region", "Department", "Prevalence", "95% CrI"}); err != nil {
		return fmt.Errorf("posterior: writing summary table: %v", err)
	}
	rows := append([]Estimate{s.National}, s.Departments...)
	for _, e := range rows {
		rec := []string{e.Region, e.Department, e.PrevalenceString(), e.CrIString()}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("posterior: writing summary table: %v", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteDrawsCSV writes a draw matrix as headerless CSV, one row per
// posterior draw, for transfer across the process boundary to and from
// the external modeling engine.
func WriteDrawsCSV(w io.Writer, m *mat.Dense) error {
	cw := csv.NewWriter(w)
	d, n := m.Dims()
	rec := make([]string, n)
	for i := 0; i < d; i++ {
		for j := 0; j < n; j++ {
			rec[j] = strconv.FormatFloat(m.At(i, j), 'g', -1, 64)
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("posterior: writing draw matrix: %v", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadDrawsCSV reads a draw matrix previously written by WriteDrawsCSV
// (or exported by the external modeling engine in the same layout).
func ReadDrawsCSV(r io.Reader) (*mat.Dense, error) {
	cr := csv.NewReader(r)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("posterior: reading draw matrix: %v", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("posterior: draw matrix is empty")
	}
	d, n := len(records), len(records[0])
	m := mat.NewDense(d, n, nil)
	for i, rec := range records {
		for j, s := range rec {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("posterior: reading draw matrix row %d: %v", i+1, err)
			}
			m.Set(i, j, v)
		}
	}
	return m, nil
}
