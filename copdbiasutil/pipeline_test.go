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

package copdbiasutil

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tealeg/xlsx"
	"gonum.org/v1/gonum/mat"

	"github.com/healthmodel/copdbias"
	"github.com/healthmodel/copdbias/model"
	"github.com/healthmodel/copdbias/posterior"
)

// writeTestWorkbook writes a small raw workbook with three departments
// over one year.
func writeTestWorkbook(t *testing.T, dir string) string {
	t.Helper()
	rows := [][]string{
		{"Departamento", "Capital", "Cod_Depto", "Periodo",
			"Tasa_Espirometria", "Tasa_Letalidad", "Tasa_Pacientes",
			"Uso_Estufa_Lena", "IPM", "Pct_Poblacion_40",
			"Prevalencia_Cruda", "Poblacion_Total", "Pob40_Depto"},
		{"Antioquia", "Medellín", "05", "2019", "1200", "0.02", "300", "0.12", "0.19", "31.2", "0.01", "6500000", "2000000"},
		{"Atlántico", "Barranquilla", "08", "2019", "1150", "0.03", "280", "0.08", "0.25", "29.8", "0.02", "2500000", "700000"},
		{"Chocó", "Quibdó", "27", "2019", "600", "0.09", "90", "0.61", "0.58", "22.4", "0.03", "520000", "150000"},
	}
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Datos")
	if err != nil {
		t.Fatal(err)
	}
	for _, rec := range rows {
		row := sheet.AddRow()
		for _, v := range rec {
			row.AddCell().Value = v
		}
	}
	path := filepath.Join(dir, "raw.xlsx")
	if err := f.Save(path); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestScoreThenAggregate(t *testing.T) {
	dir := t.TempDir()
	rawFile := writeTestWorkbook(t, dir)
	analysisFile := filepath.Join(dir, "analysis.csv")

	if err := RunScore(rawFile, "Datos", analysisFile, map[string]string{
		"corrected_prevalence": "total_prevalence * adjustment_factor",
	}); err != nil {
		t.Fatal(err)
	}

	ar, err := os.Open(analysisFile)
	if err != nil {
		t.Fatal(err)
	}
	table, err := copdbias.ReadAnalysisCSV(ar)
	ar.Close()
	if err != nil {
		t.Fatal(err)
	}
	if len(table) != 3 {
		t.Fatalf("analysis rows = %d, want 3", len(table))
	}
	for _, o := range table {
		if !(o.AdjustmentFactor >= 1) {
			t.Errorf("%s: adjustment factor = %g, want >= 1", o.Department, o.AdjustmentFactor)
		}
	}

	// Produce draws with the deterministic sample engine and persist
	// a handle the way the external fit stage would.
	fitted := constantFitted{table: table}
	draws, err := fitted.PosteriorDraws(200)
	if err != nil {
		t.Fatal(err)
	}
	drawsFile := filepath.Join(dir, "draws.csv")
	dw, err := os.Create(drawsFile)
	if err != nil {
		t.Fatal(err)
	}
	if err := posterior.WriteDrawsCSV(dw, draws); err != nil {
		t.Fatal(err)
	}
	dw.Close()

	modelFile := filepath.Join(dir, "model.gob")
	mw, err := os.Create(modelFile)
	if err != nil {
		t.Fatal(err)
	}
	if err := model.Save(mw, model.NewHandle(table, model.Default, "test-engine", []byte("state"))); err != nil {
		t.Fatal(err)
	}
	mw.Close()

	summaryFile := filepath.Join(dir, "summary.csv")
	if err := RunAggregate(analysisFile, drawsFile, modelFile, summaryFile, "Colombia"); err != nil {
		t.Fatal(err)
	}

	out, err := ioutil.ReadFile(summaryFile)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	if len(lines) != 5 { // header + national + 3 departments
		t.Fatalf("summary lines = %d, want 5:\n%s", len(lines), out)
	}
	if !strings.HasPrefix(lines[1], "Colombia,") {
		t.Errorf("first data row = %s, want the national row", lines[1])
	}
	// Chocó carries the largest penalties and the highest raw
	// prevalence, so it leads the department ordering.
	if !strings.HasPrefix(lines[2], ",Chocó,") {
		t.Errorf("second data row = %s, want Chocó first among departments", lines[2])
	}
}

// constantFitted returns each observation's adjustment factor in every
// draw, standing in for the external engine.
type constantFitted struct {
	table copdbias.Table
}

func (c constantFitted) Formula() model.Formula { return model.Default }

func (c constantFitted) PosteriorDraws(d int) (*mat.Dense, error) {
	m := mat.NewDense(d, len(c.table), nil)
	for i := 0; i < d; i++ {
		for j, o := range c.table {
			m.Set(i, j, o.AdjustmentFactor)
		}
	}
	return m, nil
}
