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
	"bytes"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tealeg/xlsx"
)

// rawHeaders is the header row of a well-formed raw workbook, with the
// deprecated legacy adjustment columns included to check that they are
// dropped.
var rawHeaders = []string{
	"Departamento", "Capital", "Cod_Depto", "Periodo",
	"Tasa_Espirometria", "Tasa_Letalidad", "Tasa_Pacientes",
	"Uso_Estufa_Lena", "IPM", "Pct_Poblacion_40",
	"Prevalencia_Cruda", "Poblacion_Total", "Pob40_Depto",
	"Factor_Ajuste_Anterior", "Ajuste_Subregistro_2019",
}

func writeRawWorkbook(t *testing.T, rows [][]string) string {
	t.Helper()
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
	path := filepath.Join(t.TempDir(), "raw.xlsx")
	if err := f.Save(path); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReadRawXLSX(t *testing.T) {
	path := writeRawWorkbook(t, [][]string{
		rawHeaders,
		{"Antioquia", "Medellín", "05", "2019", "980.5", "0.04", "210", "0.12", "0.19", "31.2", "0.021", "6500000", "2000000", "1.7", "1.3"},
		{"Chocó", "Quibdó", "27", "2019", "NA", "0.09", "80", "0.61", "0.58", "22.4", "0,008", "520000", "", "1.9", "1.5"},
	})

	table, err := ReadRawXLSX(path, "Datos")
	if err != nil {
		t.Fatal(err)
	}
	if len(table) != 2 {
		t.Fatalf("rows = %d, want 2", len(table))
	}
	a := table[0]
	if a.Department != "Antioquia" || a.Capital != "Medellín" || a.DeptCode != "05" || a.Year != 2019 {
		t.Errorf("unexpected identifiers: %+v", a)
	}
	if a.SpirometryRate != 980.5 || a.LethalityRate != 0.04 || a.PopOver40 != 2000000 {
		t.Errorf("unexpected rates: %+v", a)
	}
	c := table[1]
	if !math.IsNaN(c.SpirometryRate) {
		t.Errorf("missing spirometry rate = %g, want NaN", c.SpirometryRate)
	}
	// Comma decimal separators are accepted.
	if c.TotalPrevalence != 0.008 {
		t.Errorf("prevalence = %g, want 0.008", c.TotalPrevalence)
	}
	if !math.IsNaN(c.PopOver40) {
		t.Errorf("missing weight = %g, want NaN", c.PopOver40)
	}
}

func TestReadRawXLSXMissingColumn(t *testing.T) {
	headers := make([]string, 0, len(rawHeaders))
	for _, h := range rawHeaders {
		if h != "Tasa_Letalidad" {
			headers = append(headers, h)
		}
	}
	path := writeRawWorkbook(t, [][]string{headers})

	_, err := ReadRawXLSX(path, "Datos")
	if err == nil {
		t.Fatal("expected error for missing required column")
	}
	ve, ok := err.(*DataValidationError)
	if !ok {
		t.Fatalf("error type = %T, want *DataValidationError", err)
	}
	if len(ve.Columns) != 1 || ve.Columns[0] != "Tasa_Letalidad" {
		t.Errorf("missing columns = %v, want [Tasa_Letalidad]", ve.Columns)
	}
}

func TestAnalysisCSVRoundTrip(t *testing.T) {
	th := Thresholds{SpirometryTarget: 1105.08, Lethality: 0.05, Access: 200}
	a := obs("Atlántico", 2018)
	b := obs("Amazonas", 2019)
	b.PatientsRate = 150
	b.PopOver40 = math.NaN()
	cleaned := BuildAnalysisTable(Table{a, b}, th)

	var buf bytes.Buffer
	if err := WriteAnalysisCSV(&buf, cleaned, nil); err != nil {
		t.Fatal(err)
	}
	// The deprecated legacy columns never reach the output.
	for _, dep := range DeprecatedColumns() {
		if strings.Contains(buf.String(), dep) {
			t.Errorf("output contains deprecated column %s", dep)
		}
	}

	back, err := ReadAnalysisCSV(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	if len(back) != len(cleaned) {
		t.Fatalf("rows = %d, want %d", len(back), len(cleaned))
	}
	for i := range back {
		if back[i].Department != cleaned[i].Department ||
			back[i].Year != cleaned[i].Year ||
			back[i].AdjustmentFactor != cleaned[i].AdjustmentFactor ||
			back[i].TotalPrevalence != cleaned[i].TotalPrevalence {
			t.Errorf("row %d: got %+v, want %+v", i, back[i], cleaned[i])
		}
	}
	if !math.IsNaN(back[1].PopOver40) {
		t.Errorf("missing weight survived round trip as %g, want NaN", back[1].PopOver40)
	}
}

func TestReadAnalysisCSVTruncatedRow(t *testing.T) {
	th := Thresholds{SpirometryTarget: 1105.08, Lethality: 0.05, Access: 200}
	cleaned := BuildAnalysisTable(Table{obs("Atlántico", 2019)}, th)
	var buf bytes.Buffer
	if err := WriteAnalysisCSV(&buf, cleaned, nil); err != nil {
		t.Fatal(err)
	}
	// A data row with fewer fields than the header.
	truncated := buf.String() + "Antioquia,Medellín,2019\n"

	_, err := ReadAnalysisCSV(strings.NewReader(truncated))
	if err == nil {
		t.Fatal("expected error for truncated data row")
	}
	if _, ok := err.(*DataValidationError); !ok {
		t.Errorf("error type = %T, want *DataValidationError", err)
	}
}

func TestReadAnalysisCSVMissingColumn(t *testing.T) {
	csvData := "DPNOM,Year\nAntioquia,2019\n"
	_, err := ReadAnalysisCSV(strings.NewReader(csvData))
	if err == nil {
		t.Fatal("expected error for missing analysis columns")
	}
	if _, ok := err.(*DataValidationError); !ok {
		t.Errorf("error type = %T, want *DataValidationError", err)
	}
}
