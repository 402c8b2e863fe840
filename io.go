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
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/ctessum/requestcache"
	"github.com/tealeg/xlsx"
)

// Raw (Spanish) column headers expected in the administrative source
// workbooks, keyed by the stable analysis vocabulary used everywhere
// downstream.
var rawColumns = map[string]string{
	"DPNOM":                          "Departamento",
	"Nom_Capital":                    "Capital",
	"Cod_Depto":                      "Cod_Depto",
	"Year":                           "Periodo",
	"spirometry_rate":                "Tasa_Espirometria",
	"lethality_rate":                 "Tasa_Letalidad",
	"patients_rate":                  "Tasa_Pacientes",
	"biomass_stove_usage":            "Uso_Estufa_Lena",
	"multidimensional_poverty_index": "IPM",
	"pop_over_40_percent":            "Pct_Poblacion_40",
	"total_prevalence":               "Prevalencia_Cruda",
	"total_population":               "Poblacion_Total",
	"Pob40_Depto":                    "Pob40_Depto",
}

// deprecatedRawColumns are adjustment columns from earlier report
// rounds. They are dropped unconditionally and never reach the
// analysis table.
var deprecatedRawColumns = []string{"Factor_Ajuste_Anterior", "Ajuste_Subregistro_2019"}

// DeprecatedColumns returns the raw header names of the legacy
// adjustment columns that are unconditionally dropped on ingestion.
func DeprecatedColumns() []string {
	return append([]string{}, deprecatedRawColumns...)
}

// excelCache holds previously opened Microsoft Excel files
// to avoid reading the same file multiple times.
var excelCache *requestcache.Cache

var loadExcelCacheOnce sync.Once

// loadExcelFile loads a Microsoft Excel file from disk, utilizing
// a cache to avoid loading the same file more than once.
func loadExcelFile(fileName string) (*xlsx.File, error) {
	loadExcelCacheOnce.Do(func() {
		excelCache = requestcache.NewCache(func(ctx context.Context, req interface{}) (interface{}, error) {
			filename := req.(string)
			f, err := xlsx.OpenFile(filename)
			if err != nil {
				return nil, fmt.Errorf("copdbias: opening xlsx file: %v", err)
			}
			return f, nil
		}, runtime.GOMAXPROCS(-1), requestcache.Memory(100))
	})
	r := excelCache.NewRequest(context.Background(), fileName, fileName)
	fI, err := r.Result()
	if err != nil {
		return nil, err
	}
	return fI.(*xlsx.File), nil
}

// ReadRawXLSX reads the raw department-year table from the given sheet
// of a Microsoft Excel workbook. The first row must hold the raw
// (Spanish) column headers; a DataValidationError is returned when any
// required raw column is absent. Blank and "NA"/"ND" cells become
// missing values; the deprecated legacy adjustment columns are ignored
// even when present.
func ReadRawXLSX(fileName, sheet string) (Table, error) {
	f, err := loadExcelFile(fileName)
	if err != nil {
		return nil, err
	}
	s, ok := f.Sheet[sheet]
	if !ok {
		return nil, fmt.Errorf("copdbias: reading raw data: no sheet %s in %s", sheet, fileName)
	}
	if s.MaxRow < 1 {
		return nil, &DataValidationError{Detail: fmt.Sprintf("sheet %s is empty", sheet)}
	}

	index := make(map[string]int) // analysis name -> column index
	for c := 0; c < s.MaxCol; c++ {
		h := strings.TrimSpace(s.Cell(0, c).Value)
		for analysis, raw := range rawColumns {
			if h == raw {
				index[analysis] = c
			}
		}
	}
	var missingCols []string
	for analysis, raw := range rawColumns {
		if _, ok := index[analysis]; !ok {
			missingCols = append(missingCols, raw)
		}
	}
	if len(missingCols) > 0 {
		return nil, &DataValidationError{Columns: missingCols}
	}

	var t Table
	for r := 1; r < s.MaxRow; r++ {
		cell := func(analysis string) string {
			return strings.TrimSpace(s.Cell(r, index[analysis]).Value)
		}
		if cell("DPNOM") == "" && cell("Year") == "" {
			continue // trailing blank row
		}
		year, err := strconv.Atoi(cell("Year"))
		if err != nil {
			return nil, &DataValidationError{Detail: fmt.Sprintf("row %d: invalid year %q", r+1, cell("Year"))}
		}
		o := &Observation{
			Department: cell("DPNOM"),
			Capital:    cell("Nom_Capital"),
			DeptCode:   cell("Cod_Depto"),
			Year:       year,
		}
		for analysis, dst := range map[string]*float64{
			"spirometry_rate":                &o.SpirometryRate,
			"lethality_rate":                 &o.LethalityRate,
			"patients_rate":                  &o.PatientsRate,
			"biomass_stove_usage":            &o.BiomassStoveUsage,
			"multidimensional_poverty_index": &o.PovertyIndex,
			"pop_over_40_percent":            &o.PopOver40Percent,
			"total_prevalence":               &o.TotalPrevalence,
			"total_population":               &o.TotalPopulation,
			"Pob40_Depto":                    &o.PopOver40,
		} {
			v, err := parseCell(cell(analysis))
			if err != nil {
				return nil, &DataValidationError{Detail: fmt.Sprintf("row %d, column %s: %v", r+1, rawColumns[analysis], err)}
			}
			*dst = v
		}
		t = append(t, o)
	}
	return t, nil
}

// parseCell converts a raw spreadsheet cell to a float, mapping the
// source's missing-value markers to NaN. Administrative exports use
// comma decimal separators in some report rounds.
func parseCell(s string) (float64, error) {
	switch s {
	case "", "NA", "ND", "NaN":
		return math.NaN(), nil
	}
	s = strings.Replace(s, ",", ".", 1)
	return strconv.ParseFloat(s, 64)
}

// analysisHeader is the column order of the cleaned analysis table.
var analysisHeader = []string{
	"DPNOM", "Nom_Capital", "Year",
	"spirometry_rate", "lethality_rate", "patients_rate",
	"biomass_stove_usage", "multidimensional_poverty_index",
	"pop_over_40_percent", "total_prevalence", "adjustment_factor",
	"Pob40_Depto",
}

// WriteAnalysisCSV writes the cleaned analysis table to w. An optional
// Outputter appends derived audit columns. A missing population weight
// is written as an empty field; all other listed columns are guaranteed
// non-missing by BuildAnalysisTable.
func WriteAnalysisCSV(w io.Writer, t Table, out *Outputter) error {
	cw := csv.NewWriter(w)
	header := analysisHeader
	if out != nil {
		header = append(append([]string{}, header...), out.Names()...)
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("copdbias: writing analysis table: %v", err)
	}
	for _, o := range t {
		rec := []string{
			o.Department, o.Capital, strconv.Itoa(o.Year),
			formatValue(o.SpirometryRate),
			formatValue(o.LethalityRate),
			formatValue(o.PatientsRate),
			formatValue(o.BiomassStoveUsage),
			formatValue(o.PovertyIndex),
			formatValue(o.PopOver40Percent),
			formatValue(o.TotalPrevalence),
			formatValue(o.AdjustmentFactor),
			formatValue(o.PopOver40),
		}
		if out != nil {
			derived, err := out.Eval(o)
			if err != nil {
				return err
			}
			for _, v := range derived {
				rec = append(rec, formatValue(v))
			}
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("copdbias: writing analysis table: %v", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatValue(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// ReadAnalysisCSV reads a cleaned analysis table previously written by
// WriteAnalysisCSV. Extra (derived) columns are ignored.
func ReadAnalysisCSV(r io.Reader) (Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("copdbias: reading analysis table: %v", err)
	}
	if len(records) == 0 {
		return nil, &DataValidationError{Detail: "analysis table is empty"}
	}
	index := make(map[string]int)
	for i, h := range records[0] {
		index[h] = i
	}
	var missingCols []string
	for _, h := range analysisHeader {
		if _, ok := index[h]; !ok {
			missingCols = append(missingCols, h)
		}
	}
	if len(missingCols) > 0 {
		return nil, &DataValidationError{Columns: missingCols}
	}

	var t Table
	for rowNum, rec := range records[1:] {
		if len(rec) < len(records[0]) {
			return nil, &DataValidationError{Detail: fmt.Sprintf("row %d has %d fields, want %d", rowNum+2, len(rec), len(records[0]))}
		}
		field := func(name string) string { return rec[index[name]] }
		year, err := strconv.Atoi(field("Year"))
		if err != nil {
			return nil, &DataValidationError{Detail: fmt.Sprintf("row %d: invalid year %q", rowNum+2, field("Year"))}
		}
		o := &Observation{
			Department: field("DPNOM"),
			Capital:    field("Nom_Capital"),
			Year:       year,
		}
		for name, dst := range map[string]*float64{
			"spirometry_rate":                &o.SpirometryRate,
			"lethality_rate":                 &o.LethalityRate,
			"patients_rate":                  &o.PatientsRate,
			"biomass_stove_usage":            &o.BiomassStoveUsage,
			"multidimensional_poverty_index": &o.PovertyIndex,
			"pop_over_40_percent":            &o.PopOver40Percent,
			"total_prevalence":               &o.TotalPrevalence,
			"adjustment_factor":              &o.AdjustmentFactor,
			"Pob40_Depto":                    &o.PopOver40,
		} {
			v, err := parseCell(field(name))
			if err != nil {
				return nil, &DataValidationError{Detail: fmt.Sprintf("row %d, column %s: %v", rowNum+2, name, err)}
			}
			*dst = v
		}
		t = append(t, o)
	}
	return t, nil
}
