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
	"os"
	"path/filepath"

	"github.com/healthmodel/copdbias"
	"github.com/healthmodel/copdbias/posterior"
	"github.com/healthmodel/copdbias/report"
)

// RunFigures draws the diagnostic and manuscript figures into
// figureDir, creating it if necessary.
func RunFigures(analysisFile, drawsFile, figureDir string) error {
	if err := ensureDir(figureDir); err != nil {
		return err
	}
	ar, err := os.Open(analysisFile)
	if err != nil {
		return err
	}
	defer ar.Close()
	t, err := copdbias.ReadAnalysisCSV(ar)
	if err != nil {
		return err
	}
	dr, err := os.Open(drawsFile)
	if err != nil {
		return err
	}
	defer dr.Close()
	draws, err := posterior.ReadDrawsCSV(dr)
	if err != nil {
		return err
	}
	s, err := posterior.Aggregate(draws, t, Cfg.GetString("NationalLabel"))
	if err != nil {
		return err
	}

	for _, fig := range []struct {
		file string
		draw func(string) error
	}{
		{"department_intervals.png", func(f string) error { return report.DepartmentIntervals(s, f) }},
		{"adjustment_histogram.png", func(f string) error { return report.AdjustmentHistogram(t, f) }},
		{"prevalence_scatter.png", func(f string) error { return report.PrevalenceScatter(t, f) }},
	} {
		path := filepath.Join(figureDir, fig.file)
		if err := fig.draw(path); err != nil {
			return err
		}
		logger.WithField("file", path).Info("wrote figure")
	}
	return nil
}
