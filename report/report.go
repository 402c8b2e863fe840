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

// Package report draws the diagnostic and manuscript figures:
// department prevalence estimates with credible intervals, the
// distribution of adjustment factors, and raw versus corrected
// prevalence.
package report

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/healthmodel/copdbias"
	"github.com/healthmodel/copdbias/posterior"
)

const (
	figWidth  = 6 * vg.Inch
	figHeight = 4 * vg.Inch
)

// errPoints combines point locations with asymmetric Y errors for the
// interval plot.
type errPoints struct {
	plotter.XYs
	plotter.YErrors
}

// DepartmentIntervals plots each department's posterior median
// prevalence with its 95% credible interval, in the summary's
// (descending-prevalence) order, and writes the figure to filename.
// The image format is inferred from the file extension.
func DepartmentIntervals(s *posterior.Summary, filename string) error {
	p, err := plot.New()
	if err != nil {
		return fmt.Errorf("report: creating interval plot: %v", err)
	}
	p.Title.Text = "Corrected COPD prevalence by department"
	p.Y.Label.Text = "Prevalence"
	p.X.Tick.Label.Rotation = -1.2
	p.X.Tick.Label.XAlign = -0.9

	pts := errPoints{
		XYs:     make(plotter.XYs, len(s.Departments)),
		YErrors: make(plotter.YErrors, len(s.Departments)),
	}
	names := make([]string, len(s.Departments))
	for i, e := range s.Departments {
		pts.XYs[i].X = float64(i)
		pts.XYs[i].Y = e.Prevalence
		pts.YErrors[i].Low = e.Prevalence - e.Lower
		pts.YErrors[i].High = e.Upper - e.Prevalence
		names[i] = e.Department
	}
	scatter, err := plotter.NewScatter(pts.XYs)
	if err != nil {
		return fmt.Errorf("report: creating interval plot: %v", err)
	}
	scatter.Radius = vg.Points(2)
	bars, err := plotter.NewYErrorBars(pts)
	if err != nil {
		return fmt.Errorf("report: creating interval plot: %v", err)
	}
	p.Add(scatter, bars)
	p.NominalX(names...)

	if err := p.Save(figWidth, figHeight, filename); err != nil {
		return fmt.Errorf("report: saving interval plot: %v", err)
	}
	return nil
}

// AdjustmentHistogram plots the distribution of adjustment factors in
// the cleaned analysis table and writes the figure to filename.
func AdjustmentHistogram(t copdbias.Table, filename string) error {
	p, err := plot.New()
	if err != nil {
		return fmt.Errorf("report: creating adjustment histogram: %v", err)
	}
	p.Title.Text = "Adjustment factor distribution"
	p.X.Label.Text = "Adjustment factor"
	p.Y.Label.Text = "Department-years"

	vals := make(plotter.Values, len(t))
	for i, o := range t {
		vals[i] = o.AdjustmentFactor
	}
	h, err := plotter.NewHist(vals, 16)
	if err != nil {
		return fmt.Errorf("report: creating adjustment histogram: %v", err)
	}
	p.Add(h)

	if err := p.Save(figWidth, figHeight, filename); err != nil {
		return fmt.Errorf("report: saving adjustment histogram: %v", err)
	}
	return nil
}

// PrevalenceScatter plots corrected against raw prevalence for every
// department-year, with the identity line for reference, and writes the
// figure to filename.
func PrevalenceScatter(t copdbias.Table, filename string) error {
	p, err := plot.New()
	if err != nil {
		return fmt.Errorf("report: creating prevalence scatter: %v", err)
	}
	p.Title.Text = "Raw vs. corrected prevalence"
	p.X.Label.Text = "Raw prevalence"
	p.Y.Label.Text = "Corrected prevalence"

	pts := make(plotter.XYs, len(t))
	var max float64
	for i, o := range t {
		pts[i].X = o.TotalPrevalence
		pts[i].Y = o.TotalPrevalence * o.AdjustmentFactor
		if pts[i].Y > max {
			max = pts[i].Y
		}
	}
	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return fmt.Errorf("report: creating prevalence scatter: %v", err)
	}
	identity, err := plotter.NewLine(plotter.XYs{{X: 0, Y: 0}, {X: max, Y: max}})
	if err != nil {
		return fmt.Errorf("report: creating prevalence scatter: %v", err)
	}
	p.Add(scatter, identity)

	if err := p.Save(figWidth, figHeight, filename); err != nil {
		return fmt.Errorf("report: saving prevalence scatter: %v", err)
	}
	return nil
}
