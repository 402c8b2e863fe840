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

	"github.com/GaryBoone/GoStats/stats"
	"github.com/sirupsen/logrus"

	"github.com/healthmodel/copdbias"
)

// RunScore executes the first pipeline stage: it reads the raw
// department-year workbook, computes the scoring thresholds from the
// unfiltered data, scores every observation, and writes the cleaned
// analysis table to analysisFile. outputVars optionally adds derived
// audit columns.
//
// The audit trail (row counts, thresholds, and the range of the
// computed factors) is logged so the transformation can be reviewed
// without re-deriving it.
func RunScore(rawFile, sheet, analysisFile string, outputVars map[string]string) error {
	raw, err := copdbias.ReadRawXLSX(rawFile, sheet)
	if err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{
		"file": rawFile,
		"rows": len(raw),
	}).Info("read raw data")
	logger.Infof("dropping deprecated columns if present: %v", copdbias.DeprecatedColumns())

	// Thresholds come from the raw, unfiltered dataset.
	th, err := copdbias.ComputeThresholds(raw)
	if err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{
		"spirometry_target": th.SpirometryTarget,
		"lethality_p75":     th.Lethality,
		"patients_rate_p25": th.Access,
	}).Info("computed scoring thresholds")

	cleaned := copdbias.BuildAnalysisTable(raw, th)
	logger.WithFields(logrus.Fields{
		"rows_in":      len(raw),
		"rows_out":     len(cleaned),
		"rows_dropped": len(raw) - len(cleaned),
	}).Info("filtered incomplete rows")

	factors := make([]float64, len(cleaned))
	for i, o := range cleaned {
		factors[i] = o.AdjustmentFactor
	}
	if len(factors) > 1 {
		logger.WithFields(logrus.Fields{
			"mean": stats.StatsMean(factors),
			"sd":   stats.StatsSampleStandardDeviation(factors),
			"min":  stats.StatsMin(factors),
			"max":  stats.StatsMax(factors),
		}).Info("adjustment factor summary")
	}

	var out *copdbias.Outputter
	if len(outputVars) > 0 {
		if out, err = copdbias.NewOutputter(outputVars); err != nil {
			return err
		}
	}
	w, err := os.Create(analysisFile)
	if err != nil {
		return err
	}
	defer w.Close()
	if err := copdbias.WriteAnalysisCSV(w, cleaned, out); err != nil {
		return err
	}
	logger.WithField("file", analysisFile).Info("wrote analysis table")
	return nil
}
