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

	"github.com/sirupsen/logrus"

	"github.com/healthmodel/copdbias"
	"github.com/healthmodel/copdbias/model"
	"github.com/healthmodel/copdbias/posterior"
)

// RunAggregate executes the second pipeline stage: it reads the cleaned
// analysis table and the posterior draw matrix, aggregates the draws
// into department and national estimates, and writes the summary table
// to summaryFile. When modelFile is non-empty, the persisted
// fitted-model handle is loaded first and the analysis table is
// verified against the table the model was fit to.
func RunAggregate(analysisFile, drawsFile, modelFile, summaryFile, nationalLabel string) error {
	ar, err := os.Open(analysisFile)
	if err != nil {
		return err
	}
	defer ar.Close()
	t, err := copdbias.ReadAnalysisCSV(ar)
	if err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{
		"file": analysisFile,
		"rows": len(t),
	}).Info("read analysis table")

	if modelFile != "" {
		mr, err := os.Open(modelFile)
		if err != nil {
			return err
		}
		h, err := model.Load(mr)
		mr.Close()
		if err != nil {
			return err
		}
		if err := h.Verify(t); err != nil {
			return err
		}
		logger.WithFields(logrus.Fields{
			"engine":  h.Engine,
			"formula": h.Formula.String(),
		}).Info("verified fitted-model handle")
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
	d, n := draws.Dims()
	logger.WithFields(logrus.Fields{
		"file":         drawsFile,
		"draws":        d,
		"observations": n,
	}).Info("read posterior draw matrix")

	s, err := posterior.Aggregate(draws, t, nationalLabel)
	if err != nil {
		return err
	}
	if s.ExcludedFromNational > 0 {
		logger.WithField("rows", s.ExcludedFromNational).
			Warn("observations without population weight excluded from national aggregation")
	}
	logger.WithFields(logrus.Fields{
		"prevalence": s.National.PrevalenceString(),
		"cri":        s.National.CrIString(),
	}).Info("national estimate")

	w, err := os.Create(summaryFile)
	if err != nil {
		return err
	}
	defer w.Close()
	if err := s.WriteCSV(w); err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{
		"file":        summaryFile,
		"departments": len(s.Departments),
	}).Info("wrote prevalence summary")
	return nil
}
