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

// Package model defines the contract with the external Bayesian
// regression engine that relates the adjustment factor to health-access
// covariates. The engine itself (generalized additive model fitting and
// posterior sampling) is not implemented here: this package specifies
// the model formula, the narrow fitting interface, and the persistence
// of fitted-model handles, and everything downstream consumes only the
// posterior draw matrix the engine returns.
package model

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"gonum.org/v1/gonum/mat"

	"github.com/healthmodel/copdbias"
)

// A Formula specifies the regression: a response, a set of smoothed
// predictors, a set of linear predictors, and an error family with its
// link function.
type Formula struct {
	// Response is the modeled variable, in the analysis vocabulary.
	Response string `toml:"response"`

	// Smooth are predictors entering through penalized smooth terms.
	Smooth []string `toml:"smooth"`

	// Linear are predictors entering linearly.
	Linear []string `toml:"linear"`

	// Family is the response distribution; it must be positive-valued
	// and right-skewed ("gamma" or "lognormal").
	Family string `toml:"family"`

	// Link is the link function; only "log" is supported.
	Link string `toml:"link"`
}

// Default is the formula used for the prevalence-correction analysis:
// the adjustment factor as a smooth function of household biomass use,
// multidimensional poverty, and population age structure, with a linear
// year trend, under a log-linked gamma family.
var Default = Formula{
	Response: "adjustment_factor",
	Smooth:   []string{"biomass_stove_usage", "multidimensional_poverty_index", "pop_over_40_percent"},
	Linear:   []string{"Year"},
	Family:   "gamma",
	Link:     "log",
}

// String renders the formula in the conventional notation, e.g.
// "adjustment_factor ~ s(biomass_stove_usage) + Year".
func (f Formula) String() string {
	var terms []string
	for _, s := range f.Smooth {
		terms = append(terms, fmt.Sprintf("s(%s)", s))
	}
	terms = append(terms, f.Linear...)
	return fmt.Sprintf("%s ~ %s", f.Response, strings.Join(terms, " + "))
}

// Validate checks that the formula is complete and uses a supported
// family and link.
func (f Formula) Validate() error {
	if f.Response == "" {
		return fmt.Errorf("model: formula has no response")
	}
	if len(f.Smooth)+len(f.Linear) == 0 {
		return fmt.Errorf("model: formula has no predictors")
	}
	switch f.Family {
	case "gamma", "lognormal":
	default:
		return fmt.Errorf("model: unsupported family %q (want gamma or lognormal)", f.Family)
	}
	if f.Link != "log" {
		return fmt.Errorf("model: unsupported link %q (want log)", f.Link)
	}
	return nil
}

// LoadFormula reads a Formula from a TOML file.
func LoadFormula(filename string) (Formula, error) {
	var f Formula
	if _, err := toml.DecodeFile(filename, &f); err != nil {
		return Formula{}, fmt.Errorf("model: reading formula file: %v", err)
	}
	if err := f.Validate(); err != nil {
		return Formula{}, err
	}
	return f, nil
}

// A Fitted is a fitted regression model that can be re-queried for
// posterior draws. PosteriorDraws returns a draws×N matrix of expected
// responses, where N is the row count of the table the model was fit
// to, columns in table row order.
type Fitted interface {
	Formula() Formula
	PosteriorDraws(draws int) (*mat.Dense, error)
}

// A Fitter fits the formula to a cleaned analysis table. It is
// implemented by bindings to the external probabilistic-programming
// engine; this repository only consumes the interface.
type Fitter interface {
	Fit(t copdbias.Table, f Formula) (Fitted, error)
}
