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
	"fmt"
	"math"
	"sort"

	"github.com/Knetic/govaluate"
)

// An Outputter evaluates user-defined expressions over the analysis
// vocabulary to produce derived audit columns in the cleaned-table CSV,
// for example:
//
//	bias_share: "(adjustment_factor - 1) / adjustment_factor"
//	corrected_prevalence: "total_prevalence * adjustment_factor"
type Outputter struct {
	names     []string
	exprs     map[string]*govaluate.EvaluableExpression
	functions map[string]govaluate.ExpressionFunction
}

// NewOutputter creates an Outputter for the given output variables,
// which map new column names to expressions. Expressions may reference
// any numeric analysis field and the functions exp, log, and sqrt.
// Expressions referencing undefined variables are rejected here rather
// than at evaluation time.
func NewOutputter(outputVariables map[string]string) (*Outputter, error) {
	functions := map[string]govaluate.ExpressionFunction{
		"exp": func(arg ...interface{}) (interface{}, error) {
			if len(arg) != 1 {
				return nil, fmt.Errorf("copdbias: got %d arguments for function 'exp', but needs 1", len(arg))
			}
			return math.Exp(arg[0].(float64)), nil
		},
		"log": func(arg ...interface{}) (interface{}, error) {
			if len(arg) != 1 {
				return nil, fmt.Errorf("copdbias: got %d arguments for function 'log', but needs 1", len(arg))
			}
			return math.Log(arg[0].(float64)), nil
		},
		"sqrt": func(arg ...interface{}) (interface{}, error) {
			if len(arg) != 1 {
				return nil, fmt.Errorf("copdbias: got %d arguments for function 'sqrt', but needs 1", len(arg))
			}
			return math.Sqrt(arg[0].(float64)), nil
		},
	}
	o := &Outputter{
		exprs:     make(map[string]*govaluate.EvaluableExpression),
		functions: functions,
	}
	for name, exprStr := range outputVariables {
		expr, err := govaluate.NewEvaluableExpressionWithFunctions(exprStr, functions)
		if err != nil {
			return nil, fmt.Errorf("copdbias: output variable %s: %v", name, err)
		}
		for _, v := range expr.Vars() {
			if _, ok := (&Observation{}).fields()[v]; !ok {
				return nil, fmt.Errorf("copdbias: output variable %s: undefined variable name '%s'", name, v)
			}
		}
		o.exprs[name] = expr
		o.names = append(o.names, name)
	}
	sort.Strings(o.names)
	return o, nil
}

// Names returns the derived column names in their output order.
func (o *Outputter) Names() []string { return o.names }

// Eval evaluates every derived column for obs, in Names order.
func (o *Outputter) Eval(obs *Observation) ([]float64, error) {
	params := make(map[string]interface{})
	for name, v := range obs.fields() {
		params[name] = v
	}
	out := make([]float64, len(o.names))
	for i, name := range o.names {
		result, err := o.exprs[name].Evaluate(params)
		if err != nil {
			return nil, fmt.Errorf("copdbias: evaluating output variable %s: %v", name, err)
		}
		v, ok := result.(float64)
		if !ok {
			return nil, fmt.Errorf("copdbias: output variable %s: expression result is not a number", name)
		}
		out[i] = v
	}
	return out, nil
}

// fields maps the numeric analysis vocabulary to the corresponding
// values of o, for expression evaluation.
func (o *Observation) fields() map[string]float64 {
	return map[string]float64{
		"Year":                           float64(o.Year),
		"spirometry_rate":                o.SpirometryRate,
		"lethality_rate":                 o.LethalityRate,
		"patients_rate":                  o.PatientsRate,
		"biomass_stove_usage":            o.BiomassStoveUsage,
		"multidimensional_poverty_index": o.PovertyIndex,
		"pop_over_40_percent":            o.PopOver40Percent,
		"total_prevalence":               o.TotalPrevalence,
		"total_population":               o.TotalPopulation,
		"Pob40_Depto":                    o.PopOver40,
		"adjustment_factor":              o.AdjustmentFactor,
	}
}
