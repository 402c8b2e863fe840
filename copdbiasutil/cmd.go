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

// Package copdbiasutil wires the pipeline stages into a command-line
// interface and holds the configuration handling.
package copdbiasutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/healthmodel/copdbias/model"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var logger = logrus.StandardLogger()

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	// Options are the configuration options available to copdbias.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "RawData",
			usage: `
              RawData is the path to the Microsoft Excel workbook holding
              the raw department-year indicators.`,
			defaultVal: "${COPDBIAS_DATA}/copd_raw.xlsx",
			flagsets:   []*pflag.FlagSet{scoreCmd.Flags()},
		},
		{
			name: "RawSheet",
			usage: `
              RawSheet is the name of the workbook sheet holding the raw
              table.`,
			defaultVal: "Datos",
			flagsets:   []*pflag.FlagSet{scoreCmd.Flags()},
		},
		{
			name: "AnalysisFile",
			usage: `
              AnalysisFile is the path of the cleaned analysis table CSV.
              The score command writes it; the aggregate and figures
              commands read it.`,
			defaultVal: "copd_analysis.csv",
			flagsets:   []*pflag.FlagSet{scoreCmd.Flags(), aggregateCmd.Flags(), figuresCmd.Flags()},
		},
		{
			name: "OutputVars",
			usage: `
              OutputVars maps derived audit column names to expressions
              over the analysis vocabulary, to be appended to the cleaned
              table, e.g. {"bias_share": "(adjustment_factor - 1) / adjustment_factor"}.`,
			defaultVal: map[string]string{},
			flagsets:   []*pflag.FlagSet{scoreCmd.Flags()},
		},
		{
			name: "DrawsFile",
			usage: `
              DrawsFile is the path of the posterior draw matrix CSV
              exported by the modeling engine (rows = draws, columns =
              analysis table rows, in order).`,
			defaultVal: "posterior_draws.csv",
			flagsets:   []*pflag.FlagSet{aggregateCmd.Flags(), figuresCmd.Flags()},
		},
		{
			name: "ModelFile",
			usage: `
              ModelFile is the path of the persisted fitted-model handle.
              When set, the aggregate command verifies that the analysis
              table matches the table the model was fit to.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{aggregateCmd.Flags()},
		},
		{
			name: "SummaryFile",
			usage: `
              SummaryFile is the path of the output prevalence summary
              table CSV.`,
			defaultVal: "prevalence_summary.csv",
			flagsets:   []*pflag.FlagSet{aggregateCmd.Flags()},
		},
		{
			name: "NationalLabel",
			usage: `
              NationalLabel labels the national row of the summary table.`,
			defaultVal: "Colombia",
			flagsets:   []*pflag.FlagSet{aggregateCmd.Flags()},
		},
		{
			name: "FormulaFile",
			usage: `
              FormulaFile is the path of a TOML model-formula
              specification. When empty, the built-in default formula is
              used.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{formulaCmd.Flags()},
		},
		{
			name: "FigureDir",
			usage: `
              FigureDir is the directory the figures command writes
              images into.`,
			defaultVal: "figures",
			flagsets:   []*pflag.FlagSet{figuresCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("COPDBIAS")

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch option.defaultVal.(type) {
			case string:
				if option.shorthand == "" {
					set.String(option.name, option.defaultVal.(string), option.usage)
				} else {
					set.StringP(option.name, option.shorthand, option.defaultVal.(string), option.usage)
				}
			case bool:
				if option.shorthand == "" {
					set.Bool(option.name, option.defaultVal.(bool), option.usage)
				} else {
					set.BoolP(option.name, option.shorthand, option.defaultVal.(bool), option.usage)
				}
			case int:
				if option.shorthand == "" {
					set.Int(option.name, option.defaultVal.(int), option.usage)
				} else {
					set.IntP(option.name, option.shorthand, option.defaultVal.(int), option.usage)
				}
			case map[string]string:
				b := bytes.NewBuffer(nil)
				e := json.NewEncoder(b)
				e.Encode(option.defaultVal)
				s := string(b.Bytes())
				if option.shorthand == "" {
					set.String(option.name, s, option.usage)
				} else {
					set.StringP(option.name, option.shorthand, s, option.usage)
				}
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(scoreCmd)
	Root.AddCommand(aggregateCmd)
	Root.AddCommand(figuresCmd)
	Root.AddCommand(formulaCmd)
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("problem reading configuration file: %v", err)
		}
	}
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "copdbias",
	Short: "Bias-corrected COPD prevalence estimation.",
	Long: `copdbias estimates under-diagnosis-corrected COPD prevalence for
Colombian departments. Use the subcommands specified below to run the
pipeline stages in order: score, then (externally) fit the regression
model, then aggregate.

Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'COPDBIAS_var' where 'var'
is the name of the variable to be set. Many configuration variables are
additionally allowed to contain environment variables within them.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("copdbias v%s\n", Version)
	},
}

// Version is the version of this program.
const Version = "1.2.0"

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Compute bias scores and write the cleaned analysis table.",
	Long: `score reads the raw department-year workbook, computes the three
penalty scores against the national benchmarks, derives the adjustment
factor, and writes the cleaned analysis table for the regression model.
Rows missing any required field are dropped after threshold computation.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		outputVars, err := getOutputVars()
		if err != nil {
			return err
		}
		analysisFile, err := checkOutputFile(Cfg.GetString("AnalysisFile"))
		if err != nil {
			return err
		}
		return RunScore(
			os.ExpandEnv(Cfg.GetString("RawData")),
			Cfg.GetString("RawSheet"),
			analysisFile,
			outputVars,
		)
	},
}

var aggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Aggregate posterior draws into prevalence estimates.",
	Long: `aggregate reads the cleaned analysis table and the posterior draw
matrix exported by the modeling engine, and writes the summary table:
one national row followed by the departments in descending order of
estimated prevalence, each with a posterior median and 95% credible
interval.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		summaryFile, err := checkOutputFile(Cfg.GetString("SummaryFile"))
		if err != nil {
			return err
		}
		return RunAggregate(
			os.ExpandEnv(Cfg.GetString("AnalysisFile")),
			os.ExpandEnv(Cfg.GetString("DrawsFile")),
			os.ExpandEnv(Cfg.GetString("ModelFile")),
			summaryFile,
			Cfg.GetString("NationalLabel"),
		)
	},
}

var figuresCmd = &cobra.Command{
	Use:   "figures",
	Short: "Draw the diagnostic and manuscript figures.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return RunFigures(
			os.ExpandEnv(Cfg.GetString("AnalysisFile")),
			os.ExpandEnv(Cfg.GetString("DrawsFile")),
			os.ExpandEnv(Cfg.GetString("FigureDir")),
		)
	},
}

var formulaCmd = &cobra.Command{
	Use:   "formula",
	Short: "Print the model formula handed to the regression engine.",
	RunE: func(cmd *cobra.Command, args []string) error {
		f := model.Default
		if file := os.ExpandEnv(Cfg.GetString("FormulaFile")); file != "" {
			var err error
			if f, err = model.LoadFormula(file); err != nil {
				return err
			}
		}
		fmt.Printf("%s\nfamily: %s(link=%s)\n", f, f.Family, f.Link)
		return nil
	},
}

// getOutputVars decodes the OutputVars option, which arrives either as
// a JSON string (from a command-line flag) or as a map (from a
// configuration file).
func getOutputVars() (map[string]string, error) {
	v := Cfg.Get("OutputVars")
	if s, ok := v.(string); ok {
		m := make(map[string]string)
		if err := json.Unmarshal([]byte(s), &m); err != nil {
			return nil, fmt.Errorf("problem parsing OutputVars: %v", err)
		}
		return m, nil
	}
	return cast.ToStringMapStringE(v)
}
