// Package analysis runs the survival analysis of the breastfeeding
// data: descriptive summaries, Kaplan-Meier curves, log-rank tests and
// the Cox regression workflow, in that order.
package analysis

import (
	"fmt"
	"log"
	"log/slog"

	"github.com/kshedden/bfeedsurv/bfeed"
	"github.com/kshedden/bfeedsurv/config"
)

// Variable describes one covariate for the variable table.
type Variable struct {
	Name        string
	Description string
	Kind        string
	Levels      []string
}

// Description holds the descriptive summaries.
type Description struct {
	N         int
	Censored  int
	Variables []Variable

	// Measured categorical covariates, then the derived groupings
	Categorical []bfeed.LevelSummary
	Binned      []bfeed.LevelSummary

	Continuous []bfeed.ContinuousSummary
}

// Analysis carries the results of each stage of the pipeline.
type Analysis struct {
	cfg  *config.Config
	data *bfeed.Data

	log    *slog.Logger
	coxLog *log.Logger

	state State

	// Fitted multivariate models, by term list
	fits map[string]*CoxFit

	Description *Description
	Survival    *Survival
	LogRank     []*LogRank

	Univariate  []*Univariate
	Assumptions []*Assumption
	Nonlinear   []*Nonlinear

	Multivariate *Model
	Selection    *Selection
}

// New returns an Analysis of the data.  If logger is nil, slog's
// default logger is used.
func New(data *bfeed.Data, cfg *config.Config, logger *slog.Logger) *Analysis {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analysis{
		cfg:    cfg,
		data:   data,
		log:    logger,
		coxLog: slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
		fits:   make(map[string]*CoxFit),
	}
}

// State returns the stage reached by the regression workflow.
func (a *Analysis) State() State {
	return a.state
}

// Config returns the configuration of the analysis.
func (a *Analysis) Config() *config.Config {
	return a.cfg
}

// Data returns the analyzed data.
func (a *Analysis) Data() *bfeed.Data {
	return a.data
}

// Describe computes the descriptive summaries.
func (a *Analysis) Describe() error {

	if a.data.Len() == 0 {
		return fmt.Errorf("describe: no observations")
	}

	cov := bfeed.Covariates()
	cat, cont := bfeed.SplitCovariates(cov)

	desc := &Description{
		N:        a.data.Len(),
		Censored: a.data.NumCensored(),
	}
	for _, c := range cov {
		v := Variable{
			Name:        c.Name,
			Description: c.Description,
			Kind:        "continuous",
		}
		if c.Kind == bfeed.Categorical {
			v.Kind = "categorical"
			v.Levels = c.Levels
		}
		desc.Variables = append(desc.Variables, v)
	}

	var binned []*bfeed.Covariate
	for _, g := range bfeed.Groupings() {
		if g.Source != "" {
			binned = append(binned, g)
		}
	}

	desc.Categorical = a.data.DescribeCategorical(cat)
	desc.Binned = a.data.DescribeCategorical(binned)
	desc.Continuous = a.data.DescribeContinuous(cont)

	a.log.Info("data", "n", desc.N, "censored", desc.Censored)
	a.Description = desc

	return nil
}

// reset discards all results and returns the workflow to Unfitted.
func (a *Analysis) reset() {
	a.state = Unfitted
	a.fits = make(map[string]*CoxFit)
	a.Description = nil
	a.Survival = nil
	a.LogRank = nil
	a.Univariate = nil
	a.Assumptions = nil
	a.Nonlinear = nil
	a.Multivariate = nil
	a.Selection = nil
}

// Run executes every stage of the pipeline in order, stopping at the
// first error.  Results of an earlier run are discarded first.
func (a *Analysis) Run() error {

	a.reset()

	stages := []struct {
		name string
		run  func() error
	}{
		{"describe", a.Describe},
		{"survival", a.EstimateSurvival},
		{"log-rank", a.CompareGroups},
		{"univariate", a.FitUnivariate},
		{"assumptions", a.CheckAssumptions},
		{"nonlinearity", a.CheckNonlinearity},
		{"multivariate", a.FitMultivariate},
		{"stepwise", a.SelectStepwise},
	}

	for _, st := range stages {
		a.log.Info("stage", "name", st.name)
		if err := st.run(); err != nil {
			return fmt.Errorf("%s: %w", st.name, err)
		}
	}

	return nil
}
