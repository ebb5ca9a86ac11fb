package analysis

import (
	"fmt"
	"math"
	"strings"

	"github.com/kshedden/bfeedsurv/bfeed"
	"github.com/kshedden/bfeedsurv/duration"
)

// Model summarizes a multivariate Cox model.
type Model struct {
	Fit          *CoxFit
	Terms        []string
	Coefficients []Coefficient

	LogLike float64
	DF      float64
	AIC     float64

	// Likelihood ratio test against the null model
	LRChisq, LRDF, LRPValue float64

	// Proportional hazards tests by term and global
	ZPH *duration.ZPHResults

	// Harrell's and Uno's concordance of the linear predictor
	Harrell float64
	Uno     float64
}

// Selection is the result of backward stepwise selection.
type Selection struct {
	Trace   []duration.Step
	Dropped []string

	// The AIC of the final model with each dropped term added back
	AddBack []duration.StepCandidate

	Final *Model
}

// fullSpecs returns every covariate as a model term, using the
// accepted splines.
func (a *Analysis) fullSpecs() []bfeed.TermSpec {
	var specs []bfeed.TermSpec
	for _, c := range bfeed.Covariates() {
		sp := bfeed.TermSpec{Name: c.Name}
		if nl := a.nonlinear(c.Name); nl != nil && nl.Accepted {
			sp.Spline = true
			sp.DF = a.cfg.SplineDF
			sp.Lambda = nl.Lambda
		}
		specs = append(specs, sp)
	}
	return specs
}

func selectSpecs(specs []bfeed.TermSpec, terms []string) []bfeed.TermSpec {
	keep := make(map[string]bool)
	for _, t := range terms {
		keep[t] = true
	}
	var sel []bfeed.TermSpec
	for _, s := range specs {
		if keep[s.Name] {
			sel = append(sel, s)
		}
	}
	return sel
}

// model fits and summarizes a multivariate model.
func (a *Analysis) model(specs []bfeed.TermSpec) (*Model, error) {

	f, err := a.fitCached(specs)
	if err != nil {
		return nil, err
	}

	r := f.Results
	m := &Model{
		Fit:          f,
		Terms:        f.Design.TermNames(),
		Coefficients: f.Coefficients(a.cfg.ConfLevel),
		LogLike:      r.LogLike(),
		DF:           r.DF(),
		AIC:          r.AIC(),
	}
	m.LRChisq, m.LRDF, m.LRPValue = r.LRTest()

	m.ZPH, err = r.ZPH(a.cfg.TimeTransform(), f.Design.Terms)
	if err != nil {
		return nil, fmt.Errorf("proportional hazards test for %s: %w", specNames(specs), err)
	}

	lp := f.LinearPredictor()
	c := duration.NewConcordance(a.data.Durations(), a.data.Status(), lp).Done()
	m.Harrell = c.Harrell()
	m.Uno = c.Concordance(math.Inf(1))

	return m, nil
}

// fitCached fits a model once for each set of terms.
func (a *Analysis) fitCached(specs []bfeed.TermSpec) (*CoxFit, error) {
	key := specNames(specs)
	if f, ok := a.fits[key]; ok {
		return f, nil
	}
	f, err := a.fit(specs, nil)
	if err != nil {
		return nil, err
	}
	a.fits[key] = f
	return f, nil
}

// FitMultivariate fits the model with every covariate.
func (a *Analysis) FitMultivariate() error {

	m, err := a.model(a.fullSpecs())
	if err != nil {
		return fmt.Errorf("multivariate: %w", err)
	}

	a.log.Info("multivariate", "terms", strings.Join(m.Terms, ","), "aic", m.AIC,
		"global_ph_p", m.ZPH.GlobalPValue)
	a.Multivariate = m

	return a.advance(MultivariateFitted)
}

// SelectStepwise reduces the multivariate model by backward elimination
// on AIC.
func (a *Analysis) SelectStepwise() error {

	full := a.fullSpecs()
	var names []string
	for _, s := range full {
		names = append(names, s.Name)
	}

	fitter := func(terms []string) (float64, error) {
		f, err := a.fitCached(selectSpecs(full, terms))
		if err != nil {
			return 0, err
		}
		return f.Results.AIC(), nil
	}

	sw := duration.NewStepwise(names, fitter).Done()
	if err := sw.Err(); err != nil {
		return fmt.Errorf("stepwise selection: %w", err)
	}
	for _, st := range sw.Trace() {
		a.log.Info("stepwise", "aic", st.AIC, "remove", st.Removed)
	}

	ab, err := sw.AddBack()
	if err != nil {
		return fmt.Errorf("stepwise add-back: %w", err)
	}

	final, err := a.model(selectSpecs(full, sw.Terms()))
	if err != nil {
		return fmt.Errorf("stepwise final model: %w", err)
	}

	a.Selection = &Selection{
		Trace:   sw.Trace(),
		Dropped: sw.Dropped(),
		AddBack: ab,
		Final:   final,
	}
	a.log.Info("stepwise", "terms", strings.Join(final.Terms, ","), "dropped",
		strings.Join(sw.Dropped(), ","), "aic", final.AIC)

	return a.advance(StepwiseReduced)
}
