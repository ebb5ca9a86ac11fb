package analysis

import (
	"fmt"
	"strings"

	"github.com/kshedden/bfeedsurv/bfeed"
	"github.com/kshedden/bfeedsurv/duration"
)

// CoxFit is a fitted proportional hazards model together with its
// design.
type CoxFit struct {
	Specs   []bfeed.TermSpec
	Design  *bfeed.Design
	Results *duration.PHResults
}

// Coefficient describes one estimated log hazard ratio.
type Coefficient struct {
	Name string
	Coef float64
	SE   float64
	HR   float64
	LCB  float64
	UCB  float64
	Z    float64
	P    float64
}

// Coefficients returns the estimates of the fit, with hazard ratio
// confidence intervals at the given level.
func (f *CoxFit) Coefficients(level float64) []Coefficient {
	r := f.Results
	hr, lcb, ucb := r.HazardRatios(level)
	par := r.Params()
	se := r.StdErr()
	z := r.ZScores()
	p := r.PValues()

	var rows []Coefficient
	for j, na := range r.Names() {
		rows = append(rows, Coefficient{
			Name: na,
			Coef: par[j],
			SE:   se[j],
			HR:   hr[j],
			LCB:  lcb[j],
			UCB:  ucb[j],
			Z:    z[j],
			P:    p[j],
		})
	}
	return rows
}

// LinearPredictor returns the fitted log relative hazard of each
// observation.  The model has no strata, so the observations keep the
// order of the data.
func (f *CoxFit) LinearPredictor() []float64 {
	return f.Results.FittedValues(nil)
}

func specNames(specs []bfeed.TermSpec) string {
	var na []string
	for _, s := range specs {
		if s.Spline {
			na = append(na, fmt.Sprintf("ps(%s)", s.Name))
		} else {
			na = append(na, s.Name)
		}
	}
	return strings.Join(na, " + ")
}

// fit fits a Cox model with the given terms.  The optional start
// values are used when they match the number of coefficients.
func (a *Analysis) fit(specs []bfeed.TermSpec, start []float64) (*CoxFit, error) {

	ds, err := a.data.Design(specs)
	if err != nil {
		return nil, err
	}

	config := duration.DefaultPHRegConfig()
	config.Ties = a.cfg.TieMethod()
	config.Penalty = ds.Penalty
	config.Log = a.coxLog
	if len(start) == len(ds.Names) {
		config.Start = start
	}

	ph, err := duration.NewPHReg(ds.Data, bfeed.TimeVar, bfeed.StatusVar, ds.Names, config)
	if err != nil {
		return nil, fmt.Errorf("Cox model %s: %w", specNames(specs), err)
	}

	rslt, err := ph.Fit()
	if err != nil {
		return nil, fmt.Errorf("Cox model %s: %w", specNames(specs), err)
	}

	a.log.Debug("Cox fit", "model", specNames(specs), "loglike", rslt.LogLike(), "aic", rslt.AIC())

	return &CoxFit{
		Specs:   specs,
		Design:  ds,
		Results: rslt,
	}, nil
}

// Univariate is a Cox model with a single covariate.
type Univariate struct {
	Covariate string

	// Reference level of a categorical covariate
	Reference string

	Fit          *CoxFit
	Coefficients []Coefficient

	// Likelihood ratio test against the null model
	LRChisq, LRDF, LRPValue float64

	// Wald test of all coefficients of the term
	WaldChisq  float64
	WaldDF     int
	WaldPValue float64
}

// FitUnivariate fits a Cox model for each covariate separately.
func (a *Analysis) FitUnivariate() error {

	if !a.state.CanTransition(UnivariateFitted) {
		return fmt.Errorf("%w: %s to %s", ErrTransition, a.state, UnivariateFitted)
	}

	for _, c := range bfeed.Covariates() {
		f, err := a.fit([]bfeed.TermSpec{{Name: c.Name}}, nil)
		if err != nil {
			return fmt.Errorf("univariate: %w", err)
		}

		u := &Univariate{
			Covariate:    c.Name,
			Reference:    f.Design.References[c.Name],
			Fit:          f,
			Coefficients: f.Coefficients(a.cfg.ConfLevel),
		}
		u.LRChisq, u.LRDF, u.LRPValue = f.Results.LRTest()
		u.WaldChisq, u.WaldDF, u.WaldPValue, err = f.Results.WaldTest(f.Design.Terms[0].Pos)
		if err != nil {
			return fmt.Errorf("univariate Wald test for %s: %w", c.Name, err)
		}

		for _, co := range u.Coefficients {
			a.log.Info("univariate", "term", co.Name, "hr", co.HR, "lcb", co.LCB, "ucb", co.UCB, "p", co.P)
		}
		a.Univariate = append(a.Univariate, u)
	}

	return a.advance(UnivariateFitted)
}

// Assumption is the test of proportional hazards for one covariate in
// its univariate model.
type Assumption struct {
	Covariate string
	Chisq     float64
	DF        int
	PValue    float64

	// Correlation of the scaled Schoenfeld residuals with time, for
	// each coefficient of the term
	Rho []float64

	// The test rejects at level alpha
	Violated bool

	// A continuous covariate whose test falls below the borderline level
	Borderline bool

	ZPH *duration.ZPHResults
}

// CheckAssumptions tests the proportional hazards assumption in each
// univariate model using scaled Schoenfeld residuals.
func (a *Analysis) CheckAssumptions() error {

	if !a.state.CanTransition(AssumptionChecked) {
		return fmt.Errorf("%w: %s to %s", ErrTransition, a.state, AssumptionChecked)
	}

	for _, u := range a.Univariate {
		zr, err := u.Fit.Results.ZPH(a.cfg.TimeTransform(), u.Fit.Design.Terms)
		if err != nil {
			return fmt.Errorf("proportional hazards test for %s: %w", u.Covariate, err)
		}

		c, err := bfeed.Lookup(u.Covariate)
		if err != nil {
			return err
		}

		as := &Assumption{
			Covariate: u.Covariate,
			Chisq:     zr.Chisq[0],
			DF:        zr.DF[0],
			PValue:    zr.PValue[0],
			Rho:       zr.Rho,
			Violated:  zr.PValue[0] < a.cfg.Alpha,
			ZPH:       zr,
		}
		as.Borderline = c.Kind == bfeed.Continuous && as.PValue < a.cfg.Borderline

		a.log.Info("proportional hazards", "covariate", u.Covariate, "chisq", as.Chisq,
			"p", as.PValue, "violated", as.Violated, "borderline", as.Borderline)
		a.Assumptions = append(a.Assumptions, as)
	}

	return a.advance(AssumptionChecked)
}

// assumption returns the test for a covariate.
func (a *Analysis) assumption(name string) *Assumption {
	for _, as := range a.Assumptions {
		if as.Covariate == name {
			return as
		}
	}
	return nil
}
