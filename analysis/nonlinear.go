package analysis

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/kshedden/bfeedsurv/bfeed"
	"github.com/kshedden/bfeedsurv/duration"
	"github.com/kshedden/bfeedsurv/statmodel"
)

// Nonlinear is the penalized spline fit of a continuous covariate.
type Nonlinear struct {
	Covariate string

	// The linear term was flagged as borderline by its proportional
	// hazards test
	Candidate bool

	// The penalty weight and the resulting effective degrees of freedom
	Lambda float64
	EDF    float64

	Fit *CoxFit

	// Test of the spline term against the null model
	Chisq, DF, PValue float64

	// Test of the spline against the linear term, with EDF - 1 degrees
	// of freedom
	NonlinChisq, NonlinDF, NonlinPValue float64

	// Proportional hazards tests of the spline and the linear term
	PHChisq        float64
	PHDF           int
	PHPValue       float64
	LinearPHPValue float64

	// The spline replaces the linear term in the multivariate model
	Accepted bool

	// The estimated log relative hazard over the range of the covariate
	Effect *duration.TermEffect
}

// Number of points at which term effects are evaluated
const effectPoints = 60

// Bisection limits for log10 of the spline penalty weight
const (
	minLogLambda = -2
	maxLogLambda = 8
)

// termEDF returns the effective degrees of freedom of a spline term.
func termEDF(f *CoxFit, name string) float64 {
	edf := f.Results.EDF()
	var e float64
	for _, j := range f.Design.Splines[name].Pos {
		e += edf[j]
	}
	return e
}

// splineFit fits a penalized spline for a covariate, choosing the
// penalty weight so that the term has the target degrees of freedom.
// The degrees of freedom decrease in the penalty weight, from the
// number of basis functions toward one.
func (a *Analysis) splineFit(name string) (*CoxFit, float64, error) {

	target := a.cfg.SplineDF
	lo, hi := float64(minLogLambda), float64(maxLogLambda)

	var best *CoxFit
	var bestLambda float64
	bestGap := math.Inf(1)
	var start []float64

	for iter := 0; iter < 50; iter++ {
		mid := (lo + hi) / 2
		lam := math.Pow(10, mid)

		f, err := a.fit([]bfeed.TermSpec{{Name: name, Spline: true, DF: target, Lambda: lam}}, start)
		if err != nil {
			return nil, 0, err
		}
		start = f.Results.Params()

		e := termEDF(f, name)
		if gap := math.Abs(e - target); gap < bestGap {
			best, bestLambda, bestGap = f, lam, gap
		}
		if bestGap < 0.01 {
			break
		}
		if e > target {
			lo = mid
		} else {
			hi = mid
		}
	}

	a.log.Debug("spline penalty", "covariate", name, "lambda", bestLambda, "edf", termEDF(best, name))

	return best, bestLambda, nil
}

// CheckNonlinearity refits every continuous covariate with a penalized
// spline.  For covariates flagged as borderline by the proportional
// hazards test, the spline is accepted when it improves that test and
// its nonlinear part is significant.
func (a *Analysis) CheckNonlinearity() error {

	_, cont := bfeed.SplitCovariates(bfeed.Covariates())
	anyAccepted := false

	for _, c := range cont {
		lin := a.univariate(c.Name)
		as := a.assumption(c.Name)
		if lin == nil || as == nil {
			return fmt.Errorf("nonlinearity check for %s: no univariate fit", c.Name)
		}

		f, lam, err := a.splineFit(c.Name)
		if err != nil {
			return fmt.Errorf("spline for %s: %w", c.Name, err)
		}

		nl := &Nonlinear{
			Covariate:      c.Name,
			Candidate:      as.Borderline,
			Lambda:         lam,
			EDF:            termEDF(f, c.Name),
			Fit:            f,
			LinearPHPValue: as.PValue,
		}
		nl.Chisq, nl.DF, nl.PValue = f.Results.LRTest()
		nl.NonlinChisq = 2 * (f.Results.LogLike() - lin.Fit.Results.LogLike())
		nl.NonlinDF = nl.EDF - 1
		nl.NonlinPValue = statmodel.ChiSquarePValue(math.Max(nl.NonlinChisq, 0), nl.NonlinDF)

		zr, err := f.Results.ZPH(a.cfg.TimeTransform(), f.Design.Terms)
		if err != nil {
			return fmt.Errorf("proportional hazards test for spline of %s: %w", c.Name, err)
		}
		nl.PHChisq, nl.PHDF, nl.PHPValue = zr.Chisq[0], zr.DF[0], zr.PValue[0]

		nl.Accepted = nl.Candidate && nl.PHPValue > nl.LinearPHPValue && nl.NonlinPValue < a.cfg.Alpha
		anyAccepted = anyAccepted || nl.Accepted

		st := f.Design.Splines[c.Name]
		lo, hi := st.Range()
		x := make([]float64, effectPoints)
		floats.Span(x, lo, hi)
		nl.Effect, err = f.Results.TermEffect(c.Name, st.Pos, x, st.Center, st.Row, a.cfg.ConfLevel)
		if err != nil {
			return fmt.Errorf("term effect for %s: %w", c.Name, err)
		}

		a.log.Info("spline", "covariate", c.Name, "edf", nl.EDF, "nonlinear_p", nl.NonlinPValue,
			"ph_p", nl.PHPValue, "linear_ph_p", nl.LinearPHPValue, "accepted", nl.Accepted)
		a.Nonlinear = append(a.Nonlinear, nl)
	}

	if anyAccepted {
		return a.advance(NonlinearAccepted)
	}
	return a.advance(LinearAccepted)
}

// univariate returns the univariate fit of a covariate.
func (a *Analysis) univariate(name string) *Univariate {
	for _, u := range a.Univariate {
		if u.Covariate == name {
			return u
		}
	}
	return nil
}

// nonlinear returns the spline fit of a covariate.
func (a *Analysis) nonlinear(name string) *Nonlinear {
	for _, nl := range a.Nonlinear {
		if nl.Covariate == name {
			return nl
		}
	}
	return nil
}
