package analysis

import (
	"errors"
	"fmt"

	"github.com/kshedden/bfeedsurv/bfeed"
	"github.com/kshedden/bfeedsurv/duration"
)

// ErrDegenerateStratum is returned when a group to be compared has no
// events.
var ErrDegenerateStratum = errors.New("group has no events")

// Quantile is a survival time quantile with its confidence interval.
// Limits that the data cannot determine are NaN.
type Quantile struct {
	P              float64
	Time, LCB, UCB float64
}

// Curve is a Kaplan-Meier estimate with its summaries.
type Curve struct {

	// The grouping and level the curve is for, empty for the overall curve
	Grouping string
	Level    string

	N      int
	Events int

	SF *duration.SurvfuncRight

	// The 25%, 50% and 75% quantiles of the survival time
	Quantiles []Quantile

	// Restricted mean survival time up to the largest observed time
	RMean, RMeanSE, RMeanTau float64
}

// Median returns the estimated median survival time.
func (c *Curve) Median() Quantile {
	for _, q := range c.Quantiles {
		if q.P == 0.5 {
			return q
		}
	}
	return Quantile{}
}

var quantileProbs = []float64{0.25, 0.5, 0.75}

func (a *Analysis) curve(d *bfeed.Data, grouping, level string) (*Curve, error) {

	sf := duration.NewSurvfuncRight(d.Stream(), bfeed.TimeVar, bfeed.StatusVar).Done()
	if err := sf.Err(); err != nil {
		return nil, fmt.Errorf("Kaplan-Meier estimate: %w", err)
	}

	c := &Curve{
		Grouping: grouping,
		Level:    level,
		N:        d.Len(),
		Events:   d.Len() - d.NumCensored(),
		SF:       sf,
		RMeanTau: sf.MaxTime(),
	}

	ct := a.cfg.ConfidenceType()
	for _, p := range quantileProbs {
		t, lcb, ucb := sf.Quantile(p, a.cfg.ConfLevel, ct)
		c.Quantiles = append(c.Quantiles, Quantile{P: p, Time: t, LCB: lcb, UCB: ucb})
	}

	c.RMean, c.RMeanSE = sf.RestrictedMean(c.RMeanTau)

	return c, nil
}

// Survival holds the Kaplan-Meier estimates.
type Survival struct {

	// The curve of all the data
	Overall *Curve

	// The empirical survival function, ignoring censoring
	Empirical *duration.SurvfuncRight

	// Estimates of the overall curve at the checkpoints
	Estimates []duration.SurvEstimate

	// Empirical survival at the checkpoints
	EmpiricalAt []float64

	// Curves by level, for every grouping
	Strata map[string][]*Curve
}

// EstimateSurvival computes the Kaplan-Meier curves, overall and for
// every level of every grouping.
func (a *Analysis) EstimateSurvival() error {

	overall, err := a.curve(a.data, "", "")
	if err != nil {
		return err
	}

	emp := duration.NewSurvfuncRight(a.data.EmpiricalStream(), bfeed.TimeVar, "").Done()
	if err := emp.Err(); err != nil {
		return fmt.Errorf("empirical survival function: %w", err)
	}

	sv := &Survival{
		Overall:   overall,
		Empirical: emp,
		Estimates: overall.SF.Estimates(a.cfg.Checkpoints, a.cfg.ConfLevel, a.cfg.ConfidenceType()),
		Strata:    make(map[string][]*Curve),
	}
	for _, t := range a.cfg.Checkpoints {
		s, _ := emp.At(t)
		sv.EmpiricalAt = append(sv.EmpiricalAt, s)
	}

	med := overall.Median()
	a.log.Info("overall survival", "n", overall.N, "events", overall.Events,
		"median", med.Time, "rmean", overall.RMean)

	for _, g := range bfeed.Groupings() {
		curves, err := a.stratify(g)
		if err != nil {
			return err
		}
		sv.Strata[g.Name] = curves
	}

	a.Survival = sv
	return nil
}

// stratify estimates a curve for every level of a grouping.
func (a *Analysis) stratify(g *bfeed.Covariate) ([]*Curve, error) {

	var curves []*Curve
	for _, lev := range g.Levels {
		lev := lev
		sub := a.data.Subset(func(o bfeed.Observation) bool { return g.Level(o) == lev })
		if sub.Len() == sub.NumCensored() {
			return nil, fmt.Errorf("%s = %s: %w", g.Name, lev, ErrDegenerateStratum)
		}
		c, err := a.curve(sub, g.Name, lev)
		if err != nil {
			return nil, fmt.Errorf("%s = %s: %w", g.Name, lev, err)
		}
		curves = append(curves, c)
	}

	return curves, nil
}
