package report

import (
	"fmt"
	"path/filepath"

	"github.com/kshedden/bfeedsurv/analysis"
	"github.com/kshedden/bfeedsurv/duration"
)

// Figure is a plot file with its caption.
type Figure struct {
	File    string
	Caption string

	draw func(a *analysis.Analysis, fname string) error
}

const weeks = "Weeks"
const stillBF = "Proportion still breastfeeding"

// figures returns the plots of the report.  Term effect plots are made
// for every covariate with a spline fit.
func figures(a *analysis.Analysis) []Figure {

	cfg := a.Config()
	w, h := cfg.PlotWidth, cfg.PlotHeight
	ct := cfg.ConfidenceType()

	groups := func(grouping, title string) func(*analysis.Analysis, string) error {
		return func(a *analysis.Analysis, fname string) error {
			sp := duration.NewSurvfuncRightPlotter().Width(w).Height(h).Title(title).Labels(weeks, stillBF)
			for _, c := range a.Survival.Strata[grouping] {
				sp.Add(c.SF, c.Level)
			}
			return sp.Plot().Save(fname)
		}
	}

	figs := []Figure{
		{
			File:    "km_overall.png",
			Caption: fmt.Sprintf("Figure 1. Kaplan-Meier estimate with %s pointwise confidence limits", pct(cfg.ConfLevel)),
			draw: func(a *analysis.Analysis, fname string) error {
				sf := a.Survival.Overall.SF
				return duration.NewSurvfuncRightPlotter().Width(w).Height(h).Title("Breastfeeding duration").
					Labels(weeks, stillBF).Add(sf, "Kaplan-Meier").AddConfBand(sf, cfg.ConfLevel, ct).
					Plot().Save(fname)
			},
		},
		{
			File:    "km_empirical.png",
			Caption: "Figure 2. Kaplan-Meier estimate and the empirical survival function ignoring censoring",
			draw: func(a *analysis.Analysis, fname string) error {
				return duration.NewSurvfuncRightPlotter().Width(w).Height(h).Title("Kaplan-Meier and empirical").
					Labels(weeks, stillBF).Add(a.Survival.Overall.SF, "Kaplan-Meier").
					Add(a.Survival.Empirical, "Empirical").Plot().Save(fname)
			},
		},
		{
			File:    "km_smoke.png",
			Caption: "Figure 3. Kaplan-Meier estimates by smoking status of the mother",
			draw:    groups("smoke", "By smoking status"),
		},
		{
			File:    "km_race.png",
			Caption: "Figure 4. Kaplan-Meier estimates by race of the mother",
			draw:    groups("race", "By race"),
		},
	}

	for _, nl := range a.Nonlinear {
		nl := nl
		figs = append(figs, Figure{
			File: fmt.Sprintf("term_%s.png", nl.Covariate),
			Caption: fmt.Sprintf("Figure %d. Penalized spline for %s (%.1f effective DF), relative to %s = %.1f",
				len(figs)+1, nl.Covariate, nl.EDF, nl.Covariate, nl.Fit.Design.Splines[nl.Covariate].Center),
			draw: func(a *analysis.Analysis, fname string) error {
				tp, err := duration.NewTermPlotter(nl.Effect, nl.Covariate)
				if err != nil {
					return err
				}
				return tp.Size(w, h).Save(fname)
			},
		})
	}

	return figs
}

// WritePlots draws the figures into dir.
func WritePlots(a *analysis.Analysis, dir string) ([]Figure, error) {
	figs := figures(a)
	for _, f := range figs {
		if err := f.draw(a, filepath.Join(dir, f.File)); err != nil {
			return nil, fmt.Errorf("%s: %w", f.File, err)
		}
	}
	return figs, nil
}
