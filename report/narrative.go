package report

import (
	"fmt"
	"math"
	"strings"

	"github.com/kshedden/bfeedsurv/analysis"
)

// list joins items as "a, b and c".
func list(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	}
	return strings.Join(items[:len(items)-1], ", ") + " and " + items[len(items)-1]
}

func dataText(a *analysis.Analysis) string {
	d := a.Description
	return fmt.Sprintf("The data describe %d first-born children. For %d of them (%.1f%%) breastfeeding "+
		"had not been completed at the last interview, so their durations are right censored.",
		d.N, d.Censored, 100*float64(d.Censored)/float64(d.N))
}

func survivalText(a *analysis.Analysis) string {
	cfg := a.Config()
	c := a.Survival.Overall
	med := c.Median()

	var b strings.Builder
	fmt.Fprintf(&b, "The Kaplan-Meier median duration of breastfeeding is %s weeks (%s CI %s).",
		fmtFloat(med.Time, 0), pct(cfg.ConfLevel), fmtCI(med.LCB, med.UCB, 0))
	for _, wk := range []float64{4, 24} {
		if s, _ := c.SF.At(wk); !math.IsNaN(s) {
			fmt.Fprintf(&b, " At %.0f weeks an estimated %.1f%% of mothers were still breastfeeding.", wk, 100*s)
		}
	}
	fmt.Fprintf(&b, " The mean duration restricted to %s weeks is %s weeks (SE %s).",
		fmtFloat(c.RMeanTau, 0), fmtFloat(c.RMean, 1), fmtFloat(c.RMeanSE, 2))
	b.WriteString(" Ignoring censoring gives the empirical curve, which lies on or below the Kaplan-Meier curve" +
		" because censored durations are treated as completed.")
	return b.String()
}

func logRankText(a *analysis.Analysis) string {
	alpha := a.Config().Alpha
	var sig, nonsig []string
	for _, lr := range a.LogRank {
		s := fmt.Sprintf("%s (P %s)", lr.Grouping, fmtP(lr.PValue))
		if lr.PValue < alpha {
			sig = append(sig, s)
		} else {
			nonsig = append(nonsig, s)
		}
	}

	var b strings.Builder
	if len(sig) > 0 {
		fmt.Fprintf(&b, "Log-rank tests at level %.2f show differences in duration by %s.", alpha, list(sig))
	} else {
		fmt.Fprintf(&b, "No log-rank test is significant at level %.2f.", alpha)
	}
	if len(nonsig) > 0 {
		fmt.Fprintf(&b, " There is no evidence of a difference by %s.", list(nonsig))
	}

	var pairs []string
	for _, lr := range a.LogRank {
		for _, pw := range lr.Pairwise {
			if pw.AdjPValue < alpha {
				pairs = append(pairs, fmt.Sprintf("%s %s vs %s", lr.Grouping, pw.Group1, pw.Group2))
			}
		}
	}
	if len(pairs) > 0 {
		fmt.Fprintf(&b, " After Benjamini-Hochberg adjustment the pairwise differences %s remain significant.", list(pairs))
	}

	return b.String()
}

func univariateText(a *analysis.Analysis) string {
	alpha := a.Config().Alpha
	var sig []string
	for _, u := range a.Univariate {
		for _, c := range u.Coefficients {
			if c.P < alpha {
				sig = append(sig, fmt.Sprintf("%s (HR %s)", c.Name, fmtFloat(c.HR, 2)))
			}
		}
	}
	if len(sig) == 0 {
		return "No covariate is significantly associated with the hazard of weaning in a univariate Cox model."
	}
	return fmt.Sprintf("In univariate Cox models the terms %s are significantly associated with the hazard of "+
		"weaning. A hazard ratio above one means earlier weaning. Binary covariates are compared with \"no\" and "+
		"race with its most frequent level.", list(sig))
}

func assumptionText(a *analysis.Analysis) string {
	var viol, border []string
	for _, as := range a.Assumptions {
		if as.Violated {
			viol = append(viol, as.Covariate)
		}
		if as.Borderline {
			border = append(border, as.Covariate)
		}
	}

	var b strings.Builder
	if len(viol) > 0 {
		fmt.Fprintf(&b, "The scaled Schoenfeld residuals indicate non-proportional hazards for %s.", list(viol))
	} else {
		b.WriteString("The scaled Schoenfeld residuals show no violation of proportional hazards.")
	}
	if len(border) > 0 {
		fmt.Fprintf(&b, " The continuous covariates %s are borderline and were refit with penalized splines.", list(border))
	}

	var acc []string
	for _, nl := range a.Nonlinear {
		if nl.Accepted {
			acc = append(acc, nl.Covariate)
		}
	}
	if len(acc) > 0 {
		fmt.Fprintf(&b, " The nonlinear form is accepted for %s.", list(acc))
	} else {
		b.WriteString(" All continuous covariates are kept as linear terms.")
	}

	return b.String()
}

func stepwiseText(a *analysis.Analysis) string {
	sel := a.Selection
	m := sel.Final

	var b strings.Builder
	fmt.Fprintf(&b, "Backward elimination from the full model (AIC %s) retains %s (AIC %s)",
		fmtFloat(a.Multivariate.AIC, 2), list(m.Terms), fmtFloat(m.AIC, 2))
	if len(sel.Dropped) > 0 {
		fmt.Fprintf(&b, " and removes %s, in that order.", list(sel.Dropped))
	} else {
		b.WriteString(" and removes no term.")
	}

	lower := false
	for _, c := range sel.AddBack {
		if c.AIC < m.AIC {
			lower = true
		}
	}
	if !lower && len(sel.AddBack) > 0 {
		b.WriteString(" Adding back any removed term does not lower the AIC.")
	}

	fmt.Fprintf(&b, " The global proportional hazards test of the final model has P %s, and its concordance "+
		"index is %s.", fmtP(m.ZPH.GlobalPValue), fmtFloat(m.Harrell, 3))

	return b.String()
}
