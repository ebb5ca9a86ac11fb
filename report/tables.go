package report

import (
	"fmt"
	"strings"

	"github.com/kshedden/bfeedsurv/analysis"
	"github.com/kshedden/bfeedsurv/bfeed"
)

func pct(level float64) string {
	return fmt.Sprintf("%.0f%%", 100*level)
}

// VariableTable describes the variables of the data.
func VariableTable(desc *analysis.Description) *Table {
	t := &Table{
		Caption: "Table 1. Variables",
		Columns: []Column{text("Variable"), text("Description"), text("Type"), text("Levels")},
	}
	t.AddRow(bfeed.TimeVar, "duration of breastfeeding (weeks)", "continuous", "")
	t.AddRow(bfeed.StatusVar, "breastfeeding completed", "indicator", "0 = censored, 1 = completed")
	for _, v := range desc.Variables {
		t.AddRow(v.Name, v.Description, v.Kind, strings.Join(v.Levels, ", "))
	}
	return t
}

// CategoricalTable tabulates categorical covariates by level.
func CategoricalTable(caption string, rows []bfeed.LevelSummary) *Table {
	t := &Table{
		Caption: caption,
		Columns: []Column{text("Variable"), text("Level"), number("N"), number("%"), number("% censored")},
	}
	prev := ""
	for _, r := range rows {
		name := r.Variable
		if name == prev {
			name = ""
		}
		prev = r.Variable
		t.AddRow(name, r.Level, fmtInt(r.N), fmtFloat(r.Percent, 1), fmtFloat(r.PctCensored, 1))
	}
	return t
}

// ContinuousTable summarizes continuous covariates.
func ContinuousTable(rows []bfeed.ContinuousSummary) *Table {
	t := &Table{
		Caption: "Table 4. Continuous covariates",
		Columns: []Column{text("Variable"), number("N"), number("Mean"), number("SD"),
			number("Min"), number("Max")},
	}
	for _, r := range rows {
		t.AddRow(r.Variable, fmtInt(r.N), fmtFloat(r.Mean, 2), fmtFloat(r.SD, 2),
			fmtFloat(r.Min, 0), fmtFloat(r.Max, 0))
	}
	return t
}

// SurvivalTable lists the Kaplan-Meier estimates at the checkpoints.
func SurvivalTable(sv *analysis.Survival, level float64, ct string) *Table {
	t := &Table{
		Caption: "Table 5. Kaplan-Meier estimates of the probability of still breastfeeding",
		Columns: []Column{number("Week"), number("At risk"), number("Events"), number("S(t)"),
			number("SE"), number(pct(level) + " CI"), number("Empirical")},
		Note: fmt.Sprintf("Confidence intervals use the %s transform. Events are counted since the previous week shown. "+
			"NA marks estimates beyond the last observed time.", ct),
	}
	for i, e := range sv.Estimates {
		t.AddRow(fmtFloat(e.Time, 0), fmtFloat(e.NumRisk, 0), fmtFloat(e.NumEvent, 0),
			fmtFloat(e.Surv, 3), fmtFloat(e.SE, 3), fmtCI(e.LCB, e.UCB, 3), fmtFloat(sv.EmpiricalAt[i], 3))
	}
	return t
}

// QuantileTable lists the quartiles and restricted mean of the overall
// survival time.
func QuantileTable(c *analysis.Curve, level float64) *Table {
	t := &Table{
		Caption: "Table 6. Quartiles and restricted mean of breastfeeding duration (weeks)",
		Columns: []Column{text("Statistic"), number("Estimate"), number(pct(level) + " CI")},
		Note:    fmt.Sprintf("The mean is restricted to %s weeks; SE %s.", fmtFloat(c.RMeanTau, 0), fmtFloat(c.RMeanSE, 2)),
	}
	for _, q := range c.Quantiles {
		t.AddRow(fmt.Sprintf("%.0f%% weaned", 100*q.P), fmtFloat(q.Time, 0), fmtCI(q.LCB, q.UCB, 0))
	}
	t.AddRow("restricted mean", fmtFloat(c.RMean, 2), "")
	return t
}

// StrataTable lists the median duration for every level of every grouping.
func StrataTable(sv *analysis.Survival, level float64) *Table {
	t := &Table{
		Caption: "Table 7. Median duration (weeks) by group",
		Columns: []Column{text("Grouping"), text("Level"), number("N"), number("Events"),
			number("Median"), number(pct(level) + " CI"), number("Restricted mean")},
	}
	for _, g := range bfeed.Groupings() {
		for i, c := range sv.Strata[g.Name] {
			name := g.Name
			if i > 0 {
				name = ""
			}
			med := c.Median()
			t.AddRow(name, c.Level, fmtInt(c.N), fmtInt(c.Events), fmtFloat(med.Time, 0),
				fmtCI(med.LCB, med.UCB, 0), fmtFloat(c.RMean, 2))
		}
	}
	return t
}

// LogRankTable lists the log-rank tests of every grouping.
func LogRankTable(lrs []*analysis.LogRank) *Table {
	t := &Table{
		Caption: "Table 8. Log-rank tests",
		Columns: []Column{text("Grouping"), text("Level"), number("N"), number("Observed"),
			number("Expected"), number("(O-E)^2/E"), number("(O-E)^2/V"), number("Chi-square"),
			number("DF"), number("P")},
	}
	for _, lr := range lrs {
		for j, g := range lr.Groups {
			o, e := lr.Observed[j], lr.Expected[j]
			row := []string{"", g, fmtInt(lr.N[j]), fmtFloat(o, 0), fmtFloat(e, 2),
				fmtFloat((o-e)*(o-e)/e, 3), fmtFloat((o-e)*(o-e)/lr.Variance[j], 3), "", "", ""}
			if j == 0 {
				row[0] = lr.Grouping
				row[7] = fmtFloat(lr.Chisq, 2)
				row[8] = fmtInt(lr.DF)
				row[9] = fmtP(lr.PValue)
			}
			t.AddRow(row...)
		}
	}
	return t
}

// PairwiseTable lists the pairwise log-rank tests of groupings with
// more than two levels.
func PairwiseTable(lrs []*analysis.LogRank) *Table {
	t := &Table{
		Caption: "Table 9. Pairwise log-rank tests",
		Columns: []Column{text("Grouping"), text("Comparison"), number("Chi-square"),
			number("P"), number("Adjusted P")},
		Note: "P-values are adjusted within each grouping using the Benjamini-Hochberg procedure.",
	}
	for _, lr := range lrs {
		for i, pw := range lr.Pairwise {
			name := lr.Grouping
			if i > 0 {
				name = ""
			}
			t.AddRow(name, pw.Group1+" vs "+pw.Group2, fmtFloat(pw.Stat, 2), fmtP(pw.PValue), fmtP(pw.AdjPValue))
		}
	}
	return t
}

// UnivariateTable lists the univariate Cox models.
func UnivariateTable(us []*analysis.Univariate, level float64) *Table {
	t := &Table{
		Caption: "Table 10. Univariate Cox models",
		Columns: []Column{text("Covariate"), text("Term"), text("Reference"), number("HR"),
			number(pct(level) + " CI"), number("P"), number("Wald P"), number("LR P")},
	}
	for _, u := range us {
		for i, c := range u.Coefficients {
			name, wp, lrp := u.Covariate, fmtP(u.WaldPValue), fmtP(u.LRPValue)
			if i > 0 {
				name, wp, lrp = "", "", ""
			}
			t.AddRow(name, c.Name, u.Reference, fmtFloat(c.HR, 3), fmtCI(c.LCB, c.UCB, 3), fmtP(c.P), wp, lrp)
		}
	}
	return t
}

// AssumptionTable lists the proportional hazards tests of the
// univariate models.
func AssumptionTable(as []*analysis.Assumption, alpha float64, transform string) *Table {
	t := &Table{
		Caption: "Table 11. Proportional hazards tests (scaled Schoenfeld residuals, univariate models)",
		Columns: []Column{text("Covariate"), number("Chi-square"), number("DF"), number("P"),
			text("Violated"), text("Borderline")},
		Note: fmt.Sprintf("Residuals are tested against the %s transform of time; violation at level %.2f.",
			transform, alpha),
	}
	for _, a := range as {
		t.AddRow(a.Covariate, fmtFloat(a.Chisq, 3), fmtInt(a.DF), fmtP(a.PValue), yes(a.Violated), yes(a.Borderline))
	}
	return t
}

// NonlinearTable lists the penalized spline fits.
func NonlinearTable(nls []*analysis.Nonlinear) *Table {
	t := &Table{
		Caption: "Table 12. Penalized spline terms",
		Columns: []Column{text("Covariate"), number("EDF"), number("Chi-square"), number("P"),
			number("Nonlinear chi-square"), number("Nonlinear DF"), number("Nonlinear P"),
			number("PH P (linear)"), number("PH P (spline)"), text("Accepted")},
		Note: "The nonlinear test compares the spline with the linear term. A spline is accepted only for a " +
			"covariate flagged as borderline, when it improves the proportional hazards test and its nonlinear part is significant.",
	}
	for _, nl := range nls {
		t.AddRow(nl.Covariate, fmtFloat(nl.EDF, 2), fmtFloat(nl.Chisq, 2), fmtP(nl.PValue),
			fmtFloat(nl.NonlinChisq, 2), fmtFloat(nl.NonlinDF, 2), fmtP(nl.NonlinPValue),
			fmtP(nl.LinearPHPValue), fmtP(nl.PHPValue), yes(nl.Accepted))
	}
	return t
}

// ModelTable lists the coefficients of a multivariate model.
func ModelTable(caption string, m *analysis.Model, level float64) *Table {
	t := &Table{
		Caption: caption,
		Columns: []Column{text("Term"), number("Coef"), number("SE"), number("HR"),
			number(pct(level) + " CI"), number("Z"), number("P")},
		Note: fmt.Sprintf("Log partial likelihood %s, DF %s, AIC %s. Likelihood ratio test %s on %s DF, P %s. "+
			"Concordance: Harrell %s, Uno %s.",
			fmtFloat(m.LogLike, 2), fmtFloat(m.DF, 2), fmtFloat(m.AIC, 2), fmtFloat(m.LRChisq, 2),
			fmtFloat(m.LRDF, 2), fmtP(m.LRPValue), fmtFloat(m.Harrell, 3), fmtFloat(m.Uno, 3)),
	}
	for _, c := range m.Coefficients {
		t.AddRow(c.Name, fmtFloat(c.Coef, 4), fmtFloat(c.SE, 4), fmtFloat(c.HR, 3),
			fmtCI(c.LCB, c.UCB, 3), fmtFloat(c.Z, 2), fmtP(c.P))
	}
	return t
}

// ZPHTable lists the proportional hazards tests of a multivariate model.
func ZPHTable(caption string, m *analysis.Model) *Table {
	z := m.ZPH
	t := &Table{
		Caption: caption,
		Columns: []Column{text("Term"), number("Chi-square"), number("DF"), number("P")},
	}
	for j, term := range z.Terms {
		t.AddRow(term.Name, fmtFloat(z.Chisq[j], 3), fmtInt(z.DF[j]), fmtP(z.PValue[j]))
	}
	t.AddRow("GLOBAL", fmtFloat(z.GlobalChisq, 3), fmtInt(z.GlobalDF), fmtP(z.GlobalPValue))
	return t
}

// StepwiseTable lists the AIC of every candidate removal at each step.
func StepwiseTable(sel *analysis.Selection) *Table {
	t := &Table{
		Caption: "Table 15. Backward stepwise selection by AIC",
		Columns: []Column{number("Step"), text("Model AIC"), text("Term removed"), number("AIC"), text("Action")},
	}
	for i, st := range sel.Trace {
		for k, c := range st.Candidates {
			step, aic := fmtInt(i+1), fmtFloat(st.AIC, 2)
			if k > 0 {
				step, aic = "", ""
			}
			action := ""
			if c.Term == st.Removed {
				action = "removed"
			}
			t.AddRow(step, aic, c.Term, fmtFloat(c.AIC, 2), action)
		}
	}
	return t
}

// AddBackTable lists the AIC of the final model with each dropped term
// added back.
func AddBackTable(sel *analysis.Selection) *Table {
	t := &Table{
		Caption: "Table 16. Final model with each dropped term added back",
		Columns: []Column{text("Term added"), number("AIC"), number("Change")},
		Note:    fmt.Sprintf("AIC of the final model: %s.", fmtFloat(sel.Final.AIC, 2)),
	}
	for _, c := range sel.AddBack {
		t.AddRow(c.Term, fmtFloat(c.AIC, 2), fmtFloat(c.AIC-sel.Final.AIC, 2))
	}
	return t
}
