package analysis

import (
	"errors"
	"io"
	"log/slog"
	"math"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kshedden/bfeedsurv/bfeed"
	"github.com/kshedden/bfeedsurv/config"
)

const (
	samplePath = "../bfeed/testdata/sample.csv"
	realPath   = "../testdata/bfeed.csv"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newAnalysis(t *testing.T, path string) *Analysis {
	t.Helper()
	d, err := bfeed.Load(path)
	require.NoError(t, err)
	return New(d, config.Default(), quietLogger())
}

func runSample(t *testing.T) *Analysis {
	t.Helper()
	a := newAnalysis(t, samplePath)
	require.NoError(t, a.Run())
	return a
}

func TestStateTransitions(t *testing.T) {
	assert.True(t, Unfitted.CanTransition(UnivariateFitted))
	assert.True(t, AssumptionChecked.CanTransition(LinearAccepted))
	assert.True(t, AssumptionChecked.CanTransition(NonlinearAccepted))
	assert.True(t, NonlinearAccepted.CanTransition(MultivariateFitted))
	assert.False(t, Unfitted.CanTransition(MultivariateFitted))
	assert.False(t, LinearAccepted.CanTransition(NonlinearAccepted))
	assert.False(t, StepwiseReduced.CanTransition(Unfitted))
	assert.True(t, StepwiseReduced.Terminal())
	assert.False(t, MultivariateFitted.Terminal())
	assert.Equal(t, "assumption-checked", AssumptionChecked.String())

	a := newAnalysis(t, samplePath)
	err := a.CheckAssumptions()
	assert.True(t, errors.Is(err, ErrTransition))
	assert.Equal(t, Unfitted, a.State())
}

func TestPipelineSample(t *testing.T) {
	a := runSample(t)
	assert.Equal(t, StepwiseReduced, a.State())

	// Descriptive summaries
	require.NotNil(t, a.Description)
	assert.Equal(t, 240, a.Description.N)
	assert.Equal(t, 18, a.Description.Censored)
	assert.Len(t, a.Description.Variables, 8)
	assert.Len(t, a.Description.Categorical, 3+2*4)
	assert.Len(t, a.Description.Binned, 9)
	assert.Len(t, a.Description.Continuous, 3)

	// One log-rank test per grouping, pairwise tests for three groups
	require.Len(t, a.LogRank, len(bfeed.Groupings()))
	for _, lr := range a.LogRank {
		k := len(lr.Groups)
		assert.Equal(t, k-1, lr.DF)
		if k > 2 {
			assert.Len(t, lr.Pairwise, k*(k-1)/2)
		} else {
			assert.Nil(t, lr.Pairwise)
		}
		var o, e float64
		for j := range lr.Observed {
			o += lr.Observed[j]
			e += lr.Expected[j]
		}
		assert.InDelta(t, o, e, 1e-8)
		assert.InDelta(t, 222, o, 1e-8)
	}

	// Regression workflow
	assert.Len(t, a.Univariate, 8)
	assert.Len(t, a.Assumptions, 8)
	assert.Len(t, a.Nonlinear, 3)
	for _, u := range a.Univariate {
		for _, c := range u.Coefficients {
			assert.True(t, c.LCB < c.HR && c.HR < c.UCB, c.Name)
		}
	}
	race := a.univariate("race")
	require.NotNil(t, race)
	assert.Equal(t, "white", race.Reference)
	assert.Equal(t, "race[black]", race.Coefficients[0].Name)
	assert.Equal(t, 2.0, race.LRDF)
	assert.Equal(t, 2, race.WaldDF)
	assert.Greater(t, race.WaldChisq, 0.0)

	// The linear predictor matches the design times the coefficients.
	smoke := a.univariate("smoke")
	require.NotNil(t, smoke)
	lp := smoke.Fit.LinearPredictor()
	require.Len(t, lp, a.Data().Len())
	b := smoke.Fit.Results.Params()[0]
	for i, x := range smoke.Fit.Design.Data.Data()[2] {
		assert.InDelta(t, b*x, lp[i], 1e-10)
	}

	for _, nl := range a.Nonlinear {
		assert.InDelta(t, config.Default().SplineDF, nl.EDF, 0.05, nl.Covariate)
		assert.Len(t, nl.Effect.X, effectPoints)
		if nl.Accepted {
			assert.True(t, nl.Candidate)
		}
	}

	m := a.Multivariate
	require.NotNil(t, m)
	assert.Len(t, m.Terms, 8)
	assert.True(t, m.Harrell > 0.5 && m.Harrell < 1)
	assert.Len(t, m.ZPH.Chisq, 8)

	sel := a.Selection
	require.NotNil(t, sel)
	assert.Equal(t, len(m.Terms), len(sel.Final.Terms)+len(sel.Dropped))
	assert.Equal(t, m.AIC, sel.Trace[0].AIC)
	for i := 1; i < len(sel.Trace); i++ {
		assert.Less(t, sel.Trace[i].AIC, sel.Trace[i-1].AIC)
	}
	for _, c := range sel.AddBack {
		assert.GreaterOrEqual(t, c.AIC, sel.Final.AIC, c.Term)
	}
}

func TestSurvivalSample(t *testing.T) {
	a := newAnalysis(t, samplePath)
	require.NoError(t, a.EstimateSurvival())
	sv := a.Survival

	sf := sv.Overall.SF
	s0, _ := sf.At(0)
	assert.Equal(t, 1.0, s0)
	assert.Equal(t, 43, sf.NumSteps())

	sp := sf.SurvProb()
	for i := 1; i < len(sp); i++ {
		assert.LessOrEqual(t, sp[i], sp[i-1])
	}

	// Right-continuity: the value at a step time is the value after the drop.
	tm := sf.Time()
	s, _ := sf.At(tm[2])
	assert.Equal(t, sp[2], s)
	s, _ = sf.At((tm[2] + tm[3]) / 2)
	assert.Equal(t, sp[2], s)

	// The empirical curve never exceeds the Kaplan-Meier curve.
	require.Len(t, sv.EmpiricalAt, len(sv.Estimates))
	for i, e := range sv.Estimates {
		if math.IsNaN(e.Surv) {
			continue
		}
		assert.LessOrEqual(t, sv.EmpiricalAt[i], e.Surv+1e-12, e.Time)
	}

	med := sv.Overall.Median()
	assert.Equal(t, 0.5, med.P)
	assert.Equal(t, sf.Median(), med.Time)
	assert.True(t, sv.Overall.RMean > 0 && sv.Overall.RMeanSE > 0)

	for _, g := range bfeed.Groupings() {
		curves := sv.Strata[g.Name]
		require.Len(t, curves, len(g.Levels), g.Name)
		var n int
		for _, c := range curves {
			n += c.N
		}
		assert.Equal(t, 240, n, g.Name)
	}
}

func TestDegenerateStratum(t *testing.T) {
	d, err := bfeed.Load(samplePath)
	require.NoError(t, err)

	var obs []bfeed.Observation
	for i := 0; i < d.Len(); i++ {
		o := d.Obs(i)
		if o.Race == bfeed.Other {
			o.Delta = 0
		}
		obs = append(obs, o)
	}

	a := New(bfeed.NewData(obs), config.Default(), quietLogger())
	err = a.EstimateSurvival()
	assert.True(t, errors.Is(err, ErrDegenerateStratum))

	err = a.CompareGroups()
	assert.True(t, errors.Is(err, ErrDegenerateStratum))
}

// Each step of the penalty search starts from the previous estimate.
// The warm started fits agree with fits from zero.
func TestSplineWarmStart(t *testing.T) {
	a := newAnalysis(t, samplePath)
	target := a.cfg.SplineDF

	for _, name := range []string{"agemth", "ybirth", "yschool"} {
		lo, hi := float64(minLogLambda), float64(maxLogLambda)
		var start []float64
		for iter := 0; iter < 12; iter++ {
			mid := (lo + hi) / 2
			spec := []bfeed.TermSpec{{Name: name, Spline: true, DF: target, Lambda: math.Pow(10, mid)}}

			warm, err := a.fit(spec, start)
			require.NoError(t, err, "%s log10 lambda %v", name, mid)
			cold, err := a.fit(spec, nil)
			require.NoError(t, err, "%s log10 lambda %v", name, mid)

			assert.InDelta(t, cold.Results.LogLike(), warm.Results.LogLike(), 1e-6, name)
			assert.InDelta(t, termEDF(cold, name), termEDF(warm, name), 1e-3, name)

			start = warm.Results.Params()
			if termEDF(warm, name) > target {
				lo = mid
			} else {
				hi = mid
			}
		}

		f, _, err := a.splineFit(name)
		require.NoError(t, err, name)
		assert.InDelta(t, target, termEDF(f, name), 0.05, name)
	}
}

func TestIdempotent(t *testing.T) {
	a1 := runSample(t)
	a2 := runSample(t)

	assert.Equal(t, a1.Survival.Estimates, a2.Survival.Estimates)
	assert.Equal(t, a1.Multivariate.Coefficients, a2.Multivariate.Coefficients)
	assert.Equal(t, a1.Selection.Final.Coefficients, a2.Selection.Final.Coefficients)
	assert.Equal(t, a1.Selection.Dropped, a2.Selection.Dropped)
	assert.Equal(t, a1.Multivariate.Uno, a2.Multivariate.Uno)

	// A finished analysis refuses single stages but can be run again.
	err := a1.FitUnivariate()
	assert.True(t, errors.Is(err, ErrTransition))
	assert.Len(t, a1.Univariate, 8)

	require.NoError(t, a1.Run())
	assert.Equal(t, StepwiseReduced, a1.State())
	assert.Len(t, a1.Univariate, 8)
	assert.Len(t, a1.Assumptions, 8)
	assert.Len(t, a1.Nonlinear, 3)
	assert.Len(t, a1.LogRank, len(bfeed.Groupings()))
	assert.Equal(t, a2.Selection.Final.Coefficients, a1.Selection.Final.Coefficients)
	assert.Equal(t, a2.Selection.Dropped, a1.Selection.Dropped)
}

func realAnalysis(t *testing.T) *Analysis {
	t.Helper()
	if _, err := os.Stat(realPath); err != nil {
		t.Skip("breastfeeding data not available")
	}
	a := newAnalysis(t, realPath)
	require.NoError(t, a.Run())
	return a
}

func TestPublished(t *testing.T) {
	a := realAnalysis(t)

	assert.Equal(t, 927, a.Description.N)
	assert.Equal(t, 35, a.Description.Censored)

	sf := a.Survival.Overall.SF
	assert.Equal(t, 12.0, sf.Median())
	s4, _ := sf.At(4)
	assert.InDelta(t, 0.71, s4, 0.01)
	s24, _ := sf.At(24)
	assert.InDelta(t, 0.22, s24, 0.01)

	for _, lr := range a.LogRank {
		switch lr.Grouping {
		case "race":
			assert.Equal(t, 2, lr.DF)
			assert.Less(t, lr.PValue, 0.05)
		case "poverty":
			assert.GreaterOrEqual(t, lr.PValue, 0.05)
		}
	}

	race := a.univariate("race")
	require.NotNil(t, race)
	assert.Equal(t, "white", race.Reference)
	other := race.Coefficients[1]
	assert.Equal(t, "race[other]", other.Name)
	assert.InDelta(t, 1.29, other.HR, 0.02)
	assert.Greater(t, other.LCB, 1.0)

	pov := a.univariate("poverty").Coefficients[0]
	assert.Less(t, pov.LCB, 1.0)
	assert.Greater(t, pov.UCB, 1.0)

	sel := a.Selection
	assert.ElementsMatch(t, []string{"race", "poverty", "smoke", "ybirth", "yschool"}, sel.Final.Terms)
	assert.ElementsMatch(t, []string{"alcohol", "pc3mth", "agemth"}, sel.Dropped)
	for _, c := range sel.AddBack {
		assert.GreaterOrEqual(t, c.AIC, sel.Final.AIC, c.Term)
	}
}

func TestPublishedIdempotent(t *testing.T) {
	a1 := realAnalysis(t)
	a2 := realAnalysis(t)
	assert.Equal(t, a1.Selection.Final.Coefficients, a2.Selection.Final.Coefficients)
	assert.Equal(t, a1.Survival.Estimates, a2.Survival.Estimates)
}
