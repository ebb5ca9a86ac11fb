package duration

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/kshedden/bfeedsurv/statmodel"
)

// SurvDiff tests for differences among the survival distributions of
// two or more groups using the G-rho family of weighted log-rank tests.
// With rho = 0 (the default) this is the log-rank test, rho = 1 gives
// the Peto-Peto modification of the Gehan-Wilcoxon test.
type SurvDiff struct {

	// Event or censoring times
	time []float64

	// Event indicators, 1 for an event, 0 for censoring
	status []float64

	// Group labels for each observation
	group []string

	// The groups in reporting order
	levels []string

	// Weights are S(t-)^rho where S is the pooled Kaplan-Meier estimate
	rho float64

	// Number of observations in each group
	nobs []int

	// Weighted observed and expected number of events in each group
	obs []float64
	exp []float64

	// Covariance of obs - exp, row-major
	vcov []float64

	stat   float64
	df     int
	pvalue float64

	err error
}

// NewSurvDiff returns a SurvDiff for comparing the groups defined by
// the labels in group.  Call Done to run the test.
func NewSurvDiff(time, status []float64, group []string) *SurvDiff {

	return &SurvDiff{
		time:   time,
		status: status,
		group:  group,
	}
}

// Rho sets the exponent of the pooled survival function used to weight
// the event times.
func (sd *SurvDiff) Rho(rho float64) *SurvDiff {
	sd.rho = rho
	return sd
}

// Levels sets the order in which the groups are reported.  Observations
// whose label is not in levels are excluded.  By default the groups
// are ordered by label.
func (sd *SurvDiff) Levels(levels []string) *SurvDiff {
	sd.levels = levels
	return sd
}

// Done runs the test.
func (sd *SurvDiff) Done() *SurvDiff {

	if len(sd.time) != len(sd.status) || len(sd.time) != len(sd.group) {
		sd.err = fmt.Errorf("SurvDiff: time, status and group have different lengths")
		return sd
	}

	sd.setLevels()
	if len(sd.levels) < 2 {
		sd.err = fmt.Errorf("SurvDiff: at least two groups with observations are needed, found %d", len(sd.levels))
		return sd
	}

	sd.compute()
	if sd.err != nil {
		return sd
	}

	sd.test()

	return sd
}

// setLevels determines the groups, dropping any that have no observations.
func (sd *SurvDiff) setLevels() {

	count := make(map[string]int)
	for _, g := range sd.group {
		count[g]++
	}

	if sd.levels == nil {
		for g := range count {
			sd.levels = append(sd.levels, g)
		}
		sort.Strings(sd.levels)
	}

	var levels []string
	for _, g := range sd.levels {
		if count[g] > 0 {
			levels = append(levels, g)
			sd.nobs = append(sd.nobs, count[g])
		}
	}
	sd.levels = levels
}

func (sd *SurvDiff) compute() {

	k := len(sd.levels)
	gix := make(map[string]int)
	for j, g := range sd.levels {
		gix[g] = j
	}

	// Included observations sorted by time
	var ii []int
	for i, g := range sd.group {
		if _, ok := gix[g]; ok {
			ii = append(ii, i)
		}
	}
	sort.SliceStable(ii, func(a, b int) bool {
		return sd.time[ii[a]] < sd.time[ii[b]]
	})

	risk := make([]float64, k)
	for j := range risk {
		risk[j] = float64(sd.nobs[j])
	}

	sd.obs = make([]float64, k)
	sd.exp = make([]float64, k)
	sd.vcov = make([]float64, k*k)
	d := make([]float64, k)
	leave := make([]float64, k)

	// Pooled Kaplan-Meier estimate just before the current time
	surv := 1.0
	var nevents float64

	for pos := 0; pos < len(ii); {

		t := sd.time[ii[pos]]
		for j := range d {
			d[j] = 0
			leave[j] = 0
		}

		// All observations at time t
		for ; pos < len(ii) && sd.time[ii[pos]] == t; pos++ {
			i := ii[pos]
			j := gix[sd.group[i]]
			leave[j]++
			if sd.status[i] == 1 {
				d[j]++
			}
		}

		var n, dt float64
		for j := range risk {
			n += risk[j]
			dt += d[j]
		}

		if dt > 0 {
			w := math.Pow(surv, sd.rho)
			for j := 0; j < k; j++ {
				sd.obs[j] += w * d[j]
				sd.exp[j] += w * dt * risk[j] / n
			}
			if n > 1 {
				f := w * w * dt * (n - dt) / (n - 1)
				for j1 := 0; j1 < k; j1++ {
					for j2 := 0; j2 < k; j2++ {
						v := -risk[j1] * risk[j2] / (n * n)
						if j1 == j2 {
							v += risk[j1] / n
						}
						sd.vcov[j1*k+j2] += f * v
					}
				}
			}
			surv *= 1 - dt/n
			nevents += dt
		}

		for j := range risk {
			risk[j] -= leave[j]
		}
	}

	if nevents == 0 {
		sd.err = ErrNoEvents
	}
}

// test computes the chi-square statistic from the first k-1 groups.
func (sd *SurvDiff) test() {

	k := len(sd.levels)
	m := k - 1

	u := mat.NewVecDense(m, nil)
	va := mat.NewSymDense(m, nil)
	for j1 := 0; j1 < m; j1++ {
		u.SetVec(j1, sd.obs[j1]-sd.exp[j1])
		for j2 := j1; j2 < m; j2++ {
			va.SetSym(j1, j2, sd.vcov[j1*k+j2])
		}
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(va); !ok {
		sd.err = fmt.Errorf("SurvDiff: variance matrix is singular")
		return
	}
	z := mat.NewVecDense(m, nil)
	if err := chol.SolveVecTo(z, u); err != nil {
		sd.err = fmt.Errorf("SurvDiff: %w", err)
		return
	}

	sd.stat = mat.Dot(u, z)
	sd.df = m
	sd.pvalue = statmodel.ChiSquarePValue(sd.stat, float64(m))
}

// Err returns any error that occurred while running the test.
func (sd *SurvDiff) Err() error {
	return sd.err
}

// Groups returns the compared groups in reporting order.
func (sd *SurvDiff) Groups() []string {
	return sd.levels
}

// NumObs returns the number of observations in each group.
func (sd *SurvDiff) NumObs() []int {
	return sd.nobs
}

// Observed returns the (weighted) number of events in each group.
func (sd *SurvDiff) Observed() []float64 {
	return sd.obs
}

// Expected returns the (weighted) number of events expected in each
// group under the null hypothesis of equal survival.
func (sd *SurvDiff) Expected() []float64 {
	return sd.exp
}

// VCov returns the k x k covariance matrix of observed minus expected
// counts, in row-major order.
func (sd *SurvDiff) VCov() []float64 {
	return sd.vcov
}

// Stat returns the chi-square test statistic.
func (sd *SurvDiff) Stat() float64 {
	return sd.stat
}

// DF returns the degrees of freedom of the test, one less than the
// number of groups.
func (sd *SurvDiff) DF() int {
	return sd.df
}

// PValue returns the p-value of the test.
func (sd *SurvDiff) PValue() float64 {
	return sd.pvalue
}

// PairwiseResult holds the test comparing one pair of groups.
type PairwiseResult struct {
	Group1    string
	Group2    string
	Stat      float64
	PValue    float64
	AdjPValue float64
}

// PairwiseSurvDiff compares every pair of the given groups, in the order
// (levels[0], levels[1]), (levels[0], levels[2]), ... , and adjusts the
// p-values for multiple comparisons using the Benjamini-Hochberg method.
func PairwiseSurvDiff(time, status []float64, group, levels []string, rho float64) ([]PairwiseResult, error) {

	var rslt []PairwiseResult
	var pv []float64

	for i1 := 0; i1 < len(levels); i1++ {
		for i2 := i1 + 1; i2 < len(levels); i2++ {
			sd := NewSurvDiff(time, status, group).Levels([]string{levels[i1], levels[i2]}).Rho(rho).Done()
			if err := sd.Err(); err != nil {
				return nil, fmt.Errorf("comparing %s to %s: %w", levels[i1], levels[i2], err)
			}
			rslt = append(rslt, PairwiseResult{
				Group1: levels[i1],
				Group2: levels[i2],
				Stat:   sd.Stat(),
				PValue: sd.PValue(),
			})
			pv = append(pv, sd.PValue())
		}
	}

	for i, p := range AdjustBH(pv) {
		rslt[i].AdjPValue = p
	}

	return rslt, nil
}
