package duration

import (
	"fmt"
	"math"
	"sort"

	"github.com/kshedden/dstream/dstream"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/kshedden/bfeedsurv/statmodel"
)

// Term is a named group of model coefficients, such as the indicators
// of a categorical covariate or the basis coefficients of a spline.
type Term struct {
	Name string

	// Positions of the term's coefficients in the parameter vector
	Pos []int
}

// SingleTerms returns one term per coefficient.
func SingleTerms(names []string) []Term {
	var terms []Term
	for j, na := range names {
		terms = append(terms, Term{Name: na, Pos: []int{j}})
	}
	return terms
}

// TimeTransform is the function of time against which scaled
// Schoenfeld residuals are tested.
type TimeTransform int

// Supported time transformations.  KMTransform uses one minus the
// left-continuous Kaplan-Meier estimate of the pooled data.
const (
	KMTransform TimeTransform = iota
	RankTransform
	IdentityTransform
	LogTransform
)

// ParseTimeTransform converts "km", "rank", "identity" or "log" to a
// TimeTransform.
func ParseTimeTransform(s string) (TimeTransform, error) {
	switch s {
	case "km":
		return KMTransform, nil
	case "rank":
		return RankTransform, nil
	case "identity":
		return IdentityTransform, nil
	case "log":
		return LogTransform, nil
	}
	return 0, fmt.Errorf("unknown time transform %q", s)
}

func (tt TimeTransform) String() string {
	switch tt {
	case KMTransform:
		return "km"
	case RankTransform:
		return "rank"
	case IdentityTransform:
		return "identity"
	case LogTransform:
		return "log"
	}
	return "unknown"
}

// eventMoment holds the risk-set weighted mean and covariance of the
// covariates at the time of one event.
type eventMoment struct {
	row  int
	time float64
	xbar []float64
	vbar []float64
}

// eventMoments returns the risk set moments for every event, evaluated
// at the given coefficients.  Tied events use the same moments, which
// are averaged over the Efron terms when that method is used.
func (ph *PHReg) eventMoments(params []float64) []eventMoment {

	p := len(ph.xpos)
	lp := ph.getNslice()
	ph.linpred(params, lp)

	rs := newRiskSums(p)
	es := newRiskSums(p)

	var em []eventMoment
	for s, ix := range ph.stratumix {

		if ix[1] == ix[0] {
			continue
		}

		mx := lp[ix[0]]
		for i := ix[0]; i < ix[1]; i++ {
			mx = math.Max(mx, lp[i])
		}
		for i := ix[0]; i < ix[1]; i++ {
			lp[i] = math.Exp(lp[i] - mx)
		}

		rs.reset()
		for k, t := range ph.etimes[s] {

			for _, i := range ph.enter[s][k] {
				rs.add(ph, i, lp[i])
			}

			ev := ph.event[s][k]
			es.reset()
			if ph.ties == Efron {
				for _, i := range ev {
					es.add(ph, i, lp[i])
				}
			}

			xbar := make([]float64, p)
			vbar := make([]float64, p*p)
			a := make([]float64, p)
			nt := len(ev)
			if ph.ties == Breslow {
				nt = 1
			}
			for l := 0; l < nt; l++ {
				f := float64(l) / float64(len(ev))
				den := rs.s0 - f*es.s0
				for j := range a {
					a[j] = (rs.s1[j] - f*es.s1[j]) / den
					xbar[j] += a[j] / float64(nt)
				}
				for j1 := 0; j1 < p; j1++ {
					for j2 := 0; j2 < p; j2++ {
						jj := j1*p + j2
						vbar[jj] += ((rs.s2[jj]-f*es.s2[jj])/den - a[j1]*a[j2]) / float64(nt)
					}
				}
			}

			for _, i := range ev {
				em = append(em, eventMoment{row: i, time: t, xbar: xbar, vbar: vbar})
			}

			for _, i := range ph.exit[s][k] {
				rs.add(ph, i, -lp[i])
			}
		}
	}

	ph.putNslice(lp)

	return em
}

// ZPHResults contains tests of the proportional hazards assumption
// based on scaled Schoenfeld residuals.
type ZPHResults struct {

	// The tested terms
	Terms []Term

	// Score test statistic, degrees of freedom and p-value for each term
	Chisq  []float64
	DF     []int
	PValue []float64

	// Joint test of all terms
	GlobalChisq  float64
	GlobalDF     int
	GlobalPValue float64

	// Event times and their transformed values, one per event
	Time []float64
	G    []float64

	// Scaled[j] contains the scaled Schoenfeld residuals of coefficient j
	Scaled [][]float64

	// Correlation between each coefficient's scaled residuals and G
	Rho []float64

	// The time transform used
	Transform TimeTransform
}

// ZPH tests whether the coefficients of each term are constant over
// time.  The test is a score test for adding the interaction of each
// covariate with the transformed time.  If terms is nil every
// coefficient is tested separately.
func (rslt *PHResults) ZPH(transform TimeTransform, terms []Term) (*ZPHResults, error) {

	ph := rslt.Model().(*PHReg)
	if ph.weightpos != -1 {
		return nil, fmt.Errorf("ZPH: case weights are not supported")
	}

	params := rslt.Params()
	p := len(params)
	if p == 0 {
		return nil, fmt.Errorf("ZPH: the model has no covariates")
	}
	if terms == nil {
		terms = SingleTerms(rslt.Names())
	}

	em := ph.eventMoments(params)
	nev := len(em)

	times := make([]float64, nev)
	for i, e := range em {
		times[i] = e.time
	}
	g, err := ph.transformTimes(times, transform)
	if err != nil {
		return nil, err
	}
	gc := make([]float64, nev)
	gm := stat.Mean(g, nil)
	for i := range g {
		gc[i] = g[i] - gm
	}

	// Score and information for the time-varying coefficients
	u := mat.NewVecDense(p, nil)
	ibb := mat.NewSymDense(p, nil)
	ibg := mat.NewDense(p, p, nil)
	igg := mat.NewSymDense(p, nil)
	resid := make([][]float64, nev)

	for i, e := range em {
		r := make([]float64, p)
		for j, k := range ph.xpos {
			r[j] = float64(ph.data[k][e.row]) - e.xbar[j]
			u.SetVec(j, u.AtVec(j)+gc[i]*r[j])
		}
		resid[i] = r
		for j1 := 0; j1 < p; j1++ {
			for j2 := 0; j2 < p; j2++ {
				v := e.vbar[j1*p+j2]
				ibg.Set(j1, j2, ibg.At(j1, j2)+gc[i]*v)
				if j2 >= j1 {
					ibb.SetSym(j1, j2, ibb.At(j1, j2)+v)
					igg.SetSym(j1, j2, igg.At(j1, j2)+gc[i]*gc[i]*v)
				}
			}
		}
	}

	// Penalties apply to the time-constant coefficients
	pen := make([]float64, p*p)
	ph.Hessian(&PHParameter{params}, statmodel.ObsHess, pen)
	hs := make([]float64, p*p)
	ph.partialHess(params, hs)
	for j1 := 0; j1 < p; j1++ {
		for j2 := j1; j2 < p; j2++ {
			ibb.SetSym(j1, j2, ibb.At(j1, j2)+hs[j1*p+j2]-pen[j1*p+j2])
		}
	}

	// Efficient information for the time-varying coefficients
	var chol mat.Cholesky
	if ok := chol.Factorize(ibb); !ok {
		return nil, fmt.Errorf("ZPH: information matrix is singular")
	}
	var q mat.Dense
	if err := chol.SolveTo(&q, ibg); err != nil {
		return nil, fmt.Errorf("ZPH: %w", err)
	}
	var iq, w mat.Dense
	iq.Mul(ibg.T(), &q)
	w.Sub(igg, &iq)

	zr := &ZPHResults{
		Terms:     terms,
		Time:      times,
		G:         g,
		Transform: transform,
	}

	for _, term := range terms {
		chisq, err := quadTest(u, &w, term.Pos)
		if err != nil {
			return nil, fmt.Errorf("ZPH term %s: %w", term.Name, err)
		}
		df := len(term.Pos)
		zr.Chisq = append(zr.Chisq, chisq)
		zr.DF = append(zr.DF, df)
		zr.PValue = append(zr.PValue, statmodel.ChiSquarePValue(chisq, float64(df)))
	}

	all := make([]int, p)
	for j := range all {
		all[j] = j
	}
	zr.GlobalChisq, err = quadTest(u, &w, all)
	if err != nil {
		return nil, fmt.Errorf("ZPH global test: %w", err)
	}
	zr.GlobalDF = p
	zr.GlobalPValue = statmodel.ChiSquarePValue(zr.GlobalChisq, float64(p))

	zr.scale(resid, params, rslt.VCov())

	return zr, nil
}

// quadTest returns u_T' W_TT^{-1} u_T for the positions T.
func quadTest(u *mat.VecDense, w *mat.Dense, pos []int) (float64, error) {

	m := len(pos)
	ut := mat.NewVecDense(m, nil)
	wt := mat.NewSymDense(m, nil)
	for a, j1 := range pos {
		ut.SetVec(a, u.AtVec(j1))
		for b := a; b < m; b++ {
			j2 := pos[b]
			wt.SetSym(a, b, (w.At(j1, j2)+w.At(j2, j1))/2)
		}
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(wt); !ok {
		return 0, fmt.Errorf("variance is not positive definite")
	}
	z := mat.NewVecDense(m, nil)
	if err := chol.SolveVecTo(z, ut); err != nil {
		return 0, err
	}

	return mat.Dot(ut, z), nil
}

// scale computes the scaled Schoenfeld residuals b + d * V * r, where d
// is the number of events and V is the covariance of the estimates.
func (zr *ZPHResults) scale(resid [][]float64, params, vcov []float64) {

	p := len(params)
	nev := float64(len(resid))

	zr.Scaled = make([][]float64, p)
	for j := range zr.Scaled {
		zr.Scaled[j] = make([]float64, len(resid))
	}

	for i, r := range resid {
		for j1 := 0; j1 < p; j1++ {
			v := params[j1]
			for j2 := 0; j2 < p; j2++ {
				v += nev * vcov[j1*p+j2] * r[j2]
			}
			zr.Scaled[j1][i] = v
		}
	}

	zr.Rho = make([]float64, p)
	for j := range zr.Rho {
		zr.Rho[j] = stat.Correlation(zr.G, zr.Scaled[j], nil)
	}
}

// transformTimes applies the time transform to the event times.
func (ph *PHReg) transformTimes(times []float64, transform TimeTransform) ([]float64, error) {

	g := make([]float64, len(times))

	switch transform {
	case IdentityTransform:
		copy(g, times)
	case LogTransform:
		for i, t := range times {
			if t <= 0 {
				return nil, fmt.Errorf("log transform requires positive event times")
			}
			g[i] = math.Log(t)
		}
	case RankTransform:
		// Average ranks for ties
		ii := make([]int, len(times))
		for i := range ii {
			ii[i] = i
		}
		sort.SliceStable(ii, func(a, b int) bool { return times[ii[a]] < times[ii[b]] })
		for a := 0; a < len(ii); {
			b := a
			for b < len(ii) && times[ii[b]] == times[ii[a]] {
				b++
			}
			r := float64(a+b+1) / 2
			for _, i := range ii[a:b] {
				g[i] = r
			}
			a = b
		}
	case KMTransform:
		time := make([]float64, len(ph.data[ph.timepos]))
		status := make([]float64, len(time))
		for i := range time {
			time[i] = float64(ph.data[ph.timepos][i])
			status[i] = float64(ph.data[ph.statuspos][i])
		}
		da := dstream.NewFromArrays([][]interface{}{{time}, {status}}, []string{"time", "status"})
		sf := NewSurvfuncRight(da, "time", "status").Done()
		if err := sf.Err(); err != nil {
			return nil, err
		}
		st := sf.Time()
		sp := sf.SurvProb()
		for i, t := range times {
			j := sort.SearchFloat64s(st, t)
			if j == 0 {
				g[i] = 0
			} else {
				g[i] = 1 - sp[j-1]
			}
		}
	default:
		return nil, fmt.Errorf("unknown time transform %d", transform)
	}

	return g, nil
}
