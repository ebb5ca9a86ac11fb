package duration

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// TermEffect holds the estimated contribution of one term to the log
// hazard over a grid of covariate values, relative to a reference value.
type TermEffect struct {
	Term   string
	X      []float64
	Effect []float64
	SE     []float64
	LCB    []float64
	UCB    []float64
}

// TermEffect evaluates the contribution of a term to the log hazard.
// The term occupies the coefficients at positions pos, and basis writes
// the term's design row at a covariate value x into dst, which has
// length len(pos).  Effects are differences from the value at center,
// so the effect is zero at center.
func (rslt *PHResults) TermEffect(term string, pos []int, x []float64, center float64,
	basis func(x float64, dst []float64), level float64) (*TermEffect, error) {

	par := rslt.Params()
	vcov := rslt.VCov()
	p := len(par)

	if len(pos) == 0 {
		return nil, fmt.Errorf("TermEffect: term %s has no coefficients", term)
	}
	for _, j := range pos {
		if j < 0 || j >= p {
			return nil, fmt.Errorf("TermEffect: coefficient position %d out of range", j)
		}
	}

	z := critval(level)
	m := len(pos)
	c0 := make([]float64, m)
	basis(center, c0)

	// Coefficients and covariance block of the term
	b := mat.NewVecDense(m, nil)
	v := mat.NewSymDense(m, nil)
	for k1, j1 := range pos {
		b.SetVec(k1, par[j1])
		for k2, j2 := range pos[0 : k1+1] {
			v.SetSym(k1, k2, vcov[j1*p+j2])
		}
	}

	te := &TermEffect{
		Term:   term,
		X:      x,
		Effect: make([]float64, len(x)),
		SE:     make([]float64, len(x)),
		LCB:    make([]float64, len(x)),
		UCB:    make([]float64, len(x)),
	}

	row := make([]float64, m)
	r := mat.NewVecDense(m, row)
	for i, xv := range x {
		basis(xv, row)
		floats.Sub(row, c0)

		e := mat.Dot(r, b)
		se := math.Sqrt(math.Max(mat.Inner(r, v, r), 0))
		te.Effect[i] = e
		te.SE[i] = se
		te.LCB[i] = e - z*se
		te.UCB[i] = e + z*se
	}

	return te, nil
}
