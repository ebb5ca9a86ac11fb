// Package spline constructs penalized regression spline (P-spline)
// bases: cubic B-splines on equally spaced knots together with a
// difference penalty on adjacent coefficients.
package spline

import (
	"fmt"
	"math"
)

// Basis is a B-spline basis on equally spaced knots covering [Lo, Hi].
type Basis struct {

	// The range covered by the basis.
	Lo, Hi float64

	// Degree of the piecewise polynomials, 3 for cubic splines.
	Degree int

	// The full knot sequence, including the boundary knots that lie
	// outside [Lo, Hi].
	knots []float64
}

// NewBasis returns a basis of the given degree with nterm equal-width
// intervals spanning [lo, hi].  The basis has nterm+degree functions.
func NewBasis(lo, hi float64, nterm, degree int) (*Basis, error) {

	if !(hi > lo) {
		return nil, fmt.Errorf("spline: empty range [%v, %v]", lo, hi)
	}
	if nterm < 1 || degree < 0 {
		return nil, fmt.Errorf("spline: invalid nterm=%d degree=%d", nterm, degree)
	}

	dx := (hi - lo) / float64(nterm)
	nk := nterm + 2*degree + 1
	knots := make([]float64, nk)
	for i := range knots {
		knots[i] = lo + float64(i-degree)*dx
	}

	return &Basis{
		Lo:     lo,
		Hi:     hi,
		Degree: degree,
		knots:  knots,
	}, nil
}

// NumBasis returns the number of basis functions.
func (b *Basis) NumBasis() int {
	return len(b.knots) - b.Degree - 1
}

// Knots returns the knot sequence.
func (b *Basis) Knots() []float64 {
	return b.knots
}

// Eval writes the values of all basis functions at x into dst, which
// must have length NumBasis().  Values of x outside [Lo, Hi] are
// clamped to the range.
func (b *Basis) Eval(x float64, dst []float64) {

	if len(dst) != b.NumBasis() {
		msg := fmt.Sprintf("spline: dst has length %d, expected %d\n", len(dst), b.NumBasis())
		panic(msg)
	}

	x = math.Max(b.Lo, math.Min(b.Hi, x))

	t := b.knots
	work := make([]float64, len(t)-1)

	// Degree zero: indicator of the half-open knot interval.  The
	// extra boundary knots ensure that x = Hi falls in an interval.
	for i := 0; i < len(t)-1; i++ {
		if t[i] <= x && x < t[i+1] {
			work[i] = 1
		}
	}

	// Cox-de Boor recursion
	for d := 1; d <= b.Degree; d++ {
		for i := 0; i < len(t)-d-1; i++ {
			var v float64
			if work[i] != 0 {
				v += (x - t[i]) / (t[i+d] - t[i]) * work[i]
			}
			if work[i+1] != 0 {
				v += (t[i+d+1] - x) / (t[i+d+1] - t[i+1]) * work[i+1]
			}
			work[i] = v
		}
	}

	copy(dst, work[0:b.NumBasis()])
}

// Design returns the basis evaluated at each value of x, as columns:
// the result has NumBasis() columns of length len(x).
func (b *Basis) Design(x []float64) [][]float64 {

	nb := b.NumBasis()
	cols := make([][]float64, nb)
	for j := range cols {
		cols[j] = make([]float64, len(x))
	}

	row := make([]float64, nb)
	for i, v := range x {
		b.Eval(v, row)
		for j := range cols {
			cols[j][i] = row[j]
		}
	}

	return cols
}

// DiffPenalty returns the n x n matrix D'D in row-major order, where D
// is the order'th difference operator on n coefficients.
func DiffPenalty(n, order int) []float64 {

	if order >= n {
		msg := fmt.Sprintf("spline: difference order %d too large for %d coefficients\n", order, n)
		panic(msg)
	}

	// Rows of D, built by repeated differencing of the identity.
	d := make([][]float64, n)
	for i := range d {
		d[i] = make([]float64, n)
		d[i][i] = 1
	}
	for k := 0; k < order; k++ {
		for i := 0; i < len(d)-1; i++ {
			for j := range d[i] {
				d[i][j] = d[i+1][j] - d[i][j]
			}
		}
		d = d[0 : len(d)-1]
	}

	p := make([]float64, n*n)
	for _, r := range d {
		for j1, u := range r {
			if u == 0 {
				continue
			}
			for j2, v := range r {
				p[j1*n+j2] += u * v
			}
		}
	}

	return p
}

// DropFirst removes the first row and column from an n x n row-major
// matrix.
func DropFirst(p []float64, n int) []float64 {
	m := n - 1
	q := make([]float64, m*m)
	for i := 0; i < m; i++ {
		for j := 0; j < m; j++ {
			q[i*m+j] = p[(i+1)*n+j+1]
		}
	}
	return q
}

// NumTerms returns the number of knot intervals used for a penalized
// spline with the given target degrees of freedom.
func NumTerms(df float64) int {
	return int(math.Round(2.5 * df))
}
