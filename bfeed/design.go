package bfeed

import (
	"fmt"

	"github.com/kshedden/bfeedsurv/duration"
	"github.com/kshedden/bfeedsurv/spline"
	"github.com/kshedden/bfeedsurv/statmodel"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Names of the outcome columns in a design Dataset.
const (
	TimeVar   = "duration"
	StatusVar = "delta"
)

// TermSpec specifies one term of a Cox model.
type TermSpec struct {

	// Name of the covariate
	Name string

	// Spline requests a penalized spline for a continuous covariate,
	// otherwise the term is linear.
	Spline bool

	// DF is the target effective degrees of freedom of a spline term,
	// it sets the number of basis functions.
	DF float64

	// Lambda multiplies the second order difference penalty of a
	// spline term.
	Lambda float64
}

// SplineTerm describes the columns of a penalized spline term.
type SplineTerm struct {

	// The covariate the spline is built from
	Name string

	// Positions of the spline columns among the design columns
	Pos []int

	// The value at which term effects are zero, the covariate mean
	Center float64

	basis *spline.Basis
}

// Row writes the design row of the term at covariate value x into
// dst, which has length len(Pos).
func (st *SplineTerm) Row(x float64, dst []float64) {
	full := make([]float64, st.basis.NumBasis())
	st.basis.Eval(x, full)
	copy(dst, full[1:])
}

// Range returns the interval covered by the spline basis.
func (st *SplineTerm) Range() (float64, float64) {
	return st.basis.Lo, st.basis.Hi
}

// Design holds the covariate columns of a Cox model together with the
// outcome columns.
type Design struct {

	// Data contains the outcome columns TimeVar and StatusVar followed
	// by the covariate columns.
	Data statmodel.Dataset

	// Names of the covariate columns
	Names []string

	// Terms groups the covariate columns by model term.
	Terms []duration.Term

	// Penalty is the len(Names) x len(Names) row-major penalty matrix,
	// nil if the design has no spline terms.
	Penalty []float64

	// Splines maps covariate names to their spline terms.
	Splines map[string]*SplineTerm

	// References maps categorical covariates to their reference level.
	References map[string]string
}

// TermNames returns the names of the terms of the design.
func (ds *Design) TermNames() []string {
	var names []string
	for _, t := range ds.Terms {
		names = append(names, t.Name)
	}
	return names
}

// Design constructs the design for a Cox model with the given terms.
// Categorical covariates are coded with indicators of every level other
// than the reference level.  A spline term uses a cubic B-spline basis
// spanning the range of the covariate, with the first basis function
// dropped so that the columns are not collinear with a constant.
func (d *Data) Design(specs []TermSpec) (*Design, error) {

	ds := &Design{
		Splines:    make(map[string]*SplineTerm),
		References: make(map[string]string),
	}

	cols := [][]float64{d.Durations(), d.Status()}
	names := []string{TimeVar, StatusVar}

	type block struct {
		pos []int
		pen []float64
	}
	var blocks []block

	for _, sp := range specs {
		c, err := Lookup(sp.Name)
		if err != nil {
			return nil, fmt.Errorf("Design: %w", err)
		}

		var pos []int
		add := func(name string, x []float64) {
			pos = append(pos, len(ds.Names))
			ds.Names = append(ds.Names, name)
			cols = append(cols, x)
		}

		switch {
		case c.Kind == Categorical:
			if sp.Spline {
				return nil, fmt.Errorf("Design: categorical covariate %s cannot be a spline", c.Name)
			}
			ref := d.Reference(c)
			ds.References[c.Name] = ref
			labels := d.Labels(c)
			for _, lev := range c.Levels {
				if lev == ref {
					continue
				}
				x := make([]float64, len(labels))
				for i, l := range labels {
					if l == lev {
						x[i] = 1
					}
				}
				add(fmt.Sprintf("%s[%s]", c.Name, lev), x)
			}
		case sp.Spline:
			x := d.Values(c)
			if len(x) == 0 {
				return nil, fmt.Errorf("Design: no data")
			}
			if !(sp.DF > 1) {
				return nil, fmt.Errorf("Design: spline for %s needs DF > 1, got %v", c.Name, sp.DF)
			}
			basis, err := spline.NewBasis(floats.Min(x), floats.Max(x), spline.NumTerms(sp.DF), 3)
			if err != nil {
				return nil, fmt.Errorf("Design: spline for %s: %w", c.Name, err)
			}
			bc := basis.Design(x)
			for k := 1; k < len(bc); k++ {
				add(fmt.Sprintf("ps(%s)%d", c.Name, k), bc[k])
			}
			nb := basis.NumBasis()
			pen := spline.DropFirst(spline.DiffPenalty(nb, 2), nb)
			floats.Scale(sp.Lambda, pen)
			blocks = append(blocks, block{pos: pos, pen: pen})
			ds.Splines[c.Name] = &SplineTerm{
				Name:   c.Name,
				Pos:    pos,
				Center: stat.Mean(x, nil),
				basis:  basis,
			}
		default:
			add(c.Name, d.Values(c))
		}

		ds.Terms = append(ds.Terms, duration.Term{Name: c.Name, Pos: pos})
	}

	if len(blocks) > 0 {
		q := len(ds.Names)
		ds.Penalty = make([]float64, q*q)
		for _, b := range blocks {
			m := len(b.pos)
			for i1, j1 := range b.pos {
				for i2, j2 := range b.pos {
					ds.Penalty[j1*q+j2] = b.pen[i1*m+i2]
				}
			}
		}
	}

	ds.Data = statmodel.NewDataset(cols, append(names, ds.Names...))

	return ds, nil
}
