package spline

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/floats"
)

func TestPartitionOfUnity(t *testing.T) {

	b, err := NewBasis(15, 28, 10, 3)
	if err != nil {
		t.Fatal(err)
	}

	if b.NumBasis() != 13 {
		t.Fail()
	}

	row := make([]float64, b.NumBasis())
	for _, x := range []float64{15, 15.3, 17, 21.5, 27.99, 28} {
		b.Eval(x, row)
		if math.Abs(floats.Sum(row)-1) > 1e-10 {
			t.Errorf("basis at %v sums to %v", x, floats.Sum(row))
		}
		if floats.Min(row) < 0 {
			t.Errorf("negative basis value at %v", x)
		}

		// A cubic spline has at most four nonzero basis functions.
		var nz int
		for _, v := range row {
			if v > 1e-12 {
				nz++
			}
		}
		if nz > 4 {
			t.Errorf("%d nonzero basis functions at %v", nz, x)
		}
	}
}

func TestDesign(t *testing.T) {

	b, err := NewBasis(0, 1, 4, 3)
	if err != nil {
		t.Fatal(err)
	}

	x := []float64{0, 0.25, 0.6, 1}
	cols := b.Design(x)
	if len(cols) != b.NumBasis() {
		t.Fail()
	}

	row := make([]float64, b.NumBasis())
	for i, v := range x {
		b.Eval(v, row)
		for j := range cols {
			if cols[j][i] != row[j] {
				t.Fail()
			}
		}
	}

	// Symmetric knots give a mirrored basis.
	b.Eval(0.25, row)
	mirror := make([]float64, b.NumBasis())
	b.Eval(0.75, mirror)
	for j := range row {
		if math.Abs(row[j]-mirror[len(row)-1-j]) > 1e-10 {
			t.Fail()
		}
	}
}

func TestDiffPenalty(t *testing.T) {

	p := DiffPenalty(4, 2)
	exp := []float64{
		1, -2, 1, 0,
		-2, 5, -4, 1,
		1, -4, 5, -2,
		0, 1, -2, 1,
	}
	if !floats.Equal(p, exp) {
		t.Fail()
	}

	// Linear coefficient sequences are not penalized.
	n := 7
	p = DiffPenalty(n, 2)
	c := []float64{3, 4, 5, 6, 7, 8, 9}
	var q float64
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			q += c[i] * p[i*n+j] * c[j]
		}
	}
	if math.Abs(q) > 1e-10 {
		t.Fail()
	}

	d := DropFirst(exp, 4)
	if !floats.Equal(d, []float64{5, -4, 1, -4, 5, -2, 1, -2, 1}) {
		t.Fail()
	}
}

func TestBadBasis(t *testing.T) {
	if _, err := NewBasis(1, 1, 4, 3); err == nil {
		t.Fail()
	}
	if _, err := NewBasis(0, 1, 0, 3); err == nil {
		t.Fail()
	}
	if NumTerms(4) != 10 {
		t.Fail()
	}
}
