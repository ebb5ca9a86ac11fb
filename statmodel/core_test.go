package statmodel

import (
	"math"
	"strings"
	"testing"

	"gonum.org/v1/gonum/floats"
)

func data1() ([]string, [][]Dtype) {
	x := [][]Dtype{
		{0, 1, 3, 2, 1, 1, 0},
		{1, 1, 1, 1, 1, 1, 1},
		{4, 1, -1, 3, 5, -5, 3},
	}
	return []string{"y", "x1", "x2"}, x
}

func data1b() ([]string, [][]Dtype) {
	x := [][]Dtype{
		{0, 1, 3, 2, 1, 1, 0},
		{1, 1, 1, 1, 1, 1, 1},
		{8, 2, -2, 6, 10, -10, 6},
	}
	return []string{"y", "x1", "x2"}, x
}

// A mock model for testing
type Mock struct {
	data [][]Dtype
	xpos []int
}

func (m *Mock) Dataset() [][]Dtype {
	return m.data
}

func (m *Mock) LogLike(params Parameter, exact bool) float64 {
	return 0
}

func (m *Mock) Score(params Parameter, score []float64) {
}

func (m *Mock) Hessian(params Parameter, ht HessType, score []float64) {
}

func (m *Mock) NumParams() int {
	return len(m.xpos)
}

func (m *Mock) NumObs() int {
	return len(m.data[0])
}

func (m *Mock) Xpos() []int {
	return m.xpos
}

func TestResult1(t *testing.T) {

	_, da := data1()
	model := &Mock{
		data: da,
		xpos: []int{1, 2},
	}

	params := []float64{1, 2}
	xnames := []string{"x1", "x2"}
	vcov := []float64{0, 0, 0, 0}

	r := NewBaseResults(model, 0, params, xnames, vcov)

	// Test fitted values on the training data.
	fv := []float64{9, 3, -1, 7, 11, -9, 7}
	if !floats.Equal(fv, r.FittedValues(nil)) {
		t.Fail()
	}

	// Test fitted values when passing new data.
	_, da2 := data1b()
	fv = []float64{17, 5, -3, 13, 21, -19, 13}
	if !floats.Equal(fv, r.FittedValues(da2)) {
		t.Fail()
	}
}

func TestPValues(t *testing.T) {

	_, da := data1()
	model := &Mock{
		data: da,
		xpos: []int{1, 2},
	}

	r := NewBaseResults(model, 0, []float64{1, 2}, []string{"x1", "x2"}, []float64{0.25, 0, 0, 1})

	if !floats.EqualApprox(r.StdErr(), []float64{0.5, 1}, 1e-12) {
		t.Fail()
	}
	if !floats.EqualApprox(r.ZScores(), []float64{2, 2}, 1e-12) {
		t.Fail()
	}

	// P-values are available without first asking for the Z-scores.
	r = NewBaseResults(model, 0, []float64{1, 2}, []string{"x1", "x2"}, []float64{0.25, 0, 0, 1})
	pv := r.PValues()
	if math.Abs(pv[0]-0.04550026389635844) > 1e-8 {
		t.Fail()
	}
}

func TestWaldTest(t *testing.T) {

	_, da := data1()
	model := &Mock{
		data: da,
		xpos: []int{1, 2},
	}

	r := NewBaseResults(model, 0, []float64{1, 2}, []string{"x1", "x2"}, []float64{1, 0.5, 0.5, 1})

	stat, df, pv, err := r.WaldTest([]int{0, 1})
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(stat-4) > 1e-10 || df != 2 {
		t.Fail()
	}
	if math.Abs(pv-math.Exp(-2)) > 1e-8 {
		t.Fail()
	}

	stat, df, _, err = r.WaldTest([]int{1})
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(stat-4) > 1e-10 || df != 1 {
		t.Fail()
	}

	r = NewBaseResults(model, 0, []float64{1, 2}, []string{"x1", "x2"}, nil)
	if _, _, _, err := r.WaldTest([]int{0}); err == nil {
		t.Fail()
	}
}

func TestSummaryTable(t *testing.T) {

	st := &SummaryTable{
		Title:    "Test table",
		ColNames: []string{"Variable", "Value"},
		ColFmt:   []Fmter{FmtStrings, FmtFloats},
		Cols:     []interface{}{[]string{"a", "bbb"}, []float64{1, 2.5}},
		Top:      []string{"n: 2", "events: 1"},
		Msg:      []string{"a message"},
	}

	s := st.String()
	for _, w := range []string{"Test table", "bbb", "2.5000", "events: 1", "a message"} {
		if !strings.Contains(s, w) {
			t.Fail()
		}
	}
}
