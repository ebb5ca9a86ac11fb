// Test the PH regression log-likelihood, score and Hessian functions
// using numeric derivatives.  The tests confirm that the analytic
// derivatives agree with numeric derivatives of the log-likelihood.

package duration

import (
	"fmt"
	"testing"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/kshedden/bfeedsurv/statmodel"
)

const (
	tol = 1e-5
)

// A test problem
type difftestprob struct {
	title   string
	data    statmodel.Dataset
	xnames  []string
	entry   string
	strata  string
	params  [][]float64
	penalty []float64
}

var diffTests []difftestprob = []difftestprob{
	{
		title:  "data1",
		data:   data1(),
		xnames: []string{"x"},
		params: [][]float64{{0}, {1}, {-1}, {0.5}, {-0.5}},
	},
	{
		title:  "data2",
		data:   data2(),
		xnames: []string{"x1", "x2"},
		entry:  "entry",
		strata: "stratum",
		params: [][]float64{{1, 0}, {0, 1}, {1, 1}, {-1, 1}, {-2, 1}},
	},
	{
		title:  "data3",
		data:   data3(),
		xnames: []string{"x1", "x2"},
		params: [][]float64{{1, 0}, {0, 1}, {1, 1}, {-1, 1}, {2, -1}},
	},
	{
		title:   "data3 penalized",
		data:    data3(),
		xnames:  []string{"x1", "x2"},
		params:  [][]float64{{1, 0}, {0, 1}, {-0.5, 1.3}},
		penalty: []float64{2, -1, -1, 3},
	},
}

func diffModels(dt difftestprob) ([]*PHReg, error) {

	var models []*PHReg
	for _, ties := range []Ties{Breslow, Efron} {
		config := DefaultPHRegConfig()
		config.Ties = ties
		config.EntryVar = dt.entry
		config.StrataVar = dt.strata
		config.Penalty = dt.penalty
		model, err := NewPHReg(dt.data, "time", "status", dt.xnames, config)
		if err != nil {
			return nil, err
		}
		models = append(models, model)
	}

	return models, nil
}

func TestGrad(t *testing.T) {

	for _, dt := range diffTests {

		models, err := diffModels(dt)
		if err != nil {
			t.Fatal(err)
		}

		for _, model := range models {

			p := len(dt.params[0])
			ngrad := make([]float64, p)
			score := make([]float64, p)

			loglike := func(x []float64) float64 {
				return model.LogLike(&PHParameter{x}, true)
			}

			fdset := &fd.Settings{
				Formula: fd.Central,
				Step:    1e-5,
			}

			for _, params := range dt.params {
				fd.Gradient(ngrad, loglike, params, fdset)
				model.Score(&PHParameter{params}, score)
				if !floats.EqualApprox(score, ngrad, tol) {
					fmt.Printf("%s %s\n", dt.title, model.Ties())
					fmt.Printf("Numerical:  %v\n", ngrad)
					fmt.Printf("Analytical: %v\n", score)
					t.Fail()
				}
			}
		}
	}
}

func TestHess(t *testing.T) {

	for _, dt := range diffTests {

		models, err := diffModels(dt)
		if err != nil {
			t.Fatal(err)
		}

		for _, model := range models {

			p := len(dt.params[0])
			hess := make([]float64, p*p)
			nhess := mat.NewDense(p, p, nil)

			score := func(y, x []float64) {
				model.Score(&PHParameter{x}, y)
			}

			fdset := &fd.JacobianSettings{
				Formula: fd.Central,
			}

			for _, params := range dt.params {
				fd.Jacobian(nhess, score, params, fdset)
				model.Hessian(&PHParameter{params}, statmodel.ObsHess, hess)
				if !floats.EqualApprox(hess, nhess.RawMatrix().Data, tol) {
					fmt.Printf("%s %s\n", dt.title, model.Ties())
					fmt.Printf("Numerical:  %v\n", nhess.RawMatrix().Data)
					fmt.Printf("Analytical: %v\n", hess)
					t.Fail()
				}
			}
		}
	}
}
