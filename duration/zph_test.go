package duration

import (
	"math"
	"testing"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"

	"github.com/kshedden/bfeedsurv/statmodel"
)

func TestZPH(t *testing.T) {

	ph, err := NewPHReg(data3(), "time", "status", []string{"x1", "x2"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	rslt, err := ph.Fit()
	if err != nil {
		t.Fatal(err)
	}

	zr, err := rslt.ZPH(KMTransform, nil)
	if err != nil {
		t.Fatal(err)
	}

	if len(zr.Terms) != 2 || zr.Terms[1].Name != "x2" {
		t.Fail()
	}
	if !floats.EqualApprox(zr.Chisq, []float64{0.003413444146384569, 2.452258545739633}, 1e-4) {
		t.Errorf("got %v", zr.Chisq)
	}
	if math.Abs(zr.GlobalChisq-4.08170861605232) > 1e-4 || zr.GlobalDF != 2 {
		t.Errorf("got %v", zr.GlobalChisq)
	}
	if zr.DF[0] != 1 || zr.DF[1] != 1 {
		t.Fail()
	}
	if math.Abs(zr.PValue[1]-statmodel.ChiSquarePValue(zr.Chisq[1], 1)) > 1e-12 {
		t.Fail()
	}

	eg := []float64{0, 0, 0.2, 0.31428571428571417, 0.48571428571428565, 0.7428571428571429}
	if !floats.EqualApprox(zr.G, eg, 1e-10) {
		t.Errorf("got %v", zr.G)
	}
	if !floats.Equal(zr.Time, []float64{1, 1, 3, 5, 6, 7}) {
		t.Fail()
	}

	es := []float64{-0.1015521534396237, -2.564149427268494, 1.7069865837288605,
		-0.8629102518844932, -1.1021628058406332, -0.5847576109408769}
	if !floats.EqualApprox(zr.Scaled[0], es, 1e-4) {
		t.Errorf("got %v", zr.Scaled[0])
	}
	if !floats.EqualApprox(zr.Rho, []float64{0.05909630169209988, 0.3142571363854394}, 1e-4) {
		t.Errorf("got %v", zr.Rho)
	}

	// A joint test of both coefficients as one term equals the global test.
	zr2, err := rslt.ZPH(KMTransform, []Term{{Name: "both", Pos: []int{0, 1}}})
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(zr2.Chisq[0]-zr.GlobalChisq) > 1e-10 || zr2.DF[0] != 2 {
		t.Fail()
	}

	zr3, err := rslt.ZPH(IdentityTransform, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !floats.EqualApprox(zr3.Chisq, []float64{0.02644158748705059, 2.7848624646672584}, 1e-4) {
		t.Errorf("got %v", zr3.Chisq)
	}
	if math.Abs(zr3.GlobalChisq-4.323170693025752) > 1e-4 {
		t.Fail()
	}
}

// simZPH simulates two groups.  If ph is false the hazard ratio
// changes over time.
func simZPH(ph bool, seed uint64) statmodel.Dataset {

	rng := rand.New(rand.NewSource(seed))
	n := 400

	var time, status, x []statmodel.Dtype
	for i := 0; i < n; i++ {
		g := float64(i % 2)
		u := -math.Log(rng.Float64())
		var ti float64
		switch {
		case ph:
			ti = u * math.Exp(-0.5*g)
		case g == 1:
			// Weibull with shape 3
			ti = math.Pow(u, 1.0/3)
		default:
			ti = u
		}
		c := 3 * rng.Float64()
		if ti < c {
			time = append(time, ti)
			status = append(status, 1)
		} else {
			time = append(time, c)
			status = append(status, 0)
		}
		x = append(x, g)
	}

	return statmodel.NewDataset([][]statmodel.Dtype{time, status, x}, []string{"time", "status", "x"})
}

func TestZPHSim(t *testing.T) {

	for _, v := range []struct {
		ph   bool
		seed uint64
	}{
		{true, 123},
		{false, 456},
	} {
		model, err := NewPHReg(simZPH(v.ph, v.seed), "time", "status", []string{"x"}, nil)
		if err != nil {
			t.Fatal(err)
		}
		rslt, err := model.Fit()
		if err != nil {
			t.Fatal(err)
		}

		for _, tr := range []TimeTransform{KMTransform, RankTransform, IdentityTransform, LogTransform} {
			zr, err := rslt.ZPH(tr, nil)
			if err != nil {
				t.Fatal(err)
			}
			if v.ph && zr.PValue[0] < 0.001 {
				t.Errorf("%v: proportional hazards rejected, p=%v", tr, zr.PValue[0])
			}
			if !v.ph && zr.PValue[0] > 0.001 {
				t.Errorf("%v: proportional hazards not rejected, p=%v", tr, zr.PValue[0])
			}
			if math.Abs(zr.GlobalChisq-zr.Chisq[0]) > 1e-10 {
				t.Fail()
			}
		}
	}
}

func TestParseTransform(t *testing.T) {

	for _, s := range []string{"km", "rank", "identity", "log"} {
		tr, err := ParseTimeTransform(s)
		if err != nil || tr.String() != s {
			t.Fail()
		}
	}
	if _, err := ParseTimeTransform("sqrt"); err == nil {
		t.Fail()
	}
	for _, tr := range []TimeTransform{-1, LogTransform + 1} {
		if tr.String() != "unknown" {
			t.Errorf("got %q", tr.String())
		}
	}
}
