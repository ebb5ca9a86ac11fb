package duration

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/floats"
)

// The acute myelogenous leukemia data, with maintained (M) and
// non-maintained (N) chemotherapy.
func amlData() ([]float64, []float64, []string) {

	time := []float64{9, 13, 13, 18, 23, 28, 31, 34, 45, 48, 161,
		5, 5, 8, 8, 12, 16, 23, 27, 30, 33, 43, 45}
	status := []float64{1, 1, 0, 1, 1, 0, 1, 1, 0, 1, 0,
		1, 1, 1, 1, 1, 0, 1, 1, 1, 1, 1, 1}

	var group []string
	for i := range time {
		if i < 11 {
			group = append(group, "M")
		} else {
			group = append(group, "N")
		}
	}

	return time, status, group
}

func TestLogRank(t *testing.T) {

	time, status, group := amlData()

	sd := NewSurvDiff(time, status, group).Done()
	if err := sd.Err(); err != nil {
		t.Fatal(err)
	}

	if !floats.Equal(sd.Observed(), []float64{7, 11}) {
		t.Fail()
	}
	if !floats.EqualApprox(sd.Expected(), []float64{10.689335992300723, 7.310664007699275}, 1e-10) {
		t.Fail()
	}
	if math.Abs(sd.VCov()[0]-4.007550745938735) > 1e-10 {
		t.Fail()
	}
	if math.Abs(sd.Stat()-3.3963886989775975) > 1e-8 {
		t.Fail()
	}
	if sd.DF() != 1 {
		t.Fail()
	}
	if math.Abs(sd.PValue()-0.06533932204050541) > 1e-8 {
		t.Fail()
	}
	if sd.NumObs()[0] != 11 || sd.NumObs()[1] != 12 {
		t.Fail()
	}

	// Observed and expected totals agree.
	if math.Abs(floats.Sum(sd.Observed())-floats.Sum(sd.Expected())) > 1e-10 {
		t.Fail()
	}
}

func TestPetoPeto(t *testing.T) {

	time, status, group := amlData()

	sd := NewSurvDiff(time, status, group).Rho(1).Done()
	if err := sd.Err(); err != nil {
		t.Fatal(err)
	}

	if math.Abs(sd.Stat()-2.779279544751769) > 1e-8 {
		t.Fail()
	}
	if math.Abs(sd.PValue()-0.09549111540649302) > 1e-8 {
		t.Fail()
	}
}

func threeGroups() ([]float64, []float64, []string) {

	time, status, _ := amlData()
	var group []string
	for i := range time {
		group = append(group, []string{"a", "b", "c"}[i%3])
	}

	return time, status, group
}

func TestLogRank3(t *testing.T) {

	time, status, group := threeGroups()

	sd := NewSurvDiff(time, status, group).Levels([]string{"a", "b", "c"}).Done()
	if err := sd.Err(); err != nil {
		t.Fatal(err)
	}

	if !floats.Equal(sd.Observed(), []float64{8, 6, 4}) {
		t.Fail()
	}
	if !floats.EqualApprox(sd.Expected(), []float64{6.171735662148234, 7.26465744624649, 4.563606891605277}, 1e-10) {
		t.Fail()
	}
	if math.Abs(sd.Stat()-0.8564655452359828) > 1e-8 || sd.DF() != 2 {
		t.Fail()
	}
	if math.Abs(sd.PValue()-0.6516597086064814) > 1e-8 {
		t.Fail()
	}

	// The statistic does not depend on the group order.
	sd2 := NewSurvDiff(time, status, group).Levels([]string{"c", "a", "b"}).Done()
	if math.Abs(sd.Stat()-sd2.Stat()) > 1e-8 {
		t.Fail()
	}
}

func TestPairwise(t *testing.T) {

	time, status, group := threeGroups()

	pw, err := PairwiseSurvDiff(time, status, group, []string{"a", "b", "c"}, 0)
	if err != nil {
		t.Fatal(err)
	}

	if len(pw) != 3 {
		t.FailNow()
	}

	pairs := [][2]string{{"a", "b"}, {"a", "c"}, {"b", "c"}}
	stat := []float64{0.6963905187508395, 0.28659886254102407, 0.0012955666627800146}
	pv := []float64{0.4039991966565393, 0.5924083484992243, 0.9712871583725509}
	adj := []float64{0.5924083484992243 * 3 / 2, 0.5924083484992243 * 3 / 2, 0.9712871583725509}

	for i, r := range pw {
		if r.Group1 != pairs[i][0] || r.Group2 != pairs[i][1] {
			t.Fail()
		}
		if math.Abs(r.Stat-stat[i]) > 1e-8 {
			t.Fail()
		}
		if math.Abs(r.PValue-pv[i]) > 1e-8 {
			t.Fail()
		}
		if math.Abs(r.AdjPValue-adj[i]) > 1e-8 {
			t.Fail()
		}
	}
}

func TestSurvDiffErrors(t *testing.T) {

	time := []float64{1, 2, 3, 4}
	status := []float64{0, 0, 0, 0}
	group := []string{"a", "b", "a", "b"}

	sd := NewSurvDiff(time, status, group).Done()
	if !errors.Is(sd.Err(), ErrNoEvents) {
		t.Fail()
	}

	// A single group cannot be compared.
	sd = NewSurvDiff(time, []float64{1, 1, 1, 1}, group).Levels([]string{"a", "z"}).Done()
	if sd.Err() == nil {
		t.Fail()
	}

	sd = NewSurvDiff(time, status[0:2], group).Done()
	if sd.Err() == nil {
		t.Fail()
	}
}

func TestAdjustBH(t *testing.T) {

	p := []float64{0.01, 0.04, 0.03, 0.5}
	adj := AdjustBH(p)
	exp := []float64{0.04, 0.04 * 4 / 3, 0.04 * 4 / 3, 0.5}
	if !floats.EqualApprox(adj, exp, 1e-12) {
		t.Errorf("got %v", adj)
	}

	// Adjusted values are capped at 1 and NaN is passed through.
	adj = AdjustBH([]float64{0.9, math.NaN(), 0.8})
	if adj[0] != 0.9 || !math.IsNaN(adj[1]) || adj[2] != 0.9 {
		t.Errorf("got %v", adj)
	}

	if len(AdjustBH(nil)) != 0 {
		t.Fail()
	}
}
