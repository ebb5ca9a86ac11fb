package duration

import (
	"math"
	"testing"
)

func TestConcordance1(t *testing.T) {

	time := []float64{1, 2, 3, 4, 5, 6}
	status := []float64{1, 1, 1, 1, 1, 1}
	score := []float64{7, 6, 5, 4, 3, 2}

	c := NewConcordance(time, status, score).Done()
	if c.Concordance(100) != 1 {
		t.Fail()
	}
	if c.Harrell() != 1 {
		t.Fail()
	}
}

func TestConcordance2(t *testing.T) {

	time := []float64{3, 1, 5, 2, 4}
	status := []float64{0, 1, 1, 1, 1}
	score := []float64{4, 5, 1, 3, 2}

	c := NewConcordance(time, status, score).Done()
	if math.Abs(c.Harrell()-0.875) > 1e-12 {
		t.Errorf("got %v", c.Harrell())
	}

	// The same seed gives the same estimate.
	c1 := NewConcordance(time, status, score).Seed(7).Done().Concordance(10)
	c2 := NewConcordance(time, status, score).Seed(7).Done().Concordance(10)
	if c1 != c2 || c1 <= 0.5 || c1 > 1 {
		t.Errorf("got %v and %v", c1, c2)
	}

	// No events before the truncation time
	if !math.IsNaN(c.Concordance(0.5)) {
		t.Fail()
	}
}
