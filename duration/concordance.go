package duration

import (
	"math"
	"sort"

	"github.com/kshedden/dstream/dstream"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
)

// Concordance calculates survival concordance statistics for a risk
// score: Harrell's C, and the inverse-probability-of-censoring weighted
// C of Uno et al. (https://www.ncbi.nlm.nih.gov/pmc/articles/PMC3079915).
type Concordance struct {

	// The risk scores that are being assessed
	score []float64

	// Event or censoring time
	time []float64

	// Event status
	status []float64

	// Number of pairs to check, if using random sampling to
	// estimate the concordance
	npair int

	// Seed for the pair sampler
	seed uint64

	// The survival function for the censoring distribution
	sf *SurvfuncRight
}

// NewConcordance creates a new Concordance value with the given parameters.
// Higher scores should indicate higher risk (earlier events).
func NewConcordance(time, status, score []float64) *Concordance {

	c := &Concordance{
		time:   time,
		status: status,
		score:  score,
		npair:  10000,
		seed:   1,
	}

	return c
}

// NumPair sets the number of pairs of observations sampled at random
// to estimate the Uno concordance.
func (c *Concordance) NumPair(npair int) *Concordance {
	c.npair = npair
	return c
}

// Seed sets the seed of the random pair sampler.
func (c *Concordance) Seed(seed uint64) *Concordance {
	c.seed = seed
	return c
}

// Done signals that the Concordance value has been built and now can be fit.
func (c *Concordance) Done() *Concordance {

	// Sort everything by time
	ii := make([]int, len(c.time))
	time1 := make([]float64, len(c.time))
	statusr := make([]float64, len(c.time))
	status1 := make([]float64, len(c.time))
	score1 := make([]float64, len(c.time))
	copy(time1, c.time)
	floats.Argsort(time1, ii)
	ncens := 0.0
	for i, j := range ii {
		// We want the survival function for censoring
		statusr[i] = 1 - c.status[j]
		status1[i] = c.status[j]
		score1[i] = c.score[j]
		ncens += statusr[i]
	}

	// Get the survival function for censoring
	da := dstream.NewFromArrays([][]interface{}{{time1}, {statusr}},
		[]string{"Time", "Status"})
	c.sf = NewSurvfuncRight(da, "Time", "Status").Done()
	if ncens == 0 {
		// No censoring, create a censoring survival function
		// with P(T>t) = 1 for all t.
		c.sf.times = []float64{0, math.Inf(1)}
		c.sf.survProb = []float64{1, 1}
	}

	c.time = time1
	c.status = status1
	c.score = score1

	return c
}

// Harrell returns Harrell's concordance index: among comparable pairs
// (the shorter time is an event), the fraction in which the shorter
// time has the higher score.  Tied scores count one half.
func (c *Concordance) Harrell() float64 {

	var numer, denom float64
	n := len(c.time)
	for j1 := 0; j1 < n; j1++ {
		if c.status[j1] != 1 {
			continue
		}
		for j2 := j1 + 1; j2 < n; j2++ {
			if c.time[j2] <= c.time[j1] {
				continue
			}
			denom++
			switch {
			case c.score[j1] > c.score[j2]:
				numer++
			case c.score[j1] == c.score[j2]:
				numer += 0.5
			}
		}
	}

	return numer / denom
}

// Concordance returns the Uno concordance statistic, using the given
// truncation parameter.  It returns NaN if there are no comparable
// pairs with an event before the truncation time.
func (c *Concordance) Concordance(trunc float64) float64 {

	n := len(c.time)

	jt := sort.SearchFloat64s(c.time, trunc)

	// Positions of events before the truncation time that have a
	// later time to compare to.
	var ev []int
	for j := 0; j < jt; j++ {
		if c.status[j] == 1 && c.time[j] < c.time[n-1] {
			ev = append(ev, j)
		}
	}
	if len(ev) == 0 {
		return math.NaN()
	}

	rng := rand.New(rand.NewSource(c.seed))

	time := c.time
	score := c.score

	st := c.sf.Time()
	sp := c.sf.SurvProb()

	var numer, denom float64

	for i := 0; i < c.npair; i++ {

		// Find a pair to compare
		j1 := ev[rng.Intn(len(ev))]
		k := sort.Search(n, func(k int) bool { return time[k] > time[j1] })
		j2 := k + rng.Intn(n-k)

		// Censoring survival just before time[j1]
		g := 1.0
		if jj := sort.SearchFloat64s(st, time[j1]) - 1; jj >= 0 {
			g = sp[jj]
		}
		if g <= 0 {
			continue
		}

		// Pairs are sampled in proportion to the number of later
		// times, weight to make every comparable pair equally likely.
		w := float64(n-k) / (g * g)
		denom += w
		if score[j1] > score[j2] {
			numer += w
		}
	}

	return numer / denom
}
