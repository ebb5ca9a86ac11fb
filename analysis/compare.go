package analysis

import (
	"fmt"

	"github.com/kshedden/bfeedsurv/bfeed"
	"github.com/kshedden/bfeedsurv/duration"
)

// LogRank holds the comparison of the survival curves of the levels of
// one grouping.
type LogRank struct {
	Grouping string
	Groups   []string
	N        []int

	Observed []float64
	Expected []float64

	// Variance of observed minus expected for each group
	Variance []float64

	Chisq  float64
	DF     int
	PValue float64

	// Comparisons of each pair of groups, only when there are more
	// than two groups
	Pairwise []duration.PairwiseResult
}

// CompareGroups runs the log-rank test for every grouping.
func (a *Analysis) CompareGroups() error {

	time := a.data.Durations()
	status := a.data.Status()

	var tests []*LogRank
	for _, g := range bfeed.Groupings() {
		labels := a.data.Labels(g)

		sd := duration.NewSurvDiff(time, status, labels).Levels(g.Levels).Done()
		if err := sd.Err(); err != nil {
			return fmt.Errorf("log-rank test for %s: %w", g.Name, err)
		}

		for j, o := range sd.Observed() {
			if o == 0 {
				return fmt.Errorf("log-rank test for %s = %s: %w", g.Name, sd.Groups()[j], ErrDegenerateStratum)
			}
		}

		k := len(sd.Groups())
		lr := &LogRank{
			Grouping: g.Name,
			Groups:   sd.Groups(),
			N:        sd.NumObs(),
			Observed: sd.Observed(),
			Expected: sd.Expected(),
			Chisq:    sd.Stat(),
			DF:       sd.DF(),
			PValue:   sd.PValue(),
		}
		vc := sd.VCov()
		for j := 0; j < k; j++ {
			lr.Variance = append(lr.Variance, vc[j*k+j])
		}

		if k > 2 {
			pw, err := duration.PairwiseSurvDiff(time, status, labels, sd.Groups(), 0)
			if err != nil {
				return fmt.Errorf("pairwise log-rank tests for %s: %w", g.Name, err)
			}
			lr.Pairwise = pw
		}

		a.log.Info("log-rank", "grouping", g.Name, "chisq", lr.Chisq, "df", lr.DF, "p", lr.PValue)
		tests = append(tests, lr)
	}

	a.LogRank = tests
	return nil
}
