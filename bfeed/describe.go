package bfeed

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// LevelSummary describes one level of a categorical covariate.
type LevelSummary struct {
	Variable string
	Level    string

	// Number and percentage of observations at the level
	N       int
	Percent float64

	// Percentage of the observations at the level that are censored
	PctCensored float64
}

// ContinuousSummary describes a continuous covariate.
type ContinuousSummary struct {
	Variable string
	N        int
	Mean     float64

	// Sample standard deviation (n-1 denominator)
	SD float64

	Min float64
	Max float64
}

// DescribeCategorical tabulates each covariate by level, in declared
// level order.
func (d *Data) DescribeCategorical(cov []*Covariate) []LevelSummary {

	n := float64(len(d.obs))
	var rows []LevelSummary
	for _, c := range cov {
		pos := make(map[string]int)
		for j, l := range c.Levels {
			pos[l] = j
		}
		counts := make([]int, len(c.Levels))
		cens := make([]int, len(c.Levels))
		for _, o := range d.obs {
			j, ok := pos[c.Level(o)]
			if !ok {
				continue
			}
			counts[j]++
			if o.Delta == 0 {
				cens[j]++
			}
		}

		for j, l := range c.Levels {
			r := LevelSummary{
				Variable: c.Name,
				Level:    l,
				N:        counts[j],
				Percent:  100 * float64(counts[j]) / n,
			}
			if counts[j] > 0 {
				r.PctCensored = 100 * float64(cens[j]) / float64(counts[j])
			}
			rows = append(rows, r)
		}
	}

	return rows
}

// DescribeContinuous summarizes each continuous covariate.
func (d *Data) DescribeContinuous(cov []*Covariate) []ContinuousSummary {

	var rows []ContinuousSummary
	for _, c := range cov {
		x := d.Values(c)
		r := ContinuousSummary{
			Variable: c.Name,
			N:        len(x),
		}
		if len(x) > 0 {
			r.Mean, r.SD = stat.MeanStdDev(x, nil)
			r.Min = floats.Min(x)
			r.Max = floats.Max(x)
		}
		rows = append(rows, r)
	}

	return rows
}

// SplitCovariates partitions covariates into categorical and continuous.
func SplitCovariates(cov []*Covariate) ([]*Covariate, []*Covariate) {
	var cat, cont []*Covariate
	for _, c := range cov {
		if c.Kind == Categorical {
			cat = append(cat, c)
		} else {
			cont = append(cont, c)
		}
	}
	return cat, cont
}
