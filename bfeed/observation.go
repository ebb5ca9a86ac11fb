// Package bfeed holds the breastfeeding duration data of the National
// Longitudinal Survey of Youth (927 first-born children), as analyzed
// in Klein and Moeschberger, Survival Analysis, section 1.14.  It
// provides the observation model, a CSV loader, derived groupings, a
// descriptive summarizer and construction of Cox model design matrices.
package bfeed

import "fmt"

// Race is the race of the mother.
type Race int

// Race codes as used in the published data.
const (
	White Race = iota + 1
	Black
	Other
)

var raceNames = []string{"white", "black", "other"}

func (r Race) String() string {
	if r < White || r > Other {
		return fmt.Sprintf("Race(%d)", int(r))
	}
	return raceNames[r-1]
}

// Observation is one mother/child record.  Values are copied out of a
// Data set, so an Observation never changes the data it came from.
type Observation struct {

	// Duration of breastfeeding in weeks
	Duration float64

	// Delta is 1 if breastfeeding was completed (weaned), 0 if censored
	Delta int

	Race Race

	// Mother in poverty at birth
	Poverty bool

	// Mother smoked at birth of child
	Smoke bool

	// Mother used alcohol at birth of child
	Alcohol bool

	// Age of mother at birth of child, in years
	AgeMth float64

	// Year of birth
	YBirth float64

	// Education of mother, in years of school
	YSchool float64

	// Prenatal care after the third month
	PC3Mth bool
}

// Data is an immutable collection of observations.
type Data struct {
	obs []Observation
}

// NewData returns a Data set holding a copy of the given observations.
func NewData(obs []Observation) *Data {
	return &Data{obs: append([]Observation(nil), obs...)}
}

// Len returns the number of observations.
func (d *Data) Len() int {
	return len(d.obs)
}

// Obs returns a copy of observation i.
func (d *Data) Obs(i int) Observation {
	return d.obs[i]
}

// Durations returns the durations as a new slice.
func (d *Data) Durations() []float64 {
	x := make([]float64, len(d.obs))
	for i, o := range d.obs {
		x[i] = o.Duration
	}
	return x
}

// Status returns the event indicators as a new slice.
func (d *Data) Status() []float64 {
	x := make([]float64, len(d.obs))
	for i, o := range d.obs {
		x[i] = float64(o.Delta)
	}
	return x
}

// NumCensored returns the number of censored observations.
func (d *Data) NumCensored() int {
	var n int
	for _, o := range d.obs {
		if o.Delta == 0 {
			n++
		}
	}
	return n
}

// Subset returns the observations for which keep returns true.
func (d *Data) Subset(keep func(Observation) bool) *Data {
	var obs []Observation
	for _, o := range d.obs {
		if keep(o) {
			obs = append(obs, o)
		}
	}
	return &Data{obs: obs}
}
