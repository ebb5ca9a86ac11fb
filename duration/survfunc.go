package duration

import (
	"fmt"
	"math"
	"sort"

	"github.com/kshedden/dstream/dstream"
	"gonum.org/v1/gonum/stat/distuv"
)

// ConfType selects the scale on which pointwise confidence intervals
// for a survival function are constructed.
type ConfType int

// LogConf builds intervals for log S(t), LogLogConf for log(-log S(t))
// and PlainConf for S(t) itself.
const (
	LogConf ConfType = iota
	LogLogConf
	PlainConf
)

// ParseConfType converts the names "log", "log-log" and "plain" to a ConfType.
func ParseConfType(s string) (ConfType, error) {
	switch s {
	case "log":
		return LogConf, nil
	case "log-log":
		return LogLogConf, nil
	case "plain":
		return PlainConf, nil
	}
	return 0, fmt.Errorf("unknown confidence interval type %q", s)
}

func (ct ConfType) String() string {
	switch ct {
	case LogConf:
		return "log"
	case LogLogConf:
		return "log-log"
	case PlainConf:
		return "plain"
	}
	return "unknown"
}

// SurvfuncRight uses the method of Kaplan and Meier to estimate the
// survival distribution based on (possibly) right censored data.  The
// caller must set Data and TimeVar before calling the Fit method.
// StatusVar, WeightVar, and EntryVar are optional fields.
type SurvfuncRight struct {

	// The data used to perform the estimation.
	data dstream.Dstream

	// The name of the variable containing the minimum of the
	// event time and entry time.  The underlying data must have
	// float64 type.
	timeVar string

	// The name of a variable containing the status indicator,
	// which is 1 if the event occurred at the time given by
	// TimeVar, and 0 otherwise.  This is optional, and is assumed
	// to be identically equal to 1 if not present.
	statusVar string

	// The name of a variable containing case weights, optional.
	weightVar string

	// The name of a variable containing entry times, optional.
	entryVar string

	// Times at which events occur, sorted.
	times []float64

	// Number of events at each time in Times.
	nEvents []float64

	// Number of people at risk just before each time in times
	nRisk []float64

	// The estimated survival function evaluated at each time in Times
	survProb []float64

	// The standard errors for the estimates in SurvProb.
	survProbSE []float64

	// All distinct event or censoring times, with the risk set
	// size and event count at each, before removing times without
	// events.
	allTimes  []float64
	allRisk   []float64
	allEvents []float64

	// The largest observed time
	maxTime float64

	events map[float64]float64
	total  map[float64]float64
	entry  map[float64]float64

	timepos   int
	statuspos int
	weightpos int
	entrypos  int

	err error
}

// NewSurvfuncRight creates a new value for fitting a survival function.
// If statusvar is empty, every time is treated as an event time.
func NewSurvfuncRight(data dstream.Dstream, timevar, statusvar string) *SurvfuncRight {

	return &SurvfuncRight{
		data:      data,
		timeVar:   timevar,
		statusVar: statusvar,
	}
}

// Weight specifies the name of a case weight variable.
func (sf *SurvfuncRight) Weight(weight string) *SurvfuncRight {
	sf.weightVar = weight
	return sf
}

// Entry specifies the name of an entry time variable.
func (sf *SurvfuncRight) Entry(entry string) *SurvfuncRight {
	sf.entryVar = entry
	return sf
}

// Time returns the times at which the survival function changes.
func (sf *SurvfuncRight) Time() []float64 {
	return sf.times
}

// NumRisk returns the number of people at risk at each time point
// where the survival function changes.
func (sf *SurvfuncRight) NumRisk() []float64 {
	return sf.nRisk
}

// NumEvents returns the number of events at each time point where the
// survival function changes.
func (sf *SurvfuncRight) NumEvents() []float64 {
	return sf.nEvents
}

// SurvProb returns the estimated survival probabilities at the points
// where the survival function changes.
func (sf *SurvfuncRight) SurvProb() []float64 {
	return sf.survProb
}

// SurvProbSE returns the standard errors of the estimated survival
// probabilities at the points where the survival function changes.
func (sf *SurvfuncRight) SurvProbSE() []float64 {
	return sf.survProbSE
}

// MaxTime returns the largest observed (event or censoring) time.
func (sf *SurvfuncRight) MaxTime() float64 {
	return sf.maxTime
}

// Err returns any error found while scanning the data.
func (sf *SurvfuncRight) Err() error {
	return sf.err
}

// NumSteps returns the number of points where the estimated survival
// function drops, i.e. the number of distinct event times.
func (sf *SurvfuncRight) NumSteps() int {
	var n int
	for _, d := range sf.nEvents {
		if d > 0 {
			n++
		}
	}
	return n
}

func (sf *SurvfuncRight) init() {

	sf.events = make(map[float64]float64)
	sf.total = make(map[float64]float64)
	sf.entry = make(map[float64]float64)

	sf.data.Reset()

	sf.timepos = -1
	sf.statuspos = -1
	sf.weightpos = -1
	sf.entrypos = -1

	for k, na := range sf.data.Names() {
		switch na {
		case sf.timeVar:
			sf.timepos = k
		case sf.statusVar:
			sf.statuspos = k
		case sf.weightVar:
			sf.weightpos = k
		case sf.entryVar:
			sf.entrypos = k
		}
	}

	if sf.timepos == -1 {
		panic("Time variable not found")
	}
	if sf.statusVar != "" && sf.statuspos == -1 {
		panic("Status variable not found")
	}
	if sf.weightVar != "" && sf.weightpos == -1 {
		panic("Weight variable not found")
	}
	if sf.entryVar != "" && sf.entrypos == -1 {
		panic("Entry variable not found")
	}
}

func (sf *SurvfuncRight) scanData() {

	sf.maxTime = math.Inf(-1)

	for j := 0; sf.data.Next(); j++ {

		time := sf.data.GetPos(sf.timepos).([]float64)

		var status []float64
		if sf.statuspos != -1 {
			status = sf.data.GetPos(sf.statuspos).([]float64)
		}

		var entry []float64
		if sf.entrypos != -1 {
			entry = sf.data.GetPos(sf.entrypos).([]float64)
		}

		var weight []float64
		if sf.weightpos != -1 {
			weight = sf.data.GetPos(sf.weightpos).([]float64)
		}

		for i, t := range time {

			w := float64(1)
			if sf.weightpos != -1 {
				w = weight[i]
			}

			if sf.statuspos == -1 || status[i] == 1 {
				sf.events[t] += w
			}
			sf.total[t] += w

			if t > sf.maxTime {
				sf.maxTime = t
			}

			if sf.entrypos != -1 {
				if entry[i] >= t && sf.err == nil {
					sf.err = fmt.Errorf("entry time %d in chunk %d is not before the event/censoring time", i, j)
				}
				sf.entry[entry[i]] += w
			}
		}
	}
}

func rollback(x []float64) {
	var z float64
	for i := len(x) - 1; i >= 0; i-- {
		z += x[i]
		x[i] = z
	}
}

func (sf *SurvfuncRight) eventstats() {

	// Get the sorted distinct times (event or censoring)
	sf.times = make([]float64, len(sf.total))
	var i int
	for t := range sf.total {
		sf.times[i] = t
		i++
	}
	sort.Float64s(sf.times)

	// Get the weighted event count and risk set size at each time
	// point (in same order as Times).
	sf.nEvents = make([]float64, len(sf.times))
	sf.nRisk = make([]float64, len(sf.times))
	for i, t := range sf.times {
		sf.nEvents[i] = sf.events[t]
		sf.nRisk[i] = sf.total[t]
	}
	rollback(sf.nRisk)

	// Adjust for entry times
	if sf.entrypos != -1 {
		entry := make([]float64, len(sf.times))
		for t, w := range sf.entry {
			ii := sort.SearchFloat64s(sf.times, t)
			if ii == len(sf.times) || t < sf.times[ii] {
				ii--
			}
			if ii >= 0 {
				entry[ii] += w
			}
		}
		rollback(entry)
		for i := 0; i < len(sf.nRisk); i++ {
			sf.nRisk[i] -= entry[i]
		}
	}

	sf.allTimes = append([]float64(nil), sf.times...)
	sf.allRisk = append([]float64(nil), sf.nRisk...)
	sf.allEvents = append([]float64(nil), sf.nEvents...)
}

// compress removes times where no events occurred.
func (sf *SurvfuncRight) compress() {

	var ix []int
	for i := 0; i < len(sf.times); i++ {
		// Only retain events, except for the last point,
		// which is retained even if there are no events.
		if sf.nEvents[i] > 0 || i == len(sf.times)-1 {
			ix = append(ix, i)
		}
	}

	if len(ix) < len(sf.times) {
		for i, j := range ix {
			sf.times[i] = sf.times[j]
			sf.nEvents[i] = sf.nEvents[j]
			sf.nRisk[i] = sf.nRisk[j]
		}
		sf.times = sf.times[0:len(ix)]
		sf.nEvents = sf.nEvents[0:len(ix)]
		sf.nRisk = sf.nRisk[0:len(ix)]
	}
}

func (sf *SurvfuncRight) fit() {

	sf.survProb = make([]float64, len(sf.times))
	x := float64(1)
	for i := range sf.times {
		x *= 1 - sf.nEvents[i]/sf.nRisk[i]
		sf.survProb[i] = x
	}

	sf.survProbSE = make([]float64, len(sf.times))
	x = 0
	if sf.weightpos == -1 {
		for i := range sf.times {
			d := sf.nEvents[i]
			n := sf.nRisk[i]
			if d == n {
				// Greenwood's variance is undefined once everyone has failed.
				x = math.NaN()
			} else {
				x += d / (n * (n - d))
			}
			sf.survProbSE[i] = math.Sqrt(x) * sf.survProb[i]
		}
	} else {
		for i := range sf.times {
			d := sf.nEvents[i]
			n := sf.nRisk[i]
			x += d / (n * n)
			sf.survProbSE[i] = math.Sqrt(x)
		}
	}
}

// Done indicates that the survival function has been configured and can now be fit.
func (sf *SurvfuncRight) Done() *SurvfuncRight {
	sf.init()
	sf.scanData()
	sf.eventstats()
	sf.compress()
	sf.fit()
	return sf
}

// index returns the position in Time() of the last step at or before
// t, or -1 if t is before the first step.
func (sf *SurvfuncRight) index(t float64) int {
	return sort.Search(len(sf.times), func(i int) bool { return sf.times[i] > t }) - 1
}

// At returns the estimated survival probability at time t and its
// standard error.  The estimate is right-continuous.  Beyond the
// largest observed time the estimate is undefined (NaN) unless the
// survival function has already reached zero.
func (sf *SurvfuncRight) At(t float64) (float64, float64) {

	if t > sf.maxTime {
		if n := len(sf.survProb); n > 0 && sf.survProb[n-1] == 0 {
			return 0, 0
		}
		return math.NaN(), math.NaN()
	}

	i := sf.index(t)
	if i < 0 {
		return 1, 0
	}

	return sf.survProb[i], sf.survProbSE[i]
}

// atRiskAt returns the number at risk at time t, i.e. with observed
// time greater than or equal to t.
func (sf *SurvfuncRight) atRiskAt(t float64) float64 {
	i := sort.SearchFloat64s(sf.allTimes, t)
	if i == len(sf.allTimes) {
		return 0
	}
	return sf.allRisk[i]
}

// eventsIn returns the number of events in the interval (t0, t1].
func (sf *SurvfuncRight) eventsIn(t0, t1 float64) float64 {
	var d float64
	for i, t := range sf.allTimes {
		if t > t0 && t <= t1 {
			d += sf.allEvents[i]
		}
	}
	return d
}

// bounds returns the confidence limits for a survival probability s
// with standard error se.
func bounds(s, se, z float64, ct ConfType) (float64, float64) {

	if math.IsNaN(se) || math.IsNaN(s) {
		return math.NaN(), math.NaN()
	}
	if s == 1 && se == 0 {
		return 1, 1
	}
	if s == 0 {
		return math.NaN(), math.NaN()
	}

	switch ct {
	case PlainConf:
		return math.Max(0, s-z*se), math.Min(1, s+z*se)
	case LogConf:
		sl := se / s
		return s * math.Exp(-z*sl), math.Min(1, s*math.Exp(z*sl))
	case LogLogConf:
		if s == 1 {
			return 1, 1
		}
		sl := se / (s * math.Abs(math.Log(s)))
		return math.Pow(s, math.Exp(z*sl)), math.Pow(s, math.Exp(-z*sl))
	}

	panic("unknown confidence interval type")
}

// critval returns the normal quantile for a two-sided interval with
// the given coverage.
func critval(level float64) float64 {
	return distuv.UnitNormal.Quantile(1 - (1-level)/2)
}

// ConfInt returns pointwise confidence limits at the points in Time().
func (sf *SurvfuncRight) ConfInt(level float64, ct ConfType) ([]float64, []float64) {

	z := critval(level)
	lcb := make([]float64, len(sf.times))
	ucb := make([]float64, len(sf.times))
	for i := range sf.times {
		lcb[i], ucb[i] = bounds(sf.survProb[i], sf.survProbSE[i], z, ct)
	}

	return lcb, ucb
}

// SurvEstimate is the estimated survival probability at one time point.
type SurvEstimate struct {

	// The time at which the estimate is made
	Time float64

	// The number at risk at Time
	NumRisk float64

	// The number of events since the previous requested time
	NumEvent float64

	// The survival probability, its standard error and confidence limits
	Surv float64
	SE   float64
	LCB  float64
	UCB  float64
}

// Estimates returns the survival probability with confidence limits
// at each of the given (increasing) times.
func (sf *SurvfuncRight) Estimates(times []float64, level float64, ct ConfType) []SurvEstimate {

	z := critval(level)
	est := make([]SurvEstimate, len(times))
	prev := math.Inf(-1)
	for i, t := range times {
		s, se := sf.At(t)
		lcb, ucb := bounds(s, se, z, ct)
		est[i] = SurvEstimate{
			Time:     t,
			NumRisk:  sf.atRiskAt(t),
			NumEvent: sf.eventsIn(prev, t),
			Surv:     s,
			SE:       se,
			LCB:      lcb,
			UCB:      ucb,
		}
		prev = t
	}

	return est
}

const qtol = 1e-10

// firstBelow returns the first time at which y falls to or below q,
// or NaN if this never happens.
func (sf *SurvfuncRight) firstBelow(y []float64, q float64) float64 {
	for i, v := range y {
		if sf.nEvents[i] > 0 && v <= q+qtol {
			return sf.times[i]
		}
	}
	return math.NaN()
}

// Quantile returns the p'th quantile of the survival distribution
// (the first time at which S(t) <= 1-p), with confidence limits.  The
// lower limit is the first time at which the lower confidence band
// reaches 1-p, the upper limit is defined in the same way from the
// upper band.  NaN is returned for values that are not reached by the
// data.
func (sf *SurvfuncRight) Quantile(p, level float64, ct ConfType) (float64, float64, float64) {

	q := 1 - p
	lcb, ucb := sf.ConfInt(level, ct)

	return sf.firstBelow(sf.survProb, q), sf.firstBelow(lcb, q), sf.firstBelow(ucb, q)
}

// Median returns the median survival time, the first time at which
// the survival function is at or below one half.
func (sf *SurvfuncRight) Median() float64 {
	return sf.firstBelow(sf.survProb, 0.5)
}

// RestrictedMean returns the mean survival time restricted to [0, tau],
// the area under the estimated survival function, with its standard
// error.  If tau is not positive, the largest observed time is used.
func (sf *SurvfuncRight) RestrictedMean(tau float64) (float64, float64) {

	if tau <= 0 {
		tau = sf.maxTime
	}

	// Areas of the rectangles between consecutive steps
	var tl []float64
	var area []float64
	t0, s0 := 0.0, 1.0
	for i, t := range sf.times {
		if t > tau {
			break
		}
		area = append(area, s0*(t-t0))
		tl = append(tl, t)
		t0, s0 = t, sf.survProb[i]
	}
	area = append(area, s0*(tau-t0))

	var mean float64
	for _, a := range area {
		mean += a
	}

	// The area beyond each event time is a reverse cumulative sum
	// of the rectangles.
	rem := make([]float64, len(area))
	copy(rem, area)
	rollback(rem)

	var v float64
	for i := range tl {
		d := sf.nEvents[i]
		n := sf.nRisk[i]
		if d == 0 || d >= n {
			continue
		}
		a := rem[i+1]
		v += a * a * d / (n * (n - d))
	}

	return mean, math.Sqrt(v)
}
