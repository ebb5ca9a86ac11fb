// Package duration supports various methods for statistical analysis
// of duration data (survival analysis).
package duration

import (
	"errors"
	"fmt"
	"log"
	"math"
	"os"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/kshedden/bfeedsurv/statmodel"
)

var (
	// ErrNoEvents is returned when a model or comparison group has
	// no observed events.
	ErrNoEvents = errors.New("no events observed")

	// ErrNotConverged is returned when the partial likelihood
	// optimizer fails to converge.
	ErrNotConverged = errors.New("proportional hazards fit did not converge")
)

// Ties selects the approximation to the partial likelihood used for
// tied event times.
type Ties int

// Breslow and Efron are the two supported methods for handling ties.
const (
	Breslow Ties = iota
	Efron
)

// ParseTies converts "breslow" or "efron" to a Ties value.
func ParseTies(s string) (Ties, error) {
	switch s {
	case "breslow":
		return Breslow, nil
	case "efron":
		return Efron, nil
	}
	return 0, fmt.Errorf("unknown ties method %q", s)
}

func (t Ties) String() string {
	if t == Efron {
		return "Efron"
	}
	return "Breslow"
}

// PHParameter contains a parameter value for a proportional hazards
// regression model.
type PHParameter struct {
	coeff []float64
}

// GetCoeff returns the array of model coefficients from a parameter value.
func (p *PHParameter) GetCoeff() []float64 {
	return p.coeff
}

// SetCoeff sets the array of model coefficients for a parameter value.
func (p *PHParameter) SetCoeff(x []float64) {
	p.coeff = x
}

// Clone returns a deep copy of the parameter value.
func (p *PHParameter) Clone() statmodel.Parameter {
	q := make([]float64, len(p.coeff))
	copy(q, p.coeff)
	return &PHParameter{q}
}

// PHReg describes a proportional hazards regression model for right
// censored data.
type PHReg struct {

	// The names of the variables.  The order agrees with the order of 'data'.
	varnames []string

	// The data to which the model is fit
	data [][]statmodel.Dtype

	// Starting values, optional
	start []float64

	// Name and position of the event variable
	statuspos int

	// Name and position of the time variable
	timepos int

	// Name and position of the entry time variable
	entrypos int

	// Name and position of an offset variable
	offsetpos int

	// Name and position of a case weight variable
	weightpos int

	// Name and position of a stratum variable
	stratapos int

	// Start and end position of the strata
	stratumix [][2]int

	// The sorted times at which events occur in each stratum
	etimes [][]float64

	// enter[i][j] are the row indices that enter the risk set at
	// the jth distinct time in stratum i
	enter [][][]int

	// event[i][j] are the row indices that have an event at
	// the jth distinct time in stratum i
	event [][][]int

	// exit[i][j] are the row indices that exit the risk set at
	// the jth distinct time in stratum i
	exit [][][]int

	// The sum of covariates with events in each stratum
	sumx [][]float64

	// L2 (ridge) weights for each variable
	l2wgtMap map[string]float64
	l2wgt    []float64

	// Quadratic penalty matrix, the penalized log-likelihood
	// subtracts b'Pb/2.
	penalty []float64

	// Method for handling tied event times
	ties Ties

	// The positions of the covariates in the Dstream
	xpos []int

	// If skip[i] is true, case i is skipped since it is censored before the first event.
	skip []bool

	// The number of cases that are skipped because they are censored before the first event
	skipEarlyCensor int

	// Total number of events
	nevents int

	// Optimization settings
	optsettings *optimize.Settings

	// Optimization method
	optmethod optimize.Method

	log *log.Logger

	nslices [][]float64
}

// NumObs returns the number of observations in the data set.
func (ph *PHReg) NumObs() int {
	return len(ph.data[0])
}

// NumParams returns the number of model parameters (regression coefficients).
func (ph *PHReg) NumParams() int {
	return len(ph.xpos)
}

// NumEvents returns the number of observed events.
func (ph *PHReg) NumEvents() int {
	return ph.nevents
}

// Dataset returns the data columns that are used to fit the model.
func (ph *PHReg) Dataset() [][]statmodel.Dtype {
	return ph.data
}

// Xpos return the positions of the covariates in the model's dataset.
func (ph *PHReg) Xpos() []int {
	return ph.xpos
}

// Ties returns the method used for tied event times.
func (ph *PHReg) Ties() Ties {
	return ph.ties
}

// PHRegConfig defines configuration parameters for a proportional hazards regression..
type PHRegConfig struct {

	// A logger to which logging information is wreitten
	Log *log.Logger

	// Start contains starting values for the regression parameter estimates
	Start []float64

	// WeightVar is the name of the variable for frequency-weighting the cases, if an empty
	// string, all weights are equal to 1.
	WeightVar string

	// OffsetVar is the name of a variable that defines an offset.
	OffsetVar string

	// StrataVar is the name of a variable that defines strata.
	StrataVar string

	// EntryVar is the name of a variable that defines entry (left truncation) times.
	EntryVar string

	// Ties selects the method for tied event times.  Case weights
	// are only supported with the Breslow method.
	Ties Ties

	// L2Penalty maps covariate names to ridge weights.
	L2Penalty map[string]float64

	// Penalty is a p x p row-major matrix P (p is the number of
	// covariates), the fit maximizes the log-likelihood minus b'Pb/2.
	Penalty []float64

	// OptMethod is the Gonum optimization used to fit the model.
	OptMethod optimize.Method

	// OptSettings configures the Gonum optimization routine.
	OptSettings *optimize.Settings
}

// DefaultPHRegConfig returns a default configuration struct for a proportional hazards regression.
func DefaultPHRegConfig() *PHRegConfig {

	return &PHRegConfig{
		Ties:      Efron,
		OptMethod: &optimize.Newton{},
	}
}

// NewPHReg returns a PHReg value that can be used to fit a
// proportional hazards regression model.
func NewPHReg(data statmodel.Dataset, time, status string, predictors []string, config *PHRegConfig) (*PHReg, error) {

	if config == nil {
		config = DefaultPHRegConfig()
	}

	pos := make(map[string]int)
	for i, v := range data.Names() {
		pos[v] = i
	}

	timepos, ok := pos[time]
	if !ok {
		return nil, fmt.Errorf("time variable '%s' not found in dataset", time)
	}

	statuspos, ok := pos[status]
	if !ok {
		return nil, fmt.Errorf("status variable '%s' not found in dataset", status)
	}

	var xpos []int
	for _, xna := range predictors {
		xp, ok := pos[xna]
		if !ok {
			return nil, fmt.Errorf("predictor '%s' not found in dataset", xna)
		}
		xpos = append(xpos, xp)
	}

	getpos := func(vn string) (int, error) {
		if vn == "" {
			return -1, nil
		}
		loc, ok := pos[vn]
		if !ok {
			return -1, fmt.Errorf("'%s' not found in dataset", vn)
		}
		return loc, nil
	}

	var locs [4]int
	for i, vn := range []string{config.WeightVar, config.StrataVar, config.OffsetVar, config.EntryVar} {
		var err error
		if locs[i], err = getpos(vn); err != nil {
			return nil, err
		}
	}
	weightpos, stratapos, offsetpos, entrypos := locs[0], locs[1], locs[2], locs[3]

	if config.Ties == Efron && weightpos != -1 {
		return nil, fmt.Errorf("case weights require the Breslow method for ties")
	}

	p := len(xpos)
	if config.Penalty != nil && len(config.Penalty) != p*p {
		return nil, fmt.Errorf("penalty matrix has %d elements, expected %d", len(config.Penalty), p*p)
	}

	varnames := data.Names()

	penToSlice := func(m map[string]float64) []float64 {
		if len(m) == 0 {
			return nil
		}
		v := make([]float64, len(xpos))
		for j, k := range xpos {
			v[j] = m[varnames[k]]
		}
		return v
	}

	optmethod := config.OptMethod
	if optmethod == nil {
		optmethod = &optimize.Newton{}
	}

	// Copy the columns since sorting by stratum reorders them in place.
	da := data.Data()
	cols := make([][]statmodel.Dtype, len(da))
	for j := range da {
		cols[j] = append([]statmodel.Dtype(nil), da[j]...)
	}

	ph := &PHReg{
		data:        cols,
		varnames:    varnames,
		timepos:     timepos,
		statuspos:   statuspos,
		xpos:        xpos,
		weightpos:   weightpos,
		offsetpos:   offsetpos,
		entrypos:    entrypos,
		stratapos:   stratapos,
		start:       config.Start,
		l2wgt:       penToSlice(config.L2Penalty),
		l2wgtMap:    config.L2Penalty,
		penalty:     config.Penalty,
		ties:        config.Ties,
		log:         config.Log,
		optsettings: config.OptSettings,
		optmethod:   optmethod,
	}

	if err := ph.init(); err != nil {
		return nil, err
	}

	return ph, nil
}

func (ph *PHReg) init() error {
	ph.sortByStratum()
	if err := ph.setupTimes(); err != nil {
		return err
	}
	ph.setupCovs()

	if ph.nevents == 0 {
		return ErrNoEvents
	}

	return nil
}

func (a argsort) Len() int {
	return len(a.s)
}

func (a argsort) Swap(i, j int) {
	a.s[i], a.s[j] = a.s[j], a.s[i]
	a.inds[i], a.inds[j] = a.inds[j], a.inds[i]
}

func (a argsort) Less(i, j int) bool {
	return a.s[i] < a.s[j]
}

type argsort struct {
	s    []statmodel.Dtype
	inds []int
}

func (ph *PHReg) sortByStratum() {

	time := ph.data[ph.timepos]
	nobs := len(time)

	if ph.stratapos == -1 {
		ph.stratumix = [][2]int{{0, nobs}}
		return
	}

	strata := ph.data[ph.stratapos]

	inds := make([]int, nobs)
	for i := range inds {
		inds[i] = i
	}
	a := argsort{s: strata, inds: inds}
	sort.Stable(a)

	tmp := make([]statmodel.Dtype, nobs)

	re := func(pos int) {
		if pos == -1 || pos == ph.stratapos {
			return
		}
		x := ph.data[pos]
		for i, j := range inds {
			tmp[i] = x[j]
		}
		x, tmp = tmp, x
		ph.data[pos] = x
	}

	re(ph.timepos)
	re(ph.statuspos)
	re(ph.offsetpos)
	re(ph.weightpos)
	re(ph.entrypos)

	for _, k := range ph.xpos {
		re(k)
	}

	var i0 int
	for i := 0; i <= len(strata); i++ {
		if i == len(strata) || (i > 0 && strata[i-1] != strata[i]) {
			ph.stratumix = append(ph.stratumix, [2]int{i0, i})
			i0 = i
		}
	}
}

func (ph *PHReg) setupTimes() error {

	ph.skipEarlyCensor = 0
	ph.nevents = 0

	time := ph.data[ph.timepos]
	status := ph.data[ph.statuspos]
	nobs := len(time)

	// Track cases that are omitted since they are
	// censored before the first event in their stratum.
	ph.skip = make([]bool, nobs)

	// Get the sorted distinct times where events occur
	for _, ix := range ph.stratumix {

		var et []float64

		for i := ix[0]; i < ix[1]; i++ {
			if time[i] < 0 {
				return fmt.Errorf("PHReg: times cannot be negative")
			}
			if status[i] == 1 {
				et = append(et, float64(time[i]))
				ph.nevents++
			} else if status[i] != 0 {
				return fmt.Errorf("PHReg: status variable '%s' has values other than 0 and 1", ph.varnames[ph.statuspos])
			}
		}

		if len(et) > 0 {
			sort.Float64s(et)

			// Deduplicate
			j := 0
			for i := 1; i < len(et); i++ {
				if et[i] != et[j] {
					j++
					et[j] = et[i]
				}
			}
			et = et[0 : j+1]
		}
		ph.etimes = append(ph.etimes, et)

		// Indices of cases that enter or exit the risk set,
		// or have an event at each time point.
		enter := make([][]int, len(et))
		exit := make([][]int, len(et))
		event := make([][]int, len(et))
		ph.enter = append(ph.enter, enter)
		ph.exit = append(ph.exit, exit)
		ph.event = append(ph.event, event)

		// No events in this stratum
		if len(et) == 0 {
			for i := ix[0]; i < ix[1]; i++ {
				ph.skip[i] = true
			}
			continue
		}

		// Risk set exit times
		for i := ix[0]; i < ix[1]; i++ {
			ii := sort.SearchFloat64s(et, float64(time[i]))
			if ii == len(et) {
				// Censored after last event, never exits
			} else if et[ii] == float64(time[i]) {
				// Event or censored at an event time
				exit[ii] = append(exit[ii], i)
			} else if ii == 0 {
				// Censored before first event, never enters
				ph.skip[i] = true
				ph.skipEarlyCensor++
			} else {
				// Censored between event times
				exit[ii-1] = append(exit[ii-1], i)
			}
		}

		// Event times
		for i := ix[0]; i < ix[1]; i++ {
			if status[i] == 0 || ph.skip[i] {
				continue
			}
			ii := sort.SearchFloat64s(et, float64(time[i]))
			event[ii] = append(event[ii], i)
		}

		// Risk set entry times
		if ph.entrypos == -1 {
			// Everyone enters at time 0
			for i := ix[0]; i < ix[1]; i++ {
				if !ph.skip[i] {
					enter[0] = append(enter[0], i)
				}
			}
		} else {
			entry := ph.data[ph.entrypos]
			for i := ix[0]; i < ix[1]; i++ {
				if ph.skip[i] {
					continue
				}
				t := entry[i]
				if t > time[i] {
					return fmt.Errorf("PHReg: entry times may not occur after event or censoring times")
				}
				if t < 0 {
					return fmt.Errorf("PHReg: entry times may not be negative")
				}
				ii := sort.SearchFloat64s(et, float64(t))
				if ii == len(et) {
					// Enter after last event, never enters
				} else if jj := sort.SearchFloat64s(et, float64(time[i])); jj < len(et) && et[jj] != float64(time[i]) && jj == ii {
					// Enters and is censored between the same pair of
					// event times, never at risk
					ph.skip[i] = true
					ph.removeExit(exit, i)
				} else {
					// Enter on or between event times
					enter[ii] = append(enter[ii], i)
				}
			}
		}
	}

	return nil
}

// removeExit deletes case i from the exit lists.
func (ph *PHReg) removeExit(exit [][]int, i int) {
	for k, ex := range exit {
		for j, r := range ex {
			if r == i {
				exit[k] = append(ex[0:j], ex[j+1:]...)
				return
			}
		}
	}
}

func (ph *PHReg) putNslice(x []float64) {
	ph.nslices = append(ph.nslices, x)
}

func (ph *PHReg) getNslice() []float64 {

	if len(ph.nslices) == 0 {
		return make([]float64, ph.NumObs())
	}
	q := len(ph.nslices) - 1
	x := ph.nslices[q]
	zero(x)
	ph.nslices = ph.nslices[0:q]

	return x
}

func (ph *PHReg) setupCovs() {

	ph.sumx = ph.sumx[0:0]
	status := ph.data[ph.statuspos]

	var wgt []statmodel.Dtype
	if ph.weightpos != -1 {
		wgt = ph.data[ph.weightpos]
	}

	// Get the sum of covariates in each stratum,
	// including only covariates for cases with the event
	for _, ix := range ph.stratumix {
		sumx := make([]float64, len(ph.xpos))
		for j, k := range ph.xpos {
			x := ph.data[k]
			for i := ix[0]; i < ix[1]; i++ {
				if !ph.skip[i] && status[i] == 1 {
					if wgt == nil {
						sumx[j] += float64(x[i])
					} else {
						sumx[j] += float64(wgt[i] * x[i])
					}
				}
			}
		}
		ph.sumx = append(ph.sumx, sumx)
	}
}

// linpred places the linear predictor (including any offset) into lp.
func (ph *PHReg) linpred(params, lp []float64) {

	zero(lp)
	for j, k := range ph.xpos {
		x := ph.data[k]
		for i := range x {
			lp[i] += float64(x[i]) * params[j]
		}
	}

	if ph.offsetpos != -1 {
		off := ph.data[ph.offsetpos]
		for i := range off {
			lp[i] += float64(off[i])
		}
	}
}

// penaltyValue returns the total penalty subtracted from the
// log-likelihood.
func (ph *PHReg) penaltyValue(coeff []float64) float64 {

	var pen float64
	if len(ph.l2wgt) > 0 {
		for j, x := range coeff {
			pen += ph.l2wgt[j] * x * x
		}
	}

	if ph.penalty != nil {
		p := len(coeff)
		var q float64
		for j1 := 0; j1 < p; j1++ {
			for j2 := 0; j2 < p; j2++ {
				q += coeff[j1] * ph.penalty[j1*p+j2] * coeff[j2]
			}
		}
		pen += q / 2
	}

	return pen
}

// partialLogLike returns the unpenalized partial log-likelihood.
func (ph *PHReg) partialLogLike(coeff []float64) float64 {
	if ph.ties == Efron {
		return ph.efronLogLike(coeff)
	}
	return ph.breslowLogLike(coeff)
}

// LogLike returns the penalized log-likelihood at the given parameter
// value. The 'exact' parameter is ignored here.
func (ph *PHReg) LogLike(param statmodel.Parameter, exact bool) float64 {

	coeff := param.GetCoeff()
	return ph.partialLogLike(coeff) - ph.penaltyValue(coeff)
}

// breslowLogLike returns the log-likelihood value for the
// proportional hazards regression model at the given parameter
// values, using the Breslow method to resolve ties.
func (ph *PHReg) breslowLogLike(params []float64) float64 {

	var wgt []statmodel.Dtype
	if ph.weightpos != -1 {
		wgt = ph.data[ph.weightpos]
	}

	lp := ph.getNslice()
	elp := ph.getNslice()

	// Get the linear predictors
	ph.linpred(params, lp)

	ql := float64(0)
	for s, ix := range ph.stratumix {

		if ix[1] == ix[0] {
			continue
		}

		// We can add any constant here due to invariance in
		// the partial likelihood.
		mx := floats.Max(lp[ix[0]:ix[1]])
		for i := ix[0]; i < ix[1]; i++ {
			lp[i] -= mx
			elp[i] = math.Exp(lp[i])
		}
		if wgt != nil {
			for i := ix[0]; i < ix[1]; i++ {
				lp[i] *= float64(wgt[i])
				elp[i] *= float64(wgt[i])
			}
		}

		rlp := float64(0)
		for k := 0; k < len(ph.etimes[s]); k++ {

			// Update for new entries
			for _, i := range ph.enter[s][k] {
				rlp += elp[i]
			}

			for _, i := range ph.event[s][k] {
				ql += lp[i]
			}

			if wgt != nil {
				var n float64
				for _, i := range ph.event[s][k] {
					n += float64(wgt[i])
				}
				ql -= n * math.Log(rlp)
			} else {
				ql -= float64(len(ph.event[s][k])) * math.Log(rlp)
			}

			// Update for new exits
			for _, i := range ph.exit[s][k] {
				rlp -= elp[i]
			}
		}
	}

	ph.putNslice(lp)
	ph.putNslice(elp)

	return ql
}

// efronLogLike returns the log-likelihood value for the proportional
// hazards regression model at the given parameter values, using the
// Efron method to resolve ties.
func (ph *PHReg) efronLogLike(params []float64) float64 {

	lp := ph.getNslice()
	elp := ph.getNslice()

	ph.linpred(params, lp)

	ql := float64(0)
	for s, ix := range ph.stratumix {

		if ix[1] == ix[0] {
			continue
		}

		mx := floats.Max(lp[ix[0]:ix[1]])
		for i := ix[0]; i < ix[1]; i++ {
			lp[i] -= mx
			elp[i] = math.Exp(lp[i])
		}

		rlp := float64(0)
		for k := range ph.etimes[s] {

			for _, i := range ph.enter[s][k] {
				rlp += elp[i]
			}

			// Sum over the tied events
			var dlp float64
			for _, i := range ph.event[s][k] {
				ql += lp[i]
				dlp += elp[i]
			}

			d := float64(len(ph.event[s][k]))
			for l := range ph.event[s][k] {
				ql -= math.Log(rlp - float64(l)*dlp/d)
			}

			for _, i := range ph.exit[s][k] {
				rlp -= elp[i]
			}
		}
	}

	ph.putNslice(lp)
	ph.putNslice(elp)

	return ql
}

// BaselineCumHaz returns the Breslow estimator of the baseline cumulative
// hazard function for the given stratum, evaluated at the event times.
func (ph *PHReg) BaselineCumHaz(stratum int, params []float64) ([]float64, []float64) {

	h0 := make([]float64, len(ph.event[stratum]))

	lp := make([]float64, ph.NumObs())
	ph.linpred(params, lp)

	elp := 0.0
	for k := range ph.etimes[stratum] {

		// Update for new entries
		for _, i := range ph.enter[stratum][k] {
			elp += math.Exp(lp[i])
		}

		h0[k] = float64(len(ph.event[stratum][k])) / elp

		// Update for new exits
		for _, i := range ph.exit[stratum][k] {
			elp -= math.Exp(lp[i])
		}
	}

	floats.CumSum(h0, h0)

	return ph.etimes[stratum], h0
}

func zero(x []float64) {
	for i := range x {
		x[i] = 0
	}
}

// Score computes the score vector for the proportional hazards
// regression model at the given parameter setting.
func (ph *PHReg) Score(params statmodel.Parameter, score []float64) {

	coeff := params.GetCoeff()
	ph.partialScore(coeff, score)

	// Account for L2 weights if present.
	if len(ph.l2wgt) > 0 {
		for j, x := range coeff {
			score[j] -= 2 * ph.l2wgt[j] * x
		}
	}

	if ph.penalty != nil {
		p := len(coeff)
		for j1 := 0; j1 < p; j1++ {
			for j2 := 0; j2 < p; j2++ {
				score[j1] -= ph.penalty[j1*p+j2] * coeff[j2]
			}
		}
	}
}

func (ph *PHReg) partialScore(coeff, score []float64) {
	if ph.ties == Efron {
		ph.efronScore(coeff, score)
	} else {
		ph.breslowScore(coeff, score)
	}
}

// breslowScore calculates the score vector for the proportional
// hazards regression model at the given parameter values, using the
// Breslow approach to resolving ties.
func (ph *PHReg) breslowScore(params, score []float64) {

	zero(score)

	var wgt []statmodel.Dtype
	if ph.weightpos != -1 {
		wgt = ph.data[ph.weightpos]
	}

	lp := ph.getNslice()

	// Get the linear predictors
	ph.linpred(params, lp)

	for s, ix := range ph.stratumix {

		if ix[1] == ix[0] {
			continue
		}

		for j := 0; j < len(ph.xpos); j++ {
			score[j] += ph.sumx[s][j]
		}

		// We can add any constant here due to invariance in
		// the partial likelihood.
		mx := floats.Max(lp[ix[0]:ix[1]])
		for i := ix[0]; i < ix[1]; i++ {
			lp[i] = math.Exp(lp[i] - mx)
		}
		if wgt != nil {
			for i := ix[0]; i < ix[1]; i++ {
				lp[i] *= float64(wgt[i])
			}
		}

		rlp := float64(0)
		rlpv := make([]float64, len(ph.xpos))
		for q := range ph.etimes[s] {

			// Update for new entries
			for _, i := range ph.enter[s][q] {
				rlp += lp[i]
				for j, k := range ph.xpos {
					rlpv[j] += lp[i] * float64(ph.data[k][i])
				}
			}

			d := float64(len(ph.event[s][q]))
			if wgt != nil {
				d = 0
				for _, i := range ph.event[s][q] {
					d += float64(wgt[i])
				}
			}
			floats.AddScaledTo(score, score, -d/rlp, rlpv)

			// Update for new exits
			for _, i := range ph.exit[s][q] {
				rlp -= lp[i]
				for j, k := range ph.xpos {
					rlpv[j] -= lp[i] * float64(ph.data[k][i])
				}
			}
		}
	}

	ph.putNslice(lp)
}

// efronScore calculates the score vector using the Efron approach to
// resolving ties.
func (ph *PHReg) efronScore(params, score []float64) {

	zero(score)

	p := len(ph.xpos)
	lp := ph.getNslice()
	ph.linpred(params, lp)

	rlpv := make([]float64, p)
	dlpv := make([]float64, p)

	for s, ix := range ph.stratumix {

		if ix[1] == ix[0] {
			continue
		}

		mx := floats.Max(lp[ix[0]:ix[1]])
		for i := ix[0]; i < ix[1]; i++ {
			lp[i] = math.Exp(lp[i] - mx)
		}

		rlp := float64(0)
		zero(rlpv)
		for q := range ph.etimes[s] {

			for _, i := range ph.enter[s][q] {
				rlp += lp[i]
				for j, k := range ph.xpos {
					rlpv[j] += lp[i] * float64(ph.data[k][i])
				}
			}

			var dlp float64
			zero(dlpv)
			for _, i := range ph.event[s][q] {
				dlp += lp[i]
				for j, k := range ph.xpos {
					x := float64(ph.data[k][i])
					dlpv[j] += lp[i] * x
					score[j] += x
				}
			}

			d := float64(len(ph.event[s][q]))
			for l := range ph.event[s][q] {
				f := float64(l) / d
				den := rlp - f*dlp
				for j := range score {
					score[j] -= (rlpv[j] - f*dlpv[j]) / den
				}
			}

			for _, i := range ph.exit[s][q] {
				rlp -= lp[i]
				for j, k := range ph.xpos {
					rlpv[j] -= lp[i] * float64(ph.data[k][i])
				}
			}
		}
	}

	ph.putNslice(lp)
}

// Hessian computes the Hessian matrix for the model evaluated at the
// given parameter setting.  The Hessian type parameter is not used
// here.
func (ph *PHReg) Hessian(params statmodel.Parameter, ht statmodel.HessType, hess []float64) {

	coeff := params.GetCoeff()
	ph.partialHess(coeff, hess)

	// Account for L2 weights if present.
	p := len(coeff)
	if len(ph.l2wgt) > 0 {
		for j := 0; j < len(coeff); j++ {
			k := j*p + j
			hess[k] -= 2 * ph.l2wgt[j]
		}
	}

	if ph.penalty != nil {
		for j := range hess {
			hess[j] -= ph.penalty[j]
		}
	}
}

func (ph *PHReg) partialHess(coeff, hess []float64) {
	if ph.ties == Efron {
		ph.efronHess(coeff, hess)
	} else {
		ph.breslowHess(coeff, hess)
	}
}

// riskSums accumulates the weighted risk set sums for the covariates:
// the first and second moments sum_i w_i x_i and sum_i w_i x_i x_i'.
type riskSums struct {
	p  int
	s0 float64
	s1 []float64
	s2 []float64
}

func newRiskSums(p int) *riskSums {
	return &riskSums{
		p:  p,
		s1: make([]float64, p),
		s2: make([]float64, p*p),
	}
}

func (rs *riskSums) reset() {
	rs.s0 = 0
	zero(rs.s1)
	zero(rs.s2)
}

// add adds case i with weight w (which may be negative to remove the case).
func (rs *riskSums) add(ph *PHReg, i int, w float64) {
	rs.s0 += w
	p := rs.p
	for j1, k1 := range ph.xpos {
		x1 := float64(ph.data[k1][i])
		rs.s1[j1] += w * x1
		for j2 := 0; j2 <= j1; j2++ {
			u := w * x1 * float64(ph.data[ph.xpos[j2]][i])
			rs.s2[j1*p+j2] += u
			if j2 != j1 {
				rs.s2[j2*p+j1] += u
			}
		}
	}
}

// breslowHess calculates the Hessian matrix for the proportional
// hazards regression model at the given parameter values.
func (ph *PHReg) breslowHess(params []float64, hess []float64) {

	zero(hess)

	var wgt []statmodel.Dtype
	if ph.weightpos != -1 {
		wgt = ph.data[ph.weightpos]
	}

	lp := ph.getNslice()
	ph.linpred(params, lp)

	p := len(ph.xpos)
	rs := newRiskSums(p)

	for s, ix := range ph.stratumix {

		if ix[1] == ix[0] {
			continue
		}

		// We can add any constant here due to invariance in
		// the partial likelihood.
		mx := floats.Max(lp[ix[0]:ix[1]])
		for i := ix[0]; i < ix[1]; i++ {
			lp[i] = math.Exp(lp[i] - mx)
		}
		if wgt != nil {
			for i := ix[0]; i < ix[1]; i++ {
				lp[i] *= float64(wgt[i])
			}
		}

		rs.reset()

		for k := 0; k < len(ph.etimes[s]); k++ {

			// Update for new entries
			for _, i := range ph.enter[s][k] {
				rs.add(ph, i, lp[i])
			}

			d := float64(len(ph.event[s][k]))
			if wgt != nil {
				d = 0
				for _, i := range ph.event[s][k] {
					d += float64(wgt[i])
				}
			}

			jj := 0
			for j1 := 0; j1 < p; j1++ {
				for j2 := 0; j2 < p; j2++ {
					hess[jj] -= d * rs.s2[j1*p+j2] / rs.s0
					hess[jj] += d * rs.s1[j1] * rs.s1[j2] / (rs.s0 * rs.s0)
					jj++
				}
			}

			// Update for new exits
			for _, i := range ph.exit[s][k] {
				rs.add(ph, i, -lp[i])
			}
		}
	}

	ph.putNslice(lp)
}

// efronHess calculates the Hessian matrix using the Efron approach to
// resolving ties.
func (ph *PHReg) efronHess(params []float64, hess []float64) {

	zero(hess)

	lp := ph.getNslice()
	ph.linpred(params, lp)

	p := len(ph.xpos)
	rs := newRiskSums(p)
	es := newRiskSums(p)
	a := make([]float64, p)

	for s, ix := range ph.stratumix {

		if ix[1] == ix[0] {
			continue
		}

		mx := floats.Max(lp[ix[0]:ix[1]])
		for i := ix[0]; i < ix[1]; i++ {
			lp[i] = math.Exp(lp[i] - mx)
		}

		rs.reset()

		for k := range ph.etimes[s] {

			for _, i := range ph.enter[s][k] {
				rs.add(ph, i, lp[i])
			}

			es.reset()
			for _, i := range ph.event[s][k] {
				es.add(ph, i, lp[i])
			}

			d := float64(len(ph.event[s][k]))
			for l := range ph.event[s][k] {
				f := float64(l) / d
				den := rs.s0 - f*es.s0
				for j := range a {
					a[j] = rs.s1[j] - f*es.s1[j]
				}
				for j1 := 0; j1 < p; j1++ {
					for j2 := 0; j2 < p; j2++ {
						jj := j1*p + j2
						hess[jj] -= (rs.s2[jj] - f*es.s2[jj]) / den
						hess[jj] += a[j1] * a[j2] / (den * den)
					}
				}
			}

			for _, i := range ph.exit[s][k] {
				rs.add(ph, i, -lp[i])
			}
		}
	}

	ph.putNslice(lp)
}

func negative(x []float64) {
	for i := 0; i < len(x); i++ {
		x[i] *= -1
	}
}

// PHResults describes the results of a proportional hazards model..
type PHResults struct {
	statmodel.BaseResults

	// The penalized log-likelihood at the estimate
	penLogLike float64

	// The partial log-likelihood with all coefficients equal to zero
	nullLogLike float64

	// Effective degrees of freedom for each coefficient
	edf []float64
}

func (ph *PHReg) logger() *log.Logger {
	if ph.log != nil {
		return ph.log
	}
	return log.New(os.Stderr, "", 0)
}

// failMessage logs information that can help diagnose optimization failures.
func (ph *PHReg) failMessage(optrslt *optimize.Result) {

	lg := ph.logger()

	lg.Printf("Current point and gradient:")
	for j, x := range optrslt.X {
		na := ph.varnames[ph.xpos[j]]
		var g float64
		if j < len(optrslt.Gradient) {
			g = optrslt.Gradient[j]
		}
		lg.Printf("%16.8f %16.8f %s", x, g, na)
	}

	time := ph.data[ph.timepos]
	status := ph.data[ph.statuspos]

	lg.Printf("Stratum    Size       Events   Event_rate    Mean_time")
	for i, ix := range ph.stratumix {
		var e, em float64
		for k := ix[0]; k < ix[1]; k++ {
			e += float64(status[k])
			em += float64(time[k])
		}
		n := float64(ix[1] - ix[0])
		lg.Printf("%4d      %4.0f   %10.0f %12.3f %12.3f", i+1, n, e, e/n, em/n)
	}
}

// xnames returns the covariate names.
func (ph *PHReg) xnames() []string {
	var xna []string
	for _, k := range ph.xpos {
		xna = append(xna, ph.varnames[k])
	}
	return xna
}

// Fit fits the model to the data.  A fit that does not converge
// returns an error wrapping ErrNotConverged and no results.
func (ph *PHReg) Fit() (*PHResults, error) {

	nvar := len(ph.xpos)
	null := ph.partialLogLike(make([]float64, nvar))

	if nvar == 0 {
		return &PHResults{
			BaseResults: statmodel.NewBaseResults(ph, null, []float64{}, nil, []float64{}),
			penLogLike:  null,
			nullLogLike: null,
		}, nil
	}

	start := make([]float64, nvar)
	if ph.start != nil {
		copy(start, ph.start)
	}

	hs := make([]float64, nvar*nvar)
	p := optimize.Problem{
		Func: func(x []float64) float64 {
			return -ph.LogLike(&PHParameter{x}, false)
		},
		Grad: func(grad, x []float64) {
			ph.Score(&PHParameter{x}, grad)
			negative(grad)
		},
		Hess: func(hess *mat.SymDense, x []float64) {
			ph.Hessian(&PHParameter{x}, statmodel.ObsHess, hs)
			for j1 := 0; j1 < nvar; j1++ {
				for j2 := j1; j2 < nvar; j2++ {
					hess.SetSym(j1, j2, -hs[j1*nvar+j2])
				}
			}
		},
	}

	settings := ph.optsettings
	if settings == nil {
		settings = &optimize.Settings{
			GradientThreshold: 1e-6,
		}
	}

	optrslt, err := optimize.Minimize(p, start, settings, ph.optmethod)
	if err == nil && optrslt != nil {
		err = optrslt.Status.Err()
	}
	if optrslt == nil {
		return nil, fmt.Errorf("%w: %v", ErrNotConverged, err)
	}
	for _, x := range optrslt.X {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			ph.failMessage(optrslt)
			return nil, fmt.Errorf("%w: non-finite coefficient", ErrNotConverged)
		}
	}

	param := make([]float64, len(optrslt.X))
	copy(param, optrslt.X)
	penll := -optrslt.F

	if err != nil {
		// A line search stalls when the start is already within
		// rounding error of the optimum.
		step, ok := ph.newtonStep(param)
		if !ok {
			ph.failMessage(optrslt)
			return nil, fmt.Errorf("%w: %v", ErrNotConverged, err)
		}
		floats.Sub(param, step)
		penll = ph.LogLike(&PHParameter{param}, false)
		ph.logger().Printf("%v at a stationary point, Newton step %.3g", err, floats.Norm(step, math.Inf(1)))
	}

	vcov, err := statmodel.GetVcov(ph, &PHParameter{param})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotConverged, err)
	}

	ll := ph.partialLogLike(param)

	results := &PHResults{
		BaseResults: statmodel.NewBaseResults(ph, ll, param, ph.xnames(), vcov),
		penLogLike:  penll,
		nullLogLike: null,
		edf:         ph.effectiveDF(param, vcov),
	}

	return results, nil
}

// Largest coefficient change of a Newton step at which a fit whose
// line search failed is still accepted
const stepTol = 1e-5

// newtonStep returns H^-1 g at the given coefficients, where g and H are
// the gradient and Hessian of the penalized log-likelihood.  The second
// return value is false when the step is undefined or larger than
// stepTol in some coefficient.
func (ph *PHReg) newtonStep(coeff []float64) ([]float64, bool) {

	p := len(coeff)
	g := make([]float64, p)
	h := make([]float64, p*p)
	par := &PHParameter{coeff}
	ph.Score(par, g)
	ph.Hessian(par, statmodel.ObsHess, h)

	var d mat.VecDense
	if err := d.SolveVec(mat.NewDense(p, p, h), mat.NewVecDense(p, g)); err != nil {
		return nil, false
	}

	step := make([]float64, p)
	for j := range step {
		step[j] = d.AtVec(j)
		if math.IsNaN(step[j]) || math.Abs(step[j]) > stepTol {
			return nil, false
		}
	}
	return step, true
}

// effectiveDF returns the diagonal of V*I, where V is the (penalized)
// covariance matrix and I is the unpenalized information.  Without a
// penalty every element is 1.
func (ph *PHReg) effectiveDF(param, vcov []float64) []float64 {

	p := len(param)
	edf := make([]float64, p)

	if ph.penalty == nil && len(ph.l2wgt) == 0 {
		for j := range edf {
			edf[j] = 1
		}
		return edf
	}

	h := make([]float64, p*p)
	ph.partialHess(param, h)
	for j := 0; j < p; j++ {
		for k := 0; k < p; k++ {
			edf[j] -= vcov[j*p+k] * h[k*p+j]
		}
	}

	return edf
}

// NullLogLike returns the partial log-likelihood of the model with
// all coefficients equal to zero.
func (rslt *PHResults) NullLogLike() float64 {
	return rslt.nullLogLike
}

// PenalizedLogLike returns the penalized log-likelihood at the estimate.
func (rslt *PHResults) PenalizedLogLike() float64 {
	return rslt.penLogLike
}

// EDF returns the effective degrees of freedom of each coefficient.
func (rslt *PHResults) EDF() []float64 {
	return rslt.edf
}

// DF returns the total effective degrees of freedom of the model.
func (rslt *PHResults) DF() float64 {
	return floats.Sum(rslt.edf)
}

// AIC returns the Akaike information criterion of the fitted model,
// based on the unpenalized partial likelihood and the effective
// degrees of freedom.
func (rslt *PHResults) AIC() float64 {
	return -2*rslt.LogLike() + 2*rslt.DF()
}

// LRTest returns the likelihood ratio statistic, degrees of freedom
// and p-value comparing the fitted model to the null model.
func (rslt *PHResults) LRTest() (float64, float64, float64) {
	stat := 2 * (rslt.LogLike() - rslt.nullLogLike)
	df := rslt.DF()
	return stat, df, statmodel.ChiSquarePValue(stat, df)
}

// HazardRatios returns the hazard ratios exp(b) and their Wald
// confidence limits at the given coverage level.
func (rslt *PHResults) HazardRatios(level float64) ([]float64, []float64, []float64) {

	z := critval(level)
	par := rslt.Params()
	se := rslt.StdErr()

	hr := make([]float64, len(par))
	lcb := make([]float64, len(par))
	ucb := make([]float64, len(par))
	for j := range par {
		hr[j] = math.Exp(par[j])
		lcb[j] = math.Exp(par[j] - z*se[j])
		ucb[j] = math.Exp(par[j] + z*se[j])
	}

	return hr, lcb, ucb
}

func (rslt *PHResults) summaryStats() (int, int, int, int) {

	ph := rslt.Model().(*PHReg)
	data := ph.Dataset()

	status := data[ph.statuspos]

	var entry []statmodel.Dtype
	if ph.entrypos != -1 {
		entry = data[ph.entrypos]
	}

	var n, e, pe, ns int
	for _, ix := range ph.stratumix {
		n += ix[1] - ix[0]
		for i := ix[0]; i < ix[1]; i++ {
			e += int(status[i])
		}
		if entry != nil {
			for i := ix[0]; i < ix[1]; i++ {
				if entry[i] > 0 {
					pe++
				}
			}
		}
		ns++
	}

	return n, e, pe, ns
}

// PHSummary summarizes a fitted proportional hazards regression model.
type PHSummary struct {

	// The model
	ph *PHReg

	// The results structure
	results *PHResults

	// Coverage of the hazard ratio confidence intervals
	level float64

	// Messages that are appended to the table
	messages []string
}

// Summary displays a summary table of the model results.
func (rslt *PHResults) Summary() *PHSummary {

	ph := rslt.Model().(*PHReg)

	return &PHSummary{
		ph:      ph,
		results: rslt,
		level:   0.95,
	}
}

// Level sets the coverage of the hazard ratio confidence intervals.
func (phs *PHSummary) Level(level float64) *PHSummary {
	phs.level = level
	return phs
}

// Message appends a line of text below the table.
func (phs *PHSummary) Message(msg string) *PHSummary {
	phs.messages = append(phs.messages, msg)
	return phs
}

// String returns a string representation of a summary table for the model.
func (phs *PHSummary) String() string {

	n, e, pe, ns := phs.results.summaryStats()

	ph := phs.ph
	sum := &statmodel.SummaryTable{
		Msg: phs.messages,
	}

	sum.Title = "Proportional hazards regression analysis"

	sum.Top = append(sum.Top, fmt.Sprintf("  Sample size: %10d", n))
	sum.Top = append(sum.Top, fmt.Sprintf("  Strata:      %10d", ns))
	sum.Top = append(sum.Top, fmt.Sprintf("  Events:      %10d", e))
	sum.Top = append(sum.Top, fmt.Sprintf("  Ties:        %10s", ph.ties))
	sum.Top = append(sum.Top, fmt.Sprintf("  Log-like:    %10.2f", phs.results.LogLike()))
	sum.Top = append(sum.Top, fmt.Sprintf("  AIC:         %10.2f", phs.results.AIC()))

	hr, lcb, ucb := phs.results.HazardRatios(phs.level)

	sum.ColNames = []string{"Variable   ", "Coefficient", "SE", "HR", "LCB", "UCB", "Z-score", "P-value"}
	sum.ColFmt = []statmodel.Fmter{statmodel.FmtStrings, statmodel.FmtFloats, statmodel.FmtFloats,
		statmodel.FmtFloats, statmodel.FmtFloats, statmodel.FmtFloats, statmodel.FmtFloats, statmodel.FmtFloats}
	sum.Cols = []interface{}{phs.results.Names(), phs.results.Params(), phs.results.StdErr(), hr, lcb, ucb,
		phs.results.ZScores(), phs.results.PValues()}

	if pe > 0 {
		msg := fmt.Sprintf("%d observations have positive entry times", pe)
		sum.Msg = append(sum.Msg, msg)
	}

	if ph.skipEarlyCensor > 0 {
		msg := fmt.Sprintf("%d observations dropped for being censored before the first event", ph.skipEarlyCensor)
		sum.Msg = append(sum.Msg, msg)
	}

	if ph.penalty != nil {
		msg := fmt.Sprintf("Penalized fit, effective df %.2f", phs.results.DF())
		sum.Msg = append(sum.Msg, msg)
	}

	return sum.String()
}
