package duration

import (
	"fmt"
	"math"
)

// AICFitter fits a model containing the named terms and returns its AIC.
type AICFitter func(terms []string) (float64, error)

// StepCandidate is the AIC of the model obtained by removing (or
// adding) one term.
type StepCandidate struct {
	Term string
	AIC  float64
}

// Step records one round of backward elimination.
type Step struct {

	// Terms in the model at the start of the step, and its AIC
	Terms []string
	AIC   float64

	// AIC with each term removed, in the order of Terms
	Candidates []StepCandidate

	// The removed term, empty if no removal lowered the AIC
	Removed string
}

// Stepwise performs backward elimination of model terms by AIC.
type Stepwise struct {
	terms []string
	fit   AICFitter

	// Terms that are never removed
	keep map[string]bool

	final   []string
	aic     float64
	dropped []string
	trace   []Step

	err error
}

// NewStepwise returns a Stepwise that starts from the model containing
// all the given terms.  Call Done to run the selection.
func NewStepwise(terms []string, fit AICFitter) *Stepwise {
	return &Stepwise{
		terms: terms,
		fit:   fit,
		keep:  make(map[string]bool),
	}
}

// Keep marks terms that are always retained.
func (sw *Stepwise) Keep(terms ...string) *Stepwise {
	for _, t := range terms {
		sw.keep[t] = true
	}
	return sw
}

// Done runs backward elimination: at each step the term whose removal
// gives the lowest AIC is removed, provided that this AIC is lower
// than the AIC of the current model.  Ties go to the earlier term.
func (sw *Stepwise) Done() *Stepwise {

	current := append([]string(nil), sw.terms...)
	aic, err := sw.fit(current)
	if err != nil {
		sw.err = fmt.Errorf("fitting %v: %w", current, err)
		return sw
	}

	for {
		step := Step{
			Terms: append([]string(nil), current...),
			AIC:   aic,
		}

		best := -1
		bestAIC := math.Inf(1)
		for j, t := range current {
			if sw.keep[t] {
				continue
			}
			reduced := remove(current, j)
			a, err := sw.fit(reduced)
			if err != nil {
				sw.err = fmt.Errorf("fitting %v: %w", reduced, err)
				return sw
			}
			step.Candidates = append(step.Candidates, StepCandidate{Term: t, AIC: a})
			if a < bestAIC {
				best = j
				bestAIC = a
			}
		}

		if best == -1 || bestAIC >= aic {
			sw.trace = append(sw.trace, step)
			break
		}

		step.Removed = current[best]
		sw.trace = append(sw.trace, step)
		sw.dropped = append(sw.dropped, current[best])
		current = remove(current, best)
		aic = bestAIC
	}

	sw.final = current
	sw.aic = aic

	return sw
}

func remove(x []string, j int) []string {
	y := make([]string, 0, len(x)-1)
	y = append(y, x[0:j]...)
	return append(y, x[j+1:]...)
}

// Err returns any error encountered while fitting the models.
func (sw *Stepwise) Err() error {
	return sw.err
}

// Terms returns the terms of the selected model.
func (sw *Stepwise) Terms() []string {
	return sw.final
}

// AIC returns the AIC of the selected model.
func (sw *Stepwise) AIC() float64 {
	return sw.aic
}

// Dropped returns the removed terms in order of removal.
func (sw *Stepwise) Dropped() []string {
	return sw.dropped
}

// Trace returns the record of each elimination step.
func (sw *Stepwise) Trace() []Step {
	return sw.trace
}

// AddBack refits the selected model with each dropped term added back,
// and returns the resulting AICs in the order of Dropped.
func (sw *Stepwise) AddBack() ([]StepCandidate, error) {

	if sw.err != nil {
		return nil, sw.err
	}

	var cand []StepCandidate
	for _, t := range sw.dropped {
		terms := append(append([]string(nil), sw.final...), t)
		a, err := sw.fit(terms)
		if err != nil {
			return nil, fmt.Errorf("fitting %v: %w", terms, err)
		}
		cand = append(cand, StepCandidate{Term: t, AIC: a})
	}

	return cand, nil
}
