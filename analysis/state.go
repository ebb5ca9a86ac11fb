package analysis

import (
	"errors"
	"fmt"
)

// State is the stage reached by the regression workflow.
type State int

// The states of the regression workflow.  Exactly one of LinearAccepted
// and NonlinearAccepted follows AssumptionChecked.
const (
	Unfitted State = iota
	UnivariateFitted
	AssumptionChecked
	LinearAccepted
	NonlinearAccepted
	MultivariateFitted
	StepwiseReduced
)

var stateNames = [...]string{"unfitted", "univariate-fitted", "assumption-checked",
	"linear-accepted", "nonlinear-accepted", "multivariate-fitted", "stepwise-reduced"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// ErrTransition is returned when a workflow step is run out of order.
var ErrTransition = errors.New("invalid workflow transition")

var transitions = map[State][]State{
	Unfitted:           {UnivariateFitted},
	UnivariateFitted:   {AssumptionChecked},
	AssumptionChecked:  {LinearAccepted, NonlinearAccepted},
	LinearAccepted:     {MultivariateFitted},
	NonlinearAccepted:  {MultivariateFitted},
	MultivariateFitted: {StepwiseReduced},
}

// CanTransition reports whether the workflow may move from s to next.
func (s State) CanTransition(next State) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return len(transitions[s]) == 0
}

func (a *Analysis) advance(next State) error {
	if !a.state.CanTransition(next) {
		return fmt.Errorf("%w: %s to %s", ErrTransition, a.state, next)
	}
	a.log.Info("workflow", "from", a.state.String(), "to", next.String())
	a.state = next
	return nil
}
