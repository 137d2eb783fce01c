// Package timestep implements timesteps of the agent-environment interaction
package timestep

import (
	"fmt"
)

// StepType denotes the type of step that a TimeStep can be, either  first
// environmental step, a middle step, or a last step
type StepType int

const (
	First StepType = iota
	Mid
	Last
)

func (s StepType) String() string {
	switch s {
	case First:
		return "First"
	case Last:
		return "Last"
	default:
		return "Mid"
	}
}

// TimeStep packages together a single step of play. Number is the
// global step counter of the run and Episode counts games since the
// start of the run.
type TimeStep struct {
	StepType StepType
	Reward   float64
	Action   int
	Number   int
	Episode  int
}

// New returns a new TimeStep
func New(t StepType, r float64, action, n, episode int) TimeStep {
	return TimeStep{t, r, action, n, episode}
}

// First returns whether a TimeStep is the first in an episode
func (t *TimeStep) First() bool {
	return t.StepType == First
}

// Mid returns whether a TimeStep is a middle step in an episode
func (t *TimeStep) Mid() bool {
	return t.StepType == Mid
}

// Last returns whether a TimeStep is the last step in an episode
func (t *TimeStep) Last() bool {
	return t.StepType == Last
}

func (t TimeStep) String() string {
	str := "TimeStep | Type: %v  |  Reward:  %.2f  |  Action: %v  |  " +
		"Step Number:  %v  |  Episode: %v"

	return fmt.Sprintf(str, t.StepType, t.Reward, t.Action, t.Number,
		t.Episode)
}
