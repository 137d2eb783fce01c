// Package agent defines the agent interface driven by the run loop and
// the bookkeeping state shared by agents.
package agent

import (
	"context"
	"fmt"

	ts "github.com/samuelfneumann/pongdqn/timestep"
)

// Agent learns from a stream of preprocessed frames.
//
// Each environment step is driven in three calls:
//
//	action, err := agent.Predict()           // read the frame history
//	terminal, reward, err := source.Act(action)
//	err = agent.Observe(frame, reward, action, terminal)
//	err = agent.EndStep(ctx, reward, action, terminal, resetFrame)
//
// Observe records the transition and learns from it, EndStep performs
// episode and window accounting and advances the global step. On a
// terminal step resetFrame is the first frame of the next episode.
type Agent interface {
	// Predict selects an action for the current frame history
	Predict() (int, error)

	// Observe records that taking action produced frame and reward
	Observe(frame ts.Frame, reward float64, action int, terminal bool) error

	// EndStep closes the current global step
	EndStep(ctx context.Context, reward float64, action int, terminal bool,
		resetFrame ts.Frame) error

	// Seed fills the frame history with a repeated frame, used at the
	// start of a run
	Seed(ts.Frame)

	State() State

	Eval()        // Set agent to evaluation mode
	Train()       // Set agent to training mode
	IsEval() bool // Indicates if in evaluation mode
}

// A Closer is an agent that must be closed after it is done learning
type Closer interface {
	Agent
	Close() error
}

// Phase is the stage of a training run, determined by the global step
type Phase int

const (
	// Warmup steps collect experience without learning
	Warmup Phase = iota

	// Training steps learn and periodically synchronise the target
	Training

	// EvaluationWindow is a Training step that closes a statistics
	// window
	EvaluationWindow
)

// String implements the fmt.Stringer interface
func (p Phase) String() string {
	switch p {
	case Warmup:
		return "Warmup"
	case Training:
		return "Training"
	case EvaluationWindow:
		return "EvaluationWindow"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// PhaseOf returns the phase of a global step
func PhaseOf(step, learnStart, testStep int) Phase {
	switch {
	case step < learnStart:
		return Warmup
	case WindowEnds(step, learnStart, testStep):
		return EvaluationWindow
	default:
		return Training
	}
}

// WindowEnds returns whether step is the last step of a statistics
// window. Windows are aligned to multiples of testStep and only close
// once learnStart steps have passed.
func WindowEnds(step, learnStart, testStep int) bool {
	return step >= learnStart && step%testStep == testStep-1
}
