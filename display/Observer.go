// Package display implements the optional views of a run: rendered
// screens saved as PNG images, and a console summary of each window of
// training steps.
package display

import (
	"image"

	ts "github.com/samuelfneumann/pongdqn/timestep"
)

// Observation is what the run loop shows its observers after a step
type Observation struct {
	Step ts.TimeStep

	// Screen is the latest raw RGB screen. It is only valid for the
	// duration of the call to Observe.
	Screen *image.RGBA

	ScoreA, ScoreB int
}

// Observer is notified after each step of the run loop
type Observer interface {
	Observe(o Observation) error
}
