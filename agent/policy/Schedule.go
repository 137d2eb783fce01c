package policy

import (
	"fmt"
	"math"
)

// LinearEpsilon anneals epsilon linearly from Start to End over
// EndStep steps, starting once LearnStart steps have passed. Before
// LearnStart epsilon stays at Start.
type LinearEpsilon struct {
	Start      float64
	End        float64
	EndStep    int
	LearnStart int
}

// Validate checks a LinearEpsilon for errors
func (l LinearEpsilon) Validate() error {
	if l.Start < 0 || l.Start > 1 || l.End < 0 || l.End > 1 {
		return fmt.Errorf("validate: epsilon must be in [0, 1], have start "+
			"%v and end %v", l.Start, l.End)
	}
	if l.End > l.Start {
		return fmt.Errorf("validate: final epsilon %v exceeds initial "+
			"epsilon %v", l.End, l.Start)
	}
	if l.EndStep < 1 {
		return fmt.Errorf("validate: epsilon decay steps must be positive, "+
			"have %v", l.EndStep)
	}
	return nil
}

// At returns epsilon at the given global step
func (l LinearEpsilon) At(step int) float64 {
	progress := math.Max(0, float64(step-l.LearnStart))
	remaining := (l.Start - l.End) * (float64(l.EndStep) - progress) /
		float64(l.EndStep)
	return l.End + math.Max(0, remaining)
}

// StaircaseDecay decays a learning rate by Decay every DecayStep steps,
// never going below Min
type StaircaseDecay struct {
	Initial   float64
	Min       float64
	Decay     float64
	DecayStep int
}

// Validate checks a StaircaseDecay for errors
func (s StaircaseDecay) Validate() error {
	if s.Initial <= 0 || s.Min <= 0 {
		return fmt.Errorf("validate: learning rates must be positive, have "+
			"initial %v and minimum %v", s.Initial, s.Min)
	}
	if s.Decay <= 0 || s.Decay > 1 {
		return fmt.Errorf("validate: decay must be in (0, 1], have %v",
			s.Decay)
	}
	if s.DecayStep < 1 {
		return fmt.Errorf("validate: decay step must be positive, have %v",
			s.DecayStep)
	}
	return nil
}

// At returns the learning rate at the given global step
func (s StaircaseDecay) At(step int) float64 {
	if step < 0 {
		step = 0
	}
	decayed := s.Initial * math.Pow(s.Decay, float64(step/s.DecayStep))
	return math.Max(s.Min, decayed)
}
