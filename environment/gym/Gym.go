//go:build gym

// Package gym provides Atari games from OpenAI's Gym as frame sources.
//
// This is made possible through the Go bindings for OpenAI Gym,
// found at https://github.com/samuelfneumann/GoGym. Since the bindings
// embed a Python interpreter, the package is only built with the gym
// build tag.
package gym

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/samuelfneumann/gogym"
	"github.com/samuelfneumann/pongdqn/environment"
	"github.com/samuelfneumann/pongdqn/preprocess"
	"gonum.org/v1/gonum/mat"
)

// Dimensions of Atari screens
const (
	ScreenWidth  = 160
	ScreenHeight = 210
)

// actionIndices maps the actions of player A onto the indices of the
// minimal action set of Gym's Pong
var actionIndices = map[int]int{
	environment.Noop:  0,
	environment.Fire:  1,
	environment.Right: 2,
	environment.Left:  3,
}

// Source implements an environment.FrameSource on a Gym environment
// producing RGB screens. Screens are converted back to palette indices
// so that they follow the same path through the preprocessor as those
// of any other frame source.
type Source struct {
	gogym.Environment

	obs      *mat.VecDense
	terminal bool
	action   *mat.VecDense
}

// New returns a new Source with the given name, which must be a legal
// name of an Atari game from the OpenAI Gym suite with RGB
// observations, e.g. "Pong-v0".
func New(name string, seed uint64) (*Source, error) {
	goGymEnv, err := gogym.Make(name)
	if err != nil {
		return nil, errors.Wrap(err, "new: could not create environment")
	}
	goGymEnv.Seed(int(seed))

	s := &Source{
		Environment: goGymEnv,
		action:      mat.NewVecDense(1, nil),
	}
	if err := s.Reset(); err != nil {
		goGymEnv.Close()
		return nil, errors.Wrap(err, "new")
	}
	return s, nil
}

// Reset implements the environment.FrameSource interface
func (s *Source) Reset() error {
	obs, err := s.Environment.Reset()
	if err != nil {
		return errors.Wrap(err, "reset: could not reset environment")
	}
	if obs.Len() != ScreenWidth*ScreenHeight*3 {
		return fmt.Errorf("reset: expected an RGB screen of %v values, "+
			"have %v", ScreenWidth*ScreenHeight*3, obs.Len())
	}
	s.obs = obs
	s.terminal = false
	return nil
}

// Act implements the environment.FrameSource interface
func (s *Source) Act(action int) (bool, float64, error) {
	index, ok := actionIndices[action]
	if !ok {
		return s.terminal, 0, fmt.Errorf("act: illegal action %v", action)
	}
	s.action.SetVec(0, float64(index))

	obs, reward, done, err := s.Environment.Step(s.action)
	if err != nil {
		return true, 0, errors.Wrap(err, "act: could not step environment")
	}
	s.obs = obs
	s.terminal = done
	return done, reward, nil
}

// IsTerminal implements the environment.FrameSource interface
func (s *Source) IsTerminal() bool {
	return s.terminal
}

// ScreenDimensions implements the environment.FrameSource interface
func (s *Source) ScreenDimensions() (int, int) {
	return ScreenWidth, ScreenHeight
}

// FillObservation implements the environment.FrameSource interface.
// Each RGB pixel is mapped to the closest palette colour.
func (s *Source) FillObservation(obs []uint8) error {
	if len(obs) != ScreenWidth*ScreenHeight {
		return fmt.Errorf("fillObservation: observation must hold %v "+
			"values, have %v", ScreenWidth*ScreenHeight, len(obs))
	}

	raw := s.obs.RawVector().Data
	cache := make(map[[3]uint8]uint8)
	for i := range obs {
		rgb := [3]uint8{uint8(raw[i*3]), uint8(raw[i*3+1]), uint8(raw[i*3+2])}
		index, ok := cache[rgb]
		if !ok {
			index = preprocess.Index(rgb[0], rgb[1], rgb[2])
			cache[rgb] = index
		}
		obs[i] = index
	}
	return nil
}

// Close performs resource cleanup after the environment is no longer
// needed
func (s *Source) Close() error {
	s.Environment.Close()
	return nil
}
