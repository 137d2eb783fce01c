// Package environment outlines the frame sources the agent plays
// against and the adapters between single and two-player sources.
package environment

import (
	"fmt"

	"golang.org/x/exp/rand"
)

// Actions of player A
const (
	Noop  = 0
	Fire  = 1
	Right = 3
	Left  = 4
)

// Actions of player B
const (
	PlayerBUp      = 20
	PlayerBRight   = 21
	PlayerBDown    = 23
	PlayerBUpRight = 24
)

var (
	// PlayerAActions are the legal actions of the learning player. The
	// agent selects indices into this set.
	PlayerAActions = []int{Noop, Fire, Right, Left}

	// PlayerBActions are the legal actions of the opponent
	PlayerBActions = []int{PlayerBUp, PlayerBRight, PlayerBDown,
		PlayerBUpRight}
)

// FrameSource produces palette-indexed screens, rewards, and terminal
// signals, and accepts discrete actions of a single player
type FrameSource interface {
	// Reset starts a fresh episode
	Reset() error

	// Act executes a single frame with the given action
	Act(action int) (terminal bool, reward float64, err error)

	IsTerminal() bool
	ScreenDimensions() (width, height int)

	// FillObservation writes the current palette-indexed screen into
	// obs, which must hold width*height values, row-major
	FillObservation(obs []uint8) error
}

// DualFrameSource is a frame source for two players. Rewards are those
// of player A.
type DualFrameSource interface {
	Reset() error
	Act2(a, b int) (terminal bool, reward float64, err error)
	IsTerminal() bool
	ScreenDimensions() (width, height int)
	FillObservation(obs []uint8) error
}

// Closer is a frame source holding resources which must be released
type Closer interface {
	Close() error
}

// Scorer is a frame source which keeps a score for both players
type Scorer interface {
	Score() (a, b int)
}

// Opponent selects the actions of player B
type Opponent interface {
	Action() int
}

// uniformOpponent selects actions uniformly at random
type uniformOpponent struct {
	actions []int
	rng     *rand.Rand
}

// NewUniformOpponent returns an Opponent drawing its actions uniformly
// at random from actions
func NewUniformOpponent(actions []int, seed uint64) (Opponent, error) {
	if len(actions) == 0 {
		return nil, fmt.Errorf("newUniformOpponent: no actions to select")
	}
	return &uniformOpponent{
		actions: append([]int(nil), actions...),
		rng:     rand.New(rand.NewSource(seed)),
	}, nil
}

// Action implements the Opponent interface
func (u *uniformOpponent) Action() int {
	return u.actions[u.rng.Intn(len(u.actions))]
}

// TwoPlayer adapts a DualFrameSource into a FrameSource for player A,
// with player B controlled by an Opponent
type TwoPlayer struct {
	DualFrameSource
	opponent Opponent
}

// NewTwoPlayer returns a new TwoPlayer frame source
func NewTwoPlayer(source DualFrameSource, opponent Opponent) *TwoPlayer {
	return &TwoPlayer{DualFrameSource: source, opponent: opponent}
}

// Act implements the FrameSource interface
func (t *TwoPlayer) Act(action int) (bool, float64, error) {
	return t.DualFrameSource.Act2(action, t.opponent.Action())
}

// Score returns the score of the underlying frame source, or zeros if
// it does not keep one
func (t *TwoPlayer) Score() (int, int) {
	if s, ok := t.DualFrameSource.(Scorer); ok {
		return s.Score()
	}
	return 0, 0
}

// Close closes the underlying frame source if needed
func (t *TwoPlayer) Close() error {
	if c, ok := t.DualFrameSource.(Closer); ok {
		return c.Close()
	}
	return nil
}
