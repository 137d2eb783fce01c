package deepq

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/samuelfneumann/pongdqn/agent/policy"
	"github.com/samuelfneumann/pongdqn/expreplay"
	"github.com/samuelfneumann/pongdqn/network"
	"github.com/samuelfneumann/pongdqn/solver"
)

// scale is the step unit of the default configuration. All step counts
// of DefaultConfig are multiples of it.
const scale = 10000

// Config implements a configuration for a deep Q agent
type Config struct {
	Network network.Config
	Solver  *solver.Solver // Solver for learning weights

	Discount   float64
	HuberDelta float64
	DoubleQ    bool

	// Polyak averaging constant of target syncs. 1 copies the online
	// weights verbatim.
	Tau float64

	// Experience replay parameters. The history length is the number of
	// stacked frames forming a state and the sample size is the batch
	// size of a training step.
	ExpReplay expreplay.Config

	ScreenWidth  int
	ScreenHeight int

	LearnStart         int // Steps before any training
	TrainFrequency     int // Steps between training steps
	TargetSyncInterval int // Steps between target syncs
	TestStep           int // Length of a statistics window

	Epsilon      policy.LinearEpsilon
	TestEpsilon  float64 // Epsilon used in evaluation mode
	LearningRate policy.StaircaseDecay

	MinReward float64
	MaxReward float64

	// Window summaries are only emitted after this step
	TelemetryStart int
}

// DefaultConfig returns the configuration of the standard Atari DQN
// agent, with a replay memory of 100 000 frames
func DefaultConfig(dueling, doubleQ bool) Config {
	const (
		learnStart   = 5 * scale
		memorySize   = 10 * scale
		learningRate = 0.00025
	)

	rmsProp, err := solver.NewDefaultRMSProp(learningRate, 1)
	if err != nil {
		panic(fmt.Sprintf("defaultConfig: %v", err))
	}

	return Config{
		Network:    network.NatureConfig(dueling),
		Solver:     rmsProp,
		Discount:   0.99,
		HuberDelta: 1.0,
		DoubleQ:    doubleQ,
		Tau:        1.0,

		ExpReplay: expreplay.Config{
			MaxReplayCapacity: memorySize,
			SampleSize:        32,
			HistoryLength:     4,
		},

		ScreenWidth:  84,
		ScreenHeight: 84,

		LearnStart:         learnStart,
		TrainFrequency:     1,
		TargetSyncInterval: 1 * scale,
		TestStep:           5 * scale,

		Epsilon: policy.LinearEpsilon{
			Start:      1.0,
			End:        0.1,
			EndStep:    memorySize,
			LearnStart: learnStart,
		},
		TestEpsilon: 0.01,
		LearningRate: policy.StaircaseDecay{
			Initial:   learningRate,
			Min:       learningRate,
			Decay:     0.96,
			DecayStep: 5 * scale,
		},

		MinReward: -1.0,
		MaxReward: 1.0,

		TelemetryStart: 180,
	}
}

// BatchSize returns the batch size of training steps
func (c Config) BatchSize() int {
	return c.ExpReplay.SampleSize
}

// HistoryLength returns the number of frames in a state
func (c Config) HistoryLength() int {
	return c.ExpReplay.HistoryLength
}

// Validate checks a Config to ensure it is a valid configuration of a
// deep Q agent.
func (c Config) Validate() error {
	if err := c.Network.Validate(); err != nil {
		return errors.Wrap(err, "validate: network")
	}
	if c.Solver == nil || c.Solver.Solver == nil {
		return fmt.Errorf("validate: a solver is required")
	}
	if err := c.ExpReplay.Validate(); err != nil {
		return errors.Wrap(err, "validate: experience replay")
	}
	if c.ScreenWidth < 1 || c.ScreenHeight < 1 {
		return fmt.Errorf("validate: screen must have positive size, have "+
			"%v x %v", c.ScreenWidth, c.ScreenHeight)
	}

	if c.Discount < 0 || c.Discount > 1 {
		return fmt.Errorf("validate: discount must be in [0, 1], have %v",
			c.Discount)
	}
	if c.HuberDelta <= 0 {
		return fmt.Errorf("validate: huber delta must be positive, have %v",
			c.HuberDelta)
	}
	if c.Tau <= 0 || c.Tau > 1 {
		return fmt.Errorf("validate: tau must be in (0, 1], have %v", c.Tau)
	}

	if c.LearnStart < 0 {
		return fmt.Errorf("validate: learn start must be non-negative, "+
			"have %v", c.LearnStart)
	}
	if c.TrainFrequency < 1 {
		return fmt.Errorf("validate: train frequency must be positive, "+
			"have %v", c.TrainFrequency)
	}
	if c.TargetSyncInterval < 1 {
		return fmt.Errorf("validate: target networks must be synced at "+
			"positive step intervals \n\twant(>0) \n\thave(%v)",
			c.TargetSyncInterval)
	}
	if c.TestStep < 1 {
		return fmt.Errorf("validate: test step must be positive, have %v",
			c.TestStep)
	}

	if err := c.Epsilon.Validate(); err != nil {
		return errors.Wrap(err, "validate: epsilon")
	}
	if c.Epsilon.LearnStart != c.LearnStart {
		return fmt.Errorf("validate: epsilon schedule starts at step %v "+
			"but learning starts at step %v", c.Epsilon.LearnStart,
			c.LearnStart)
	}
	if c.TestEpsilon < 0 || c.TestEpsilon > 1 {
		return fmt.Errorf("validate: test epsilon must be in [0, 1], have %v",
			c.TestEpsilon)
	}
	if err := c.LearningRate.Validate(); err != nil {
		return errors.Wrap(err, "validate: learning rate")
	}

	if c.MinReward > c.MaxReward {
		return fmt.Errorf("validate: minimum reward %v exceeds maximum "+
			"reward %v", c.MinReward, c.MaxReward)
	}
	return nil
}
