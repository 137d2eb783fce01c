package experiment

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/samuelfneumann/pongdqn/agent/deepq"
	"github.com/samuelfneumann/pongdqn/agent/policy"
	"github.com/samuelfneumann/pongdqn/environment/pong"
	"github.com/samuelfneumann/pongdqn/expreplay"
	"github.com/samuelfneumann/pongdqn/network"
	"github.com/samuelfneumann/pongdqn/solver"
)

// Model presets
const (
	// M1 is the standard Atari DQN agent
	M1 = "m1"

	// Small is a fully connected agent over 42 x 42 frames which learns
	// after a few thousand steps, for quick runs
	Small = "small"
)

// Preset returns the agent configuration of a named model
func Preset(model string, dueling, doubleQ bool) (deepq.Config, error) {
	switch model {
	case M1:
		return deepq.DefaultConfig(dueling, doubleQ), nil

	case Small:
		c := deepq.DefaultConfig(dueling, doubleQ)
		rmsProp, err := solver.NewDefaultRMSProp(0.001, 1)
		if err != nil {
			return deepq.Config{}, errors.Wrap(err, "preset")
		}
		c.Solver = rmsProp
		c.Network = network.Config{
			Hidden:     []int{128, 64},
			Activation: network.ReLU(),
			Dueling:    dueling,
			Init:       c.Network.Init,
			BiasInit:   c.Network.BiasInit,
		}
		c.ScreenWidth, c.ScreenHeight = 42, 42
		c.ExpReplay = expreplay.Config{
			MaxReplayCapacity: 20000,
			SampleSize:        32,
			HistoryLength:     4,
		}
		c.LearnStart = 2000
		c.TargetSyncInterval = 1000
		c.TestStep = 5000
		c.Epsilon = policy.LinearEpsilon{
			Start:      1.0,
			End:        0.1,
			EndStep:    20000,
			LearnStart: c.LearnStart,
		}
		c.LearningRate = policy.StaircaseDecay{
			Initial:   0.001,
			Min:       0.00025,
			Decay:     0.96,
			DecayStep: 5000,
		}
		return c, nil

	default:
		return deepq.Config{}, fmt.Errorf("preset: no such model %q", model)
	}
}

// Config describes a training or evaluation run
type Config struct {
	Model string
	Agent deepq.Config

	// EnvName is PongTwoPlayer or "gym:" followed by the name of a Gym
	// environment
	EnvName      string
	Pong         pong.Config
	ActionRepeat int // Frames each action is repeated for
	RandomStart  int // Maximum number of no-op frames after a reset

	MaxStep int
	Seed    uint64

	CheckpointDir   string
	KeepCheckpoints int
	CheckpointEvery int // Unconditional checkpoints, 0 disables them

	TelemetryDB   string // SQLite database of window summaries, "" disables
	SummariesFile string // Gob file of window summaries, "" disables
	ReturnsFile   string // Gob file of episode returns, "" disables
	LengthsFile   string // Gob file of episode lengths, "" disables

	Display     bool // Whether to render screens to RenderDir
	RenderDir   string
	RenderEvery int

	UseGPU      bool
	GPUFraction string

	IsTrain      bool
	PlayEpisodes int  // Episodes played when not training
	RealTime     bool // Pace evaluation play at 60 frames per second
}

// DefaultConfig returns the configuration of a training run of the
// standard agent on two-player Pong
func DefaultConfig() Config {
	agentConfig, err := Preset(M1, false, false)
	if err != nil {
		panic(fmt.Sprintf("defaultConfig: %v", err))
	}

	return Config{
		Model:        M1,
		Agent:        agentConfig,
		EnvName:      PongTwoPlayer,
		Pong:         pong.DefaultConfig(),
		ActionRepeat: 1,

		MaxStep: 5000 * 10000,
		Seed:    123,

		CheckpointDir:   "checkpoints",
		KeepCheckpoints: 30,

		TelemetryDB: "telemetry.db",

		RenderDir:   "render",
		RenderEvery: 1,

		GPUFraction: "5/6",

		IsTrain:      true,
		PlayEpisodes: 1,
	}
}

// Validate checks a Config for errors
func (c Config) Validate() error {
	if err := c.Agent.Validate(); err != nil {
		return errors.Wrap(err, "validate: invalid agent")
	}
	if c.EnvName == PongTwoPlayer {
		if err := c.Pong.Validate(); err != nil {
			return errors.Wrap(err, "validate: invalid pong")
		}
	}
	if c.ActionRepeat < 1 {
		return fmt.Errorf("validate: action repeat must be positive, have %v",
			c.ActionRepeat)
	}
	if c.RandomStart < 0 {
		return fmt.Errorf("validate: random start must be non-negative, "+
			"have %v", c.RandomStart)
	}
	if c.MaxStep < 0 {
		return fmt.Errorf("validate: max step must be non-negative, have %v",
			c.MaxStep)
	}
	if c.CheckpointDir == "" {
		return fmt.Errorf("validate: a checkpoint directory is required")
	}
	if c.CheckpointEvery < 0 {
		return fmt.Errorf("validate: checkpoint interval must be "+
			"non-negative, have %v", c.CheckpointEvery)
	}
	if c.Display && (c.RenderDir == "" || c.RenderEvery < 1) {
		return fmt.Errorf("validate: display needs a render directory and a "+
			"positive render interval")
	}
	if !c.IsTrain && c.PlayEpisodes < 1 {
		return fmt.Errorf("validate: must play at least one episode, have %v",
			c.PlayEpisodes)
	}
	return nil
}

// Load reads a JSON configuration from a file. Fields missing from the
// file keep their values in DefaultConfig.
func Load(filename string) (Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return Config{}, errors.Wrap(err, "load")
	}

	c := DefaultConfig()
	if err := json.Unmarshal(data, &c); err != nil {
		return Config{}, errors.Wrapf(err, "load: could not decode %v",
			filename)
	}
	return c, nil
}

// Save writes the configuration to a file as JSON
func (c Config) Save(filename string) error {
	data, err := json.MarshalIndent(c, "", "\t")
	if err != nil {
		return errors.Wrap(err, "save: could not encode config")
	}
	return errors.Wrap(os.WriteFile(filename, data, 0o644), "save")
}
