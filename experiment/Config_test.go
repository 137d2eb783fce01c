package experiment

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/samuelfneumann/pongdqn/agent/policy"
	"github.com/samuelfneumann/pongdqn/experiment/tracker"
	"github.com/samuelfneumann/pongdqn/expreplay"
	"github.com/samuelfneumann/pongdqn/network"
	"github.com/samuelfneumann/pongdqn/solver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresets(t *testing.T) {
	for _, model := range []string{M1, Small} {
		for _, dueling := range []bool{false, true} {
			c, err := Preset(model, dueling, true)
			require.NoError(t, err, model)
			require.NoError(t, c.Validate(), model)
			assert.Equal(t, dueling, c.Network.Dueling)
			assert.True(t, c.DoubleQ)
		}
	}

	_, err := Preset("m9", false, false)
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	for name, modify := range map[string]func(*Config){
		"action repeat": func(c *Config) { c.ActionRepeat = 0 },
		"random start":  func(c *Config) { c.RandomStart = -1 },
		"max step":      func(c *Config) { c.MaxStep = -1 },
		"checkpoints":   func(c *Config) { c.CheckpointDir = "" },
		"interval":      func(c *Config) { c.CheckpointEvery = -1 },
		"display":       func(c *Config) { c.Display, c.RenderEvery = true, 0 },
		"play":          func(c *Config) { c.IsTrain, c.PlayEpisodes = false, 0 },
		"pong":          func(c *Config) { c.Pong.PointsToWin = 0 },
		"agent":         func(c *Config) { c.Agent.TestStep = 0 },
	} {
		c := DefaultConfig()
		modify(&c)
		assert.Error(t, c.Validate(), name)
	}
}

func TestConfigSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	filename := filepath.Join(dir, "config.json")

	c := DefaultConfig()
	c.MaxStep = 1234
	c.Agent.DoubleQ = true
	c.Agent.Network.Activation = network.TanH()
	s, err := solver.NewAdam(0.001, 1e-8, 0.9, 0.999, 1, 0)
	require.NoError(t, err)
	c.Agent.Solver = s
	require.NoError(t, c.Save(filename))

	loaded, err := Load(filename)
	require.NoError(t, err)
	require.NoError(t, loaded.Validate())
	assert.Equal(t, 1234, loaded.MaxStep)
	assert.True(t, loaded.Agent.DoubleQ)
	assert.Equal(t, "tanh", loaded.Agent.Network.Activation.String())
	assert.Equal(t, solver.Adam, loaded.Agent.Solver.Type)
	assert.Equal(t, 0.001, loaded.Agent.Solver.Config.LearningRate())
	assert.Equal(t, c.Agent.Network.Conv, loaded.Agent.Network.Conv)
	assert.Equal(t, c.Pong, loaded.Pong)

	// Missing fields keep their defaults
	partial := filepath.Join(dir, "partial.json")
	require.NoError(t, os.WriteFile(partial,
		[]byte(`{"MaxStep": 10, "ActionRepeat": 4}`), 0o644))
	loaded, err = Load(partial)
	require.NoError(t, err)
	assert.Equal(t, 10, loaded.MaxStep)
	assert.Equal(t, 4, loaded.ActionRepeat)
	assert.Equal(t, DefaultConfig().Agent.LearnStart, loaded.Agent.LearnStart)

	require.NoError(t, os.WriteFile(partial, []byte(`{"MaxStep": "x"}`),
		0o644))
	_, err = Load(partial)
	assert.Error(t, err)

	_, err = Load(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestNewFrameSource(t *testing.T) {
	c := DefaultConfig()
	source, err := NewFrameSource(c)
	require.NoError(t, err)
	w, h := source.ScreenDimensions()
	assert.Equal(t, 160, w)
	assert.Equal(t, 210, h)

	c.EnvName = "atari:Pong"
	_, err = NewFrameSource(c)
	assert.Error(t, err)

	assert.Contains(t, Sources(), PongTwoPlayer)
	assert.Panics(t, func() { RegisterSource(PongTwoPlayer, newPong) })
}

// sessionConfig returns a configuration of a short run of a small
// agent on Pong games of a single point
func sessionConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()

	c := DefaultConfig()
	agentConfig, err := Preset(Small, false, false)
	require.NoError(t, err)
	agentConfig.Network.Hidden = []int{8}
	agentConfig.ScreenWidth, agentConfig.ScreenHeight = 8, 8
	agentConfig.ExpReplay = expreplay.Config{
		MaxReplayCapacity: 200,
		SampleSize:        4,
		HistoryLength:     2,
	}
	agentConfig.LearnStart = 20
	agentConfig.TargetSyncInterval = 10
	agentConfig.TestStep = 10
	agentConfig.TelemetryStart = 0
	agentConfig.Epsilon = policy.LinearEpsilon{
		Start:      1,
		End:        0.1,
		EndStep:    40,
		LearnStart: 20,
	}
	c.Agent = agentConfig
	c.Model = Small

	c.Pong.PointsToWin = 1
	c.MaxStep = 60
	c.CheckpointDir = filepath.Join(dir, "checkpoints")
	c.TelemetryDB = filepath.Join(dir, "telemetry.db")
	c.ReturnsFile = filepath.Join(dir, "returns.bin")
	c.SummariesFile = filepath.Join(dir, "summaries.bin")
	c.LengthsFile = filepath.Join(dir, "lengths.bin")
	c.CheckpointEvery = 25
	return c
}

func TestSession(t *testing.T) {
	ctx := context.Background()
	c := sessionConfig(t)

	s, err := NewSession(ctx, c)
	require.NoError(t, err)
	require.NoError(t, s.Run(ctx))
	assert.Equal(t, 60, s.Agent.State().Step)

	// Windows close at steps 29, 39, 49, and 59
	windows, err := s.Telemetry.Steps(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, windows)
	summaries, err := tracker.LoadSummaries(c.SummariesFile)
	require.NoError(t, err)
	assert.Len(t, summaries, 4)
	lengths, err := tracker.LoadLengths(c.LengthsFile)
	require.NoError(t, err)
	returns, err := tracker.LoadData(c.ReturnsFile)
	require.NoError(t, err)
	assert.Equal(t, len(returns), len(lengths))

	steps, err := s.Checkpoints.Steps()
	require.NoError(t, err)
	assert.Contains(t, steps, 25)
	assert.Contains(t, steps, 30)
	assert.Contains(t, steps, 50)
	latest := steps[len(steps)-1]
	require.NoError(t, s.Close())

	// Training resumes from the latest checkpoint
	c.MaxStep = 70
	resumed, err := NewSession(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, latest, resumed.Agent.State().Step)
	require.NoError(t, resumed.Run(ctx))
	assert.Equal(t, 70, resumed.Agent.State().Step)
	require.NoError(t, resumed.Close())

	// Play a single game with the frozen weights
	c.IsTrain = false
	c.TelemetryDB = ""
	c.ReturnsFile = ""
	c.SummariesFile = ""
	c.LengthsFile = ""
	c.Display = true
	c.RenderDir = filepath.Join(t.TempDir(), "render")
	c.RenderEvery = 50
	player, err := NewSession(ctx, c)
	require.NoError(t, err)
	played, err := player.Online.Play(ctx, 1)
	require.NoError(t, err)
	require.Len(t, played, 1)
	assert.Contains(t, []float64{-1, 1}, played[0])
	require.NoError(t, player.Close())

	rendered, err := os.ReadDir(c.RenderDir)
	require.NoError(t, err)
	assert.NotEmpty(t, rendered)
}

func TestSessionPreconditions(t *testing.T) {
	ctx := context.Background()

	c := sessionConfig(t)
	c.GPUFraction = ""
	_, err := NewSession(ctx, c)
	assert.Error(t, err)

	// Playing needs a checkpoint
	c = sessionConfig(t)
	c.IsTrain = false
	_, err = NewSession(ctx, c)
	assert.Error(t, err)

	c = sessionConfig(t)
	c.EnvName = "unknown"
	_, err = NewSession(ctx, c)
	assert.Error(t, err)
}
