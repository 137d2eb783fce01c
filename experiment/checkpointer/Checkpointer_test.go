package checkpointer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/samuelfneumann/pongdqn/agent"
	"github.com/samuelfneumann/pongdqn/network"
	ts "github.com/samuelfneumann/pongdqn/timestep"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func weights(value float64) network.Weights {
	return network.Weights{
		Names:  []string{"fc0_w", "fc0_b"},
		Shapes: [][]int{{2, 3}, {1, 3}},
		Data: [][]float64{
			{value, value, value, value, value, value},
			{value, 0, 0},
		},
	}
}

func TestFilenames(t *testing.T) {
	assert.Equal(t, "model-50000.ckpt", Filename(50000))

	step, ok := parseStep("/tmp/run/model-123.ckpt")
	require.True(t, ok)
	assert.Equal(t, 123, step)

	for _, name := range []string{"model-x.ckpt", "model-1.bin", "m-1.ckpt",
		".tmp-model-1.ckpt-42", "model--1.ckpt"} {
		_, ok := parseStep(name)
		assert.False(t, ok, name)
	}

	assert.Equal(t, []int{2, 10, 30},
		enumerate([]string{"model-30.ckpt", "notes.txt", "model-2.ckpt",
			"model-10.ckpt"}))
}

func TestDirSaveAndLoad(t *testing.T) {
	d, err := NewDir(filepath.Join(t.TempDir(), "checkpoints"), 0)
	require.NoError(t, err)

	_, ok, err := d.Latest()
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, d.Save(10, 3.5, weights(1)))
	require.NoError(t, d.Save(30, 4, weights(2)))

	latest, ok, err := d.Latest()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 30, latest.Step)
	assert.Equal(t, 4.0, latest.BestAvgEpisodeReward)
	assert.Equal(t, weights(2), latest.Weights)
	assert.Equal(t, Fingerprint(weights(0)), latest.Fingerprint)

	first, err := d.Load(10)
	require.NoError(t, err)
	assert.Equal(t, weights(1), first.Weights)

	_, err = d.Load(20)
	assert.Error(t, err)

	// No temporary files are left behind
	entries, err := os.ReadDir(d.Path())
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestDirKeepsLast(t *testing.T) {
	d, err := NewDir(t.TempDir(), 3)
	require.NoError(t, err)

	for step := 1; step <= 6; step++ {
		require.NoError(t, d.Save(step*10, 0, weights(float64(step))))
	}
	steps, err := d.Steps()
	require.NoError(t, err)
	assert.Equal(t, []int{40, 50, 60}, steps)
}

func TestDirCorruptCheckpoint(t *testing.T) {
	d, err := NewDir(t.TempDir(), 0)
	require.NoError(t, err)
	require.NoError(t, d.Save(10, 0, weights(1)))

	name := filepath.Join(d.Path(), Filename(20))
	require.NoError(t, os.WriteFile(name, []byte("not a checkpoint"), 0o644))

	_, _, err = d.Latest()
	assert.Error(t, err)
}

func TestFingerprint(t *testing.T) {
	assert.Equal(t, Fingerprint(weights(1)), Fingerprint(weights(2)))

	other := weights(1)
	other.Shapes[0] = []int{3, 2}
	assert.NotEqual(t, Fingerprint(weights(1)), Fingerprint(other))
}

type fakeAgent struct {
	step    int
	best    float64
	weights network.Weights
	frozen  bool
}

func (f *fakeAgent) Restore(step int, best float64, w network.Weights) error {
	f.step, f.best, f.weights = step, best, w
	return nil
}

func (f *fakeAgent) LoadFrozen(w network.Weights) error {
	f.weights, f.frozen = w, true
	return nil
}

func (f *fakeAgent) State() agent.State {
	return agent.State{Step: f.step, BestAvgEpisodeReward: f.best}
}

func (f *fakeAgent) Weights() network.Weights {
	return f.weights
}

func TestResumeAndLoadFrozen(t *testing.T) {
	d, err := NewDir(t.TempDir(), 0)
	require.NoError(t, err)

	a := &fakeAgent{weights: weights(0)}
	step, err := d.Resume(a)
	require.NoError(t, err)
	assert.Zero(t, step)
	assert.Error(t, d.LoadFrozen(a))

	require.NoError(t, d.Save(50000, 7, weights(3)))
	step, err = d.Resume(a)
	require.NoError(t, err)
	assert.Equal(t, 50000, step)
	assert.Equal(t, 50000, a.step)
	assert.Equal(t, 7.0, a.best)
	assert.Equal(t, weights(3), a.weights)

	frozen := &fakeAgent{weights: weights(0)}
	require.NoError(t, d.LoadFrozen(frozen))
	assert.True(t, frozen.frozen)
	assert.Equal(t, weights(3), frozen.weights)
}

func TestResumeOtherTopology(t *testing.T) {
	d, err := NewDir(t.TempDir(), 0)
	require.NoError(t, err)
	require.NoError(t, d.Save(100, 2, weights(3)))

	other := weights(0)
	other.Shapes = [][]int{{3, 2}, {1, 2}}
	other.Data = [][]float64{make([]float64, 6), make([]float64, 2)}

	a := &fakeAgent{weights: other}
	_, err = d.Resume(a)
	assert.Error(t, err)
	assert.Zero(t, a.step)
	assert.Equal(t, other, a.weights)

	assert.Error(t, d.LoadFrozen(a))
	assert.False(t, a.frozen)
}

func TestNStep(t *testing.T) {
	d, err := NewDir(t.TempDir(), 0)
	require.NoError(t, err)

	a := &fakeAgent{best: 2, weights: weights(4)}
	c := NewNStep(5, a, d)
	for i := 0; i < 12; i++ {
		require.NoError(t, c.Checkpoint(ts.New(ts.Mid, 0, 0, i, 0)))
	}

	steps, err := d.Steps()
	require.NoError(t, err)
	assert.Equal(t, []int{5, 10}, steps)

	s, err := d.Load(10)
	require.NoError(t, err)
	assert.Equal(t, 2.0, s.BestAvgEpisodeReward)
}
