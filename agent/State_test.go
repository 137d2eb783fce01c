package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckpointRule(t *testing.T) {
	var s State
	averages := []float64{10, 8, 11, 9, 12}
	want := []bool{true, false, true, false, true}
	bests := []float64{10, 10, 11, 11, 12}

	prevBest := s.BestAvgEpisodeReward
	for i, avg := range averages {
		require.Equal(t, want[i], s.Checkpoint(avg), "window %d (avg %v)", i,
			avg)
		require.Equal(t, bests[i], s.BestAvgEpisodeReward)
		require.GreaterOrEqual(t, s.BestAvgEpisodeReward, prevBest)
		prevBest = s.BestAvgEpisodeReward
	}
}

func TestCheckpointWithinTolerance(t *testing.T) {
	s := State{BestAvgEpisodeReward: 10}
	assert.True(t, s.Checkpoint(9.5))
	assert.Equal(t, 10.0, s.BestAvgEpisodeReward, "best must not decrease")
}

func TestRecordStepEpisodeAccounting(t *testing.T) {
	var s State
	s.RecordStep(1, 0, false)
	s.RecordStep(-1, 1, false)
	s.RecordStep(1, 3, false)
	require.Equal(t, 1.0, s.EpisodeReward)

	// The terminal step's own reward only reaches the window total
	s.RecordStep(1, 4, true)
	require.Zero(t, s.EpisodeReward)
	require.Equal(t, []float64{1}, s.EpisodeRewards)
	require.Equal(t, 1, s.NumGames)
	require.Equal(t, 2.0, s.TotalReward)
	require.Equal(t, []int{0, 1, 3, 4}, s.Actions)
}

func TestWindowEmpty(t *testing.T) {
	var s State
	w := s.Window(100)
	require.Equal(t, Window{}, w)
}

func TestWindowAverages(t *testing.T) {
	var s State
	s.RecordUpdate(2, 0.5)
	s.RecordUpdate(4, 1.5)
	s.RecordStep(1, 0, false)
	s.RecordStep(1, 0, true)
	s.RecordStep(-1, 0, false)
	s.RecordStep(0, 0, true)

	w := s.Window(4)
	assert.Equal(t, 0.25, w.AvgReward)
	assert.Equal(t, 3.0, w.AvgLoss)
	assert.Equal(t, 1.0, w.AvgQ)
	assert.Equal(t, 1.0, w.MaxEpisodeReward)
	assert.Equal(t, -1.0, w.MinEpisodeReward)
	assert.Equal(t, 0.0, w.AvgEpisodeReward)
	assert.Equal(t, 2, w.NumGames)

	s.ResetWindow()
	require.Equal(t, Window{}, s.Window(4))
}

func TestPhaseOf(t *testing.T) {
	tests := []struct {
		step int
		want Phase
	}{
		{0, Warmup},
		{99, Warmup},
		{100, Training},
		{149, EvaluationWindow},
		{150, Training},
		{199, EvaluationWindow},
	}
	for _, test := range tests {
		assert.Equal(t, test.want, PhaseOf(test.step, 100, 50), "step %v",
			test.step)
	}

	// A window boundary inside the warmup does not count
	assert.Equal(t, Warmup, PhaseOf(49, 100, 50))
}
