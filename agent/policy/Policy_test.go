package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinearEpsilon(t *testing.T) {
	schedule := LinearEpsilon{
		Start:      1.0,
		End:        0.1,
		EndStep:    1000,
		LearnStart: 100,
	}
	require.NoError(t, schedule.Validate())

	tests := []struct {
		step int
		want float64
	}{
		{0, 1.0},
		{100, 1.0},
		{600, 0.55},
		{1100, 0.1},
		{5000, 0.1},
	}
	for _, test := range tests {
		assert.InDelta(t, test.want, schedule.At(test.step), 1e-12,
			"step %v", test.step)
	}

	// Epsilon never increases with the step
	prev := schedule.At(0)
	for step := 1; step < 2000; step += 7 {
		eps := schedule.At(step)
		require.LessOrEqual(t, eps, prev)
		prev = eps
	}
}

func TestLinearEpsilonValidate(t *testing.T) {
	bad := []LinearEpsilon{
		{Start: 1.2, End: 0.1, EndStep: 10},
		{Start: 0.1, End: 0.5, EndStep: 10},
		{Start: 1, End: 0.1, EndStep: 0},
	}
	for _, b := range bad {
		assert.Error(t, b.Validate(), "%+v", b)
	}
}

func TestStaircaseDecay(t *testing.T) {
	schedule := StaircaseDecay{
		Initial:   0.1,
		Min:       0.02,
		Decay:     0.5,
		DecayStep: 10,
	}
	require.NoError(t, schedule.Validate())

	assert.Equal(t, 0.1, schedule.At(0))
	assert.Equal(t, 0.1, schedule.At(9))
	assert.Equal(t, 0.05, schedule.At(10))
	assert.Equal(t, 0.025, schedule.At(29))
	assert.Equal(t, 0.02, schedule.At(30))
	assert.Equal(t, 0.02, schedule.At(1000))
}

func TestEGreedyGreedy(t *testing.T) {
	e := NewEGreedy(1)
	values := []float64{0.1, 0.9, -3, 0.5}
	for i := 0; i < 100; i++ {
		require.Equal(t, 1, e.SelectAction(0, values))
	}
}

func TestEGreedyTieBreak(t *testing.T) {
	e := NewEGreedy(2)
	values := []float64{1, 0, 1, 1}

	counts := make([]int, len(values))
	for i := 0; i < 3000; i++ {
		counts[e.SelectAction(0, values)]++
	}
	require.Zero(t, counts[1])
	for _, a := range []int{0, 2, 3} {
		require.Greater(t, counts[a], 800, "action %v chosen %v times", a,
			counts[a])
	}
}

func TestEGreedyRandom(t *testing.T) {
	e := NewEGreedy(3)
	values := []float64{5, 0, 0, 0}

	counts := make([]int, len(values))
	for i := 0; i < 4000; i++ {
		counts[e.SelectAction(1, values)]++
	}
	for a, c := range counts {
		require.Greater(t, c, 800, "action %v chosen %v times", a, c)
	}
}

func TestClipReward(t *testing.T) {
	assert.Equal(t, 1.0, ClipReward(3, -1, 1))
	assert.Equal(t, -1.0, ClipReward(-7, -1, 1))
	assert.Equal(t, 0.5, ClipReward(0.5, -1, 1))
}
