// Package policy implements action selection and the step-indexed
// schedules used by the deep Q agent: epsilon annealing, learning rate
// decay, and reward clipping.
package policy

import (
	"github.com/samuelfneumann/pongdqn/utils/floatutils"
	"golang.org/x/exp/rand"
)

// EGreedy selects actions epsilon greedily with respect to a vector of
// action values. Ties between greedy actions are broken uniformly at
// random.
type EGreedy struct {
	rng *rand.Rand
}

// NewEGreedy returns a new EGreedy selector seeded with seed
func NewEGreedy(seed uint64) *EGreedy {
	return &EGreedy{rng: rand.New(rand.NewSource(seed))}
}

// SelectAction returns, with probability epsilon, an action drawn
// uniformly from [0, len(actionValues)) and otherwise a greedy action.
func (e *EGreedy) SelectAction(epsilon float64, actionValues []float64) int {
	if e.Explore(epsilon) {
		return e.Random(len(actionValues))
	}
	return e.Greedy(actionValues)
}

// Explore returns true with probability epsilon. Callers that only need
// action values for greedy actions can skip computing them otherwise.
func (e *EGreedy) Explore(epsilon float64) bool {
	return e.rng.Float64() < epsilon
}

// Greedy returns an action of maximum value. If multiple actions have
// the maximum value, one of them is returned uniformly at random.
func (e *EGreedy) Greedy(actionValues []float64) int {
	if len(actionValues) == 0 {
		panic("greedy: no action values")
	}
	_, maxIndices := floatutils.MaxSlice(actionValues)
	return maxIndices[e.rng.Intn(len(maxIndices))]
}

// Random returns an action drawn uniformly from [0, numActions)
func (e *EGreedy) Random(numActions int) int {
	return e.rng.Intn(numActions)
}

// ClipReward clips a reward into [min, max]
func ClipReward(reward, min, max float64) float64 {
	return floatutils.Clip(reward, min, max)
}
