package expreplay

import (
	"fmt"

	"golang.org/x/exp/rand"
)

// Selector implements functionality for choosing which transitions
// should be sampled from a replay Memory
type Selector interface {
	// choose selects the logical positions of the transitions to
	// sample from the memory
	choose(m *Memory) ([]int, error)

	// BatchSize returns the number of elements that will be selected
	BatchSize() int
}

// uniformSelector is a Selector which selects valid transitions
// uniformly randomly, with replacement
type uniformSelector struct {
	samples  int
	attempts int
	rng      *rand.Rand
}

// NewUniformSelector returns a new Selector which selects data uniformly
// randomly from a replay memory. Candidate positions that turn out to
// be invalid are redrawn, at most attempts times per selected element.
func NewUniformSelector(samples, attempts int, seed uint64) Selector {
	source := rand.NewSource(seed)
	rng := rand.New(source)

	return &uniformSelector{samples: samples, attempts: attempts, rng: rng}
}

// BatchSize gets the number of samples in a batch drawn from the memory
func (u *uniformSelector) BatchSize() int {
	return u.samples
}

// choose selects a number of logical positions at which to draw data
// from the memory
func (u *uniformSelector) choose(m *Memory) ([]int, error) {
	low := m.HistoryLength()
	candidates := m.Len() - low
	if candidates <= 0 {
		return nil, errInsufficientSamples
	}

	selected := make([]int, u.BatchSize())
	for i := range selected {
		found := false
		for attempt := 0; attempt < u.attempts; attempt++ {
			k := low + u.rng.Intn(candidates)
			if m.isValid(k) {
				selected[i] = k
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("choose: no valid transition found in "+
				"%v draws (%v valid of %v candidates)", u.attempts,
				m.Valid(), candidates)
		}
	}

	return selected, nil
}
