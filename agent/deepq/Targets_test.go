package deepq

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBootstrapTargets(t *testing.T) {
	rewards := []float64{1, 0.5, -1}
	terminals := []bool{false, false, true}
	nextTarget := []float64{
		1, 3,
		2, 0,
		5, 5,
	}
	nextOnline := []float64{
		4, 0,
		0, 1,
		0, 9,
	}

	tests := []struct {
		name    string
		doubleQ bool
		want    []float64
	}{
		{"max target", false, []float64{1 + 0.9*3, 0.5 + 0.9*2, -1}},
		{"double Q", true, []float64{1 + 0.9*1, 0.5 + 0.9*0, -1}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			targets, err := BootstrapTargets(rewards, terminals, nextTarget,
				nextOnline, 2, 0.9, test.doubleQ)
			require.NoError(t, err)
			assert.InDeltaSlice(t, test.want, targets, 1e-12)
		})
	}
}

func TestBootstrapTargetsInvalidShapes(t *testing.T) {
	_, err := BootstrapTargets([]float64{0, 0}, []bool{false},
		[]float64{0, 0, 0, 0}, nil, 2, 0.9, false)
	assert.Error(t, err, "terminals")

	_, err = BootstrapTargets([]float64{0}, []bool{false},
		[]float64{0, 0, 0}, nil, 2, 0.9, false)
	assert.Error(t, err, "target values")

	_, err = BootstrapTargets([]float64{0}, []bool{false},
		[]float64{0, 0}, nil, 2, 0.9, true)
	assert.Error(t, err, "online values")

	// Online values are ignored without double Q
	_, err = BootstrapTargets([]float64{0}, []bool{false},
		[]float64{0, 0}, nil, 2, 0.9, false)
	assert.NoError(t, err)
}
