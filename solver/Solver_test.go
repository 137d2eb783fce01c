package solver

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	G "gorgonia.org/gorgonia"
)

func TestSetLearningRate(t *testing.T) {
	s, err := NewDefaultRMSProp(0.00025, 1)
	require.NoError(t, err)

	before := s.Solver
	require.NoError(t, s.SetLearningRate(0.00025))
	require.Same(t, before, s.Solver, "unchanged rate must keep the solver")

	require.NoError(t, s.SetLearningRate(0.0001))
	require.Equal(t, 0.0001, s.Config.LearningRate())
	require.Equal(t, RMSProp, s.Type)
	require.IsType(t, &G.RMSPropSolver{}, s.Solver)

	require.Error(t, s.SetLearningRate(0))
	require.Equal(t, 0.0001, s.Config.LearningRate())
}

func TestClone(t *testing.T) {
	s, err := NewAdam(0.001, 1e-8, 0.9, 0.999, 1, 0)
	require.NoError(t, err)

	c := s.Clone()
	require.Equal(t, s.Type, c.Type)
	require.Equal(t, s.Config, c.Config)
	require.NotSame(t, s.Solver, c.Solver)

	require.NoError(t, c.SetLearningRate(0.01))
	require.Equal(t, 0.001, s.Config.LearningRate())
	require.Equal(t, 0.01, c.Config.LearningRate())
}

func TestUnmarshalSolver(t *testing.T) {
	data := []byte(`{
		"Type": "Adam",
		"Config": {"StepSize": 0.001, "Epsilon": 1e-8, "Beta1": 0.9,
			"Beta2": 0.999, "Batch": 1, "Clip": 10}
	}`)

	var s Solver
	require.NoError(t, json.Unmarshal(data, &s))
	require.Equal(t, Adam, s.Type)
	require.Equal(t, 10.0, s.Config.(AdamConfig).Clip)
	require.IsType(t, &G.AdamSolver{}, s.Solver)
}

func TestUnmarshalSolverInvalid(t *testing.T) {
	for _, data := range []string{
		`{"Type": "SGDW", "Config": {}}`,
		`{"Type": 3}`,
		`not json`,
	} {
		var s Solver
		if err := json.Unmarshal([]byte(data), &s); err == nil {
			t.Errorf("expected error unmarshalling %v", data)
		}
	}
}

func TestNewSolverValidation(t *testing.T) {
	_, err := NewVanilla(0, 1, -1)
	require.Error(t, err)

	_, err = NewRMSProp(0.1, 0.01, 1.5, 1, -1)
	require.Error(t, err)

	s, err := NewVanilla(0.1, 32, 5)
	require.NoError(t, err)
	require.IsType(t, &G.VanillaSolver{}, s.Solver)
}
