//go:build gym

package gym_test

import (
	"testing"

	"github.com/samuelfneumann/gogym"
	"github.com/samuelfneumann/pongdqn/environment"
	"github.com/samuelfneumann/pongdqn/environment/gym"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ environment.FrameSource = &gym.Source{}

func TestPong(t *testing.T) {
	defer gogym.Close()

	s, err := gym.New("Pong-v0", 123)
	require.NoError(t, err)
	defer s.Close()

	w, h := s.ScreenDimensions()
	obs := make([]uint8, w*h)
	for i := 0; i < 50; i++ {
		action := environment.PlayerAActions[i%len(environment.PlayerAActions)]
		done, _, err := s.Act(action)
		require.NoError(t, err)
		require.NoError(t, s.FillObservation(obs))
		if done {
			require.NoError(t, s.Reset())
		}
	}

	// Pong's background is drawn in a single palette colour
	assert.Equal(t, uint8(34), obs[100*w+50])

	_, _, err = s.Act(environment.PlayerBUp)
	assert.Error(t, err)
}
