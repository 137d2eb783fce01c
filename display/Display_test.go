package display

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"os"
	"strings"
	"testing"

	"github.com/samuelfneumann/pongdqn/experiment/tracker"
	ts "github.com/samuelfneumann/pongdqn/timestep"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ tracker.Sink = &Console{}
var _ Observer = &PNGRecorder{}

func TestPNGRecorder(t *testing.T) {
	_, err := NewPNGRecorder(t.TempDir(), 0, 2)
	assert.Error(t, err)

	r, err := NewPNGRecorder(t.TempDir(), 3, 0)
	require.NoError(t, err)

	screen := image.NewRGBA(image.Rect(0, 0, 16, 21))
	for i := 0; i < 7; i++ {
		o := Observation{
			Step:   ts.New(ts.Mid, 0, 0, i, 0),
			Screen: screen,
			ScoreA: 1,
		}
		require.NoError(t, r.Observe(o))
	}
	assert.Equal(t, 3, r.Rendered())

	file, err := os.Open(r.Filename(6))
	require.NoError(t, err)
	defer file.Close()
	img, err := png.Decode(file)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 32, 42), img.Bounds())

	_, err = os.Stat(r.Filename(5))
	assert.True(t, os.IsNotExist(err))
}

func TestConsole(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)

	s := tracker.Summary{
		Step:             1234567,
		EpisodeAvgReward: -3.5,
		NumGames:         4,
	}
	require.NoError(t, c.Emit(context.Background(), s))
	require.NoError(t, c.Emit(context.Background(), s))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "1,234,567")
	assert.Contains(t, lines[0], "avg_ep_r -3.5000")
	assert.Contains(t, lines[0], "# game 4")
}
