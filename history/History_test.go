package history

import (
	"testing"

	ts "github.com/samuelfneumann/pongdqn/timestep"
	"github.com/stretchr/testify/require"
)

func frameOf(v uint8) ts.Frame {
	f := ts.NewFrame(3, 2)
	for i := range f.Pixels {
		f.Pixels[i] = v
	}
	return f
}

func TestHistoryRecencyOrder(t *testing.T) {
	h, err := New(4, 3, 2)
	require.NoError(t, err)

	h.Reset(frameOf(0))
	for i := 1; i <= 10; i++ {
		h.Add(frameOf(uint8(i)))

		frames := h.Get()
		require.Len(t, frames, 4)
		for j, f := range frames {
			want := i - 3 + j
			if want < 0 {
				want = 0
			}
			require.Equal(t, uint8(want), f.Pixels[0],
				"frame %d after %d adds", j, i)
		}
	}
}

func TestHistoryResetRepeatsFrame(t *testing.T) {
	h, err := New(4, 3, 2)
	require.NoError(t, err)

	h.Reset(frameOf(1))
	h.Add(frameOf(2))
	h.Reset(frameOf(7))

	frames := h.Get()
	require.Len(t, frames, 4)
	for _, f := range frames {
		require.Equal(t, frameOf(7), f)
	}
}

func TestHistoryGetIsCopy(t *testing.T) {
	h, err := New(2, 3, 2)
	require.NoError(t, err)
	h.Reset(frameOf(5))

	frames := h.Get()
	frames[0].Pixels[0] = 99
	require.Equal(t, uint8(5), h.Get()[0].Pixels[0])

	// Mutating an added frame afterwards must not leak into the history
	f := frameOf(6)
	h.Add(f)
	f.Pixels[0] = 42
	require.Equal(t, uint8(6), h.Latest().Pixels[0])
}

func TestHistoryInputLayout(t *testing.T) {
	h, err := New(2, 3, 2)
	require.NoError(t, err)
	h.Reset(frameOf(0))
	h.Add(frameOf(255))

	input := h.Input()
	require.Len(t, input, h.Features())
	for i := 0; i < 6; i++ {
		require.Equal(t, 0.0, input[i])
		require.Equal(t, 1.0, input[6+i])
	}
}

func TestHistoryReadBeforeFillPanics(t *testing.T) {
	h, err := New(4, 3, 2)
	require.NoError(t, err)
	h.Add(frameOf(1))

	require.False(t, h.Full())
	require.Panics(t, func() { h.Get() })
}

func TestNewInvalid(t *testing.T) {
	_, err := New(0, 3, 2)
	require.Error(t, err)

	_, err = New(4, 0, 2)
	require.Error(t, err)
}
