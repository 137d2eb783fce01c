package expreplay

import (
	"testing"

	ts "github.com/samuelfneumann/pongdqn/timestep"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

const (
	testWidth  = 2
	testHeight = 2
)

func constFrame(v uint8) ts.Frame {
	f := ts.NewFrame(testWidth, testHeight)
	for i := range f.Pixels {
		f.Pixels[i] = v
	}
	return f
}

func newTestMemory(t testing.TB, capacity, history, batch int) *Memory {
	config := Config{
		MaxReplayCapacity: capacity,
		SampleSize:        batch,
		HistoryLength:     history,
	}
	m, err := config.Create(testWidth, testHeight, 42)
	require.NoError(t, err)
	return m
}

// bruteForceValid counts valid transitions by scanning every window
func bruteForceValid(t *testing.T, m *Memory) int {
	valid := 0
	for k := m.HistoryLength(); k < m.Len(); k++ {
		ok := true
		for j := k - m.HistoryLength(); j < k; j++ {
			r, err := m.At(j)
			require.NoError(t, err)
			if r.Terminal {
				ok = false
				break
			}
		}
		if ok {
			valid++
		}
	}
	return valid
}

func TestFifoEviction(t *testing.T) {
	for _, capacity := range []int{8, 13, 32} {
		for _, extra := range []int{0, 1, 5, 40} {
			m := newTestMemory(t, capacity, 2, 4)

			total := capacity + extra
			for i := 0; i < total; i++ {
				err := m.Store(constFrame(uint8(i)), i%4, float64(i), false)
				require.NoError(t, err)
			}

			if m.Len() != capacity {
				t.Errorf("capacity %v, extra %v: want %v records, have %v",
					capacity, extra, capacity, m.Len())
			}
			for i := 0; i < capacity; i++ {
				r, err := m.At(i)
				require.NoError(t, err)

				want := extra + i
				if r.Reward != float64(want) {
					t.Errorf("capacity %v, extra %v: record %v has reward "+
						"%v, want %v", capacity, extra, i, r.Reward, want)
				}
				if r.Frame.Pixels[0] != uint8(want) {
					t.Errorf("capacity %v, extra %v: record %v has frame "+
						"%v, want %v", capacity, extra, i, r.Frame.Pixels[0],
						want)
				}
				if r.Action != want%4 {
					t.Errorf("capacity %v, extra %v: record %v has action "+
						"%v, want %v", capacity, extra, i, r.Action, want%4)
				}
			}

			_, err := m.At(capacity)
			require.Error(t, err)
		}
	}
}

func TestSampleNeverSpansEpisodes(t *testing.T) {
	const history = 4
	m := newTestMemory(t, 64, history, 16)
	rng := rand.New(rand.NewSource(7))

	// Frames carry their episode number so that windows can be checked
	episode := 1
	for i := 0; i < 500; i++ {
		terminal := rng.Float64() < 0.15
		require.NoError(t, m.Store(constFrame(uint8(episode)), 0, 0,
			terminal))
		if terminal {
			episode++
		}
	}

	features := m.Features()
	frameSize := testWidth * testHeight
	for n := 0; n < 200; n++ {
		batch, err := m.Sample()
		require.NoError(t, err)
		require.Equal(t, 16, batch.Size)

		for i := 0; i < batch.Size; i++ {
			state := batch.States[i*features : (i+1)*features]
			next := batch.NextStates[i*features : (i+1)*features]

			first := state[0]
			for j := 0; j < history; j++ {
				require.Equal(t, first, state[j*frameSize],
					"state %v crosses an episode boundary", i)
				require.Equal(t, first, next[j*frameSize],
					"next state %v crosses an episode boundary", i)
			}
		}
	}
}

func TestNextStateIsShiftedState(t *testing.T) {
	const history = 3
	m := newTestMemory(t, 20, history, 8)
	for i := 0; i < 50; i++ {
		require.NoError(t, m.Store(constFrame(uint8(i)), 0, float64(i),
			false))
	}

	batch, err := m.Sample()
	require.NoError(t, err)

	frameSize := testWidth * testHeight
	features := m.Features()
	for i := 0; i < batch.Size; i++ {
		state := batch.States[i*features:]
		next := batch.NextStates[i*features:]
		for j := 0; j < history-1; j++ {
			require.Equal(t, state[(j+1)*frameSize], next[j*frameSize])
		}

		// The newest frame of the next state was stored together with
		// the transition's reward
		newest := next[(history-1)*frameSize] * 255
		require.InDelta(t, batch.Rewards[i], newest, 1e-9)
	}
}

func TestValidCountMatchesScan(t *testing.T) {
	m := newTestMemory(t, 16, 3, 2)
	rng := rand.New(rand.NewSource(11))

	for i := 0; i < 200; i++ {
		terminal := rng.Float64() < 0.2
		require.NoError(t, m.Store(constFrame(uint8(i)), 0, 0, terminal))
		require.Equal(t, bruteForceValid(t, m), m.Valid(), "after %v stores",
			i+1)
	}
}

func TestSampleUnderflow(t *testing.T) {
	m := newTestMemory(t, 32, 4, 8)

	_, err := m.Sample()
	if !IsEmptyBuffer(err) {
		t.Errorf("want empty buffer error, have %v", err)
	}

	// Eleven frames with a history of four leave seven transitions
	for i := 0; i < 11; i++ {
		require.NoError(t, m.Store(constFrame(0), 0, 0, false))
	}
	_, err = m.Sample()
	if !IsInsufficientSamples(err) {
		t.Errorf("want insufficient samples error, have %v", err)
	}

	require.NoError(t, m.Store(constFrame(0), 0, 0, false))
	require.Equal(t, 8, m.Valid())
	_, err = m.Sample()
	require.NoError(t, err)

	require.NoError(t, m.Store(constFrame(0), 0, 0, true))
	for i := 0; i < 3; i++ {
		require.NoError(t, m.Store(constFrame(0), 0, 0, false))
	}
	require.Equal(t, 9, m.Valid())
}

func TestStoreInvalidFrame(t *testing.T) {
	m := newTestMemory(t, 16, 2, 2)
	err := m.Store(ts.NewFrame(3, 3), 0, 0, false)
	require.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	bad := []Config{
		{MaxReplayCapacity: 100, SampleSize: 32, HistoryLength: 0},
		{MaxReplayCapacity: 100, SampleSize: 0, HistoryLength: 4},
		{MaxReplayCapacity: 10, SampleSize: 32, HistoryLength: 4},
	}
	for _, c := range bad {
		if err := c.Validate(); err == nil {
			t.Errorf("expected error for config %+v", c)
		}
	}
}

func BenchmarkSample(b *testing.B) {
	m := newTestMemory(b, 10_000, 4, 32)
	for i := 0; i < 10_000; i++ {
		m.Store(constFrame(uint8(i)), 0, 0, i%97 == 0)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := m.Sample(); err != nil {
			b.Fatal(err)
		}
	}
}
