package tracker

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	ts "github.com/samuelfneumann/pongdqn/timestep"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func summaryAt(step int) Summary {
	return Summary{
		Step:             step,
		AverageReward:    0.01,
		AverageLoss:      0.002,
		AverageQ:         0.5,
		EpisodeMaxReward: 3,
		EpisodeMinReward: -21,
		EpisodeAvgReward: -9,
		NumGames:         2,
		LearningRate:     0.00025,
		EpisodeRewards:   []float64{3, -21},
		Actions:          []int{0, 1, 3, 4, 4},
	}
}

func TestSQLiteSinkStoresWindows(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "telemetry.db")

	sink := NewSQLiteSink(path, "run")
	require.NoError(t, sink.Init(ctx))
	defer sink.Close()

	require.NoError(t, sink.Emit(ctx, summaryAt(199)))
	require.NoError(t, sink.Emit(ctx, summaryAt(249)))

	n, err := sink.Steps(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	s := summaryAt(249)
	for _, m := range ScalarMetrics {
		got, ok, err := sink.Scalar(ctx, 249, m)
		require.NoError(t, err)
		require.True(t, ok, "metric %q", m)

		want, err := s.Scalar(m)
		require.NoError(t, err)
		assert.Equal(t, want, got, "metric %q", m)
	}

	rewards, actions, ok, err := sink.Episodes(ctx, 199)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []float64{3, -21}, rewards)
	assert.Equal(t, []int{0, 1, 3, 4, 4}, actions)

	_, ok, err = sink.Scalar(ctx, 1000, AverageQ)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLiteSinkUpsertsOnResume(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "telemetry.db")

	sink := NewSQLiteSink(path, "run")
	require.NoError(t, sink.Init(ctx))
	require.NoError(t, sink.Emit(ctx, summaryAt(199)))
	require.NoError(t, sink.Close())

	resumed := NewSQLiteSink(path, "run")
	require.NoError(t, resumed.Init(ctx))
	defer resumed.Close()

	s := summaryAt(199)
	s.AverageQ = 2
	s.EpisodeRewards = nil
	s.Actions = nil
	require.NoError(t, resumed.Emit(ctx, s))

	q, ok, err := resumed.Scalar(ctx, 199, AverageQ)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2.0, q)

	rewards, actions, ok, err := resumed.Episodes(ctx, 199)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Empty(t, rewards)
	assert.Empty(t, actions)

	n, err := resumed.Steps(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSQLiteSinkNotInitialized(t *testing.T) {
	sink := NewSQLiteSink(filepath.Join(t.TempDir(), "x.db"), "")
	assert.NotEmpty(t, sink.RunID)
	assert.Error(t, sink.Emit(context.Background(), summaryAt(199)))
	assert.NoError(t, sink.Close())
}

type recordingSink struct {
	mu    sync.Mutex
	steps []int
	err   error
}

func (r *recordingSink) Emit(_ context.Context, s Summary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps = append(r.steps, s.Step)
	return r.err
}

func TestMultiFansOut(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{}
	sinks := Multi{a, b, LogSink{Verbosity: 4}}

	require.NoError(t, sinks.Emit(context.Background(), summaryAt(199)))
	assert.Equal(t, []int{199}, a.steps)
	assert.Equal(t, []int{199}, b.steps)

	failing := &recordingSink{err: errors.New("unavailable")}
	err := Multi{a, failing}.Emit(context.Background(), summaryAt(249))
	assert.Error(t, err)
	assert.Equal(t, []int{199, 249}, a.steps)
}

func TestGobSinkSaveAndLoad(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "summaries.bin")
	sink := NewGobSink(filename)

	s := summaryAt(199)
	require.NoError(t, sink.Emit(context.Background(), s))
	s.EpisodeRewards[0] = 100
	require.NoError(t, sink.Emit(context.Background(), summaryAt(249)))

	require.Len(t, sink.Summaries(), 2)
	assert.Equal(t, 3.0, sink.Summaries()[0].EpisodeRewards[0],
		"emitted slices must be copied")

	require.NoError(t, sink.Save())
	loaded, err := LoadSummaries(filename)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, 199, loaded[0].Step)
	assert.Equal(t, summaryAt(249), loaded[1])
}

func TestScalarRejectsListMetrics(t *testing.T) {
	_, err := summaryAt(0).Scalar(EpisodeRewards)
	assert.Error(t, err)
	_, err = summaryAt(0).Scalar(EpisodeActions)
	assert.Error(t, err)
}

func episode(rewards ...float64) []ts.TimeStep {
	steps := make([]ts.TimeStep, 0, len(rewards)+1)
	steps = append(steps, ts.New(ts.First, 0, 0, 0, 0))
	for i, r := range rewards {
		stepType := ts.Mid
		if i == len(rewards)-1 {
			stepType = ts.Last
		}
		steps = append(steps, ts.New(stepType, r, 0, i+1, 0))
	}
	return steps
}

func TestReturnAndEpisodeLength(t *testing.T) {
	dir := t.TempDir()
	ret := NewReturn(filepath.Join(dir, "return.bin"))
	length := NewEpisodeLength(filepath.Join(dir, "length.bin"))
	trackers := []Tracker{ret, length}

	steps := append(episode(1, -1, 1), episode(-1, -1)...)

	// An unfinished episode is not recorded
	steps = append(steps, ts.New(ts.First, 0, 0, 0, 2))
	steps = append(steps, ts.New(ts.Mid, 1, 0, 1, 2))

	for _, step := range steps {
		for _, tr := range trackers {
			tr.Track(step)
		}
	}

	assert.Equal(t, []float64{1, -2}, ret.Data())
	assert.Equal(t, []int{4, 3}, length.Data())

	for _, tr := range trackers {
		require.NoError(t, tr.Save())
	}

	returns, err := LoadData(filepath.Join(dir, "return.bin"))
	require.NoError(t, err)
	assert.Equal(t, []float64{1, -2}, returns)

	lengths, err := LoadLengths(filepath.Join(dir, "length.bin"))
	require.NoError(t, err)
	assert.Equal(t, []int{4, 3}, lengths)

	_, err = LoadData(filepath.Join(dir, "missing.bin"))
	assert.Error(t, err)
}
