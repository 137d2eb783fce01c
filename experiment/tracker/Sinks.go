package tracker

import (
	"context"
	"encoding/gob"
	"os"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"
)

// LogSink writes summaries to the log at the given verbosity
type LogSink struct {
	Verbosity klog.Level
}

// Emit implements the Sink interface
func (l LogSink) Emit(_ context.Context, s Summary) error {
	klog.V(l.Verbosity).Infof("step %s: avg_r %.4f, avg_l %.6f, avg_q "+
		"%3.6f, avg_ep_r %.4f, max_ep_r %.4f, min_ep_r %.4f, # game %d, "+
		"lr %g", humanize.Comma(int64(s.Step)), s.AverageReward,
		s.AverageLoss, s.AverageQ, s.EpisodeAvgReward, s.EpisodeMaxReward,
		s.EpisodeMinReward, s.NumGames, s.LearningRate)
	return nil
}

// Multi fans a Summary out to several sinks concurrently and returns
// once all of them are done. The first error is returned.
type Multi []Sink

// Emit implements the Sink interface
func (m Multi) Emit(ctx context.Context, s Summary) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, sink := range m {
		sink := sink
		g.Go(func() error {
			return sink.Emit(ctx, s)
		})
	}
	return g.Wait()
}

// GobSink keeps summaries in memory and saves them to a file with gob
type GobSink struct {
	filename string

	mu        sync.Mutex
	summaries []Summary
}

// NewGobSink returns a new GobSink which will save its data at the
// specified location filename
func NewGobSink(filename string) *GobSink {
	return &GobSink{filename: filename}
}

// Emit implements the Sink interface
func (g *GobSink) Emit(_ context.Context, s Summary) error {
	s.EpisodeRewards = append([]float64(nil), s.EpisodeRewards...)
	s.Actions = append([]int(nil), s.Actions...)

	g.mu.Lock()
	defer g.mu.Unlock()
	g.summaries = append(g.summaries, s)
	return nil
}

// Summaries returns the summaries received so far
func (g *GobSink) Summaries() []Summary {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Summary(nil), g.summaries...)
}

// Save saves the summaries received so far to disk
func (g *GobSink) Save() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	file, err := os.Create(g.filename)
	if err != nil {
		return errors.Wrap(err, "save: could not open save file")
	}
	defer file.Close()

	if err := gob.NewEncoder(file).Encode(g.summaries); err != nil {
		return errors.Wrap(err, "save: could not encode summaries")
	}
	return nil
}

// LoadSummaries loads the summaries saved by a GobSink
func LoadSummaries(filename string) ([]Summary, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrap(err, "loadSummaries: could not open data file")
	}
	defer file.Close()

	var summaries []Summary
	if err := gob.NewDecoder(file).Decode(&summaries); err != nil {
		return nil, errors.Wrap(err, "loadSummaries: could not decode data")
	}
	return summaries, nil
}
