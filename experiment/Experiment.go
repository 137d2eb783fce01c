// Package experiment implements the run loop which trains an agent on
// a frame source, evaluation play with frozen weights, and the
// configuration tying a run together.
package experiment

import (
	"context"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/samuelfneumann/pongdqn/agent/deepq"
	"github.com/samuelfneumann/pongdqn/device"
	"github.com/samuelfneumann/pongdqn/display"
	"github.com/samuelfneumann/pongdqn/environment"
	"github.com/samuelfneumann/pongdqn/experiment/checkpointer"
	"github.com/samuelfneumann/pongdqn/experiment/tracker"
	"github.com/samuelfneumann/pongdqn/preprocess"
	"golang.org/x/term"
	"k8s.io/klog/v2"
)

// Experiment outlines structs that can run experiments. Experiments
// send each TimeStep to their Trackers using the Tracker's Track()
// method, and Save() saves all tracked data to disk once the run is
// over. New Trackers can be registered through Register(), even while
// the experiment is running.
type Experiment interface {
	Run(ctx context.Context) error
	Register(t tracker.Tracker)
	Save() error
}

// Session is a run assembled from a Config: the frame source, the
// agent, and the stores of its checkpoints and telemetry
type Session struct {
	Config      Config
	RunID       string
	Source      environment.FrameSource
	Agent       *deepq.Agent
	Checkpoints *checkpointer.Dir
	Telemetry   *tracker.SQLiteSink
	Summaries   *tracker.GobSink
	Returns     *tracker.Return
	Online      *Online
}

// NewSession validates c and creates all parts of a run. In training
// mode the agent resumes from the latest checkpoint, otherwise the
// latest checkpoint is loaded as frozen weights.
func NewSession(ctx context.Context, c Config) (*Session, error) {
	if err := c.Validate(); err != nil {
		return nil, errors.Wrap(err, "newSession")
	}
	if err := device.Check(c.UseGPU, c.GPUFraction); err != nil {
		return nil, errors.Wrap(err, "newSession")
	}

	s := &Session{Config: c, RunID: uuid.NewString()}
	if err := s.build(ctx); err != nil {
		if closeErr := s.Close(); closeErr != nil {
			klog.Warningf("could not clean up session: %v", closeErr)
		}
		return nil, errors.Wrap(err, "newSession")
	}
	return s, nil
}

func (s *Session) build(ctx context.Context) error {
	c := s.Config

	var err error
	s.Checkpoints, err = checkpointer.NewDir(c.CheckpointDir,
		c.KeepCheckpoints)
	if err != nil {
		return err
	}

	sinks := tracker.Multi{tracker.LogSink{Verbosity: 1}}
	if c.TelemetryDB != "" {
		s.Telemetry = tracker.NewSQLiteSink(c.TelemetryDB, s.RunID)
		if err := s.Telemetry.Init(ctx); err != nil {
			return err
		}
		sinks = append(sinks, s.Telemetry)
	}
	if c.SummariesFile != "" {
		s.Summaries = tracker.NewGobSink(c.SummariesFile)
		sinks = append(sinks, s.Summaries)
	}
	if term.IsTerminal(int(os.Stdout.Fd())) {
		sinks = append(sinks, display.NewConsole(os.Stdout))
	}

	s.Source, err = NewFrameSource(c)
	if err != nil {
		return err
	}
	actions := environment.PlayerAActions

	s.Agent, err = deepq.New(c.Agent, len(actions), c.Seed, s.Checkpoints,
		sinks)
	if err != nil {
		return err
	}

	if c.IsTrain {
		if _, err := s.Checkpoints.Resume(s.Agent); err != nil {
			return err
		}
	} else if err := s.Checkpoints.LoadFrozen(s.Agent); err != nil {
		return err
	}

	w, h := s.Source.ScreenDimensions()
	screen, err := preprocess.NewScreen(w, h, c.Agent.ScreenWidth,
		c.Agent.ScreenHeight)
	if err != nil {
		return err
	}

	s.Online, err = NewOnline(s.Source, s.Agent, actions, screen, RunConfig{
		MaxStep:      c.MaxStep,
		ActionRepeat: c.ActionRepeat,
		RandomStart:  c.RandomStart,
		Seed:         c.Seed + 3,
		Progress:     c.IsTrain,
		RealTime:     c.RealTime,
	})
	if err != nil {
		return err
	}

	if c.IsTrain && c.CheckpointEvery > 0 {
		s.Online.RegisterCheckpointer(checkpointer.NewNStep(
			c.CheckpointEvery, s.Agent, s.Checkpoints))
	}
	if c.ReturnsFile != "" {
		s.Returns = tracker.NewReturn(c.ReturnsFile)
		s.Online.Register(s.Returns)
	}
	if c.LengthsFile != "" {
		s.Online.Register(tracker.NewEpisodeLength(c.LengthsFile))
	}
	if c.Display {
		recorder, err := display.NewPNGRecorder(
			filepath.Clean(c.RenderDir), c.RenderEvery, display.DefaultScale)
		if err != nil {
			return err
		}
		s.Online.RegisterObserver(recorder)
	}
	return nil
}

// Run trains, or plays Config.PlayEpisodes episodes if the session is
// not training. Tracked data is saved even if the run is interrupted.
func (s *Session) Run(ctx context.Context) error {
	var runErr error
	if s.Config.IsTrain {
		runErr = s.Online.Run(ctx)
	} else {
		_, runErr = s.Online.Play(ctx, s.Config.PlayEpisodes)
	}

	save := s.Online.Save
	if s.Summaries != nil {
		save = func() error {
			if err := s.Summaries.Save(); err != nil {
				return err
			}
			return s.Online.Save()
		}
	}
	if err := save(); err != nil {
		klog.Errorf("could not save tracked data: %v", err)
		if runErr == nil {
			runErr = err
		}
	}
	return runErr
}

// Close releases the frame source, the agent, and the telemetry store
func (s *Session) Close() error {
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if s.Agent != nil {
		keep(s.Agent.Close())
	}
	if c, ok := s.Source.(environment.Closer); ok {
		keep(c.Close())
	}
	if s.Telemetry != nil {
		keep(s.Telemetry.Close())
	}
	return errors.Wrap(firstErr, "close")
}
