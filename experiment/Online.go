package experiment

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/samuelfneumann/pongdqn/agent"
	"github.com/samuelfneumann/pongdqn/display"
	"github.com/samuelfneumann/pongdqn/environment"
	"github.com/samuelfneumann/pongdqn/experiment/checkpointer"
	"github.com/samuelfneumann/pongdqn/experiment/tracker"
	"github.com/samuelfneumann/pongdqn/preprocess"
	ts "github.com/samuelfneumann/pongdqn/timestep"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/exp/rand"
	"golang.org/x/term"
	"k8s.io/klog/v2"
)

// FrameRate is the pace of evaluation play in real time
const FrameRate = 60

// RunConfig holds the run loop settings of an Online experiment
type RunConfig struct {
	MaxStep      int
	ActionRepeat int
	RandomStart  int
	Seed         uint64

	// Progress shows a progress bar on stderr if it is a terminal
	Progress bool

	// RealTime paces evaluation play at FrameRate steps per second
	RealTime bool
}

// Online is an Experiment that trains an agent online on a frame
// source. Each step of the run loop selects an action, repeats it on
// the frame source, pools and scales the resulting screens into a
// frame, and lets the agent learn from it.
type Online struct {
	source  environment.FrameSource
	agent   agent.Agent
	actions []int // Frame source actions of the agent's action indices
	screen  *preprocess.Screen
	config  RunConfig

	obs []uint8
	rng *rand.Rand

	episode      int
	episodeSteps int

	trackers      []tracker.Tracker
	checkpointers []checkpointer.Checkpointer
	observers     []display.Observer
}

// NewOnline creates and returns a new online experiment. The agent
// selects indices into actions, which are the actions of the frame
// source. Frames are produced by screen, whose input dimensions must
// match the screen dimensions of the frame source.
func NewOnline(source environment.FrameSource, a agent.Agent,
	actions []int, screen *preprocess.Screen, c RunConfig) (*Online, error) {
	if len(actions) == 0 {
		return nil, fmt.Errorf("newOnline: no actions to select from")
	}
	if c.ActionRepeat < 1 {
		return nil, fmt.Errorf("newOnline: action repeat must be positive, "+
			"have %v", c.ActionRepeat)
	}
	if c.RandomStart < 0 {
		return nil, fmt.Errorf("newOnline: random start must be "+
			"non-negative, have %v", c.RandomStart)
	}

	w, h := source.ScreenDimensions()
	return &Online{
		source:  source,
		agent:   a,
		actions: append([]int(nil), actions...),
		screen:  screen,
		config:  c,
		obs:     make([]uint8, w*h),
		rng:     rand.New(rand.NewSource(c.Seed)),
	}, nil
}

// Register registers a tracker.Tracker with the experiment so that
// data generated during the experiment can be tracked and saved
func (o *Online) Register(t tracker.Tracker) {
	o.trackers = append(o.trackers, t)
}

// RegisterCheckpointer registers a checkpointer.Checkpointer, which is
// given each TimeStep after the agent has finished the step
func (o *Online) RegisterCheckpointer(c checkpointer.Checkpointer) {
	o.checkpointers = append(o.checkpointers, c)
}

// RegisterObserver registers a display.Observer
func (o *Online) RegisterObserver(obs display.Observer) {
	o.observers = append(o.observers, obs)
}

// Episodes returns the number of episodes finished so far
func (o *Online) Episodes() int {
	return o.episode
}

// Run trains the agent from its current global step up to
// RunConfig.MaxStep. Cancelling ctx stops the run at the next step
// boundary, in which case ctx.Err() is returned.
func (o *Online) Run(ctx context.Context) error {
	o.agent.Train()
	start := o.agent.State().Step
	if start >= o.config.MaxStep {
		klog.Infof("step %v already reached the maximum of %v steps", start,
			o.config.MaxStep)
		return nil
	}

	frame, err := o.reset()
	if err != nil {
		return errors.Wrap(err, "run")
	}
	o.agent.Seed(frame)

	bar := o.newProgressBar(start)
	started := time.Now()
	for step := start; step < o.config.MaxStep; step++ {
		if err := ctx.Err(); err != nil {
			klog.Infof("run interrupted at step %s",
				humanize.Comma(int64(step)))
			return err
		}

		t, err := o.step(ctx)
		if err != nil {
			return errors.Wrapf(err, "run: step %v", step)
		}
		if err := o.after(t); err != nil {
			return errors.Wrapf(err, "run: step %v", step)
		}
		if bar != nil {
			bar.Add(1)
		}
	}
	if bar != nil {
		bar.Finish()
	}

	klog.Infof("finished %s steps in %v (%d episodes)",
		humanize.Comma(int64(o.config.MaxStep-start)),
		time.Since(started).Round(time.Second), o.episode)
	return nil
}

// step runs a single global step of the agent
func (o *Online) step(ctx context.Context) (ts.TimeStep, error) {
	number := o.agent.State().Step

	index, err := o.agent.Predict()
	if err != nil {
		return ts.TimeStep{}, err
	}
	if index < 0 || index >= len(o.actions) {
		return ts.TimeStep{}, fmt.Errorf("step: agent selected action %v "+
			"of %v", index, len(o.actions))
	}

	terminal, reward, err := o.act(o.actions[index])
	if err != nil {
		return ts.TimeStep{}, err
	}
	frame, err := o.screen.Frame()
	if err != nil {
		return ts.TimeStep{}, err
	}
	if err := o.agent.Observe(frame, reward, index, terminal); err != nil {
		return ts.TimeStep{}, err
	}

	var resetFrame ts.Frame
	if terminal {
		if resetFrame, err = o.reset(); err != nil {
			return ts.TimeStep{}, err
		}
	}
	err = o.agent.EndStep(ctx, reward, index, terminal, resetFrame)
	if err != nil {
		return ts.TimeStep{}, err
	}

	stepType := ts.Mid
	switch {
	case terminal:
		stepType = ts.Last
	case o.episodeSteps == 0:
		stepType = ts.First
	}
	return ts.New(stepType, reward, index, number, o.episode), nil
}

// after hands a finished TimeStep to the trackers, checkpointers, and
// observers
func (o *Online) after(t ts.TimeStep) error {
	for _, tr := range o.trackers {
		tr.Track(t)
	}
	for _, c := range o.checkpointers {
		if err := c.Checkpoint(t); err != nil {
			return errors.Wrap(err, "checkpoint")
		}
	}
	if err := o.observe(t); err != nil {
		return err
	}

	o.episodeSteps++
	if t.Last() {
		o.episode++
		o.episodeSteps = 0
	}
	return nil
}

func (o *Online) observe(t ts.TimeStep) error {
	if len(o.observers) == 0 {
		return nil
	}
	observation := display.Observation{Step: t, Screen: o.screen.Latest()}
	if s, ok := o.source.(environment.Scorer); ok {
		observation.ScoreA, observation.ScoreB = s.Score()
	}
	for _, obs := range o.observers {
		if err := obs.Observe(observation); err != nil {
			return errors.Wrap(err, "observe")
		}
	}
	return nil
}

// act repeats an action on the frame source, painting every screen.
// The rewards of all repeats are summed. Repeats stop early once the
// episode ends.
func (o *Online) act(action int) (bool, float64, error) {
	var total float64
	for i := 0; i < o.config.ActionRepeat; i++ {
		terminal, reward, err := o.source.Act(action)
		if err != nil {
			return false, 0, errors.Wrap(err, "act")
		}
		total += reward
		if err := o.paint(); err != nil {
			return false, 0, errors.Wrap(err, "act")
		}
		if terminal {
			return true, total, nil
		}
	}
	return false, total, nil
}

// paint paints the current screen of the frame source
func (o *Online) paint() error {
	if err := o.source.FillObservation(o.obs); err != nil {
		return err
	}
	return o.screen.PaintIndexed(o.obs)
}

// reset starts a new episode and returns its first frame. With
// RandomStart set, a random number of no-op frames is played first.
func (o *Online) reset() (ts.Frame, error) {
	for {
		if err := o.source.Reset(); err != nil {
			return ts.Frame{}, errors.Wrap(err, "reset")
		}
		o.screen.Reset()
		if err := o.paint(); err != nil {
			return ts.Frame{}, errors.Wrap(err, "reset")
		}

		terminal, err := o.noops()
		if err != nil {
			return ts.Frame{}, errors.Wrap(err, "reset")
		}
		if !terminal {
			return o.screen.Frame()
		}
		klog.V(2).Info("episode ended during random start, resetting")
	}
}

func (o *Online) noops() (bool, error) {
	if o.config.RandomStart == 0 {
		return false, nil
	}
	n := o.rng.Intn(o.config.RandomStart + 1)
	for i := 0; i < n; i++ {
		terminal, _, err := o.source.Act(o.actions[0])
		if err != nil {
			return false, err
		}
		if err := o.paint(); err != nil {
			return false, err
		}
		if terminal {
			return true, nil
		}
	}
	return false, nil
}

// newProgressBar returns a progress bar starting at step, or nil if
// progress should not be shown
func (o *Online) newProgressBar(step int) *progressbar.ProgressBar {
	if !o.config.Progress || !term.IsTerminal(int(os.Stderr.Fd())) {
		return nil
	}
	bar := progressbar.NewOptions(o.config.MaxStep,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("steps"),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionSetDescription("training"),
	)
	bar.Set(step)
	return bar
}

// Play plays episodes in evaluation mode and returns the return of
// each episode. The agent selects actions with its test exploration
// rate and does not learn.
func (o *Online) Play(ctx context.Context, episodes int) ([]float64, error) {
	o.agent.Eval()
	defer o.agent.Train()

	var ticker *time.Ticker
	if o.config.RealTime {
		ticker = time.NewTicker(time.Second / FrameRate)
		defer ticker.Stop()
	}

	frame, err := o.reset()
	if err != nil {
		return nil, errors.Wrap(err, "play")
	}
	o.agent.Seed(frame)

	returns := make([]float64, 0, episodes)
	var episodeReturn float64
	for len(returns) < episodes {
		if err := ctx.Err(); err != nil {
			return returns, err
		}
		if ticker != nil {
			select {
			case <-ctx.Done():
				return returns, ctx.Err()
			case <-ticker.C:
			}
		}

		t, err := o.step(ctx)
		if err != nil {
			return returns, errors.Wrap(err, "play")
		}
		klog.V(1).Infof("reward: %v", t.Reward)
		if err := o.after(t); err != nil {
			return returns, errors.Wrap(err, "play")
		}

		episodeReturn += t.Reward
		if t.Last() {
			klog.Infof("episode %d finished with return %v", len(returns),
				episodeReturn)
			returns = append(returns, episodeReturn)
			episodeReturn = 0
		}
	}
	return returns, nil
}

// Save saves all the data cached by the Trackers to disk
func (o *Online) Save() error {
	for _, t := range o.trackers {
		if err := t.Save(); err != nil {
			return errors.Wrap(err, "save")
		}
	}
	return nil
}
