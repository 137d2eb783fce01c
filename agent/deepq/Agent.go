// Package deepq implements the deep Q-network agent: a ValueEstimator
// holding online and target networks, and an Agent that drives it over
// a stream of preprocessed frames with a replay memory.
package deepq

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/samuelfneumann/pongdqn/agent"
	"github.com/samuelfneumann/pongdqn/agent/policy"
	"github.com/samuelfneumann/pongdqn/experiment/tracker"
	"github.com/samuelfneumann/pongdqn/expreplay"
	"github.com/samuelfneumann/pongdqn/history"
	"github.com/samuelfneumann/pongdqn/network"
	ts "github.com/samuelfneumann/pongdqn/timestep"
	"k8s.io/klog/v2"
)

// Saver persists the online weights at a global step
type Saver interface {
	Save(step int, bestAvgEpisodeReward float64, w network.Weights) error
}

// Agent implements the deep Q-network algorithm with a replay memory,
// a periodically synced target network, and Huber loss. Double
// Q-learning and the dueling architecture are enabled through its
// Config.
type Agent struct {
	config     Config
	numActions int

	estimator ValueEstimator
	memory    *expreplay.Memory
	history   *history.History
	policy    *policy.EGreedy

	state agent.State

	saver Saver
	sink  tracker.Sink

	eval bool // Whether or not in evaluation mode
}

// New creates and returns a new Agent selecting among numActions
// actions. The saver and sink may be nil, in which case no checkpoints
// are saved or no window summaries are emitted respectively.
func New(config Config, numActions int, seed uint64, saver Saver,
	sink tracker.Sink) (*Agent, error) {
	estimator, err := NewEstimator(config, numActions)
	if err != nil {
		return nil, errors.Wrap(err, "new")
	}
	a, err := NewWithEstimator(config, estimator, numActions, seed, saver,
		sink)
	if err != nil {
		estimator.Close()
		return nil, err
	}
	return a, nil
}

// NewWithEstimator returns a new Agent which learns with the argument
// ValueEstimator
func NewWithEstimator(config Config, estimator ValueEstimator,
	numActions int, seed uint64, saver Saver,
	sink tracker.Sink) (*Agent, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "new")
	}
	if numActions < 1 {
		return nil, fmt.Errorf("new: number of actions must be positive, "+
			"have %v", numActions)
	}

	memory, err := config.ExpReplay.Create(config.ScreenWidth,
		config.ScreenHeight, seed)
	if err != nil {
		return nil, errors.Wrap(err, "new: could not create replay memory")
	}

	hist, err := history.New(config.HistoryLength(), config.ScreenWidth,
		config.ScreenHeight)
	if err != nil {
		return nil, errors.Wrap(err, "new: could not create history")
	}

	return &Agent{
		config:     config,
		numActions: numActions,
		estimator:  estimator,
		memory:     memory,
		history:    hist,
		policy:     policy.NewEGreedy(seed + 1),
		saver:      saver,
		sink:       sink,
	}, nil
}

// Seed fills the frame history with copies of frame
func (a *Agent) Seed(frame ts.Frame) {
	a.history.Reset(frame)
}

// Epsilon returns the exploration rate at the current step
func (a *Agent) Epsilon() float64 {
	if a.eval {
		return a.config.TestEpsilon
	}
	return a.config.Epsilon.At(a.state.Step)
}

// Predict selects an action for the current frame history. Action
// values are only computed when the action is selected greedily.
func (a *Agent) Predict() (int, error) {
	if a.policy.Explore(a.Epsilon()) {
		return a.policy.Random(a.numActions), nil
	}

	values, err := a.estimator.PredictOnline(a.history.Input(), 1)
	if err != nil {
		return 0, errors.Wrap(err, "predict")
	}
	return a.policy.Greedy(values[0]), nil
}

// Observe records that taking action produced frame, reward, and
// terminal. In training mode the transition is stored in the replay
// memory with its reward clipped, and once past the warmup the
// estimator is trained and its target synced on schedule.
func (a *Agent) Observe(frame ts.Frame, reward float64, action int,
	terminal bool) error {
	step := a.state.Step
	if step == a.config.LearnStart {
		a.state.ResetWindow()
	}

	a.history.Add(frame)
	if a.eval {
		return nil
	}

	reward = policy.ClipReward(reward, a.config.MinReward,
		a.config.MaxReward)
	if err := a.memory.Store(frame, action, reward, terminal); err != nil {
		return errors.Wrap(err, "observe")
	}

	phase := agent.PhaseOf(step, a.config.LearnStart, a.config.TestStep)
	if phase == agent.Warmup {
		return nil
	}

	if step%a.config.TrainFrequency == 0 {
		if err := a.train(step); err != nil {
			return errors.Wrap(err, "observe")
		}
	}

	interval := a.config.TargetSyncInterval
	if step%interval == interval-1 {
		if err := a.estimator.SyncTarget(); err != nil {
			return errors.Wrap(err, "observe")
		}
		klog.V(2).Infof("step %v: synced target network", step)
	}
	return nil
}

// train performs a single training step. If the replay memory cannot
// provide a batch the step is skipped.
func (a *Agent) train(step int) error {
	lr := a.config.LearningRate.At(step)
	if err := a.estimator.SetLearningRate(lr); err != nil {
		return err
	}

	batch, err := a.memory.Sample()
	var replayErr *expreplay.ExpReplayError
	if errors.As(err, &replayErr) {
		klog.V(2).Infof("step %v: skipping training: %v", step, err)
		return nil
	} else if err != nil {
		return err
	}

	loss, meanQ, err := a.estimator.TrainStep(batch)
	if err != nil {
		return err
	}
	a.state.RecordUpdate(loss, meanQ)
	return nil
}

// EndStep performs the episode and window accounting of the current
// step and advances the global step. On a terminal step the history is
// re-seeded with resetFrame, the first frame of the next episode.
//
// An error is returned if a checkpoint could not be saved; the window
// is closed and the step advanced regardless.
func (a *Agent) EndStep(ctx context.Context, reward float64, action int,
	terminal bool, resetFrame ts.Frame) error {
	a.state.RecordStep(reward, action, terminal)
	if terminal {
		a.history.Reset(resetFrame)
	}

	var err error
	step := a.state.Step
	if !a.eval && agent.WindowEnds(step, a.config.LearnStart,
		a.config.TestStep) {
		err = a.closeWindow(ctx, step)
	}

	a.state.Step++
	return err
}

// closeWindow checkpoints the online weights if the window's average
// episode reward is good enough, emits the window summary, and resets
// the window accumulators
func (a *Agent) closeWindow(ctx context.Context, step int) error {
	w := a.state.Window(a.config.TestStep)

	var saveErr error
	if a.state.Checkpoint(w.AvgEpisodeReward) && a.saver != nil {
		err := a.saver.Save(step+1, a.state.BestAvgEpisodeReward,
			a.estimator.Weights())
		if err != nil {
			klog.Errorf("step %v: could not save checkpoint: %v", step, err)
			saveErr = errors.Wrap(err, "endStep")
		} else {
			klog.Infof("step %s: saved checkpoint (avg episode reward %.4f, "+
				"best %.4f)", humanize.Comma(int64(step+1)), w.AvgEpisodeReward,
				a.state.BestAvgEpisodeReward)
		}
	}

	if step > a.config.TelemetryStart && a.sink != nil {
		summary := tracker.Summary{
			Step:             step,
			AverageReward:    w.AvgReward,
			AverageLoss:      w.AvgLoss,
			AverageQ:         w.AvgQ,
			EpisodeMaxReward: w.MaxEpisodeReward,
			EpisodeMinReward: w.MinEpisodeReward,
			EpisodeAvgReward: w.AvgEpisodeReward,
			NumGames:         w.NumGames,
			LearningRate:     a.estimator.LearningRate(),
			EpisodeRewards:   w.EpisodeRewards,
			Actions:          w.Actions,
		}
		if err := a.sink.Emit(ctx, summary); err != nil {
			klog.Warningf("step %v: could not emit summary: %v", step, err)
		}
	}

	a.state.ResetWindow()
	return saveErr
}

// State returns a copy of the agent's bookkeeping
func (a *Agent) State() agent.State {
	return a.state.Clone()
}

// Restore continues training from a checkpoint: the online and target
// weights are set to w and the global step and best average episode
// reward are restored.
func (a *Agent) Restore(step int, bestAvgEpisodeReward float64,
	w network.Weights) error {
	if step < 0 {
		return fmt.Errorf("restore: step must be non-negative, have %v", step)
	}
	if err := a.estimator.SetWeights(w); err != nil {
		return errors.Wrap(err, "restore")
	}
	if err := a.estimator.SyncTarget(); err != nil {
		return errors.Wrap(err, "restore")
	}
	a.state.Step = step
	a.state.BestAvgEpisodeReward = bestAvgEpisodeReward
	return nil
}

// LoadFrozen sets the online weights for evaluation play
func (a *Agent) LoadFrozen(w network.Weights) error {
	return errors.Wrap(a.estimator.SetWeights(w), "loadFrozen")
}

// Weights returns a snapshot of the online weights
func (a *Agent) Weights() network.Weights {
	return a.estimator.Weights()
}

// Memory returns the agent's replay memory
func (a *Agent) Memory() *expreplay.Memory {
	return a.memory
}

// History returns a copy of the frames in the agent's history
func (a *Agent) History() []ts.Frame {
	return a.history.Get()
}

// Eval sets the agent into evaluation mode
func (a *Agent) Eval() {
	a.eval = true
}

// Train sets the agent into training mode
func (a *Agent) Train() {
	a.eval = false
}

// IsEval returns whether the agent is in evaluation mode
func (a *Agent) IsEval() bool {
	return a.eval
}

// Close closes the agent's estimator
func (a *Agent) Close() error {
	return a.estimator.Close()
}
