package agent

import (
	"math"

	"github.com/samuelfneumann/pongdqn/utils/floatutils"
)

// CheckpointTolerance is the fraction of the best average episode
// reward a window must reach for the model to be saved
const CheckpointTolerance = 0.9

// State is the bookkeeping of an agent. Its fields are exported for
// inspection; they should only be changed through its methods.
type State struct {
	Step int // Global step, persisted across restarts

	// Window accumulators
	UpdateCount    int
	TotalLoss      float64
	TotalQ         float64
	TotalReward    float64
	EpisodeReward  float64 // Running reward of the current episode
	EpisodeRewards []float64
	Actions        []int
	NumGames       int

	BestAvgEpisodeReward float64
}

// Window summarises the accumulators of a State over a window
type Window struct {
	AvgReward        float64
	AvgLoss          float64
	AvgQ             float64
	MaxEpisodeReward float64
	MinEpisodeReward float64
	AvgEpisodeReward float64
	NumGames         int
	EpisodeRewards   []float64
	Actions          []int
}

// RecordUpdate accumulates the loss and mean action value of one
// training step
func (s *State) RecordUpdate(loss, meanQ float64) {
	s.UpdateCount++
	s.TotalLoss += loss
	s.TotalQ += meanQ
}

// RecordStep accumulates the reward and action of a step. The running
// episode reward only includes non-terminal steps; on a terminal step
// it is appended to the episode list and reset.
func (s *State) RecordStep(reward float64, action int, terminal bool) {
	if terminal {
		s.NumGames++
		s.EpisodeRewards = append(s.EpisodeRewards, s.EpisodeReward)
		s.EpisodeReward = 0
	} else {
		s.EpisodeReward += reward
	}
	s.Actions = append(s.Actions, action)
	s.TotalReward += reward
}

// Window returns the statistics of the current window, which lasted
// length steps. Averages over an empty set are zero.
func (s *State) Window(length int) Window {
	w := Window{
		NumGames:       s.NumGames,
		EpisodeRewards: append([]float64(nil), s.EpisodeRewards...),
		Actions:        append([]int(nil), s.Actions...),
	}
	if length > 0 {
		w.AvgReward = s.TotalReward / float64(length)
	}
	if s.UpdateCount > 0 {
		w.AvgLoss = s.TotalLoss / float64(s.UpdateCount)
		w.AvgQ = s.TotalQ / float64(s.UpdateCount)
	}
	w.MaxEpisodeReward, w.MinEpisodeReward, w.AvgEpisodeReward =
		floatutils.Summary(s.EpisodeRewards)
	return w
}

// Checkpoint applies the checkpoint rule to a window's average episode
// reward: it returns true if avg is at least CheckpointTolerance times
// the best average seen so far, in which case the best is raised to
// max(best, avg).
func (s *State) Checkpoint(avgEpisodeReward float64) bool {
	if CheckpointTolerance*s.BestAvgEpisodeReward > avgEpisodeReward {
		return false
	}
	s.BestAvgEpisodeReward = math.Max(s.BestAvgEpisodeReward,
		avgEpisodeReward)
	return true
}

// ResetWindow zeroes all window accumulators, including the running
// episode reward. The step and best average are kept.
func (s *State) ResetWindow() {
	s.UpdateCount = 0
	s.TotalLoss = 0
	s.TotalQ = 0
	s.TotalReward = 0
	s.EpisodeReward = 0
	s.EpisodeRewards = nil
	s.Actions = nil
	s.NumGames = 0
}

// Clone returns a deep copy of the State
func (s State) Clone() State {
	s.EpisodeRewards = append([]float64(nil), s.EpisodeRewards...)
	s.Actions = append([]int(nil), s.Actions...)
	return s
}
