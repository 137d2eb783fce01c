// Package tracker implements the telemetry emitted by a training run:
// the fixed schema of window summaries, the sinks that receive them,
// and Trackers which follow episodes through the run loop's TimeSteps.
package tracker

import (
	"context"
	"fmt"
)

// Metric is the name of a telemetry value
type Metric string

// Names of all metrics in a Summary
const (
	AverageReward    Metric = "average.reward"
	AverageLoss      Metric = "average.loss"
	AverageQ         Metric = "average.q"
	EpisodeMaxReward Metric = "episode.max reward"
	EpisodeMinReward Metric = "episode.min reward"
	EpisodeAvgReward Metric = "episode.avg reward"
	EpisodeNumGames  Metric = "episode.num of game"
	EpisodeRewards   Metric = "episode.rewards"
	EpisodeActions   Metric = "episode.actions"
	LearningRate     Metric = "training.learning_rate"
)

// ScalarMetrics lists the scalar metrics of a Summary in a fixed order
var ScalarMetrics = []Metric{
	AverageReward,
	AverageLoss,
	AverageQ,
	EpisodeMaxReward,
	EpisodeMinReward,
	EpisodeAvgReward,
	EpisodeNumGames,
	LearningRate,
}

// Summary holds the statistics of one window of training steps
type Summary struct {
	Step int

	AverageReward    float64
	AverageLoss      float64
	AverageQ         float64
	EpisodeMaxReward float64
	EpisodeMinReward float64
	EpisodeAvgReward float64
	NumGames         int
	LearningRate     float64

	EpisodeRewards []float64
	Actions        []int
}

// Scalar returns the value of a scalar metric
func (s Summary) Scalar(m Metric) (float64, error) {
	switch m {
	case AverageReward:
		return s.AverageReward, nil
	case AverageLoss:
		return s.AverageLoss, nil
	case AverageQ:
		return s.AverageQ, nil
	case EpisodeMaxReward:
		return s.EpisodeMaxReward, nil
	case EpisodeMinReward:
		return s.EpisodeMinReward, nil
	case EpisodeAvgReward:
		return s.EpisodeAvgReward, nil
	case EpisodeNumGames:
		return float64(s.NumGames), nil
	case LearningRate:
		return s.LearningRate, nil
	default:
		return 0, fmt.Errorf("scalar: %q is not a scalar metric", m)
	}
}

// Sink receives window summaries. Emit should not retain the Summary's
// slices.
type Sink interface {
	Emit(ctx context.Context, s Summary) error
}
