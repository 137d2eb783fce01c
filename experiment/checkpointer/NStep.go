package checkpointer

import (
	"github.com/samuelfneumann/pongdqn/agent"
	"github.com/samuelfneumann/pongdqn/network"
	ts "github.com/samuelfneumann/pongdqn/timestep"
)

// Saver persists the online weights at a global step
type Saver interface {
	Save(step int, bestAvgEpisodeReward float64, w network.Weights) error
}

// Source is an agent whose weights and bookkeeping can be checkpointed
type Source interface {
	State() agent.State
	Weights() network.Weights
}

// nStep implements checkpointing every N steps, independently of the
// reward-gated checkpoints saved when a statistics window closes
type nStep struct {
	interval int
	source   Source
	saver    Saver
}

// NewNStep returns a checkpointer that checkpoints the weights of
// source every n steps. The checkpoint of the TimeStep numbered t is
// saved as step t+1, the step training continues from.
func NewNStep(n int, source Source, saver Saver) Checkpointer {
	return &nStep{
		interval: n,
		source:   source,
		saver:    saver,
	}
}

// Checkpoint saves a checkpoint if the TimeStep ends an interval
func (n *nStep) Checkpoint(t ts.TimeStep) error {
	if n.interval < 1 || (t.Number+1)%n.interval != 0 {
		return nil
	}
	state := n.source.State()
	return n.saver.Save(t.Number+1, state.BestAvgEpisodeReward,
		n.source.Weights())
}
