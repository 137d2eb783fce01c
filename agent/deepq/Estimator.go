package deepq

import (
	"fmt"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"github.com/samuelfneumann/pongdqn/expreplay"
	"github.com/samuelfneumann/pongdqn/network"
	"github.com/samuelfneumann/pongdqn/solver"
	"github.com/samuelfneumann/pongdqn/utils/op"
	"gonum.org/v1/gonum/stat"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// ValueEstimator predicts action values for stacked frames and learns
// them from batches of transitions. It keeps an online network, which
// is trained, and a target network, which provides the bootstrap
// targets and only changes on SyncTarget.
type ValueEstimator interface {
	// PredictOnline returns the online action values of n states stored
	// one after another in states
	PredictOnline(states []float64, n int) ([][]float64, error)

	// PredictTarget returns the target action values of n states
	PredictTarget(states []float64, n int) ([][]float64, error)

	// TrainStep takes one gradient step on the Huber loss of a batch and
	// returns the loss and the mean predicted action value of the batch
	TrainStep(batch expreplay.Batch) (loss, meanQ float64, err error)

	// SyncTarget moves the target weights to the online weights
	SyncTarget() error

	SetLearningRate(lr float64) error
	LearningRate() float64

	Weights() network.Weights
	SetWeights(network.Weights) error

	Close() error
}

// Estimator implements a ValueEstimator on Gorgonia graphs.
//
// Since Gorgonia graphs have a fixed batch size, the online weights
// live in three networks: trainNet, whose weights are adapted by the
// solver, online, used to select actions one state at a time, and
// evalNet, used to predict batches of online action values such as
// those needed by double Q-learning. After each training step the
// weights of trainNet are copied into the other two.
type Estimator struct {
	online   network.NeuralNet // Batch size 1
	onlineVM G.VM

	evalNet network.NeuralNet
	evalVM  G.VM

	trainNet network.NeuralNet
	trainVM  G.VM
	solver   *solver.Solver

	targetNet network.NeuralNet
	targetVM  G.VM

	// Nodes of the trainNet graph holding the update targets and the
	// one-hot encoded actions of a batch
	targets         *G.Node
	selectedActions *G.Node
	lossVal         G.Value

	numActions int
	batchSize  int
	discount   float64
	tau        float64
	doubleQ    bool
}

// NewEstimator returns a new Estimator for the network described by
// config, predicting numActions action values per state. The target
// network starts as a copy of the online network.
func NewEstimator(config Config, numActions int) (*Estimator, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "newEstimator")
	}
	if numActions < 1 {
		return nil, fmt.Errorf("newEstimator: number of actions must be "+
			"positive, have %v", numActions)
	}
	batchSize := config.BatchSize()

	online, err := network.New(config.Network, config.HistoryLength(),
		config.ScreenHeight, config.ScreenWidth, 1, numActions)
	if err != nil {
		return nil, errors.Wrap(err, "newEstimator: could not create "+
			"online network")
	}

	evalNet, err := online.CloneWithBatch(batchSize)
	if err != nil {
		return nil, errors.Wrap(err, "newEstimator: could not create "+
			"evaluation network")
	}

	trainNet, err := online.CloneWithBatch(batchSize)
	if err != nil {
		return nil, errors.Wrap(err, "newEstimator: could not create "+
			"learning network")
	}

	targetNet, err := online.CloneWithBatch(batchSize)
	if err != nil {
		return nil, errors.Wrap(err, "newEstimator: could not create "+
			"target network")
	}

	e := &Estimator{
		online:     online,
		evalNet:    evalNet,
		trainNet:   trainNet,
		solver:     config.Solver.Clone(),
		targetNet:  targetNet,
		numActions: numActions,
		batchSize:  batchSize,
		discount:   config.Discount,
		tau:        config.Tau,
		doubleQ:    config.DoubleQ,
	}

	err = exceptions.TryCatch[error](func() {
		e.addLoss(config.HuberDelta)
	})
	if err != nil {
		return nil, errors.Wrap(err, "newEstimator")
	}

	e.onlineVM = G.NewTapeMachine(online.Graph())
	e.evalVM = G.NewTapeMachine(evalNet.Graph())
	e.targetVM = G.NewTapeMachine(targetNet.Graph())
	e.trainVM = G.NewTapeMachine(
		trainNet.Graph(),
		G.BindDualValues(trainNet.Learnables()...),
	)

	return e, nil
}

// addLoss adds the mean Huber loss of the TD errors of the selected
// actions, and its gradient, to the graph of trainNet
func (e *Estimator) addLoss(huberDelta float64) {
	g := e.trainNet.Graph()

	// Update targets r + γ * Q_target(s', a') are computed outside the
	// graph, see BootstrapTargets
	e.targets = G.NewVector(g, tensor.Float64, G.WithShape(e.batchSize),
		G.WithName("updateTarget"), G.WithInit(G.Zeroes()))

	// Action selected in the previous state. This is needed to compute
	// the loss using the correct action value since the network outputs N
	// action values, one for each action
	e.selectedActions = G.NewMatrix(g, tensor.Float64,
		G.WithShape(e.batchSize, e.numActions), G.WithName("actionSelected"),
		G.WithInit(G.Zeroes()))

	selected := G.Must(G.HadamardProd(e.trainNet.Prediction(),
		e.selectedActions))
	selected = G.Must(G.Sum(selected, 1))

	tdError := G.Must(G.Sub(e.targets, selected))
	losses, err := op.Huber(tdError, huberDelta)
	if err != nil {
		exceptions.Panicf("could not compute huber loss: %v", err)
	}
	cost := G.Must(G.Mean(losses))
	G.Read(cost, &e.lossVal)

	if _, err := G.Grad(cost, e.trainNet.Learnables()...); err != nil {
		exceptions.Panicf("could not compute gradient: %v", err)
	}
}

// PredictOnline implements the ValueEstimator interface
func (e *Estimator) PredictOnline(states []float64, n int) ([][]float64,
	error) {
	var values []float64
	var err error
	if n == 1 {
		values, err = predict(e.online, e.onlineVM, states, n)
	} else {
		values, err = predict(e.evalNet, e.evalVM, states, n)
	}
	if err != nil {
		return nil, errors.Wrap(err, "predictOnline")
	}
	return rows(values, e.numActions), nil
}

// PredictTarget implements the ValueEstimator interface
func (e *Estimator) PredictTarget(states []float64, n int) ([][]float64,
	error) {
	values, err := predict(e.targetNet, e.targetVM, states, n)
	if err != nil {
		return nil, errors.Wrap(err, "predictTarget")
	}
	return rows(values, e.numActions), nil
}

// predict runs net over n states in chunks of the network's batch size
// and returns the action values row-major. The last chunk is padded
// with zero states.
func predict(net network.NeuralNet, vm G.VM, states []float64,
	n int) ([]float64, error) {
	features := net.Features()
	if n < 1 || len(states) != n*features {
		return nil, fmt.Errorf("invalid number of state values \n\twant(%v)"+
			"\n\thave(%v)", n*features, len(states))
	}

	batch := net.BatchSize()
	outputs := net.Outputs()
	values := make([]float64, 0, n*outputs)
	input := make([]float64, batch*features)

	for start := 0; start < n; start += batch {
		end := start + batch
		if end > n {
			end = n
		}
		filled := copy(input, states[start*features:end*features])
		for i := filled; i < len(input); i++ {
			input[i] = 0
		}

		if err := net.SetInput(input); err != nil {
			return nil, err
		}
		if err := vm.RunAll(); err != nil {
			vm.Reset()
			return nil, errors.Wrap(err, "could not run network")
		}
		out, ok := net.Output().Data().([]float64)
		vm.Reset()
		if !ok {
			return nil, fmt.Errorf("network output is not []float64")
		}
		values = append(values, out[:(end-start)*outputs]...)
	}
	return values, nil
}

func rows(values []float64, cols int) [][]float64 {
	out := make([][]float64, len(values)/cols)
	for i := range out {
		out[i] = values[i*cols : (i+1)*cols]
	}
	return out
}

// TrainStep implements the ValueEstimator interface
func (e *Estimator) TrainStep(b expreplay.Batch) (float64, float64, error) {
	if b.Size != e.batchSize {
		return 0, 0, fmt.Errorf("trainStep: invalid batch size \n\twant(%v)"+
			"\n\thave(%v)", e.batchSize, b.Size)
	}

	nextTarget, err := predict(e.targetNet, e.targetVM, b.NextStates, b.Size)
	if err != nil {
		return 0, 0, errors.Wrap(err, "trainStep: could not predict target "+
			"action values")
	}
	var nextOnline []float64
	if e.doubleQ {
		nextOnline, err = predict(e.evalNet, e.evalVM, b.NextStates, b.Size)
		if err != nil {
			return 0, 0, errors.Wrap(err, "trainStep: could not predict "+
				"online action values")
		}
	}

	targets, err := BootstrapTargets(b.Rewards, b.Terminals, nextTarget,
		nextOnline, e.numActions, e.discount, e.doubleQ)
	if err != nil {
		return 0, 0, errors.Wrap(err, "trainStep")
	}
	err = G.Let(e.targets, tensor.New(
		tensor.WithShape(e.batchSize),
		tensor.WithBacking(targets),
	))
	if err != nil {
		return 0, 0, errors.Wrap(err, "trainStep: could not set targets")
	}

	oneHot := make([]float64, e.batchSize*e.numActions)
	for i, a := range b.Actions {
		if a < 0 || a >= e.numActions {
			return 0, 0, fmt.Errorf("trainStep: action %v out of range "+
				"[0, %v)", a, e.numActions)
		}
		oneHot[i*e.numActions+a] = 1.0
	}
	err = G.Let(e.selectedActions, tensor.New(
		tensor.WithShape(e.batchSize, e.numActions),
		tensor.WithBacking(oneHot),
	))
	if err != nil {
		return 0, 0, errors.Wrap(err, "trainStep: could not set actions")
	}

	if err := e.trainNet.SetInput(b.States); err != nil {
		return 0, 0, errors.Wrap(err, "trainStep")
	}

	// Run the learning step
	if err := e.trainVM.RunAll(); err != nil {
		e.trainVM.Reset()
		return 0, 0, errors.Wrap(err, "trainStep: could not run learning "+
			"network")
	}
	loss, ok := e.lossVal.Data().(float64)
	if !ok {
		e.trainVM.Reset()
		return 0, 0, fmt.Errorf("trainStep: loss is not a float64")
	}
	q, ok := e.trainNet.Output().Data().([]float64)
	if !ok {
		e.trainVM.Reset()
		return 0, 0, fmt.Errorf("trainStep: action values are not []float64")
	}
	meanQ := stat.Mean(q, nil)

	err = e.solver.Step(e.trainNet.Model())
	e.trainVM.Reset()
	if err != nil {
		return 0, 0, errors.Wrap(err, "trainStep: could not step solver")
	}

	if err := e.online.Set(e.trainNet); err != nil {
		return 0, 0, errors.Wrap(err, "trainStep")
	}
	if err := e.evalNet.Set(e.trainNet); err != nil {
		return 0, 0, errors.Wrap(err, "trainStep")
	}
	return loss, meanQ, nil
}

// SyncTarget implements the ValueEstimator interface. With tau = 1 the
// online weights are copied, so repeated syncs leave the target
// unchanged.
func (e *Estimator) SyncTarget() error {
	if e.tau >= 1.0 {
		return errors.Wrap(e.targetNet.Set(e.trainNet), "syncTarget")
	}
	return errors.Wrap(e.targetNet.Polyak(e.trainNet, e.tau), "syncTarget")
}

// SetLearningRate sets the learning rate of the solver. Changing the
// learning rate rebuilds the solver, which discards its accumulated
// moment estimates.
func (e *Estimator) SetLearningRate(lr float64) error {
	return errors.Wrap(e.solver.SetLearningRate(lr), "setLearningRate")
}

// LearningRate returns the current learning rate of the solver
func (e *Estimator) LearningRate() float64 {
	return e.solver.Config.LearningRate()
}

// Weights returns a snapshot of the online weights
func (e *Estimator) Weights() network.Weights {
	return e.trainNet.Weights()
}

// TargetWeights returns a snapshot of the target weights
func (e *Estimator) TargetWeights() network.Weights {
	return e.targetNet.Weights()
}

// SetWeights replaces the online weights. The target weights are left
// unchanged.
func (e *Estimator) SetWeights(w network.Weights) error {
	if err := e.trainNet.SetWeights(w); err != nil {
		return errors.Wrap(err, "setWeights")
	}
	if err := e.online.Set(e.trainNet); err != nil {
		return errors.Wrap(err, "setWeights")
	}
	return errors.Wrap(e.evalNet.Set(e.trainNet), "setWeights")
}

// Close closes the machines running the networks
func (e *Estimator) Close() error {
	var firstErr error
	for _, vm := range []G.VM{e.onlineVM, e.evalVM, e.trainVM, e.targetVM} {
		if err := vm.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return errors.Wrap(firstErr, "close")
}
