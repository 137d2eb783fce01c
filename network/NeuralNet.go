// Package network implements the Q-value networks used by the deep Q
// agent. Networks are built on Gorgonia computational graphs with a
// fixed batch size; a network with a different batch size is obtained
// through CloneWithBatch.
package network

import (
	G "gorgonia.org/gorgonia"
)

// NeuralNet is a feed forward network mapping a batch of stacked frames
// to one value per action
type NeuralNet interface {
	Graph() *G.ExprGraph
	CloneWithBatch(int) (NeuralNet, error)
	BatchSize() int
	Features() int
	Outputs() int
	SetInput([]float64) error

	// Set copies the weights of the argument network into the receiver
	// in place, so that compiled machines bound to the receiver's graph
	// stay valid.
	Set(NeuralNet) error

	// Polyak moves the receiver's weights towards the argument's:
	// w ← (1-τ)w + τw'
	Polyak(NeuralNet, float64) error

	Learnables() G.Nodes
	Model() []G.ValueGrad
	Output() G.Value
	Prediction() *G.Node

	Weights() Weights
	SetWeights(Weights) error
}
