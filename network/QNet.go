package network

import (
	"fmt"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// qNet implements a Q-value network over stacked frames: an optional
// convolutional torso over NCHW inputs, fully connected hidden layers,
// and either a linear head or a dueling head.
type qNet struct {
	g      *G.ExprGraph
	config Config

	channels, height, width int
	batchSize               int
	numOutputs              int

	input *G.Node
	conv  []*convLayer
	fc    []*fcLayer // In construction order

	learnables G.Nodes
	model      []G.ValueGrad

	prediction *G.Node
	predVal    G.Value
}

// New returns a new Q-value network for batches of batch inputs, each
// input consisting of channels stacked height x width frames. The
// network predicts outputs values per input.
func New(c Config, channels, height, width, batch,
	outputs int) (NeuralNet, error) {
	if err := c.Validate(); err != nil {
		return nil, errors.Wrap(err, "new")
	}
	if channels < 1 || height < 1 || width < 1 {
		return nil, fmt.Errorf("new: input shape must be positive, have "+
			"(%v, %v, %v)", channels, height, width)
	}
	if batch < 1 || outputs < 1 {
		return nil, fmt.Errorf("new: batch size and outputs must be "+
			"positive, have %v and %v", batch, outputs)
	}
	if _, _, _, err := c.ConvOutput(channels, height, width); err != nil {
		return nil, errors.Wrap(err, "new")
	}

	net := &qNet{
		g:          G.NewGraph(),
		config:     c,
		channels:   channels,
		height:     height,
		width:      width,
		batchSize:  batch,
		numOutputs: outputs,
	}
	if err := exceptions.TryCatch[error](net.build); err != nil {
		return nil, errors.Wrap(err, "new: could not build network")
	}
	return net, nil
}

// build adds the network to its graph, panicking on failure
func (q *qNet) build() {
	init := q.config.Init.InitWFn()
	biasInit := G.Zeroes()
	if q.config.BiasInit != nil {
		biasInit = q.config.BiasInit.InitWFn()
	}
	act := q.config.Activation

	var x *G.Node
	if len(q.config.Conv) > 0 {
		q.input = G.NewTensor(q.g, tensor.Float64, 4,
			G.WithShape(q.batchSize, q.channels, q.height, q.width),
			G.WithName("input"), G.WithInit(G.Zeroes()))

		x = q.input
		in := q.channels
		for i, l := range q.config.Conv {
			layer := newConvLayer(q.g, fmt.Sprintf("conv%d", i), in, l, init,
				act)
			q.conv = append(q.conv, layer)
			x = mustFwd(layer.fwd(x))("convolution %d", i)
			in = l.Filters
		}

		c, h, w, _ := q.config.ConvOutput(q.channels, q.height, q.width)
		x = G.Must(G.Reshape(x, tensor.Shape{q.batchSize, c * h * w}))
	} else {
		q.input = G.NewMatrix(q.g, tensor.Float64,
			G.WithShape(q.batchSize, q.Features()), G.WithName("input"),
			G.WithInit(G.Zeroes()))
		x = q.input
	}

	if !q.config.Dueling {
		hidden := q.stream(x, "fc", init, biasInit)
		head := q.addFC("q", hidden.Shape()[1], q.numOutputs, init, biasInit,
			nil)
		q.prediction = mustFwd(head.fwd(hidden))("output layer")
	} else {
		valueHidden := q.stream(x, "value_fc", init, biasInit)
		advHidden := q.stream(x, "advantage_fc", init, biasInit)

		valueHead := q.addFC("value", valueHidden.Shape()[1], 1, init,
			biasInit, nil)
		advHead := q.addFC("advantage", advHidden.Shape()[1], q.numOutputs,
			init, biasInit, nil)

		value := mustFwd(valueHead.fwd(valueHidden))("value head")
		adv := mustFwd(advHead.fwd(advHidden))("advantage head")

		// mean(A) is computed as A·J with J filled by 1/|A| and V is
		// expanded as V·1ᵀ, which avoids broadcasting along columns.
		centre := make([]float64, q.numOutputs*q.numOutputs)
		for i := range centre {
			centre[i] = 1.0 / float64(q.numOutputs)
		}
		centreNode := G.NewMatrix(q.g, tensor.Float64,
			G.WithShape(q.numOutputs, q.numOutputs),
			G.WithName("advantage_centre"),
			G.WithValue(tensor.New(
				tensor.WithShape(q.numOutputs, q.numOutputs),
				tensor.WithBacking(centre),
			)))

		ones := make([]float64, q.numOutputs)
		floats.AddConst(1, ones)
		onesNode := G.NewMatrix(q.g, tensor.Float64,
			G.WithShape(1, q.numOutputs),
			G.WithName("value_expand"),
			G.WithValue(tensor.New(
				tensor.WithShape(1, q.numOutputs),
				tensor.WithBacking(ones),
			)))

		mean := G.Must(G.Mul(adv, centreNode))
		adv = G.Must(G.Sub(adv, mean))
		value = G.Must(G.Mul(value, onesNode))
		q.prediction = G.Must(G.Add(value, adv))
	}

	G.Read(q.prediction, &q.predVal)
}

// stream adds the configured hidden layers on top of x
func (q *qNet) stream(x *G.Node, prefix string, init,
	biasInit G.InitWFn) *G.Node {
	in := x.Shape()[1]
	for i, size := range q.config.Hidden {
		layer := q.addFC(fmt.Sprintf("%s%d", prefix, i), in, size, init,
			biasInit, q.config.Activation)
		x = mustFwd(layer.fwd(x))("%s layer %d", prefix, i)
		in = size
	}
	return x
}

func (q *qNet) addFC(name string, in, out int, init, biasInit G.InitWFn,
	act *Activation) *fcLayer {
	layer := newFCLayer(q.g, name, in, out, init, biasInit, act)
	q.fc = append(q.fc, layer)
	return layer
}

// mustFwd panics with a description of the failing layer if a forward
// pass could not be added to the graph
func mustFwd(n *G.Node, err error) func(string, ...interface{}) *G.Node {
	return func(format string, args ...interface{}) *G.Node {
		if err != nil {
			exceptions.Panicf("could not compute forward pass of %s: %v",
				fmt.Sprintf(format, args...), err)
		}
		return n
	}
}

// Graph returns the computational graph of the network
func (q *qNet) Graph() *G.ExprGraph {
	return q.g
}

// CloneWithBatch returns a network on a new graph with the same
// topology and weights but a different batch size
func (q *qNet) CloneWithBatch(batch int) (NeuralNet, error) {
	clone, err := New(q.config, q.channels, q.height, q.width, batch,
		q.numOutputs)
	if err != nil {
		return nil, errors.Wrap(err, "cloneWithBatch")
	}
	if err := clone.Set(q); err != nil {
		return nil, errors.Wrap(err, "cloneWithBatch")
	}
	return clone, nil
}

// BatchSize returns the number of inputs in a batch
func (q *qNet) BatchSize() int {
	return q.batchSize
}

// Features returns the number of values in a single input
func (q *qNet) Features() int {
	return q.channels * q.height * q.width
}

// Outputs returns the number of values predicted per input
func (q *qNet) Outputs() int {
	return q.numOutputs
}

// SetInput sets the value of the input node before running the forward
// pass.
func (q *qNet) SetInput(input []float64) error {
	if len(input) != q.Features()*q.batchSize {
		return fmt.Errorf("setInput: invalid number of inputs\n\twant(%v)"+
			"\n\thave(%v)", q.Features()*q.batchSize, len(input))
	}
	inputTensor := tensor.New(
		tensor.WithBacking(input),
		tensor.WithShape(q.input.Shape()...),
	)
	return G.Let(q.input, inputTensor)
}

// Set copies the weights of source into the receiver in place
func (q *qNet) Set(source NeuralNet) error {
	return q.apply(source, "set", func(dst, src []float64) {
		copy(dst, src)
	})
}

// Polyak sets the weights of the receiver to a Polyak average between
// its existing weights and those of source
func (q *qNet) Polyak(source NeuralNet, tau float64) error {
	if tau < 0 || tau > 1 {
		return fmt.Errorf("polyak: tau must be in [0, 1], have %v", tau)
	}
	return q.apply(source, "polyak", func(dst, src []float64) {
		floats.Scale(1-tau, dst)
		floats.AddScaled(dst, tau, src)
	})
}

// apply calls f on the backing data of each pair of corresponding
// learnables
func (q *qNet) apply(source NeuralNet, op string,
	f func(dst, src []float64)) error {
	sourceNodes := source.Learnables()
	nodes := q.Learnables()
	if len(sourceNodes) != len(nodes) {
		return fmt.Errorf("%s: incorrect number of learnables \n\twant(%v)"+
			"\n\thave(%v)", op, len(nodes), len(sourceNodes))
	}

	for i := range nodes {
		dst, err := nodeData(nodes[i])
		if err != nil {
			return errors.Wrap(err, op)
		}
		src, err := nodeData(sourceNodes[i])
		if err != nil {
			return errors.Wrap(err, op)
		}
		if len(dst) != len(src) {
			return fmt.Errorf("%s: learnable %v has %v values, want %v", op,
				nodes[i].Name(), len(src), len(dst))
		}
		f(dst, src)
	}
	return nil
}

func nodeData(n *G.Node) ([]float64, error) {
	if n.Value() == nil {
		return nil, fmt.Errorf("node %v has no value", n.Name())
	}
	data, ok := n.Value().Data().([]float64)
	if !ok {
		return nil, fmt.Errorf("node %v does not hold float64 data", n.Name())
	}
	return data, nil
}

// Learnables returns the learnable nodes of the network
func (q *qNet) Learnables() G.Nodes {
	// Lazy instantiation
	if q.learnables == nil {
		for _, l := range q.conv {
			q.learnables = append(q.learnables, l.filter)
		}
		for _, l := range q.fc {
			q.learnables = append(q.learnables, l.learnables()...)
		}
	}
	return q.learnables
}

// Model returns the learnables nodes with their gradients.
func (q *qNet) Model() []G.ValueGrad {
	if q.model == nil {
		for _, node := range q.Learnables() {
			q.model = append(q.model, node)
		}
	}
	return q.model
}

// Output returns the most recent prediction of the network, valid after
// a machine running the graph has completed
func (q *qNet) Output() G.Value {
	return q.predVal
}

// Prediction returns the node of the computational graph the stores
// the output of the network
func (q *qNet) Prediction() *G.Node {
	return q.prediction
}

// Weights returns a copy of the learnable parameters
func (q *qNet) Weights() Weights {
	nodes := q.Learnables()
	w := Weights{
		Names:  make([]string, len(nodes)),
		Shapes: make([][]int, len(nodes)),
		Data:   make([][]float64, len(nodes)),
	}
	for i, n := range nodes {
		w.Names[i] = n.Name()
		w.Shapes[i] = []int(n.Shape().Clone())
		data, err := nodeData(n)
		if err != nil {
			exceptions.Panicf("weights: %v", err)
		}
		w.Data[i] = append([]float64(nil), data...)
	}
	return w
}

// SetWeights loads a snapshot taken by Weights() into the network in
// place
func (q *qNet) SetWeights(w Weights) error {
	if err := q.Weights().Compatible(w); err != nil {
		return errors.Wrap(err, "setWeights")
	}
	for i, n := range q.Learnables() {
		data, err := nodeData(n)
		if err != nil {
			return errors.Wrap(err, "setWeights")
		}
		copy(data, w.Data[i])
	}
	return nil
}
