package network

import (
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// fcLayer implements a fully connected layer of a feed forward neural
// network
type fcLayer struct {
	weights *G.Node
	bias    *G.Node
	act     *Activation
}

// newFCLayer adds the weights of a fully connected layer with the given
// fan in and out to g
func newFCLayer(g *G.ExprGraph, name string, in, out int, init,
	biasInit G.InitWFn, act *Activation) *fcLayer {
	weights := G.NewMatrix(g, tensor.Float64, G.WithShape(in, out),
		G.WithName(name+"_w"), G.WithInit(init))

	var bias *G.Node
	if biasInit != nil {
		bias = G.NewMatrix(g, tensor.Float64, G.WithShape(1, out),
			G.WithName(name+"_b"), G.WithInit(biasInit))
	}
	return &fcLayer{weights: weights, bias: bias, act: act}
}

// fwd adds the forward pass of the fcLayer to the computational graph
func (f *fcLayer) fwd(x *G.Node) (*G.Node, error) {
	x, err := G.Mul(x, f.weights)
	if err != nil {
		return nil, err
	}
	if f.bias != nil {
		// Broadcast the bias weights to all samples along the batch
		// dimension
		if x, err = G.BroadcastAdd(x, f.bias, nil, []byte{0}); err != nil {
			return nil, err
		}
	}
	return f.act.fwd(x)
}

func (f *fcLayer) learnables() G.Nodes {
	if f.bias == nil {
		return G.Nodes{f.weights}
	}
	return G.Nodes{f.weights, f.bias}
}

// convLayer implements an unpadded 2D convolution over NCHW inputs
type convLayer struct {
	filter *G.Node
	kernel int
	stride int
	act    *Activation
}

// newConvLayer adds the filter of a convolution layer to g
func newConvLayer(g *G.ExprGraph, name string, inChannels int, l ConvLayer,
	init G.InitWFn, act *Activation) *convLayer {
	filter := G.NewTensor(g, tensor.Float64, 4,
		G.WithShape(l.Filters, inChannels, l.Kernel, l.Kernel),
		G.WithName(name+"_filter"), G.WithInit(init))

	return &convLayer{
		filter: filter,
		kernel: l.Kernel,
		stride: l.Stride,
		act:    act,
	}
}

// fwd adds the forward pass of the convLayer to the computational graph
func (c *convLayer) fwd(x *G.Node) (*G.Node, error) {
	out, err := G.Conv2d(x, c.filter, tensor.Shape{c.kernel, c.kernel},
		[]int{0, 0}, []int{c.stride, c.stride}, []int{1, 1})
	if err != nil {
		return nil, err
	}
	return c.act.fwd(out)
}
