package network

import (
	"fmt"

	"github.com/samuelfneumann/pongdqn/initwfn"
)

// ConvLayer describes a single unpadded convolution with square kernels
type ConvLayer struct {
	Filters int
	Kernel  int
	Stride  int
}

// NatureConv returns the convolutional torso used for Atari DQN
func NatureConv() []ConvLayer {
	return []ConvLayer{
		{Filters: 32, Kernel: 8, Stride: 4},
		{Filters: 64, Kernel: 4, Stride: 2},
		{Filters: 64, Kernel: 3, Stride: 1},
	}
}

// Config describes a Q-network topology: an optional convolutional
// torso followed by fully connected hidden layers and an output head.
//
// With Dueling set the hidden layers are built twice, once for a
// state-value stream and once for an advantage stream, combined as
// Q = V + (A - mean(A)).
type Config struct {
	Conv       []ConvLayer
	Hidden     []int
	Activation *Activation
	Dueling    bool

	Init     *initwfn.InitWFn
	BiasInit *initwfn.InitWFn
}

// NatureConfig returns the Atari DQN topology
func NatureConfig(dueling bool) Config {
	return Config{
		Conv:       NatureConv(),
		Hidden:     []int{512},
		Activation: ReLU(),
		Dueling:    dueling,
		Init:       initwfn.NewGaussian(0, 0.02),
		BiasInit:   initwfn.NewZeroes(),
	}
}

// Validate checks a Config for errors
func (c Config) Validate() error {
	for i, l := range c.Conv {
		if l.Filters < 1 || l.Kernel < 1 || l.Stride < 1 {
			return fmt.Errorf("validate: convolution %v must have positive "+
				"filters, kernel, and stride: %+v", i, l)
		}
	}
	for i, h := range c.Hidden {
		if h < 1 {
			return fmt.Errorf("validate: hidden layer %v must have positive "+
				"size, have %v", i, h)
		}
	}
	if c.Init == nil {
		return fmt.Errorf("validate: no weight initializer")
	}
	return nil
}

// ConvOutput returns the shape (channels, height, width) of the torso's
// output for inputs of the given shape
func (c Config) ConvOutput(channels, height, width int) (int, int, int,
	error) {
	for i, l := range c.Conv {
		if height < l.Kernel || width < l.Kernel {
			return 0, 0, 0, fmt.Errorf("convOutput: input of size %vx%v to "+
				"convolution %v is smaller than its kernel (%v)", height, width,
				i, l.Kernel)
		}
		height = (height-l.Kernel)/l.Stride + 1
		width = (width-l.Kernel)/l.Stride + 1
		channels = l.Filters
	}
	return channels, height, width, nil
}
