package network

import (
	"fmt"

	"gorgonia.org/tensor"
)

// Weights is a detached snapshot of a network's learnable parameters,
// in the order of NeuralNet.Learnables()
type Weights struct {
	Names  []string
	Shapes [][]int
	Data   [][]float64
}

// Len returns the total number of parameters
func (w Weights) Len() int {
	n := 0
	for _, d := range w.Data {
		n += len(d)
	}
	return n
}

// Clone returns a deep copy of the Weights
func (w Weights) Clone() Weights {
	out := Weights{
		Names:  append([]string(nil), w.Names...),
		Shapes: make([][]int, len(w.Shapes)),
		Data:   make([][]float64, len(w.Data)),
	}
	for i := range w.Shapes {
		out.Shapes[i] = append([]int(nil), w.Shapes[i]...)
	}
	for i := range w.Data {
		out.Data[i] = append([]float64(nil), w.Data[i]...)
	}
	return out
}

// Compatible returns an error if the argument Weights cannot be loaded
// into a network described by the receiver
func (w Weights) Compatible(other Weights) error {
	if len(w.Names) != len(other.Names) || len(w.Data) != len(other.Data) {
		return fmt.Errorf("compatible: incorrect number of parameters "+
			"\n\twant(%v) \n\thave(%v)", len(w.Names), len(other.Names))
	}
	for i := range w.Names {
		if w.Names[i] != other.Names[i] {
			return fmt.Errorf("compatible: parameter %v is named %q, want %q",
				i, other.Names[i], w.Names[i])
		}
		if !tensor.Shape(w.Shapes[i]).Eq(tensor.Shape(other.Shapes[i])) {
			return fmt.Errorf("compatible: parameter %q has shape %v, want %v",
				w.Names[i], other.Shapes[i], w.Shapes[i])
		}
		if len(other.Data[i]) != len(w.Data[i]) {
			return fmt.Errorf("compatible: parameter %q has %v values, want "+
				"%v", w.Names[i], len(other.Data[i]), len(w.Data[i]))
		}
	}
	return nil
}
