// Package op provides extended Gorgonia graph operations.
package op

import (
	G "gorgonia.org/gorgonia"
)

// Min returns the element-wise minimum of a node and a scalar constant,
// computed as (a + b - |a - b|) / 2 so that the result stays
// differentiable with respect to a.
func Min(a *G.Node, b float64) (*G.Node, error) {
	bNode := G.NewConstant(b)
	half := G.NewConstant(0.5)

	diff, err := G.Sub(a, bNode)
	if err != nil {
		return nil, err
	}
	absDiff, err := G.Abs(diff)
	if err != nil {
		return nil, err
	}
	sum, err := G.Add(a, bNode)
	if err != nil {
		return nil, err
	}
	sum, err = G.Sub(sum, absDiff)
	if err != nil {
		return nil, err
	}
	return G.HadamardProd(sum, half)
}

// Huber computes the element-wise Huber loss of x with threshold delta:
//
//	0.5 * x²                 if |x| <= delta
//	delta * (|x| - delta/2)  otherwise
//
// The quadratic part is min(|x|, delta) and the remainder contributes
// linearly, which keeps the gradient magnitude bounded by delta.
func Huber(x *G.Node, delta float64) (*G.Node, error) {
	abs, err := G.Abs(x)
	if err != nil {
		return nil, err
	}
	quadratic, err := Min(abs, delta)
	if err != nil {
		return nil, err
	}
	linear, err := G.Sub(abs, quadratic)
	if err != nil {
		return nil, err
	}

	sq, err := G.Square(quadratic)
	if err != nil {
		return nil, err
	}
	sq, err = G.HadamardProd(sq, G.NewConstant(0.5))
	if err != nil {
		return nil, err
	}
	linear, err = G.HadamardProd(linear, G.NewConstant(delta))
	if err != nil {
		return nil, err
	}
	return G.Add(sq, linear)
}
