package network

import (
	"fmt"
	"sort"

	G "gorgonia.org/gorgonia"
)

// Activation is the nonlinearity applied after each hidden layer. A
// nil *Activation behaves like the identity.
type Activation struct {
	name string
	f    func(x *G.Node) (*G.Node, error)
}

var activations = map[string]func(x *G.Node) (*G.Node, error){
	"relu":     G.Rectify,
	"tanh":     G.Tanh,
	"identity": nil,
}

func newActivation(name string) *Activation {
	return &Activation{name: name, f: activations[name]}
}

// ReLU returns the rectified linear unit
func ReLU() *Activation { return newActivation("relu") }

// TanH returns the hyperbolic tangent
func TanH() *Activation { return newActivation("tanh") }

// Identity returns the activation which leaves its input unchanged
func Identity() *Activation { return newActivation("identity") }

// ParseActivation looks up an Activation by name
func ParseActivation(name string) (*Activation, error) {
	if _, ok := activations[name]; !ok {
		names := make([]string, 0, len(activations))
		for n := range activations {
			names = append(names, n)
		}
		sort.Strings(names)
		return nil, fmt.Errorf("parseActivation: no activation %q, want "+
			"one of %v", name, names)
	}
	return newActivation(name), nil
}

func (a *Activation) fwd(x *G.Node) (*G.Node, error) {
	if a.IsIdentity() {
		return x, nil
	}
	return a.f(x)
}

func (a *Activation) String() string {
	if a == nil || a.name == "" {
		return "identity"
	}
	return a.name
}

// IsIdentity reports whether the Activation leaves its input unchanged
func (a *Activation) IsIdentity() bool {
	return a == nil || a.f == nil
}

// MarshalText stores an Activation by name in JSON configurations
func (a *Activation) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (a *Activation) UnmarshalText(text []byte) error {
	parsed, err := ParseActivation(string(text))
	if err != nil {
		return err
	}
	*a = *parsed
	return nil
}
