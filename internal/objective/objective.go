// Package objective holds the closed set of two-dimensional test functions
// the optimizers are compared on.
package objective

import (
	"sort"

	"github.com/cwbudde/descentviz/internal/optim"
)

// Domain is the recommended plotting window [XMin, XMax] x [YMin, YMax].
type Domain struct {
	XMin float64 `json:"xmin"`
	XMax float64 `json:"xmax"`
	YMin float64 `json:"ymin"`
	YMax float64 `json:"ymax"`
}

// Contains reports whether p lies inside the domain.
func (d Domain) Contains(p optim.Vector) bool {
	return p[0] >= d.XMin && p[0] <= d.XMax && p[1] >= d.YMin && p[1] <= d.YMax
}

// Function is a stateless objective with its analytic gradient.
type Function struct {
	Name     string
	Value    func(p optim.Vector) float64
	Gradient func(p optim.Vector) optim.Vector
	Domain   Domain
	// Minimum is the known global minimizer.
	Minimum optim.Vector
}

var registry = map[string]*Function{
	"quadratic": {
		Name: "quadratic",
		Value: func(p optim.Vector) float64 {
			return p[0]*p[0] + p[1]*p[1]
		},
		Gradient: func(p optim.Vector) optim.Vector {
			return optim.Vector{2 * p[0], 2 * p[1]}
		},
		Domain:  Domain{-10, 10, -10, 10},
		Minimum: optim.Vector{0, 0},
	},
	"booth": {
		Name: "booth",
		Value: func(p optim.Vector) float64 {
			a := p[0] + 2*p[1] - 7
			b := 2*p[0] + p[1] - 5
			return a*a + b*b
		},
		Gradient: func(p optim.Vector) optim.Vector {
			a := p[0] + 2*p[1] - 7
			b := 2*p[0] + p[1] - 5
			return optim.Vector{2*a + 4*b, 4*a + 2*b}
		},
		Domain:  Domain{-10, 10, -10, 10},
		Minimum: optim.Vector{1, 3},
	},
	"beale": {
		Name: "beale",
		Value: func(p optim.Vector) float64 {
			x, y := p[0], p[1]
			a := 1.5 - x + x*y
			b := 2.25 - x + x*y*y
			c := 2.625 - x + x*y*y*y
			return a*a + b*b + c*c
		},
		Gradient: func(p optim.Vector) optim.Vector {
			x, y := p[0], p[1]
			a := 1.5 - x + x*y
			b := 2.25 - x + x*y*y
			c := 2.625 - x + x*y*y*y
			return optim.Vector{
				2*a*(y-1) + 2*b*(y*y-1) + 2*c*(y*y*y-1),
				2*a*x + 2*b*(2*x*y) + 2*c*(3*x*y*y),
			}
		},
		Domain:  Domain{-4.5, 4.5, -4.5, 4.5},
		Minimum: optim.Vector{3, 0.5},
	},
	"rosenbrock": {
		Name: "rosenbrock",
		Value: func(p optim.Vector) float64 {
			a := 1 - p[0]
			b := p[1] - p[0]*p[0]
			return a*a + 100*b*b
		},
		Gradient: func(p optim.Vector) optim.Vector {
			b := p[1] - p[0]*p[0]
			return optim.Vector{-2*(1-p[0]) - 400*p[0]*b, 200 * b}
		},
		Domain:  Domain{-2, 2, -1, 3},
		Minimum: optim.Vector{1, 1},
	},
}

// Lookup returns the function registered under name.
func Lookup(name string) (*Function, error) {
	fn, ok := registry[name]
	if !ok {
		return nil, &UnknownFunctionError{Name: name}
	}
	return fn, nil
}

// Names returns the registered function names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ErrUnknownFunction is returned by Lookup for unregistered names.
// Use errors.Is(err, ErrUnknownFunction) to check for this error.
var ErrUnknownFunction = &UnknownFunctionError{}

// UnknownFunctionError reports a function name missing from the registry.
type UnknownFunctionError struct {
	Name string
}

func (e *UnknownFunctionError) Error() string {
	if e.Name != "" {
		return "unknown function: " + e.Name
	}
	return "unknown function"
}

func (e *UnknownFunctionError) Is(target error) bool {
	_, ok := target.(*UnknownFunctionError)
	return ok
}
