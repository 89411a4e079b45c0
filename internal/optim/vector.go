package optim

import "fmt"

// Vector is a point (or gradient) in the two-dimensional search space.
// It is a value type, so assigning or appending it always copies.
type Vector [2]float64

// X returns the first coordinate.
func (v Vector) X() float64 { return v[0] }

// Y returns the second coordinate.
func (v Vector) Y() float64 { return v[1] }

// Slice returns the coordinates as a new slice.
func (v Vector) Slice() []float64 {
	return []float64{v[0], v[1]}
}

func (v Vector) String() string {
	return fmt.Sprintf("(%g, %g)", v[0], v[1])
}

// VectorFromSlice builds a Vector from the first two values of s.
func VectorFromSlice(s []float64) (Vector, error) {
	if len(s) != 2 {
		return Vector{}, fmt.Errorf("expected 2 coordinates, got %d", len(s))
	}
	return Vector{s[0], s[1]}, nil
}
