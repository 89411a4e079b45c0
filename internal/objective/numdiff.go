package objective

import (
	"math"

	"github.com/cwbudde/descentviz/internal/optim"
)

// cubeEps is the step scale that balances truncation and rounding error for
// central differences.
var cubeEps = math.Cbrt(math.Nextafter(1, 2) - 1)

// NumericGradient estimates the gradient of value at p with central
// differences. The absolute step for each coordinate is cubeEps*max(1,|x|).
func NumericGradient(value func(optim.Vector) float64, p optim.Vector) optim.Vector {
	var g optim.Vector
	for i := range p {
		h := cubeEps * math.Max(1, math.Abs(p[i]))
		fwd, bwd := p, p
		fwd[i] += h
		bwd[i] -= h
		g[i] = (value(fwd) - value(bwd)) / (fwd[i] - bwd[i])
	}
	return g
}

// GradientError returns the largest relative deviation between the analytic
// gradient of fn and its central difference estimate at p.
func GradientError(fn *Function, p optim.Vector) float64 {
	analytic := fn.Gradient(p)
	numeric := NumericGradient(fn.Value, p)

	var worst float64
	for i := range p {
		scale := math.Max(1, math.Abs(analytic[i]))
		worst = math.Max(worst, math.Abs(analytic[i]-numeric[i])/scale)
	}
	return worst
}
