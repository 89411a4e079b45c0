package optim

import "math"

// AdagradConfig contains configuration for Adagrad.
type AdagradConfig struct {
	LR      float64
	Epsilon float64
}

// Adagrad scales each coordinate by the root of its accumulated squared gradients.
type Adagrad struct {
	base
	eps   float64
	sumSq Vector
}

// NewAdagrad creates an Adagrad optimizer.
func NewAdagrad(cfg AdagradConfig) *Adagrad {
	return &Adagrad{
		base: base{name: KindAdagrad.String(), lr: cfg.LR},
		eps:  cfg.Epsilon,
	}
}

// Init resets the optimizer to start.
func (o *Adagrad) Init(start Vector) {
	o.reset(start)
	o.sumSq = Vector{}
}

// Step applies s += g²; p -= lr*g/(sqrt(s)+eps).
func (o *Adagrad) Step(g Vector) error {
	if err := o.check(); err != nil {
		return err
	}
	for i := range o.params {
		o.sumSq[i] += g[i] * g[i]
		o.params[i] -= o.lr * g[i] / (math.Sqrt(o.sumSq[i]) + o.eps)
	}
	o.record(o.params)
	return nil
}

// AdadeltaConfig contains configuration for Adadelta.
type AdadeltaConfig struct {
	LR      float64
	Rho     float64
	Epsilon float64
}

// Adadelta keeps decaying averages of squared gradients and squared updates.
// The learning rate only scales the final update and is usually 1.
type Adadelta struct {
	base
	rho, eps    float64
	avgSqGrad   Vector
	avgSqUpdate Vector
}

// NewAdadelta creates an Adadelta optimizer.
func NewAdadelta(cfg AdadeltaConfig) *Adadelta {
	return &Adadelta{
		base: base{name: KindAdadelta.String(), lr: cfg.LR},
		rho:  cfg.Rho,
		eps:  cfg.Epsilon,
	}
}

// Init resets the optimizer to start.
func (o *Adadelta) Init(start Vector) {
	o.reset(start)
	o.avgSqGrad = Vector{}
	o.avgSqUpdate = Vector{}
}

// Step applies one Adadelta update.
func (o *Adadelta) Step(g Vector) error {
	if err := o.check(); err != nil {
		return err
	}
	for i := range o.params {
		o.avgSqGrad[i] = o.rho*o.avgSqGrad[i] + (1-o.rho)*g[i]*g[i]
		u := -(math.Sqrt(o.avgSqUpdate[i]+o.eps) / math.Sqrt(o.avgSqGrad[i]+o.eps)) * g[i]
		o.avgSqUpdate[i] = o.rho*o.avgSqUpdate[i] + (1-o.rho)*u*u
		o.params[i] += o.lr * u
	}
	o.record(o.params)
	return nil
}

// RMSpropConfig contains configuration for RMSprop.
type RMSpropConfig struct {
	LR      float64
	Alpha   float64
	Epsilon float64
}

// RMSprop divides the gradient by a decaying RMS of recent gradients.
type RMSprop struct {
	base
	alpha, eps float64
	avgSqGrad  Vector
}

// NewRMSprop creates an RMSprop optimizer.
func NewRMSprop(cfg RMSpropConfig) *RMSprop {
	return &RMSprop{
		base:  base{name: KindRMSprop.String(), lr: cfg.LR},
		alpha: cfg.Alpha,
		eps:   cfg.Epsilon,
	}
}

// Init resets the optimizer to start.
func (o *RMSprop) Init(start Vector) {
	o.reset(start)
	o.avgSqGrad = Vector{}
}

// Step applies sg = α·sg + (1-α)·g²; p -= lr·g/(sqrt(sg)+eps).
func (o *RMSprop) Step(g Vector) error {
	if err := o.check(); err != nil {
		return err
	}
	for i := range o.params {
		o.avgSqGrad[i] = o.alpha*o.avgSqGrad[i] + (1-o.alpha)*g[i]*g[i]
		o.params[i] -= o.lr * g[i] / (math.Sqrt(o.avgSqGrad[i]) + o.eps)
	}
	o.record(o.params)
	return nil
}
