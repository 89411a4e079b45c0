package optim

// SGD is plain gradient descent: p -= lr * g.
type SGD struct {
	base
}

// NewSGD creates an SGD optimizer with the given learning rate.
func NewSGD(lr float64) *SGD {
	return &SGD{base: base{name: KindSGD.String(), lr: lr}}
}

// Init resets the optimizer to start.
func (o *SGD) Init(start Vector) {
	o.reset(start)
}

// Step applies one descent update.
func (o *SGD) Step(g Vector) error {
	if err := o.check(); err != nil {
		return err
	}
	for i := range o.params {
		o.params[i] -= o.lr * g[i]
	}
	o.record(o.params)
	return nil
}

// ASGD is averaged SGD. The raw parameters follow plain SGD while the
// trajectory records the running average of all raw iterates.
type ASGD struct {
	base
	avg Vector
	t   int
}

// NewASGD creates an averaged SGD optimizer.
func NewASGD(lr float64) *ASGD {
	return &ASGD{base: base{name: KindASGD.String(), lr: lr}}
}

// Init resets the optimizer to start. The running average is seeded with start.
func (o *ASGD) Init(start Vector) {
	o.reset(start)
	o.avg = start
	o.t = 0
}

// Step applies the raw SGD update and folds the new iterate into the average.
func (o *ASGD) Step(g Vector) error {
	if err := o.check(); err != nil {
		return err
	}
	o.t++
	n := float64(o.t)
	for i := range o.params {
		o.params[i] -= o.lr * g[i]
		o.avg[i] = (o.avg[i]*(n-1) + o.params[i]) / n
	}
	o.record(o.avg)
	return nil
}

// Average returns the current running average.
func (o *ASGD) Average() Vector { return o.avg }
