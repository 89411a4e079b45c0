package optim

import "math"

// AdamConfig contains configuration shared by the Adam family
// (Adam, Adamax, Nadam, RAdam).
type AdamConfig struct {
	LR      float64
	Beta1   float64
	Beta2   float64
	Epsilon float64
}

// moments holds the first and second moment estimates of the Adam family
// together with the 1-based step counter.
type moments struct {
	beta1, beta2 float64
	m, v         Vector
	t            int
}

func (s *moments) clear() {
	s.m = Vector{}
	s.v = Vector{}
	s.t = 0
}

// update advances the step counter and folds g into both moments.
func (s *moments) update(g Vector) {
	s.t++
	for i := range g {
		s.m[i] = s.beta1*s.m[i] + (1-s.beta1)*g[i]
		s.v[i] = s.beta2*s.v[i] + (1-s.beta2)*g[i]*g[i]
	}
}

// bias1 is the first moment bias-correction denominator 1-β1^t.
func (s *moments) bias1() float64 { return 1 - math.Pow(s.beta1, float64(s.t)) }

// bias2 is the second moment bias-correction denominator 1-β2^t.
func (s *moments) bias2() float64 { return 1 - math.Pow(s.beta2, float64(s.t)) }

func (s *moments) mHat() Vector {
	c := s.bias1()
	return Vector{s.m[0] / c, s.m[1] / c}
}

func (s *moments) vHat() Vector {
	c := s.bias2()
	return Vector{s.v[0] / c, s.v[1] / c}
}

// Adam is adaptive moment estimation with bias correction.
type Adam struct {
	base
	moments
	eps float64
}

// NewAdam creates an Adam optimizer.
func NewAdam(cfg AdamConfig) *Adam {
	return newAdam(KindAdam, cfg)
}

func newAdam(kind Kind, cfg AdamConfig) *Adam {
	return &Adam{
		base:    base{name: kind.String(), lr: cfg.LR},
		moments: moments{beta1: cfg.Beta1, beta2: cfg.Beta2},
		eps:     cfg.Epsilon,
	}
}

// Init resets the optimizer to start.
func (o *Adam) Init(start Vector) {
	o.reset(start)
	o.moments.clear()
}

// Step applies one bias-corrected Adam update.
func (o *Adam) Step(g Vector) error {
	if err := o.check(); err != nil {
		return err
	}
	o.apply(g)
	o.record(o.params)
	return nil
}

// apply performs the Adam update without touching the history.
func (o *Adam) apply(g Vector) {
	o.update(g)
	mh, vh := o.mHat(), o.vHat()
	for i := range o.params {
		o.params[i] -= o.lr * mh[i] / (math.Sqrt(vh[i]) + o.eps)
	}
}

// StepCount returns the number of updates applied since Init.
func (o *Adam) StepCount() int { return o.t }

// AdamWConfig contains configuration for AdamW.
type AdamWConfig struct {
	AdamConfig
	WeightDecay float64
}

// AdamW is Adam followed by decoupled weight decay.
type AdamW struct {
	Adam
	weightDecay float64
}

// NewAdamW creates an AdamW optimizer.
func NewAdamW(cfg AdamWConfig) *AdamW {
	return &AdamW{
		Adam:        *newAdam(KindAdamW, cfg.AdamConfig),
		weightDecay: cfg.WeightDecay,
	}
}

// Step applies the Adam update, then p -= lr·wd·p. Only the decayed
// position is recorded.
func (o *AdamW) Step(g Vector) error {
	if err := o.check(); err != nil {
		return err
	}
	o.apply(g)
	for i := range o.params {
		o.params[i] -= o.lr * o.weightDecay * o.params[i]
	}
	o.record(o.params)
	return nil
}

// Adamax replaces the second moment with an exponentially weighted infinity norm.
type Adamax struct {
	base
	beta1, beta2, eps float64
	m, u              Vector
	t                 int
}

// NewAdamax creates an Adamax optimizer.
func NewAdamax(cfg AdamConfig) *Adamax {
	return &Adamax{
		base:  base{name: KindAdamax.String(), lr: cfg.LR},
		beta1: cfg.Beta1,
		beta2: cfg.Beta2,
		eps:   cfg.Epsilon,
	}
}

// Init resets the optimizer to start.
func (o *Adamax) Init(start Vector) {
	o.reset(start)
	o.m = Vector{}
	o.u = Vector{}
	o.t = 0
}

// Step applies one Adamax update.
func (o *Adamax) Step(g Vector) error {
	if err := o.check(); err != nil {
		return err
	}
	o.t++
	step := o.lr / (1 - math.Pow(o.beta1, float64(o.t)))
	for i := range o.params {
		o.m[i] = o.beta1*o.m[i] + (1-o.beta1)*g[i]
		o.u[i] = math.Max(o.beta2*o.u[i], math.Abs(g[i]))
		o.params[i] -= step * o.m[i] / (o.u[i] + o.eps)
	}
	o.record(o.params)
	return nil
}

// Nadam is Adam with a Nesterov lookahead on the first moment.
type Nadam struct {
	Adam
}

// NewNadam creates a Nadam optimizer.
func NewNadam(cfg AdamConfig) *Nadam {
	return &Nadam{Adam: *newAdam(KindNadam, cfg)}
}

// Step applies one Nadam update.
func (o *Nadam) Step(g Vector) error {
	if err := o.check(); err != nil {
		return err
	}
	o.update(g)
	mh, vh := o.mHat(), o.vHat()
	c := o.bias1()
	for i := range o.params {
		nesterov := o.beta1*mh[i] + (1-o.beta1)*g[i]/c
		o.params[i] -= o.lr * nesterov / (math.Sqrt(vh[i]) + o.eps)
	}
	o.record(o.params)
	return nil
}

// radamThreshold is the ρ_t value above which the variance estimate is
// considered tractable and the adaptive term is applied.
const radamThreshold = 5.0

// RAdam is rectified Adam: the adaptive term is suppressed until the
// variance of the second moment estimate is tractable.
type RAdam struct {
	Adam
}

// NewRAdam creates a RAdam optimizer.
func NewRAdam(cfg AdamConfig) *RAdam {
	return &RAdam{Adam: *newAdam(KindRAdam, cfg)}
}

// Step applies one RAdam update.
func (o *RAdam) Step(g Vector) error {
	if err := o.check(); err != nil {
		return err
	}
	o.update(g)
	mh := o.mHat()
	rhoInf, rhoT := o.rho()
	if rhoT > radamThreshold {
		vh := o.vHat()
		r := math.Sqrt((rhoT - 4) * (rhoT - 2) * rhoInf / ((rhoInf - 4) * (rhoInf - 2) * rhoT))
		for i := range o.params {
			o.params[i] -= o.lr * r * mh[i] / (math.Sqrt(vh[i]) + o.eps)
		}
	} else {
		// No eps here: the unrectified step is plain momentum SGD.
		for i := range o.params {
			o.params[i] -= o.lr * mh[i]
		}
	}
	o.record(o.params)
	return nil
}

// rho returns ρ∞ and ρ_t for the current step.
func (o *RAdam) rho() (rhoInf, rhoT float64) {
	rhoInf = 2/(1-o.beta2) - 1
	bt := math.Pow(o.beta2, float64(o.t))
	rhoT = rhoInf - 2*float64(o.t)*bt/(1-bt)
	return rhoInf, rhoT
}

// Rectified reports whether the most recent step applied the adaptive term.
func (o *RAdam) Rectified() bool {
	if o.t == 0 {
		return false
	}
	_, rhoT := o.rho()
	return rhoT > radamThreshold
}
