package optim

// Optimizer is a stateful first-order update rule over a 2D parameter vector.
//
// Init must be called before Step. Every Step appends exactly one entry to the
// history, so after N steps History has N+1 entries and History()[0] is the
// point passed to Init.
type Optimizer interface {
	// Name returns the registry identifier of the variant (e.g. "adam").
	Name() string

	// Init sets the parameters to start, clears all accumulators and resets
	// the history to a single entry.
	Init(start Vector)

	// Step applies one update using the gradient at the current parameters.
	// Returns ErrUninitialized if Init has not been called.
	Step(grad Vector) error

	// Params returns the current (raw) parameter vector.
	Params() (Vector, error)

	// History returns a copy of the recorded trajectory.
	History() []Vector
}

// base holds the state shared by every variant: the learning rate, the live
// parameter vector and the recorded trajectory.
type base struct {
	name    string
	lr      float64
	params  Vector
	history []Vector
	ready   bool
}

func (b *base) Name() string { return b.name }

// LearningRate returns the configured step size.
func (b *base) LearningRate() float64 { return b.lr }

func (b *base) reset(start Vector) {
	b.params = start
	b.history = []Vector{start}
	b.ready = true
}

func (b *base) check() error {
	if !b.ready {
		return ErrUninitialized
	}
	return nil
}

// record appends p to the history. Vector is an array, so the entry never
// aliases the live parameters.
func (b *base) record(p Vector) {
	b.history = append(b.history, p)
}

func (b *base) Params() (Vector, error) {
	if err := b.check(); err != nil {
		return Vector{}, err
	}
	return b.params, nil
}

func (b *base) History() []Vector {
	out := make([]Vector, len(b.history))
	copy(out, b.history)
	return out
}
