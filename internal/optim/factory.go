package optim

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// Kind identifies an optimizer variant.
type Kind int

const (
	KindSGD Kind = iota
	KindASGD
	KindAdagrad
	KindAdadelta
	KindRMSprop
	KindAdam
	KindAdamW
	KindAdamax
	KindNadam
	KindRAdam
)

var kindNames = [...]string{
	KindSGD:      "sgd",
	KindASGD:     "asgd",
	KindAdagrad:  "adagrad",
	KindAdadelta: "adadelta",
	KindRMSprop:  "rmsprop",
	KindAdam:     "adam",
	KindAdamW:    "adamw",
	KindAdamax:   "adamax",
	KindNadam:    "nadam",
	KindRAdam:    "radam",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// Kinds returns every registered variant in registry order.
func Kinds() []Kind {
	kinds := make([]Kind, len(kindNames))
	for i := range kindNames {
		kinds[i] = Kind(i)
	}
	return kinds
}

// ParseKind resolves a case-insensitive optimizer name.
func ParseKind(name string) (Kind, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for i, s := range kindNames {
		if s == n {
			return Kind(i), nil
		}
	}
	return 0, &UnknownOptimizerError{Name: name}
}

// Names of the configuration fields a variant may accept.
const (
	OptBeta1       = "beta1"
	OptBeta2       = "beta2"
	OptEpsilon     = "epsilon"
	OptRho         = "rho"
	OptAlpha       = "alpha"
	OptWeightDecay = "weight_decay"
)

// Options is a set of named configuration values. Each variant picks the
// fields it recognizes and ignores the rest.
type Options map[string]float64

// variant describes what the factory needs to build one kind.
type variant struct {
	lr       float64 // default learning rate
	defaults Options // accepted fields and their defaults
	build    func(lr float64, o Options) Optimizer
}

func adamConfig(lr float64, o Options) AdamConfig {
	return AdamConfig{LR: lr, Beta1: o[OptBeta1], Beta2: o[OptBeta2], Epsilon: o[OptEpsilon]}
}

func adamDefaults() Options {
	return Options{OptBeta1: 0.9, OptBeta2: 0.999, OptEpsilon: 1e-8}
}

var registry = map[Kind]variant{
	KindSGD: {
		lr:       0.01,
		defaults: Options{},
		build:    func(lr float64, _ Options) Optimizer { return NewSGD(lr) },
	},
	KindASGD: {
		lr:       0.01,
		defaults: Options{},
		build:    func(lr float64, _ Options) Optimizer { return NewASGD(lr) },
	},
	KindAdagrad: {
		lr:       0.01,
		defaults: Options{OptEpsilon: 1e-8},
		build: func(lr float64, o Options) Optimizer {
			return NewAdagrad(AdagradConfig{LR: lr, Epsilon: o[OptEpsilon]})
		},
	},
	KindAdadelta: {
		lr:       1.0,
		defaults: Options{OptRho: 0.9, OptEpsilon: 1e-6},
		build: func(lr float64, o Options) Optimizer {
			return NewAdadelta(AdadeltaConfig{LR: lr, Rho: o[OptRho], Epsilon: o[OptEpsilon]})
		},
	},
	KindRMSprop: {
		lr:       0.01,
		defaults: Options{OptAlpha: 0.99, OptEpsilon: 1e-8},
		build: func(lr float64, o Options) Optimizer {
			return NewRMSprop(RMSpropConfig{LR: lr, Alpha: o[OptAlpha], Epsilon: o[OptEpsilon]})
		},
	},
	KindAdam: {
		lr:       0.001,
		defaults: adamDefaults(),
		build:    func(lr float64, o Options) Optimizer { return NewAdam(adamConfig(lr, o)) },
	},
	KindAdamW: {
		lr:       0.001,
		defaults: Options{OptBeta1: 0.9, OptBeta2: 0.999, OptEpsilon: 1e-8, OptWeightDecay: 0.01},
		build: func(lr float64, o Options) Optimizer {
			return NewAdamW(AdamWConfig{AdamConfig: adamConfig(lr, o), WeightDecay: o[OptWeightDecay]})
		},
	},
	KindAdamax: {
		lr:       0.002,
		defaults: adamDefaults(),
		build:    func(lr float64, o Options) Optimizer { return NewAdamax(adamConfig(lr, o)) },
	},
	KindNadam: {
		lr:       0.001,
		defaults: adamDefaults(),
		build:    func(lr float64, o Options) Optimizer { return NewNadam(adamConfig(lr, o)) },
	},
	KindRAdam: {
		lr:       0.001,
		defaults: adamDefaults(),
		build:    func(lr float64, o Options) Optimizer { return NewRAdam(adamConfig(lr, o)) },
	},
}

// New creates an optimizer by name. Options the variant does not accept are
// dropped; accepted options that are absent take their defaults. A
// non-positive lr selects the variant's default learning rate.
func New(name string, lr float64, opts Options) (Optimizer, error) {
	kind, err := ParseKind(name)
	if err != nil {
		return nil, err
	}
	return NewKind(kind, lr, opts)
}

// NewKind is New for an already resolved kind. A kind outside Kinds()
// yields an *UnknownOptimizerError.
func NewKind(kind Kind, lr float64, opts Options) (Optimizer, error) {
	v, ok := registry[kind]
	if !ok {
		return nil, &UnknownOptimizerError{Name: fmt.Sprintf("kind(%d)", int(kind))}
	}
	if lr <= 0 {
		lr = v.lr
	}

	resolved := make(Options, len(v.defaults))
	for field, def := range v.defaults {
		resolved[field] = def
	}
	for field, val := range opts {
		if _, ok := v.defaults[field]; !ok {
			slog.Debug("Dropping unsupported optimizer option", "optimizer", kind.String(), "option", field)
			continue
		}
		resolved[field] = val
	}

	return v.build(lr, resolved), nil
}

// AcceptedOptions returns the sorted field names the kind recognizes.
func AcceptedOptions(kind Kind) []string {
	fields := make([]string, 0, len(registry[kind].defaults))
	for field := range registry[kind].defaults {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}

// DefaultOptions returns a copy of the kind's option defaults.
func DefaultOptions(kind Kind) Options {
	out := make(Options, len(registry[kind].defaults))
	for field, def := range registry[kind].defaults {
		out[field] = def
	}
	return out
}

// DefaultLearningRate returns the learning rate used when none is given.
func DefaultLearningRate(kind Kind) float64 {
	return registry[kind].lr
}
