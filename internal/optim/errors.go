package optim

import "errors"

// ErrUninitialized is returned when Step or Params is called before Init.
var ErrUninitialized = errors.New("optimizer not initialized: call Init before Step")

// ErrUnknownOptimizer is returned by the factory for unrecognized names.
// Use errors.Is(err, ErrUnknownOptimizer) to check for this error.
var ErrUnknownOptimizer = &UnknownOptimizerError{}

// UnknownOptimizerError reports an optimizer name missing from the registry.
type UnknownOptimizerError struct {
	Name string
}

func (e *UnknownOptimizerError) Error() string {
	if e.Name != "" {
		return "unknown optimizer: " + e.Name
	}
	return "unknown optimizer"
}

func (e *UnknownOptimizerError) Is(target error) bool {
	_, ok := target.(*UnknownOptimizerError)
	return ok
}
