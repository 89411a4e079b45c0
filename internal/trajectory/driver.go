// Package trajectory drives optimizers over an objective and collects the
// resulting position histories.
package trajectory

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cwbudde/descentviz/internal/objective"
	"github.com/cwbudde/descentviz/internal/optim"
)

// ErrNoOptimizers is returned when a run names no optimizer.
var ErrNoOptimizers = errors.New("at least one optimizer is required")

// Config describes one comparison run.
type Config struct {
	Function     *objective.Function
	Optimizers   []string
	Start        optim.Vector
	LearningRate float64
	Iterations   int
	// Options are offered to every optimizer; each keeps what it accepts.
	Options optim.Options
	// Progress, if set, is called after each optimizer finishes.
	Progress func(Progress)
}

// Progress reports a finished optimizer within a run.
type Progress struct {
	Optimizer string
	Index     int // 0-based position in Config.Optimizers
	Total     int
	Final     optim.Vector
	Value     float64
}

// Path is the trajectory of one optimizer.
type Path struct {
	Optimizer  string
	Points     []optim.Vector
	FinalValue float64
	Elapsed    time.Duration
}

// Final returns the last recorded position.
func (p Path) Final() optim.Vector {
	return p.Points[len(p.Points)-1]
}

// Result holds every trajectory of a run in request order.
type Result struct {
	Function     string
	Start        optim.Vector
	LearningRate float64
	Iterations   int
	Paths        []Path
}

// Lookup returns the path recorded for the named optimizer.
func (r *Result) Lookup(name string) (Path, bool) {
	for _, p := range r.Paths {
		if p.Optimizer == name {
			return p, true
		}
	}
	return Path{}, false
}

// ByName returns the trajectories keyed by optimizer name.
func (r *Result) ByName() map[string][]optim.Vector {
	out := make(map[string][]optim.Vector, len(r.Paths))
	for _, p := range r.Paths {
		out[p.Optimizer] = p.Points
	}
	return out
}

// Names returns the optimizer names in request order.
func (r *Result) Names() []string {
	names := make([]string, len(r.Paths))
	for i, p := range r.Paths {
		names[i] = p.Optimizer
	}
	return names
}

func (c *Config) validate() error {
	if c.Function == nil {
		return errors.New("objective function is required")
	}
	if len(c.Optimizers) == 0 {
		return ErrNoOptimizers
	}
	if c.Iterations < 0 {
		return fmt.Errorf("iterations must be non-negative, got %d", c.Iterations)
	}
	return nil
}

// Run executes cfg. Every optimizer is resolved before any iteration, so an
// unknown name aborts the run without partial results.
func Run(cfg Config) (*Result, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	optimizers := make([]optim.Optimizer, len(cfg.Optimizers))
	seen := make(map[string]bool, len(cfg.Optimizers))
	for i, name := range cfg.Optimizers {
		o, err := optim.New(name, cfg.LearningRate, cfg.Options)
		if err != nil {
			return nil, err
		}
		// Paths are keyed by name downstream.
		if seen[o.Name()] {
			return nil, fmt.Errorf("optimizer %q listed more than once", o.Name())
		}
		seen[o.Name()] = true
		optimizers[i] = o
	}

	slog.Info("Starting trajectory run",
		"function", cfg.Function.Name,
		"optimizers", len(optimizers),
		"iterations", cfg.Iterations,
		"learning_rate", cfg.LearningRate,
	)

	result := &Result{
		Function:     cfg.Function.Name,
		Start:        cfg.Start,
		LearningRate: cfg.LearningRate,
		Iterations:   cfg.Iterations,
		Paths:        make([]Path, 0, len(optimizers)),
	}

	for i, o := range optimizers {
		start := time.Now()
		points, err := Trace(o, cfg.Function, cfg.Start, cfg.Iterations)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", o.Name(), err)
		}

		path := Path{
			Optimizer:  o.Name(),
			Points:     points,
			FinalValue: cfg.Function.Value(points[len(points)-1]),
			Elapsed:    time.Since(start),
		}
		result.Paths = append(result.Paths, path)

		final := path.Final()
		slog.Info("Optimizer finished",
			"optimizer", path.Optimizer,
			"x", final[0],
			"y", final[1],
			"value", path.FinalValue,
			"elapsed", path.Elapsed,
		)

		if cfg.Progress != nil {
			cfg.Progress(Progress{
				Optimizer: path.Optimizer,
				Index:     i,
				Total:     len(optimizers),
				Final:     final,
				Value:     path.FinalValue,
			})
		}
	}

	return result, nil
}

// Trace initializes o at start and steps it n times along fn's gradient,
// returning the n+1 recorded positions.
func Trace(o optim.Optimizer, fn *objective.Function, start optim.Vector, n int) ([]optim.Vector, error) {
	o.Init(start)
	for i := 0; i < n; i++ {
		p, err := o.Params()
		if err != nil {
			return nil, err
		}
		if err := o.Step(fn.Gradient(p)); err != nil {
			return nil, err
		}
	}
	return o.History(), nil
}
