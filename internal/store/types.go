package store

import (
	"fmt"
	"time"

	"github.com/cwbudde/descentviz/internal/optim"
	"github.com/cwbudde/descentviz/internal/trajectory"
)

// RunConfig is the request that produced a run.
type RunConfig struct {
	Function     string       `json:"function"`
	Optimizers   []string     `json:"optimizers"`
	Start        optim.Vector `json:"start"`
	LearningRate float64      `json:"learningRate"`
	Iterations   int          `json:"iterations"`
	Beta1        *float64     `json:"beta1,omitempty"`
	Beta2        *float64     `json:"beta2,omitempty"`
}

// Options returns the optimizer options carried by the config. Unset betas
// are left out so each variant falls back to its own default; a set beta is
// forwarded even when it is zero.
func (c RunConfig) Options() optim.Options {
	opts := optim.Options{}
	if c.Beta1 != nil {
		opts[optim.OptBeta1] = *c.Beta1
	}
	if c.Beta2 != nil {
		opts[optim.OptBeta2] = *c.Beta2
	}
	return opts
}

// SetBetas records both moment decay rates.
func (c *RunConfig) SetBetas(beta1, beta2 float64) {
	c.Beta1 = &beta1
	c.Beta2 = &beta2
}

// PathRecord is the persisted trajectory of one optimizer.
type PathRecord struct {
	Optimizer  string         `json:"optimizer"`
	Points     []optim.Vector `json:"points"`
	FinalValue optim.Float    `json:"finalValue"`
}

// Run is a completed comparison run.
type Run struct {
	// ID is the unique identifier for this run
	ID string `json:"id"`

	// Config is the request that produced the trajectories
	Config RunConfig `json:"config"`

	// Paths holds one trajectory per requested optimizer, in request order
	Paths []PathRecord `json:"paths"`

	// Timestamp records when the run completed
	Timestamp time.Time `json:"timestamp"`
}

// RunInfo contains metadata about a run without the trajectories.
type RunInfo struct {
	ID         string    `json:"id"`
	Function   string    `json:"function"`
	Optimizers []string  `json:"optimizers"`
	Iterations int       `json:"iterations"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewRun converts a driver result into a persistable run.
func NewRun(id string, config RunConfig, result *trajectory.Result) *Run {
	paths := make([]PathRecord, len(result.Paths))
	for i, p := range result.Paths {
		paths[i] = PathRecord{
			Optimizer:  p.Optimizer,
			Points:     p.Points,
			FinalValue: optim.Float(p.FinalValue),
		}
	}
	return &Run{
		ID:        id,
		Config:    config,
		Paths:     paths,
		Timestamp: time.Now(),
	}
}

// ToInfo converts a full Run to RunInfo (metadata only).
func (r *Run) ToInfo() RunInfo {
	return RunInfo{
		ID:         r.ID,
		Function:   r.Config.Function,
		Optimizers: r.Config.Optimizers,
		Iterations: r.Config.Iterations,
		Timestamp:  r.Timestamp,
	}
}

// Validate checks that the run is internally consistent: one trajectory per
// optimizer, each with Iterations+1 points starting at the initial point.
func (r *Run) Validate() error {
	if r.ID == "" {
		return &ValidationError{Field: "ID", Reason: "cannot be empty"}
	}
	if r.Config.Function == "" {
		return &ValidationError{Field: "Config.Function", Reason: "cannot be empty"}
	}
	if len(r.Config.Optimizers) == 0 {
		return &ValidationError{Field: "Config.Optimizers", Reason: "cannot be empty"}
	}
	if r.Config.Iterations < 0 {
		return &ValidationError{Field: "Config.Iterations", Reason: "cannot be negative"}
	}
	if r.Timestamp.IsZero() {
		return &ValidationError{Field: "Timestamp", Reason: "cannot be zero"}
	}
	if len(r.Paths) != len(r.Config.Optimizers) {
		return &ValidationError{
			Field:  "Paths",
			Reason: fmt.Sprintf("expected %d trajectories, got %d", len(r.Config.Optimizers), len(r.Paths)),
		}
	}
	for _, p := range r.Paths {
		if len(p.Points) != r.Config.Iterations+1 {
			return &ValidationError{
				Field:  "Paths." + p.Optimizer,
				Reason: fmt.Sprintf("expected %d points, got %d", r.Config.Iterations+1, len(p.Points)),
			}
		}
		if p.Points[0] != r.Config.Start {
			return &ValidationError{Field: "Paths." + p.Optimizer, Reason: "does not begin at the initial point"}
		}
	}
	return nil
}

// ValidationError represents a run validation error.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}
