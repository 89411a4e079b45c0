package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strings"

	"github.com/cwbudde/descentviz/internal/config"
	"github.com/cwbudde/descentviz/internal/objective"
	"github.com/cwbudde/descentviz/internal/optim"
	"github.com/cwbudde/descentviz/internal/render"
	"github.com/cwbudde/descentviz/internal/store"
	"github.com/cwbudde/descentviz/internal/trajectory"
)

// maxIterations bounds a single request so one client cannot pin a worker.
const maxIterations = 100000

// runRequest is the body of POST /api/v1/runs. Pointer fields distinguish
// "absent" from zero so defaults only fill what the client left out.
type runRequest struct {
	Function     string        `json:"function"`
	Optimizers   []string      `json:"optimizers"`
	Start        *optim.Vector `json:"start"`
	LearningRate *float64      `json:"learningRate"`
	Iterations   *int          `json:"iterations"`
	Beta1        *float64      `json:"beta1"`
	Beta2        *float64      `json:"beta2"`
}

// toConfig applies defaults and validates the request. Optimizer names are
// canonicalized so stored runs always use registry spelling.
func (req runRequest) toConfig(d config.Config) (RunConfig, error) {
	cfg := RunConfig{
		Function:     strings.ToLower(strings.TrimSpace(req.Function)),
		LearningRate: d.LearningRate,
		Iterations:   d.Iterations,
	}

	if cfg.Function == "" {
		return cfg, fmt.Errorf("function is required")
	}
	if _, err := objective.Lookup(cfg.Function); err != nil {
		return cfg, err
	}

	if len(req.Optimizers) == 0 {
		return cfg, fmt.Errorf("at least one optimizer is required")
	}
	seen := make(map[string]bool, len(req.Optimizers))
	for _, name := range req.Optimizers {
		kind, err := optim.ParseKind(name)
		if err != nil {
			return cfg, err
		}
		if seen[kind.String()] {
			return cfg, fmt.Errorf("optimizer %s listed more than once", kind)
		}
		seen[kind.String()] = true
		cfg.Optimizers = append(cfg.Optimizers, kind.String())
	}

	if req.Start == nil {
		return cfg, fmt.Errorf("start is required")
	}
	if !finite(req.Start[0]) || !finite(req.Start[1]) {
		return cfg, fmt.Errorf("start must be finite, got %v", *req.Start)
	}
	cfg.Start = *req.Start

	if req.LearningRate != nil {
		cfg.LearningRate = *req.LearningRate
	}
	if !finite(cfg.LearningRate) || cfg.LearningRate <= 0 {
		return cfg, fmt.Errorf("learningRate must be positive, got %v", cfg.LearningRate)
	}

	if req.Iterations != nil {
		cfg.Iterations = *req.Iterations
	}
	if cfg.Iterations < 0 || cfg.Iterations > maxIterations {
		return cfg, fmt.Errorf("iterations must be in [0, %d], got %d", maxIterations, cfg.Iterations)
	}

	beta1, beta2 := d.Beta1, d.Beta2
	if req.Beta1 != nil {
		beta1 = *req.Beta1
	}
	if req.Beta2 != nil {
		beta2 = *req.Beta2
	}
	for name, b := range map[string]float64{"beta1": beta1, "beta2": beta2} {
		if !(b >= 0 && b < 1) {
			return cfg, fmt.Errorf("%s must be in [0, 1), got %v", name, b)
		}
	}
	cfg.SetBetas(beta1, beta2)

	return cfg, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// seriesFromResult converts driver output into render input.
func seriesFromResult(result *trajectory.Result) []render.Series {
	series := make([]render.Series, len(result.Paths))
	for i, p := range result.Paths {
		series[i] = render.Series{Name: p.Optimizer, Points: p.Points}
	}
	return series
}

// seriesFromRun converts a stored run into render input.
func seriesFromRun(run *store.Run) []render.Series {
	series := make([]render.Series, len(run.Paths))
	for i, p := range run.Paths {
		series[i] = render.Series{Name: p.Optimizer, Points: p.Points}
	}
	return series
}

func plotTitle(cfg RunConfig) string {
	return render.Title(cfg.Function, cfg.Optimizers, cfg.LearningRate, cfg.Iterations)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
