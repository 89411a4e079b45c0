package objective

import (
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/cwbudde/mayfly"

	"github.com/cwbudde/descentviz/internal/optim"
)

// mayfly v0.1.0 rejects populations below this size.
const minPopulation = 20

// SearchConfig configures the gradient-free minimum search.
type SearchConfig struct {
	Iterations int
	Population int
	Seed       int64
}

// DefaultSearchConfig returns the search settings used by the CLI.
func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		Iterations: 200,
		Population: 30,
		Seed:       42,
	}
}

// LocateMinimum searches fn's plotting domain for its lowest value with the
// mayfly metaheuristic. It only needs function values, so it serves as an
// independent reference point for the gradient-based trajectories.
func LocateMinimum(fn *Function, cfg SearchConfig) (optim.Vector, float64, error) {
	if cfg.Iterations <= 0 {
		return optim.Vector{}, 0, fmt.Errorf("iterations must be positive, got %d", cfg.Iterations)
	}
	if cfg.Population < minPopulation {
		cfg.Population = minPopulation
	}

	d := fn.Domain

	// mayfly uses one scalar bound for every dimension, so search the unit
	// square and map into the (possibly non-square) domain.
	toDomain := func(u []float64) optim.Vector {
		return optim.Vector{
			d.XMin + u[0]*(d.XMax-d.XMin),
			d.YMin + u[1]*(d.YMax-d.YMin),
		}
	}

	config := mayfly.NewDefaultConfig()
	config.ObjectiveFunc = func(u []float64) float64 {
		return fn.Value(toDomain(u))
	}
	config.ProblemSize = 2
	config.MaxIterations = cfg.Iterations
	config.NPop = cfg.Population
	config.LowerBound = 0
	config.UpperBound = 1
	config.Rand = rand.New(rand.NewSource(cfg.Seed))

	result, err := mayfly.Optimize(config)
	if err != nil {
		return optim.Vector{}, 0, fmt.Errorf("mayfly search on %s: %w", fn.Name, err)
	}

	best := toDomain(result.GlobalBest.Position)
	slog.Debug("Located minimum", "function", fn.Name, "x", best[0], "y", best[1], "value", result.GlobalBest.Cost)

	return best, result.GlobalBest.Cost, nil
}
