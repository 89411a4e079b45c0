package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/cwbudde/descentviz/internal/objective"
	"github.com/cwbudde/descentviz/internal/optim"
	"github.com/cwbudde/descentviz/internal/render"
	"github.com/cwbudde/descentviz/internal/store"
	"github.com/cwbudde/descentviz/internal/trajectory"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// runFlags are the trajectory flags shared by run and compare.
type runFlags struct {
	optimizers   []string
	function     string
	initialPoint []float64
	resultsDir   string
	save         bool
	width        int
	height       int
	fps          int
	maxFrames    int
}

func (f *runFlags) register(cmd *cobra.Command, height int) {
	cmd.Flags().StringSliceVar(&f.optimizers, "optimizers", nil, "Optimizers to compare, e.g. sgd,adam,rmsprop (required)")
	cmd.Flags().StringVar(&f.function, "function", "", "Objective function: "+strings.Join(objective.Names(), ", ")+" (required)")
	cmd.Flags().Float64SliceVar(&f.initialPoint, "initial-point", nil, "Initial point as X,Y (required)")
	cmd.Flags().Float64("lr", 0.01, "Learning rate")
	cmd.Flags().Int("iterations", 100, "Number of iterations")
	cmd.Flags().Float64("beta1", 0.9, "First moment decay for Adam-family optimizers")
	cmd.Flags().Float64("beta2", 0.999, "Second moment decay for Adam-family optimizers")
	cmd.Flags().StringVar(&f.resultsDir, "results-dir", "results", "Directory output files are written to")
	cmd.Flags().BoolVar(&f.save, "save", false, "Also persist the run and its trace under --data-dir")
	cmd.Flags().String("data-dir", "./data", "Base directory for saved runs")
	cmd.Flags().IntVar(&f.width, "width", render.DefaultWidth, "Image width in pixels")
	cmd.Flags().IntVar(&f.height, "height", height, "Image height in pixels")
	cmd.Flags().IntVar(&f.fps, "fps", 15, "Animation frames per second")
	cmd.Flags().IntVar(&f.maxFrames, "max-frames", 200, "Maximum number of animation frames")

	cmd.MarkFlagRequired("optimizers")
	cmd.MarkFlagRequired("function")
	cmd.MarkFlagRequired("initial-point")
}

// runConfig combines the flags with the resolved settings.
func (f *runFlags) runConfig() (store.RunConfig, error) {
	start, err := optim.VectorFromSlice(f.initialPoint)
	if err != nil {
		return store.RunConfig{}, fmt.Errorf("--initial-point: %w", err)
	}
	cfg := store.RunConfig{
		Function:     f.function,
		Optimizers:   f.optimizers,
		Start:        start,
		LearningRate: settings.LearningRate,
		Iterations:   settings.Iterations,
	}
	cfg.SetBetas(settings.Beta1, settings.Beta2)
	return cfg, nil
}

func (f *runFlags) animationOptions() render.AnimationOptions {
	return render.AnimationOptions{FPS: f.fps, MaxFrames: f.maxFrames}
}

var runOpts runFlags

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run optimizers on a function and plot their trajectories",
	Long: `Runs every requested optimizer from the same initial point and writes
the result to --output inside --results-dir. A .png output overlays all
trajectories on a contour plot; a .gif output animates the first optimizer.`,
	Example: `  descentviz run --optimizers sgd,adam,rmsprop --function beale --initial-point 1,1 --lr 0.01 --output beale.png`,
	RunE: runTrajectories,
}

func init() {
	runOpts.register(runCmd, render.DefaultHeight)
	runCmd.Flags().String("output", "output.png", "Output file name; the extension selects the format (.png, .gif)")
	rootCmd.AddCommand(runCmd)
}

func runTrajectories(cmd *cobra.Command, args []string) error {
	cfg, err := runOpts.runConfig()
	if err != nil {
		return err
	}

	result, fn, err := execute(cfg)
	if err != nil {
		return err
	}

	printSummary(cmd.OutOrStdout(), result)

	if runOpts.save {
		if err := saveRun(cmd.OutOrStdout(), cfg, result, fn); err != nil {
			return err
		}
	}

	outPath := filepath.Join(runOpts.resultsDir, filepath.Base(settings.Output))
	plot := render.Plot{
		Function: fn,
		Title:    render.Title(fn.Name, result.Names(), cfg.LearningRate, cfg.Iterations),
		Width:    runOpts.width,
		Height:   runOpts.height,
	}
	err = render.WriteFile(outPath, plot, seriesOf(result), runOpts.animationOptions())
	return reportOutput(cmd.OutOrStdout(), outPath, err)
}

// execute resolves the function and computes all trajectories. Unknown names
// fail here, before any iteration runs.
func execute(cfg store.RunConfig) (*trajectory.Result, *objective.Function, error) {
	fn, err := objective.Lookup(strings.ToLower(cfg.Function))
	if err != nil {
		return nil, nil, err
	}

	result, err := trajectory.Run(trajectory.Config{
		Function:     fn,
		Optimizers:   cfg.Optimizers,
		Start:        cfg.Start,
		LearningRate: cfg.LearningRate,
		Iterations:   cfg.Iterations,
		Options:      cfg.Options(),
	})
	if err != nil {
		return nil, nil, err
	}
	return result, fn, nil
}

// reportOutput turns rendering outcomes into user messages. Format problems
// are not fatal: the trajectories were computed and summarized already.
func reportOutput(w io.Writer, path string, err error) error {
	switch {
	case err == nil:
		fmt.Fprintf(w, "Wrote %s\n", path)
		return nil
	case errors.Is(err, render.ErrEncoderUnavailable):
		slog.Warn("Animation encoder unavailable", "path", path, "error", err)
		fmt.Fprintf(w, "Could not write %s: %v\n", path, render.ErrEncoderUnavailable)
		return nil
	case errors.Is(err, render.ErrUnsupportedFormat):
		fmt.Fprintf(w, "Unsupported output format %q. Use .png for a static plot or .gif for an animation.\n", filepath.Ext(path))
		return nil
	}
	return fmt.Errorf("failed to write output: %w", err)
}

func printSummary(w io.Writer, result *trajectory.Result) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "OPTIMIZER\tFINAL X\tFINAL Y\tVALUE\tTIME")
	for _, p := range result.Paths {
		final := p.Final()
		fmt.Fprintf(tw, "%s\t%.6g\t%.6g\t%.6g\t%s\n", p.Optimizer, final[0], final[1], p.FinalValue, p.Elapsed)
	}
	tw.Flush()
}

func seriesOf(result *trajectory.Result) []render.Series {
	series := make([]render.Series, len(result.Paths))
	for i, p := range result.Paths {
		series[i] = render.Series{Name: p.Optimizer, Points: p.Points}
	}
	return series
}

// saveRun persists the run and its per-step trace under the data directory.
func saveRun(w io.Writer, cfg store.RunConfig, result *trajectory.Result, fn *objective.Function) error {
	runStore, err := store.NewFSStore(settings.DataDir)
	if err != nil {
		return fmt.Errorf("failed to create run store: %w", err)
	}

	cfg.Function = fn.Name
	cfg.Optimizers = result.Names()
	run := store.NewRun(uuid.New().String(), cfg, result)
	if err := runStore.SaveRun(run); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	tw, err := store.NewTraceWriter(runStore.BaseDir(), run.ID, false)
	if err != nil {
		return err
	}
	if err := tw.WriteResult(result, fn.Value); err != nil {
		tw.Close()
		return err
	}
	if err := tw.Close(); err != nil {
		return err
	}

	slog.Info("Run saved", "run_id", run.ID, "dir", runStore.RunDir(run.ID))
	fmt.Fprintf(w, "Saved run %s\n", run.ID)
	return nil
}
