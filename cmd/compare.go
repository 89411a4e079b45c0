package main

import (
	"path/filepath"

	"github.com/cwbudde/descentviz/internal/render"
	"github.com/spf13/cobra"
)

var (
	compareOpts   runFlags
	compareOutput string
)

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Animate several optimizers side by side",
	Long: `Runs every requested optimizer from the same initial point and writes a
GIF with one panel per optimizer, all advancing in lockstep.`,
	Example: `  descentviz compare --optimizers sgd,adam,radam --function rosenbrock --initial-point -1.5,2 --lr 0.005`,
	RunE:    runCompare,
}

func init() {
	compareOpts.register(compareCmd, 420)
	compareCmd.Flags().StringVar(&compareOutput, "output", "comparison.gif", "Output file name (.gif)")
	rootCmd.AddCommand(compareCmd)
}

func runCompare(cmd *cobra.Command, args []string) error {
	cfg, err := compareOpts.runConfig()
	if err != nil {
		return err
	}

	result, fn, err := execute(cfg)
	if err != nil {
		return err
	}

	printSummary(cmd.OutOrStdout(), result)

	if compareOpts.save {
		if err := saveRun(cmd.OutOrStdout(), cfg, result, fn); err != nil {
			return err
		}
	}

	// Each panel needs at least 320 pixels
	width := max(compareOpts.width, 320*len(result.Paths))

	outPath := filepath.Join(compareOpts.resultsDir, filepath.Base(compareOutput))
	plot := render.Plot{
		Function: fn,
		Title:    render.Title(fn.Name, result.Names(), cfg.LearningRate, cfg.Iterations),
		Width:    width,
		Height:   compareOpts.height,
	}
	err = render.WriteComparison(outPath, plot, seriesOf(result), compareOpts.animationOptions())
	return reportOutput(cmd.OutOrStdout(), outPath, err)
}
