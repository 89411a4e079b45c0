package main

import (
	"fmt"
	"math"

	"github.com/cwbudde/descentviz/internal/optim"
	"github.com/spf13/cobra"
)

var replayCmd = &cobra.Command{
	Use:   "replay <run-id>",
	Short: "Recompute a saved run and check it matches",
	Long: `Runs the saved configuration again and compares every recorded position
with the stored trajectories. Runs are deterministic, so any difference means
the optimizer implementations changed since the run was saved.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().String("data-dir", "./data", "Base directory for saved runs")
	rootCmd.AddCommand(replayCmd)
}

func runReplay(cmd *cobra.Command, args []string) error {
	runStore, err := openStore()
	if err != nil {
		return err
	}

	run, err := runStore.LoadRun(args[0])
	if err != nil {
		return err
	}

	result, _, err := execute(run.Config)
	if err != nil {
		return fmt.Errorf("failed to recompute run: %w", err)
	}

	if len(result.Paths) != len(run.Paths) {
		return fmt.Errorf("run %s stores %d trajectories but replays %d", run.ID, len(run.Paths), len(result.Paths))
	}

	out := cmd.OutOrStdout()
	mismatches := 0
	for i, stored := range run.Paths {
		fresh := result.Paths[i]
		if pointsEqual(stored.Points, fresh.Points) {
			fmt.Fprintf(out, "%s: identical (%d points)\n", stored.Optimizer, len(stored.Points))
			continue
		}
		mismatches++
		fmt.Fprintf(out, "%s: differs from step %d\n", stored.Optimizer, firstDifference(stored.Points, fresh.Points))
	}

	if mismatches > 0 {
		return fmt.Errorf("%d of %d trajectories differ", mismatches, len(run.Paths))
	}
	return nil
}

// pointsEqual compares trajectories bit for bit, treating NaN as equal to
// itself so diverged runs still replay as identical.
func pointsEqual(a, b []optim.Vector) bool {
	return len(a) == len(b) && firstDifference(a, b) == len(a)
}

// firstDifference returns the first index where a and b differ, or the
// shorter length when one is a prefix of the other.
func firstDifference(a, b []optim.Vector) int {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		for k := 0; k < 2; k++ {
			x, y := a[i][k], b[i][k]
			if x != y && !(math.IsNaN(x) && math.IsNaN(y)) {
				return i
			}
		}
	}
	return n
}
