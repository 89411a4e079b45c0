package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/cwbudde/descentviz/internal/objective"
	"github.com/cwbudde/descentviz/internal/render"
	"github.com/cwbudde/descentviz/internal/store"
	"github.com/spf13/cobra"
)

var (
	keepLast      int
	olderThanDays int
	forceClean    bool
	showTrace     bool
	renderOutput  string
	renderDir     string
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Manage saved runs",
	Long: `Manage runs saved with --save or by the server: list, inspect, re-render,
delete, and clean old runs.`,
}

var listRunsCmd = &cobra.Command{
	Use:   "list",
	Short: "List all saved runs",
	Long:  `Display all saved runs with their function, optimizers, iterations, timestamp and size on disk.`,
	Args:  cobra.NoArgs,
	RunE:  runListRuns,
}

var showRunCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show a saved run",
	Args:  cobra.ExactArgs(1),
	RunE:  runShowRun,
}

var renderRunCmd = &cobra.Command{
	Use:   "render <run-id>",
	Short: "Render a saved run to an image",
	Long:  `Renders a saved run without recomputing it. The extension of --output selects .png or .gif.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runRenderRun,
}

var deleteRunCmd = &cobra.Command{
	Use:   "delete <run-id>...",
	Short: "Delete saved runs",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runDeleteRuns,
}

var cleanRunsCmd = &cobra.Command{
	Use:   "clean",
	Short: "Clean old runs",
	Long: `Delete old runs based on retention policy.
You can keep only the newest N runs or delete runs older than N days.`,
	Args: cobra.NoArgs,
	RunE: runCleanRuns,
}

func init() {
	rootCmd.AddCommand(runsCmd)

	runsCmd.AddCommand(listRunsCmd)
	runsCmd.AddCommand(showRunCmd)
	runsCmd.AddCommand(renderRunCmd)
	runsCmd.AddCommand(deleteRunCmd)
	runsCmd.AddCommand(cleanRunsCmd)

	runsCmd.PersistentFlags().String("data-dir", "./data", "Base directory for saved runs")

	showRunCmd.Flags().BoolVar(&showTrace, "trace", false, "Print every recorded step from the trace file")

	renderRunCmd.Flags().StringVar(&renderOutput, "output", "", "Output file name (default <run-id>.png)")
	renderRunCmd.Flags().StringVar(&renderDir, "results-dir", "results", "Directory output files are written to")

	cleanRunsCmd.Flags().IntVar(&keepLast, "keep-last", 0, "Keep only the newest N runs (0 = keep all)")
	cleanRunsCmd.Flags().IntVar(&olderThanDays, "older-than", 0, "Delete runs older than N days (0 = no age limit)")
	cleanRunsCmd.Flags().BoolVarP(&forceClean, "force", "f", false, "Skip confirmation prompt")
}

func openStore() (*store.FSStore, error) {
	runStore, err := store.NewFSStore(settings.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open run store: %w", err)
	}
	return runStore, nil
}

func runListRuns(cmd *cobra.Command, args []string) error {
	runStore, err := openStore()
	if err != nil {
		return err
	}

	infos, err := runStore.ListRuns()
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(infos) == 0 {
		fmt.Fprintln(out, "No runs found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN ID\tTIMESTAMP\tFUNCTION\tOPTIMIZERS\tITERATIONS\tSIZE")
	fmt.Fprintln(w, "------\t---------\t--------\t----------\t----------\t----")

	for _, info := range infos {
		size, err := getDirSize(runStore.RunDir(info.ID))
		sizeStr := "unknown"
		if err == nil {
			sizeStr = formatBytes(size)
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			shortID(info.ID),
			info.Timestamp.Format("2006-01-02 15:04:05"),
			info.Function,
			strings.Join(info.Optimizers, ","),
			info.Iterations,
			sizeStr,
		)
	}

	w.Flush()

	fmt.Fprintf(out, "\nTotal runs: %d\n", len(infos))
	return nil
}

func runShowRun(cmd *cobra.Command, args []string) error {
	runStore, err := openStore()
	if err != nil {
		return err
	}

	run, err := runStore.LoadRun(args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	printRun(out, run)

	if showTrace {
		fmt.Fprintln(out)
		return printTrace(out, runStore.BaseDir(), run.ID)
	}
	return nil
}

func printTrace(out io.Writer, baseDir, runID string) error {
	tr, err := store.NewTraceReader(baseDir, runID)
	if err != nil {
		return fmt.Errorf("failed to open trace: %w", err)
	}
	defer tr.Close()

	entries, err := tr.ReadAll()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "OPTIMIZER\tSTEP\tX\tY\tVALUE")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%d\t%.6g\t%.6g\t%.6g\n", e.Optimizer, e.Step, float64(e.X), float64(e.Y), float64(e.Value))
	}
	return w.Flush()
}

func runRenderRun(cmd *cobra.Command, args []string) error {
	runStore, err := openStore()
	if err != nil {
		return err
	}

	run, err := runStore.LoadRun(args[0])
	if err != nil {
		return err
	}

	fn, err := objective.Lookup(run.Config.Function)
	if err != nil {
		return err
	}

	series := make([]render.Series, len(run.Paths))
	names := make([]string, len(run.Paths))
	for i, p := range run.Paths {
		series[i] = render.Series{Name: p.Optimizer, Points: p.Points}
		names[i] = p.Optimizer
	}

	name := renderOutput
	if name == "" {
		name = run.ID + ".png"
	}
	outPath := filepath.Join(renderDir, filepath.Base(name))

	plot := render.Plot{
		Function: fn,
		Title:    render.Title(fn.Name, names, run.Config.LearningRate, run.Config.Iterations),
	}
	err = render.WriteFile(outPath, plot, series, render.DefaultAnimationOptions())
	return reportOutput(cmd.OutOrStdout(), outPath, err)
}

func runDeleteRuns(cmd *cobra.Command, args []string) error {
	runStore, err := openStore()
	if err != nil {
		return err
	}

	for _, id := range args {
		if err := runStore.DeleteRun(id); err != nil {
			return err
		}
		slog.Info("Deleted run", "run_id", id)
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", id)
	}
	return nil
}

func runCleanRuns(cmd *cobra.Command, args []string) error {
	if keepLast == 0 && olderThanDays == 0 {
		return fmt.Errorf("must specify either --keep-last or --older-than")
	}

	runStore, err := openStore()
	if err != nil {
		return err
	}

	infos, err := runStore.ListRuns()
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(infos) == 0 {
		fmt.Fprintln(out, "No runs to clean.")
		return nil
	}

	toDelete := selectRunsForDeletion(infos, keepLast, olderThanDays, time.Now())
	if len(toDelete) == 0 {
		fmt.Fprintln(out, "No runs match deletion criteria.")
		return nil
	}

	fmt.Fprintf(out, "Found %d run(s) to delete:\n", len(toDelete))
	for _, info := range toDelete {
		fmt.Fprintf(out, "  - %s (%s, %s)\n",
			shortID(info.ID),
			info.Function,
			info.Timestamp.Format("2006-01-02 15:04:05"),
		)
	}

	if !forceClean {
		fmt.Fprint(out, "\nProceed with deletion? [y/N]: ")
		var response string
		fmt.Fscanln(cmd.InOrStdin(), &response)
		if response != "y" && response != "Y" {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	deleted := 0
	failed := 0
	for _, info := range toDelete {
		if err := runStore.DeleteRun(info.ID); err != nil {
			slog.Error("Failed to delete run", "run_id", info.ID, "error", err)
			failed++
		} else {
			slog.Info("Deleted run", "run_id", info.ID)
			deleted++
		}
	}

	fmt.Fprintf(out, "\nDeleted %d run(s), %d failed.\n", deleted, failed)
	return nil
}

// selectRunsForDeletion applies the retention policy: runs older than
// olderThanDays, plus everything beyond the newest keepLast. Zero disables a
// rule. The result is ordered oldest first.
func selectRunsForDeletion(infos []store.RunInfo, keepLast, olderThanDays int, now time.Time) []store.RunInfo {
	sorted := make([]store.RunInfo, len(infos))
	copy(sorted, infos)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	var cutoff time.Time
	if olderThanDays > 0 {
		cutoff = now.AddDate(0, 0, -olderThanDays)
	}
	excess := 0
	if keepLast > 0 && len(sorted) > keepLast {
		excess = len(sorted) - keepLast
	}

	var toDelete []store.RunInfo
	for i, info := range sorted {
		if i < excess || (olderThanDays > 0 && info.Timestamp.Before(cutoff)) {
			toDelete = append(toDelete, info)
		}
	}
	return toDelete
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12] + "..."
	}
	return id
}

// getDirSize calculates the total size of a directory
func getDirSize(path string) (int64, error) {
	var size int64
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size, err
}

// formatBytes formats bytes as human-readable string
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
