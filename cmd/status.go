package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/cwbudde/descentviz/internal/server"
	"github.com/cwbudde/descentviz/internal/store"
	"github.com/spf13/cobra"
)

var serverURL string

var statusCmd = &cobra.Command{
	Use:   "status [run-id]",
	Short: "Query server status or a specific run",
	Long: `Queries a running server for run information.
If no run-id is provided, lists all runs.
If run-id is provided, shows detailed status for that run.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "Server URL")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	base := strings.TrimRight(serverURL, "/")
	if len(args) == 0 {
		return listServerRuns(cmd.OutOrStdout(), base+"/api/v1/runs")
	}
	return getRunStatus(cmd.OutOrStdout(), base+"/api/v1/runs/"+args[0], args[0])
}

func getJSON(url string, v any) (int, error) {
	resp, err := http.Get(url)
	if err != nil {
		return 0, fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, fmt.Errorf("server returned error: %s", strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
	}
	return resp.StatusCode, nil
}

func listServerRuns(w io.Writer, url string) error {
	var list struct {
		Jobs   []server.Job    `json:"jobs"`
		Stored []store.RunInfo `json:"stored"`
	}
	if _, err := getJSON(url, &list); err != nil {
		return err
	}

	if len(list.Jobs) == 0 && len(list.Stored) == 0 {
		fmt.Fprintln(w, "No runs found")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN ID\tSTATE\tFUNCTION\tOPTIMIZERS\tPROGRESS")
	for _, job := range list.Jobs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d/%d\n",
			job.ID, job.State, job.Config.Function, strings.Join(job.Config.Optimizers, ","), job.Completed, job.Total)
	}
	for _, info := range list.Stored {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t-\n",
			info.ID, "stored", info.Function, strings.Join(info.Optimizers, ","))
	}
	return tw.Flush()
}

func getRunStatus(w io.Writer, url, runID string) error {
	var status struct {
		Job     *server.Job `json:"job"`
		Elapsed float64     `json:"elapsed"`
		Run     *store.Run  `json:"run"`
	}
	code, err := getJSON(url, &status)
	if code == http.StatusNotFound {
		return fmt.Errorf("run not found: %s", runID)
	}
	if err != nil {
		return err
	}

	if status.Run != nil {
		printRun(w, status.Run)
		return nil
	}
	if status.Job == nil {
		return fmt.Errorf("empty response for run %s", runID)
	}

	job := status.Job
	fmt.Fprintf(w, "Run: %s\n", job.ID)
	fmt.Fprintf(w, "State: %s\n", job.State)
	fmt.Fprintln(w)

	printConfig(w, job.Config)

	fmt.Fprintln(w, "Progress:")
	fmt.Fprintf(w, "  Optimizers done: %d/%d\n", job.Completed, job.Total)
	elapsed := time.Duration(status.Elapsed * float64(time.Second))
	fmt.Fprintf(w, "  Elapsed: %s\n", elapsed.Round(time.Millisecond))
	for _, s := range job.Summaries {
		fmt.Fprintf(w, "  %s: final %s, value %.6g\n", s.Optimizer, s.Final, float64(s.FinalValue))
	}

	if job.Error != "" {
		fmt.Fprintf(w, "\nError: %s\n", job.Error)
	}
	return nil
}

func printConfig(w io.Writer, cfg store.RunConfig) {
	fmt.Fprintln(w, "Configuration:")
	fmt.Fprintf(w, "  Function: %s\n", cfg.Function)
	fmt.Fprintf(w, "  Optimizers: %s\n", strings.Join(cfg.Optimizers, ", "))
	fmt.Fprintf(w, "  Start: %s\n", cfg.Start)
	fmt.Fprintf(w, "  Learning rate: %g\n", cfg.LearningRate)
	fmt.Fprintf(w, "  Iterations: %d\n", cfg.Iterations)
	fmt.Fprintf(w, "  Beta1/Beta2: %s/%s\n", formatBeta(cfg.Beta1), formatBeta(cfg.Beta2))
	fmt.Fprintln(w)
}

func printRun(w io.Writer, run *store.Run) {
	fmt.Fprintf(w, "Run: %s\n", run.ID)
	fmt.Fprintf(w, "Saved: %s\n", run.Timestamp.Format("2006-01-02 15:04:05"))
	fmt.Fprintln(w)

	printConfig(w, run.Config)

	fmt.Fprintln(w, "Results:")
	for _, p := range run.Paths {
		final := p.Points[len(p.Points)-1]
		fmt.Fprintf(w, "  %s: final %s, value %.6g\n", p.Optimizer, final, float64(p.FinalValue))
	}
}

func formatBeta(b *float64) string {
	if b == nil {
		return "default"
	}
	return strconv.FormatFloat(*b, 'g', -1, 64)
}
