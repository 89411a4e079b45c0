package main

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/cwbudde/descentviz/internal/optim"
	"github.com/spf13/cobra"
)

var optimizersCmd = &cobra.Command{
	Use:   "optimizers",
	Short: "List the available optimizers and the options each accepts",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tDEFAULT LR\tOPTIONS")
		for _, kind := range optim.Kinds() {
			fmt.Fprintf(w, "%s\t%g\t%s\n", kind, optim.DefaultLearningRate(kind), formatOptions(optim.DefaultOptions(kind)))
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(optimizersCmd)
}

// formatOptions renders options as sorted key=value pairs.
func formatOptions(opts optim.Options) string {
	if len(opts) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(opts))
	for k := range opts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%g", k, opts[k])
	}
	return strings.Join(parts, " ")
}
