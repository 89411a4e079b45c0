package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/cwbudde/descentviz/internal/objective"
	"github.com/spf13/cobra"
)

var (
	locate     bool
	searchIter int
	searchPop  int
	searchSeed int64
)

var functionsCmd = &cobra.Command{
	Use:   "functions",
	Short: "List the available objective functions",
	Long: `Lists every objective with its plotting domain and known minimum. With
--locate the minimum is also searched numerically with the mayfly algorithm,
which checks that the registered minimum is where the function says it is.`,
	RunE: runFunctions,
}

func init() {
	defaults := objective.DefaultSearchConfig()
	functionsCmd.Flags().BoolVar(&locate, "locate", false, "Search each domain for its minimum")
	functionsCmd.Flags().IntVar(&searchIter, "search-iters", defaults.Iterations, "Mayfly iterations for --locate")
	functionsCmd.Flags().IntVar(&searchPop, "search-pop", defaults.Population, "Mayfly population for --locate")
	functionsCmd.Flags().Int64Var(&searchSeed, "seed", defaults.Seed, "Random seed for --locate")
	rootCmd.AddCommand(functionsCmd)
}

func runFunctions(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	if locate {
		fmt.Fprintln(w, "NAME\tDOMAIN\tMINIMUM\tLOCATED\tVALUE")
	} else {
		fmt.Fprintln(w, "NAME\tDOMAIN\tMINIMUM")
	}

	search := objective.SearchConfig{Iterations: searchIter, Population: searchPop, Seed: searchSeed}
	for _, name := range objective.Names() {
		fn, err := objective.Lookup(name)
		if err != nil {
			return err
		}
		d := fn.Domain
		domain := fmt.Sprintf("[%g, %g] x [%g, %g]", d.XMin, d.XMax, d.YMin, d.YMax)

		if !locate {
			fmt.Fprintf(w, "%s\t%s\t%s\n", fn.Name, domain, fn.Minimum)
			continue
		}

		at, value, err := objective.LocateMinimum(fn, search)
		if err != nil {
			return fmt.Errorf("%s: %w", fn.Name, err)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t(%.4f, %.4f)\t%.3g\n", fn.Name, domain, fn.Minimum, at[0], at[1], value)
	}
	return w.Flush()
}
