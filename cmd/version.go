package main

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/cwbudde/descentviz/internal/objective"
	"github.com/cwbudde/descentviz/internal/optim"
	"github.com/spf13/cobra"
)

// version is set at release time with
// -ldflags "-X main.version=v0.2.0"; otherwise the module version is used.
var version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the descentviz release, commit and registry sizes",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "descentviz version %s\n", resolveVersion())
		if rev := vcsRevision(); rev != "" {
			fmt.Fprintf(out, "  commit: %s\n", rev)
		}
		fmt.Fprintf(out, "  go: %s\n", runtime.Version())
		fmt.Fprintf(out, "  optimizers: %d, functions: %d\n", len(optim.Kinds()), len(objective.Names()))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func resolveVersion() string {
	if version != "dev" {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return version
}

func vcsRevision() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" {
			if len(s.Value) > 12 {
				return s.Value[:12]
			}
			return s.Value
		}
	}
	return ""
}
