package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/cwbudde/descentviz/internal/objective"
	"github.com/cwbudde/descentviz/internal/optim"
)

// Exit codes: 2 for requests naming something outside the registries,
// 1 for everything else.
func exitCode(err error) int {
	if errors.Is(err, optim.ErrUnknownOptimizer) || errors.Is(err, objective.ErrUnknownFunction) {
		return 2
	}
	return 1
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "descentviz: %v\n", err)
		os.Exit(exitCode(err))
	}
}
