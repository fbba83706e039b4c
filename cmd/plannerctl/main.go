package main

import (
	"fmt"
	"os"

	"github.com/benvon/frog-planner/cmd/plannerctl/commands"
)

func main() {
	rootCmd := commands.NewRootCmd(commands.DefaultDeps())
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
