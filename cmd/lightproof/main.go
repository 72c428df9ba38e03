package main

import (
	"fmt"
	"os"

	"tangled.org/atscan.net/lightproof/cmd/lightproof/commands"
)

func main() {
	rootCmd := commands.NewRootCommand()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(commands.ExitCode(err))
	}
}
