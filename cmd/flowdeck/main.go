// Package main is the entry point for the FlowDeck CLI.
package main

import (
	"os"

	"github.com/FlowDeck/FlowDeck/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
