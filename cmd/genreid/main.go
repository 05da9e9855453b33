// Package main is the entry point for the genreid CLI.
//
// Usage:
//
//	genreid [flags] <command> [args]
//
// Commands:
//
//	serve    - HTTP classification API
//	predict  - Classify local files
//	extract  - Build a training feature table from a labelled dataset
//	schema   - Print the feature extraction spec
package main

import (
	"fmt"
	"os"

	"github.com/satindergrewal/genreid/cmd/genreid/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
