// Package main provides the entry point for the flexsearch CLI.
package main

import (
	"os"

	"github.com/flexsearch/flexsearch/cmd/flexsearch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
