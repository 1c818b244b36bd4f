// Package main provides the entry point for the reverie CLI.
package main

import (
	"fmt"
	"os"

	"github.com/reverie-ai/reverie/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
