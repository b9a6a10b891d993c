// Package main is the entry point for the ledgerline CLI.
package main

import (
	"fmt"
	"os"

	"github.com/ledgerline/ledgerline/cmd/ledgerline/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
