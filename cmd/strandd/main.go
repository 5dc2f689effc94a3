// Copyright (C) 2025, Strand Protocol Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "strandd",
	Short: "Semantic routing fabric node and diagnostic tools",
	Long: `strandd runs a semantic routing fabric node and provides tools for
working with its wire formats directly: encoding, decoding, and
validating Semantic Address Descriptors, and scoring a descriptor
against a candidate route entry.`,
}

func main() {
	rootCmd.AddCommand(
		serveCmd(),
		sadCmd(),
		scoreCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
