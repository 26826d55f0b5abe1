package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	scopeflow "github.com/scopeflow/scopeflow"
)

func mustEngine(cmd *cobra.Command) *scopeflow.Engine {
	eng, err := buildEngine(cmd)
	if err != nil {
		fatal("Error initializing engine: %v", err)
	}
	return eng
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
