package main

import (
	"fmt"

	"github.com/spf13/cobra"

	scopeflow "github.com/scopeflow/scopeflow"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of scopeflow",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("scopeflow version %s\n", scopeflow.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
