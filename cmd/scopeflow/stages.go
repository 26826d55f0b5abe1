package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var stagesCmd = &cobra.Command{
	Use:   "stages",
	Short: "List the stage catalog",
	Run: func(cmd *cobra.Command, args []string) {
		reg, err := buildRegistry(cmd)
		if err != nil {
			fatal("Error building catalog: %v", err)
		}
		for i, stage := range reg.Stages() {
			required := "optional"
			if stage.Required {
				required = "required"
			}
			deps := "-"
			if len(stage.Dependencies) > 0 {
				deps = strings.Join(stage.Dependencies, ", ")
			}
			fmt.Printf("%d. %-16s %-8s deps: %s\n", i+1, stage.ID, required, deps)
		}
	},
}

func init() {
	rootCmd.AddCommand(stagesCmd)
}
