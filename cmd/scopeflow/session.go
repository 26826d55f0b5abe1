package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/scopeflow/scopeflow/pkg/domain"
	"github.com/scopeflow/scopeflow/pkg/session"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage scoping sessions",
	Long:  `List, inspect, archive, remove, export and import scoping sessions.`,
}

var sessionLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List all sessions",
	Run: func(cmd *cobra.Command, args []string) {
		eng := mustEngine(cmd)
		defer eng.Close()

		sessions, err := eng.Sessions(cmd.Context())
		if err != nil {
			fatal("Error listing sessions: %v", err)
		}
		if len(sessions) == 0 {
			fmt.Println("No sessions found.")
			return
		}
		for _, s := range sessions {
			fmt.Printf("%s  %-10s  %s (%s)\n", s.ID, s.Status, s.Name, s.OrganizationName)
		}
	},
}

var sessionInspectCmd = &cobra.Command{
	Use:   "inspect <session-id>",
	Short: "Inspect a session and its workflow state",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		eng := mustEngine(cmd)
		defer eng.Close()

		s, err := eng.Session(cmd.Context(), args[0])
		if err != nil {
			fatal("Error loading session: %v", err)
		}
		snap, err := eng.Snapshot(cmd.Context(), args[0], "")
		if err != nil {
			fatal("Error computing snapshot: %v", err)
		}

		out, err := json.MarshalIndent(map[string]any{
			"session":  s,
			"snapshot": snap,
		}, "", "  ")
		if err != nil {
			fatal("Error encoding session: %v", err)
		}
		fmt.Println(string(out))
	},
}

var sessionRmCmd = &cobra.Command{
	Use:   "rm <session-id>...",
	Short: "Remove one or more sessions",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		eng := mustEngine(cmd)
		defer eng.Close()

		reportBulk(eng.BulkDelete(cmd.Context(), args), "removed")
	},
}

var sessionArchiveCmd = &cobra.Command{
	Use:   "archive <session-id>...",
	Short: "Archive one or more sessions",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		eng := mustEngine(cmd)
		defer eng.Close()

		reportBulk(eng.BulkArchive(cmd.Context(), args), "archived")
	},
}

var sessionExportCmd = &cobra.Command{
	Use:   "export <session-id>",
	Short: "Export a session to a portable JSON document",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		eng := mustEngine(cmd)
		defer eng.Close()

		doc, err := eng.Export(cmd.Context(), args[0])
		if err != nil {
			fatal("Error exporting session: %v", err)
		}
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			fatal("Error encoding document: %v", err)
		}

		if out, _ := cmd.Flags().GetString("output"); out != "" {
			if err := os.WriteFile(out, data, 0o644); err != nil {
				fatal("Error writing %s: %v", out, err)
			}
			fmt.Printf("Exported session %s to %s\n", args[0], out)
			return
		}
		fmt.Println(string(data))
	},
}

var sessionImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a session from an exported document",
	Long:  `Reconstructs a session from an export document. The imported session gets a fresh identifier and starts as a draft regardless of the source status.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		eng := mustEngine(cmd)
		defer eng.Close()

		data, err := os.ReadFile(args[0])
		if err != nil {
			fatal("Error reading %s: %v", args[0], err)
		}
		var doc domain.ExportDocument
		if err := json.Unmarshal(data, &doc); err != nil {
			fatal("Error parsing export document: %v", err)
		}

		imported, err := eng.Import(cmd.Context(), doc)
		if err != nil {
			fatal("Error importing session: %v", err)
		}
		fmt.Printf("Imported session %s (%s)\n", imported.ID, imported.Name)
	},
}

func reportBulk(result session.BulkResult, verb string) {
	for _, id := range result.Succeeded {
		fmt.Printf("%s %s\n", verb, id)
	}
	for _, f := range result.Failed {
		fmt.Fprintf(os.Stderr, "failed %s: %v\n", f.ID, f.Err)
	}
	if len(result.Failed) > 0 {
		os.Exit(1)
	}
}

func init() {
	sessionExportCmd.Flags().StringP("output", "o", "", "Write the document to a file instead of stdout")

	sessionCmd.AddCommand(sessionLsCmd)
	sessionCmd.AddCommand(sessionInspectCmd)
	sessionCmd.AddCommand(sessionRmCmd)
	sessionCmd.AddCommand(sessionArchiveCmd)
	sessionCmd.AddCommand(sessionExportCmd)
	sessionCmd.AddCommand(sessionImportCmd)
	rootCmd.AddCommand(sessionCmd)
}
