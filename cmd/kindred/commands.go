package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// --- report ---

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the nightly ops report",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/ops/nightly-report")
		if err != nil {
			return err
		}

		var report map[string]any
		if err := decodeJSON(resp, &report); err != nil {
			return err
		}

		out, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("formatting report: %w", err)
		}
		fmt.Println(string(out))
		return nil
	},
}

// --- import ---

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a text file as a profile note",
	Long: `Import a text file as a profile note.

The file content is appended to the user's profile log and the rolling
summary is refreshed.

Example:
  kindred import ./session-notes.txt --user 7f3c... --source therapist`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, _ := cmd.Flags().GetString("user")
		source, _ := cmd.Flags().GetString("source")
		if userID == "" {
			return fmt.Errorf("--user is required")
		}

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading file: %w", err)
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		printStep("Importing %s...", args[0])
		resp, err := client.post(cmd.Context(), "/profile/note", map[string]any{
			"user_id":           userID,
			"source":            source,
			"unstructured_note": string(data),
		})
		if err != nil {
			return err
		}

		var result struct {
			Stored         bool   `json:"stored"`
			SummaryPreview string `json:"summary_preview"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Note stored")
		printStatus("Summary", "%s", result.SummaryPreview)
		return nil
	},
}

func init() {
	importCmd.Flags().String("user", "", "user ID to attach the note to")
	importCmd.Flags().String("source", "import", "note source label")
}
