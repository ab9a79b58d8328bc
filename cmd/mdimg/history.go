package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/mdimg/internal/config"
	"github.com/nao1215/mdimg/internal/database"
	"github.com/nao1215/mdimg/internal/report"
)

// NewHistoryCmd creates the history command.
// This command browses sync runs stored in the history database.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [document]",
		Short: "Browse past sync runs stored in the history database",
		Long: `History lists sync runs recorded by previous 'mdimg sync' invocations.

Every completed sync is saved to a local SQLite database, so you can
review what was downloaded, which URLs kept failing, and how a document's
image set changed over time.

Examples:
  # List recent runs across all documents
  mdimg history

  # List runs for one document
  mdimg history docs/guide.md

  # List all documents that have been synced
  mdimg history --list-documents

  # Show the full report of a stored run by ID
  mdimg history --run-id 5

  # Show URLs that failed in the latest runs of a document
  mdimg history --failing docs/guide.md

  # Output in JSON format
  mdimg history --json docs/guide.md`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	// History listing flags
	cmd.Flags().IntP("limit", "l", 20,
		"Maximum number of runs to list (0 means no limit)")
	cmd.Flags().BoolP("list-documents", "L", false,
		"List all documents that have sync history")

	// Detail flags
	cmd.Flags().Int64P("run-id", "i", 0,
		"Show the full report of a specific run by ID (use the list to see available IDs)")
	cmd.Flags().BoolP("failing", "f", false,
		"List URLs that failed for the specified document, with failure counts")

	// Output format flags
	cmd.Flags().BoolP("json", "j", false,
		"Output in JSON format")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	listDocuments, err := cmd.Flags().GetBool("list-documents")
	if err != nil {
		return err
	}

	runID, err := cmd.Flags().GetInt64("run-id")
	if err != nil {
		return err
	}

	failing, err := cmd.Flags().GetBool("failing")
	if err != nil {
		return err
	}

	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}

	var document string
	if len(args) > 0 {
		document = args[0]
	}

	// Failing URL listing needs a document to be meaningful
	if failing && document == "" {
		return errors.New("a document path is required with --failing")
	}

	// Opened without CreateIfNotExists; browsing history should never
	// create an empty database.
	dbDir := config.XDGDataDir()
	db, err := database.Open(dbDir, database.Options{EnableWAL: true})
	if err != nil {
		return fmt.Errorf("no sync history found (run 'mdimg sync' first): %w", err)
	}
	defer db.Close()

	ctx := context.Background()

	switch {
	case listDocuments:
		return listSyncedDocuments(ctx, db, jsonOutput)
	case runID > 0:
		return showStoredRun(ctx, db, runID, jsonOutput)
	case failing:
		return listFailingURLs(ctx, db, document, jsonOutput)
	default:
		return listSyncRuns(ctx, db, document, limit, jsonOutput)
	}
}

// listSyncedDocuments lists all documents that have sync records.
func listSyncedDocuments(ctx context.Context, db *database.SyncDB, jsonOutput bool) error {
	documents, err := db.ListDocuments(ctx)
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	if jsonOutput {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(documents)
	}

	if len(documents) == 0 {
		fmt.Println("No synced documents found in the database.")
		fmt.Println("\nUse 'mdimg sync <document>' to sync a document.")
		return nil
	}

	fmt.Printf("Synced documents (%d):\n\n", len(documents))
	for _, document := range documents {
		fmt.Printf("  • %s\n", document)
	}
	fmt.Println("\nUse 'mdimg history <document>' to see sync runs for a document.")

	return nil
}

// listSyncRuns lists stored run metadata, newest first.
func listSyncRuns(ctx context.Context, db *database.SyncDB, document string, limit int, jsonOutput bool) error {
	runs, err := db.ListRuns(ctx, document, limit)
	if err != nil {
		return fmt.Errorf("failed to list sync runs: %w", err)
	}

	if jsonOutput {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(runs)
	}

	if len(runs) == 0 {
		if document != "" {
			fmt.Printf("No sync history found for %s\n", document)
		} else {
			fmt.Println("No sync history found.")
		}
		fmt.Println("\nUse 'mdimg sync' to sync a document.")
		return nil
	}

	if document != "" {
		fmt.Printf("Sync history for %s (%d runs):\n\n", document, len(runs))
	} else {
		fmt.Printf("Sync history (%d runs):\n\n", len(runs))
	}

	fmt.Printf("  %-6s  %-20s  %-30s  %s\n", "ID", "Date", "Document", "Result")
	fmt.Println("  " + strings.Repeat("-", 80))

	for _, run := range runs {
		fmt.Printf("  %-6d  %-20s  %-30s  %s\n",
			run.ID,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			truncateDocument(run.Document, 30),
			formatRunResult(run),
		)
	}

	fmt.Println("\nUse 'mdimg history --run-id <id>' to see the full report of a run.")

	return nil
}

// showStoredRun prints the full report of one stored run.
func showStoredRun(ctx context.Context, db *database.SyncDB, runID int64, jsonOutput bool) error {
	syncReport, err := db.GetRunByID(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to get run with ID %d: %w", runID, err)
	}
	if syncReport == nil {
		return fmt.Errorf("run with ID %d not found", runID)
	}

	var writer report.Writer
	if jsonOutput {
		writer = report.NewJSONWriter(os.Stdout, report.WithPrettyPrint())
	} else {
		writer = report.NewSimpleWriter(os.Stdout)
	}

	_, err = writer.Write(syncReport)
	return err
}

// listFailingURLs lists URLs that failed for a document with failure counts.
func listFailingURLs(ctx context.Context, db *database.SyncDB, document string, jsonOutput bool) error {
	failures, err := db.FailingURLs(ctx, document)
	if err != nil {
		return fmt.Errorf("failed to list failing URLs: %w", err)
	}

	if jsonOutput {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(failures)
	}

	if len(failures) == 0 {
		fmt.Printf("No failed downloads recorded for %s\n", document)
		return nil
	}

	fmt.Printf("Failing URLs for %s (%d):\n\n", document, len(failures))
	fmt.Printf("  %-8s  %s\n", "Failures", "URL")
	fmt.Println("  " + strings.Repeat("-", 70))
	for url, count := range failures {
		fmt.Printf("  %-8d  %s\n", count, url)
	}
	fmt.Println("\nRe-run 'mdimg sync' to retry; rewritten documents keep failed URLs intact.")

	return nil
}

// formatRunResult formats a run's counters into a compact result string.
func formatRunResult(run database.SyncRunMetadata) string {
	parts := make([]string, 0, 4)
	parts = append(parts, fmt.Sprintf("D:%d", run.Summary.Downloaded))
	if run.Summary.Skipped > 0 {
		parts = append(parts, fmt.Sprintf("S:%d", run.Summary.Skipped))
	}
	if run.Summary.Failed > 0 {
		parts = append(parts, fmt.Sprintf("F:%d", run.Summary.Failed))
	}
	if run.Summary.FindingCount > 0 {
		parts = append(parts, fmt.Sprintf("W:%d", run.Summary.FindingCount))
	}
	result := strings.Join(parts, " ")
	if run.Elapsed > 0 {
		result += " (" + run.Elapsed.Round(time.Millisecond).String() + ")"
	}
	return result
}

// truncateDocument shortens a document path for table display, keeping
// the end of the path because the filename matters most.
func truncateDocument(document string, maxLen int) string {
	if len(document) <= maxLen {
		return document
	}
	return "..." + document[len(document)-maxLen+3:]
}
