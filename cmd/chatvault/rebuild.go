package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/chatvault/internal/export"
	"github.com/fyrsmithlabs/chatvault/internal/pipeline"
)

var rebuildArchive bool

// rebuildCmd linearizes a ChatGPT export and optionally archives each
// rebuilt conversation through the normal pipeline.
var rebuildCmd = &cobra.Command{
	Use:   "rebuild <export.json>",
	Short: "Rebuild conversations from a ChatGPT export",
	Long: `Rebuild linear conversations from a ChatGPT conversations.json
export. By default the rebuild is reported only; with --archive each
rebuilt conversation is ingested like a pasted transcript.

Examples:
  # Inspect what an export contains
  chatvault rebuild conversations.json

  # Ingest every rebuilt conversation
  chatvault rebuild --archive conversations.json`,
	Args: cobra.ExactArgs(1),
	RunE: runRebuild,
}

func init() {
	rebuildCmd.Flags().BoolVar(&rebuildArchive, "archive", false, "ingest rebuilt conversations into the archive")
}

func runRebuild(cmd *cobra.Command, args []string) error {
	_, logger, svc, err := setup(pipeline.WithNotifier(stdoutNotifier{}))
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	rebuilder := export.NewRebuilder(logger)
	convs, err := rebuilder.ReadFile(args[0])
	if err != nil {
		return err
	}
	report, err := rebuilder.Rebuild(convs)
	if err != nil {
		return err
	}

	fmt.Printf("rebuilt %d conversations, %d failed\n", len(report.Rebuilt), len(report.Failed))
	for _, f := range report.Failed {
		fmt.Printf("  failed: %q (%s): %s\n", f.Title, f.ID, f.Reason)
	}

	if !rebuildArchive {
		return nil
	}

	for _, rb := range report.Rebuilt {
		if _, err := svc.Process(cmd.Context(), rb.Transcript(), false); err != nil {
			return fmt.Errorf("failed to archive %q: %w", rb.Title, err)
		}
	}
	return nil
}
