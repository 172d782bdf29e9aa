package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/chatvault/internal/pipeline"
)

var (
	processReview bool
	processAll    bool
)

// processCmd ingests a transcript file or stdin into the archive.
var processCmd = &cobra.Command{
	Use:   "process [file|-]",
	Short: "Ingest a transcript into the archive",
	Long: `Process a raw transcript: detect its format, split it into
conversations, skip duplicates, classify, and archive.

Examples:
  # Process a saved transcript
  chatvault process chat.txt

  # Process a paste from stdin with review escalation
  cat chat.txt | chatvault process --review -

  # Archive every conversation in a multi-conversation dump
  chatvault process --all export_dump.txt`,
	Args: cobra.ExactArgs(1),
	RunE: runProcess,
}

func init() {
	processCmd.Flags().BoolVar(&processReview, "review", false, "escalate uncertain classifications for human review")
	processCmd.Flags().BoolVar(&processAll, "all", false, "process every conversation in the input, not just the first")
}

// stdoutNotifier prints one line per outcome.
type stdoutNotifier struct{}

func (stdoutNotifier) Notify(_ context.Context, res pipeline.Result) {
	switch res.Status {
	case pipeline.StatusDuplicateSkipped:
		fmt.Printf("duplicate_skipped: %s\n", res.Reason)
	case pipeline.StatusFormatError:
		fmt.Printf("format_error: %s\n", res.Reason)
	default:
		fmt.Printf("%s: %s (id %s)\n", res.Status, res.Reason, res.Record.ID)
	}
}

func runProcess(cmd *cobra.Command, args []string) error {
	raw, err := readInput(args[0])
	if err != nil {
		return err
	}

	_, logger, svc, err := setup(pipeline.WithNotifier(stdoutNotifier{}))
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx := cmd.Context()
	if processAll {
		results, err := svc.ProcessAll(ctx, raw, processReview)
		if err != nil {
			return err
		}
		archived := 0
		for _, res := range results {
			if res.Record != nil {
				archived++
			}
		}
		fmt.Printf("processed %d conversations, archived %d\n", len(results), archived)
		return nil
	}

	_, err = svc.Process(ctx, raw, processReview)
	return err
}
