package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/chatvault/internal/pipeline"
	"github.com/fyrsmithlabs/chatvault/internal/watch"
)

var watchReview bool

// watchCmd tails an inbox directory for dropped transcripts.
var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Watch an inbox directory for transcripts",
	Long: `Watch a directory and ingest every .txt, .md, or .json file
dropped into it. Processed files are renamed with a .processed suffix;
failed files stay in place for retry.

Examples:
  chatvault watch ~/chat-inbox
  chatvault watch --review ~/chat-inbox`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchReview, "review", false, "escalate uncertain classifications for human review")
}

func runWatch(cmd *cobra.Command, args []string) error {
	_, logger, svc, err := setup(pipeline.WithNotifier(stdoutNotifier{}))
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	handler := func(ctx context.Context, raw, _ string) error {
		_, err := svc.ProcessAll(ctx, raw, watchReview)
		return err
	}
	w, err := watch.New(args[0], handler, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := w.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
