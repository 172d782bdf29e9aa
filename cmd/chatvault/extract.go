package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/chatvault/internal/conversation"
	"github.com/fyrsmithlabs/chatvault/internal/pipeline"
)

var extractMarkdown bool

// extractCmd renders an archived conversation back as a transcript.
var extractCmd = &cobra.Command{
	Use:   "extract <id>",
	Short: "Render an archived conversation",
	Long: `Look up an archived conversation by id and print its formatted
transcript.

Examples:
  # Plain transcript
  chatvault extract 3f6c9a2e-...

  # Markdown rendering
  chatvault extract --markdown 3f6c9a2e-...`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().BoolVar(&extractMarkdown, "markdown", false, "render as markdown")
}

func runExtract(cmd *cobra.Command, args []string) error {
	_, logger, svc, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	id := args[0]
	if extractMarkdown {
		record, err := svc.Lookup(cmd.Context(), id)
		if err != nil {
			return describeLookupError(id, err)
		}
		fmt.Println(conversation.FormatMarkdown(record))
		return nil
	}

	text, err := svc.Extract(cmd.Context(), id)
	if err != nil {
		return describeLookupError(id, err)
	}
	fmt.Println(text)
	return nil
}

func describeLookupError(id string, err error) error {
	if errors.Is(err, pipeline.ErrNotFound) {
		return fmt.Errorf("no archived conversation with id %s", id)
	}
	return err
}
