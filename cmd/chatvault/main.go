// Package main implements the chatvault CLI: ingest chat transcripts into
// the archive, extract stored conversations, rebuild ChatGPT exports, and
// watch an inbox directory.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/chatvault/internal/config"
	"github.com/fyrsmithlabs/chatvault/internal/logging"
	"github.com/fyrsmithlabs/chatvault/internal/pipeline"
)

var (
	// configPath is the optional YAML config file.
	configPath string
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "chatvault",
	Short: "De-duplicated, classified archive for chat transcripts",
	Long: `chatvault ingests free-form chat transcripts, splits them into
conversations, discards duplicates by content signature, classifies each
conversation as keep/flag/discard, and archives the result crash-safely
with a queryable manifest and a full audit log.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.chatvault/config.yaml)")
	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(rebuildCmd)
	rootCmd.AddCommand(watchCmd)
}

// setup loads configuration and builds the logger and pipeline service
// shared by every subcommand.
func setup(opts ...pipeline.Option) (*config.Config, *zap.Logger, *pipeline.Service, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to build logger: %w", err)
	}
	svc, err := pipeline.New(cfg, logger, opts...)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, logger, svc, nil
}

// readInput returns the contents of path, or stdin when path is "-".
func readInput(path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}
