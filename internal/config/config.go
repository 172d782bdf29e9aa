// Package config provides configuration loading for chatvault.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (CHATVAULT_ARCHIVE_BASE_DIR, CHATVAULT_DEDUPE_THRESHOLD, ...)
//  2. YAML config file (~/.chatvault/config.yaml by default)
//  3. Hardcoded defaults
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fyrsmithlabs/chatvault/internal/logging"
)

// Config is the root configuration for the chatvault pipeline.
type Config struct {
	Archive    ArchiveConfig    `koanf:"archive"`
	Splitter   SplitterConfig   `koanf:"splitter"`
	Dedupe     DedupeConfig     `koanf:"dedupe"`
	Classifier ClassifierConfig `koanf:"classifier"`
	Redaction  RedactionConfig  `koanf:"redaction"`
	Pipeline   PipelineConfig   `koanf:"pipeline"`
	Logging    logging.Config   `koanf:"logging"`
}

// ArchiveConfig defines the on-disk layout of the archive.
// Empty paths are derived from BaseDir by ApplyDerived.
type ArchiveConfig struct {
	// BaseDir is the archive root (default: ~/.chatvault).
	BaseDir string `koanf:"base_dir"`

	// RecordsDir holds one JSON record per archived conversation.
	RecordsDir string `koanf:"records_dir"`

	// SnapshotsDir holds timestamped pre-mutation copies of overwritten files.
	SnapshotsDir string `koanf:"snapshots_dir"`

	// ManifestPath is the authoritative id -> metadata index.
	ManifestPath string `koanf:"manifest_path"`

	// DecisionLogPath is the append-only audit log (one JSON object per line).
	DecisionLogPath string `koanf:"decision_log_path"`

	// EventLogPath is the append-only write event log.
	EventLogPath string `koanf:"event_log_path"`
}

// SplitterConfig controls transcript format detection.
type SplitterConfig struct {
	// AssistantNames are the speaker labels recognized as the assistant side
	// of a dialogue (default: Assistant, Kimi).
	AssistantNames []string `koanf:"assistant_names"`

	// BoundaryMarker is the explicit conversation boundary token.
	BoundaryMarker string `koanf:"boundary_marker"`
}

// DedupeConfig controls duplicate detection.
type DedupeConfig struct {
	// Threshold is the minimum signature intersection declaring a duplicate.
	Threshold int `koanf:"threshold"`
}

// ClassifierConfig controls topic/keyword classification.
type ClassifierConfig struct {
	// RulesPath is an optional TOML ruleset file. Empty uses the built-in rules.
	RulesPath string `koanf:"rules_path"`

	// Review enables human-review escalation for uncertain classifications.
	Review bool `koanf:"review"`
}

// RedactionConfig controls secret scrubbing of archived content.
type RedactionConfig struct {
	Enabled bool `koanf:"enabled"`
}

// PipelineConfig holds pipeline-level knobs.
type PipelineConfig struct {
	// MinInputLength rejects inputs shorter than this many characters as a
	// format error. Zero disables the check.
	MinInputLength int `koanf:"min_input_length"`
}

// Default returns the built-in configuration. Derived paths are left empty
// until ApplyDerived runs.
func Default() *Config {
	return &Config{
		Splitter: SplitterConfig{
			AssistantNames: []string{"Assistant", "Kimi"},
			BoundaryMarker: "###CHATGPT###",
		},
		Dedupe: DedupeConfig{
			Threshold: 3,
		},
		Redaction: RedactionConfig{
			Enabled: true,
		},
		Logging: logging.DefaultConfig(),
	}
}

// ApplyDerived fills empty archive paths from BaseDir.
func (c *Config) ApplyDerived() error {
	if c.Archive.BaseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		c.Archive.BaseDir = filepath.Join(home, ".chatvault")
	}
	base := c.Archive.BaseDir
	if c.Archive.RecordsDir == "" {
		c.Archive.RecordsDir = filepath.Join(base, "records")
	}
	if c.Archive.SnapshotsDir == "" {
		c.Archive.SnapshotsDir = filepath.Join(base, "snapshots")
	}
	if c.Archive.ManifestPath == "" {
		c.Archive.ManifestPath = filepath.Join(base, "manifest.json")
	}
	if c.Archive.DecisionLogPath == "" {
		c.Archive.DecisionLogPath = filepath.Join(base, "decisions.jsonl")
	}
	if c.Archive.EventLogPath == "" {
		c.Archive.EventLogPath = filepath.Join(base, "events.jsonl")
	}
	return nil
}

// Validate checks the configuration for values the pipeline cannot run with.
func (c *Config) Validate() error {
	if len(c.Splitter.AssistantNames) == 0 {
		return fmt.Errorf("splitter: at least one assistant name is required")
	}
	if c.Splitter.BoundaryMarker == "" {
		return fmt.Errorf("splitter: boundary marker must not be empty")
	}
	if c.Dedupe.Threshold < 1 {
		return fmt.Errorf("dedupe: threshold must be >= 1, got %d", c.Dedupe.Threshold)
	}
	if c.Pipeline.MinInputLength < 0 {
		return fmt.Errorf("pipeline: min_input_length must not be negative")
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	return nil
}

// RecordPath returns the storage location for a record id.
func (c *ArchiveConfig) RecordPath(id string) string {
	return filepath.Join(c.RecordsDir, fmt.Sprintf("conv_%s.json", id))
}
