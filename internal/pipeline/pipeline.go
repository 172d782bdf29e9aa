// Package pipeline wires the conversation components into the ingestion
// service: split raw text into candidates, extract turns, gate on duplicate
// signatures, classify, persist crash-safely, and log every decision.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/chatvault/internal/archive"
	"github.com/fyrsmithlabs/chatvault/internal/classify"
	"github.com/fyrsmithlabs/chatvault/internal/config"
	"github.com/fyrsmithlabs/chatvault/internal/conversation"
	"github.com/fyrsmithlabs/chatvault/internal/manifest"
	"github.com/fyrsmithlabs/chatvault/internal/redact"
)

// ErrNotFound signals a lookup for an id the manifest does not know.
var ErrNotFound = errors.New("conversation not found")

// Status is the terminal outcome of processing one candidate conversation.
type Status string

const (
	StatusKeep             Status = "keep"
	StatusFlag             Status = "flag"
	StatusDiscard          Status = "discard"
	StatusDuplicateSkipped Status = "duplicate_skipped"
	StatusFormatError      Status = "format_error"
)

// Result reports the outcome of one processed candidate. Every result
// carries a human-readable Reason; nothing terminates silently.
type Result struct {
	Status        Status
	Record        *conversation.Record
	FormattedText string
	DuplicateOf   string
	MatchCount    int
	Reason        string
}

// Notifier presents outcomes to a human. The pipeline only calls it; the
// surrounding shell decides how results are shown.
type Notifier interface {
	Notify(ctx context.Context, res Result)
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, Result) {}

// Service is the single-writer ingestion pipeline. Each input is processed
// to completion before the next begins; the manifest is the only shared
// mutable state and is loaded fresh per entry point.
type Service struct {
	cfg       *config.Config
	splitter  *conversation.Splitter
	extractor *conversation.Extractor
	signer    *conversation.SignatureGenerator
	rules     *classify.Ruleset
	scrubber  *redact.Scrubber
	writer    *archive.Writer
	notifier  Notifier
	logger    *zap.Logger

	now   func() time.Time
	newID func() string
}

// Option customizes a Service.
type Option func(*Service)

// WithNotifier installs an outcome notifier.
func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides record id generation.
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) { s.newID = gen }
}

// New builds a Service from configuration. The classifier ruleset comes
// from cfg.Classifier.RulesPath when set, otherwise the built-in rules.
func New(cfg *config.Config, logger *zap.Logger, opts ...Option) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	rules := classify.DefaultRuleset()
	if cfg.Classifier.RulesPath != "" {
		loaded, err := classify.LoadRuleset(cfg.Classifier.RulesPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load classifier rules: %w", err)
		}
		rules = loaded
	}

	scrubber, err := redact.New(cfg.Redaction.Enabled, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build redaction scrubber: %w", err)
	}

	s := &Service{
		cfg: cfg,
		splitter: conversation.NewSplitter(conversation.SplitterOptions{
			AssistantNames: cfg.Splitter.AssistantNames,
			BoundaryMarker: cfg.Splitter.BoundaryMarker,
		}),
		extractor: conversation.NewExtractor(cfg.Splitter.AssistantNames),
		signer:    conversation.NewSignatureGenerator(cfg.Splitter.AssistantNames),
		rules:     rules,
		scrubber:  scrubber,
		writer:    archive.NewWriter(cfg.Archive.SnapshotsDir, cfg.Archive.EventLogPath, logger.Named("archive")),
		notifier:  nopNotifier{},
		logger:    logger.Named("pipeline"),
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Process runs the first candidate conversation of raw through the
// pipeline. Multi-conversation inputs go through ProcessAll.
func (s *Service) Process(ctx context.Context, raw string, review bool) (Result, error) {
	results, err := s.run(ctx, raw, review, false)
	if err != nil {
		return Result{}, err
	}
	return results[0], nil
}

// ProcessAll splits raw and processes every candidate conversation in
// order, returning one result per candidate.
func (s *Service) ProcessAll(ctx context.Context, raw string, review bool) ([]Result, error) {
	return s.run(ctx, raw, review, true)
}

func (s *Service) run(ctx context.Context, raw string, review bool, all bool) ([]Result, error) {
	if s.scrubber.Enabled() {
		scrubbed := s.scrubber.Scrub(raw)
		if n := len(scrubbed.Findings); n > 0 {
			s.logger.Info("redacted credential material from input",
				zap.Int("findings", n))
		}
		raw = scrubbed.Scrubbed
	}

	if min := s.cfg.Pipeline.MinInputLength; min > 0 && len(raw) < min {
		res := Result{
			Status: StatusFormatError,
			Reason: fmt.Sprintf("input shorter than %d characters", min),
		}
		if err := s.appendDecision(conversation.DecisionLogEntry{
			Decision:  conversation.DecisionDiscard,
			Reason:    res.Reason,
			Timestamp: s.now().UTC(),
		}); err != nil {
			return nil, err
		}
		s.notifier.Notify(ctx, res)
		return []Result{res}, nil
	}

	m, err := manifest.Load(s.cfg.Archive.ManifestPath)
	if err != nil {
		return nil, fmt.Errorf("duplicate check unavailable: %w", err)
	}

	candidates := s.splitter.Split(raw)
	if !all {
		candidates = candidates[:1]
	}

	results := make([]Result, 0, len(candidates))
	for _, candidate := range candidates {
		res, err := s.processCandidate(ctx, candidate, review, m)
		if err != nil {
			return nil, err
		}
		s.notifier.Notify(ctx, res)
		results = append(results, res)
	}
	return results, nil
}

// processCandidate runs one candidate conversation end to end. Format
// errors and duplicates are normal logged outcomes, not errors; only write
// integrity and manifest failures propagate.
func (s *Service) processCandidate(ctx context.Context, text string, review bool, m *manifest.Manifest) (Result, error) {
	_ = ctx

	ext := s.extractor.Extract(text)
	if len(ext.Turns) == 0 {
		res := Result{Status: StatusFormatError, Reason: "no parsable turns found"}
		err := s.appendDecision(conversation.DecisionLogEntry{
			Decision:  conversation.DecisionDiscard,
			Reason:    res.Reason,
			Timestamp: s.now().UTC(),
		})
		if err != nil {
			return Result{}, err
		}
		return res, nil
	}

	sigs := s.signer.Generate(text)

	if match, found := m.FindDuplicate(sigs, s.cfg.Dedupe.Threshold); found {
		reason := fmt.Sprintf("duplicate of %s (%d matching signatures)",
			match.Entry.ID, match.MatchCount)
		err := s.appendDecision(conversation.DecisionLogEntry{
			SubjectID: match.Entry.ID,
			Decision:  conversation.DecisionDiscard,
			Reason:    reason,
			Timestamp: s.now().UTC(),
		})
		if err != nil {
			return Result{}, err
		}
		s.logger.Info("duplicate conversation skipped",
			zap.String("matched_id", match.Entry.ID),
			zap.Int("match_count", match.MatchCount))
		return Result{
			Status:      StatusDuplicateSkipped,
			DuplicateOf: match.Entry.ID,
			MatchCount:  match.MatchCount,
			Reason:      reason,
		}, nil
	}

	scored := s.rules.Evaluate(text, review)
	outcome := classify.Decide(scored)

	record := &conversation.Record{
		ID:            s.newID(),
		Title:         ext.Title,
		Turns:         ext.Turns,
		CodeFragments: ext.CodeFragments,
		Signatures:    sigs,
		Topics:        scored.Topics,
		Keywords:      scored.Keywords,
		Classification: conversation.Classification{
			Decision:   outcome.Decision,
			Reason:     outcome.Reason,
			Confidence: scored.Confidence,
		},
		CreatedAt: s.now().UTC(),
	}
	if err := record.Validate(); err != nil {
		return Result{}, fmt.Errorf("invalid conversation record: %w", err)
	}

	if err := s.persist(record, m); err != nil {
		return Result{}, err
	}

	err := s.appendDecision(conversation.DecisionLogEntry{
		SubjectID:  record.ID,
		Decision:   record.Classification.Decision,
		Reason:     record.Classification.Reason,
		Topics:     record.Topics,
		Confidence: record.Classification.Confidence,
		Timestamp:  s.now().UTC(),
	})
	if err != nil {
		return Result{}, err
	}

	s.logger.Info("conversation archived",
		zap.String("id", record.ID),
		zap.String("title", record.Title),
		zap.String("decision", string(record.Classification.Decision)),
		zap.Float64("confidence", record.Classification.Confidence))

	return Result{
		Status:        Status(record.Classification.Decision),
		Record:        record,
		FormattedText: conversation.Format(record),
		Reason:        record.Classification.Reason,
	}, nil
}

// persist writes the record, then its manifest entry, both through the
// archive-then-replace protocol. A manifest failure is reported as failure
// even though the record file landed; the manifest is the source of truth
// and an unindexed record is invisible.
func (s *Service) persist(record *conversation.Record, m *manifest.Manifest) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode record %s: %w", record.ID, err)
	}

	target := s.cfg.Archive.RecordPath(record.ID)
	if err := s.writer.Write(target, data, "records"); err != nil {
		return fmt.Errorf("failed to persist record %s: %w", record.ID, err)
	}

	entry := conversation.ManifestEntry{
		ID:              record.ID,
		Title:           record.Title,
		CreatedAt:       record.CreatedAt,
		StorageLocation: target,
		RelevanceScore:  record.Classification.Confidence,
		Signatures:      record.Signatures,
	}
	if err := m.Add(entry); err != nil {
		return fmt.Errorf("failed to index record %s: %w", record.ID, err)
	}
	if err := m.Save(s.writer); err != nil {
		return fmt.Errorf("failed to update manifest for %s: %w", record.ID, err)
	}
	return nil
}

// appendDecision writes one audit line. It runs for every processed input
// regardless of outcome and is never skipped.
func (s *Service) appendDecision(e conversation.DecisionLogEntry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode decision log entry: %w", err)
	}
	if err := s.writer.AppendLine(s.cfg.Archive.DecisionLogPath, data); err != nil {
		return fmt.Errorf("failed to append decision log: %w", err)
	}
	return nil
}

// Lookup loads the full record for id from the archive.
func (s *Service) Lookup(ctx context.Context, id string) (*conversation.Record, error) {
	_ = ctx

	m, err := manifest.Load(s.cfg.Archive.ManifestPath)
	if err != nil {
		return nil, err
	}
	entry, ok := m.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	data, err := os.ReadFile(entry.StorageLocation)
	if err != nil {
		return nil, fmt.Errorf("failed to read record %s: %w", id, err)
	}
	var record conversation.Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to decode record %s: %w", id, err)
	}
	return &record, nil
}

// Extract renders the stored record for id as formatted text.
func (s *Service) Extract(ctx context.Context, id string) (string, error) {
	record, err := s.Lookup(ctx, id)
	if err != nil {
		return "", err
	}
	return conversation.Format(record), nil
}
