package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/chatvault/internal/config"
	"github.com/fyrsmithlabs/chatvault/internal/conversation"
	"github.com/fyrsmithlabs/chatvault/internal/manifest"
)

// threePairs has enough turn pairs to produce three signatures, the
// duplicate threshold, and enough domain keywords to classify as keep.
const threePairs = "User: design the startup workflow\n" +
	"Assistant: boot sequence first\n" +
	"User: then the shutdown\n" +
	"Assistant: archive on finalize\n" +
	"User: log everything to the chatlog\n" +
	"Assistant: structured logging it is"

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Archive.BaseDir = t.TempDir()
	require.NoError(t, cfg.ApplyDerived())
	require.NoError(t, cfg.Validate())
	return cfg
}

func testService(t *testing.T, cfg *config.Config, opts ...Option) *Service {
	t.Helper()
	s, err := New(cfg, zap.NewNop(), opts...)
	require.NoError(t, err)
	return s
}

func decisionLog(t *testing.T, cfg *config.Config) []conversation.DecisionLogEntry {
	t.Helper()
	data, err := os.ReadFile(cfg.Archive.DecisionLogPath)
	require.NoError(t, err)
	var entries []conversation.DecisionLogEntry
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		var e conversation.DecisionLogEntry
		require.NoError(t, json.Unmarshal([]byte(line), &e))
		entries = append(entries, e)
	}
	return entries
}

func TestProcess_SinglePair(t *testing.T) {
	cfg := testConfig(t)
	s := testService(t, cfg)

	res, err := s.Process(context.Background(), "User: Hi\nAssistant: Hello", false)
	require.NoError(t, err)

	// No rule matches, so the classifier discards; the record is still
	// archived so a resubmission can be recognized later.
	assert.Equal(t, StatusDiscard, res.Status)
	assert.Equal(t, "low relevance", res.Reason)
	require.NotNil(t, res.Record)
	assert.Equal(t, "Hi", res.Record.Title)
	require.Len(t, res.Record.Turns, 2)
	assert.Equal(t, conversation.RoleUser, res.Record.Turns[0].Role)
	assert.Equal(t, conversation.RoleAssistant, res.Record.Turns[1].Role)
	assert.Empty(t, res.Record.CodeFragments)

	m, err := manifest.Load(cfg.Archive.ManifestPath)
	require.NoError(t, err)
	_, ok := m.Get(res.Record.ID)
	assert.True(t, ok)

	_, err = os.Stat(cfg.Archive.RecordPath(res.Record.ID))
	require.NoError(t, err)
}

func TestProcess_HighRelevanceKeep(t *testing.T) {
	cfg := testConfig(t)
	s := testService(t, cfg)

	res, err := s.Process(context.Background(), threePairs, false)
	require.NoError(t, err)

	assert.Equal(t, StatusKeep, res.Status)
	assert.Equal(t, "high relevance", res.Reason)
	require.NotNil(t, res.Record)
	assert.Contains(t, res.Record.Topics, "workflow")
	assert.Len(t, res.Record.Signatures, 3)
	assert.Contains(t, res.FormattedText, "## Turn 1")
}

func TestProcess_SecondSubmissionIsDuplicate(t *testing.T) {
	cfg := testConfig(t)
	s := testService(t, cfg)
	ctx := context.Background()

	first, err := s.Process(ctx, threePairs, false)
	require.NoError(t, err)
	require.NotNil(t, first.Record)

	second, err := s.Process(ctx, threePairs, false)
	require.NoError(t, err)

	assert.Equal(t, StatusDuplicateSkipped, second.Status)
	assert.Equal(t, first.Record.ID, second.DuplicateOf)
	assert.Equal(t, 3, second.MatchCount)
	assert.Contains(t, second.Reason, first.Record.ID)
	assert.Nil(t, second.Record)

	// No second record or manifest entry was created.
	m, err := manifest.Load(cfg.Archive.ManifestPath)
	require.NoError(t, err)
	assert.Equal(t, 1, m.Len())

	entries := decisionLog(t, cfg)
	require.Len(t, entries, 2)
	assert.Equal(t, conversation.DecisionDiscard, entries[1].Decision)
	assert.Equal(t, first.Record.ID, entries[1].SubjectID)
	assert.Contains(t, entries[1].Reason, "3 matching signatures")
}

func TestProcess_CodeFragmentsInDiscoveryOrder(t *testing.T) {
	cfg := testConfig(t)
	s := testService(t, cfg)

	raw := "User: dump the scripts\n" +
		"Assistant: sure\n" +
		"```python\nprint('hello')\n```\n" +
		"and\n" +
		"```\nls -la\n```"
	res, err := s.Process(context.Background(), raw, false)
	require.NoError(t, err)
	require.NotNil(t, res.Record)

	require.Len(t, res.Record.CodeFragments, 2)
	first, ok := res.Record.CodeFragments["code_block_1"]
	require.True(t, ok)
	assert.Equal(t, "python", first.Language)
	second, ok := res.Record.CodeFragments["code_block_2"]
	require.True(t, ok)
	assert.Equal(t, "unknown", second.Language)
}

func TestProcess_EmptyInputIsFormatError(t *testing.T) {
	cfg := testConfig(t)
	s := testService(t, cfg)

	res, err := s.Process(context.Background(), "", false)
	require.NoError(t, err)

	assert.Equal(t, StatusFormatError, res.Status)
	assert.Equal(t, "no parsable turns found", res.Reason)
	assert.Nil(t, res.Record)

	// The attempt is still audit-logged.
	entries := decisionLog(t, cfg)
	require.Len(t, entries, 1)
	assert.Equal(t, conversation.DecisionDiscard, entries[0].Decision)
}

func TestProcess_ProseWithoutTurnsIsFormatError(t *testing.T) {
	cfg := testConfig(t)
	s := testService(t, cfg)

	res, err := s.Process(context.Background(), "meeting notes without any dialogue", false)
	require.NoError(t, err)
	assert.Equal(t, StatusFormatError, res.Status)
}

func TestProcess_ShortInputRejectedWhenConfigured(t *testing.T) {
	cfg := testConfig(t)
	cfg.Pipeline.MinInputLength = 50
	s := testService(t, cfg)

	res, err := s.Process(context.Background(), "User: Hi\nAssistant: Hello", false)
	require.NoError(t, err)
	assert.Equal(t, StatusFormatError, res.Status)
	assert.Contains(t, res.Reason, "shorter than 50")
}

func TestProcess_CorruptedManifestIsFatal(t *testing.T) {
	cfg := testConfig(t)
	s := testService(t, cfg)
	require.NoError(t, os.WriteFile(cfg.Archive.ManifestPath, []byte("{broken"), 0o600))

	_, err := s.Process(context.Background(), threePairs, false)
	require.ErrorIs(t, err, manifest.ErrCorrupted)
}

func TestProcessAll_MarkerSeparatedConversations(t *testing.T) {
	cfg := testConfig(t)
	s := testService(t, cfg)

	raw := "first conversation body\n###CHATGPT###\nsecond conversation body"
	results, err := s.ProcessAll(context.Background(), raw, false)
	require.NoError(t, err)

	// Neither body has parsable turns; both are reported, neither crashes.
	require.Len(t, results, 2)
	assert.Equal(t, StatusFormatError, results[0].Status)
	assert.Equal(t, StatusFormatError, results[1].Status)
}

func TestProcess_RedactsSecretsBeforeArchival(t *testing.T) {
	cfg := testConfig(t)
	s := testService(t, cfg)

	raw := "User: my api_key=sk_live_abcdef1234567890 leaked\nAssistant: rotate it now"
	res, err := s.Process(context.Background(), raw, false)
	require.NoError(t, err)
	require.NotNil(t, res.Record)

	data, err := os.ReadFile(cfg.Archive.RecordPath(res.Record.ID))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "sk_live_abcdef1234567890")
	assert.Contains(t, string(data), "[REDACTED:api-key]")
}

func TestExtract_RoundTrip(t *testing.T) {
	cfg := testConfig(t)
	s := testService(t, cfg)
	ctx := context.Background()

	res, err := s.Process(ctx, threePairs, false)
	require.NoError(t, err)
	require.NotNil(t, res.Record)

	formatted, err := s.Extract(ctx, res.Record.ID)
	require.NoError(t, err)
	assert.Equal(t, res.FormattedText, formatted)
}

func TestExtract_NotFound(t *testing.T) {
	cfg := testConfig(t)
	s := testService(t, cfg)

	_, err := s.Extract(context.Background(), "no-such-id")
	require.ErrorIs(t, err, ErrNotFound)
}

type captureNotifier struct {
	results []Result
}

func (c *captureNotifier) Notify(_ context.Context, res Result) {
	c.results = append(c.results, res)
}

func TestProcess_NotifierReceivesOutcome(t *testing.T) {
	cfg := testConfig(t)
	n := &captureNotifier{}
	s := testService(t, cfg, WithNotifier(n))

	_, err := s.Process(context.Background(), threePairs, false)
	require.NoError(t, err)
	require.Len(t, n.results, 1)
	assert.Equal(t, StatusKeep, n.results[0].Status)
}

func TestProcess_SequentialIDsAreStable(t *testing.T) {
	cfg := testConfig(t)
	next := 0
	s := testService(t, cfg, WithIDGenerator(func() string {
		next++
		return fmt.Sprintf("rec-%d", next)
	}))

	res, err := s.Process(context.Background(), threePairs, false)
	require.NoError(t, err)
	require.NotNil(t, res.Record)
	assert.Equal(t, "rec-1", res.Record.ID)
	assert.Equal(t, filepath.Join(cfg.Archive.RecordsDir, "conv_rec-1.json"),
		cfg.Archive.RecordPath("rec-1"))
}
