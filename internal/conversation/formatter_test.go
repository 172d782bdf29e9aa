package conversation

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecord() *Record {
	return &Record{
		ID:    "rec-123",
		Title: "Hi",
		Turns: []Turn{
			{Role: RoleUser, Content: "Hi", TurnIndex: 1},
			{Role: RoleAssistant, Content: "Hello", TurnIndex: 1},
			{Role: RoleUser, Content: "Bye", TurnIndex: 2},
			{Role: RoleAssistant, Content: "See you", TurnIndex: 2},
		},
		CodeFragments: map[string]CodeFragment{
			"code_block_2":  {Language: "python", LineCount: 1, Description: "print('hi')", ContentHash: "beef"},
			"code_block_1":  {Language: "go", LineCount: 3, Description: "package main", ContentHash: "dead"},
			"code_block_10": {Language: "sh", LineCount: 2, Description: "ls", ContentHash: "feed"},
		},
		Signatures:     []string{"sig1"},
		Topics:         []string{"workflow", "logging"},
		Keywords:       []string{"process", "log"},
		Classification: Classification{Decision: DecisionKeep, Reason: "high relevance", Confidence: 0.8},
		CreatedAt:      time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC),
	}
}

func TestFormat_Idempotent(t *testing.T) {
	r := sampleRecord()

	first := Format(r)
	second := Format(r)
	assert.Equal(t, first, second, "formatting must be byte-identical across calls")
}

func TestFormat_HeaderAndTurns(t *testing.T) {
	r := sampleRecord()
	out := Format(r)

	assert.True(t, strings.HasPrefix(out, "{Header: Hi}\n"))
	assert.Contains(t, out, "ID: rec-123\n")
	assert.Contains(t, out, "Timestamp: 2026-03-14T09:26:53Z\n")
	assert.Contains(t, out, "Topics: workflow, logging\n")
	assert.Contains(t, out, "Keywords: process, log\n")

	// Turn sections use 1-based position and uppercase role, in order.
	i1 := strings.Index(out, "## Turn 1\nUSER: Hi\n")
	i2 := strings.Index(out, "## Turn 2\nASSISTANT: Hello\n")
	i3 := strings.Index(out, "## Turn 3\nUSER: Bye\n")
	i4 := strings.Index(out, "## Turn 4\nASSISTANT: See you\n")
	require.True(t, i1 >= 0 && i2 > i1 && i3 > i2 && i4 > i3, "turns must appear in record order:\n%s", out)
}

func TestFormat_CodeReferenceOrder(t *testing.T) {
	out := Format(sampleRecord())

	refs := strings.Index(out, "###[REF]###\n")
	require.GreaterOrEqual(t, refs, 0)

	b1 := strings.Index(out, "###code_block_1###")
	b2 := strings.Index(out, "###code_block_2###")
	b10 := strings.Index(out, "###code_block_10###")
	require.True(t, b1 >= 0 && b2 >= 0 && b10 >= 0)
	assert.True(t, b1 < b2 && b2 < b10, "fragments are ordered by discovery index, numerically")
}

func TestFormat_DoesNotMutateRecord(t *testing.T) {
	r := sampleRecord()
	turnsBefore := make([]Turn, len(r.Turns))
	copy(turnsBefore, r.Turns)

	_ = Format(r)
	_ = FormatMarkdown(r)

	assert.Equal(t, turnsBefore, r.Turns, "formatting must never reorder turns")
}

func TestFormat_NoFragmentsOmitsReferenceBlock(t *testing.T) {
	r := sampleRecord()
	r.CodeFragments = nil

	out := Format(r)
	assert.NotContains(t, out, "###[REF]###")
}

func TestFormatMarkdown_Idempotent(t *testing.T) {
	r := sampleRecord()

	first := FormatMarkdown(r)
	second := FormatMarkdown(r)
	assert.Equal(t, first, second)

	assert.True(t, strings.HasPrefix(first, "# Hi\n"))
	assert.Contains(t, first, "## Turn 1 (User)")
	assert.Contains(t, first, "## Turn 2 (Assistant)")
	assert.Contains(t, first, "`code_block_1` (go, 3 lines): package main")
}

func TestRecord_Validate(t *testing.T) {
	valid := sampleRecord()
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Record)
	}{
		{"empty id", func(r *Record) { r.ID = "" }},
		{"bad decision", func(r *Record) { r.Classification.Decision = "maybe" }},
		{"confidence above one", func(r *Record) { r.Classification.Confidence = 1.5 }},
		{"bad role", func(r *Record) { r.Turns[0].Role = "narrator" }},
		{"zero created_at", func(r *Record) { r.CreatedAt = time.Time{} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := sampleRecord()
			tt.mutate(r)
			assert.Error(t, r.Validate())
		})
	}
}

func TestFormat_RendersDetectedDialogue(t *testing.T) {
	s := NewSplitter(DefaultSplitterOptions())
	raw := "User: Hi\nAssistant: Hello"
	require.Equal(t, FormatDialogue, s.DetectFormat(raw))

	ext := NewExtractor(nil).Extract(s.Split(raw)[0])
	r := &Record{
		ID:             "rec-split",
		Title:          ext.Title,
		Turns:          ext.Turns,
		Classification: Classification{Decision: DecisionKeep, Reason: "high relevance"},
		CreatedAt:      time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC),
	}

	out := Format(r)
	assert.Contains(t, out, "{Header: Hi}")
	assert.Contains(t, out, "## Turn 1\nUSER: Hi")
	assert.Contains(t, out, "ASSISTANT: Hello")
}
