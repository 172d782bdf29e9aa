package conversation

import (
	"regexp"
	"strings"
)

// sampleLen is how much of the input the splitter inspects for format
// detection. Splitting itself always operates on the full text.
const sampleLen = 1000

// DetectedFormat identifies the delimiter convention detected in raw input.
type DetectedFormat string

const (
	// FormatDialogue is role-prefixed dialogue ("User: ...\nAssistant: ...").
	FormatDialogue DetectedFormat = "dialogue"
	// FormatMarker is an explicit conversation boundary token.
	FormatMarker DetectedFormat = "marker"
	// FormatSeparator is a line of dashes between conversations.
	FormatSeparator DetectedFormat = "separator"
	// FormatUnknown is anything else; the whole input is one conversation.
	FormatUnknown DetectedFormat = "unknown"
)

// SplitterOptions configures format detection.
type SplitterOptions struct {
	// AssistantNames are the labels recognized as the assistant speaker.
	AssistantNames []string
	// BoundaryMarker is the explicit conversation boundary token.
	BoundaryMarker string
}

// DefaultSplitterOptions matches the transcript conventions seen in the wild.
func DefaultSplitterOptions() SplitterOptions {
	return SplitterOptions{
		AssistantNames: []string{"Assistant", "Kimi"},
		BoundaryMarker: "###CHATGPT###",
	}
}

// Splitter detects a transcript's delimiter convention and breaks raw text
// into candidate conversations.
type Splitter struct {
	opts       SplitterOptions
	dialogueRe *regexp.Regexp
}

// separatorRe matches a line consisting only of three or more dashes.
var separatorRe = regexp.MustCompile(`\n-{3,}\n`)

// NewSplitter builds a splitter for the given options. Empty options fall
// back to defaults.
func NewSplitter(opts SplitterOptions) *Splitter {
	def := DefaultSplitterOptions()
	if len(opts.AssistantNames) == 0 {
		opts.AssistantNames = def.AssistantNames
	}
	if opts.BoundaryMarker == "" {
		opts.BoundaryMarker = def.BoundaryMarker
	}
	return &Splitter{
		opts:       opts,
		dialogueRe: regexp.MustCompile(`User:\s.*\n(?:` + namesAlternation(opts.AssistantNames) + `):\s`),
	}
}

// namesAlternation builds a regexp alternation of quoted speaker names.
func namesAlternation(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = regexp.QuoteMeta(n)
	}
	return strings.Join(quoted, "|")
}

// DetectFormat inspects only the first 1000 characters of the input and
// returns the first matching convention in fixed priority order: dialogue,
// then boundary marker, then separator line. The priority is a deliberate
// tie-break; later patterns are never evaluated once one matches.
func (s *Splitter) DetectFormat(raw string) DetectedFormat {
	sample := headRunes(raw, sampleLen)
	switch {
	case s.dialogueRe.MatchString(sample):
		return FormatDialogue
	case strings.Contains(sample, s.opts.BoundaryMarker):
		return FormatMarker
	case separatorRe.MatchString(sample):
		return FormatSeparator
	default:
		return FormatUnknown
	}
}

// Split breaks raw text into an ordered sequence of candidate conversations.
// The result is never empty: when no convention is detected, or every piece
// is blank, the whole input is returned as a single candidate. Retained
// candidates are never trimmed or altered; whitespace inside a conversation
// is semantically meaningful.
func (s *Splitter) Split(raw string) []string {
	var pieces []string
	switch s.DetectFormat(raw) {
	case FormatDialogue:
		pieces = strings.Split(raw, "\n\n")
	case FormatMarker:
		pieces = strings.Split(raw, s.opts.BoundaryMarker)
	case FormatSeparator:
		pieces = separatorRe.Split(raw, -1)
	default:
		return []string{raw}
	}

	kept := make([]string, 0, len(pieces))
	for _, p := range pieces {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	if len(kept) == 0 {
		return []string{raw}
	}
	return kept
}

// headRunes returns the first n characters of s without breaking a rune.
func headRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
