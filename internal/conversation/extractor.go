package conversation

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

const (
	// titleMaxLen caps the record title, taken from the first user turn.
	titleMaxLen = 50

	// descriptionMaxLen caps a code fragment's short description.
	descriptionMaxLen = 80

	// fragmentHashLen is the hex length of a code fragment content hash.
	fragmentHashLen = 16

	// TitleEmpty names a conversation that contained no text at all.
	TitleEmpty = "Empty"

	// TitleUntitled names a conversation with text but no usable title.
	TitleUntitled = "Untitled"
)

// fenceRe matches fenced code regions with an optional language tag.
var fenceRe = regexp.MustCompile("(?s)```(\\w*)\\n(.*?)```")

// Extractor parses one candidate conversation into ordered turns plus
// embedded code fragments.
type Extractor struct {
	pairRe *regexp.Regexp
}

// NewExtractor builds an extractor recognizing the given assistant names.
func NewExtractor(assistantNames []string) *Extractor {
	if len(assistantNames) == 0 {
		assistantNames = DefaultSplitterOptions().AssistantNames
	}
	return &Extractor{
		pairRe: regexp.MustCompile(`(?s)User:[ \t]*(.+?)\n(?:` + namesAlternation(assistantNames) + `):[ \t]*(.+?)(?:\n|$)`),
	}
}

// Extraction holds the parsed contents of one conversation.
type Extraction struct {
	Turns         []Turn
	CodeFragments map[string]CodeFragment
	Title         string
}

// Extract parses the conversation text. Malformed or foreign-format input is
// expected and common: zero matched pairs yield an empty turn sequence and a
// sentinel title, never an error.
func (e *Extractor) Extract(text string) Extraction {
	pairs := e.pairRe.FindAllStringSubmatch(text, -1)

	turns := make([]Turn, 0, len(pairs)*2)
	for i, pair := range pairs {
		turns = append(turns,
			Turn{Role: RoleUser, Content: strings.TrimSpace(pair[1]), TurnIndex: i + 1},
			Turn{Role: RoleAssistant, Content: strings.TrimSpace(pair[2]), TurnIndex: i + 1},
		)
	}

	return Extraction{
		Turns:         turns,
		CodeFragments: extractCodeFragments(text),
		Title:         deriveTitle(text, turns),
	}
}

// extractCodeFragments scans for fenced code regions. Fragments with blank
// bodies are discarded, but ids keep their discovery-order index.
func extractCodeFragments(text string) map[string]CodeFragment {
	matches := fenceRe.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}

	fragments := make(map[string]CodeFragment)
	for i, m := range matches {
		language, body := m[1], m[2]
		if strings.TrimSpace(body) == "" {
			continue
		}
		if language == "" {
			language = "unknown"
		}
		fragments[fmt.Sprintf("code_block_%d", i+1)] = CodeFragment{
			Language:    language,
			LineCount:   countNonBlankLines(body),
			Description: strings.TrimSpace(headRunes(body, descriptionMaxLen)),
			ContentHash: hashContent(body),
		}
	}
	if len(fragments) == 0 {
		return nil
	}
	return fragments
}

// deriveTitle takes the first user turn capped at titleMaxLen characters.
// Without turns, the title is a fixed sentinel: "Empty" when the text was
// blank, "Untitled" otherwise.
func deriveTitle(text string, turns []Turn) string {
	if len(turns) == 0 {
		if strings.TrimSpace(text) == "" {
			return TitleEmpty
		}
		return TitleUntitled
	}
	first := turns[0].Content
	if strings.TrimSpace(first) == "" {
		return TitleUntitled
	}
	return headRunes(first, titleMaxLen)
}

func countNonBlankLines(body string) int {
	count := 0
	for _, line := range strings.Split(body, "\n") {
		if strings.TrimSpace(line) != "" {
			count++
		}
	}
	return count
}

// hashContent returns a short stable identifier for a fragment body.
func hashContent(body string) string {
	sum := sha256.Sum256([]byte(body))
	return hex.EncodeToString(sum[:])[:fragmentHashLen]
}
