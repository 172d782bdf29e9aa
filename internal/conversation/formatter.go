package conversation

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Format renders a record into its stable human-readable turn-by-turn form.
// It is pure and idempotent: the same record always produces byte-identical
// output, and the record is never mutated.
func Format(r *Record) string {
	var b strings.Builder

	fmt.Fprintf(&b, "{Header: %s}\n", r.Title)
	fmt.Fprintf(&b, "ID: %s\n", r.ID)
	fmt.Fprintf(&b, "Timestamp: %s\n", r.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "Topics: %s\n", strings.Join(r.Topics, ", "))
	fmt.Fprintf(&b, "Keywords: %s\n\n", strings.Join(r.Keywords, ", "))

	for i, turn := range r.Turns {
		fmt.Fprintf(&b, "## Turn %d\n", i+1)
		fmt.Fprintf(&b, "%s: %s\n\n", strings.ToUpper(string(turn.Role)), strings.TrimSpace(turn.Content))
	}

	if len(r.CodeFragments) > 0 {
		b.WriteString("###[REF]###\n")
		for _, id := range sortedFragmentIDs(r.CodeFragments) {
			frag := r.CodeFragments[id]
			fmt.Fprintf(&b, "###%s###\n", id)
			fmt.Fprintf(&b, "Language: %s\n", frag.Language)
			fmt.Fprintf(&b, "Lines: %d\n", frag.LineCount)
			fmt.Fprintf(&b, "Description: %s\n\n", frag.Description)
		}
	}

	return b.String()
}

// FormatMarkdown renders a record as a Markdown document suitable for export
// into a note vault. Like Format, it is pure and idempotent.
func FormatMarkdown(r *Record) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", r.Title)
	fmt.Fprintf(&b, "- ID: `%s`\n", r.ID)
	fmt.Fprintf(&b, "- Created: %s\n", r.CreatedAt.Format(time.RFC3339))
	if len(r.Topics) > 0 {
		fmt.Fprintf(&b, "- Topics: %s\n", strings.Join(r.Topics, ", "))
	}
	if len(r.Keywords) > 0 {
		fmt.Fprintf(&b, "- Keywords: %s\n", strings.Join(r.Keywords, ", "))
	}
	b.WriteString("\n")

	for i, turn := range r.Turns {
		fmt.Fprintf(&b, "## Turn %d (%s)\n\n", i+1, titleCaseRole(turn.Role))
		fmt.Fprintf(&b, "%s\n\n", strings.TrimSpace(turn.Content))
	}

	if len(r.CodeFragments) > 0 {
		b.WriteString("## Code fragments\n\n")
		for _, id := range sortedFragmentIDs(r.CodeFragments) {
			frag := r.CodeFragments[id]
			fmt.Fprintf(&b, "- `%s` (%s, %d lines): %s\n", id, frag.Language, frag.LineCount, frag.Description)
		}
	}

	return b.String()
}

// sortedFragmentIDs orders fragment ids numerically by their discovery index
// so map iteration order never leaks into formatted output.
func sortedFragmentIDs(fragments map[string]CodeFragment) []string {
	ids := make([]string, 0, len(fragments))
	for id := range fragments {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		ni, iOK := fragmentIndex(ids[i])
		nj, jOK := fragmentIndex(ids[j])
		if iOK && jOK {
			return ni < nj
		}
		return ids[i] < ids[j]
	})
	return ids
}

func fragmentIndex(id string) (int, bool) {
	const prefix = "code_block_"
	if !strings.HasPrefix(id, prefix) {
		return 0, false
	}
	n, err := strconv.Atoi(id[len(prefix):])
	if err != nil {
		return 0, false
	}
	return n, true
}

func titleCaseRole(r Role) string {
	s := string(r)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
