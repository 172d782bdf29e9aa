// Package redact removes credential material from transcripts before they
// are archived. Stored conversations outlive the sessions that produced
// them, so anything that looks like a live secret is replaced with a marker
// naming the rule that matched.
package redact

import (
	"fmt"
	"regexp"
	"sort"
)

// Rule is one redaction pattern.
type Rule struct {
	ID          string
	Description string
	Pattern     string
}

// Finding records one redacted span in the original text.
type Finding struct {
	RuleID     string
	StartIndex int
	EndIndex   int
}

// Result reports what a scrub pass changed.
type Result struct {
	Scrubbed string
	Findings []Finding
	ByRule   map[string]int
}

// Scrubber applies redaction rules to transcript text.
type Scrubber struct {
	enabled bool
	rules   []compiledRule
}

type compiledRule struct {
	id      string
	pattern *regexp.Regexp
}

type span struct {
	start, end int
	ruleID     string
}

// DefaultRules covers the credential shapes that show up in pasted chat
// transcripts: assigned api keys and passwords, PEM blocks, and
// self-identifying token prefixes.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:          "api-key",
			Description: "Assigned API key",
			Pattern:     `(?i)(?:api[_-]?key|apikey)\s*[:=]\s*['"]?[A-Za-z0-9_\-]{16,64}['"]?`,
		},
		{
			ID:          "generic-secret",
			Description: "Assigned secret or password",
			Pattern:     `(?i)(?:secret|password|passwd|pwd)\s*[:=]\s*['"]?[^\s'"]{8,}['"]?`,
		},
		{
			ID:          "private-key",
			Description: "Private key block",
			Pattern:     `-----BEGIN (?:RSA |DSA |EC |OPENSSH |PGP )?PRIVATE KEY(?:[- ]BLOCK)?-----`,
		},
		{
			ID:          "bearer-token",
			Description: "Bearer token in an Authorization header",
			Pattern:     `(?i)authorization\s*[:=]\s*['"]?(?:bearer|token)\s+[A-Za-z0-9_\-\.=]{16,}['"]?`,
		},
		{
			ID:          "github-token",
			Description: "GitHub access token",
			Pattern:     `(?:ghp|gho|ghu|ghs)_[A-Za-z0-9]{36}`,
		},
		{
			ID:          "slack-token",
			Description: "Slack token",
			Pattern:     `xox[baprs]-[A-Za-z0-9\-]{10,}`,
		},
		{
			ID:          "aws-access-key-id",
			Description: "AWS access key id",
			Pattern:     `(?:A3T[A-Z0-9]|AKIA|AGPA|AIDA|AROA|ASIA)[A-Z0-9]{16}`,
		},
	}
}

// New compiles the given rules, or DefaultRules when rules is nil. A
// disabled scrubber passes text through untouched.
func New(enabled bool, rules []Rule) (*Scrubber, error) {
	if rules == nil {
		rules = DefaultRules()
	}
	s := &Scrubber{enabled: enabled}
	for _, r := range rules {
		if r.ID == "" {
			return nil, fmt.Errorf("redaction rule requires an id")
		}
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid redaction rule %s: %w", r.ID, err)
		}
		s.rules = append(s.rules, compiledRule{id: r.ID, pattern: re})
	}
	return s, nil
}

// Enabled reports whether scrubbing is active.
func (s *Scrubber) Enabled() bool { return s.enabled }

// Scrub replaces every match with "[REDACTED:<rule-id>]". Overlapping
// matches are merged under the rule that starts first, and replacements are
// applied back to front so earlier indexes stay valid.
func (s *Scrubber) Scrub(text string) Result {
	res := Result{Scrubbed: text, ByRule: make(map[string]int)}
	if !s.enabled {
		return res
	}

	var spans []span
	for _, rule := range s.rules {
		for _, m := range rule.pattern.FindAllStringIndex(text, -1) {
			spans = append(spans, span{start: m[0], end: m[1], ruleID: rule.id})
		}
	}
	if len(spans) == 0 {
		return res
	}

	sort.Slice(spans, func(i, j int) bool {
		if spans[i].start != spans[j].start {
			return spans[i].start < spans[j].start
		}
		return spans[i].end > spans[j].end
	})
	merged := []span{spans[0]}
	for _, cur := range spans[1:] {
		last := &merged[len(merged)-1]
		if cur.start <= last.end {
			if cur.end > last.end {
				last.end = cur.end
			}
			continue
		}
		merged = append(merged, cur)
	}

	for _, sp := range merged {
		res.Findings = append(res.Findings, Finding{
			RuleID:     sp.ruleID,
			StartIndex: sp.start,
			EndIndex:   sp.end,
		})
		res.ByRule[sp.ruleID]++
	}

	scrubbed := text
	for i := len(merged) - 1; i >= 0; i-- {
		sp := merged[i]
		marker := fmt.Sprintf("[REDACTED:%s]", sp.ruleID)
		scrubbed = scrubbed[:sp.start] + marker + scrubbed[sp.end:]
	}
	res.Scrubbed = scrubbed
	return res
}
