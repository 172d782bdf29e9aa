// Package classify scores topical relevance of conversation text against a
// table-driven ruleset and renders a keep/flag/discard decision.
package classify

import (
	"fmt"
	"os"
	"regexp"

	"github.com/BurntSushi/toml"
)

// Tier is the confidence tier of a rule.
type Tier string

const (
	// TierHigh marks domain terms matched unconditionally.
	TierHigh Tier = "high"
	// TierMedium marks conceptual terms whose matches are flagged uncertain.
	TierMedium Tier = "medium"
)

// Rule is one ordered (topic, pattern, tier) entry.
type Rule struct {
	Topic   string `toml:"topic"`
	Pattern string `toml:"pattern"`
	Tier    Tier   `toml:"tier"`
}

type compiledRule struct {
	topic string
	re    *regexp.Regexp
	tier  Tier
}

// Ruleset is an ordered, compiled rule table. Evaluation order follows entry
// order, which makes topic/keyword ordering deterministic.
type Ruleset struct {
	rules      []compiledRule
	highTopics map[string]bool
}

// NewRuleset compiles rules in order. Patterns are matched case-insensitively.
func NewRuleset(rules []Rule) (*Ruleset, error) {
	if len(rules) == 0 {
		return nil, fmt.Errorf("ruleset must contain at least one rule")
	}
	rs := &Ruleset{
		rules:      make([]compiledRule, 0, len(rules)),
		highTopics: make(map[string]bool),
	}
	for i, r := range rules {
		if r.Topic == "" {
			return nil, fmt.Errorf("rule %d: topic must not be empty", i)
		}
		switch r.Tier {
		case TierHigh, TierMedium:
		default:
			return nil, fmt.Errorf("rule %d (%s): unknown tier %q", i, r.Topic, r.Tier)
		}
		re, err := regexp.Compile("(?i)" + r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rule %d (%s): invalid pattern: %w", i, r.Topic, err)
		}
		rs.rules = append(rs.rules, compiledRule{topic: r.Topic, re: re, tier: r.Tier})
		if r.Tier == TierHigh {
			rs.highTopics[r.Topic] = true
		}
	}
	return rs, nil
}

// DefaultRules returns the built-in pattern tables: high-confidence domain
// terms first, then medium-confidence conceptual terms.
func DefaultRules() []Rule {
	return []Rule{
		{Topic: "canvas", Pattern: `\bcanvas\b`, Tier: TierHigh},
		{Topic: "workflow", Pattern: `\b(workflow|process|routine)\b`, Tier: TierHigh},
		{Topic: "startup", Pattern: `\b(startup|boot|initialize)\b`, Tier: TierHigh},
		{Topic: "shutdown", Pattern: `\b(shutdown|finalize|archive)\b`, Tier: TierHigh},
		{Topic: "core", Pattern: `\b(core|system_architecture)\b`, Tier: TierHigh},
		{Topic: "schema", Pattern: `\b(schema|pydantic|yaml|json)\b`, Tier: TierHigh},
		{Topic: "automation", Pattern: `\b(automation|script|batch|powershell)\b`, Tier: TierHigh},
		{Topic: "logging", Pattern: `\b(logging|log|operational log|chatlog)\b`, Tier: TierHigh},

		{Topic: "learning", Pattern: `\b(learning|reference|l[1-5]|level [1-5])\b`, Tier: TierMedium},
		{Topic: "priority", Pattern: `\b(priority|p[0-3]|high|low|normal)\b`, Tier: TierMedium},
		{Topic: "integration", Pattern: `\b(integration|sync|bridge|api)\b`, Tier: TierMedium},
		{Topic: "memory", Pattern: `\b(memory|reconstruction|archive|index)\b`, Tier: TierMedium},
	}
}

// DefaultRuleset compiles the built-in rules. It panics only on a programming
// error in the table above.
func DefaultRuleset() *Ruleset {
	rs, err := NewRuleset(DefaultRules())
	if err != nil {
		panic(err)
	}
	return rs
}

// rulesFile is the TOML shape of an external ruleset.
type rulesFile struct {
	Rules []Rule `toml:"rules"`
}

// LoadRuleset reads a TOML ruleset file of the form:
//
//	[[rules]]
//	topic = "workflow"
//	pattern = '\b(workflow|process)\b'
//	tier = "high"
func LoadRuleset(path string) (*Ruleset, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read ruleset %s: %w", path, err)
	}
	var rf rulesFile
	if err := toml.Unmarshal(content, &rf); err != nil {
		return nil, fmt.Errorf("failed to parse ruleset %s: %w", path, err)
	}
	rs, err := NewRuleset(rf.Rules)
	if err != nil {
		return nil, fmt.Errorf("ruleset %s: %w", path, err)
	}
	return rs, nil
}
