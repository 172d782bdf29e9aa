package classify

import (
	"strings"

	"github.com/fyrsmithlabs/chatvault/internal/conversation"
)

// uncertainEscalationThreshold is the number of distinct uncertain concepts
// that triggers review escalation.
const uncertainEscalationThreshold = 3

// Decision thresholds for the fixed-priority rule chain in Decide.
const (
	keepMinDomainMatches = 3
	keepMinConfidence    = 0.6
	discardMaxConfidence = 0.3
)

// Extraction is the scored result of evaluating text against a ruleset.
type Extraction struct {
	// Topics are matched rule topics, in rule order, deduplicated.
	Topics []string
	// Keywords are the case-folded matched tokens, in match order, deduplicated.
	Keywords []string
	// UncertainFlags are medium-tier topics that matched.
	UncertainFlags []string
	// NeedsIntervention is set when escalation is enabled and at least three
	// distinct uncertain concepts matched.
	NeedsIntervention bool
	// DomainMatches counts extracted keywords that name a high-tier topic.
	DomainMatches int
	// Confidence is highTopics / max(totalTopics, 1): a precision-style
	// ratio over topic categories, not over raw matches.
	Confidence float64
}

// Evaluate scores text against the ruleset. review enables human-review
// escalation for uncertain classifications.
func (rs *Ruleset) Evaluate(text string, review bool) Extraction {
	var topics, keywords, uncertain []string
	seenTopic := map[string]bool{}
	seenKeyword := map[string]bool{}
	seenConcept := map[string]bool{}
	highTopics := map[string]bool{}

	for _, rule := range rs.rules {
		matches := rule.re.FindAllString(text, -1)
		if len(matches) == 0 {
			continue
		}
		if !seenTopic[rule.topic] {
			seenTopic[rule.topic] = true
			topics = append(topics, rule.topic)
		}
		if rule.tier == TierHigh {
			highTopics[rule.topic] = true
		}
		for _, m := range matches {
			folded := strings.ToLower(m)
			if !seenKeyword[folded] {
				seenKeyword[folded] = true
				keywords = append(keywords, folded)
			}
		}
		if rule.tier == TierMedium && !seenConcept[rule.topic] {
			seenConcept[rule.topic] = true
			uncertain = append(uncertain, rule.topic)
		}
	}

	domainMatches := 0
	for _, kw := range keywords {
		if rs.highTopics[kw] {
			domainMatches++
		}
	}

	confidence := float64(len(highTopics)) / float64(max(len(topics), 1))

	return Extraction{
		Topics:            topics,
		Keywords:          keywords,
		UncertainFlags:    uncertain,
		NeedsIntervention: review && len(uncertain) >= uncertainEscalationThreshold,
		DomainMatches:     domainMatches,
		Confidence:        confidence,
	}
}

// Outcome is the rendered decision for an extraction.
type Outcome struct {
	Decision conversation.Decision
	Reason   string
}

// Decide applies the fixed-priority decision chain. The order is load
// bearing: the high-relevance rule pre-empts review escalation even when
// both conditions hold.
func Decide(ext Extraction) Outcome {
	switch {
	case ext.DomainMatches >= keepMinDomainMatches && ext.Confidence >= keepMinConfidence:
		return Outcome{Decision: conversation.DecisionKeep, Reason: "high relevance"}
	case ext.NeedsIntervention:
		return Outcome{Decision: conversation.DecisionFlag, Reason: "uncertain classification - needs review"}
	case ext.DomainMatches == 0 && ext.Confidence < discardMaxConfidence:
		return Outcome{Decision: conversation.DecisionDiscard, Reason: "low relevance"}
	default:
		return Outcome{Decision: conversation.DecisionFlag, Reason: "borderline relevance"}
	}
}
