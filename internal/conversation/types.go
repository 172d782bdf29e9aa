// Package conversation implements the transcript normalization core:
// splitting raw text into candidate conversations, extracting speaker turns
// and code fragments, deriving duplicate-detection signatures, and rendering
// archived records back into stable human-readable form.
package conversation

import (
	"fmt"
	"time"
)

// Role identifies the speaker of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Valid reports whether the role is one of the known speaker roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleTool:
		return true
	}
	return false
}

// Decision is the classification outcome for a conversation.
type Decision string

const (
	DecisionKeep    Decision = "keep"
	DecisionFlag    Decision = "flag"
	DecisionDiscard Decision = "discard"
)

// Valid reports whether the decision is a known outcome.
func (d Decision) Valid() bool {
	switch d {
	case DecisionKeep, DecisionFlag, DecisionDiscard:
		return true
	}
	return false
}

// Turn is one speaker-attributed message within a conversation. User and
// assistant turns from the same exchange share a TurnIndex, starting at 1.
type Turn struct {
	Role      Role   `json:"role"`
	Content   string `json:"content"`
	TurnIndex int    `json:"turn_index"`
}

// CodeFragment describes a fenced code region found in a conversation.
// The body itself is not stored; ContentHash identifies it.
type CodeFragment struct {
	Language    string `json:"language"`
	LineCount   int    `json:"line_count"`
	Description string `json:"description"`
	ContentHash string `json:"content_hash"`
}

// Classification is the rendered keep/flag/discard decision for a record.
type Classification struct {
	Decision   Decision `json:"decision"`
	Reason     string   `json:"reason"`
	Confidence float64  `json:"confidence"`
}

// Record is one processed conversation. It is immutable after construction:
// the id is assigned exactly once and signatures are never recomputed, since
// recomputing them would break duplicate detection stability.
type Record struct {
	ID             string                  `json:"id"`
	Title          string                  `json:"title"`
	Turns          []Turn                  `json:"turns"`
	CodeFragments  map[string]CodeFragment `json:"code_fragments,omitempty"`
	Signatures     []string                `json:"signatures"`
	Topics         []string                `json:"topics"`
	Keywords       []string                `json:"keywords"`
	Classification Classification          `json:"classification"`
	CreatedAt      time.Time               `json:"created_at"`
}

// Validate enforces the construction invariants of a record.
func (r *Record) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("record: id must not be empty")
	}
	if !r.Classification.Decision.Valid() {
		return fmt.Errorf("record %s: invalid decision %q", r.ID, r.Classification.Decision)
	}
	if r.Classification.Confidence < 0 || r.Classification.Confidence > 1 {
		return fmt.Errorf("record %s: confidence %v out of [0,1]", r.ID, r.Classification.Confidence)
	}
	for i, turn := range r.Turns {
		if !turn.Role.Valid() {
			return fmt.Errorf("record %s: turn %d has invalid role %q", r.ID, i, turn.Role)
		}
	}
	if r.CreatedAt.IsZero() {
		return fmt.Errorf("record %s: created_at must be set", r.ID)
	}
	return nil
}

// ManifestEntry is the lightweight index record for an archived conversation.
// The manifest is the sole source of truth for "does this id exist" and
// "where is its full record stored".
type ManifestEntry struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	CreatedAt       time.Time `json:"created_at"`
	StorageLocation string    `json:"storage_location"`
	RelevanceScore  float64   `json:"relevance_score"`
	Signatures      []string  `json:"signatures"`
}

// DecisionLogEntry is one append-only audit record. Entries are never
// mutated or deleted after append.
type DecisionLogEntry struct {
	SubjectID  string    `json:"subject_id"`
	Decision   Decision  `json:"decision"`
	Reason     string    `json:"reason"`
	Topics     []string  `json:"topics"`
	Confidence float64   `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"`
}
