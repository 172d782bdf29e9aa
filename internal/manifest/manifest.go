// Package manifest maintains the archive index: one entry per stored
// conversation, in insertion order, with the content signatures used for
// duplicate detection.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/fyrsmithlabs/chatvault/internal/archive"
	"github.com/fyrsmithlabs/chatvault/internal/conversation"
)

// ErrCorrupted signals that the manifest file exists but cannot be parsed.
// Processing must halt rather than rebuild silently, since a rebuilt
// manifest would forget every known signature and re-admit duplicates.
var ErrCorrupted = errors.New("manifest is corrupted")

// formatVersion is the on-disk manifest document version.
const formatVersion = 1

type document struct {
	Version int                          `json:"version"`
	Entries []conversation.ManifestEntry `json:"entries"`
}

// Manifest is the in-memory archive index. Entries keep insertion order,
// which fixes which entry wins when several match the same signatures.
type Manifest struct {
	path    string
	entries []conversation.ManifestEntry
	byID    map[string]int
}

// Load reads the manifest at path. A missing file yields an empty manifest;
// an unreadable or unparsable file yields ErrCorrupted.
func Load(path string) (*Manifest, error) {
	m := &Manifest{path: path, byID: make(map[string]int)}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return m, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupted, path, err)
	}

	m.entries = doc.Entries
	for i, e := range m.entries {
		if e.ID == "" {
			return nil, fmt.Errorf("%w: entry %d has no id", ErrCorrupted, i)
		}
		if _, dup := m.byID[e.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate entry id %s", ErrCorrupted, e.ID)
		}
		m.byID[e.ID] = i
	}
	return m, nil
}

// Add appends an entry. IDs must be unique across the manifest lifetime.
func (m *Manifest) Add(e conversation.ManifestEntry) error {
	if e.ID == "" {
		return errors.New("manifest entry requires an id")
	}
	if _, exists := m.byID[e.ID]; exists {
		return fmt.Errorf("manifest entry %s already exists", e.ID)
	}
	m.byID[e.ID] = len(m.entries)
	m.entries = append(m.entries, e)
	return nil
}

// Get returns the entry with the given id.
func (m *Manifest) Get(id string) (conversation.ManifestEntry, bool) {
	i, ok := m.byID[id]
	if !ok {
		return conversation.ManifestEntry{}, false
	}
	return m.entries[i], true
}

// Entries returns the entries in insertion order. The slice is a copy.
func (m *Manifest) Entries() []conversation.ManifestEntry {
	out := make([]conversation.ManifestEntry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Len reports the number of entries.
func (m *Manifest) Len() int { return len(m.entries) }

// Save writes the manifest through the archive-then-replace protocol, so
// the previous manifest version is always snapshotted before replacement.
func (m *Manifest) Save(w *archive.Writer) error {
	doc := document{Version: formatVersion, Entries: m.entries}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := w.Write(m.path, data, "manifest"); err != nil {
		return fmt.Errorf("failed to save manifest: %w", err)
	}
	return nil
}

// Match describes a duplicate hit against an existing entry.
type Match struct {
	Entry      conversation.ManifestEntry
	MatchCount int
}

// FindDuplicate scans entries in insertion order and returns the first one
// sharing at least threshold signatures with sigs. An empty signature set
// never matches anything.
func (m *Manifest) FindDuplicate(sigs []string, threshold int) (Match, bool) {
	if len(sigs) == 0 || threshold <= 0 {
		return Match{}, false
	}
	want := make(map[string]struct{}, len(sigs))
	for _, s := range sigs {
		want[s] = struct{}{}
	}

	for _, e := range m.entries {
		seen := make(map[string]struct{}, threshold)
		for _, s := range e.Signatures {
			if _, ok := want[s]; ok {
				seen[s] = struct{}{}
			}
		}
		n := len(seen)
		if n >= threshold {
			return Match{Entry: e, MatchCount: n}, true
		}
	}
	return Match{}, false
}
