// Package export rebuilds conversations from ChatGPT export archives. An
// export stores each conversation as a node graph (branching edits); this
// package linearizes the active branch into ordered messages and renders a
// transcript the ingestion pipeline can consume.
package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrNoConversations signals an export with nothing usable in it.
var ErrNoConversations = errors.New("no valid conversations in export")

// maxTraversalSteps bounds the parent walk against mapping cycles.
const maxTraversalSteps = 1000

// previewLen is the fixed preview length taken from first and last messages.
const previewLen = 100

// Conversation is one raw conversation from an export file.
type Conversation struct {
	Title       string          `json:"title"`
	ID          string          `json:"id"`
	CreateTime  float64         `json:"create_time"`
	UpdateTime  float64         `json:"update_time"`
	CurrentNode string          `json:"current_node"`
	Mapping     map[string]Node `json:"mapping"`
}

// Node is one entry in the conversation graph.
type Node struct {
	Message  *Message `json:"message"`
	Parent   *string  `json:"parent"`
	Children []string `json:"children"`
}

// Message is a node's payload.
type Message struct {
	Author  Author  `json:"author"`
	Content Content `json:"content"`
}

// Author carries the speaker role.
type Author struct {
	Role string `json:"role"`
}

// Content is the polymorphic message body. Text messages carry Parts; code
// and execution output carry Text.
type Content struct {
	ContentType string            `json:"content_type"`
	Parts       []json.RawMessage `json:"parts"`
	Text        string            `json:"text"`
}

// RebuiltMessage is one linearized message.
type RebuiltMessage struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Rebuilt is one validated, linearized conversation.
type Rebuilt struct {
	Title        string           `json:"title"`
	ID           string           `json:"id"`
	CreateTime   time.Time        `json:"create_time"`
	UpdateTime   time.Time        `json:"update_time"`
	Messages     []RebuiltMessage `json:"messages"`
	UserTurns    int              `json:"user_turns"`
	FirstPreview string           `json:"first_preview"`
	LastPreview  string           `json:"last_preview"`
}

// Failure records why one conversation could not be rebuilt.
type Failure struct {
	Title  string `json:"title,omitempty"`
	ID     string `json:"id,omitempty"`
	Reason string `json:"reason"`
}

// Report summarizes one export rebuild.
type Report struct {
	Rebuilt []Rebuilt
	Failed  []Failure
}

// Rebuilder linearizes export files.
type Rebuilder struct {
	logger *zap.Logger
}

// NewRebuilder creates a Rebuilder.
func NewRebuilder(logger *zap.Logger) *Rebuilder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Rebuilder{logger: logger.Named("export")}
}

// exportFile accepts both export shapes: a bare conversation array, or an
// object with a "conversations" field.
type exportFile struct {
	Conversations []Conversation `json:"conversations"`
}

// ReadFile loads conversations from an export file, dropping entries
// without a title or id.
func (r *Rebuilder) ReadFile(path string) ([]Conversation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read export: %w", err)
	}

	var convs []Conversation
	if err := json.Unmarshal(data, &convs); err != nil {
		var wrapped exportFile
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return nil, fmt.Errorf("failed to parse export %s: %w", path, err)
		}
		convs = wrapped.Conversations
	}

	valid := convs[:0]
	for _, c := range convs {
		if strings.TrimSpace(c.Title) == "" || c.ID == "" {
			continue
		}
		valid = append(valid, c)
	}
	r.logger.Info("export loaded",
		zap.String("path", path),
		zap.Int("valid", len(valid)),
		zap.Int("total", len(convs)))
	return valid, nil
}

// Rebuild linearizes every conversation and validates the result. Failures
// are collected, never fatal for the batch.
func (r *Rebuilder) Rebuild(convs []Conversation) (Report, error) {
	if len(convs) == 0 {
		return Report{}, ErrNoConversations
	}

	var rep Report
	for _, conv := range convs {
		msgs := linearize(conv)
		if len(msgs) == 0 {
			rep.Failed = append(rep.Failed, Failure{
				Title:  conv.Title,
				ID:     conv.ID,
				Reason: "no messages extracted",
			})
			continue
		}

		userTurns := 0
		assistantTurns := 0
		for _, m := range msgs {
			switch m.Role {
			case "user":
				userTurns++
			case "assistant":
				assistantTurns++
			}
		}
		if userTurns == 0 {
			rep.Failed = append(rep.Failed, Failure{
				Title:  conv.Title,
				ID:     conv.ID,
				Reason: "no user messages",
			})
			continue
		}

		rep.Rebuilt = append(rep.Rebuilt, Rebuilt{
			Title:        conv.Title,
			ID:           conv.ID,
			CreateTime:   time.Unix(int64(conv.CreateTime), 0).UTC(),
			UpdateTime:   time.Unix(int64(conv.UpdateTime), 0).UTC(),
			Messages:     msgs,
			UserTurns:    userTurns,
			FirstPreview: preview(msgs[0].Text, true),
			LastPreview:  preview(msgs[len(msgs)-1].Text, false),
		})
	}

	r.logger.Info("export rebuilt",
		zap.Int("rebuilt", len(rep.Rebuilt)),
		zap.Int("failed", len(rep.Failed)))
	return rep, nil
}

// linearize extracts the active message branch. Primary path: walk parents
// upward from current_node and reverse. Fallback when current_node is
// missing: walk downward from the root, always taking the newest child
// branch.
func linearize(conv Conversation) []RebuiltMessage {
	if len(conv.Mapping) == 0 {
		return nil
	}

	if node, ok := conv.Mapping[conv.CurrentNode]; ok && conv.CurrentNode != "" {
		var msgs []RebuiltMessage
		id := conv.CurrentNode
		for steps := 0; steps < maxTraversalSteps; steps++ {
			if m := messageOf(node); m != nil {
				msgs = append(msgs, *m)
			}
			if node.Parent == nil || *node.Parent == id {
				break
			}
			id = *node.Parent
			next, ok := conv.Mapping[id]
			if !ok {
				break
			}
			node = next
		}
		reverse(msgs)
		return msgs
	}

	rootID := ""
	for id, node := range conv.Mapping {
		if node.Parent == nil {
			rootID = id
			break
		}
	}
	if rootID == "" {
		return nil
	}

	var msgs []RebuiltMessage
	visited := map[string]bool{}
	id := rootID
	for !visited[id] {
		visited[id] = true
		node, ok := conv.Mapping[id]
		if !ok {
			break
		}
		if m := messageOf(node); m != nil {
			msgs = append(msgs, *m)
		}
		if len(node.Children) == 0 {
			break
		}
		id = node.Children[len(node.Children)-1]
	}
	return msgs
}

// messageOf extracts a usable message from a node, or nil when the node has
// no text or an out-of-scope role.
func messageOf(node Node) *RebuiltMessage {
	if node.Message == nil {
		return nil
	}
	role := node.Message.Author.Role
	switch role {
	case "user", "assistant", "tool":
	default:
		return nil
	}
	text := extractText(node.Message.Content)
	if text == "" {
		return nil
	}
	return &RebuiltMessage{Role: role, Text: text}
}

// extractText pulls the body out of the content variants that carry
// human-readable text.
func extractText(c Content) string {
	ctype := c.ContentType
	if ctype == "" {
		ctype = "text"
	}
	switch ctype {
	case "text":
		if len(c.Parts) == 0 {
			return ""
		}
		var s string
		if err := json.Unmarshal(c.Parts[0], &s); err != nil {
			return string(c.Parts[0])
		}
		return s
	case "code", "execution_output", "tether_quote":
		return c.Text
	default:
		return ""
	}
}

// Transcript renders a rebuilt conversation as role-prefixed dialogue lines
// the ingestion pipeline parses natively.
func (rb *Rebuilt) Transcript() string {
	var b strings.Builder
	for _, m := range rb.Messages {
		switch m.Role {
		case "user":
			b.WriteString("User: ")
		case "assistant":
			b.WriteString("Assistant: ")
		case "tool":
			b.WriteString("Tool: ")
		}
		b.WriteString(strings.ReplaceAll(m.Text, "\n", " "))
		b.WriteString("\n")
	}
	return b.String()
}

func preview(text string, fromStart bool) string {
	runes := []rune(text)
	if len(runes) <= previewLen {
		return strings.TrimSpace(text)
	}
	if fromStart {
		return strings.TrimSpace(string(runes[:previewLen]))
	}
	return strings.TrimSpace(string(runes[len(runes)-previewLen:]))
}

func reverse(msgs []RebuiltMessage) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}
