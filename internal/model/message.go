// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	default:
		return string(r)
	}
}

// =============================================================================
// FEEDBACK TYPE
// =============================================================================

// Feedback is the user's rating of an assistant message.
type Feedback string

const (
	FeedbackNone Feedback = ""
	FeedbackUp   Feedback = "up"
	FeedbackDown Feedback = "down"
)

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single message in a conversation.
//
// Assistant messages are created as streaming placeholders and mutated in
// place by the turn controller as events arrive; once a terminal event has
// been processed the message is frozen.
type Message struct {
	// Identity
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Timestamp time.Time `json:"timestamp"`

	// Content (final; while streaming, tokens accumulate in streamContent)
	Content string `json:"content"`

	// Streaming state (not persisted)
	// PERFORMANCE: strings.Builder avoids quadratic allocations during streaming
	IsStreaming   bool            `json:"-"`
	streamContent strings.Builder `json:"-"`

	// Retrieval results attached mid-stream, possibly replaced wholesale by
	// the curated list on completion.
	Sources []SourceDocument `json:"sources,omitempty"`

	// StatusText is the retrieval-phase status line ("Found 3 documents...").
	StatusText string `json:"status_text,omitempty"`

	// Completion-only fields, absent until the done event.
	Reasoning    string  `json:"reasoning,omitempty"`
	Faithfulness float64 `json:"faithfulness,omitempty"`
	HasScore     bool    `json:"has_score,omitempty"`

	// Error state
	IsError bool `json:"is_error,omitempty"`

	// FeedbackGiven is absorbing: once set, further rating is disabled.
	FeedbackGiven Feedback `json:"feedback_given,omitempty"`
}

// NewUserMessage creates a new user message. User messages are terminal
// immediately.
func NewUserMessage(content string) *Message {
	return &Message{
		ID:        generateID(),
		Role:      RoleUser,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewAssistantMessage creates a streaming assistant placeholder with empty
// content.
func NewAssistantMessage() *Message {
	return &Message{
		ID:          generateID(),
		Role:        RoleAssistant,
		Timestamp:   time.Now(),
		IsStreaming: true,
	}
}

// =============================================================================
// MESSAGE METHODS
// =============================================================================

// AppendToken appends a token fragment in arrival order. No-op once the
// message has been finalized.
func (m *Message) AppendToken(token string) {
	if m.IsStreaming {
		m.streamContent.WriteString(token)
	}
}

// AttachRetrieval records the retrieval-phase sources and status line
// without ending the streaming state.
func (m *Message) AttachRetrieval(sources []SourceDocument, statusText string) {
	if !m.IsStreaming {
		return
	}
	m.Sources = sources
	m.StatusText = statusText
}

// Finalize freezes the message with the completion payload. A non-empty
// curated list replaces the retrieval-phase sources wholesale; an empty one
// preserves them. The accumulated content has structural scaffolding
// stripped before display.
func (m *Message) Finalize(reasoning string, curated []SourceDocument, faithfulness float64, hasScore bool) {
	if !m.IsStreaming {
		return
	}
	m.Content = StripScaffolding(m.streamContent.String())
	m.streamContent.Reset()
	m.IsStreaming = false
	m.StatusText = ""

	m.Reasoning = reasoning
	if hasScore {
		m.Faithfulness = faithfulness
		m.HasScore = true
	}
	if len(curated) > 0 {
		m.Sources = curated
	}
}

// Fail freezes the message in a terminal error state with the given
// user-facing text.
func (m *Message) Fail(fallback string) {
	m.Content = fallback
	m.streamContent.Reset()
	m.IsStreaming = false
	m.StatusText = ""
	m.IsError = true
}

// GetDisplayContent returns the content to display (streaming or final).
func (m *Message) GetDisplayContent() string {
	if m.IsStreaming {
		return m.streamContent.String()
	}
	return m.Content
}

// SetFeedback records the user's rating. Returns false if the message was
// already rated or is not a finished assistant message.
func (m *Message) SetFeedback(fb Feedback) bool {
	if m.Role != RoleAssistant || m.IsStreaming || m.FeedbackGiven != FeedbackNone {
		return false
	}
	if fb != FeedbackUp && fb != FeedbackDown {
		return false
	}
	m.FeedbackGiven = fb
	return true
}

// IsEmpty returns true if the message has no content.
func (m *Message) IsEmpty() bool {
	return len(m.Content) == 0 && m.streamContent.Len() == 0
}

// Preview returns a truncated preview of the message content.
// Uses rune-based truncation to handle Unicode correctly.
func (m *Message) Preview(maxLen int) string {
	content := m.GetDisplayContent()
	runes := []rune(content)
	if len(runes) <= maxLen {
		return content
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// generateID creates a unique message ID.
func generateID() string {
	return "msg_" + uuid.NewString()
}
