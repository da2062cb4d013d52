package api

import (
	"encoding/json"
	"strings"
)

// Role identifies the message sender.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ContentType identifies the kind of a content block.
type ContentType string

const (
	ContentTypeText       ContentType = "text"
	ContentTypeToolUse    ContentType = "tool_use"
	ContentTypeToolResult ContentType = "tool_result"
)

// ContentBlock is one element of a message's ordered content sequence.
// Exactly one of the type-specific fields is populated, selected by Type.
type ContentBlock struct {
	Type       ContentType     `json:"type"`
	Text       string          `json:"text,omitempty"`
	ToolUse    *ToolUseData    `json:"tool_use,omitempty"`
	ToolResult *ToolResultData `json:"tool_result,omitempty"`
}

// ToolUseData holds an assistant's request to invoke a tool.
type ToolUseData struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input,omitempty"`
}

// ToolResultData holds the outcome of a tool invocation, sent back as
// user content.
type ToolResultData struct {
	ToolUseID string `json:"tool_use_id"`
	Content   string `json:"content"`
	IsError   bool   `json:"is_error,omitempty"`
}

// Message is one conversation turn. Content is append-only while a
// streaming response is being assembled and must not be mutated once the
// message has been handed to a caller.
type Message struct {
	Role    Role           `json:"role"`
	Content []ContentBlock `json:"content"`
}

// NewTextMessage builds a single-block text message.
func NewTextMessage(role Role, text string) Message {
	return Message{
		Role:    role,
		Content: []ContentBlock{{Type: ContentTypeText, Text: text}},
	}
}

// Text concatenates all text blocks in content order. Tool blocks are
// skipped; a message without text blocks yields the empty string.
func (m *Message) Text() string {
	var b strings.Builder
	for _, c := range m.Content {
		if c.Type == ContentTypeText {
			b.WriteString(c.Text)
		}
	}
	return b.String()
}

// AppendText grows the trailing text block, creating one if the message
// ends with a non-text block or has no content yet. Used by stream
// decoders to apply content deltas.
func (m *Message) AppendText(delta string) {
	if delta == "" {
		return
	}
	if n := len(m.Content); n > 0 && m.Content[n-1].Type == ContentTypeText {
		m.Content[n-1].Text += delta
		return
	}
	m.Content = append(m.Content, ContentBlock{Type: ContentTypeText, Text: delta})
}

// Clone returns a deep-enough copy for snapshot emission: the content
// slice is copied so later appends on the accumulator do not alias
// blocks already handed to a consumer.
func (m *Message) Clone() Message {
	out := Message{Role: m.Role}
	if len(m.Content) > 0 {
		out.Content = make([]ContentBlock, len(m.Content))
		copy(out.Content, m.Content)
	}
	return out
}
