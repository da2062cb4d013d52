package anthropicompat

import (
	"encoding/json"
	"fmt"

	"github.com/glmkit/glmkit/pkg/api"
	"github.com/glmkit/glmkit/pkg/provider"
)

// DefaultMaxTokens is the max_tokens value sent when the model
// configuration does not override it.
const DefaultMaxTokens = 8192

// Codec implements provider.Codec for the Anthropic Messages format.
// The zero value forwards no tools; adapters that trust their backend's
// tool support construct it with ForwardTools set.
type Codec struct {
	// ForwardTools controls whether tool declarations are encoded into
	// the request payload. Backends vary on accepting a tools field, so
	// this is a per-adapter capability rather than a fixed behavior.
	ForwardTools bool
}

var _ provider.Codec = Codec{}

// ForwardsTools reports the codec's tool-forwarding capability.
func (c Codec) ForwardsTools() bool {
	return c.ForwardTools
}

// TranslateRequest builds the Messages API payload. Pure function of its
// inputs: no timestamps, no nonces, byte-identical for identical input.
func (c Codec) TranslateRequest(cfg provider.ModelConfig, req *provider.Request, stream bool) ([]byte, error) {
	maxTokens := DefaultMaxTokens
	if cfg.MaxTokens > 0 {
		maxTokens = cfg.MaxTokens
	}

	wr := messagesRequest{
		Model:     cfg.Model,
		MaxTokens: maxTokens,
		Stream:    stream,
	}

	// An empty system field trips backend validation; attach only when set.
	if req.System != "" {
		wr.System = req.System
	}

	wr.Messages = make([]wireMessage, 0, len(req.Messages))
	for i := range req.Messages {
		wr.Messages = append(wr.Messages, translateMessage(&req.Messages[i]))
	}

	if c.ForwardTools && len(req.Tools) > 0 {
		wr.Tools = make([]wireTool, 0, len(req.Tools))
		for _, t := range req.Tools {
			schema := any(t.InputSchema)
			if schema == nil {
				schema = map[string]any{"type": "object"}
			}
			wr.Tools = append(wr.Tools, wireTool{
				Name:        t.Name,
				Description: t.Description,
				InputSchema: schema,
			})
		}
	}

	return json.Marshal(wr)
}

// translateMessage maps one canonical message to wire content. Text
// blocks collapse into a single text item; tool blocks stay structural.
func translateMessage(m *api.Message) wireMessage {
	wm := wireMessage{Role: translateRole(m.Role)}

	text := m.Text()
	if text != "" {
		wm.Content = append(wm.Content, wireContent{Type: "text", Text: text})
	}

	for _, block := range m.Content {
		switch block.Type {
		case api.ContentTypeText:
			// collapsed above
		case api.ContentTypeToolUse:
			wm.Content = append(wm.Content, wireContent{
				Type:  "tool_use",
				ID:    block.ToolUse.ID,
				Name:  block.ToolUse.Name,
				Input: block.ToolUse.Input,
			})
		case api.ContentTypeToolResult:
			wm.Content = append(wm.Content, wireContent{
				Type:      "tool_result",
				ToolUseID: block.ToolResult.ToolUseID,
				Content:   block.ToolResult.Content,
				IsError:   block.ToolResult.IsError,
			})
		}
	}

	// A message with no encodable content still needs a content array.
	if wm.Content == nil {
		wm.Content = []wireContent{{Type: "text", Text: ""}}
	}

	return wm
}

// translateRole maps a canonical role to the wire role. The canonical
// model only has user and assistant; anything else is a caller bug.
func translateRole(r api.Role) string {
	switch r {
	case api.RoleUser:
		return "user"
	case api.RoleAssistant:
		return "assistant"
	default:
		panic(fmt.Sprintf("anthropicompat: unsupported role %q", r))
	}
}
