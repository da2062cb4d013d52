package anthropicompat

import (
	"encoding/json"

	"github.com/glmkit/glmkit/pkg/api"
)

// DecodeResponse turns a buffered Messages API body into the canonical
// message and usage. A response without content is a legitimate backend
// answer (e.g. structured-only output) and decodes to an empty-text
// assistant message, not an error.
func (c Codec) DecodeResponse(body []byte) (api.Message, api.Usage, error) {
	var resp messagesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return api.Message{}, api.Usage{}, api.NewDecodeError("failed to parse backend response", err)
	}

	msg := decodeContent(resp.Content)
	usage := decodeUsage(resp.Usage)
	return msg, usage, nil
}

// decodeContent maps wire content items back to canonical blocks in
// arrival order. Unknown item types are dropped.
func decodeContent(content []wireContent) api.Message {
	msg := api.Message{Role: api.RoleAssistant}

	for _, item := range content {
		switch item.Type {
		case "text":
			msg.Content = append(msg.Content, api.ContentBlock{
				Type: api.ContentTypeText,
				Text: item.Text,
			})
		case "tool_use":
			msg.Content = append(msg.Content, api.ContentBlock{
				Type: api.ContentTypeToolUse,
				ToolUse: &api.ToolUseData{
					ID:    item.ID,
					Name:  item.Name,
					Input: item.Input,
				},
			})
		}
	}

	if msg.Content == nil {
		msg = api.NewTextMessage(api.RoleAssistant, "")
	}
	return msg
}

// decodeUsage reads counters defensively: a missing field stays nil.
func decodeUsage(u *wireUsage) api.Usage {
	if u == nil {
		return api.Usage{}
	}
	return api.Usage{
		InputTokens:  u.InputTokens,
		OutputTokens: u.OutputTokens,
	}
}
