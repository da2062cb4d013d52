package provider

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/glmkit/glmkit/pkg/api"
)

// ModelConfig selects the model for one call. Immutable once handed to
// an adapter; callers build a fresh value per call when overriding.
type ModelConfig struct {
	// Model is the backend model identifier.
	Model string

	// FastModel is an optional cheaper alias used for lightweight calls.
	FastModel string

	// ContextWindow is the model's context limit in tokens (0 = unknown).
	ContextWindow int

	// MaxTokens overrides the codec's default max output tokens when > 0.
	MaxTokens int
}

// WithFast returns a copy with the fast-model alias set, keeping an
// explicit alias if the caller already chose one.
func (c ModelConfig) WithFast(model string) ModelConfig {
	if c.FastModel == "" {
		c.FastModel = model
	}
	return c
}

// Request is a canonical conversation handed to a provider: system text,
// ordered messages, and tool declarations. Tool declarations use the MCP
// tool type directly; codecs that forward tools translate them to their
// wire shape.
type Request struct {
	System   string
	Messages []api.Message
	Tools    []*mcp.Tool
}

// ConfigKey describes one configuration option a provider recognizes.
// Advertised to setup tooling; never mutated at runtime.
type ConfigKey struct {
	Name     string
	Required bool
	Secret   bool
	Default  string
}

// ModelInfo pairs a known model name with its context window.
type ModelInfo struct {
	Name          string
	ContextWindow int
}

// Metadata identifies a provider for registry and setup purposes.
type Metadata struct {
	Name         string
	DisplayName  string
	Description  string
	DefaultModel string
	KnownModels  []ModelInfo
	DocURL       string
	ConfigKeys   []ConfigKey
}

// StreamSnapshot is one emission of a streaming call: the message as
// assembled so far (each snapshot's text is a prefix of the next), the
// usage known so far, and a terminal error when the stream failed.
// After a snapshot with Err != nil no further snapshots follow.
type StreamSnapshot struct {
	Message api.Message
	Usage   *api.Usage
	Err     error
}
