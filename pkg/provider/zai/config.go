package zai

import (
	"time"

	"github.com/glmkit/glmkit/pkg/credentials"
	"github.com/glmkit/glmkit/pkg/provider"
	"github.com/glmkit/glmkit/pkg/recorder"
	"github.com/glmkit/glmkit/pkg/retry"
)

const (
	// DefaultHost is the Z.ai API origin.
	DefaultHost = "https://api.z.ai"

	// DefaultModel balances capability and cost.
	DefaultModel = "glm-4.5"

	// DefaultFastModel serves lightweight auxiliary calls.
	DefaultFastModel = "glm-4.5-air"

	// DefaultTimeout covers the slowest completions; the API can take
	// minutes on long generations.
	DefaultTimeout = 600 * time.Second

	messagesPath     = "/api/anthropic/v1/messages"
	anthropicVersion = "2023-06-01"
	docURL           = "https://z.ai/docs"
)

// knownModels lists the GLM models the platform serves, with their
// context windows.
var knownModels = []provider.ModelInfo{
	{Name: "glm-4.6", ContextWindow: 200_000},
	{Name: "glm-4.5", ContextWindow: 128_000},
	{Name: "glm-4.5-air", ContextWindow: 128_000},
}

// Config holds configuration for the Z.ai provider adapter.
type Config struct {
	// Host is the API origin. Defaults to DefaultHost.
	Host string

	// APIKey authenticates requests via the x-api-key header.
	// Required unless Credentials is set.
	APIKey string

	// Credentials overrides the default header authentication, e.g.
	// with a signed JWT assertion for legacy Zhipu keys.
	Credentials credentials.Method

	// Model selects the default model. Defaults to DefaultModel.
	Model string

	// Timeout for non-streaming HTTP requests. Defaults to DefaultTimeout.
	Timeout time.Duration

	// Retry controls the attempt policy for Complete. Zero value means
	// retry.DefaultPolicy.
	Retry retry.Policy

	// Recorder observes every physical attempt. Defaults to recorder.Nop.
	Recorder recorder.Recorder
}

// contextWindowFor returns the context window for a known model, 0 for
// models the adapter has not seen before.
func contextWindowFor(model string) int {
	for _, m := range knownModels {
		if m.Name == model {
			return m.ContextWindow
		}
	}
	return 0
}
