package provider

import (
	"context"
	"io"

	"github.com/glmkit/glmkit/pkg/api"
)

// Provider abstracts one LLM backend adapter.
//
// Implementations must be safe for concurrent use: per-call state (retry
// counters, stream accumulators) is owned by the call, and only read-only
// configuration (host, auth, timeout) is shared between calls.
type Provider interface {
	// Metadata returns the provider's identity, known models, and
	// recognized configuration keys.
	Metadata() Metadata

	// ModelConfig returns the model configuration the provider was
	// constructed with.
	ModelConfig() ModelConfig

	// Complete performs one non-streaming completion with the given
	// model configuration. Retries transient failures per the adapter's
	// policy; retries are invisible to the caller except as latency.
	Complete(ctx context.Context, cfg ModelConfig, req *Request) (api.Message, api.Usage, error)

	// Stream performs one streaming completion using the provider's own
	// model configuration. The returned channel emits monotonically
	// growing snapshots and is closed by the provider on completion,
	// error, or context cancellation. The POST itself is not retried:
	// once bytes flow, a failure surfaces as a snapshot error.
	Stream(ctx context.Context, req *Request) (<-chan StreamSnapshot, error)

	// SupportsStreaming reports whether Stream is implemented and
	// trusted. This is a capability flag for callers, not a fallback:
	// a caller seeing false uses Complete unconditionally.
	SupportsStreaming() bool

	// Close releases provider resources (idle HTTP connections).
	Close() error
}

// Codec encapsulates one wire-format family: request translation, batch
// response decoding, and stream decoding. An adapter selects its codec
// once at construction, so retry and orchestration logic is never
// duplicated per format.
type Codec interface {
	// TranslateRequest builds the vendor JSON payload. Pure: identical
	// inputs yield byte-identical payloads. The stream flag is the only
	// payload-level difference between the two call modes.
	TranslateRequest(cfg ModelConfig, req *Request, stream bool) ([]byte, error)

	// DecodeResponse turns a buffered vendor JSON body into the
	// canonical message and usage.
	DecodeResponse(body []byte) (api.Message, api.Usage, error)

	// DecodeStream consumes the vendor event stream and pushes a
	// snapshot after every applied event. It returns when the stream
	// finishes, fails, or ctx is cancelled; it never closes ch.
	DecodeStream(ctx context.Context, body io.Reader, ch chan<- StreamSnapshot)

	// ForwardsTools reports whether tool declarations are encoded into
	// the request payload or dropped.
	ForwardsTools() bool
}
