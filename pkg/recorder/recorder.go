// Package recorder is the side channel that observes every physical
// provider attempt: request payload, response or error, and usage when
// known. Recording is best-effort by contract — an adapter reports each
// attempt before returning control, but a recorder failure is never
// allowed to mask the call's own outcome.
package recorder

import (
	"context"
	"log/slog"
	"time"

	"github.com/glmkit/glmkit/pkg/api"
)

// Attempt describes one physical HTTP attempt of a logical call.
type Attempt struct {
	Provider string
	Model    string

	// Number is the 1-based attempt counter within the logical call.
	Number int

	// Streaming marks attempts made for the streaming entry point.
	Streaming bool

	RequestBody []byte

	// ResponseBody holds the backend body on success; nil on failure.
	ResponseBody []byte

	// Err holds the attempt's failure, nil on success.
	Err error

	// Usage is attached when token counts are known.
	Usage *api.Usage

	Latency   time.Duration
	StartedAt time.Time
}

// Recorder observes attempts. Implementations must not block the caller
// indefinitely; slow sinks should buffer or drop.
type Recorder interface {
	Record(ctx context.Context, a Attempt) error
}

// Nop discards all attempts.
type Nop struct{}

func (Nop) Record(context.Context, Attempt) error { return nil }

// Slog writes attempts as structured log records. The zero value logs
// to slog's default logger.
type Slog struct {
	Logger *slog.Logger
}

func (r Slog) Record(_ context.Context, a Attempt) error {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}

	args := []any{
		"provider", a.Provider,
		"model", a.Model,
		"attempt", a.Number,
		"streaming", a.Streaming,
		"latency", a.Latency,
		"request_bytes", len(a.RequestBody),
	}
	if a.Usage != nil {
		if a.Usage.InputTokens != nil {
			args = append(args, "input_tokens", *a.Usage.InputTokens)
		}
		if a.Usage.OutputTokens != nil {
			args = append(args, "output_tokens", *a.Usage.OutputTokens)
		}
	}

	if a.Err != nil {
		logger.Warn("provider attempt failed", append(args, "error", a.Err)...)
	} else {
		logger.Info("provider attempt", append(args, "response_bytes", len(a.ResponseBody))...)
	}
	return nil
}
