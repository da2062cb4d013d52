package zai

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/glmkit/glmkit/pkg/api"
	"github.com/glmkit/glmkit/pkg/credentials"
	"github.com/glmkit/glmkit/pkg/debug"
	"github.com/glmkit/glmkit/pkg/observability"
	"github.com/glmkit/glmkit/pkg/provider"
	"github.com/glmkit/glmkit/pkg/provider/anthropicompat"
	"github.com/glmkit/glmkit/pkg/recorder"
	"github.com/glmkit/glmkit/pkg/retry"
)

const providerName = "zai"

// maxResponseBody bounds a buffered batch response.
const maxResponseBody = 32 * 1024 * 1024

// Provider implements provider.Provider for Z.ai.
type Provider struct {
	cfg    Config
	codec  anthropicompat.Codec
	client *http.Client
	creds  credentials.Method
	rec    recorder.Recorder
	policy retry.Policy
	model  provider.ModelConfig
}

var _ provider.Provider = (*Provider)(nil)

// New creates a Z.ai provider. Returns a configuration error when no
// credential source is available.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" && cfg.Credentials == nil {
		return nil, api.NewConfigurationError("ZAI_API_KEY is required")
	}

	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	cfg.Host = strings.TrimRight(cfg.Host, "/")
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.DefaultPolicy()
	}

	creds := cfg.Credentials
	if creds == nil {
		creds = credentials.APIKey{Key: cfg.APIKey}
	}
	rec := cfg.Recorder
	if rec == nil {
		rec = recorder.Nop{}
	}

	return &Provider{
		cfg:    cfg,
		codec:  anthropicompat.Codec{ForwardTools: true},
		client: &http.Client{Timeout: cfg.Timeout},
		creds:  creds,
		rec:    rec,
		policy: cfg.Retry,
		model: provider.ModelConfig{
			Model:         cfg.Model,
			FastModel:     DefaultFastModel,
			ContextWindow: contextWindowFor(cfg.Model),
		},
	}, nil
}

// Metadata returns the provider's identity and setup surface.
func (p *Provider) Metadata() provider.Metadata {
	return provider.Metadata{
		Name:         providerName,
		DisplayName:  "Z.ai",
		Description:  "Z.ai GLM models over the Anthropic-compatible Messages API",
		DefaultModel: DefaultModel,
		KnownModels:  knownModels,
		DocURL:       docURL,
		ConfigKeys: []provider.ConfigKey{
			{Name: "ZAI_API_KEY", Required: true, Secret: true},
			{Name: "ZAI_HOST", Default: DefaultHost},
			{Name: "ZAI_TIMEOUT", Default: "600"},
		},
	}
}

// ModelConfig returns the model configuration the provider was
// constructed with.
func (p *Provider) ModelConfig() provider.ModelConfig {
	return p.model
}

// SupportsStreaming reports that the Messages endpoint streams.
func (p *Provider) SupportsStreaming() bool {
	return true
}

// Close releases idle HTTP connections.
func (p *Provider) Close() error {
	p.client.CloseIdleConnections()
	return nil
}

// Complete performs one non-streaming completion, retrying transient
// failures per the configured policy.
func (p *Provider) Complete(ctx context.Context, cfg provider.ModelConfig, req *provider.Request) (api.Message, api.Usage, error) {
	if cfg.Model == "" {
		cfg = p.model
	}

	payload, err := p.codec.TranslateRequest(cfg, req, false)
	if err != nil {
		return api.Message{}, api.Usage{}, api.NewDecodeError("failed to encode request", err)
	}
	debug.Log("providers", "sending completion request",
		"provider", providerName, "model", cfg.Model, "bytes", len(payload))

	var (
		msg     api.Message
		usage   api.Usage
		attempt int
	)
	retryable := retry.TransportOr(anthropicompat.Transient)

	err = retry.Do(ctx, p.policy, retryable, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			observability.RetryAttemptsTotal.WithLabelValues(providerName, cfg.Model).Inc()
		}

		start := time.Now()
		body, attemptErr := p.post(ctx, payload)
		if attemptErr == nil {
			msg, usage, attemptErr = p.codec.DecodeResponse(body)
		}
		latency := time.Since(start)

		p.record(ctx, recorder.Attempt{
			Provider:     providerName,
			Model:        cfg.Model,
			Number:       attempt,
			RequestBody:  payload,
			ResponseBody: successBody(body, attemptErr),
			Err:          attemptErr,
			Usage:        usageOrNil(usage, attemptErr),
			Latency:      latency,
			StartedAt:    start,
		})
		p.observeAttempt(cfg.Model, latency, attemptErr, retryable)

		return attemptErr
	})
	if err != nil {
		return api.Message{}, api.Usage{}, err
	}

	observability.ObserveUsage(providerName, cfg.Model, usage.InputTokens, usage.OutputTokens)
	return msg, usage, nil
}

// Stream performs one streaming completion. The POST itself is not
// retried; once the backend commits to a stream, failures surface as
// snapshot errors on the returned channel.
func (p *Provider) Stream(ctx context.Context, req *provider.Request) (<-chan provider.StreamSnapshot, error) {
	payload, err := p.codec.TranslateRequest(p.model, req, true)
	if err != nil {
		return nil, api.NewDecodeError("failed to encode request", err)
	}
	debug.Log("streaming", "opening stream",
		"provider", providerName, "model", p.model.Model, "bytes", len(payload))

	httpReq, err := p.newRequest(ctx, payload)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	// No client timeout for streams; the context owns the lifetime.
	streamClient := &http.Client{Transport: p.client.Transport}
	resp, err := streamClient.Do(httpReq)
	if err != nil {
		return nil, anthropicompat.MapNetworkError(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
		resp.Body.Close()
		return nil, anthropicompat.MapHTTPError(resp.StatusCode, body)
	}

	inner := make(chan provider.StreamSnapshot, 16)
	out := make(chan provider.StreamSnapshot, 16)
	start := time.Now()

	go func() {
		defer close(inner)
		defer resp.Body.Close()
		observability.StreamsActive.Inc()
		defer observability.StreamsActive.Dec()
		p.codec.DecodeStream(ctx, resp.Body, inner)
	}()

	// Forward snapshots while tracking the final state so the stream
	// attempt is recorded like a batch attempt.
	go func() {
		defer close(out)
		var final provider.StreamSnapshot
		for snap := range inner {
			final = snap
			select {
			case out <- snap:
			case <-ctx.Done():
				// Drain so the decoder can exit.
				for range inner {
				}
				final = provider.StreamSnapshot{Message: final.Message, Usage: final.Usage, Err: ctx.Err()}
			}
		}

		p.record(ctx, recorder.Attempt{
			Provider:    providerName,
			Model:       p.model.Model,
			Number:      1,
			Streaming:   true,
			RequestBody: payload,
			Err:         final.Err,
			Usage:       final.Usage,
			Latency:     time.Since(start),
			StartedAt:   start,
		})
		outcome := "success"
		switch {
		case errors.Is(final.Err, context.Canceled), errors.Is(final.Err, context.DeadlineExceeded):
			outcome = "canceled"
		case final.Err != nil:
			outcome = "fatal_error"
		}
		observability.ProviderRequestsTotal.WithLabelValues(providerName, p.model.Model, outcome).Inc()
		observability.ProviderLatency.WithLabelValues(providerName, p.model.Model).Observe(time.Since(start).Seconds())
		if final.Err == nil && final.Usage != nil {
			observability.ObserveUsage(providerName, p.model.Model, final.Usage.InputTokens, final.Usage.OutputTokens)
		}
	}()

	return out, nil
}

// post sends one buffered request and returns the response body, mapping
// transport and HTTP failures to typed errors.
func (p *Provider) post(ctx context.Context, payload []byte) ([]byte, error) {
	httpReq, err := p.newRequest(ctx, payload)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, anthropicompat.MapNetworkError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, anthropicompat.MapNetworkError(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, anthropicompat.MapHTTPError(resp.StatusCode, body)
	}
	return body, nil
}

// newRequest builds the POST with authentication and protocol headers.
func (p *Provider) newRequest(ctx context.Context, payload []byte) (*http.Request, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.Host+messagesPath, bytes.NewReader(payload))
	if err != nil {
		return nil, api.NewTransportError(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("anthropic-version", anthropicVersion)
	if err := p.creds.Apply(httpReq); err != nil {
		return nil, api.NewConfigurationError(err.Error())
	}
	return httpReq, nil
}

// record hands an attempt to the recorder; a failing recorder never
// fails the call.
func (p *Provider) record(ctx context.Context, a recorder.Attempt) {
	if err := p.rec.Record(ctx, a); err != nil {
		debug.Log("recorder", "attempt record failed", "error", err)
	}
}

// observeAttempt updates per-attempt metrics.
func (p *Provider) observeAttempt(model string, latency time.Duration, err error, retryable retry.Retryable) {
	outcome := "success"
	if err != nil {
		outcome = "fatal_error"
		if retryable(err) {
			outcome = "transient_error"
		}
	}
	observability.ProviderRequestsTotal.WithLabelValues(providerName, model, outcome).Inc()
	observability.ProviderLatency.WithLabelValues(providerName, model).Observe(latency.Seconds())
}

func successBody(body []byte, err error) []byte {
	if err != nil {
		return nil
	}
	return body
}

func usageOrNil(u api.Usage, err error) *api.Usage {
	if err != nil {
		return nil
	}
	c := u.Clone()
	return &c
}
