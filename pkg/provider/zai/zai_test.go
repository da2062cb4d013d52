package zai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/glmkit/glmkit/pkg/api"
	"github.com/glmkit/glmkit/pkg/provider"
	"github.com/glmkit/glmkit/pkg/recorder"
	"github.com/glmkit/glmkit/pkg/retry"
)

// fastRetry keeps test retries near-instant.
func fastRetry() retry.Policy {
	return retry.Policy{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	}
}

// memoryRecorder collects attempts for assertions.
type memoryRecorder struct {
	mu       sync.Mutex
	attempts []recorder.Attempt
}

func (r *memoryRecorder) Record(_ context.Context, a recorder.Attempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = append(r.attempts, a)
	return nil
}

func (r *memoryRecorder) all() []recorder.Attempt {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recorder.Attempt(nil), r.attempts...)
}

func successBodyJSON() string {
	return `{
		"id": "msg_01",
		"type": "message",
		"role": "assistant",
		"model": "glm-4.5",
		"content": [{"type": "text", "text": "OK"}],
		"stop_reason": "end_turn",
		"usage": {"input_tokens": 5, "output_tokens": 1}
	}`
}

func TestComplete_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/api/anthropic/v1/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "sk-test" {
			t.Errorf("x-api-key = %q", r.Header.Get("x-api-key"))
		}
		if r.Header.Get("anthropic-version") != "2023-06-01" {
			t.Errorf("anthropic-version = %q", r.Header.Get("anthropic-version"))
		}

		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		if payload["model"] != "glm-4.5" {
			t.Errorf("model = %v", payload["model"])
		}
		if _, present := payload["stream"]; present {
			t.Error("batch request should not carry stream flag")
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(successBodyJSON()))
	}))
	defer srv.Close()

	p, err := New(Config{Host: srv.URL, APIKey: "sk-test", Retry: fastRetry()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer p.Close()

	req := &provider.Request{
		System:   "You are helpful.",
		Messages: []api.Message{api.NewTextMessage(api.RoleUser, "hello")},
	}
	msg, usage, err := p.Complete(context.Background(), p.ModelConfig(), req)
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got := msg.Text(); got != "OK" {
		t.Errorf("text = %q, want OK", got)
	}
	if usage.InputTokens == nil || *usage.InputTokens != 5 {
		t.Errorf("input tokens = %v, want 5", usage.InputTokens)
	}
	if usage.OutputTokens == nil || *usage.OutputTokens != 1 {
		t.Errorf("output tokens = %v, want 1", usage.OutputTokens)
	}
}

func TestComplete_RetriesTransientThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if n <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"type": "error", "error": {"type": "rate_limit_error", "message": "slow down"}}`))
			return
		}
		w.Write([]byte(successBodyJSON()))
	}))
	defer srv.Close()

	rec := &memoryRecorder{}
	p, err := New(Config{Host: srv.URL, APIKey: "sk-test", Retry: fastRetry(), Recorder: rec})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer p.Close()

	req := &provider.Request{Messages: []api.Message{api.NewTextMessage(api.RoleUser, "hi")}}
	msg, _, err := p.Complete(context.Background(), p.ModelConfig(), req)
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if msg.Text() != "OK" {
		t.Errorf("text = %q", msg.Text())
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("backend calls = %d, want 3", got)
	}

	attempts := rec.all()
	if len(attempts) != 3 {
		t.Fatalf("recorded attempts = %d, want 3", len(attempts))
	}
	for i, a := range attempts {
		if a.Number != i+1 {
			t.Errorf("attempt[%d].Number = %d", i, a.Number)
		}
	}
	if attempts[0].Err == nil || attempts[1].Err == nil {
		t.Error("failed attempts should carry their error")
	}
	if attempts[2].Err != nil {
		t.Errorf("final attempt err = %v", attempts[2].Err)
	}
	if attempts[2].Usage == nil || *attempts[2].Usage.InputTokens != 5 {
		t.Errorf("final attempt usage = %+v", attempts[2].Usage)
	}
}

func TestComplete_FatalErrorNoRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"type": "error", "error": {"type": "authentication_error", "message": "bad key"}}`))
	}))
	defer srv.Close()

	p, err := New(Config{Host: srv.URL, APIKey: "sk-bad", Retry: fastRetry()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer p.Close()

	req := &provider.Request{Messages: []api.Message{api.NewTextMessage(api.RoleUser, "hi")}}
	_, _, err = p.Complete(context.Background(), p.ModelConfig(), req)
	if err == nil {
		t.Fatal("Complete() should fail on 401")
	}
	perr, ok := api.AsProviderError(err)
	if !ok || perr.Kind != api.ErrorKindRequest || perr.Status != 401 {
		t.Errorf("err = %v, want request error with status 401", err)
	}
	if perr.Message != "bad key" {
		t.Errorf("message = %q, want backend message", perr.Message)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("backend calls = %d, auth failures must not retry", got)
	}
}

func TestComplete_RetriesExhausted(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p, err := New(Config{Host: srv.URL, APIKey: "sk-test", Retry: fastRetry()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer p.Close()

	req := &provider.Request{Messages: []api.Message{api.NewTextMessage(api.RoleUser, "hi")}}
	_, _, err = p.Complete(context.Background(), p.ModelConfig(), req)
	if err == nil {
		t.Fatal("Complete() should fail after exhausting retries")
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("backend calls = %d, want 3", got)
	}
	perr, _ := api.AsProviderError(err)
	if perr == nil || perr.Status != 503 {
		t.Errorf("err = %v, want last attempt's failure", err)
	}
}

func TestComplete_DecodeFailureNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"content": [`))
	}))
	defer srv.Close()

	p, err := New(Config{Host: srv.URL, APIKey: "sk-test", Retry: fastRetry()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer p.Close()

	req := &provider.Request{Messages: []api.Message{api.NewTextMessage(api.RoleUser, "hi")}}
	_, _, err = p.Complete(context.Background(), p.ModelConfig(), req)
	if err == nil {
		t.Fatal("Complete() should fail on undecodable 200 body")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("backend calls = %d, decode failures must not retry", got)
	}
}

func TestComplete_ModelOverride(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		json.NewDecoder(r.Body).Decode(&payload)
		if payload["model"] != "glm-4.6" {
			t.Errorf("model = %v, want glm-4.6", payload["model"])
		}
		w.Write([]byte(successBodyJSON()))
	}))
	defer srv.Close()

	p, err := New(Config{Host: srv.URL, APIKey: "sk-test", Retry: fastRetry()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer p.Close()

	cfg := provider.ModelConfig{Model: "glm-4.6", ContextWindow: 200_000}
	req := &provider.Request{Messages: []api.Message{api.NewTextMessage(api.RoleUser, "hi")}}
	if _, _, err := p.Complete(context.Background(), cfg, req); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
}

func TestStream_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		json.NewDecoder(r.Body).Decode(&payload)
		if payload["stream"] != true {
			t.Error("streaming request should set stream: true")
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte(`data: {"type": "message_start", "message": {"usage": {"input_tokens": 10}}}
data: {"type": "content_block_delta", "delta": {"type": "text_delta", "text": "O"}}
data: {"type": "content_block_delta", "delta": {"type": "text_delta", "text": "K"}}
data: {"type": "message_delta", "usage": {"output_tokens": 1}}
data: {"type": "message_stop"}
`))
	}))
	defer srv.Close()

	rec := &memoryRecorder{}
	p, err := New(Config{Host: srv.URL, APIKey: "sk-test", Recorder: rec})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer p.Close()

	req := &provider.Request{Messages: []api.Message{api.NewTextMessage(api.RoleUser, "hi")}}
	ch, err := p.Stream(context.Background(), req)
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}

	var snaps []provider.StreamSnapshot
	for snap := range ch {
		if snap.Err != nil {
			t.Fatalf("snapshot err = %v", snap.Err)
		}
		snaps = append(snaps, snap)
	}
	if len(snaps) != 4 {
		t.Fatalf("snapshots = %d, want 4", len(snaps))
	}
	final := snaps[len(snaps)-1]
	if got := final.Message.Text(); got != "OK" {
		t.Errorf("final text = %q", got)
	}
	if final.Usage == nil || *final.Usage.InputTokens != 10 || *final.Usage.OutputTokens != 1 {
		t.Errorf("final usage = %+v", final.Usage)
	}

	// The stream is recorded as a single attempt once it finishes.
	deadline := time.Now().Add(2 * time.Second)
	for len(rec.all()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	attempts := rec.all()
	if len(attempts) != 1 {
		t.Fatalf("recorded attempts = %d, want 1", len(attempts))
	}
	if !attempts[0].Streaming {
		t.Error("attempt should be marked streaming")
	}
	if attempts[0].Err != nil {
		t.Errorf("attempt err = %v", attempts[0].Err)
	}
}

func TestStream_HTTPErrorBeforeStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"type": "error", "error": {"type": "rate_limit_error", "message": "slow down"}}`))
	}))
	defer srv.Close()

	p, err := New(Config{Host: srv.URL, APIKey: "sk-test"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer p.Close()

	req := &provider.Request{Messages: []api.Message{api.NewTextMessage(api.RoleUser, "hi")}}
	_, err = p.Stream(context.Background(), req)
	if err == nil {
		t.Fatal("Stream() should fail on 429 before any event")
	}
	perr, ok := api.AsProviderError(err)
	if !ok || perr.Status != 429 {
		t.Errorf("err = %v, want request error with status 429", err)
	}
}

func TestStream_IncompleteStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte(`data: {"type": "message_start", "message": {}}
data: {"type": "content_block_delta", "delta": {"type": "text_delta", "text": "par"}}
`))
		// Connection closes without message_stop.
	}))
	defer srv.Close()

	p, err := New(Config{Host: srv.URL, APIKey: "sk-test"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer p.Close()

	req := &provider.Request{Messages: []api.Message{api.NewTextMessage(api.RoleUser, "hi")}}
	ch, err := p.Stream(context.Background(), req)
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}

	var last provider.StreamSnapshot
	for snap := range ch {
		last = snap
	}
	if last.Err == nil {
		t.Fatal("truncated stream should end with an error snapshot")
	}
	perr, _ := api.AsProviderError(last.Err)
	if perr == nil || perr.Kind != api.ErrorKindIncompleteStream {
		t.Errorf("err = %v, want incomplete stream error", last.Err)
	}
}

func TestNew_MissingAPIKey(t *testing.T) {
	_, err := New(Config{})
	if err == nil {
		t.Fatal("New() should fail without credentials")
	}
	perr, ok := api.AsProviderError(err)
	if !ok || perr.Kind != api.ErrorKindConfiguration {
		t.Errorf("err = %v, want configuration error", err)
	}
	if !strings.Contains(err.Error(), "ZAI_API_KEY") {
		t.Errorf("err = %v, should name the missing key", err)
	}
}

func TestNew_Defaults(t *testing.T) {
	p, err := New(Config{APIKey: "sk-test"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer p.Close()

	cfg := p.ModelConfig()
	if cfg.Model != "glm-4.5" {
		t.Errorf("model = %q, want glm-4.5", cfg.Model)
	}
	if cfg.FastModel != "glm-4.5-air" {
		t.Errorf("fast model = %q", cfg.FastModel)
	}
	if cfg.ContextWindow != 128_000 {
		t.Errorf("context window = %d, want 128000", cfg.ContextWindow)
	}
	if !p.SupportsStreaming() {
		t.Error("streaming should be supported")
	}
}

func TestMetadata(t *testing.T) {
	p, err := New(Config{APIKey: "sk-test"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer p.Close()

	meta := p.Metadata()
	if meta.Name != "zai" {
		t.Errorf("name = %q", meta.Name)
	}
	if meta.DefaultModel != "glm-4.5" {
		t.Errorf("default model = %q", meta.DefaultModel)
	}
	if len(meta.KnownModels) != 3 {
		t.Errorf("known models = %d, want 3", len(meta.KnownModels))
	}
	if meta.KnownModels[0].Name != "glm-4.6" || meta.KnownModels[0].ContextWindow != 200_000 {
		t.Errorf("first model = %+v", meta.KnownModels[0])
	}

	var keyEntry *provider.ConfigKey
	for i := range meta.ConfigKeys {
		if meta.ConfigKeys[i].Name == "ZAI_API_KEY" {
			keyEntry = &meta.ConfigKeys[i]
		}
	}
	if keyEntry == nil {
		t.Fatal("ZAI_API_KEY should be advertised")
	}
	if !keyEntry.Required || !keyEntry.Secret {
		t.Errorf("ZAI_API_KEY entry = %+v, want required secret", *keyEntry)
	}
}

func TestHostTrailingSlashNormalized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/anthropic/v1/messages" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(successBodyJSON()))
	}))
	defer srv.Close()

	p, err := New(Config{Host: srv.URL + "/", APIKey: "sk-test"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer p.Close()

	req := &provider.Request{Messages: []api.Message{api.NewTextMessage(api.RoleUser, "hi")}}
	if _, _, err := p.Complete(context.Background(), p.ModelConfig(), req); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
}
