// Command mock-backend runs a deterministic Anthropic Messages server
// for conformance testing. Responses are derived from request content,
// so adapter behavior (batch, streaming, retries, failure handling) can
// be exercised without a real backend.
//
// Prompts containing these markers trigger scripted behavior:
//
//	"flaky"      - respond 429 twice per prompt, then succeed
//	"overloaded" - always respond 529 with an overloaded_error body
//	"garble"     - emit a malformed frame mid-stream
//	"truncate"   - close the stream before message_stop
//
// Configuration:
//
//	MOCK_PORT - Listen port (default: 9090)
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"
)

func main() {
	port := os.Getenv("MOCK_PORT")
	if port == "" {
		port = "9090"
	}

	backend := newMockBackend()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/anthropic/v1/messages", backend.handleMessages)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})

	srv := &http.Server{Addr: ":" + port, Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("mock backend starting", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("mock backend failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("mock backend shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
}

// --- Request types ---

type messagesRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	System    string        `json:"system"`
	Messages  []wireMessage `json:"messages"`
	Tools     []wireTool    `json:"tools"`
	Stream    bool          `json:"stream"`
}

type wireMessage struct {
	Role    string        `json:"role"`
	Content []wireContent `json:"content"`
}

type wireContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type wireTool struct {
	Name string `json:"name"`
}

// --- Response types ---

type messagesResponse struct {
	ID         string        `json:"id"`
	Type       string        `json:"type"`
	Role       string        `json:"role"`
	Model      string        `json:"model"`
	Content    []respContent `json:"content"`
	StopReason string        `json:"stop_reason"`
	Usage      respUsage     `json:"usage"`
}

type respContent struct {
	Type  string          `json:"type"`
	Text  string          `json:"text,omitempty"`
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`
}

type respUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// --- Backend ---

type mockBackend struct {
	mu       sync.Mutex
	failures map[string]int
}

func newMockBackend() *mockBackend {
	return &mockBackend{failures: make(map[string]int)}
}

func (b *mockBackend) handleMessages(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("x-api-key") == "" && r.Header.Get("Authorization") == "" {
		writeError(w, http.StatusUnauthorized, "authentication_error", "missing credentials")
		return
	}

	var req messagesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body")
		return
	}

	prompt := lastUserText(&req)

	// Scripted failure modes.
	if strings.Contains(prompt, "overloaded") {
		writeError(w, 529, "overloaded_error", "Overloaded")
		return
	}
	if strings.Contains(prompt, "flaky") && b.shouldFail(prompt) {
		writeError(w, http.StatusTooManyRequests, "rate_limit_error", "Rate limit exceeded")
		return
	}

	if req.Stream {
		b.handleStreaming(w, &req, prompt)
		return
	}

	resp := respond(&req, prompt)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// shouldFail counts scripted failures per prompt: the first two calls
// fail, the third succeeds, then the counter resets.
func (b *mockBackend) shouldFail(prompt string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[prompt]++
	if b.failures[prompt] > 2 {
		delete(b.failures, prompt)
		return false
	}
	return true
}

func respond(req *messagesRequest, prompt string) messagesResponse {
	model := req.Model
	if model == "" {
		model = "mock-model"
	}

	if len(req.Tools) > 0 && strings.Contains(prompt, "weather") {
		return messagesResponse{
			ID:    "msg_mock_tool",
			Type:  "message",
			Role:  "assistant",
			Model: model,
			Content: []respContent{
				{
					Type:  "tool_use",
					ID:    "call_mock_1",
					Name:  req.Tools[0].Name,
					Input: json.RawMessage(`{"city":"Berlin"}`),
				},
			},
			StopReason: "tool_use",
			Usage:      respUsage{InputTokens: 20, OutputTokens: 15},
		}
	}

	text := replyText(prompt)
	return messagesResponse{
		ID:         "msg_mock_text",
		Type:       "message",
		Role:       "assistant",
		Model:      model,
		Content:    []respContent{{Type: "text", Text: text}},
		StopReason: "end_turn",
		Usage:      respUsage{InputTokens: 10, OutputTokens: 5},
	}
}

func replyText(prompt string) string {
	if strings.Contains(strings.ToLower(prompt), "count from 1 to 5") {
		return "1, 2, 3, 4, 5"
	}
	return "Hello, nice day!"
}

// --- Streaming ---

func (b *mockBackend) handleStreaming(w http.ResponseWriter, req *messagesRequest, prompt string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "api_error", "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")

	writeEvent(w, map[string]any{
		"type": "message_start",
		"message": map[string]any{
			"id":    "msg_mock_stream",
			"role":  "assistant",
			"usage": map[string]any{"input_tokens": 10},
		},
	})
	flusher.Flush()

	text := replyText(prompt)
	tokens := strings.SplitAfter(text, " ")
	for i, token := range tokens {
		if strings.Contains(prompt, "garble") && i == len(tokens)/2 {
			fmt.Fprint(w, "data: {not json\n\n")
			flusher.Flush()
			return
		}
		writeEvent(w, map[string]any{
			"type":  "content_block_delta",
			"index": 0,
			"delta": map[string]any{"type": "text_delta", "text": token},
		})
		flusher.Flush()
	}

	if strings.Contains(prompt, "truncate") {
		// Drop the connection before the terminal events.
		return
	}

	writeEvent(w, map[string]any{
		"type":  "message_delta",
		"delta": map[string]any{"stop_reason": "end_turn"},
		"usage": map[string]any{"output_tokens": len(tokens)},
	})
	writeEvent(w, map[string]any{"type": "message_stop"})
	flusher.Flush()
}

func writeEvent(w http.ResponseWriter, ev map[string]any) {
	data, _ := json.Marshal(ev)
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev["type"], data)
}

// --- Helpers ---

func writeError(w http.ResponseWriter, status int, errType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"type":  "error",
		"error": map[string]any{"type": errType, "message": message},
	})
}

func lastUserText(req *messagesRequest) string {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role != "user" {
			continue
		}
		for _, part := range req.Messages[i].Content {
			if part.Type == "text" {
				return part.Text
			}
		}
	}
	return ""
}
