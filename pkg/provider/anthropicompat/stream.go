package anthropicompat

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/glmkit/glmkit/pkg/api"
	"github.com/glmkit/glmkit/pkg/debug"
	"github.com/glmkit/glmkit/pkg/provider"
)

// maxFrameSize bounds a single event line. Content deltas are small;
// this guards against a misbehaving backend, not normal traffic.
const maxFrameSize = 1024 * 1024

// DecodeStream reads line-framed Messages API events from body and
// pushes a snapshot on ch after each applied event. The decoder is a
// synchronous transform over arriving lines; the only buffering is the
// line assembly itself.
//
// Framing: SSE `event:` lines, comments, and blank lines are transport
// framing and are skipped. Each `data:` payload must be a JSON object
// carrying a `type` discriminator; anything else terminates the stream
// with a stream-decode error. Events already applied remain valid
// history for the consumer.
//
// Termination: message_stop ends the stream cleanly. EOF without
// message_stop emits an incomplete-stream error. Context cancellation
// is a normal consumer early-exit and emits nothing.
func (c Codec) DecodeStream(ctx context.Context, body io.Reader, ch chan<- provider.StreamSnapshot) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxFrameSize)

	// Per-call accumulator state; nothing is shared between streams.
	msg := api.Message{Role: api.RoleAssistant}
	var usage api.Usage
	stopped := false

	emit := func(snap provider.StreamSnapshot) bool {
		select {
		case ch <- snap:
			return true
		case <-ctx.Done():
			return false
		}
	}
	fail := func(err error) {
		emit(provider.StreamSnapshot{Message: msg.Clone(), Usage: usagePtr(usage), Err: err})
	}

	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}

		payload, isData := framePayload(scanner.Text())
		if !isData {
			continue
		}

		var ev streamEvent
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			fail(api.NewStreamDecodeError("malformed stream frame", err))
			return
		}
		if ev.Type == "" {
			fail(api.NewStreamDecodeError("stream frame missing event type", nil))
			return
		}

		switch ev.Type {
		case "message_start":
			// (Re)initialize the accumulator and capture input tokens.
			msg = api.Message{Role: api.RoleAssistant}
			usage = api.Usage{}
			if ev.Message != nil {
				usage.Merge(decodeUsage(ev.Message.Usage))
			}

		case "content_block_delta":
			if ev.Delta != nil {
				msg.AppendText(ev.Delta.Text)
			}

		case "message_delta":
			usage.Merge(decodeUsage(ev.Usage))

		case "message_stop":
			stopped = true

		case "error":
			message := "backend reported a stream error"
			if ev.Error != nil && ev.Error.Message != "" {
				message = ev.Error.Message
			}
			fail(api.NewRequestError(0, message, ""))
			return

		case "ping", "content_block_start", "content_block_stop":
			// Framing-level events; they change no observable state and
			// produce no snapshot.
			continue

		default:
			debug.Log("streaming", "ignoring unknown event type", "type", ev.Type)
			continue
		}

		if stopped {
			return
		}
		if !emit(provider.StreamSnapshot{Message: msg.Clone(), Usage: usagePtr(usage)}) {
			return
		}
	}

	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return
		}
		fail(api.NewStreamDecodeError("stream read error", err))
		return
	}

	// EOF without message_stop: distinct from a frame decode error.
	if !stopped && ctx.Err() == nil {
		fail(api.NewIncompleteStreamError())
	}
}

// framePayload extracts the JSON payload from one line, reporting
// whether the line carries an event at all.
func framePayload(line string) (string, bool) {
	line = strings.TrimRight(line, "\r")
	switch {
	case line == "":
		return "", false
	case strings.HasPrefix(line, ":"):
		return "", false
	case strings.HasPrefix(line, "event:"):
		return "", false
	case strings.HasPrefix(line, "data:"):
		return strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "), true
	default:
		// Some gateways frame events as bare JSON lines.
		return line, true
	}
}

// usagePtr snapshots the accumulated usage, or nil when nothing has
// been reported yet.
func usagePtr(u api.Usage) *api.Usage {
	if u.InputTokens == nil && u.OutputTokens == nil && u.TotalTokens == nil {
		return nil
	}
	c := u.Clone()
	return &c
}
