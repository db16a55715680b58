// Package testutil holds helpers shared by package tests: fake streaming
// upstreams and go-vcr recorders.
package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// SSEEvent is one server-sent event written by an AnthropicServer.
type SSEEvent struct {
	Event string
	Data  string
}

// AnthropicTurn scripts one response of a fake Messages endpoint. When
// Status is non-zero and not 200, Body is written as an error response.
type AnthropicTurn struct {
	Status int
	Body   string
	Events []SSEEvent
}

// TextTurn builds the event sequence of a successful streamed reply made
// of chunks, ending with stopReason. An empty stopReason omits the
// message_delta event entirely.
func TextTurn(stopReason string, chunks ...string) AnthropicTurn {
	events := []SSEEvent{
		{Event: "message_start", Data: `{"type":"message_start","message":{"id":"msg_test","type":"message","role":"assistant","content":[],"model":"claude-test","usage":{"input_tokens":10,"output_tokens":1}}}`},
		{Event: "content_block_start", Data: `{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`},
		{Event: "ping", Data: `{"type":"ping"}`},
	}
	for _, c := range chunks {
		payload, _ := json.Marshal(map[string]any{
			"type":  "content_block_delta",
			"index": 0,
			"delta": map[string]string{"type": "text_delta", "text": c},
		})
		events = append(events, SSEEvent{Event: "content_block_delta", Data: string(payload)})
	}
	events = append(events, SSEEvent{Event: "content_block_stop", Data: `{"type":"content_block_stop","index":0}`})
	if stopReason != "" {
		events = append(events, SSEEvent{
			Event: "message_delta",
			Data:  fmt.Sprintf(`{"type":"message_delta","delta":{"stop_reason":%q,"stop_sequence":null},"usage":{"output_tokens":15}}`, stopReason),
		})
	}
	events = append(events, SSEEvent{Event: "message_stop", Data: `{"type":"message_stop"}`})
	return AnthropicTurn{Events: events}
}

// ThrottledTurn builds a 429 rate_limit_error response.
func ThrottledTurn() AnthropicTurn {
	return AnthropicTurn{
		Status: http.StatusTooManyRequests,
		Body:   `{"type":"error","error":{"type":"rate_limit_error","message":"Number of request tokens has exceeded your per-minute rate limit"}}`,
	}
}

// AnthropicServer is a scripted fake of POST /v1/messages. Each request
// consumes the next turn; requests beyond the script fail the test.
type AnthropicServer struct {
	*httptest.Server

	mu       sync.Mutex
	turns    []AnthropicTurn
	requests []map[string]any
}

// NewAnthropicServer starts a fake Messages API serving turns in order.
func NewAnthropicServer(t *testing.T, turns ...AnthropicTurn) *AnthropicServer {
	t.Helper()

	s := &AnthropicServer{turns: turns}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected path: %s", r.URL.Path)
			http.NotFound(w, r)
			return
		}

		body, _ := io.ReadAll(r.Body)
		var decoded map[string]any
		_ = json.Unmarshal(body, &decoded)

		s.mu.Lock()
		idx := len(s.requests)
		s.requests = append(s.requests, decoded)
		s.mu.Unlock()

		if idx >= len(s.turns) {
			t.Errorf("unexpected request #%d", idx+1)
			http.Error(w, "no more scripted turns", http.StatusInternalServerError)
			return
		}
		turn := s.turns[idx]

		if turn.Status != 0 && turn.Status != http.StatusOK {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(turn.Status)
			io.WriteString(w, turn.Body)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher, _ := w.(http.Flusher)
		for _, ev := range turn.Events {
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Event, ev.Data)
			if flusher != nil {
				flusher.Flush()
			}
		}
	}))
	t.Cleanup(s.Close)
	return s
}

// Requests returns the decoded JSON bodies received so far.
func (s *AnthropicServer) Requests() []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]map[string]any, len(s.requests))
	copy(out, s.requests)
	return out
}

// MessageContents returns the content strings of the messages array of
// request i.
func (s *AnthropicServer) MessageContents(i int) []string {
	reqs := s.Requests()
	if i >= len(reqs) {
		return nil
	}
	raw, _ := reqs[i]["messages"].([]any)
	var out []string
	for _, m := range raw {
		msg, _ := m.(map[string]any)
		content, _ := msg["content"].(string)
		out = append(out, strings.TrimSpace(content))
	}
	return out
}
