package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/devgenius/artifact-gateway/internal/domain"
)

func chunk(text, finish string, thought bool) string {
	part := map[string]any{"text": text}
	if thought {
		part["thought"] = true
	}
	cand := map[string]any{
		"content": map[string]any{"role": "model", "parts": []any{part}},
		"index":   0,
	}
	if finish != "" {
		cand["finishReason"] = finish
	}
	b, _ := json.Marshal(map[string]any{"candidates": []any{cand}})
	return string(b)
}

func newServer(t *testing.T, status int, lines ...string) (*httptest.Server, *map[string]any) {
	t.Helper()
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, ":streamGenerateContent") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &captured)

		if status != http.StatusOK {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			io.WriteString(w, lines[0])
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, l := range lines {
			fmt.Fprintf(w, "data: %s\n\n", l)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &captured
}

func drain(ch <-chan domain.StreamEvent) (string, []domain.StopReason, error) {
	var sb strings.Builder
	var reasons []domain.StopReason
	for ev := range ch {
		if ev.Err != nil {
			return sb.String(), reasons, ev.Err
		}
		if ev.Kind == domain.EventContentDelta {
			sb.WriteString(ev.Text)
		} else {
			reasons = append(reasons, ev.StopReason)
		}
	}
	return sb.String(), reasons, nil
}

func TestStream(t *testing.T) {
	srv, captured := newServer(t, http.StatusOK,
		chunk("thinking...", "", true),
		chunk("AAA", "", false),
		chunk("BBB", "MAX_TOKENS", false),
	)

	p, err := New(context.Background(), "", "test-key", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ch, err := p.Stream(context.Background(), &domain.InvokeRequest{
		Model:           "gemini-test",
		Messages:        domain.Conversation{domain.UserMessage("hi"), domain.AssistantMessage("partial")},
		MaxOutputTokens: 1024,
		Reasoning:       &domain.ReasoningConfig{BudgetTokens: 512},
		Temperature:     1,
	})
	if err != nil {
		t.Fatal(err)
	}

	text, reasons, err := drain(ch)
	if err != nil {
		t.Fatalf("stream error: %v", err)
	}
	if text != "AAABBB" {
		t.Errorf("text = %q", text)
	}
	if len(reasons) != 1 || reasons[0] != domain.StopReasonMaxTokens {
		t.Errorf("reasons = %v", reasons)
	}

	contents, _ := (*captured)["contents"].([]any)
	if len(contents) != 2 {
		t.Fatalf("contents = %v", (*captured)["contents"])
	}
	second, _ := contents[1].(map[string]any)
	if second["role"] != "model" {
		t.Errorf("assistant turn should map to model role, got %v", second["role"])
	}
}

func TestStreamThrottled(t *testing.T) {
	srv, _ := newServer(t, http.StatusTooManyRequests,
		`{"error":{"code":429,"message":"Resource has been exhausted","status":"RESOURCE_EXHAUSTED"}}`)

	p, err := New(context.Background(), "gemini-main", "test-key", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatal(err)
	}
	if p.Name() != "gemini-main" {
		t.Errorf("Name() = %q", p.Name())
	}

	ch, err := p.Stream(context.Background(), &domain.InvokeRequest{
		Model:    "gemini-test",
		Messages: domain.Conversation{domain.UserMessage("hi")},
	})
	if err != nil {
		t.Fatal(err)
	}
	_, _, err = drain(ch)
	if !domain.IsThrottling(err) {
		t.Fatalf("expected throttling error, got %v", err)
	}
}

func TestToStopReason(t *testing.T) {
	if toStopReason("STOP") != domain.StopReasonEndTurn {
		t.Error("STOP should map to end_turn")
	}
	if toStopReason("MAX_TOKENS") != domain.StopReasonMaxTokens {
		t.Error("MAX_TOKENS should map to max_tokens")
	}
	if toStopReason("SAFETY") != domain.StopReasonOther {
		t.Error("SAFETY should map to other")
	}
}
