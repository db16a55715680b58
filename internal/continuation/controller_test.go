package continuation

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/devgenius/artifact-gateway/internal/domain"
	"github.com/devgenius/artifact-gateway/internal/invoke"
	"github.com/devgenius/artifact-gateway/internal/provider/fake"
)

func newController(p *fake.Provider, opts ...Option) *Controller {
	return New(invoke.New(p, invoke.Config{Model: "m"}), opts...)
}

func TestRunStitchesTruncatedAttempts(t *testing.T) {
	p := fake.New(
		fake.Text(domain.StopReasonMaxTokens, "AAA"),
		fake.Text(domain.StopReasonMaxTokens, "BBB"),
		fake.Text(domain.StopReasonEndTurn, "CCC"),
	)
	history := domain.Conversation{domain.UserMessage("earlier"), domain.AssistantMessage("reply")}

	sess, err := newController(p).Run(context.Background(), "draw it", history, Options{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if sess.Response != "AAABBBCCC" {
		t.Errorf("Response = %q", sess.Response)
	}
	if sess.Truncated {
		t.Error("Truncated should be false when the last attempt ended normally")
	}
	if len(sess.Attempts) != 3 {
		t.Fatalf("attempts = %d", len(sess.Attempts))
	}

	reqs := p.Requests()
	first := reqs[0].Messages
	if len(first) != 3 || first[2] != domain.UserMessage("draw it") {
		t.Errorf("first request = %+v", first)
	}

	wantCont := domain.Conversation{
		domain.UserMessage("draw it"),
		domain.AssistantMessage("AAA"),
		domain.UserMessage(DefaultInstruction),
	}
	// The continuation conversation is built once and reused.
	for i := 1; i < 3; i++ {
		if !reflect.DeepEqual(reqs[i].Messages, wantCont) {
			t.Errorf("request %d messages = %+v", i, reqs[i].Messages)
		}
	}

	if len(history) != 2 {
		t.Errorf("caller conversation modified: %+v", history)
	}
}

func TestRunTruncatedAfterCeiling(t *testing.T) {
	p := fake.New(
		fake.Text(domain.StopReasonMaxTokens, "1"),
		fake.Text(domain.StopReasonMaxTokens, "2"),
		fake.Text(domain.StopReasonMaxTokens, "3"),
		fake.Text(domain.StopReasonMaxTokens, "4"),
		fake.Text(domain.StopReasonEndTurn, "unused"),
	)
	sess, err := newController(p).Run(context.Background(), "p", nil, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if !sess.Truncated {
		t.Error("expected Truncated")
	}
	if sess.Response != "1234" {
		t.Errorf("Response = %q", sess.Response)
	}
	if p.Calls() != DefaultMaxAttempts {
		t.Errorf("Calls() = %d", p.Calls())
	}
}

func TestRunLastAttemptCompletes(t *testing.T) {
	p := fake.New(
		fake.Text(domain.StopReasonMaxTokens, "a"),
		fake.Text(domain.StopReasonEndTurn, "b"),
	)
	sess, err := newController(p, WithMaxAttempts(2)).Run(context.Background(), "p", nil, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if sess.Truncated {
		t.Error("a session whose final attempt ends normally is not truncated")
	}
}

func TestRunSingleAttempt(t *testing.T) {
	tests := []struct {
		name   string
		reason domain.StopReason
	}{
		{"end turn", domain.StopReasonEndTurn},
		{"stop sequence", domain.StopReasonStopSequence},
		{"missing", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := fake.New(fake.Text(tt.reason, "done"))
			sess, err := newController(p).Run(context.Background(), "p", nil, Options{})
			if err != nil {
				t.Fatal(err)
			}
			if len(sess.Attempts) != 1 || sess.Truncated || sess.Response != "done" {
				t.Errorf("session = %+v", sess)
			}
		})
	}
}

func TestRunObserverSeesLogicalResponse(t *testing.T) {
	p := fake.New(
		fake.Text(domain.StopReasonMaxTokens, "A", "B"),
		fake.Text(domain.StopReasonEndTurn, "C"),
	)
	var seen []string
	_, err := newController(p).Run(context.Background(), "p", nil, Options{
		Observer: func(s string) { seen = append(seen, s) },
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"A", "AB", "ABC"}
	if !reflect.DeepEqual(seen, want) {
		t.Errorf("observer = %v, want %v", seen, want)
	}
}

func TestRunPropagatesInvokeError(t *testing.T) {
	p := fake.New(
		fake.Text(domain.StopReasonMaxTokens, "A"),
		fake.Turn{Err: domain.ErrServer("boom")},
	)
	_, err := newController(p).Run(context.Background(), "p", nil, Options{})
	var fatal *domain.FatalError
	if !errors.As(err, &fatal) {
		t.Fatalf("expected fatal error, got %v", err)
	}
}

func TestRunCustomInstruction(t *testing.T) {
	p := fake.New(
		fake.Text(domain.StopReasonMaxTokens, "<mxfile>"),
		fake.Text(domain.StopReasonEndTurn, "</mxfile>"),
	)
	_, err := newController(p, WithInstruction("Complete the XML.")).Run(context.Background(), "p", nil, Options{})
	if err != nil {
		t.Fatal(err)
	}
	msgs := p.Requests()[1].Messages
	if msgs[len(msgs)-1].Content != "Complete the XML." {
		t.Errorf("instruction = %q", msgs[len(msgs)-1].Content)
	}
}
