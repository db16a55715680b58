package tokens

import (
	"testing"

	"github.com/tiktoken-go/tokenizer"
)

func TestEncodingFor(t *testing.T) {
	tests := []struct {
		model string
		want  tokenizer.Encoding
	}{
		{"gpt-4o-mini", tokenizer.O200kBase},
		{"gpt-4", tokenizer.Cl100kBase},
		{"GPT-3.5-turbo", tokenizer.Cl100kBase},
		{"claude-3-7-sonnet-20250219", tokenizer.O200kBase},
		{"gemini-2.5-pro", tokenizer.O200kBase},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			if got := New(tt.model).Encoding(); got != tt.want {
				t.Errorf("Encoding() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCounterCount(t *testing.T) {
	c := New("claude-3-7-sonnet-20250219")
	short, err := c.Count("hello")
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	long, err := c.Count("hello world, this is a much longer piece of text about cloud architecture")
	if err != nil {
		t.Fatal(err)
	}
	if short < 1 || long <= short {
		t.Errorf("Count() short=%d long=%d", short, long)
	}
	if n, _ := c.Count(""); n != 0 {
		t.Errorf("Count(\"\") = %d", n)
	}
}

func TestEstimator(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"abcd", 1},
		{"abcdefghijkl", 3},
	}
	e := NewEstimator()
	for _, tt := range tests {
		if got, _ := e.Count(tt.text); got != tt.want {
			t.Errorf("Count(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}

func TestCounterFallsBackToEstimator(t *testing.T) {
	c := &Counter{encoding: tokenizer.Encoding("no-such-encoding"), fallback: NewEstimator()}
	got, err := c.Count("abcdefgh")
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if got != 2 {
		t.Errorf("Count() = %d, want 2", got)
	}

	c = &Counter{encoding: tokenizer.Encoding("no-such-encoding")}
	if _, err := c.Count("abc"); err == nil {
		t.Error("expected error without a fallback")
	}
}
