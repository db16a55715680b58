package domain

import (
	"context"
)

// Provider defines the interface for streaming LLM providers.
type Provider interface {
	Name() string

	// Stream opens one model stream and returns a channel of events.
	// The channel MUST be closed by the provider when done. Errors that
	// occur before the stream opens are returned directly; later failures
	// arrive as an event with Err set.
	Stream(ctx context.Context, req *InvokeRequest) (<-chan StreamEvent, error)
}

// TokenCounter estimates the number of tokens in a piece of text.
type TokenCounter interface {
	Count(text string) (int, error)
}
