// Package fake provides a scripted domain.Provider for tests and dry runs.
package fake

import (
	"context"
	"fmt"
	"sync"

	"github.com/devgenius/artifact-gateway/internal/domain"
)

// Turn scripts one call to Stream.
type Turn struct {
	// Chunks are emitted as content deltas in order.
	Chunks []string
	// StopReason is emitted as the final message delta. Empty omits it.
	StopReason domain.StopReason
	// Err is returned from Stream before any event is produced.
	Err error
	// StreamErr is emitted after the chunks instead of a stop reason.
	StreamErr error
}

// Text builds a successful turn.
func Text(reason domain.StopReason, chunks ...string) Turn {
	return Turn{Chunks: chunks, StopReason: reason}
}

// Throttle builds a turn that fails with a canonical rate limit error.
func Throttle() Turn {
	return Turn{Err: domain.ErrRateLimit("ThrottlingException: rate exceeded")}
}

// Provider replays its turns in order and records every request.
type Provider struct {
	name string

	mu       sync.Mutex
	turns    []Turn
	requests []domain.InvokeRequest
}

// New returns a provider that serves turns in order.
func New(turns ...Turn) *Provider {
	return &Provider{name: "fake", turns: turns}
}

func (p *Provider) Name() string { return p.name }

// Stream serves the next scripted turn. Running out of turns is an error.
func (p *Provider) Stream(ctx context.Context, req *domain.InvokeRequest) (<-chan domain.StreamEvent, error) {
	p.mu.Lock()
	idx := len(p.requests)
	snapshot := *req
	snapshot.Messages = req.Messages.Clone()
	p.requests = append(p.requests, snapshot)
	p.mu.Unlock()

	if idx >= len(p.turns) {
		return nil, fmt.Errorf("fake: no scripted turn for call %d", idx+1)
	}
	turn := p.turns[idx]
	if turn.Err != nil {
		return nil, turn.Err
	}

	out := make(chan domain.StreamEvent)
	go func() {
		defer close(out)
		send := func(ev domain.StreamEvent) bool {
			select {
			case out <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}
		for _, c := range turn.Chunks {
			if !send(domain.ContentDelta(c)) {
				return
			}
		}
		if turn.StreamErr != nil {
			send(domain.StreamEvent{Err: turn.StreamErr})
			return
		}
		if turn.StopReason != "" {
			send(domain.MessageDelta(turn.StopReason))
		}
	}()
	return out, nil
}

// Requests returns copies of the requests received so far.
func (p *Provider) Requests() []domain.InvokeRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.InvokeRequest, len(p.requests))
	copy(out, p.requests)
	return out
}

// Calls returns how many times Stream was called.
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}
