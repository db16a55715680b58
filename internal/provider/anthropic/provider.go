// Package anthropic adapts the Anthropic Messages streaming API to the
// domain.Provider port.
package anthropic

import (
	"context"
	"fmt"
	"net/http"

	anthropicapi "github.com/devgenius/artifact-gateway/internal/api/anthropic"
	"github.com/devgenius/artifact-gateway/internal/domain"
)

// defaultMaxTokens is sent when the request does not set a cap; the API
// requires one.
const defaultMaxTokens = 4096

// ProviderOption configures the provider.
type ProviderOption func(*Provider)

// WithBaseURL sets a custom base URL for the API.
func WithBaseURL(baseURL string) ProviderOption {
	return func(p *Provider) {
		p.baseURL = baseURL
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ProviderOption {
	return func(p *Provider) {
		p.httpClient = httpClient
	}
}

// WithName overrides the provider name reported in logs and errors.
func WithName(name string) ProviderOption {
	return func(p *Provider) {
		p.name = name
	}
}

// Provider implements domain.Provider on top of the Anthropic client.
type Provider struct {
	client     *anthropicapi.Client
	name       string
	baseURL    string
	httpClient *http.Client
}

// New creates a new Anthropic provider.
func New(apiKey string, opts ...ProviderOption) *Provider {
	p := &Provider{name: ProviderType}

	for _, opt := range opts {
		opt(p)
	}

	var clientOpts []anthropicapi.ClientOption
	if p.baseURL != "" {
		clientOpts = append(clientOpts, anthropicapi.WithBaseURL(p.baseURL))
	}
	if p.httpClient != nil {
		clientOpts = append(clientOpts, anthropicapi.WithHTTPClient(p.httpClient))
	}

	p.client = anthropicapi.NewClient(apiKey, clientOpts...)
	return p
}

func (p *Provider) Name() string {
	return p.name
}

// Stream opens one Messages stream. Only text deltas are forwarded; the
// stop reason is forwarded once message_delta carries a non-null value.
func (p *Provider) Stream(ctx context.Context, req *domain.InvokeRequest) (<-chan domain.StreamEvent, error) {
	apiReq := toAPIRequest(req)

	opts := &anthropicapi.RequestOptions{
		UserAgent: req.UserAgent,
	}

	stream, err := p.client.StreamMessage(ctx, apiReq, opts)
	if err != nil {
		return nil, err
	}

	out := make(chan domain.StreamEvent)
	go func() {
		defer close(out)

		emit := func(ev domain.StreamEvent) bool {
			select {
			case out <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for result := range stream {
			if result.Err != nil {
				emit(domain.StreamEvent{Err: result.Err})
				return
			}

			switch result.EventType {
			case "content_block_delta":
				event, err := result.ParseContentBlockDelta()
				if err != nil {
					emit(domain.StreamEvent{Err: fmt.Errorf("parse content_block_delta: %w", err)})
					return
				}
				if event.Delta.Type == "text_delta" && event.Delta.Text != "" {
					if !emit(domain.ContentDelta(event.Delta.Text)) {
						return
					}
				}

			case "message_delta":
				event, err := result.ParseMessageDelta()
				if err != nil {
					emit(domain.StreamEvent{Err: fmt.Errorf("parse message_delta: %w", err)})
					return
				}
				if event.Delta.StopReason != nil {
					if !emit(domain.MessageDelta(domain.ParseStopReason(*event.Delta.StopReason))) {
						return
					}
				}

			case "message_stop":
				return

			case "message_start", "ping", "content_block_start", "content_block_stop":
				continue
			}
		}
	}()

	return out, nil
}

// toAPIRequest converts an invocation request to an Anthropic API request.
func toAPIRequest(req *domain.InvokeRequest) *anthropicapi.MessagesRequest {
	messages := make([]anthropicapi.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, anthropicapi.Message{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}

	apiReq := &anthropicapi.MessagesRequest{
		Model:    req.Model,
		Messages: messages,
		Stream:   true,
	}

	if req.MaxOutputTokens > 0 {
		apiReq.MaxTokens = req.MaxOutputTokens
	} else {
		apiReq.MaxTokens = defaultMaxTokens
	}

	temperature := req.Temperature
	apiReq.Temperature = &temperature

	if req.Reasoning != nil {
		apiReq.Thinking = &anthropicapi.ThinkingConfig{
			Type:         "enabled",
			BudgetTokens: req.Reasoning.BudgetTokens,
		}
	}

	return apiReq
}
