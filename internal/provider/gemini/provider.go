// Package gemini adapts the Google Gemini streaming API, through the
// official genai SDK, to the domain.Provider port.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genai"

	"github.com/devgenius/artifact-gateway/internal/domain"
)

// Provider implements domain.Provider using the genai client.
type Provider struct {
	client *genai.Client
	name   string
}

// Option configures the client built by New.
type Option func(*genai.ClientConfig)

// WithBaseURL points the SDK at a custom endpoint.
func WithBaseURL(baseURL string) Option {
	return func(c *genai.ClientConfig) {
		c.HTTPOptions.BaseURL = baseURL
	}
}

// WithHTTPClient sets the HTTP client used by the SDK.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *genai.ClientConfig) {
		c.HTTPClient = httpClient
	}
}

// New creates a Gemini provider backed by the Gemini Developer API.
func New(ctx context.Context, name, apiKey string, opts ...Option) (*Provider, error) {
	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	for _, opt := range opts {
		opt(cc)
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	if name == "" {
		name = ProviderType
	}
	return &Provider{client: client, name: name}, nil
}

func (p *Provider) Name() string {
	return p.name
}

// Stream runs GenerateContentStream and converts each chunk into content
// deltas followed by a message delta once a finish reason is reported.
// Thought parts produced by thinking models are dropped.
func (p *Provider) Stream(ctx context.Context, req *domain.InvokeRequest) (<-chan domain.StreamEvent, error) {
	contents := toContents(req.Messages)
	cfg := toConfig(req)

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

		for resp, err := range p.client.Models.GenerateContentStream(ctx, req.Model, contents, cfg) {
			if err != nil {
				emit(domain.StreamEvent{Err: toCanonicalError(err)})
				return
			}
			if resp == nil || len(resp.Candidates) == 0 {
				continue
			}

			cand := resp.Candidates[0]
			if cand.Content != nil {
				for _, part := range cand.Content.Parts {
					if part == nil || part.Thought || part.Text == "" {
						continue
					}
					if !emit(domain.ContentDelta(part.Text)) {
						return
					}
				}
			}
			if cand.FinishReason != "" {
				if !emit(domain.MessageDelta(toStopReason(cand.FinishReason))) {
					return
				}
			}
		}
	}()

	return out, nil
}

func toContents(msgs domain.Conversation) []*genai.Content {
	contents := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		role := genai.RoleUser
		if m.Role == domain.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, genai.Role(role)))
	}
	return contents
}

func toConfig(req *domain.InvokeRequest) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(req.Temperature),
	}
	if req.MaxOutputTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxOutputTokens)
	}
	if req.Reasoning != nil {
		cfg.ThinkingConfig = &genai.ThinkingConfig{
			ThinkingBudget: genai.Ptr(int32(req.Reasoning.BudgetTokens)),
		}
	}
	return cfg
}

func toStopReason(r genai.FinishReason) domain.StopReason {
	switch r {
	case genai.FinishReasonStop:
		return domain.StopReasonEndTurn
	case genai.FinishReasonMaxTokens:
		return domain.StopReasonMaxTokens
	default:
		return domain.StopReasonOther
	}
}

// toCanonicalError maps SDK errors onto the canonical taxonomy. HTTP 429
// and RESOURCE_EXHAUSTED are throttling.
func toCanonicalError(err error) error {
	var code int
	var status, message string

	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
		code, status, message = apiErr.Code, apiErr.Status, apiErr.Message
	case errors.As(err, &apiErrPtr):
		code, status, message = apiErrPtr.Code, apiErrPtr.Status, apiErrPtr.Message
	default:
		return err
	}

	var out *domain.APIError
	switch {
	case code == http.StatusTooManyRequests || status == "RESOURCE_EXHAUSTED":
		out = domain.ErrRateLimit(message)
	case code == http.StatusBadRequest:
		out = domain.ErrInvalidRequest(message)
	case code == http.StatusUnauthorized:
		out = domain.ErrAuthentication(message)
	case code == http.StatusForbidden:
		out = domain.ErrPermission(message)
	case code == http.StatusNotFound:
		out = domain.ErrNotFound(message)
	case code == http.StatusServiceUnavailable:
		out = domain.ErrOverloaded(message)
	default:
		out = domain.ErrServer(message)
	}
	if code != 0 {
		out.WithStatusCode(code)
	}
	return out.WithProvider(ProviderType)
}
