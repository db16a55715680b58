// Package anthropic contains the wire types and HTTP client for the
// Anthropic Messages API streaming endpoint.
package anthropic

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/devgenius/artifact-gateway/internal/domain"
)

// MessagesRequest represents a request to the Messages API.
type MessagesRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature *float32  `json:"temperature,omitempty"`
	Stream      bool      `json:"stream,omitempty"`

	// Thinking enables extended thinking. The API requires temperature 1
	// when it is set.
	Thinking *ThinkingConfig `json:"thinking,omitempty"`
}

// Message is a single conversation turn. Plain string content is all the
// generation pipeline needs.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ThinkingConfig represents extended thinking configuration.
type ThinkingConfig struct {
	Type         string `json:"type"`          // "enabled"
	BudgetTokens int    `json:"budget_tokens"` // Max tokens for thinking
}

// Streaming event types

// ContentBlockDeltaEvent carries incremental content for one block.
type ContentBlockDeltaEvent struct {
	Type  string     `json:"type"`
	Index int        `json:"index"`
	Delta BlockDelta `json:"delta"`
}

// BlockDelta is the delta payload. Only text_delta contributes to the
// visible response; thinking_delta and signature_delta are ignored.
type BlockDelta struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	Thinking string `json:"thinking,omitempty"`
}

// MessageDeltaEvent carries top-level message changes such as stop_reason.
type MessageDeltaEvent struct {
	Type  string       `json:"type"`
	Delta MessageDelta `json:"delta"`
}

// MessageDelta holds the stop reason. It is null until the final delta.
type MessageDelta struct {
	StopReason *string `json:"stop_reason"`
}

// ErrorResponse represents an error body, both for non-200 responses and
// for in-stream "error" events.
type ErrorResponse struct {
	Type  string    `json:"type"`
	Error *APIError `json:"error"`
}

// APIError represents an Anthropic API error.
type APIError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// ToCanonical maps the Anthropic error type onto the canonical taxonomy.
// rate_limit_error is the only type the invocation loop treats as
// retryable.
func (e *APIError) ToCanonical(statusCode int) *domain.APIError {
	var out *domain.APIError
	switch e.Type {
	case "rate_limit_error":
		out = domain.ErrRateLimit(e.Message)
	case "overloaded_error":
		out = domain.ErrOverloaded(e.Message)
	case "invalid_request_error":
		if strings.Contains(e.Message, "prompt is too long") {
			out = domain.ErrContextLength(e.Message)
		} else {
			out = domain.ErrInvalidRequest(e.Message)
		}
	case "authentication_error":
		out = domain.ErrAuthentication(e.Message).WithCode(domain.ErrorCodeInvalidAPIKey)
	case "permission_error":
		out = domain.ErrPermission(e.Message)
	case "not_found_error":
		out = domain.ErrNotFound(e.Message)
	default:
		out = canonicalForStatus(statusCode, e.Message)
	}
	if statusCode != 0 {
		out.WithStatusCode(statusCode)
	}
	return out.WithProvider("anthropic")
}

func canonicalForStatus(statusCode int, message string) *domain.APIError {
	switch statusCode {
	case http.StatusTooManyRequests:
		return domain.ErrRateLimit(message)
	case http.StatusBadRequest:
		return domain.ErrInvalidRequest(message)
	case http.StatusUnauthorized:
		return domain.ErrAuthentication(message)
	case http.StatusForbidden:
		return domain.ErrPermission(message)
	case http.StatusNotFound:
		return domain.ErrNotFound(message)
	default:
		return domain.ErrServer(message)
	}
}

// ParseErrorResponse parses an error response body.
func ParseErrorResponse(data []byte) (*APIError, error) {
	var errResp ErrorResponse
	if err := json.Unmarshal(data, &errResp); err != nil {
		return nil, err
	}
	if errResp.Error == nil {
		return nil, fmt.Errorf("no error object in response")
	}
	return errResp.Error, nil
}
