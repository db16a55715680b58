package anthropic

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	defaultBaseURL = "https://api.anthropic.com"
	defaultVersion = "2023-06-01"
)

// ClientOption configures the client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithVersion sets the API version.
func WithVersion(version string) ClientOption {
	return func(c *Client) {
		c.version = version
	}
}

// Client is a minimal HTTP client for the Anthropic streaming API.
type Client struct {
	apiKey     string
	baseURL    string
	version    string
	httpClient *http.Client
}

// NewClient creates a new Anthropic API client.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		version:    defaultVersion,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RequestOptions contains per-request options.
type RequestOptions struct {
	// UserAgent is forwarded upstream when set.
	UserAgent string

	// BetaFeatures specifies which beta features to enable.
	BetaFeatures string
}

// StreamEventResult wraps a streaming event or error.
type StreamEventResult struct {
	EventType string
	Data      json.RawMessage
	Err       error
}

// ParseContentBlockDelta parses a content_block_delta event.
func (r *StreamEventResult) ParseContentBlockDelta() (*ContentBlockDeltaEvent, error) {
	var event ContentBlockDeltaEvent
	if err := json.Unmarshal(r.Data, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

// ParseMessageDelta parses a message_delta event.
func (r *StreamEventResult) ParseMessageDelta() (*MessageDeltaEvent, error) {
	var event MessageDeltaEvent
	if err := json.Unmarshal(r.Data, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

// StreamMessage sends a streaming messages request and returns a channel of
// raw SSE events. Non-200 responses are returned as canonical errors.
func (c *Client) StreamMessage(ctx context.Context, req *MessagesRequest, opts *RequestOptions) (<-chan StreamEventResult, error) {
	req.Stream = true

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	c.setHeaders(httpReq, opts)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(resp.Body)
		if apiErr, err := ParseErrorResponse(respBody); err == nil && apiErr != nil {
			return nil, apiErr.ToCanonical(resp.StatusCode)
		}
		return nil, canonicalForStatus(resp.StatusCode,
			fmt.Sprintf("API error (status %d): %s", resp.StatusCode, string(respBody))).
			WithStatusCode(resp.StatusCode).WithProvider("anthropic")
	}

	out := make(chan StreamEventResult)
	go c.streamReader(ctx, resp.Body, out)
	return out, nil
}

func (c *Client) streamReader(ctx context.Context, body io.ReadCloser, out chan<- StreamEventResult) {
	defer close(out)
	defer body.Close()

	send := func(ev StreamEventResult) bool {
		select {
		case out <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	scanner := bufio.NewScanner(body)
	// Large diagrams arrive in big chunks
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	var currentEvent string

	for scanner.Scan() {
		line := scanner.Text()

		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "event: ") {
			currentEvent = strings.TrimPrefix(line, "event: ")
			continue
		}

		if strings.HasPrefix(line, "data: ") {
			data := strings.TrimPrefix(line, "data: ")

			if currentEvent == "error" {
				if apiErr, err := ParseErrorResponse([]byte(data)); err == nil {
					send(StreamEventResult{EventType: currentEvent, Err: apiErr.ToCanonical(0)})
				} else {
					send(StreamEventResult{EventType: currentEvent, Err: fmt.Errorf("stream error: %s", data)})
				}
				return
			}

			if !send(StreamEventResult{EventType: currentEvent, Data: json.RawMessage(data)}) {
				return
			}

			if currentEvent == "message_stop" {
				return
			}
		}
	}

	if err := scanner.Err(); err != nil {
		send(StreamEventResult{Err: fmt.Errorf("stream read error: %w", err)})
	}
}

func (c *Client) setHeaders(req *http.Request, opts *RequestOptions) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", c.version)

	if opts != nil && opts.UserAgent != "" {
		req.Header.Set("User-Agent", opts.UserAgent)
	} else {
		req.Header.Set("User-Agent", "artifact-gateway/1.0")
	}

	if opts != nil && opts.BetaFeatures != "" {
		req.Header.Set("anthropic-beta", opts.BetaFeatures)
	}
}
