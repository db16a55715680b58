// Package invoke runs a single logical model call: it opens a stream on the
// configured provider, accumulates content deltas and retries throttled
// calls with exponential backoff.
package invoke

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/devgenius/artifact-gateway/internal/domain"
)

const (
	DefaultRetryMax        = 3
	DefaultRetryBase       = time.Second
	DefaultReasoningBudget = 4096

	// reasoningTemperature is the only temperature providers accept while
	// extended thinking is enabled.
	reasoningTemperature = 1

	tracerName = "github.com/devgenius/artifact-gateway/internal/invoke"
)

// Observer receives the accumulated text after every content delta.
type Observer func(buffer string)

// Options are per-call settings.
type Options struct {
	Reasoning       bool
	ReasoningBudget int
}

// Result is the outcome of one successful invocation.
type Result struct {
	Text       string
	StopReason domain.StopReason
	// Tries counts stream attempts including throttled ones.
	Tries int
}

// Config holds the model parameters and retry policy.
type Config struct {
	Model           string
	MaxOutputTokens int
	Temperature     float32
	RetryMax        int
	RetryBase       time.Duration
}

// Client invokes a provider. It is safe for concurrent use.
type Client struct {
	provider  domain.Provider
	cfg       Config
	logger    *slog.Logger
	tracer    trace.Tracer
	counter   domain.TokenCounter
	userAgent string
	onBackoff func(try int, delay time.Duration)
}

// Option configures a Client.
type Option func(*Client)

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func WithTracer(t trace.Tracer) Option {
	return func(c *Client) { c.tracer = t }
}

// WithTokenCounter enables a prompt size estimate in the debug log.
func WithTokenCounter(tc domain.TokenCounter) Option {
	return func(c *Client) { c.counter = tc }
}

func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithBackoffHook is called before every backoff sleep with the try that
// failed (1-based) and the delay about to be waited.
func WithBackoffHook(fn func(try int, delay time.Duration)) Option {
	return func(c *Client) { c.onBackoff = fn }
}

// New builds a Client. Zero retry settings fall back to the defaults.
func New(p domain.Provider, cfg Config, opts ...Option) *Client {
	if cfg.RetryMax < 1 {
		cfg.RetryMax = DefaultRetryMax
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = DefaultRetryBase
	}
	c := &Client{
		provider: p,
		cfg:      cfg,
		logger:   slog.Default(),
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Provider returns the provider the client streams from.
func (c *Client) Provider() domain.Provider { return c.provider }

// Model returns the configured model id.
func (c *Client) Model() string { return c.cfg.Model }

// Invoke streams conv to the provider and returns the accumulated text.
// Throttled tries are retried up to the configured ceiling; the last
// throttling error is returned as a *domain.RetryableError. Any other
// failure is returned immediately as a *domain.FatalError.
func (c *Client) Invoke(ctx context.Context, conv domain.Conversation, opts Options, observe Observer) (*Result, error) {
	if len(conv) == 0 {
		return nil, domain.ErrInvalidRequest("conversation must contain at least one message").
			WithCode(domain.ErrorCodeEmptyConversation)
	}

	req := c.buildRequest(conv, opts)
	c.logPromptSize(ctx, req)

	var backoff retry.Backoff = retry.NewExponential(c.cfg.RetryBase)
	backoff = retry.WithMaxRetries(uint64(c.cfg.RetryMax-1), backoff)

	try := 0
	backoff = c.observeBackoff(ctx, backoff, &try)

	return retry.DoValue(ctx, backoff, func(ctx context.Context) (*Result, error) {
		try++
		res, err := c.attempt(ctx, req, try, observe)
		if err != nil {
			err = domain.Classify(err)
			if domain.IsRetryable(err) {
				return nil, retry.RetryableError(err)
			}
			return nil, err
		}
		res.Tries = try
		return res, nil
	})
}

func (c *Client) observeBackoff(ctx context.Context, next retry.Backoff, try *int) retry.Backoff {
	return retry.BackoffFunc(func() (time.Duration, bool) {
		d, stop := next.Next()
		if stop {
			return 0, true
		}
		c.logger.WarnContext(ctx, "provider throttled, backing off",
			slog.String("provider", c.provider.Name()),
			slog.Int("try", *try),
			slog.Duration("delay", d),
		)
		if c.onBackoff != nil {
			c.onBackoff(*try, d)
		}
		return d, false
	})
}

func (c *Client) buildRequest(conv domain.Conversation, opts Options) *domain.InvokeRequest {
	req := &domain.InvokeRequest{
		Model:           c.cfg.Model,
		Messages:        conv.Clone(),
		MaxOutputTokens: c.cfg.MaxOutputTokens,
		Temperature:     c.cfg.Temperature,
		UserAgent:       c.userAgent,
	}
	if opts.Reasoning {
		budget := opts.ReasoningBudget
		if budget <= 0 {
			budget = DefaultReasoningBudget
		}
		req.Reasoning = &domain.ReasoningConfig{BudgetTokens: budget}
		req.Temperature = reasoningTemperature
	}
	return req
}

// attempt opens one stream and drains it.
func (c *Client) attempt(ctx context.Context, req *domain.InvokeRequest, try int, observe Observer) (*Result, error) {
	ctx, span := c.tracer.Start(ctx, "invoke.attempt", trace.WithAttributes(
		attribute.String("provider", c.provider.Name()),
		attribute.String("model", req.Model),
		attribute.Int("try", try),
		attribute.Bool("reasoning", req.Reasoning != nil),
	))
	defer span.End()

	events, err := c.provider.Stream(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var buf strings.Builder
	var stop domain.StopReason
	for ev := range events {
		if ev.Err != nil {
			span.RecordError(ev.Err)
			span.SetStatus(codes.Error, ev.Err.Error())
			return nil, ev.Err
		}
		switch ev.Kind {
		case domain.EventContentDelta:
			buf.WriteString(ev.Text)
			if observe != nil {
				observe(buf.String())
			}
		case domain.EventMessageDelta:
			stop = ev.StopReason
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if stop == "" {
		stop = domain.StopReasonOther
	}

	span.SetAttributes(
		attribute.String("stop_reason", string(stop)),
		attribute.Int("response_bytes", buf.Len()),
	)
	return &Result{Text: buf.String(), StopReason: stop}, nil
}

func (c *Client) logPromptSize(ctx context.Context, req *domain.InvokeRequest) {
	if c.counter == nil || !c.logger.Enabled(ctx, slog.LevelDebug) {
		return
	}
	total := 0
	for _, m := range req.Messages {
		n, err := c.counter.Count(m.Content)
		if err != nil {
			c.logger.DebugContext(ctx, "token estimate failed", slog.String("error", err.Error()))
			return
		}
		total += n
	}
	c.logger.DebugContext(ctx, "invoking model",
		slog.String("provider", c.provider.Name()),
		slog.String("model", req.Model),
		slog.Int("messages", len(req.Messages)),
		slog.Int("prompt_tokens_estimate", total),
	)
}
