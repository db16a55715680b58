// Package continuation stitches responses that were cut off by the output
// token limit into a single logical response.
package continuation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/devgenius/artifact-gateway/internal/domain"
	"github.com/devgenius/artifact-gateway/internal/invoke"
)

// DefaultMaxAttempts bounds the number of model calls per logical response.
const DefaultMaxAttempts = 4

// DefaultInstruction is sent as the final user turn of a continuation
// conversation.
const DefaultInstruction = "Your previous answer was cut off because it reached the output token limit. " +
	"Continue exactly where it left off. Do not repeat any text that was already written " +
	"and do not add any introduction."

// Invoker is the single-call capability the controller drives.
type Invoker interface {
	Invoke(ctx context.Context, conv domain.Conversation, opts invoke.Options, observe invoke.Observer) (*invoke.Result, error)
}

// Attempt is one model call within a session.
type Attempt struct {
	Index      int               `json:"index"`
	Text       string            `json:"-"`
	StopReason domain.StopReason `json:"stop_reason"`
}

// Session is the result of Run.
type Session struct {
	// Response is the in-order concatenation of every attempt's text.
	Response string
	Attempts []Attempt
	// Truncated is set when every attempt was used and the last one still
	// stopped on the token limit. Response is then a best-effort partial.
	Truncated bool
}

// Options are per-run settings.
type Options struct {
	Invoke invoke.Options
	// Observer receives the logical response accumulated so far.
	Observer invoke.Observer
}

// Controller runs the continuation loop.
type Controller struct {
	invoker     Invoker
	maxAttempts int
	instruction string
	logger      *slog.Logger
}

// Option configures a Controller.
type Option func(*Controller)

func WithMaxAttempts(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

func WithInstruction(s string) Option {
	return func(c *Controller) {
		if s != "" {
			c.instruction = s
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

func New(inv Invoker, opts ...Option) *Controller {
	c := &Controller{
		invoker:     inv,
		maxAttempts: DefaultMaxAttempts,
		instruction: DefaultInstruction,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// MaxAttempts returns the attempt ceiling.
func (c *Controller) MaxAttempts() int { return c.maxAttempts }

// Run appends prompt to a copy of conv and invokes the model until it stops
// for a reason other than the token limit or the attempt ceiling is hit.
//
// The first truncation replaces the conversation with
// [user: prompt, assistant: text so far, user: instruction]. Later
// truncations resend that same conversation unchanged.
func (c *Controller) Run(ctx context.Context, prompt string, conv domain.Conversation, opts Options) (*Session, error) {
	current := conv.Append(domain.UserMessage(prompt))
	sess := &Session{}

	var response strings.Builder
	for i := 0; i < c.maxAttempts; i++ {
		prefix := response.String()
		var observe invoke.Observer
		if opts.Observer != nil {
			observe = func(buf string) { opts.Observer(prefix + buf) }
		}

		res, err := c.invoker.Invoke(ctx, current, opts.Invoke, observe)
		if err != nil {
			return nil, fmt.Errorf("attempt %d: %w", i+1, err)
		}

		sess.Attempts = append(sess.Attempts, Attempt{Index: i, Text: res.Text, StopReason: res.StopReason})
		response.WriteString(res.Text)

		if !res.StopReason.Truncated() {
			break
		}

		c.logger.InfoContext(ctx, "response truncated, continuing",
			slog.Int("attempt", i+1),
			slog.Int("max_attempts", c.maxAttempts),
			slog.Int("response_bytes", response.Len()),
		)

		if i == 0 {
			current = domain.Conversation{
				domain.UserMessage(prompt),
				domain.AssistantMessage(response.String()),
				domain.UserMessage(c.instruction),
			}
		}
	}

	sess.Response = response.String()
	last := sess.Attempts[len(sess.Attempts)-1]
	sess.Truncated = len(sess.Attempts) == c.maxAttempts && last.StopReason.Truncated()
	if sess.Truncated {
		c.logger.WarnContext(ctx, "response still truncated after final attempt",
			slog.Int("attempts", len(sess.Attempts)))
	}
	return sess, nil
}
