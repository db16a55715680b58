// Package tokens estimates prompt sizes for logging and budgeting.
package tokens

import (
	"fmt"
	"strings"
	"sync"

	"github.com/tiktoken-go/tokenizer"

	"github.com/devgenius/artifact-gateway/internal/domain"
)

// Counter counts tokens with a tiktoken encoding. Claude and Gemini models
// have no public tokenizer; o200k_base is used as the closest estimate.
// When the encoding cannot be loaded the counter degrades to a
// character-length Estimator.
type Counter struct {
	encoding tokenizer.Encoding
	fallback *Estimator

	once     sync.Once
	codec    tokenizer.Codec
	codecErr error
}

var (
	_ domain.TokenCounter = (*Counter)(nil)
	_ domain.TokenCounter = (*Estimator)(nil)
)

// New returns a counter for model.
func New(model string) *Counter {
	return &Counter{encoding: encodingFor(model), fallback: NewEstimator()}
}

// Encoding returns the tiktoken encoding in use.
func (c *Counter) Encoding() tokenizer.Encoding { return c.encoding }

func (c *Counter) Count(text string) (int, error) {
	c.once.Do(func() {
		c.codec, c.codecErr = tokenizer.Get(c.encoding)
	})
	if c.codecErr != nil {
		if c.fallback != nil {
			return c.fallback.Count(text)
		}
		return 0, fmt.Errorf("failed to get tokenizer encoding: %w", c.codecErr)
	}
	ids, _, err := c.codec.Encode(text)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

func encodingFor(model string) tokenizer.Encoding {
	model = strings.ToLower(model)
	switch {
	case strings.HasPrefix(model, "gpt-4o"), strings.HasPrefix(model, "gpt-4.1"), strings.HasPrefix(model, "gpt-5"):
		return tokenizer.O200kBase
	case strings.HasPrefix(model, "gpt-4"), strings.HasPrefix(model, "gpt-3.5"), strings.HasPrefix(model, "text-embedding"):
		return tokenizer.Cl100kBase
	default:
		return tokenizer.O200kBase
	}
}

// Estimator approximates token counts from character length.
type Estimator struct {
	// CharsPerToken is the average characters per token (default: 4)
	CharsPerToken float64
}

func NewEstimator() *Estimator {
	return &Estimator{CharsPerToken: 4.0}
}

func (e *Estimator) Count(text string) (int, error) {
	return int(float64(len(text)) / e.CharsPerToken), nil
}
