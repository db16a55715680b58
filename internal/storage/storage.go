// Package storage defines the persistence ports for conversation history,
// feedback and session headers.
package storage

import (
	"context"
	"errors"

	"github.com/devgenius/artifact-gateway/internal/domain"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("storage: not found")

// ConversationStore persists prompt/response exchanges.
type ConversationStore interface {
	SaveConversation(ctx context.Context, rec *domain.ConversationRecord) error
	ListConversation(ctx context.Context, conversationID string) ([]domain.ConversationRecord, error)
}

// FeedbackStore persists feedback slots and their ratings.
type FeedbackStore interface {
	// CreateFeedback opens an unrated slot.
	CreateFeedback(ctx context.Context, fb *domain.Feedback) error
	// RecordFeedback rates an existing slot.
	RecordFeedback(ctx context.Context, id string, sentiment domain.Sentiment, explanation string) (*domain.Feedback, error)
	GetFeedback(ctx context.Context, id string) (*domain.Feedback, error)
	ListFeedback(ctx context.Context, conversationID string) ([]domain.Feedback, error)
}

// SessionStore persists session headers.
type SessionStore interface {
	SaveSession(ctx context.Context, rec *domain.SessionRecord) error
	UpdateSessionBundle(ctx context.Context, conversationID, bundleURL string) error
	GetSession(ctx context.Context, conversationID string) (*domain.SessionRecord, error)
}

// Store is the full persistence surface used by the service.
type Store interface {
	ConversationStore
	FeedbackStore
	SessionStore
	Close() error
}

// ValidateRating checks a rating before it is recorded. The explanation is
// mandatory.
func ValidateRating(sentiment domain.Sentiment, explanation string) error {
	if !sentiment.Valid() {
		return domain.ErrInvalidRequest("sentiment must be 0 (negative) or 1 (positive)")
	}
	if explanation == "" {
		return domain.ErrInvalidRequest("an explanation is required to submit feedback")
	}
	return nil
}
