// Package memory is an in-process storage.Store for development and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/devgenius/artifact-gateway/internal/domain"
	"github.com/devgenius/artifact-gateway/internal/storage"
)

// Store keeps every record in maps guarded by one lock.
type Store struct {
	mu            sync.RWMutex
	conversations map[string][]domain.ConversationRecord
	feedback      map[string]*domain.Feedback
	sessions      map[string]*domain.SessionRecord
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		conversations: make(map[string][]domain.ConversationRecord),
		feedback:      make(map[string]*domain.Feedback),
		sessions:      make(map[string]*domain.SessionRecord),
	}
}

func (s *Store) SaveConversation(ctx context.Context, rec *domain.ConversationRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations[rec.ConversationID] = append(s.conversations[rec.ConversationID], *rec)
	return nil
}

func (s *Store) ListConversation(ctx context.Context, conversationID string) ([]domain.ConversationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	recs := s.conversations[conversationID]
	out := make([]domain.ConversationRecord, len(recs))
	copy(out, recs)
	return out, nil
}

func (s *Store) CreateFeedback(ctx context.Context, fb *domain.Feedback) error {
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *fb
	s.feedback[fb.ID] = &cp
	return nil
}

func (s *Store) RecordFeedback(ctx context.Context, id string, sentiment domain.Sentiment, explanation string) (*domain.Feedback, error) {
	if err := storage.ValidateRating(sentiment, explanation); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fb, ok := s.feedback[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	now := time.Now().UTC()
	fb.Sentiment = &sentiment
	fb.Explanation = explanation
	fb.RatedAt = &now
	cp := *fb
	return &cp, nil
}

func (s *Store) GetFeedback(ctx context.Context, id string) (*domain.Feedback, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fb, ok := s.feedback[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *fb
	return &cp, nil
}

func (s *Store) ListFeedback(ctx context.Context, conversationID string) ([]domain.Feedback, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Feedback
	for _, fb := range s.feedback {
		if fb.ConversationID == conversationID {
			out = append(out, *fb)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) SaveSession(ctx context.Context, rec *domain.SessionRecord) error {
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.sessions[rec.ConversationID]; ok {
		existing.UserName = rec.UserName
		existing.UserEmail = rec.UserEmail
		return nil
	}
	cp := *rec
	s.sessions[rec.ConversationID] = &cp
	return nil
}

func (s *Store) UpdateSessionBundle(ctx context.Context, conversationID, bundleURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[conversationID]
	if !ok {
		return storage.ErrNotFound
	}
	now := time.Now().UTC()
	rec.BundleURL = bundleURL
	rec.UpdatedAt = &now
	return nil
}

func (s *Store) GetSession(ctx context.Context, conversationID string) (*domain.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.sessions[conversationID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *Store) Close() error { return nil }
