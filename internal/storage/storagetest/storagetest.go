// Package storagetest holds the behaviour every storage.Store must share.
package storagetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/devgenius/artifact-gateway/internal/domain"
	"github.com/devgenius/artifact-gateway/internal/storage"
)

// Run exercises a store built fresh for every subtest by open.
func Run(t *testing.T, open func(t *testing.T) storage.Store) {
	t.Run("Conversations", func(t *testing.T) { testConversations(t, open(t)) })
	t.Run("Feedback", func(t *testing.T) { testFeedback(t, open(t)) })
	t.Run("Sessions", func(t *testing.T) { testSessions(t, open(t)) })
}

func testConversations(t *testing.T, s storage.Store) {
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, p := range []string{"first", "second"} {
		rec := &domain.ConversationRecord{
			ID:             "rec-" + p,
			ConversationID: "conv-1",
			Prompt:         p + " prompt",
			Response:       p + " response",
			CreatedAt:      base.Add(time.Duration(i) * time.Minute),
		}
		if err := s.SaveConversation(ctx, rec); err != nil {
			t.Fatalf("SaveConversation() error = %v", err)
		}
	}
	if err := s.SaveConversation(ctx, &domain.ConversationRecord{ID: "other", ConversationID: "conv-2", Prompt: "p", Response: "r"}); err != nil {
		t.Fatal(err)
	}

	recs, err := s.ListConversation(ctx, "conv-1")
	if err != nil {
		t.Fatalf("ListConversation() error = %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("len = %d, want 2", len(recs))
	}
	if recs[0].Prompt != "first prompt" || recs[1].Response != "second response" {
		t.Errorf("records out of order: %+v", recs)
	}

	empty, err := s.ListConversation(ctx, "missing")
	if err != nil || len(empty) != 0 {
		t.Errorf("ListConversation(missing) = %v, %v", empty, err)
	}
}

func testFeedback(t *testing.T, s storage.Store) {
	ctx := context.Background()
	fb := &domain.Feedback{
		ID:             "fb-1",
		ConversationID: "conv-1",
		UseCase:        "generate_architecture",
		ModelID:        "claude-test",
		Response:       "<mxGraphModel/>",
	}
	if err := s.CreateFeedback(ctx, fb); err != nil {
		t.Fatalf("CreateFeedback() error = %v", err)
	}

	got, err := s.GetFeedback(ctx, "fb-1")
	if err != nil {
		t.Fatalf("GetFeedback() error = %v", err)
	}
	if got.Sentiment != nil || got.RatedAt != nil {
		t.Errorf("new slot should be unrated: %+v", got)
	}

	if _, err := s.RecordFeedback(ctx, "fb-1", domain.SentimentPositive, ""); err == nil {
		t.Error("expected error for missing explanation")
	}
	if _, err := s.RecordFeedback(ctx, "fb-1", domain.Sentiment(5), "why"); err == nil {
		t.Error("expected error for invalid sentiment")
	}
	if _, err := s.RecordFeedback(ctx, "nope", domain.SentimentPositive, "why"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("RecordFeedback(nope) error = %v, want ErrNotFound", err)
	}

	rated, err := s.RecordFeedback(ctx, "fb-1", domain.SentimentNegative, "icons overlap")
	if err != nil {
		t.Fatalf("RecordFeedback() error = %v", err)
	}
	if rated.Sentiment == nil || *rated.Sentiment != domain.SentimentNegative {
		t.Errorf("Sentiment = %v", rated.Sentiment)
	}
	if rated.Explanation != "icons overlap" || rated.RatedAt == nil {
		t.Errorf("rating not stored: %+v", rated)
	}

	list, err := s.ListFeedback(ctx, "conv-1")
	if err != nil || len(list) != 1 {
		t.Fatalf("ListFeedback() = %v, %v", list, err)
	}

	if _, err := s.GetFeedback(ctx, "nope"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetFeedback(nope) error = %v, want ErrNotFound", err)
	}
}

func testSessions(t *testing.T, s storage.Store) {
	ctx := context.Background()
	rec := &domain.SessionRecord{ConversationID: "conv-1", UserName: "Ana", UserEmail: "ana@example.com"}
	if err := s.SaveSession(ctx, rec); err != nil {
		t.Fatalf("SaveSession() error = %v", err)
	}
	// Saving again updates the user fields.
	rec.UserName = "Ana B"
	if err := s.SaveSession(ctx, rec); err != nil {
		t.Fatalf("SaveSession() upsert error = %v", err)
	}

	if err := s.UpdateSessionBundle(ctx, "conv-1", "https://bucket/conv-1/conversation_artifacts.zip"); err != nil {
		t.Fatalf("UpdateSessionBundle() error = %v", err)
	}
	got, err := s.GetSession(ctx, "conv-1")
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if got.UserName != "Ana B" || got.BundleURL == "" || got.UpdatedAt == nil {
		t.Errorf("session = %+v", got)
	}

	if err := s.UpdateSessionBundle(ctx, "missing", "x"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("UpdateSessionBundle(missing) error = %v", err)
	}
	if _, err := s.GetSession(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetSession(missing) error = %v", err)
	}
}
