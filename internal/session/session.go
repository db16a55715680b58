// Package session holds the per-conversation working state: the message
// history sent to the model, the artifact kinds the user asked for and the
// transcript of generated output.
package session

import (
	"strings"
	"sync"
	"time"

	"github.com/devgenius/artifact-gateway/internal/domain"
)

// Session is owned by one caller at a time. Use Lock and Unlock to
// serialise requests that share a conversation id.
type Session struct {
	ID        string
	UserName  string
	UserEmail string
	CreatedAt time.Time

	mu           sync.Mutex
	messages     domain.Conversation
	selected     map[domain.ArtifactKind]bool
	threads      map[domain.ArtifactKind]domain.Conversation
	artifacts    map[domain.ArtifactKind]string
	interactions []domain.Interaction
}

func newSession(id string) *Session {
	return &Session{
		ID:        id,
		CreatedAt: time.Now().UTC(),
		selected:  make(map[domain.ArtifactKind]bool),
		threads:   make(map[domain.ArtifactKind]domain.Conversation),
		artifacts: make(map[domain.ArtifactKind]string),
	}
}

func (s *Session) Lock()   { s.mu.Lock() }
func (s *Session) Unlock() { s.mu.Unlock() }

// Messages returns a copy of the conversation history.
func (s *Session) Messages() domain.Conversation {
	return s.messages.Clone()
}

// Len returns the number of messages in the history.
func (s *Session) Len() int { return len(s.messages) }

// Append adds messages to the history.
func (s *Session) Append(msgs ...domain.Message) {
	s.messages = s.messages.Append(msgs...)
}

// Rollback drops the last n messages. It is used to undo a user turn whose
// generation failed.
func (s *Session) Rollback(n int) {
	if n <= 0 {
		return
	}
	if n > len(s.messages) {
		n = len(s.messages)
	}
	s.messages = s.messages[:len(s.messages)-n].Clone()
}

// AssistantText joins every assistant turn with a single space.
func (s *Session) AssistantText() string {
	var parts []string
	for _, m := range s.messages {
		if m.Role == domain.RoleAssistant {
			parts = append(parts, m.Content)
		}
	}
	return strings.Join(parts, " ")
}

// Select records whether the user asked for kind.
func (s *Session) Select(kind domain.ArtifactKind, on bool) {
	s.selected[kind] = on
}

func (s *Session) Selected(kind domain.ArtifactKind) bool {
	return s.selected[kind]
}

// SelectedKinds returns the selected kinds in display order.
func (s *Session) SelectedKinds() []domain.ArtifactKind {
	var out []domain.ArtifactKind
	for _, k := range domain.Kinds() {
		if s.selected[k] {
			out = append(out, k)
		}
	}
	return out
}

// Thread returns a copy of the prompts and replies exchanged for kind. It is
// kept apart from Messages so artifact prompts never leak into the context
// of other kinds.
func (s *Session) Thread(kind domain.ArtifactKind) domain.Conversation {
	return s.threads[kind].Clone()
}

func (s *Session) AppendThread(kind domain.ArtifactKind, msgs ...domain.Message) {
	s.threads[kind] = s.threads[kind].Append(msgs...)
}

// RollbackThread drops the last n messages of the thread for kind.
func (s *Session) RollbackThread(kind domain.ArtifactKind, n int) {
	t := s.threads[kind]
	if n <= 0 || len(t) == 0 {
		return
	}
	if n > len(t) {
		n = len(t)
	}
	s.threads[kind] = t[:len(t)-n].Clone()
}

// SetArtifact remembers the latest valid artifact of kind, the default
// input of a refinement.
func (s *Session) SetArtifact(kind domain.ArtifactKind, content string) {
	s.artifacts[kind] = content
}

func (s *Session) Artifact(kind domain.ArtifactKind) (string, bool) {
	a, ok := s.artifacts[kind]
	return a, ok
}

// Record appends a transcript entry.
func (s *Session) Record(kind, details string) {
	s.interactions = append(s.interactions, domain.Interaction{Type: kind, Details: details})
}

// Interactions returns a copy of the transcript entries.
func (s *Session) Interactions() []domain.Interaction {
	out := make([]domain.Interaction, len(s.interactions))
	copy(out, s.interactions)
	return out
}

// Transcript renders the transcript as markdown.
func (s *Session) Transcript() string {
	parts := []string{"# Transcript"}
	for _, in := range s.interactions {
		parts = append(parts, "## "+in.Type, in.Details)
	}
	return strings.Join(parts, "\n\n")
}
