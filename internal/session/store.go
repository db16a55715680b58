package session

import (
	"sync"

	"github.com/google/uuid"
)

// Store keeps sessions in memory, keyed by conversation id.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// Create starts a session with a fresh id.
func (s *Store) Create() *Session {
	sess := newSession(uuid.NewString())
	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	return sess
}

// Get returns the session for id.
func (s *Store) Get(id string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// GetOrCreate returns the session for id, creating it when absent. An empty
// id always creates a new session.
func (s *Store) GetOrCreate(id string) *Session {
	if id == "" {
		return s.Create()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		return sess
	}
	sess := newSession(id)
	s.sessions[id] = sess
	return sess
}

// Delete forgets the session for id.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
