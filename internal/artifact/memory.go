package artifact

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryStore keeps objects in process.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (s *MemoryStore) Put(_ context.Context, conversationID, name string, content []byte) error {
	if err := checkIDs(conversationID, name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[Key(conversationID, name)] = append([]byte(nil), content...)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, conversationID, name string) ([]byte, error) {
	if err := checkIDs(conversationID, name); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, ok := s.data[Key(conversationID, name)]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), raw...), nil
}

func (s *MemoryStore) List(_ context.Context, conversationID string) ([]string, error) {
	prefix := strings.TrimSpace(conversationID) + "/"
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for key := range s.data {
		if strings.HasPrefix(key, prefix) {
			out = append(out, strings.TrimPrefix(key, prefix))
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *MemoryStore) URL(_ context.Context, conversationID, name string) (string, error) {
	return "memory://" + Key(conversationID, name), nil
}
