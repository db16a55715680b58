package artifact

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FSStore writes objects under a root directory, one subdirectory per
// conversation.
type FSStore struct {
	root string
}

func NewFSStore(root string) (*FSStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve artifact dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	return &FSStore{root: abs}, nil
}

// path rejects names that would escape the conversation directory.
func (s *FSStore) path(conversationID, name string) (string, error) {
	if err := checkIDs(conversationID, name); err != nil {
		return "", err
	}
	p := filepath.Join(s.root, filepath.FromSlash(Key(conversationID, name)))
	if !strings.HasPrefix(p, s.root+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid artifact path %q", Key(conversationID, name))
	}
	return p, nil
}

func (s *FSStore) Put(_ context.Context, conversationID, name string, content []byte) error {
	p, err := s.path(conversationID, name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	return os.WriteFile(p, content, 0o644)
}

func (s *FSStore) Get(_ context.Context, conversationID, name string) ([]byte, error) {
	p, err := s.path(conversationID, name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	return data, err
}

func (s *FSStore) List(_ context.Context, conversationID string) ([]string, error) {
	dir := filepath.Join(s.root, strings.TrimSpace(conversationID))
	var out []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

func (s *FSStore) URL(_ context.Context, conversationID, name string) (string, error) {
	p, err := s.path(conversationID, name)
	if err != nil {
		return "", err
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(p)}).String(), nil
}
