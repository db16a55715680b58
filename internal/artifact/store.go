// Package artifact persists generated artifacts, per-conversation bundles and
// deployable CloudFormation templates.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned when an object does not exist.
var ErrNotFound = errors.New("artifact not found")

// Store holds objects grouped by conversation id. Names are relative to the
// conversation, e.g. "architecture-20250301-120000.md".
type Store interface {
	Put(ctx context.Context, conversationID, name string, content []byte) error
	Get(ctx context.Context, conversationID, name string) ([]byte, error)
	List(ctx context.Context, conversationID string) ([]string, error)
	// URL returns a link to the object. Stores without a public address
	// return a store-specific locator.
	URL(ctx context.Context, conversationID, name string) (string, error)
}

const timestampLayout = "20060102-150405"

// Name returns the object name for an artifact of contentType produced at t.
func Name(contentType string, t time.Time) string {
	return contentType + "-" + t.UTC().Format(timestampLayout) + ".md"
}

// Key joins a conversation id and an object name.
func Key(conversationID, name string) string {
	return strings.TrimSpace(conversationID) + "/" + strings.TrimLeft(strings.TrimSpace(name), "/")
}

// Save stores content as a markdown artifact and returns its object name.
func Save(ctx context.Context, s Store, conversationID, contentType, content string, now time.Time) (string, error) {
	name := Name(contentType, now)
	if err := s.Put(ctx, conversationID, name, []byte(content)); err != nil {
		return "", fmt.Errorf("store %s artifact: %w", contentType, err)
	}
	return name, nil
}

func checkIDs(conversationID, name string) error {
	if strings.TrimSpace(conversationID) == "" {
		return fmt.Errorf("conversation_id is required")
	}
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("name is required")
	}
	return nil
}
