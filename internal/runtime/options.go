package runtime

import (
	"log/slog"

	"github.com/devgenius/artifact-gateway/internal/artifact"
	"github.com/devgenius/artifact-gateway/internal/domain"
	"github.com/devgenius/artifact-gateway/internal/storage"
)

// Option is a functional option for configuring a Gateway.
type Option func(*Gateway) error

// WithConfigFile loads configuration from path and reloads it when the file
// changes.
func WithConfigFile(path string) Option {
	return func(g *Gateway) error {
		g.configPath = path
		return nil
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) error {
		g.logger = logger
		return nil
	}
}

// WithStore replaces the store named in the configuration.
func WithStore(s storage.Store) Option {
	return func(g *Gateway) error {
		g.store = s
		return nil
	}
}

// WithArtifactStore replaces the artifact store named in the configuration.
func WithArtifactStore(s artifact.Store) Option {
	return func(g *Gateway) error {
		g.artifacts = s
		return nil
	}
}

// WithProvider pins the model provider. Reloads keep it and only rebuild the
// generation settings around it.
func WithProvider(p domain.Provider) Option {
	return func(g *Gateway) error {
		g.provider = p
		return nil
	}
}
