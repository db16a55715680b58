package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/devgenius/artifact-gateway/internal/artifact"
	"github.com/devgenius/artifact-gateway/internal/config"
	"github.com/devgenius/artifact-gateway/internal/continuation"
	"github.com/devgenius/artifact-gateway/internal/domain"
	"github.com/devgenius/artifact-gateway/internal/invoke"
	"github.com/devgenius/artifact-gateway/internal/provider/registry"
	"github.com/devgenius/artifact-gateway/internal/render"
	"github.com/devgenius/artifact-gateway/internal/storage"
	"github.com/devgenius/artifact-gateway/internal/storage/memory"
	"github.com/devgenius/artifact-gateway/internal/storage/sqldb"
	"github.com/devgenius/artifact-gateway/internal/tokens"
)

const userAgent = "artifact-gateway"

// NewProvider builds the provider named by cfg.Provider.Type. Provider
// packages register themselves and must be imported by the binary.
func NewProvider(ctx context.Context, cfg *config.Config) (domain.Provider, error) {
	p, err := registry.Create(ctx, cfg.Provider)
	if err != nil {
		return nil, fmt.Errorf("create provider: %w", err)
	}
	return p, nil
}

// NewRunner wraps p in the invocation client and continuation loop
// configured by cfg.
func NewRunner(p domain.Provider, cfg *config.Config, logger *slog.Logger) *continuation.Controller {
	client := invoke.New(p, invoke.Config{
		Model:           cfg.Provider.Model,
		MaxOutputTokens: cfg.Provider.MaxOutputTokens,
		Temperature:     cfg.Provider.Temperature,
		RetryMax:        cfg.Generation.RetryMax,
		RetryBase:       cfg.Generation.RetryBase,
	},
		invoke.WithLogger(logger),
		invoke.WithTokenCounter(tokens.New(cfg.Provider.Model)),
		invoke.WithUserAgent(userAgent),
	)
	return continuation.New(client,
		continuation.WithMaxAttempts(cfg.Generation.MaxAttempts),
		continuation.WithLogger(logger),
	)
}

// OpenStore opens the persistence backend named by cfg.Type.
func OpenStore(cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Type {
	case "", "memory":
		return memory.New(), nil
	case "sqlite", "postgres":
		driver := cfg.Driver
		if driver == "" {
			driver = cfg.Type
		}
		if cfg.DSN == "" {
			return nil, fmt.Errorf("storage.dsn is required for %s", cfg.Type)
		}
		return sqldb.New(sqldb.Config{Driver: driver, DSN: cfg.DSN})
	}
	return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
}

// OpenArtifacts opens the artifact store named by cfg.Type and returns the
// region used for CloudFormation console links.
func OpenArtifacts(cfg config.ArtifactsConfig) (artifact.Store, string, error) {
	switch cfg.Type {
	case "", "memory":
		return artifact.NewMemoryStore(), cfg.S3.Region, nil
	case "fs":
		s, err := artifact.NewFSStore(cfg.Dir)
		return s, cfg.S3.Region, err
	case "s3":
		s, err := artifact.NewS3Store(artifact.S3Config{
			Endpoint:      cfg.S3.Endpoint,
			Region:        cfg.S3.Region,
			AccessKey:     cfg.S3.AccessKey,
			SecretKey:     cfg.S3.SecretKey,
			Bucket:        cfg.S3.Bucket,
			UseSSL:        cfg.S3.UseSSL,
			PublicBaseURL: cfg.S3.PublicBaseURL,
		})
		if err != nil {
			return nil, "", err
		}
		return s, s.Region(), nil
	}
	return nil, "", fmt.Errorf("unknown artifacts type %q", cfg.Type)
}

// NewKroki builds the DSL renderer. An empty kroki_url disables rendering
// and returns nil.
func NewKroki(cfg config.RenderConfig, logger *slog.Logger) (*render.Kroki, error) {
	if cfg.KrokiURL == "" {
		return nil, nil
	}
	client := &http.Client{
		Timeout:   cfg.Timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	return render.NewKroki(cfg.CacheSize,
		render.WithKrokiURL(cfg.KrokiURL),
		render.WithHTTPClient(client),
		render.WithLogger(logger),
	)
}
