// Package runtime assembles the service from configuration and manages its
// lifecycle: stores, provider, pipeline, HTTP server and config reloads.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/devgenius/artifact-gateway/internal/api/handlers"
	"github.com/devgenius/artifact-gateway/internal/artifact"
	"github.com/devgenius/artifact-gateway/internal/auth"
	"github.com/devgenius/artifact-gateway/internal/config"
	"github.com/devgenius/artifact-gateway/internal/domain"
	"github.com/devgenius/artifact-gateway/internal/pipeline"
	"github.com/devgenius/artifact-gateway/internal/server"
	"github.com/devgenius/artifact-gateway/internal/session"
	"github.com/devgenius/artifact-gateway/internal/storage"
)

// Gateway runs the artifact service.
type Gateway struct {
	configPath string
	watcher    *config.Watcher
	logger     *slog.Logger

	provider  domain.Provider
	store     storage.Store
	artifacts artifact.Store
	region    string

	pipeline *pipeline.Pipeline
	server   *server.Server

	ctx    context.Context
	cancel context.CancelFunc
	done   chan error
	mu     sync.Mutex
}

// New loads the configuration and opens the stores it names.
func New(opts ...Option) (*Gateway, error) {
	g := &Gateway{logger: slog.Default()}
	for _, opt := range opts {
		if err := opt(g); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	w, err := config.NewWatcher(g.configPath, g.logger)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	g.watcher = w
	cfg := w.Current()

	if g.store == nil {
		if g.store, err = OpenStore(cfg.Storage); err != nil {
			return nil, fmt.Errorf("open storage: %w", err)
		}
	}
	if g.artifacts == nil {
		if g.artifacts, g.region, err = OpenArtifacts(cfg.Artifacts); err != nil {
			g.store.Close()
			return nil, fmt.Errorf("open artifact store: %w", err)
		}
	} else {
		g.region = cfg.Artifacts.S3.Region
	}
	return g, nil
}

// Config returns the configuration currently in effect.
func (g *Gateway) Config() *config.Config {
	return g.watcher.Current()
}

// Start builds the pipeline and starts serving. It returns once the server
// is listening in the background.
func (g *Gateway) Start(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.server != nil {
		return errors.New("gateway already started")
	}
	g.ctx, g.cancel = context.WithCancel(ctx)
	cfg := g.watcher.Current()

	runner, err := g.runner(g.ctx, cfg)
	if err != nil {
		g.cancel()
		return err
	}
	g.pipeline = pipeline.New(runner,
		pipeline.WithArtifactStore(g.artifacts),
		pipeline.WithConversationStore(g.store),
		pipeline.WithFeedbackStore(g.store),
		pipeline.WithModel(cfg.Provider.Model),
		pipeline.WithReasoningBudget(cfg.Provider.ReasoningBudget),
		pipeline.WithRegion(g.region),
		pipeline.WithLogger(g.logger),
	)

	kroki, err := NewKroki(cfg.Render, g.logger)
	if err != nil {
		g.cancel()
		return fmt.Errorf("init renderer: %w", err)
	}
	var hopts []handlers.Option
	hopts = append(hopts, handlers.WithLogger(g.logger))
	if kroki != nil {
		hopts = append(hopts, handlers.WithKroki(kroki))
	}

	g.server = server.New(cfg.Server, g.logger, auth.NewAuthenticator(cfg.Auth.APIKeys))
	g.server.Router.Get("/health", handlers.HandleHealth)
	handlers.New(g.pipeline, session.NewStore(), g.store, g.artifacts, hopts...).Register(g.server.API)

	g.done = make(chan error, 1)
	go func() { g.done <- g.server.Start(g.ctx) }()

	if g.configPath != "" {
		if err := g.watcher.Watch(g.ctx, g.onConfigChange); err != nil {
			g.logger.Warn("config hot reload disabled", slog.String("error", err.Error()))
		}
	}

	g.logger.Info("gateway started",
		slog.Int("port", cfg.Server.Port),
		slog.String("provider", cfg.Provider.Type),
		slog.String("model", cfg.Provider.Model),
		slog.String("storage", cfg.Storage.Type),
		slog.String("artifacts", cfg.Artifacts.Type))
	return nil
}

// Handler returns the HTTP handler. It is nil before Start.
func (g *Gateway) Handler() http.Handler {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.server == nil {
		return nil
	}
	return g.server.Router
}

// Shutdown stops the server, waits for it to drain and closes the stores.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.logger.Info("shutting down gateway")
	if g.cancel != nil {
		g.cancel()
	}

	var serveErr error
	if g.done != nil {
		select {
		case serveErr = <-g.done:
		case <-ctx.Done():
			serveErr = ctx.Err()
		}
	}

	if err := g.watcher.Close(); err != nil {
		g.logger.Error("failed to close config watcher", slog.String("error", err.Error()))
	}
	if err := g.store.Close(); err != nil {
		g.logger.Error("failed to close storage", slog.String("error", err.Error()))
	}

	g.logger.Info("gateway shutdown complete")
	return serveErr
}

func (g *Gateway) onConfigChange(cfg *config.Config) {
	if err := g.reload(cfg); err != nil {
		g.logger.Error("failed to reload", slog.String("error", err.Error()))
	}
}

// reload swaps the generation settings. Server, auth and storage settings
// need a restart.
func (g *Gateway) reload(cfg *config.Config) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.pipeline == nil {
		return errors.New("gateway not started")
	}
	runner, err := g.runner(g.ctx, cfg)
	if err != nil {
		return err
	}
	g.pipeline.SetRunner(runner,
		pipeline.WithModel(cfg.Provider.Model),
		pipeline.WithReasoningBudget(cfg.Provider.ReasoningBudget),
	)
	g.logger.Info("reload complete",
		slog.String("model", cfg.Provider.Model),
		slog.Int("max_attempts", cfg.Generation.MaxAttempts),
		slog.Int("retry_max", cfg.Generation.RetryMax))
	return nil
}

func (g *Gateway) runner(ctx context.Context, cfg *config.Config) (pipeline.Runner, error) {
	p := g.provider
	if p == nil {
		var err error
		if p, err = NewProvider(ctx, cfg); err != nil {
			return nil, err
		}
	}
	return NewRunner(p, cfg, g.logger), nil
}
