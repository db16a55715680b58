package anthropic

import (
	"context"
	"errors"

	"github.com/devgenius/artifact-gateway/internal/config"
	"github.com/devgenius/artifact-gateway/internal/domain"
	"github.com/devgenius/artifact-gateway/internal/provider/registry"
)

// ProviderType is the provider type identifier used in configuration.
const ProviderType = "anthropic"

func init() {
	registry.RegisterFactory(registry.ProviderFactory{
		Type:           ProviderType,
		Description:    "Anthropic Messages API (Claude models)",
		Create:         CreateFromConfig,
		ValidateConfig: ValidateConfig,
	})
}

// CreateFromConfig creates a new Anthropic provider from configuration.
func CreateFromConfig(_ context.Context, cfg config.ProviderConfig) (domain.Provider, error) {
	var opts []ProviderOption
	if cfg.BaseURL != "" {
		opts = append(opts, WithBaseURL(cfg.BaseURL))
	}
	if cfg.Name != "" {
		opts = append(opts, WithName(cfg.Name))
	}
	return New(cfg.APIKey, opts...), nil
}

// ValidateConfig requires an API key.
func ValidateConfig(cfg config.ProviderConfig) error {
	if cfg.APIKey == "" {
		return errors.New("api_key is required")
	}
	return nil
}
