package gemini

import (
	"context"
	"errors"

	"github.com/devgenius/artifact-gateway/internal/config"
	"github.com/devgenius/artifact-gateway/internal/domain"
	"github.com/devgenius/artifact-gateway/internal/provider/registry"
)

// ProviderType is the provider type identifier used in configuration.
const ProviderType = "gemini"

func init() {
	registry.RegisterFactory(registry.ProviderFactory{
		Type:           ProviderType,
		Description:    "Google Gemini API via the genai SDK",
		Create:         CreateFromConfig,
		ValidateConfig: ValidateConfig,
	})
}

// CreateFromConfig creates a Gemini provider from configuration.
func CreateFromConfig(ctx context.Context, cfg config.ProviderConfig) (domain.Provider, error) {
	var opts []Option
	if cfg.BaseURL != "" {
		opts = append(opts, WithBaseURL(cfg.BaseURL))
	}
	return New(ctx, cfg.Name, cfg.APIKey, opts...)
}

// ValidateConfig requires an API key.
func ValidateConfig(cfg config.ProviderConfig) error {
	if cfg.APIKey == "" {
		return errors.New("api_key is required")
	}
	return nil
}
