// Package registry maps provider type names from configuration onto
// constructors.
//
// Each provider package registers itself via init():
//
//	func init() {
//	    registry.RegisterFactory(registry.ProviderFactory{
//	        Type:        ProviderType,
//	        Description: "Google Gemini API provider",
//	        Create:      CreateFromConfig,
//	    })
//	}
//
// and must be blank-imported by the binary so that init() runs.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/devgenius/artifact-gateway/internal/config"
	"github.com/devgenius/artifact-gateway/internal/domain"
)

// ProviderFactory defines how to create a provider of a specific type.
type ProviderFactory struct {
	// Type is the identifier used in provider.type (e.g. "anthropic").
	Type string

	// Description provides a human-readable description of the provider.
	Description string

	// Create instantiates a provider. Some SDK clients dial during
	// construction, hence the context.
	Create func(ctx context.Context, cfg config.ProviderConfig) (domain.Provider, error)

	// ValidateConfig performs provider-specific validation. Optional.
	ValidateConfig func(cfg config.ProviderConfig) error
}

var (
	factoryMu  sync.RWMutex
	factoryMap = make(map[string]ProviderFactory)
)

// RegisterFactory registers a provider factory. It panics on an empty type,
// a missing constructor or a duplicate registration.
func RegisterFactory(f ProviderFactory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()

	if f.Type == "" {
		panic("provider factory type cannot be empty")
	}
	if f.Create == nil {
		panic(fmt.Sprintf("provider factory %q must have a Create function", f.Type))
	}
	if _, exists := factoryMap[f.Type]; exists {
		panic(fmt.Sprintf("provider factory %q already registered", f.Type))
	}

	factoryMap[f.Type] = f
}

// GetFactory returns the factory for a provider type, if registered.
func GetFactory(providerType string) (ProviderFactory, bool) {
	factoryMu.RLock()
	defer factoryMu.RUnlock()

	f, ok := factoryMap[providerType]
	return f, ok
}

// ListProviderTypes returns all registered provider type names, sorted.
func ListProviderTypes() []string {
	factoryMu.RLock()
	defer factoryMu.RUnlock()

	types := make([]string, 0, len(factoryMap))
	for t := range factoryMap {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Create validates cfg and builds the provider through its factory.
func Create(ctx context.Context, cfg config.ProviderConfig) (domain.Provider, error) {
	f, ok := GetFactory(cfg.Type)
	if !ok {
		return nil, fmt.Errorf("unknown provider type: %s (registered types: %v)", cfg.Type, ListProviderTypes())
	}

	if f.ValidateConfig != nil {
		if err := f.ValidateConfig(cfg); err != nil {
			return nil, fmt.Errorf("invalid configuration for provider type %s: %w", cfg.Type, err)
		}
	}

	return f.Create(ctx, cfg)
}

// ClearFactories removes all registered factories (for testing only).
func ClearFactories() {
	factoryMu.Lock()
	defer factoryMu.Unlock()

	factoryMap = make(map[string]ProviderFactory)
}
