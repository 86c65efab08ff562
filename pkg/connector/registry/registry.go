// Package registry manages source connector registration and
// instantiation. Connectors register themselves from init functions
// and callers create configured instances by name.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ajitpratap0/aribaflow/pkg/config"
	"github.com/ajitpratap0/aribaflow/pkg/connector/core"
	"github.com/ajitpratap0/aribaflow/pkg/errors"
	"github.com/ajitpratap0/aribaflow/pkg/logger"
	"go.uber.org/zap"
)

// Registry manages connector registration and instantiation
type Registry struct {
	sources map[string]SourceFactory
	mu      sync.RWMutex
	logger  *zap.Logger
}

// SourceFactory is a function that creates source connector instances.
// It takes a Config and returns a configured Source connector or an error.
type SourceFactory func(cfg *config.Config) (core.Source, error)

// Global registry instance
var globalRegistry = NewRegistry()

// NewRegistry creates a new connector registry
func NewRegistry() *Registry {
	return &Registry{
		sources: make(map[string]SourceFactory),
		logger:  logger.Get().With(zap.String("component", "connector_registry")),
	}
}

// RegisterSource registers a source connector factory
func (r *Registry) RegisterSource(name string, factory SourceFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sources[name]; exists {
		return errors.New(errors.ErrorTypeConfig, fmt.Sprintf("source connector %s already registered", name))
	}

	r.sources[name] = factory
	r.logger.Info("source connector registered", zap.String("name", name))
	return nil
}

// CreateSource creates a source connector instance
func (r *Registry) CreateSource(name string, cfg *config.Config) (core.Source, error) {
	r.mu.RLock()
	factory, exists := r.sources[name]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.New(errors.ErrorTypeConfig, fmt.Sprintf("source connector %s not found", name))
	}

	source, err := factory(cfg)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, fmt.Sprintf("failed to create source connector %s", name))
	}

	return source, nil
}

// ListSources returns a sorted list of registered source connectors
func (r *Registry) ListSources() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sources := make([]string, 0, len(r.sources))
	for name := range r.sources {
		sources = append(sources, name)
	}
	sort.Strings(sources)
	return sources
}

// RegisterSource registers a source factory with the global registry
func RegisterSource(name string, factory SourceFactory) error {
	return globalRegistry.RegisterSource(name, factory)
}

// CreateSource creates a source from the global registry
func CreateSource(name string, cfg *config.Config) (core.Source, error) {
	return globalRegistry.CreateSource(name, cfg)
}

// ListSources lists sources in the global registry
func ListSources() []string {
	return globalRegistry.ListSources()
}
