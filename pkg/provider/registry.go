package provider

import (
	"fmt"
	"sync"
)

// Config is everything a factory needs to build one adapter instance.
type Config struct {
	// Name is the instance name from the configuration (unique key).
	Name string

	// Auth is the parsed authentication variant for this instance.
	Auth Auth

	// Params holds provider-specific settings (server address, file
	// paths, timeouts, ...), keyed by the param name as written in the
	// configuration.
	Params map[string]string
}

// Param reads a provider param with a fallback default.
func (c Config) Param(name, def string) string {
	if v, ok := c.Params[name]; ok && v != "" {
		return v
	}
	return def
}

// Factory builds an adapter instance from its configuration.
type Factory func(cfg Config) (Adapter, error)

// Registry manages adapter factories (one per provider type) and the
// adapter instances created from the configuration (one per declared
// provider).
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	instances map[string]Adapter
	order     []string // instance names in declaration order
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		instances: make(map[string]Adapter),
	}
}

// RegisterFactory registers the factory for a provider type.
func (r *Registry) RegisterFactory(typeName string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[typeName] = factory
}

// CreateInstance builds and registers the adapter for one declared
// provider. Duplicate names and unknown types are configuration errors.
func (r *Registry) CreateInstance(typeName string, cfg Config) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.instances[cfg.Name]; exists {
		return fmt.Errorf("duplicate provider name: %s", cfg.Name)
	}

	factory, ok := r.factories[typeName]
	if !ok {
		return fmt.Errorf("unknown provider type: %s", typeName)
	}

	adapter, err := factory(cfg)
	if err != nil {
		return fmt.Errorf("creating provider %s: %w", cfg.Name, err)
	}

	r.instances[cfg.Name] = adapter
	r.order = append(r.order, cfg.Name)
	return nil
}

// Get returns the adapter instance with the given name.
func (r *Registry) Get(name string) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.instances[name]
	return a, ok
}

// All returns all adapter instances in declaration order.
func (r *Registry) All() []Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()

	adapters := make([]Adapter, 0, len(r.order))
	for _, name := range r.order {
		adapters = append(adapters, r.instances[name])
	}
	return adapters
}

// Count returns the number of registered instances.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.instances)
}
