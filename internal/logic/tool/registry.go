package tool

import (
	"fmt"
	"maps"
	"slices"
	"sync"
)

// Registry holds, per tool name, a factory and the tool's configuration.
// A name may have a configuration without a factory when it was loaded from
// the config store before the tool registered itself.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	configs   map[string]Config
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		configs:   make(map[string]Config),
	}
}

// Register sets the factory for name. Re-registering replaces the factory only;
// an existing configuration is kept. It reports whether a default configuration
// had to be created.
func (r *Registry) Register(name string, factory Factory) (bool, error) {
	if name == "" {
		return false, fmt.Errorf("register: %w", ErrEmptyName)
	}

	if factory == nil {
		return false, fmt.Errorf("register %s: %w", name, ErrNilFactory)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.factories[name] = factory

	if _, ok := r.configs[name]; ok {
		return false, nil
	}

	r.configs[name] = DefaultConfig(name)

	return true, nil
}

// Unregister removes the factory and configuration of name.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.configs[name]; !ok {
		return false
	}

	delete(r.configs, name)
	delete(r.factories, name)

	return true
}

// Put stores cfg as the configuration of cfg.Name, replacing any previous one.
// It reports whether the name was previously unknown.
func (r *Registry) Put(cfg Config) (bool, error) {
	if cfg.Name == "" {
		return false, fmt.Errorf("put config: %w", ErrEmptyName)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	_, exists := r.configs[cfg.Name]
	r.configs[cfg.Name] = cfg.Clone()

	return !exists, nil
}

// UpdateConfig validates patch and merges it into the configuration of name.
func (r *Registry) UpdateConfig(name string, patch ConfigPatch) (Config, error) {
	if err := patch.Validate(name); err != nil {
		return Config{}, fmt.Errorf("update config %s: %w", name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cfg, ok := r.configs[name]
	if !ok {
		return Config{}, fmt.Errorf("update config %s: %w", name, ErrToolNotFound)
	}

	cfg = patch.Apply(cfg)
	r.configs[name] = cfg

	return cfg.Clone(), nil
}

// Config returns a copy of the configuration of name.
func (r *Registry) Config(name string) (Config, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cfg, ok := r.configs[name]
	if !ok {
		return Config{}, false
	}

	return cfg.Clone(), true
}

// Factory returns the factory registered for name.
func (r *Registry) Factory(name string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.factories[name]

	return f, ok
}

// Names returns all known tool names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Sorted(maps.Keys(r.configs))
}

// Configs returns a deep copy of every configuration keyed by name.
func (r *Registry) Configs() map[string]Config {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]Config, len(r.configs))
	for name, cfg := range r.configs {
		out[name] = cfg.Clone()
	}

	return out
}
