package container

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Factory constructs a capability instance.
type Factory func() (any, error)

// ErrUnknownIdentifier is returned for identifiers with no registered factory
// that the interpreter cannot serve either.
var ErrUnknownIdentifier = errors.New("container: unknown identifier")

// Loader produces factories for identifiers nobody registered explicitly.
type Loader interface {
	Load(identifier string) (Factory, error)
}

// Registry resolves capability identifiers to instances and factories.
// Instances are built once per identifier and reused.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	instances map[string]any
	loader    Loader
}

// Option customizes a Registry.
type Option func(*Registry)

// WithLoader sets the fallback used for unregistered identifiers. Passing nil
// disables the fallback.
func WithLoader(loader Loader) Option {
	return func(r *Registry) {
		r.loader = loader
	}
}

// NewRegistry returns an empty registry whose fallback interprets
// plugin-<type>:<path> identifiers.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		factories: map[string]Factory{},
		instances: map[string]any{},
		loader:    NewInterpreter(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register installs a factory. Returns an error if the identifier already exists.
func (r *Registry) Register(id string, factory Factory) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("container: id is required")
	}
	if factory == nil {
		return fmt.Errorf("container: factory is required for %s", id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[id]; exists {
		return fmt.Errorf("container: %s already registered", id)
	}
	r.factories[id] = factory
	return nil
}

// MustRegister panics if registration fails.
func (r *Registry) MustRegister(id string, factory Factory) {
	if err := r.Register(id, factory); err != nil {
		panic(err)
	}
}

// FactoryFor returns the factory for id, consulting the loader for
// identifiers that were never registered. Loaded factories are remembered.
func (r *Registry) FactoryFor(id string) (Factory, error) {
	r.mu.RLock()
	factory, ok := r.factories[id]
	loader := r.loader
	r.mu.RUnlock()
	if ok {
		return factory, nil
	}
	if loader == nil {
		return nil, fmt.Errorf("%w %s", ErrUnknownIdentifier, id)
	}
	loaded, err := loader.Load(id)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.factories[id]; ok {
		return existing, nil
	}
	r.factories[id] = loaded
	return loaded, nil
}

// Lookup returns the instance for id, building it on first use.
func (r *Registry) Lookup(id string) (any, error) {
	r.mu.RLock()
	instance, ok := r.instances[id]
	r.mu.RUnlock()
	if ok {
		return instance, nil
	}
	factory, err := r.FactoryFor(id)
	if err != nil {
		return nil, err
	}
	built, err := factory()
	if err != nil {
		return nil, fmt.Errorf("container: build %s: %w", id, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.instances[id]; ok {
		return existing, nil
	}
	r.instances[id] = built
	return built, nil
}

// IDs returns a sorted list of registered identifiers.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.factories))
	for id := range r.factories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
