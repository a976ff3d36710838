package archive

import (
	"sync"

	"github.com/yndnr/worldsave/internal/core/domain"
)

// Factory returns a fresh, zero-valued state object for a class.
type Factory func() any

// Registry maps class names to state factories so payloads can be decoded
// without knowing their concrete type at the call site.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register binds class to factory, replacing any previous binding.
func (r *Registry) Register(class string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[class] = factory
}

// RegisterType binds class to a factory allocating a new T.
func RegisterType[T any](r *Registry, class string) {
	r.Register(class, func() any { return new(T) })
}

// Has reports whether class has a decoder.
func (r *Registry) Has(class string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[class]
	return ok
}

// Classes returns the registered class names in sorted order.
func (r *Registry) Classes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.factories)
}

// New allocates a fresh state object for class.
func (r *Registry) New(class string) (any, error) {
	r.mu.RLock()
	factory, ok := r.factories[class]
	r.mu.RUnlock()
	if !ok {
		return nil, domain.ErrUnknownClass.WithDetails("%q", class)
	}
	return factory(), nil
}

// Decode allocates a state object for class and applies payload to it.
func (r *Registry) Decode(class string, payload []byte) (any, error) {
	obj, err := r.New(class)
	if err != nil {
		return nil, err
	}
	if err := UnmarshalFields(payload, obj); err != nil {
		return nil, err
	}
	return obj, nil
}
