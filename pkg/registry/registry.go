// Package registry maps backend identities to adapter instances.
//
// The registry is an explicitly constructed, dependency-injected object:
// the process entry point builds one and passes it down, which preserves
// one-instance-per-process semantics without hidden global state.
// Construction is lazy and memoized with no eviction; adapters live for
// the process lifetime.
package registry

import (
	"fmt"
	"sync"

	"github.com/tern-cli/tern/pkg/config"
	"github.com/tern-cli/tern/pkg/llm"
	"github.com/tern-cli/tern/pkg/providers/lmstudio"
	"github.com/tern-cli/tern/pkg/providers/ollama"
	"github.com/tern-cli/tern/pkg/providers/openai"
)

// Constructor builds an adapter from its resolved configuration.
type Constructor func(cfg llm.BackendConfig) (llm.Backend, error)

// Registry lazily constructs and caches one adapter per backend
// identity.
type Registry struct {
	mu           sync.Mutex
	cfg          *config.Config
	constructors map[llm.BackendID]Constructor
	instances    map[llm.BackendID]llm.Backend
}

// New creates a registry wired with the three concrete adapter
// constructors.
func New(cfg *config.Config) *Registry {
	return &Registry{
		cfg: cfg,
		constructors: map[llm.BackendID]Constructor{
			llm.BackendOpenAI: func(c llm.BackendConfig) (llm.Backend, error) {
				return openai.New(c)
			},
			llm.BackendOllama: func(c llm.BackendConfig) (llm.Backend, error) {
				return ollama.New(c)
			},
			llm.BackendLMStudio: func(c llm.BackendConfig) (llm.Backend, error) {
				return lmstudio.New(c)
			},
		},
		instances: make(map[llm.BackendID]llm.Backend),
	}
}

// Override replaces the constructor for one identity. Any cached
// instance for that identity is dropped. Intended for tests.
func (r *Registry) Override(id llm.BackendID, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.constructors[id] = ctor
	delete(r.instances, id)
}

// GetOrCreate returns the adapter for id, constructing it on first use.
// Two calls for the same identity return the same instance.
func (r *Registry) GetOrCreate(id llm.BackendID) (llm.Backend, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if backend, ok := r.instances[id]; ok {
		return backend, nil
	}

	ctor, ok := r.constructors[id]
	if !ok {
		return nil, &llm.Error{
			Code:    llm.ErrCodeNoBackend,
			Backend: id,
			Message: fmt.Sprintf("unknown backend %q", id),
			Hint:    "valid backends are: openai, ollama, lmstudio",
		}
	}

	backend, err := ctor(r.cfg.Backend(id))
	if err != nil {
		return nil, err
	}
	r.instances[id] = backend
	return backend, nil
}

// Known returns the fixed set of backend identities in tie-break order.
func (r *Registry) Known() []llm.BackendID {
	return llm.KnownBackends()
}

// CloseAll closes every constructed adapter. Safe to call more than
// once.
func (r *Registry) CloseAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for id, backend := range r.instances {
		if err := backend.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing %s: %w", id, err)
		}
	}
	return firstErr
}
