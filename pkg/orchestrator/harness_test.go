package orchestrator

import (
	"github.com/tern-cli/tern/pkg/config"
	"github.com/tern-cli/tern/pkg/llm"
	"github.com/tern-cli/tern/pkg/providers/mock"
	"github.com/tern-cli/tern/pkg/registry"
)

// rig wires an orchestrator over three scripted backends so no test
// touches the network.
type rig struct {
	cfg      *config.Config
	registry *registry.Registry
	orch     *Orchestrator

	openai   *mock.Backend
	ollama   *mock.Backend
	lmstudio *mock.Backend
}

func connected() llm.BackendStatus {
	return llm.BackendStatus{Available: true, Connected: true}
}

func disconnected(reason string) llm.BackendStatus {
	return llm.BackendStatus{Available: true, Connected: false, Error: reason}
}

func newRig() *rig {
	r := &rig{
		cfg:      config.Default(),
		openai:   mock.New(llm.BackendOpenAI),
		ollama:   mock.New(llm.BackendOllama).WithTools(false),
		lmstudio: mock.New(llm.BackendLMStudio).WithTools(false),
	}

	r.openai.WithModels(llm.Model{ID: "gpt-4o-mini", Name: "gpt-4o-mini", SupportsTools: true})
	r.ollama.WithModels(llm.Model{ID: "llama3.2:70b", Name: "llama3.2:70b"})
	r.lmstudio.WithModels(llm.Model{ID: "qwen2.5-7b", Name: "qwen2.5-7b"})

	r.registry = registry.New(r.cfg)
	for id, b := range map[llm.BackendID]*mock.Backend{
		llm.BackendOpenAI:   r.openai,
		llm.BackendOllama:   r.ollama,
		llm.BackendLMStudio: r.lmstudio,
	} {
		backend := b
		r.registry.Override(id, func(llm.BackendConfig) (llm.Backend, error) {
			return backend, nil
		})
	}

	r.orch = New(r.registry, r.cfg)
	return r
}

func (r *rig) setPriority(id llm.BackendID, priority int) {
	bc := r.cfg.Backends[id]
	bc.Priority = priority
	r.cfg.Backends[id] = bc
}

func (r *rig) disable(id llm.BackendID) {
	bc := r.cfg.Backends[id]
	bc.Enabled = false
	r.cfg.Backends[id] = bc
}
