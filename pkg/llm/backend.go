// Backend identity and the adapter contract
package llm

import "context"

// BackendID is the symbolic name of an inference backend. The set of
// valid identities is closed; see KnownBackends.
type BackendID string

const (
	// BackendOpenAI is the cloud inference service, reached through the
	// authenticated OpenAI SDK.
	BackendOpenAI BackendID = "openai"
	// BackendOllama is the first local service, reached over its native
	// HTTP API.
	BackendOllama BackendID = "ollama"
	// BackendLMStudio is the second local service, reached over its
	// OpenAI-compatible HTTP API.
	BackendLMStudio BackendID = "lmstudio"
)

// KnownBackends returns the fixed, ordered set of backend identities.
// The order is the deterministic tie-break used when two backends share
// the same configured priority.
func KnownBackends() []BackendID {
	return []BackendID{BackendOpenAI, BackendOllama, BackendLMStudio}
}

// Valid reports whether the identity belongs to the known set.
func (id BackendID) Valid() bool {
	for _, known := range KnownBackends() {
		if id == known {
			return true
		}
	}
	return false
}

// DisplayName returns the human-facing name of the backend.
func (id BackendID) DisplayName() string {
	switch id {
	case BackendOpenAI:
		return "OpenAI"
	case BackendOllama:
		return "Ollama"
	case BackendLMStudio:
		return "LM Studio"
	default:
		return string(id)
	}
}

// Backend is the unified adapter contract. Every backend implements it
// identically; callers stay backend-agnostic.
//
// Adapters are pure translators: they never mutate the request they are
// given, and every expected failure comes back as a tagged *Error, not a
// raw transport error.
type Backend interface {
	// ID returns the backend's symbolic identity.
	ID() BackendID

	// Available reports whether the minimum configuration for this
	// backend is present (credential, reachable local endpoint). It must
	// be cheap: no full round trip, at most a short bounded probe.
	Available() bool

	// Status performs a real round trip within a short timeout and
	// reports the result. Transport failures are folded into the status
	// rather than returned as errors.
	Status(ctx context.Context) BackendStatus

	// ListModels returns the models the backend can serve. It fails with
	// a tagged error when the round trip fails or the backend reports
	// zero usable models.
	ListModels(ctx context.Context) ([]Model, error)

	// Chat performs a unified chat completion. It honors ctx
	// cancellation by aborting the in-flight call and returning a
	// CANCELLED outcome, and applies the backend's bounded timeout.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// SupportsTools reports whether the backend's wire format carries
	// tool calls.
	SupportsTools() bool

	// Init acquires any client/session object the backend needs.
	// Idempotent.
	Init() error

	// Close releases resources acquired by Init. Idempotent.
	Close() error

	// ValidateModelID is a cheap syntactic check applied before a model
	// switch is attempted.
	ValidateModelID(model string) error

	// ConfigRequirements describes the backend's configuration surface
	// for help text. Purely descriptive.
	ConfigRequirements() ConfigRequirements
}

// ModelPuller is implemented by backends that can download models on
// demand (currently only Ollama).
type ModelPuller interface {
	PullModel(ctx context.Context, model string) error
}

// ConfigRequirements describes what a backend needs to run.
type ConfigRequirements struct {
	Required []ConfigKey `json:"required,omitempty"`
	Optional []ConfigKey `json:"optional,omitempty"`
	// Setup holds human setup instructions shown when the backend is
	// unavailable.
	Setup string `json:"setup,omitempty"`
}

// ConfigKey is one configuration knob, named by its environment variable.
type ConfigKey struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}
