package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKnownBackendsOrder(t *testing.T) {
	// The order is the deterministic tie-break and must not change.
	assert.Equal(t, []BackendID{BackendOpenAI, BackendOllama, BackendLMStudio}, KnownBackends())
}

func TestBackendIDValid(t *testing.T) {
	for _, id := range KnownBackends() {
		assert.True(t, id.Valid(), "known backend %s should be valid", id)
	}
	assert.False(t, BackendID("").Valid())
	assert.False(t, BackendID("anthropic").Valid())
	assert.False(t, BackendID("OpenAI").Valid(), "identities are case-sensitive")
}

func TestBackendIDDisplayName(t *testing.T) {
	assert.Equal(t, "OpenAI", BackendOpenAI.DisplayName())
	assert.Equal(t, "Ollama", BackendOllama.DisplayName())
	assert.Equal(t, "LM Studio", BackendLMStudio.DisplayName())
	assert.Equal(t, "mystery", BackendID("mystery").DisplayName())
}
