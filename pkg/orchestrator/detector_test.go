package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tern-cli/tern/pkg/llm"
)

func TestDetectAllReturnsOneResultPerBackendInFixedOrder(t *testing.T) {
	r := newRig()
	r.openai.WithAvailable(false)
	r.lmstudio.WithStatus(disconnected("server not started"))

	results := r.orch.DetectAll(context.Background())

	require.Len(t, results, len(llm.KnownBackends()))
	for i, id := range llm.KnownBackends() {
		assert.Equal(t, id, results[i].Backend)
	}

	assert.False(t, results[0].Available)
	assert.True(t, results[1].Connected())
	assert.False(t, results[2].Connected())
	assert.Equal(t, "server not started", results[2].Status.Error)
}

func TestDetectAllSurvivesPanickingAdapter(t *testing.T) {
	r := newRig()
	r.ollama.WithPanickingProbe()

	results := r.orch.DetectAll(context.Background())
	require.Len(t, results, 3)

	assert.False(t, results[1].Available)
	assert.Contains(t, results[1].Status.Error, "probe failed unexpectedly")

	// The misbehaving backend does not hide the others.
	assert.True(t, results[0].Connected())
	assert.True(t, results[2].Connected())
}

func TestDetectOneUnavailableReportsSetup(t *testing.T) {
	r := newRig()
	r.openai.WithAvailable(false)

	result := r.orch.DetectOne(context.Background(), llm.BackendOpenAI)

	assert.False(t, result.Available)
	assert.False(t, result.Connected())
	assert.NotEmpty(t, result.Status.Error)
	assert.Empty(t, result.Models)
}

func TestDetectOneConnectedCollectsModels(t *testing.T) {
	r := newRig()

	result := r.orch.DetectOne(context.Background(), llm.BackendOllama)

	assert.True(t, result.Available)
	assert.True(t, result.Connected())
	require.Len(t, result.Models, 1)
	assert.Equal(t, "llama3.2:70b", result.Models[0].ID)
}

func TestDetectOneFoldsModelListingFailure(t *testing.T) {
	r := newRig()
	r.lmstudio.WithModelsError(&llm.Error{
		Code:    llm.ErrCodeNoModels,
		Backend: llm.BackendLMStudio,
		Message: "no chat models are downloaded",
	})

	result := r.orch.DetectOne(context.Background(), llm.BackendLMStudio)

	assert.True(t, result.Connected(), "a modelless backend is still connected")
	assert.Contains(t, result.Status.Error, "no chat models")
	assert.Empty(t, result.Models)
}
