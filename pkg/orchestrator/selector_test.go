package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tern-cli/tern/pkg/llm"
)

func TestAutoSelectPicksLowestPriorityConnected(t *testing.T) {
	r := newRig()
	// The cloud backend (priority 1) is unreachable; both local backends
	// answer. Priority 2 beats priority 3.
	r.openai.WithStatus(disconnected("no API key"))

	id, err := r.orch.AutoSelect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, llm.BackendOllama, id)

	_, activeID, ok := r.orch.Active()
	require.True(t, ok)
	assert.Equal(t, llm.BackendOllama, activeID)
	assert.Equal(t, 1, r.ollama.InitCalls())
}

func TestAutoSelectTieBreaksByFixedOrder(t *testing.T) {
	r := newRig()
	for _, id := range llm.KnownBackends() {
		r.setPriority(id, 5)
	}

	id, err := r.orch.AutoSelect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, llm.BackendOpenAI, id, "equal priorities fall back to the fixed backend order")
}

func TestAutoSelectSkipsDisabledBackends(t *testing.T) {
	r := newRig()
	r.disable(llm.BackendOpenAI)

	id, err := r.orch.AutoSelect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, llm.BackendOllama, id)
}

func TestAutoSelectNothingConnected(t *testing.T) {
	r := newRig()
	r.openai.WithStatus(disconnected("no API key"))
	r.ollama.WithStatus(disconnected("server down"))
	r.lmstudio.WithStatus(disconnected("server down"))

	_, err := r.orch.AutoSelect(context.Background())
	require.Error(t, err)

	tagged, ok := llm.AsError(err)
	require.True(t, ok)
	assert.Equal(t, llm.ErrCodeNoBackend, tagged.Code)
	assert.Contains(t, tagged.Message, "no API key", "per-backend reasons are reported")

	_, _, active := r.orch.Active()
	assert.False(t, active, "a failed selection leaves nothing selected")
}

func TestSetActiveSwitchesAfterReprobe(t *testing.T) {
	r := newRig()

	require.NoError(t, r.orch.SetActive(context.Background(), llm.BackendLMStudio))

	_, activeID, ok := r.orch.Active()
	require.True(t, ok)
	assert.Equal(t, llm.BackendLMStudio, activeID)
}

func TestSetActiveToDisconnectedKeepsPrevious(t *testing.T) {
	r := newRig()
	require.NoError(t, r.orch.SetActive(context.Background(), llm.BackendOllama))

	r.lmstudio.WithStatus(disconnected("server not started"))
	err := r.orch.SetActive(context.Background(), llm.BackendLMStudio)
	require.Error(t, err)

	tagged, ok := llm.AsError(err)
	require.True(t, ok)
	assert.Equal(t, llm.ErrCodeConnection, tagged.Code)
	assert.Equal(t, llm.BackendLMStudio, tagged.Backend)

	// The failed switch is not destructive.
	_, activeID, ok := r.orch.Active()
	require.True(t, ok)
	assert.Equal(t, llm.BackendOllama, activeID)
	assert.Equal(t, 0, r.ollama.CloseCalls())
}

func TestSetActiveRejectsUnknownAndDisabled(t *testing.T) {
	r := newRig()

	err := r.orch.SetActive(context.Background(), llm.BackendID("anthropic"))
	require.Error(t, err)
	tagged, _ := llm.AsError(err)
	assert.Equal(t, llm.ErrCodeNoBackend, tagged.Code)

	r.disable(llm.BackendLMStudio)
	err = r.orch.SetActive(context.Background(), llm.BackendLMStudio)
	require.Error(t, err)
	tagged, _ = llm.AsError(err)
	assert.Contains(t, tagged.Message, "disabled")
}

func TestSetActiveSameBackendIsNoOp(t *testing.T) {
	r := newRig()
	require.NoError(t, r.orch.SetActive(context.Background(), llm.BackendOllama))
	require.NoError(t, r.orch.SetActive(context.Background(), llm.BackendOllama))

	assert.Equal(t, 1, r.ollama.InitCalls())
	assert.Equal(t, 0, r.ollama.CloseCalls())
}

func TestFailoverExcludesTheFailedBackend(t *testing.T) {
	r := newRig()
	r.openai.WithStatus(disconnected("no API key"))
	require.NoError(t, r.orch.SetActive(context.Background(), llm.BackendOllama))

	// Ollama still probes as connected (a stale detection); failover must
	// refuse to re-pick it anyway.
	id, err := r.orch.Failover(context.Background())
	require.NoError(t, err)
	assert.Equal(t, llm.BackendLMStudio, id)

	_, activeID, _ := r.orch.Active()
	assert.Equal(t, llm.BackendLMStudio, activeID)
	assert.Equal(t, 1, r.ollama.CloseCalls(), "the previous adapter is cleaned up")
}

func TestFailoverWithoutActiveFallsBackToAutoSelect(t *testing.T) {
	r := newRig()

	id, err := r.orch.Failover(context.Background())
	require.NoError(t, err)
	assert.Equal(t, llm.BackendOpenAI, id)
}

func TestSummarizeCountsAnExistingPass(t *testing.T) {
	r := newRig()
	r.openai.WithAvailable(false)
	r.lmstudio.WithStatus(disconnected("server down"))

	results := r.orch.DetectAll(context.Background())

	summary := Summarize(results)
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 2, summary.Available)
	assert.Equal(t, 1, summary.Connected)
}

func TestStatusSummary(t *testing.T) {
	r := newRig()
	r.openai.WithAvailable(false)
	r.lmstudio.WithStatus(disconnected("server down"))
	require.NoError(t, r.orch.SetActive(context.Background(), llm.BackendOllama))

	summary := r.orch.StatusSummary(context.Background())
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 2, summary.Available)
	assert.Equal(t, 1, summary.Connected)
	assert.Equal(t, llm.BackendOllama, summary.Active)
}
