package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tern-cli/tern/pkg/config"
	"github.com/tern-cli/tern/pkg/llm"
	"github.com/tern-cli/tern/pkg/providers/mock"
)

func TestGetOrCreateMemoizes(t *testing.T) {
	reg := New(config.Default())

	first, err := reg.GetOrCreate(llm.BackendOllama)
	require.NoError(t, err)
	second, err := reg.GetOrCreate(llm.BackendOllama)
	require.NoError(t, err)

	assert.Same(t, first, second, "two lookups for the same identity return the same instance")
}

func TestGetOrCreateUnknownBackend(t *testing.T) {
	reg := New(config.Default())

	_, err := reg.GetOrCreate(llm.BackendID("anthropic"))
	require.Error(t, err)

	tagged, ok := llm.AsError(err)
	require.True(t, ok)
	assert.Equal(t, llm.ErrCodeNoBackend, tagged.Code)
}

func TestOverrideDropsCachedInstance(t *testing.T) {
	reg := New(config.Default())

	original, err := reg.GetOrCreate(llm.BackendOpenAI)
	require.NoError(t, err)

	replacement := mock.New(llm.BackendOpenAI)
	reg.Override(llm.BackendOpenAI, func(llm.BackendConfig) (llm.Backend, error) {
		return replacement, nil
	})

	got, err := reg.GetOrCreate(llm.BackendOpenAI)
	require.NoError(t, err)
	assert.NotSame(t, original, got)
	assert.Same(t, llm.Backend(replacement), got)
}

func TestKnownMatchesFixedOrder(t *testing.T) {
	reg := New(config.Default())
	assert.Equal(t, llm.KnownBackends(), reg.Known())
}

func TestCloseAllClosesConstructedAdapters(t *testing.T) {
	reg := New(config.Default())

	m := mock.New(llm.BackendOllama)
	reg.Override(llm.BackendOllama, func(llm.BackendConfig) (llm.Backend, error) {
		return m, nil
	})
	_, err := reg.GetOrCreate(llm.BackendOllama)
	require.NoError(t, err)

	require.NoError(t, reg.CloseAll())
	assert.Equal(t, 1, m.CloseCalls())

	// Safe to call again.
	require.NoError(t, reg.CloseAll())
}
