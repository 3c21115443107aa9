package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tern-cli/tern/pkg/llm"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	for _, id := range llm.KnownBackends() {
		assert.True(t, cfg.Enabled(id), "%s should be enabled by default", id)
	}
	assert.Equal(t, DefaultOpenAIPriority, cfg.Backend(llm.BackendOpenAI).Priority)
	assert.Equal(t, DefaultOllamaPriority, cfg.Backend(llm.BackendOllama).Priority)
	assert.Equal(t, DefaultLMStudioPriority, cfg.Backend(llm.BackendLMStudio).Priority)
	assert.Equal(t, DefaultOllamaBaseURL, cfg.Backend(llm.BackendOllama).BaseURL)
	assert.Equal(t, DefaultLMStudioBaseURL, cfg.Backend(llm.BackendLMStudio).BaseURL)
	assert.NotEmpty(t, cfg.SessionPath)
}

func TestLoadMissingFileIsFine(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yml"))
	require.NoError(t, err)
	assert.True(t, cfg.Enabled(llm.BackendOpenAI))
}

func TestLoadFileOverridesOnlyMentionedKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yml")
	content := `
session: /tmp/tern/session.yml
backends:
  openai:
    enabled: false
  ollama:
    priority: 1
    model: llama3.2
    timeout: 90s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	// Ambient environment must not leak into the file-layer assertions.
	t.Setenv("OLLAMA_HOST", "")
	t.Setenv("OLLAMA_MODEL", "")
	t.Setenv("OPENAI_MODEL", "")
	t.Setenv("TERN_SESSION_PATH", "")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/tern/session.yml", cfg.SessionPath)
	assert.False(t, cfg.Enabled(llm.BackendOpenAI))
	// Untouched fields keep their defaults.
	assert.Equal(t, DefaultOpenAIModel, cfg.Backend(llm.BackendOpenAI).Model)

	ollama := cfg.Backend(llm.BackendOllama)
	assert.Equal(t, 1, ollama.Priority)
	assert.Equal(t, "llama3.2", ollama.Model)
	assert.Equal(t, 90*time.Second, ollama.Timeout)
	assert.Equal(t, DefaultOllamaBaseURL, ollama.BaseURL)

	assert.True(t, cfg.Enabled(llm.BackendLMStudio), "unmentioned backend is untouched")
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yml")
	require.NoError(t, os.WriteFile(path, []byte("backends:\n  anthropic:\n    enabled: true\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic")
}

func TestLoadRejectsInvalidTimeout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yml")
	require.NoError(t, os.WriteFile(path, []byte("backends:\n  ollama:\n    timeout: soon\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
}

func TestLoadEnvironmentWinsOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yml")
	content := `
backends:
  openai:
    api_key: from-file
    model: gpt-4o
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("OPENAI_API_KEY", "from-env")
	t.Setenv("OLLAMA_HOST", "http://gpu-box:11434")
	t.Setenv("TERN_SESSION_PATH", "/tmp/tern/env-session.yml")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Backend(llm.BackendOpenAI).APIKey)
	assert.Equal(t, "gpt-4o", cfg.Backend(llm.BackendOpenAI).Model, "file value survives when env is silent")
	assert.Equal(t, "http://gpu-box:11434", cfg.Backend(llm.BackendOllama).BaseURL)
	assert.Equal(t, "/tmp/tern/env-session.yml", cfg.SessionPath)
}
