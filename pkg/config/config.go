// Package config is the configuration store collaborator for the
// provider runtime. It resolves each backend's settings from three
// layers, later layers winning: built-in defaults, an optional YAML
// settings file, and process environment variables.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v9"
	"gopkg.in/yaml.v3"

	"github.com/tern-cli/tern/pkg/llm"
)

// Default backend priorities. Lower is tried first during auto-select.
const (
	DefaultOpenAIPriority   = 1
	DefaultOllamaPriority   = 2
	DefaultLMStudioPriority = 3
)

const (
	DefaultOpenAIModel   = "gpt-4o-mini"
	DefaultOllamaBaseURL = "http://localhost:11434"
	// LM Studio's local server listens on 1234 by default.
	DefaultLMStudioBaseURL = "http://localhost:1234"
)

// Config is the resolved configuration for the whole runtime.
type Config struct {
	// Backends maps each known identity to its resolved settings. Every
	// known backend has an entry, defaulted when unconfigured.
	Backends map[llm.BackendID]llm.BackendConfig

	// SessionPath is where the last-session record is kept.
	SessionPath string
}

// fileConfig mirrors the YAML settings file. Pointer fields distinguish
// "absent" from zero so file entries only override what they mention.
type fileConfig struct {
	Session  string                       `yaml:"session"`
	Backends map[string]fileBackendConfig `yaml:"backends"`
}

type fileBackendConfig struct {
	Enabled  *bool  `yaml:"enabled"`
	Priority *int   `yaml:"priority"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	APIKey   string `yaml:"api_key"`
	Timeout  string `yaml:"timeout"`
}

// envConfig holds the environment overrides.
type envConfig struct {
	OpenAIAPIKey    string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL   string `env:"OPENAI_BASE_URL"`
	OpenAIModel     string `env:"OPENAI_MODEL"`
	OllamaHost      string `env:"OLLAMA_HOST"`
	OllamaModel     string `env:"OLLAMA_MODEL"`
	LMStudioBaseURL string `env:"LMSTUDIO_BASE_URL"`
	LMStudioModel   string `env:"LMSTUDIO_MODEL"`
	SessionPath     string `env:"TERN_SESSION_PATH"`
}

// Default returns the built-in configuration: all backends enabled, in
// the default priority order cloud first, then the two local services.
func Default() *Config {
	return &Config{
		Backends: map[llm.BackendID]llm.BackendConfig{
			llm.BackendOpenAI: {
				Backend:  llm.BackendOpenAI,
				Enabled:  true,
				Priority: DefaultOpenAIPriority,
				Model:    DefaultOpenAIModel,
			},
			llm.BackendOllama: {
				Backend:  llm.BackendOllama,
				Enabled:  true,
				Priority: DefaultOllamaPriority,
				BaseURL:  DefaultOllamaBaseURL,
			},
			llm.BackendLMStudio: {
				Backend:  llm.BackendLMStudio,
				Enabled:  true,
				Priority: DefaultLMStudioPriority,
				BaseURL:  DefaultLMStudioBaseURL,
			},
		},
		SessionPath: defaultSessionPath(),
	}
}

// Load resolves the configuration. path may be empty or point to a
// missing file, in which case only defaults and the environment apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// No settings file is fine.
		case err != nil:
			return nil, fmt.Errorf("reading settings file %s: %w", path, err)
		default:
			var fc fileConfig
			if err := yaml.Unmarshal(data, &fc); err != nil {
				return nil, fmt.Errorf("decoding settings file %s: %w", path, err)
			}
			if err := cfg.applyFile(fc); err != nil {
				return nil, fmt.Errorf("settings file %s: %w", path, err)
			}
		}
	}

	var ec envConfig
	if err := env.Parse(&ec); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	cfg.applyEnv(ec)

	return cfg, nil
}

func (c *Config) applyFile(fc fileConfig) error {
	if fc.Session != "" {
		c.SessionPath = fc.Session
	}
	for name, fb := range fc.Backends {
		id := llm.BackendID(name)
		if !id.Valid() {
			return fmt.Errorf("unknown backend %q", name)
		}
		bc := c.Backends[id]
		if fb.Enabled != nil {
			bc.Enabled = *fb.Enabled
		}
		if fb.Priority != nil {
			bc.Priority = *fb.Priority
		}
		if fb.Model != "" {
			bc.Model = fb.Model
		}
		if fb.BaseURL != "" {
			bc.BaseURL = fb.BaseURL
		}
		if fb.APIKey != "" {
			bc.APIKey = fb.APIKey
		}
		if fb.Timeout != "" {
			d, err := time.ParseDuration(fb.Timeout)
			if err != nil {
				return fmt.Errorf("backend %q: invalid timeout %q", name, fb.Timeout)
			}
			bc.Timeout = d
		}
		c.Backends[id] = bc
	}
	return nil
}

func (c *Config) applyEnv(ec envConfig) {
	if ec.SessionPath != "" {
		c.SessionPath = ec.SessionPath
	}

	openai := c.Backends[llm.BackendOpenAI]
	if ec.OpenAIAPIKey != "" {
		openai.APIKey = ec.OpenAIAPIKey
	}
	if ec.OpenAIBaseURL != "" {
		openai.BaseURL = ec.OpenAIBaseURL
	}
	if ec.OpenAIModel != "" {
		openai.Model = ec.OpenAIModel
	}
	c.Backends[llm.BackendOpenAI] = openai

	ollama := c.Backends[llm.BackendOllama]
	if ec.OllamaHost != "" {
		ollama.BaseURL = ec.OllamaHost
	}
	if ec.OllamaModel != "" {
		ollama.Model = ec.OllamaModel
	}
	c.Backends[llm.BackendOllama] = ollama

	lmstudio := c.Backends[llm.BackendLMStudio]
	if ec.LMStudioBaseURL != "" {
		lmstudio.BaseURL = ec.LMStudioBaseURL
	}
	if ec.LMStudioModel != "" {
		lmstudio.Model = ec.LMStudioModel
	}
	c.Backends[llm.BackendLMStudio] = lmstudio
}

// Backend returns the resolved settings for one backend.
func (c *Config) Backend(id llm.BackendID) llm.BackendConfig {
	return c.Backends[id]
}

// Enabled reports whether the backend is enabled.
func (c *Config) Enabled(id llm.BackendID) bool {
	return c.Backends[id].Enabled
}

func defaultSessionPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".tern/session.yml"
	}
	return home + "/.tern/session.yml"
}
