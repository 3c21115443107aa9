// Per-backend configuration passed to adapter constructors
package llm

import "time"

// BackendConfig holds the resolved configuration for one backend. The
// configuration store collaborator (pkg/config) produces these; adapters
// consume them and apply their own defaults for zero values.
type BackendConfig struct {
	Backend  BackendID     `json:"backend"`
	Enabled  bool          `json:"enabled"`
	Priority int           `json:"priority"`
	Model    string        `json:"model,omitempty"`
	APIKey   string        `json:"api_key,omitempty"`
	BaseURL  string        `json:"base_url,omitempty"`
	Timeout  time.Duration `json:"timeout,omitempty"`
}
