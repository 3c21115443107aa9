// Package session persists the last conversation session so a new
// process can resume where the previous one left off. Only four fields
// are kept: provider name, model name, timestamp, and a truncated
// message history.
package session

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tern-cli/tern/pkg/llm"
)

// DefaultKeepMessages bounds the persisted history.
const DefaultKeepMessages = 20

// Record is the persisted last-session state.
type Record struct {
	Provider  string        `yaml:"provider"`
	Model     string        `yaml:"model"`
	Timestamp time.Time     `yaml:"timestamp"`
	Messages  []llm.Message `yaml:"messages,omitempty"`
}

// Store reads and writes the session record at a fixed path.
type Store struct {
	path string
	keep int
}

// NewStore creates a store writing to path.
func NewStore(path string) *Store {
	return &Store{path: path, keep: DefaultKeepMessages}
}

// Save writes the record, truncating the history to the most recent
// messages.
func (s *Store) Save(rec Record) error {
	if len(rec.Messages) > s.keep {
		rec.Messages = rec.Messages[len(rec.Messages)-s.keep:]
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	data, err := yaml.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating session directory: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("writing session: %w", err)
	}
	return nil
}

// Load reads the last-session record. A missing file is not an error;
// it returns (nil, nil).
func (s *Store) Load() (*Record, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading session: %w", err)
	}

	var rec Record
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decoding session: %w", err)
	}
	return &rec, nil
}
