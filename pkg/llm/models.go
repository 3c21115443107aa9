// Model descriptors and query matching
package llm

import (
	"strings"
	"time"
)

// Model describes one model a backend can serve. Descriptors are
// produced fresh per detection call and never mutated afterwards.
type Model struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	ContextLength int    `json:"context_length,omitempty"`
	SupportsTools bool   `json:"supports_tools"`

	// Backend-specific optional fields.
	Size         int64     `json:"size,omitempty"`
	Format       string    `json:"format,omitempty"`
	Family       string    `json:"family,omitempty"`
	Quantization string    `json:"quantization,omitempty"`
	OwnedBy      string    `json:"owned_by,omitempty"`
	State        string    `json:"state,omitempty"`
	CreatedAt    time.Time `json:"created_at,omitzero"`
}

// Matches reports whether the model's id, name or description contains
// the query, case-insensitively. The empty query matches everything.
func (m Model) Matches(query string) bool {
	if query == "" {
		return true
	}
	q := strings.ToLower(query)
	return strings.Contains(strings.ToLower(m.ID), q) ||
		strings.Contains(strings.ToLower(m.Name), q) ||
		strings.Contains(strings.ToLower(m.Description), q)
}
