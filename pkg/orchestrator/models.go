// Cross-backend model queries
package orchestrator

import (
	"context"
	"strings"

	"github.com/tern-cli/tern/pkg/llm"
)

// ModelEntry pairs a model descriptor with the backend serving it.
type ModelEntry struct {
	Backend llm.BackendID `json:"backend"`
	Model   llm.Model     `json:"model"`
}

// ListAllModels returns the models of every connected backend, in the
// fixed backend order.
func (o *Orchestrator) ListAllModels(ctx context.Context) []ModelEntry {
	var out []ModelEntry
	for _, r := range o.DetectAll(ctx) {
		for _, m := range r.Models {
			out = append(out, ModelEntry{Backend: r.Backend, Model: m})
		}
	}
	return out
}

// FindModels filters ListAllModels by a case-insensitive substring match
// over model id, name, description and backend name. The empty query
// returns everything.
func (o *Orchestrator) FindModels(ctx context.Context, query string) []ModelEntry {
	all := o.ListAllModels(ctx)
	if query == "" {
		return all
	}

	q := strings.ToLower(query)
	var out []ModelEntry
	for _, entry := range all {
		if entry.Model.Matches(query) ||
			strings.Contains(strings.ToLower(string(entry.Backend)), q) ||
			strings.Contains(strings.ToLower(entry.Backend.DisplayName()), q) {
			out = append(out, entry)
		}
	}
	return out
}
