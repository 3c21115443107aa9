// Active-backend selection and failover
package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/tern-cli/tern/pkg/config"
	"github.com/tern-cli/tern/pkg/llm"
	"github.com/tern-cli/tern/pkg/registry"
)

// Orchestrator owns the active-backend session state. It is safe for
// concurrent use: selection, failover and registry access are
// mutex-guarded; reads of the active backend take the same lock.
//
// There is no terminal state. A failed selection leaves the controller
// unselected (or on its previous backend) and every operation remains
// retryable.
type Orchestrator struct {
	registry *registry.Registry
	cfg      *config.Config

	mu       sync.Mutex
	active   llm.Backend
	activeID llm.BackendID
}

// New creates an orchestrator over the given registry and configuration.
func New(reg *registry.Registry, cfg *config.Config) *Orchestrator {
	return &Orchestrator{registry: reg, cfg: cfg}
}

// Active returns the currently selected backend, if any.
func (o *Orchestrator) Active() (llm.Backend, llm.BackendID, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active, o.activeID, o.active != nil
}

// AutoSelect probes all backends and activates the connected one with
// the lowest configured priority. Disabled backends are skipped. When
// nothing connects the previous selection (possibly none) is kept and a
// tagged error is returned; the caller may retry later.
func (o *Orchestrator) AutoSelect(ctx context.Context) (llm.BackendID, error) {
	return o.selectFirstConnected(ctx, "")
}

// Failover re-runs auto-selection but refuses to re-pick the backend
// that just failed, even if a stale detection still reports it
// connected. The failed identity is the current active backend.
func (o *Orchestrator) Failover(ctx context.Context) (llm.BackendID, error) {
	_, failed, ok := o.Active()
	if !ok {
		return o.AutoSelect(ctx)
	}
	return o.selectFirstConnected(ctx, failed)
}

func (o *Orchestrator) selectFirstConnected(ctx context.Context, exclude llm.BackendID) (llm.BackendID, error) {
	results := o.DetectAll(ctx)
	byID := make(map[llm.BackendID]llm.DetectionResult, len(results))
	for _, r := range results {
		byID[r.Backend] = r
	}

	var reasons []string
	for _, id := range o.candidates(exclude) {
		r := byID[id]
		if !r.Connected() {
			if r.Status.Error != "" {
				reasons = append(reasons, fmt.Sprintf("%s: %s", id.DisplayName(), r.Status.Error))
			}
			continue
		}
		if err := o.activate(id); err != nil {
			reasons = append(reasons, err.Error())
			continue
		}
		return id, nil
	}

	msg := "no backend is reachable"
	if exclude != "" {
		msg = fmt.Sprintf("no backend other than %s is reachable", exclude.DisplayName())
	}
	if len(reasons) > 0 {
		msg += ": " + strings.Join(reasons, "; ")
	}
	return "", &llm.Error{
		Code:    llm.ErrCodeNoBackend,
		Message: msg,
		Hint:    "start a local service (ollama serve) or export OPENAI_API_KEY, then run: tern backends",
	}
}

// SetActive switches to a specific backend after re-probing it. When the
// backend is not connected the previous active backend is left untouched
// and a tagged error explains why.
func (o *Orchestrator) SetActive(ctx context.Context, id llm.BackendID) error {
	if !id.Valid() {
		return &llm.Error{
			Code:    llm.ErrCodeNoBackend,
			Backend: id,
			Message: fmt.Sprintf("unknown backend %q", id),
			Hint:    "valid backends are: openai, ollama, lmstudio",
		}
	}
	if !o.cfg.Enabled(id) {
		return &llm.Error{
			Code:    llm.ErrCodeNoBackend,
			Backend: id,
			Message: fmt.Sprintf("backend %s is disabled in configuration", id.DisplayName()),
			Hint:    "enable it in your settings file under backends." + string(id),
		}
	}

	result := o.DetectOne(ctx, id)
	if !result.Connected() {
		reason := result.Status.Error
		if reason == "" {
			reason = "backend is not connected"
		}
		return &llm.Error{
			Code:    llm.ErrCodeConnection,
			Backend: id,
			Message: reason,
			Hint:    "the previous backend remains active",
		}
	}

	return o.activate(id)
}

// activate makes id the active backend: the previous adapter is cleaned
// up (when different) and the new one initialized. Re-activating the
// current backend is a no-op.
func (o *Orchestrator) activate(id llm.BackendID) error {
	backend, err := o.registry.GetOrCreate(id)
	if err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.activeID == id && o.active != nil {
		return nil
	}

	if o.active != nil {
		// Best effort; a failing cleanup must not block the switch.
		_ = o.active.Close()
	}
	if err := backend.Init(); err != nil {
		o.active = nil
		o.activeID = ""
		return err
	}
	o.active = backend
	o.activeID = id
	return nil
}

// candidates returns the enabled backends in selection order: ascending
// configured priority, with the fixed backend order breaking ties.
func (o *Orchestrator) candidates(exclude llm.BackendID) []llm.BackendID {
	ordered := o.registry.Known()
	fixedIndex := make(map[llm.BackendID]int, len(ordered))
	for i, id := range ordered {
		fixedIndex[id] = i
	}

	var out []llm.BackendID
	for _, id := range ordered {
		if id == exclude || !o.cfg.Enabled(id) {
			continue
		}
		out = append(out, id)
	}
	sort.SliceStable(out, func(i, j int) bool {
		pi, pj := o.cfg.Backend(out[i]).Priority, o.cfg.Backend(out[j]).Priority
		if pi != pj {
			return pi < pj
		}
		return fixedIndex[out[i]] < fixedIndex[out[j]]
	})
	return out
}

// Summary aggregates a detection pass for the command layer.
type Summary struct {
	Total     int           `json:"total"`
	Available int           `json:"available"`
	Connected int           `json:"connected"`
	Active    llm.BackendID `json:"active,omitempty"`
}

// Summarize folds an existing detection pass into aggregate counts, so
// callers that already hold the results do not probe again.
func Summarize(results []llm.DetectionResult) Summary {
	summary := Summary{}
	for _, r := range results {
		summary.Total++
		if r.Available {
			summary.Available++
		}
		if r.Connected() {
			summary.Connected++
		}
	}
	return summary
}

// StatusSummary runs a detection pass and returns the aggregate counts
// plus the active backend name.
func (o *Orchestrator) StatusSummary(ctx context.Context) Summary {
	summary := Summarize(o.DetectAll(ctx))
	_, id, ok := o.Active()
	if ok {
		summary.Active = id
	}
	return summary
}
