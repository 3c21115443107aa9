// Backend reachability detection
package orchestrator

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/tern-cli/tern/pkg/llm"
)

// DetectAll probes every known backend and returns one result per
// identity, in the fixed backend order. It never fails: probe errors,
// including panicking adapters, are folded into the per-backend result,
// so one misbehaving backend cannot hide the others.
func (o *Orchestrator) DetectAll(ctx context.Context) []llm.DetectionResult {
	known := o.registry.Known()
	results := make([]llm.DetectionResult, len(known))

	g, ctx := errgroup.WithContext(ctx)
	for i, id := range known {
		i, id := i, id
		g.Go(func() error {
			results[i] = o.DetectOne(ctx, id)
			return nil
		})
	}
	// Workers only write their own slot and never return errors.
	_ = g.Wait()

	return results
}

// DetectOne probes a single backend: availability first, then a status
// round trip, then the model listing, stopping at the first step that
// does not succeed. Failures are reported in the result, never raised.
func (o *Orchestrator) DetectOne(ctx context.Context, id llm.BackendID) (result llm.DetectionResult) {
	result = llm.DetectionResult{Backend: id}

	// A broken adapter must not take down the whole scan.
	defer func() {
		if r := recover(); r != nil {
			result.Status = llm.BackendStatus{
				Error: fmt.Sprintf("backend probe failed unexpectedly: %v", r),
			}
			result.Available = false
		}
	}()

	backend, err := o.registry.GetOrCreate(id)
	if err != nil {
		result.Status.Error = err.Error()
		return result
	}

	result.Available = backend.Available()
	if !result.Available {
		result.Status = llm.BackendStatus{
			Error: backend.ConfigRequirements().Setup,
		}
		return result
	}

	result.Status = backend.Status(ctx)
	if !result.Status.Connected {
		return result
	}

	models, err := backend.ListModels(ctx)
	if err != nil {
		// Connected but modelless; keep the status, surface the reason.
		if result.Status.Error == "" {
			result.Status.Error = err.Error()
		}
		return result
	}
	result.Models = models
	return result
}
