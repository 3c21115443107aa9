// Chat execution through the active backend
package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/tern-cli/tern/pkg/llm"
)

// Chat sends a unified chat request through the active backend.
//
// Tool-call requests against a backend that cannot carry them are
// rejected up front, tagged to that backend, without a network round
// trip. Cancellation of ctx surfaces as the distinguishable CANCELLED
// outcome from the adapter; it is never treated as a backend failure and
// never triggers failover. Failover itself stays manual: a failed chat
// returns its tagged error and the caller decides whether to call
// Failover.
func (o *Orchestrator) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	backend, id, ok := o.Active()
	if !ok {
		return nil, &llm.Error{
			Code:    llm.ErrCodeNoBackend,
			Message: "no backend is selected",
			Hint:    "run auto-selection first: tern backends",
		}
	}

	if req.HasTools() && !backend.SupportsTools() {
		return nil, &llm.Error{
			Code:    llm.ErrCodeToolsUnsupported,
			Backend: id,
			Message: fmt.Sprintf("%s cannot execute tool calls", id.DisplayName()),
			Hint:    "switch to the OpenAI backend: tern use openai",
		}
	}

	if errors.Is(ctx.Err(), context.Canceled) {
		// Cancelled before the transport call started.
		return nil, llm.NewCancelled(id)
	}

	return backend.Chat(ctx, req)
}
