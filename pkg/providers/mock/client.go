package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tern-cli/tern/pkg/llm"
)

// Backend implements llm.Backend with scripted behavior for tests.
type Backend struct {
	mu sync.Mutex

	id        llm.BackendID
	available bool
	status    llm.BackendStatus
	models    []llm.Model
	modelsErr error
	tools     bool

	responses     []llm.ChatResponse
	responseIndex int
	errs          []error
	errIndex      int

	chatCalls  []llm.ChatRequest
	initCalls  int
	closeCalls int

	latency     time.Duration
	panicProbe  bool
	panicStatus bool
}

// New creates a mock backend that reports as available and connected.
func New(id llm.BackendID) *Backend {
	return &Backend{
		id:        id,
		available: true,
		status:    llm.BackendStatus{Available: true, Connected: true},
		tools:     true,
	}
}

func (b *Backend) ID() llm.BackendID { return b.id }

func (b *Backend) Available() bool {
	if b.panicProbe {
		panic("mock probe failure")
	}
	return b.available
}

func (b *Backend) Status(ctx context.Context) llm.BackendStatus {
	if b.panicStatus {
		panic("mock status failure")
	}
	return b.status
}

func (b *Backend) ListModels(ctx context.Context) ([]llm.Model, error) {
	if b.modelsErr != nil {
		return nil, b.modelsErr
	}
	if len(b.models) == 0 {
		return nil, &llm.Error{
			Code:    llm.ErrCodeNoModels,
			Backend: b.id,
			Message: "no models scripted",
		}
	}
	return b.models, nil
}

func (b *Backend) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	b.mu.Lock()
	b.chatCalls = append(b.chatCalls, req)
	b.mu.Unlock()

	if b.latency > 0 {
		select {
		case <-time.After(b.latency):
		case <-ctx.Done():
			return nil, llm.NewCancelled(b.id)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, llm.NewCancelled(b.id)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.errIndex < len(b.errs) {
		err := b.errs[b.errIndex]
		b.errIndex++
		return nil, err
	}
	if b.responseIndex < len(b.responses) {
		resp := b.responses[b.responseIndex]
		b.responseIndex++
		return &resp, nil
	}

	return &llm.ChatResponse{
		ID:    fmt.Sprintf("mock-%s-%d", b.id, len(b.chatCalls)),
		Model: req.Model,
		Choices: []llm.Choice{{
			Index:        0,
			Message:      llm.NewAssistantMessage("mock response"),
			FinishReason: llm.FinishReasonStop,
		}},
	}, nil
}

func (b *Backend) SupportsTools() bool { return b.tools }

func (b *Backend) Init() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.initCalls++
	return nil
}

func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closeCalls++
	return nil
}

func (b *Backend) ValidateModelID(model string) error {
	if model == "" {
		return &llm.Error{Code: llm.ErrCodeInvalidModel, Backend: b.id, Message: "empty model id"}
	}
	return nil
}

func (b *Backend) ConfigRequirements() llm.ConfigRequirements {
	return llm.ConfigRequirements{Setup: "mock backend needs no setup"}
}

// Scripting helpers. All return the backend for chaining.

func (b *Backend) WithAvailable(v bool) *Backend { b.available = v; return b }

func (b *Backend) WithStatus(s llm.BackendStatus) *Backend { b.status = s; return b }

func (b *Backend) WithModels(models ...llm.Model) *Backend { b.models = models; return b }

func (b *Backend) WithModelsError(err error) *Backend { b.modelsErr = err; return b }

func (b *Backend) WithTools(v bool) *Backend { b.tools = v; return b }

func (b *Backend) WithResponse(resp llm.ChatResponse) *Backend {
	b.responses = append(b.responses, resp)
	return b
}

func (b *Backend) WithError(err error) *Backend { b.errs = append(b.errs, err); return b }

func (b *Backend) WithLatency(d time.Duration) *Backend { b.latency = d; return b }

// WithPanickingProbe makes Available panic, for detector robustness tests.
func (b *Backend) WithPanickingProbe() *Backend { b.panicProbe = true; return b }

// WithPanickingStatus makes Status panic.
func (b *Backend) WithPanickingStatus() *Backend { b.panicStatus = true; return b }

// Assertion helpers.

func (b *Backend) ChatCalls() []llm.ChatRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]llm.ChatRequest, len(b.chatCalls))
	copy(out, b.chatCalls)
	return out
}

func (b *Backend) InitCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.initCalls
}

func (b *Backend) CloseCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closeCalls
}

var _ llm.Backend = (*Backend)(nil)
