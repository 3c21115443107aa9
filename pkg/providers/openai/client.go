package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/tern-cli/tern/pkg/llm"
)

const DefaultModel = "gpt-4o-mini"

const statusTimeout = 5 * time.Second

var (
	modelIDPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._:-]*$`)

	// Chat-capable model id prefixes, used to filter the listing down to
	// models this runtime can drive.
	chatModelPrefixes = []string{"gpt-", "o1", "o3", "o4", "chatgpt-"}
)

// Adapter implements llm.Backend for OpenAI.
type Adapter struct {
	apiKey  string
	baseURL string
	model   string

	// client is created by Init (or lazily on first use) so that an
	// unconfigured backend can still be constructed and probed.
	client *openai.Client
}

// New creates an OpenAI adapter. A missing API key is not a construction
// error: it surfaces through Available/Status so detection can report
// the backend as unconfigured.
func New(cfg llm.BackendConfig) (*Adapter, error) {
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	return &Adapter{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		model:   model,
	}, nil
}

func (a *Adapter) ID() llm.BackendID { return llm.BackendOpenAI }

// Available reports whether the credential is present. No round trip.
func (a *Adapter) Available() bool {
	return a.apiKey != ""
}

// Status verifies the credential with a real round trip (model listing)
// within a short timeout.
func (a *Adapter) Status(ctx context.Context) llm.BackendStatus {
	status := llm.BackendStatus{
		Available: a.Available(),
		Endpoint:  a.endpoint(),
	}
	if !status.Available {
		status.Error = "OPENAI_API_KEY is not set. Export it or add api_key to the openai backend in your settings file"
		return status
	}

	ctx, cancel := context.WithTimeout(ctx, statusTimeout)
	defer cancel()

	if _, err := a.ensureClient().ListModels(ctx); err != nil {
		status.Error = a.convertError(ctx, err, llm.ErrCodeConnection).Message
		return status
	}
	status.Connected = true
	return status
}

// ListModels fetches the account's chat-capable models.
func (a *Adapter) ListModels(ctx context.Context) ([]llm.Model, error) {
	if !a.Available() {
		return nil, a.missingKeyError()
	}

	listing, err := a.ensureClient().ListModels(ctx)
	if err != nil {
		return nil, a.convertError(ctx, err, llm.ErrCodeModelsFetch)
	}

	models := make([]llm.Model, 0, len(listing.Models))
	for _, m := range listing.Models {
		if !isChatModel(m.ID) {
			continue
		}
		models = append(models, llm.Model{
			ID:            m.ID,
			Name:          m.ID,
			OwnedBy:       m.OwnedBy,
			CreatedAt:     time.Unix(m.CreatedAt, 0),
			SupportsTools: true,
		})
	}

	if len(models) == 0 {
		return nil, &llm.Error{
			Code:    llm.ErrCodeNoModels,
			Backend: llm.BackendOpenAI,
			Message: "the account lists no chat-capable models",
			Hint:    "check the account's model access at https://platform.openai.com",
		}
	}
	return models, nil
}

// Chat performs a chat completion through the SDK, which applies its
// default request timeout.
func (a *Adapter) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	if !a.Available() {
		return nil, a.missingKeyError()
	}

	resp, err := a.ensureClient().CreateChatCompletion(ctx, a.convertRequest(req))
	if err != nil {
		return nil, a.convertError(ctx, err, llm.ErrCodeChatRequest)
	}
	return convertResponse(resp), nil
}

func (a *Adapter) SupportsTools() bool { return true }

// Init constructs the SDK client. Idempotent.
func (a *Adapter) Init() error {
	a.ensureClient()
	return nil
}

// Close drops the SDK client. Idempotent.
func (a *Adapter) Close() error {
	a.client = nil
	return nil
}

func (a *Adapter) ValidateModelID(model string) error {
	if model == "" || !modelIDPattern.MatchString(model) {
		return &llm.Error{
			Code:    llm.ErrCodeInvalidModel,
			Backend: llm.BackendOpenAI,
			Message: fmt.Sprintf("invalid model id %q", model),
			Hint:    "expected an id like gpt-4o-mini",
		}
	}
	return nil
}

func (a *Adapter) ConfigRequirements() llm.ConfigRequirements {
	return llm.ConfigRequirements{
		Required: []llm.ConfigKey{
			{Name: "OPENAI_API_KEY", Description: "API key from https://platform.openai.com/api-keys"},
		},
		Optional: []llm.ConfigKey{
			{Name: "OPENAI_BASE_URL", Description: "Alternative OpenAI-compatible endpoint"},
			{Name: "OPENAI_MODEL", Description: "Default model (default " + DefaultModel + ")"},
		},
		Setup: "Create an API key at https://platform.openai.com/api-keys and export OPENAI_API_KEY",
	}
}

func (a *Adapter) ensureClient() *openai.Client {
	if a.client == nil {
		clientConfig := openai.DefaultConfig(a.apiKey)
		if a.baseURL != "" {
			clientConfig.BaseURL = a.baseURL
		}
		a.client = openai.NewClientWithConfig(clientConfig)
	}
	return a.client
}

func (a *Adapter) endpoint() string {
	if a.baseURL != "" {
		return a.baseURL
	}
	return "https://api.openai.com/v1"
}

func (a *Adapter) missingKeyError() *llm.Error {
	return &llm.Error{
		Code:    llm.ErrCodeAPIKeyMissing,
		Backend: llm.BackendOpenAI,
		Message: "no API key configured",
		Hint:    "export OPENAI_API_KEY or add api_key to the openai backend in your settings file",
	}
}

// convertRequest translates the unified request into the SDK's shape.
// The incoming request is read-only; everything is copied.
func (a *Adapter) convertRequest(req llm.ChatRequest) openai.ChatCompletionRequest {
	model := req.Model
	if model == "" {
		model = a.model
	}

	out := openai.ChatCompletionRequest{
		Model:    model,
		Messages: make([]openai.ChatCompletionMessage, 0, len(req.Messages)),
	}
	if req.Temperature != nil {
		out.Temperature = *req.Temperature
	}
	if req.MaxTokens != nil {
		out.MaxTokens = *req.MaxTokens
	}

	for _, msg := range req.Messages {
		wireMsg := openai.ChatCompletionMessage{
			Role:       string(msg.Role),
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
		}
		for _, tc := range msg.ToolCalls {
			wireMsg.ToolCalls = append(wireMsg.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolType(tc.Type),
				Function: openai.FunctionCall{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				},
			})
		}
		out.Messages = append(out.Messages, wireMsg)
	}

	for _, tool := range req.Tools {
		out.Tools = append(out.Tools, openai.Tool{
			Type: openai.ToolType(tool.Type),
			Function: &openai.FunctionDefinition{
				Name:        tool.Function.Name,
				Description: tool.Function.Description,
				Parameters:  tool.Function.Parameters,
			},
		})
	}
	if req.ToolChoice != "" {
		out.ToolChoice = req.ToolChoice
	}

	return out
}

func convertResponse(resp openai.ChatCompletionResponse) *llm.ChatResponse {
	out := &llm.ChatResponse{
		ID:    resp.ID,
		Model: resp.Model,
		Usage: llm.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}

	for _, choice := range resp.Choices {
		msg := llm.Message{
			Role:       llm.MessageRole(choice.Message.Role),
			Content:    choice.Message.Content,
			ToolCallID: choice.Message.ToolCallID,
		}
		for _, tc := range choice.Message.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, llm.ToolCall{
				ID:   tc.ID,
				Type: string(tc.Type),
				Function: llm.ToolCallFunction{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				},
			})
		}
		out.Choices = append(out.Choices, llm.Choice{
			Index:        choice.Index,
			Message:      msg,
			FinishReason: string(choice.FinishReason),
		})
	}
	return out
}

// convertError maps SDK and transport failures into the tagged form.
// fallbackCode tags failures that have no more specific mapping.
func (a *Adapter) convertError(ctx context.Context, err error, fallbackCode string) *llm.Error {
	if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
		return llm.NewCancelled(llm.BackendOpenAI)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		tagged := &llm.Error{
			Code:       fallbackCode,
			Backend:    llm.BackendOpenAI,
			Message:    apiErr.Message,
			StatusCode: apiErr.HTTPStatusCode,
		}
		switch apiErr.HTTPStatusCode {
		case http.StatusUnauthorized:
			tagged.Code = llm.ErrCodeAPIKeyMissing
			tagged.Hint = "the configured OPENAI_API_KEY was rejected; generate a new key at https://platform.openai.com/api-keys"
		case http.StatusNotFound:
			tagged.Hint = "check the model id with: tern models"
		case http.StatusTooManyRequests:
			tagged.Hint = "rate limited; wait a moment, or fail over to a local backend with: tern use ollama"
		}
		return tagged
	}

	if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "connection refused") {
		return &llm.Error{
			Code:    llm.ErrCodeConnection,
			Backend: llm.BackendOpenAI,
			Message: fmt.Sprintf("cannot reach %s: %v", a.endpoint(), err),
			Hint:    "check network connectivity, or fail over to a local backend",
		}
	}

	return &llm.Error{
		Code:    fallbackCode,
		Backend: llm.BackendOpenAI,
		Message: err.Error(),
	}
}

func isChatModel(id string) bool {
	for _, prefix := range chatModelPrefixes {
		if strings.HasPrefix(id, prefix) {
			return true
		}
	}
	return false
}

var _ llm.Backend = (*Adapter)(nil)
