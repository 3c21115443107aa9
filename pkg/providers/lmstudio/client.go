package lmstudio

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tern-cli/tern/pkg/llm"
)

const DefaultBaseURL = "http://localhost:1234"

const (
	modelsPath = "/api/v0/models"
	chatPath   = "/api/v0/chat/completions"
)

const (
	DefaultChatTimeout  = 60 * time.Second
	defaultProbeTimeout = 2 * time.Second
	defaultQuickTimeout = 5 * time.Second
)

var modelIDPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._@/-]*$`)

// Adapter implements llm.Backend for LM Studio.
type Adapter struct {
	baseURL    string
	model      string
	httpClient *http.Client
	quick      *http.Client
}

// New creates an LM Studio adapter. Like the other local adapter,
// construction never fails; reachability is decided at probe time.
func New(cfg llm.BackendConfig) (*Adapter, error) {
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultChatTimeout
	}

	return &Adapter{
		baseURL:    baseURL,
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: timeout},
		quick:      &http.Client{Timeout: defaultQuickTimeout},
	}, nil
}

func (a *Adapter) ID() llm.BackendID { return llm.BackendLMStudio }

// Available does a short bounded GET against the models endpoint.
func (a *Adapter) Available() bool {
	ctx, cancel := context.WithTimeout(context.Background(), defaultProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+modelsPath, nil)
	if err != nil {
		return false
	}
	resp, err := a.quick.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == http.StatusOK
}

// modelsResponse is LM Studio's /api/v0/models payload.
type modelsResponse struct {
	Data []wireModel `json:"data"`
}

type wireModel struct {
	ID                string `json:"id"`
	Object            string `json:"object"`
	Type              string `json:"type"`
	Publisher         string `json:"publisher"`
	Arch              string `json:"arch"`
	CompatibilityType string `json:"compatibility_type"`
	Quantization      string `json:"quantization"`
	State             string `json:"state"`
	MaxContextLength  int    `json:"max_context_length"`
}

// Status performs a live round trip against the models endpoint. The
// server version, when advertised, comes back in a response header.
func (a *Adapter) Status(ctx context.Context) llm.BackendStatus {
	status := llm.BackendStatus{Endpoint: a.baseURL}

	ctx, cancel := context.WithTimeout(ctx, defaultQuickTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+modelsPath, nil)
	if err != nil {
		status.Error = fmt.Sprintf("failed to build status request: %v", err)
		return status
	}
	resp, err := a.quick.Do(req)
	if err != nil {
		status.Error = fmt.Sprintf("LM Studio is not responding at %s: %v. Start the local server from the LM Studio app or with: lms server start", a.baseURL, err)
		return status
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		status.Available = true
		status.Error = fmt.Sprintf("LM Studio answered HTTP %d", resp.StatusCode)
		return status
	}

	status.Available = true
	status.Connected = true
	status.Version = resp.Header.Get("X-LMStudio-Version")

	var models modelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&models); err == nil {
		for _, m := range models.Data {
			if m.State == "loaded" {
				status.LoadedModels++
			}
		}
	}
	return status
}

// ListModels fetches downloaded models. Embedding models are not usable
// for chat and are filtered out.
func (a *Adapter) ListModels(ctx context.Context) ([]llm.Model, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultQuickTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+modelsPath, nil)
	if err != nil {
		return nil, &llm.Error{
			Code:    llm.ErrCodeModelsFetch,
			Backend: llm.BackendLMStudio,
			Message: fmt.Sprintf("failed to build models request: %v", err),
		}
	}
	resp, err := a.quick.Do(req)
	if err != nil {
		return nil, &llm.Error{
			Code:    llm.ErrCodeModelsFetch,
			Backend: llm.BackendLMStudio,
			Message: fmt.Sprintf("failed to list models at %s: %v", a.baseURL, err),
			Hint:    "start the local server from the LM Studio app or with: lms server start",
		}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &llm.Error{
			Code:       llm.ErrCodeModelsFetch,
			Backend:    llm.BackendLMStudio,
			Message:    fmt.Sprintf("model listing failed with HTTP %d", resp.StatusCode),
			StatusCode: resp.StatusCode,
		}
	}

	var wire modelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, &llm.Error{
			Code:    llm.ErrCodeModelsFetch,
			Backend: llm.BackendLMStudio,
			Message: fmt.Sprintf("failed to parse model listing: %v", err),
		}
	}

	models := make([]llm.Model, 0, len(wire.Data))
	for _, m := range wire.Data {
		if m.Type == "embeddings" {
			continue
		}
		models = append(models, llm.Model{
			ID:            m.ID,
			Name:          m.ID,
			Description:   strings.TrimSpace(m.Publisher + " " + m.Arch),
			ContextLength: m.MaxContextLength,
			Format:        m.CompatibilityType,
			Family:        m.Arch,
			Quantization:  m.Quantization,
			OwnedBy:       m.Publisher,
			State:         m.State,
			SupportsTools: false,
		})
	}

	if len(models) == 0 {
		return nil, &llm.Error{
			Code:    llm.ErrCodeNoModels,
			Backend: llm.BackendLMStudio,
			Message: "no chat models are downloaded",
			Hint:    "download a model in the LM Studio app, then load it",
		}
	}
	return models, nil
}

// LM Studio chat wire structures (OpenAI-compatible payload plus a
// stats block in the v0 API).
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float32      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int         `json:"index"`
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Stats struct {
		TokensPerSecond  float64 `json:"tokens_per_second"`
		TimeToFirstToken float64 `json:"time_to_first_token"`
		GenerationTime   float64 `json:"generation_time"`
	} `json:"stats"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Chat performs a whole-response completion.
func (a *Adapter) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	if req.HasTools() {
		return nil, &llm.Error{
			Code:    llm.ErrCodeToolsUnsupported,
			Backend: llm.BackendLMStudio,
			Message: "tool calls are not supported by this backend",
			Hint:    "switch to the OpenAI backend for tool calling: tern use openai",
		}
	}

	model := req.Model
	if model == "" {
		model = a.model
	}

	messages := make([]chatMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		role := string(m.Role)
		if m.Role == llm.RoleTool {
			role = string(llm.RoleAssistant)
		}
		messages = append(messages, chatMessage{Role: role, Content: m.Content})
	}

	body, err := json.Marshal(chatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      false,
	})
	if err != nil {
		return nil, &llm.Error{
			Code:    llm.ErrCodeChatRequest,
			Backend: llm.BackendLMStudio,
			Message: fmt.Sprintf("failed to serialize request: %v", err),
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+chatPath, bytes.NewReader(body))
	if err != nil {
		return nil, &llm.Error{
			Code:    llm.ErrCodeChatRequest,
			Backend: llm.BackendLMStudio,
			Message: fmt.Sprintf("failed to create request: %v", err),
		}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, a.transportError(ctx, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, a.transportError(ctx, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, a.convertAPIError(respBody, resp.StatusCode, model)
	}

	var wire chatResponse
	if err := json.Unmarshal(respBody, &wire); err != nil {
		return nil, &llm.Error{
			Code:    llm.ErrCodeChatRequest,
			Backend: llm.BackendLMStudio,
			Message: fmt.Sprintf("failed to parse response: %v", err),
		}
	}

	return convertResponse(wire), nil
}

func (a *Adapter) SupportsTools() bool { return false }

func (a *Adapter) Init() error { return nil }

func (a *Adapter) Close() error { return nil }

func (a *Adapter) ValidateModelID(model string) error {
	if model == "" || !modelIDPattern.MatchString(model) {
		return &llm.Error{
			Code:    llm.ErrCodeInvalidModel,
			Backend: llm.BackendLMStudio,
			Message: fmt.Sprintf("invalid model id %q", model),
			Hint:    "use the id shown by: tern models",
		}
	}
	return nil
}

func (a *Adapter) ConfigRequirements() llm.ConfigRequirements {
	return llm.ConfigRequirements{
		Optional: []llm.ConfigKey{
			{Name: "LMSTUDIO_BASE_URL", Description: "Base URL of the LM Studio server (default " + DefaultBaseURL + ")"},
			{Name: "LMSTUDIO_MODEL", Description: "Default model to chat with"},
		},
		Setup: "Install LM Studio from https://lmstudio.ai, download a model, then start the local server (lms server start)",
	}
}

func (a *Adapter) transportError(ctx context.Context, err error) *llm.Error {
	if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
		return llm.NewCancelled(llm.BackendLMStudio)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &llm.Error{
			Code:    llm.ErrCodeConnection,
			Backend: llm.BackendLMStudio,
			Message: "request timed out",
			Hint:    "the model may still be loading; check the LM Studio server tab",
		}
	}
	return &llm.Error{
		Code:    llm.ErrCodeConnection,
		Backend: llm.BackendLMStudio,
		Message: fmt.Sprintf("cannot reach LM Studio at %s: %v", a.baseURL, err),
		Hint:    "start the local server from the LM Studio app or with: lms server start",
	}
}

func (a *Adapter) convertAPIError(body []byte, statusCode int, model string) *llm.Error {
	msg := strings.TrimSpace(string(body))
	var wire chatResponse
	if json.Unmarshal(body, &wire) == nil && wire.Error.Message != "" {
		msg = wire.Error.Message
	}

	tagged := &llm.Error{
		Code:       llm.ErrCodeChatRequest,
		Backend:    llm.BackendLMStudio,
		Message:    msg,
		StatusCode: statusCode,
	}

	lower := strings.ToLower(msg)
	switch {
	case statusCode == http.StatusNotFound || strings.Contains(lower, "not found") || strings.Contains(lower, "no model"):
		tagged.Hint = fmt.Sprintf("load the model in LM Studio first (looked for %q)", model)
	case strings.Contains(lower, "memory") || strings.Contains(lower, "oom"):
		tagged.Hint = "the model ran out of memory; unload other models or pick a smaller quantization"
	}
	return tagged
}

func convertResponse(wire chatResponse) *llm.ChatResponse {
	id := wire.ID
	if id == "" {
		id = "lmstudio-" + uuid.NewString()
	}

	out := &llm.ChatResponse{
		ID:    id,
		Model: wire.Model,
		Usage: llm.Usage{
			PromptTokens:     wire.Usage.PromptTokens,
			CompletionTokens: wire.Usage.CompletionTokens,
			TotalTokens:      wire.Usage.TotalTokens,
		},
	}

	for _, c := range wire.Choices {
		finish := c.FinishReason
		if finish == "" {
			finish = llm.FinishReasonStop
		}
		out.Choices = append(out.Choices, llm.Choice{
			Index: c.Index,
			Message: llm.Message{
				Role:    llm.RoleAssistant,
				Content: c.Message.Content,
			},
			FinishReason: finish,
		})
	}

	if wire.Stats.GenerationTime > 0 {
		out.Metrics = &llm.Metrics{
			TotalDuration: time.Duration(wire.Stats.GenerationTime * float64(time.Second)),
			LoadDuration:  time.Duration(wire.Stats.TimeToFirstToken * float64(time.Second)),
		}
	}
	return out
}

var _ llm.Backend = (*Adapter)(nil)
