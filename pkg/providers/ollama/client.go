package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tern-cli/tern/pkg/llm"
)

const DefaultBaseURL = "http://localhost:11434"

// Local inference can be slow, so the chat timeout is deliberately long.
const (
	DefaultChatTimeout  = 60 * time.Second
	defaultProbeTimeout = 2 * time.Second
	defaultQuickTimeout = 5 * time.Second
	// Model downloads can take minutes.
	defaultPullTimeout = 30 * time.Minute
)

var modelIDPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._/-]*(:[a-zA-Z0-9._-]+)?$`)

// Adapter implements llm.Backend for Ollama.
type Adapter struct {
	baseURL    string
	model      string
	httpClient *http.Client
	quick      *http.Client
	// pull has no client-level timeout; the pull context bounds it.
	pull *http.Client
}

// New creates an Ollama adapter. Construction never fails: reachability
// is only decided at probe time so detection can report on an
// unconfigured backend.
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
		pull:       &http.Client{},
	}, nil
}

func (a *Adapter) ID() llm.BackendID { return llm.BackendOllama }

// Available reports whether Ollama is installed or its endpoint answers
// a short bounded GET. No expensive round trip is made.
func (a *Adapter) Available() bool {
	ctx, cancel := context.WithTimeout(context.Background(), defaultProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/api/version", nil)
	if err != nil {
		return false
	}
	resp, err := a.quick.Do(req)
	if err == nil {
		defer func() { _ = resp.Body.Close() }()
		return resp.StatusCode == http.StatusOK
	}

	// Endpoint down; the binary on PATH still counts as installed.
	_, err = exec.LookPath("ollama")
	return err == nil
}

// Status performs a live round trip against /api/version and folds any
// failure into the returned status.
func (a *Adapter) Status(ctx context.Context) llm.BackendStatus {
	status := llm.BackendStatus{
		Available: a.Available(),
		Endpoint:  a.baseURL,
	}

	ctx, cancel := context.WithTimeout(ctx, defaultQuickTimeout)
	defer cancel()

	var version struct {
		Version string `json:"version"`
	}
	if err := a.getJSON(ctx, "/api/version", &version); err != nil {
		status.Error = fmt.Sprintf("Ollama is not responding at %s: %v. Start it with: ollama serve", a.baseURL, err)
		return status
	}
	status.Connected = true
	status.Version = version.Version

	// Loaded-model count is best effort.
	var ps struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := a.getJSON(ctx, "/api/ps", &ps); err == nil {
		status.LoadedModels = len(ps.Models)
	}

	return status
}

// tagsResponse is Ollama's /api/tags payload.
type tagsResponse struct {
	Models []struct {
		Name       string    `json:"name"`
		Size       int64     `json:"size"`
		ModifiedAt time.Time `json:"modified_at"`
		Details    struct {
			Format            string `json:"format"`
			Family            string `json:"family"`
			ParameterSize     string `json:"parameter_size"`
			QuantizationLevel string `json:"quantization_level"`
		} `json:"details"`
	} `json:"models"`
}

// ListModels fetches the locally pulled models.
func (a *Adapter) ListModels(ctx context.Context) ([]llm.Model, error) {
	var tags tagsResponse
	if err := a.getJSON(ctx, "/api/tags", &tags); err != nil {
		return nil, a.connectionError(llm.ErrCodeModelsFetch,
			fmt.Sprintf("failed to list models: %v", err))
	}

	if len(tags.Models) == 0 {
		return nil, &llm.Error{
			Code:    llm.ErrCodeNoModels,
			Backend: llm.BackendOllama,
			Message: "no models are pulled",
			Hint:    "download one with: ollama pull llama3.2",
		}
	}

	models := make([]llm.Model, 0, len(tags.Models))
	for _, m := range tags.Models {
		desc := m.Details.ParameterSize
		if m.Details.Family != "" {
			desc = strings.TrimSpace(m.Details.Family + " " + desc)
		}
		models = append(models, llm.Model{
			ID:           m.Name,
			Name:         m.Name,
			Description:  desc,
			Size:         m.Size,
			Format:       m.Details.Format,
			Family:       m.Details.Family,
			Quantization: m.Details.QuantizationLevel,
			CreatedAt:    m.ModifiedAt,
			// Tool calls are not part of the wire format this adapter
			// speaks.
			SupportsTools: false,
		})
	}
	return models, nil
}

// Ollama API structures.
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  *chatOptions  `json:"options,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatOptions struct {
	Temperature *float32 `json:"temperature,omitempty"`
	NumPredict  *int     `json:"num_predict,omitempty"`
}

type chatResponse struct {
	Model   string      `json:"model"`
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
	Error   string      `json:"error,omitempty"`

	TotalDuration   int64 `json:"total_duration,omitempty"`
	LoadDuration    int64 `json:"load_duration,omitempty"`
	EvalDuration    int64 `json:"eval_duration,omitempty"`
	PromptEvalCount int   `json:"prompt_eval_count,omitempty"`
	EvalCount       int   `json:"eval_count,omitempty"`
}

type apiError struct {
	Error string `json:"error"`
}

// Chat performs a whole-response completion against /api/chat.
func (a *Adapter) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	if req.HasTools() {
		return nil, &llm.Error{
			Code:    llm.ErrCodeToolsUnsupported,
			Backend: llm.BackendOllama,
			Message: "tool calls are not supported by this backend",
			Hint:    "switch to the OpenAI backend for tool calling: tern use openai",
		}
	}

	model := req.Model
	if model == "" {
		model = a.model
	}

	wireReq := chatRequest{
		Model:    model,
		Messages: convertMessages(req.Messages),
		Stream:   false,
	}
	if req.Temperature != nil || req.MaxTokens != nil {
		wireReq.Options = &chatOptions{
			Temperature: req.Temperature,
			NumPredict:  req.MaxTokens,
		}
	}

	body, err := json.Marshal(wireReq)
	if err != nil {
		return nil, &llm.Error{
			Code:    llm.ErrCodeChatRequest,
			Backend: llm.BackendOllama,
			Message: fmt.Sprintf("failed to serialize request: %v", err),
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, &llm.Error{
			Code:    llm.ErrCodeChatRequest,
			Backend: llm.BackendOllama,
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

	var wireResp chatResponse
	if err := json.Unmarshal(respBody, &wireResp); err != nil {
		return nil, &llm.Error{
			Code:    llm.ErrCodeChatRequest,
			Backend: llm.BackendOllama,
			Message: fmt.Sprintf("failed to parse response: %v", err),
		}
	}

	return convertResponse(wireResp), nil
}

// PullModel downloads a model through /api/pull. Pulls are whole-file
// (stream disabled) and bounded by a generous timeout.
func (a *Adapter) PullModel(ctx context.Context, model string) error {
	if err := a.ValidateModelID(model); err != nil {
		return err
	}

	body, _ := json.Marshal(map[string]any{"name": model, "stream": false})

	ctx, cancel := context.WithTimeout(ctx, defaultPullTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/api/pull", bytes.NewReader(body))
	if err != nil {
		return &llm.Error{
			Code:    llm.ErrCodeModelPull,
			Backend: llm.BackendOllama,
			Message: fmt.Sprintf("failed to create pull request: %v", err),
		}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.pull.Do(httpReq)
	if err != nil {
		if llm.IsCancelled(err) || errors.Is(ctx.Err(), context.Canceled) {
			return llm.NewCancelled(llm.BackendOllama)
		}
		return &llm.Error{
			Code:    llm.ErrCodeModelPull,
			Backend: llm.BackendOllama,
			Message: fmt.Sprintf("failed to pull %s: %v", model, err),
			Hint:    "check that Ollama is running: ollama serve",
		}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		msg := strings.TrimSpace(string(respBody))
		var ae apiError
		if json.Unmarshal(respBody, &ae) == nil && ae.Error != "" {
			msg = ae.Error
		}
		return &llm.Error{
			Code:       llm.ErrCodeModelPull,
			Backend:    llm.BackendOllama,
			Message:    fmt.Sprintf("failed to pull %s: %s", model, msg),
			StatusCode: resp.StatusCode,
			Hint:       "verify the model name at https://ollama.com/library",
		}
	}
	return nil
}

func (a *Adapter) SupportsTools() bool { return false }

// Init is a no-op: the HTTP client is constructed up front and holds no
// session state.
func (a *Adapter) Init() error { return nil }

func (a *Adapter) Close() error { return nil }

func (a *Adapter) ValidateModelID(model string) error {
	if model == "" || !modelIDPattern.MatchString(model) {
		return &llm.Error{
			Code:    llm.ErrCodeInvalidModel,
			Backend: llm.BackendOllama,
			Message: fmt.Sprintf("invalid model id %q", model),
			Hint:    "expected a name like llama3.2 or llama3.2:8b",
		}
	}
	return nil
}

func (a *Adapter) ConfigRequirements() llm.ConfigRequirements {
	return llm.ConfigRequirements{
		Optional: []llm.ConfigKey{
			{Name: "OLLAMA_HOST", Description: "Base URL of the Ollama server (default " + DefaultBaseURL + ")"},
			{Name: "OLLAMA_MODEL", Description: "Default model to chat with"},
		},
		Setup: "Install Ollama from https://ollama.com, then run: ollama serve && ollama pull llama3.2",
	}
}

// getJSON issues a GET against path and decodes the JSON body.
func (a *Adapter) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := a.quick.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// transportError maps a transport-level failure, distinguishing
// cancellation from connectivity problems.
func (a *Adapter) transportError(ctx context.Context, err error) *llm.Error {
	if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
		return llm.NewCancelled(llm.BackendOllama)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &llm.Error{
			Code:    llm.ErrCodeConnection,
			Backend: llm.BackendOllama,
			Message: "request timed out",
			Hint:    "the model may still be loading; try again, or pick a smaller model",
		}
	}
	if strings.Contains(err.Error(), "connection refused") {
		return a.connectionError(llm.ErrCodeConnection, "cannot reach the Ollama server")
	}
	return &llm.Error{
		Code:    llm.ErrCodeConnection,
		Backend: llm.BackendOllama,
		Message: fmt.Sprintf("request failed: %v", err),
		Hint:    "check that Ollama is running: ollama serve",
	}
}

func (a *Adapter) connectionError(code, msg string) *llm.Error {
	return &llm.Error{
		Code:    code,
		Backend: llm.BackendOllama,
		Message: fmt.Sprintf("%s at %s", msg, a.baseURL),
		Hint:    "start the server with: ollama serve",
	}
}

// convertAPIError maps an Ollama error payload into the tagged form,
// with diagnostic guidance derived from the error text.
func (a *Adapter) convertAPIError(body []byte, statusCode int, model string) *llm.Error {
	msg := strings.TrimSpace(string(body))
	var ae apiError
	if json.Unmarshal(body, &ae) == nil && ae.Error != "" {
		msg = ae.Error
	}

	tagged := &llm.Error{
		Code:       llm.ErrCodeChatRequest,
		Backend:    llm.BackendOllama,
		Message:    msg,
		StatusCode: statusCode,
	}

	lower := strings.ToLower(msg)
	switch {
	case statusCode == http.StatusNotFound || strings.Contains(lower, "not found"):
		tagged.Hint = fmt.Sprintf("pull the model first: ollama pull %s", model)
	case strings.Contains(lower, "memory") || strings.Contains(lower, "oom"):
		tagged.Hint = "the model ran out of memory; close other applications or try a smaller quantization"
	default:
		tagged.Hint = "inspect the server log: ollama serve"
	}
	return tagged
}

func convertMessages(messages []llm.Message) []chatMessage {
	out := make([]chatMessage, 0, len(messages))
	for _, m := range messages {
		role := string(m.Role)
		// The wire format has no tool role.
		if m.Role == llm.RoleTool {
			role = string(llm.RoleAssistant)
		}
		out = append(out, chatMessage{Role: role, Content: m.Content})
	}
	return out
}

func convertResponse(resp chatResponse) *llm.ChatResponse {
	choice := llm.Choice{
		Index: 0,
		Message: llm.Message{
			Role:    llm.RoleAssistant,
			Content: resp.Message.Content,
		},
		FinishReason: llm.FinishReasonLength,
	}
	if resp.Done {
		choice.FinishReason = llm.FinishReasonStop
	}

	out := &llm.ChatResponse{
		ID:      "ollama-" + uuid.NewString(),
		Model:   resp.Model,
		Choices: []llm.Choice{choice},
		Usage: llm.Usage{
			PromptTokens:     resp.PromptEvalCount,
			CompletionTokens: resp.EvalCount,
			TotalTokens:      resp.PromptEvalCount + resp.EvalCount,
		},
	}
	if resp.TotalDuration > 0 || resp.EvalDuration > 0 {
		out.Metrics = &llm.Metrics{
			TotalDuration: time.Duration(resp.TotalDuration),
			LoadDuration:  time.Duration(resp.LoadDuration),
			EvalDuration:  time.Duration(resp.EvalDuration),
		}
	}
	return out
}

var (
	_ llm.Backend     = (*Adapter)(nil)
	_ llm.ModelPuller = (*Adapter)(nil)
)
