// Error types and handling
package llm

import (
	"context"
	"errors"
	"fmt"
)

// Machine codes carried by Error. These are stable identifiers consumed
// by the command layer; the Message and Hint fields carry the human text.
const (
	ErrCodeAPIKeyMissing    = "API_KEY_MISSING"
	ErrCodeConnection       = "CONNECTION_ERROR"
	ErrCodeNoModels         = "NO_MODELS_LOADED"
	ErrCodeModelsFetch      = "MODELS_FETCH_ERROR"
	ErrCodeChatRequest      = "CHAT_REQUEST_ERROR"
	ErrCodeModelPull        = "MODEL_PULL_ERROR"
	ErrCodeToolsUnsupported = "TOOLS_UNSUPPORTED"
	ErrCodeInvalidModel     = "INVALID_MODEL_ID"
	ErrCodeNoBackend        = "NO_BACKEND_AVAILABLE"
	ErrCodeCancelled        = "CANCELLED"
)

// Error is the tagged outcome returned for every expected failure. It
// always names the responsible backend and, where possible, one
// actionable next step in Hint.
type Error struct {
	Code       string    `json:"code"`
	Backend    BackendID `json:"backend,omitempty"`
	Message    string    `json:"message"`
	Hint       string    `json:"hint,omitempty"`
	StatusCode int       `json:"status_code,omitempty"`
}

func (e *Error) Error() string {
	if e.Backend != "" {
		return fmt.Sprintf("%s: %s", e.Backend.DisplayName(), e.Message)
	}
	return e.Message
}

// NewCancelled builds the distinguishable cancelled outcome for a
// backend. Cancellation is never a failure: it is not logged as one and
// never triggers failover.
func NewCancelled(backend BackendID) *Error {
	return &Error{
		Code:    ErrCodeCancelled,
		Backend: backend,
		Message: "request cancelled",
	}
}

// IsCancelled reports whether err represents a user- or caller-initiated
// cancellation rather than a backend failure.
func IsCancelled(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return true
	}
	var tagged *Error
	return errors.As(err, &tagged) && tagged.Code == ErrCodeCancelled
}

// AsError unwraps err into the tagged Error type.
func AsError(err error) (*Error, bool) {
	var tagged *Error
	if errors.As(err, &tagged) {
		return tagged, true
	}
	return nil, false
}
