// Tool and tool call types and functionality
package llm

import (
	"fmt"

	"github.com/swaggest/jsonschema-go"
)

// Tool represents a function tool that can be called by the model
type Tool struct {
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`
}

// ToolFunction defines the function specification for a tool
type ToolFunction struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  interface{} `json:"parameters"`
}

// ToolCall represents a tool call made by the model
type ToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function ToolCallFunction `json:"function"`
}

// ToolCallFunction represents the function call details
type ToolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// NewTool builds a function tool with an explicit parameter schema.
func NewTool(name, description string, parameters interface{}) Tool {
	return Tool{
		Type: "function",
		Function: ToolFunction{
			Name:        name,
			Description: description,
			Parameters:  parameters,
		},
	}
}

// NewToolFor builds a function tool whose parameter schema is derived
// from a Go struct via JSON schema reflection.
//
// Example:
//
//	type SearchArgs struct {
//	    Query string `json:"query" required:"true" description:"Search query"`
//	}
//	tool, err := llm.NewToolFor("web_search", "Search the web", SearchArgs{})
func NewToolFor(name, description string, params interface{}) (Tool, error) {
	reflector := jsonschema.Reflector{}

	schema, err := reflector.Reflect(params)
	if err != nil {
		return Tool{}, fmt.Errorf("failed to reflect tool parameters to JSON schema: %w", err)
	}

	return NewTool(name, description, schema), nil
}
