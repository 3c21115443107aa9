// Message types and functionality
package llm

// Message represents a single chat message in the unified contract.
type Message struct {
	Role       MessageRole `json:"role" yaml:"role"`
	Content    string      `json:"content" yaml:"content"`
	ToolCalls  []ToolCall  `json:"tool_calls,omitempty" yaml:"tool_calls,omitempty"`
	ToolCallID string      `json:"tool_call_id,omitempty" yaml:"tool_call_id,omitempty"`
}

// MessageRole defines the role of a message sender
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleTool      MessageRole = "tool"
)

// NewSystemMessage creates a system message.
func NewSystemMessage(text string) Message {
	return Message{Role: RoleSystem, Content: text}
}

// NewUserMessage creates a user message.
func NewUserMessage(text string) Message {
	return Message{Role: RoleUser, Content: text}
}

// NewAssistantMessage creates an assistant message.
func NewAssistantMessage(text string) Message {
	return Message{Role: RoleAssistant, Content: text}
}

// NewToolResultMessage creates a tool-result message correlated to a
// prior tool call by id.
func NewToolResultMessage(toolCallID, result string) Message {
	return Message{Role: RoleTool, Content: result, ToolCallID: toolCallID}
}

// HasToolCalls checks if the message contains any tool calls
func (m Message) HasToolCalls() bool {
	return len(m.ToolCalls) > 0
}

// GetToolCallByName returns the first tool call with the specified name
func (m Message) GetToolCallByName(name string) (*ToolCall, bool) {
	for _, toolCall := range m.ToolCalls {
		if toolCall.Function.Name == name {
			return &toolCall, true
		}
	}
	return nil, false
}
