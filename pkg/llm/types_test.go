package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatResponseText(t *testing.T) {
	empty := ChatResponse{}
	assert.Equal(t, "", empty.Text())

	resp := ChatResponse{
		Choices: []Choice{
			{Index: 0, Message: NewAssistantMessage("first")},
			{Index: 1, Message: NewAssistantMessage("second")},
		},
	}
	assert.Equal(t, "first", resp.Text())
}

func TestRequiresToolExecution(t *testing.T) {
	plain := ChatResponse{
		Choices: []Choice{{Message: NewAssistantMessage("hi"), FinishReason: FinishReasonStop}},
	}
	assert.False(t, plain.RequiresToolExecution())

	withCalls := ChatResponse{
		Choices: []Choice{{
			Message: Message{
				Role: RoleAssistant,
				ToolCalls: []ToolCall{
					{ID: "call_1", Type: "function", Function: ToolCallFunction{Name: "search"}},
				},
			},
			FinishReason: FinishReasonToolCalls,
		}},
	}
	assert.True(t, withCalls.RequiresToolExecution())
	assert.Len(t, withCalls.GetToolCalls(), 1)
}

func TestGetToolCallByName(t *testing.T) {
	msg := Message{
		Role: RoleAssistant,
		ToolCalls: []ToolCall{
			{ID: "call_1", Function: ToolCallFunction{Name: "search", Arguments: `{"q":"go"}`}},
			{ID: "call_2", Function: ToolCallFunction{Name: "fetch"}},
		},
	}

	tc, ok := msg.GetToolCallByName("fetch")
	require.True(t, ok)
	assert.Equal(t, "call_2", tc.ID)

	_, ok = msg.GetToolCallByName("missing")
	assert.False(t, ok)
}

func TestNewToolFor(t *testing.T) {
	type searchArgs struct {
		Query string `json:"query" required:"true" description:"Search query"`
	}

	tool, err := NewToolFor("web_search", "Search the web", searchArgs{})
	require.NoError(t, err)
	assert.Equal(t, "function", tool.Type)
	assert.Equal(t, "web_search", tool.Function.Name)
	assert.NotNil(t, tool.Function.Parameters)
}
