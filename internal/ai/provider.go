package ai

import (
	"context"
	"encoding/json"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`

	// set on assistant messages that ask for tools
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// set on tool result messages
	ToolCallID string `json:"tool_call_id,omitempty"`
	Name       string `json:"name,omitempty"`
}

// ToolCall is a completed request from the model to run a named tool.
// Arguments is the raw JSON object the model produced.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Tool describes a callable function to the model. Parameters is a JSON schema.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

type Provider interface {
	// Chat returns the assistant message for the conversation. The message
	// either carries content or tool calls.
	Chat(ctx context.Context, messages []Message, tools []Tool) (Message, error)
}
