package chat

import "encoding/json"

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return true
	}
	return false
}

const ToolTypeFunction = "function"

// Message is one element of a conversation.
type Message struct {
	Role Role

	// Content is nil only for an assistant message that issued tool calls
	// without narrative text.
	Content *string

	// ToolCalls is set only on assistant messages.
	ToolCalls []ToolCall

	// ToolCallID and Name are set only on tool messages.
	ToolCallID string
	Name       string
}

// Text returns the content, or "" when absent.
func (m Message) Text() string {
	if m.Content == nil {
		return ""
	}
	return *m.Content
}

func (m Message) HasToolCalls() bool { return len(m.ToolCalls) > 0 }

func (m Message) clone() Message {
	out := m
	if m.Content != nil {
		c := *m.Content
		out.Content = &c
	}
	if m.ToolCalls != nil {
		out.ToolCalls = append([]ToolCall(nil), m.ToolCalls...)
	}
	return out
}

type ToolCall struct {
	ID       string
	Type     string
	Function FunctionCall
}

type FunctionCall struct {
	Name string

	// Arguments holds a JSON-encoded object as produced by the model. It may
	// be malformed.
	Arguments string
}

func User(text string) Message {
	return Message{Role: RoleUser, Content: &text}
}

func System(text string) Message {
	return Message{Role: RoleSystem, Content: &text}
}

// Assistant builds an assistant message. Empty text with tool calls leaves the
// content absent.
func Assistant(text string, calls ...ToolCall) Message {
	m := Message{Role: RoleAssistant}
	if text != "" || len(calls) == 0 {
		m.Content = &text
	}
	if len(calls) > 0 {
		m.ToolCalls = append([]ToolCall(nil), calls...)
	}
	return m
}

func ToolResult(toolCallID, toolName, text string) Message {
	return Message{
		Role:       RoleTool,
		Content:    &text,
		ToolCallID: toolCallID,
		Name:       toolName,
	}
}

type Schema struct {
	JSON json.RawMessage
}

func JSONSchema(raw json.RawMessage) Schema {
	return Schema{JSON: raw}
}

// ToolDefinition declares a tool to the backend.
type ToolDefinition struct {
	Name        string
	Description string
	InputSchema Schema
}
