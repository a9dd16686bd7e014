package chat

import (
	"errors"
	"fmt"
)

// StructureError reports an append that would break the history invariants.
// It signals caller misuse and is never absorbed into the conversation.
type StructureError struct {
	// Index is the position the rejected message would have taken.
	Index      int
	Role       Role
	ToolCallID string
	Reason     string
}

func (e *StructureError) Error() string {
	if e == nil {
		return ""
	}
	if e.ToolCallID != "" {
		return fmt.Sprintf("history structure: message %d (%s, tool_call_id %q): %s", e.Index, e.Role, e.ToolCallID, e.Reason)
	}
	return fmt.Sprintf("history structure: message %d (%s): %s", e.Index, e.Role, e.Reason)
}

func IsStructure(err error) bool {
	var e *StructureError
	return errors.As(err, &e)
}

// ExecutionError reports a failed tool invocation. Its text becomes the tool
// message content.
type ExecutionError struct {
	ToolName string
	Message  string
	Cause    error
}

func (e *ExecutionError) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return "tool execution failed for " + e.ToolName
}

func (e *ExecutionError) Unwrap() error { return e.Cause }

func IsExecution(err error) bool {
	var e *ExecutionError
	return errors.As(err, &e)
}

// ArgumentParseError reports tool-call arguments that are not valid JSON. The
// call still runs with absent arguments.
type ArgumentParseError struct {
	ToolName   string
	ToolCallID string
	Arguments  string
	Cause      error
}

func (e *ArgumentParseError) Error() string {
	if e == nil {
		return ""
	}
	if e.Cause != nil {
		return "invalid tool arguments for " + e.ToolName + ": " + e.Cause.Error()
	}
	return "invalid tool arguments for " + e.ToolName
}

func (e *ArgumentParseError) Unwrap() error { return e.Cause }

type NoSuchToolError struct {
	ToolName string
}

func (e *NoSuchToolError) Error() string {
	if e == nil {
		return ""
	}
	return "no such tool: " + e.ToolName
}

func IsNoSuchTool(err error) bool {
	var e *NoSuchToolError
	return errors.As(err, &e)
}

// RoundLimitError is returned when a turn keeps requesting tools past
// Options.MaxRounds.
type RoundLimitError struct {
	Limit int
}

func (e *RoundLimitError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("tool loop exceeded max rounds (%d)", e.Limit)
}

var ErrTurnInProgress = errors.New("chat: a turn is already in progress")
