package mcp

import (
	"errors"
	"fmt"
)

type RPCError struct {
	Code    int64
	Message string
	Data    []byte
}

func (e *RPCError) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return fmt.Sprintf("mcp rpc error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("mcp rpc error %d", e.Code)
}

// ClientError wraps client-side failures (transport, parsing, lifecycle).
type ClientError struct {
	Op     string // e.g. "initialize", "request", "notify"
	Method string // JSON-RPC method if applicable
	Cause  error
}

func (e *ClientError) Error() string {
	if e == nil {
		return ""
	}
	if e.Method != "" {
		return fmt.Sprintf("mcp %s (%s): %v", e.Op, e.Method, e.Cause)
	}
	return fmt.Sprintf("mcp %s: %v", e.Op, e.Cause)
}

func (e *ClientError) Unwrap() error { return e.Cause }

// CallToolError wraps failures returned while calling an MCP tool.
type CallToolError struct {
	ToolName string
	Cause    error
}

func (e *CallToolError) Error() string {
	if e == nil {
		return ""
	}
	if e.Cause != nil {
		return fmt.Sprintf("failed to call tool '%s': %v", e.ToolName, e.Cause)
	}
	return fmt.Sprintf("failed to call tool '%s'", e.ToolName)
}

func (e *CallToolError) Unwrap() error { return e.Cause }

var ErrClosed = errors.New("mcp: transport closed")

func IsRPCError(err error) bool {
	var e *RPCError
	return errors.As(err, &e)
}

func IsInitError(err error) bool {
	var e *ClientError
	if errors.As(err, &e) {
		return e.Op == "initialize"
	}
	return false
}

func IsCallToolError(err error) bool {
	var e *CallToolError
	if errors.As(err, &e) {
		return true
	}
	var ce *ClientError
	return errors.As(err, &ce) && ce.Method == "tools/call"
}
