package chat

import (
	"context"
	"io"
)

// CompletionRequest is one streamed completion call. Messages is a snapshot
// owned by the request.
type CompletionRequest struct {
	Model    string
	Messages []Message
	Tools    []ToolDefinition
}

// Backend opens a streamed chat completion. The returned body yields
// server-sent lines of the form "data: <json>" and is closed by the caller.
//
// Failures to open the stream should be reported as *TransportError.
type Backend interface {
	Stream(ctx context.Context, req CompletionRequest) (io.ReadCloser, error)
}

// BackendFunc adapts a function to the Backend interface.
type BackendFunc func(ctx context.Context, req CompletionRequest) (io.ReadCloser, error)

func (f BackendFunc) Stream(ctx context.Context, req CompletionRequest) (io.ReadCloser, error) {
	return f(ctx, req)
}
