package mcp

import (
	"context"
	"encoding/json"
)

// Transport carries JSON-RPC messages to an MCP server.
//
// Implementations must be safe for concurrent use unless documented otherwise.
type Transport interface {
	// Call sends a request carrying a numeric id and waits for its response.
	Call(ctx context.Context, req json.RawMessage) (json.RawMessage, error)
	// Notify sends a message that expects no response.
	Notify(ctx context.Context, msg json.RawMessage) error
	Close() error
}
