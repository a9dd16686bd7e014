package mcp

import "encoding/json"

const (
	jsonrpcVersion = "2.0"

	// ProtocolVersion is the MCP revision spoken by this package.
	ProtocolVersion = "2024-11-05"
)

// JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// JSON-RPC 2.0 envelope types (subset used by MCP).

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	// ID is nil for notifications.
	ID     *int64 `json:"id,omitempty"`
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int64           `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// inboundMessage is any message read by the server. ID is kept raw so that
// string and numeric ids are echoed unchanged.
type inboundMessage struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type outboundResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// MCP tool types (subset).

type ToolInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

type toolListResult struct {
	Tools []ToolInfo `json:"tools"`
}

type callToolParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

type CallToolResult struct {
	Content []ToolContentPart `json:"content"`
	IsError bool              `json:"isError,omitempty"`
}

// ToolContentPart is a generic representation of MCP tool results.
// Several content shapes exist; the raw payload is preserved.
type ToolContentPart struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"-"`
}

func TextContent(text string) ToolContentPart {
	raw, _ := json.Marshal(struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}{"text", text})
	return ToolContentPart{Type: "text", Raw: raw}
}

// Text returns the text of a "text" part.
func (p ToolContentPart) Text() (string, bool) {
	if p.Type != "text" {
		return "", false
	}
	var t struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(p.Raw, &t); err != nil {
		return "", false
	}
	return t.Text, true
}

func (p *ToolContentPart) UnmarshalJSON(b []byte) error {
	p.Raw = append(p.Raw[:0], b...)
	var tmp struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	p.Type = tmp.Type
	return nil
}

func (p ToolContentPart) MarshalJSON() ([]byte, error) {
	if len(p.Raw) == 0 {
		return json.Marshal(struct {
			Type string `json:"type"`
		}{p.Type})
	}
	return p.Raw, nil
}

// Initialize / lifecycle.

type ClientInfo struct {
	Name    string `json:"name"`
	Title   string `json:"title,omitempty"`
	Version string `json:"version,omitempty"`
}

type InitializeRequest struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ClientInfo      ClientInfo     `json:"clientInfo"`
}

type ServerInfo struct {
	Name    string `json:"name"`
	Title   string `json:"title,omitempty"`
	Version string `json:"version,omitempty"`
}

type InitializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ServerInfo      ServerInfo     `json:"serverInfo"`
	Instructions    string         `json:"instructions,omitempty"`
}
