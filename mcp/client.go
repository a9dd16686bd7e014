package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/bitop-dev/chat"
)

const noOutput = "Tool executed successfully with no output."

type Client struct {
	transport Transport
	info      ClientInfo
	allowed   map[string]bool
	denied    map[string]bool

	nextID atomic.Int64

	mu         sync.Mutex
	initResult *InitializeResult
}

var _ chat.Gateway = (*Client)(nil)

type ClientOptions struct {
	Transport Transport

	// ClientInfo is sent during Initialize. Defaults to name "chat".
	ClientInfo ClientInfo

	// Allowlist/denylist apply to server tool names.
	// If AllowedTools is non-empty, only those tools are listed and callable.
	AllowedTools []string
	DeniedTools  []string
}

func NewClient(opts ClientOptions) (*Client, error) {
	if opts.Transport == nil {
		return nil, fmt.Errorf("mcp: transport is required")
	}
	c := &Client{
		transport: opts.Transport,
		info:      opts.ClientInfo,
		allowed:   toSet(opts.AllowedTools),
		denied:    toSet(opts.DeniedTools),
	}
	if c.info.Name == "" {
		c.info.Name = "chat"
	}
	return c, nil
}

func (c *Client) Close() error {
	if c == nil || c.transport == nil {
		return nil
	}
	return c.transport.Close()
}

// Initialize performs the MCP handshake: an initialize request followed by
// the notifications/initialized notification. It is idempotent.
func (c *Client) Initialize(ctx context.Context) (*InitializeResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.initResult != nil {
		return c.initResult, nil
	}

	var res InitializeResult
	err := c.rpc(ctx, "initialize", InitializeRequest{
		ProtocolVersion: ProtocolVersion,
		Capabilities:    map[string]any{},
		ClientInfo:      c.info,
	}, &res)
	if err != nil {
		return nil, &ClientError{Op: "initialize", Method: "initialize", Cause: err}
	}
	if err := c.notify(ctx, "notifications/initialized", nil); err != nil {
		return nil, &ClientError{Op: "initialize", Method: "notifications/initialized", Cause: err}
	}
	c.initResult = &res
	return c.initResult, nil
}

// ToolInfos lists the server's tools after applying the allow/deny lists.
func (c *Client) ToolInfos(ctx context.Context) ([]ToolInfo, error) {
	if _, err := c.Initialize(ctx); err != nil {
		return nil, err
	}
	var result toolListResult
	if err := c.rpc(ctx, "tools/list", nil, &result); err != nil {
		return nil, &ClientError{Op: "request", Method: "tools/list", Cause: err}
	}
	out := make([]ToolInfo, 0, len(result.Tools))
	for _, t := range result.Tools {
		if c.permitted(t.Name) {
			out = append(out, t)
		}
	}
	return out, nil
}

// ListTools implements chat.Gateway.
func (c *Client) ListTools(ctx context.Context) ([]chat.ToolDefinition, error) {
	infos, err := c.ToolInfos(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]chat.ToolDefinition, 0, len(infos))
	for _, t := range infos {
		out = append(out, chat.ToolDefinition{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: chat.JSONSchema(t.InputSchema),
		})
	}
	return out, nil
}

// CallTool invokes tools/call and returns the raw result.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (*CallToolResult, error) {
	if !c.permitted(name) {
		return nil, &CallToolError{ToolName: name, Cause: fmt.Errorf("tool %q is not permitted", name)}
	}
	if _, err := c.Initialize(ctx); err != nil {
		return nil, &CallToolError{ToolName: name, Cause: err}
	}
	var result CallToolResult
	if err := c.rpc(ctx, "tools/call", callToolParams{Name: name, Arguments: args}, &result); err != nil {
		return nil, &CallToolError{ToolName: name, Cause: err}
	}
	return &result, nil
}

// Execute implements chat.Gateway. args must be a JSON object. Text parts of
// the result are joined with newlines; a result without content yields a fixed
// notice. Failures, including results flagged isError, are *chat.ExecutionError.
func (c *Client) Execute(ctx context.Context, name string, args any) (string, error) {
	obj, ok := args.(map[string]any)
	if !ok {
		return "", executionError(name, fmt.Errorf("arguments must be a JSON object"))
	}

	res, err := c.CallTool(ctx, name, obj)
	if err != nil {
		return "", executionError(name, err)
	}
	if len(res.Content) == 0 {
		if res.IsError {
			return "", &chat.ExecutionError{ToolName: name, Message: fmt.Sprintf("tool '%s' reported an error", name)}
		}
		return noOutput, nil
	}

	texts := make([]string, 0, len(res.Content))
	for _, p := range res.Content {
		if t, ok := p.Text(); ok {
			texts = append(texts, t)
		}
	}
	out := strings.Join(texts, "\n")
	if res.IsError {
		return "", &chat.ExecutionError{ToolName: name, Message: out}
	}
	return out, nil
}

func executionError(name string, err error) *chat.ExecutionError {
	return &chat.ExecutionError{ToolName: name, Message: "Error executing tool: " + err.Error(), Cause: err}
}

func (c *Client) permitted(name string) bool {
	if len(c.allowed) > 0 && !c.allowed[name] {
		return false
	}
	return !c.denied[name]
}

func (c *Client) rpc(ctx context.Context, method string, params any, out any) error {
	if c == nil || c.transport == nil {
		return fmt.Errorf("mcp: client is nil")
	}
	id := c.nextID.Add(1)
	req := rpcRequest{
		JSONRPC: jsonrpcVersion,
		ID:      &id,
		Method:  method,
		Params:  params,
	}
	b, err := json.Marshal(req)
	if err != nil {
		return err
	}
	rawResp, err := c.transport.Call(ctx, b)
	if err != nil {
		return err
	}
	var resp rpcResponse
	if err := json.Unmarshal(rawResp, &resp); err != nil {
		return err
	}
	if resp.Error != nil {
		return &RPCError{Code: resp.Error.Code, Message: resp.Error.Message, Data: resp.Error.Data}
	}
	if out == nil {
		return nil
	}
	if len(resp.Result) == 0 {
		return fmt.Errorf("mcp: empty result for %s", method)
	}
	return json.Unmarshal(resp.Result, out)
}

func (c *Client) notify(ctx context.Context, method string, params any) error {
	b, err := json.Marshal(rpcRequest{JSONRPC: jsonrpcVersion, Method: method, Params: params})
	if err != nil {
		return err
	}
	return c.transport.Notify(ctx, b)
}

func toSet(names []string) map[string]bool {
	if len(names) == 0 {
		return nil
	}
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}
