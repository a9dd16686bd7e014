package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/bitop-dev/chat/internal/schema"
)

// ServerTool is a tool exposed by a Server. Handler receives the arguments
// object (at least "{}"); a returned error becomes a JSON-RPC internal error.
type ServerTool struct {
	Name        string
	Description string
	InputSchema json.RawMessage
	Handler     func(ctx context.Context, args json.RawMessage) (string, error)
}

type ServerOptions struct {
	Info         ServerInfo
	Instructions string
	Logger       *slog.Logger
}

// Server answers MCP requests for a fixed set of tools over line-delimited
// JSON-RPC. Requests are handled one at a time in arrival order.
type Server struct {
	info         ServerInfo
	instructions string
	log          *slog.Logger

	mu         sync.RWMutex
	order      []string
	tools      map[string]ServerTool
	validators map[string]*schema.Validator
}

func NewServer(opts ServerOptions) *Server {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if opts.Info.Name == "" {
		opts.Info.Name = "mcp-toolserver"
	}
	return &Server{
		info:         opts.Info,
		instructions: opts.Instructions,
		log:          log,
		tools:        map[string]ServerTool{},
		validators:   map[string]*schema.Validator{},
	}
}

// AddTool registers t, compiling its input schema.
func (s *Server) AddTool(t ServerTool) error {
	if t.Name == "" {
		return fmt.Errorf("mcp: tool name is required")
	}
	if t.Handler == nil {
		return fmt.Errorf("mcp: tool %q handler is required", t.Name)
	}
	v, err := schema.Compile(t.InputSchema)
	if err != nil {
		return fmt.Errorf("mcp: tool %q: %w", t.Name, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tools[t.Name]; !ok {
		s.order = append(s.order, t.Name)
	}
	s.tools[t.Name] = t
	s.validators[t.Name] = v
	return nil
}

// Serve reads requests from r and writes responses to w until r is exhausted
// or ctx is done.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	lines := make(chan []byte)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		br := bufio.NewReader(r)
		for {
			line, err := br.ReadBytes('\n')
			if len(bytes.TrimSpace(line)) > 0 {
				select {
				case lines <- line:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				if err != io.EOF {
					readErr <- err
				}
				return
			}
		}
	}()

	bw := bufio.NewWriter(w)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-readErr:
					return err
				default:
					return nil
				}
			}
			resp := s.handleLine(ctx, bytes.TrimSpace(line))
			if resp == nil {
				continue
			}
			b, err := json.Marshal(resp)
			if err != nil {
				return err
			}
			if _, err := bw.Write(append(b, '\n')); err != nil {
				return err
			}
			if err := bw.Flush(); err != nil {
				return err
			}
		}
	}
}

// ServeStdio serves on the process's stdin and stdout.
func (s *Server) ServeStdio(ctx context.Context) error {
	return s.Serve(ctx, os.Stdin, os.Stdout)
}

// handleLine returns the response to one message, or nil for notifications.
func (s *Server) handleLine(ctx context.Context, line []byte) *outboundResponse {
	var msg inboundMessage
	if err := json.Unmarshal(line, &msg); err != nil {
		s.log.Warn("mcp: parse error", "err", err)
		return errorResponse(json.RawMessage("null"), CodeParseError, "parse error: "+err.Error())
	}
	if msg.JSONRPC != jsonrpcVersion || msg.Method == "" {
		if len(msg.ID) == 0 {
			return nil
		}
		return errorResponse(msg.ID, CodeInvalidRequest, "invalid request")
	}
	if len(msg.ID) == 0 || string(msg.ID) == "null" {
		s.log.Debug("mcp: notification", "method", msg.Method)
		return nil
	}

	result, rerr := s.dispatch(ctx, msg.Method, msg.Params)
	if rerr != nil {
		s.log.Debug("mcp: request failed", "method", msg.Method, "code", rerr.Code, "message", rerr.Message)
		return &outboundResponse{JSONRPC: jsonrpcVersion, ID: msg.ID, Error: rerr}
	}
	return &outboundResponse{JSONRPC: jsonrpcVersion, ID: msg.ID, Result: result}
}

func (s *Server) dispatch(ctx context.Context, method string, params json.RawMessage) (any, *rpcError) {
	switch method {
	case "initialize":
		var req InitializeRequest
		if len(params) > 0 {
			if err := json.Unmarshal(params, &req); err != nil {
				return nil, &rpcError{Code: CodeInvalidParams, Message: err.Error()}
			}
		}
		s.log.Info("mcp: client connected", "client", req.ClientInfo.Name, "protocol", req.ProtocolVersion)
		return InitializeResult{
			ProtocolVersion: ProtocolVersion,
			Capabilities:    map[string]any{"tools": map[string]any{}},
			ServerInfo:      s.info,
			Instructions:    s.instructions,
		}, nil
	case "ping":
		return struct{}{}, nil
	case "tools/list":
		return toolListResult{Tools: s.toolInfos()}, nil
	case "tools/call":
		return s.callTool(ctx, params)
	}
	return nil, &rpcError{Code: CodeMethodNotFound, Message: "method not found: " + method}
}

func (s *Server) toolInfos() []ToolInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ToolInfo, 0, len(s.order))
	for _, name := range s.order {
		t := s.tools[name]
		out = append(out, ToolInfo{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema})
	}
	return out
}

func (s *Server) callTool(ctx context.Context, params json.RawMessage) (any, *rpcError) {
	var p struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, &rpcError{Code: CodeInvalidParams, Message: err.Error()}
	}

	s.mu.RLock()
	t, ok := s.tools[p.Name]
	v := s.validators[p.Name]
	s.mu.RUnlock()
	if !ok {
		return nil, &rpcError{Code: CodeInvalidParams, Message: "tool not found: " + p.Name}
	}

	args := p.Arguments
	if len(bytes.TrimSpace(args)) == 0 || string(args) == "null" {
		args = json.RawMessage("{}")
	}
	if err := v.Validate(args); err != nil {
		return nil, &rpcError{Code: CodeInvalidParams, Message: "invalid arguments for tool " + p.Name + ": " + err.Error()}
	}

	out, err := t.Handler(ctx, args)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, &rpcError{Code: CodeInternalError, Message: "request cancelled"}
		}
		return nil, &rpcError{Code: CodeInternalError, Message: err.Error()}
	}
	if out == "" {
		return CallToolResult{Content: []ToolContentPart{}}, nil
	}
	return CallToolResult{Content: []ToolContentPart{TextContent(out)}}, nil
}

func errorResponse(id json.RawMessage, code int64, msg string) *outboundResponse {
	return &outboundResponse{JSONRPC: jsonrpcVersion, ID: id, Error: &rpcError{Code: code, Message: msg}}
}
