package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/bitop-dev/chat/internal/schema"
)

type ToolHandler func(ctx context.Context, input json.RawMessage) (any, error)

// Tool is an in-process tool served by a ToolSet.
type Tool struct {
	Name        string
	Description string
	InputSchema Schema
	Handler     ToolHandler
}

func (t Tool) Definition() ToolDefinition {
	return ToolDefinition{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema}
}

type ToolExecutionMeta struct {
	ToolName string
}

type ToolSpec[Input any, Output any] struct {
	Description string
	InputSchema Schema
	Execute     func(ctx context.Context, input Input, meta ToolExecutionMeta) (Output, error)
}

// NewTool creates a Tool with typed input/output. The returned Tool.Handler:
// - validates input against InputSchema (if provided)
// - unmarshals into Input
// - calls Execute
func NewTool[Input any, Output any](name string, spec ToolSpec[Input, Output]) Tool {
	if name == "" {
		panic("tool name is required")
	}
	if spec.Execute == nil {
		panic(fmt.Sprintf("tool %q Execute is required", name))
	}
	v := schema.MustCompile(spec.InputSchema.JSON)
	return Tool{
		Name:        name,
		Description: spec.Description,
		InputSchema: spec.InputSchema,
		Handler: func(ctx context.Context, input json.RawMessage) (any, error) {
			if err := v.Validate(input); err != nil {
				return nil, err
			}
			var in Input
			if err := json.Unmarshal(input, &in); err != nil {
				return nil, err
			}
			return spec.Execute(ctx, in, ToolExecutionMeta{ToolName: name})
		},
	}
}

type DynamicToolSpec struct {
	Description string
	InputSchema Schema
	Execute     func(ctx context.Context, input json.RawMessage, meta ToolExecutionMeta) (any, error)
}

// NewDynamicTool creates a Tool where input is left as json.RawMessage for runtime
// validation/casting.
func NewDynamicTool(name string, spec DynamicToolSpec) Tool {
	if name == "" {
		panic("tool name is required")
	}
	if spec.Execute == nil {
		panic(fmt.Sprintf("tool %q Execute is required", name))
	}
	v := schema.MustCompile(spec.InputSchema.JSON)
	return Tool{
		Name:        name,
		Description: spec.Description,
		InputSchema: spec.InputSchema,
		Handler: func(ctx context.Context, input json.RawMessage) (any, error) {
			if err := v.Validate(input); err != nil {
				return nil, err
			}
			return spec.Execute(ctx, input, ToolExecutionMeta{ToolName: name})
		},
	}
}

// ToolSet is a Gateway backed by in-process tools. Lookup is by name; later
// registrations replace earlier ones.
type ToolSet struct {
	mu    sync.RWMutex
	order []string
	tools map[string]Tool
}

var _ Gateway = (*ToolSet)(nil)

func NewToolSet(tools ...Tool) *ToolSet {
	s := &ToolSet{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		s.Add(t)
	}
	return s
}

func (s *ToolSet) Add(t Tool) {
	if t.Name == "" {
		panic("tool name is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tools[t.Name]; !ok {
		s.order = append(s.order, t.Name)
	}
	s.tools[t.Name] = t
}

func (s *ToolSet) ListTools(context.Context) ([]ToolDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ToolDefinition, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.tools[name].Definition())
	}
	return out, nil
}

// Execute runs the named tool. String results are returned as-is; any other
// value is JSON-encoded. Every failure is an *ExecutionError.
func (s *ToolSet) Execute(ctx context.Context, name string, args any) (string, error) {
	s.mu.RLock()
	t, ok := s.tools[name]
	s.mu.RUnlock()
	if !ok {
		nerr := &NoSuchToolError{ToolName: name}
		return "", &ExecutionError{ToolName: name, Message: nerr.Error(), Cause: nerr}
	}
	if t.Handler == nil {
		return "", &ExecutionError{ToolName: name, Message: fmt.Sprintf("tool %q missing handler", name)}
	}

	raw, err := json.Marshal(args)
	if err != nil {
		return "", &ExecutionError{ToolName: name, Message: "encode arguments: " + err.Error(), Cause: err}
	}

	val, err := t.Handler(ctx, raw)
	if err != nil {
		return "", &ExecutionError{ToolName: name, Message: err.Error(), Cause: err}
	}
	return formatToolResult(val), nil
}

func formatToolResult(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case json.RawMessage:
		return string(x)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf(`{"error":%q}`, err.Error())
	}
	return string(raw)
}
