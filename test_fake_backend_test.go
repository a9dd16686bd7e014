package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
)

type fakeBackend struct {
	mu sync.Mutex

	requests []CompletionRequest

	stream func(ctx context.Context, call int, req CompletionRequest) (io.ReadCloser, error)
}

func (b *fakeBackend) Stream(ctx context.Context, req CompletionRequest) (io.ReadCloser, error) {
	b.mu.Lock()
	b.requests = append(b.requests, req)
	call := len(b.requests) - 1
	fn := b.stream
	b.mu.Unlock()
	if fn == nil {
		return nil, fmt.Errorf("fakeBackend.Stream not configured")
	}
	return fn(ctx, call, req)
}

func (b *fakeBackend) Requests() []CompletionRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]CompletionRequest, len(b.requests))
	copy(out, b.requests)
	return out
}

// scripted returns a backend that serves bodies[i] for the i-th request.
func scripted(bodies ...string) *fakeBackend {
	return &fakeBackend{
		stream: func(_ context.Context, call int, _ CompletionRequest) (io.ReadCloser, error) {
			if call >= len(bodies) {
				return nil, fmt.Errorf("unexpected request %d", call)
			}
			return io.NopCloser(strings.NewReader(bodies[call])), nil
		},
	}
}

// sse frames payloads as server-sent data lines followed by [DONE].
func sse(payloads ...string) string {
	var b strings.Builder
	for _, p := range payloads {
		b.WriteString("data: ")
		b.WriteString(p)
		b.WriteString("\n\n")
	}
	b.WriteString("data: [DONE]\n\n")
	return b.String()
}

func contentChunk(text string) string {
	raw, _ := json.Marshal(map[string]any{
		"choices": []any{map[string]any{"delta": map[string]any{"content": text}}},
	})
	return string(raw)
}

func toolChunk(index int, id, name, args string) string {
	tc := map[string]any{"index": index}
	if id != "" {
		tc["id"] = id
		tc["type"] = "function"
	}
	fn := map[string]any{}
	if name != "" {
		fn["name"] = name
	}
	if args != "" {
		fn["arguments"] = args
	}
	if len(fn) > 0 {
		tc["function"] = fn
	}
	raw, _ := json.Marshal(map[string]any{
		"choices": []any{map[string]any{"delta": map[string]any{"tool_calls": []any{tc}}}},
	})
	return string(raw)
}

type gatewayCall struct {
	Name string
	Args any
}

type fakeGateway struct {
	mu sync.Mutex

	tools   []ToolDefinition
	listErr error
	calls   []gatewayCall

	execute func(ctx context.Context, name string, args any) (string, error)
}

func (g *fakeGateway) ListTools(context.Context) ([]ToolDefinition, error) {
	if g.listErr != nil {
		return nil, g.listErr
	}
	return append([]ToolDefinition(nil), g.tools...), nil
}

func (g *fakeGateway) Execute(ctx context.Context, name string, args any) (string, error) {
	g.mu.Lock()
	g.calls = append(g.calls, gatewayCall{Name: name, Args: args})
	fn := g.execute
	g.mu.Unlock()
	if fn == nil {
		return "", &ExecutionError{ToolName: name, Message: "fakeGateway.Execute not configured"}
	}
	return fn(ctx, name, args)
}

func (g *fakeGateway) Calls() []gatewayCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]gatewayCall(nil), g.calls...)
}

type errReader struct {
	data string
	err  error
}

func (r *errReader) Read(p []byte) (int, error) {
	if r.data == "" {
		return 0, r.err
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, nil
}

func (r *errReader) Close() error { return nil }
