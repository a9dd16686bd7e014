// Package openai speaks the OpenAI-compatible streaming chat completions
// protocol served by Open WebUI and similar backends.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/bitop-dev/chat"
	"github.com/bitop-dev/chat/internal/httpx"
)

const ProviderName = "openai"

var emptyParameters = json.RawMessage(`{"type":"object","properties":{}}`)

// Endpoint is a resolved chat completions endpoint.
type Endpoint struct {
	URL        string
	APIKey     string
	Headers    map[string]string
	HTTPClient *http.Client
	Retry      httpx.RetryPolicy
}

// EndpointURL joins base, prefix and the chat completions path.
func EndpointURL(base, prefix string) (string, error) {
	base = strings.TrimRight(base, "/")
	prefix = strings.TrimRight(prefix, "/")
	if prefix != "" && !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	u, err := url.Parse(base + prefix + "/chat/completions")
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("base URL %q must be absolute", base)
	}
	return u.String(), nil
}

// Stream posts req with stream=true and returns the open event-stream body.
// Every failure is a *chat.TransportError.
func Stream(ctx context.Context, ep Endpoint, req chat.CompletionRequest) (io.ReadCloser, error) {
	if ep.APIKey == "" {
		return nil, &chat.TransportError{Provider: ProviderName, Code: "config_error", Message: "API key is required"}
	}

	payload, err := buildRequest(req)
	if err != nil {
		return nil, &chat.TransportError{Provider: ProviderName, Code: "request_error", Message: err.Error(), Cause: err}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &chat.TransportError{Provider: ProviderName, Code: "marshal_error", Message: err.Error(), Cause: err}
	}

	resp, err := httpx.OpenStream(ctx, ep.HTTPClient, httpx.StreamRequest{
		URL:     ep.URL,
		Body:    body,
		Bearer:  ep.APIKey,
		Headers: ep.Headers,
	}, ep.Retry)
	if err != nil {
		code, retryable := classifyNetworkErr(err)
		return nil, &chat.TransportError{Provider: ProviderName, Code: code, Message: err.Error(), Retryable: retryable, Cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, errorFromBody(resp.StatusCode, b)
	}
	return resp.Body, nil
}

func buildRequest(req chat.CompletionRequest) (chatCompletionRequest, error) {
	if req.Model == "" {
		return chatCompletionRequest{}, fmt.Errorf("model is required")
	}
	msgs := make([]chatMessage, 0, len(req.Messages))
	for i, m := range req.Messages {
		cm, err := toChatMessage(m)
		if err != nil {
			return chatCompletionRequest{}, fmt.Errorf("message %d: %w", i, err)
		}
		msgs = append(msgs, cm)
	}

	var tools []tool
	if len(req.Tools) > 0 {
		tools = make([]tool, 0, len(req.Tools))
		for _, t := range req.Tools {
			if t.Name == "" {
				return chatCompletionRequest{}, fmt.Errorf("tool name is required")
			}
			params := t.InputSchema.JSON
			if len(params) == 0 {
				params = emptyParameters
			}
			tools = append(tools, tool{
				Type: chat.ToolTypeFunction,
				Function: toolFunction{
					Name:        t.Name,
					Description: t.Description,
					Parameters:  params,
				},
			})
		}
	}

	return chatCompletionRequest{
		Model:    req.Model,
		Messages: msgs,
		Tools:    tools,
		Stream:   true,
	}, nil
}

func toChatMessage(m chat.Message) (chatMessage, error) {
	if !m.Role.Valid() {
		return chatMessage{}, fmt.Errorf("invalid role %q", m.Role)
	}
	cm := chatMessage{
		Role:    string(m.Role),
		Content: m.Content,
	}
	for _, tc := range m.ToolCalls {
		typ := tc.Type
		if typ == "" {
			typ = chat.ToolTypeFunction
		}
		cm.ToolCalls = append(cm.ToolCalls, toolCall{
			ID:   tc.ID,
			Type: typ,
			Function: toolCallFn{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		})
	}
	if m.Role == chat.RoleTool {
		id := m.ToolCallID
		cm.ToolCallID = &id
		cm.Name = m.Name
	}
	return cm, nil
}

// errorFromBody maps a non-2xx response to a TransportError. It understands
// OpenAI-style {"error":{...}} bodies and FastAPI-style {"detail":...} bodies.
func errorFromBody(status int, b []byte) *chat.TransportError {
	e := &chat.TransportError{
		Provider:  ProviderName,
		Code:      "http_error",
		Status:    status,
		Retryable: httpx.ShouldRetry(status),
	}
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		e.Code = "unauthorized"
	case http.StatusTooManyRequests:
		e.Code = "rate_limited"
	}

	if gjson.ValidBytes(b) {
		doc := gjson.ParseBytes(b)
		if msg := doc.Get("error.message"); msg.Exists() && msg.String() != "" {
			e.Message = msg.String()
			if code := doc.Get("error.code").String(); code != "" {
				e.Code = code
			} else if typ := doc.Get("error.type").String(); typ != "" {
				e.Code = typ
			}
			return e
		}
		if detail := doc.Get("detail"); detail.Exists() {
			if detail.IsArray() {
				e.Message = detail.Get("0.msg").String()
			} else {
				e.Message = detail.String()
			}
		}
		if e.Message != "" {
			return e
		}
	}

	e.Message = strings.TrimSpace(string(b))
	if e.Message == "" {
		e.Message = fmt.Sprintf("http status %d", status)
	}
	return e
}

func classifyNetworkErr(err error) (code string, retryable bool) {
	if err == nil {
		return "network_error", false
	}
	if errors.Is(err, context.Canceled) {
		return "canceled", false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout", true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return "timeout", true
	}
	return "network_error", true
}
