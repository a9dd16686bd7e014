package chat

import "context"

// Gateway enumerates and executes external tools.
//
// Execute receives the decoded argument value (nil when the model produced no
// usable arguments). A returned error is folded into the conversation as the
// tool's output; gateways should prefer *ExecutionError so that the text is
// exactly what the model sees.
type Gateway interface {
	ListTools(ctx context.Context) ([]ToolDefinition, error)
	Execute(ctx context.Context, name string, args any) (string, error)
}

// gatewayUnavailable is the in-band result of every tool call when the
// orchestrator has no gateway.
const gatewayUnavailable = "MCP Server not available"
