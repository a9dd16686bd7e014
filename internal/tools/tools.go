package tools

import (
	"context"
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// Definition is a tool the server can list and call.
type Definition struct {
	Name        string
	Description string
	InputSchema json.RawMessage
	Run         func(ctx context.Context, input json.RawMessage) (string, error)
}

// Registry returns all tools served by the tool server.
func Registry() []Definition {
	return []Definition{ReadFileDefinition, ListDirectoryDefinition, ShellCommandDefinition}
}

// GenerateSchema derives an inline JSON Schema for T.
func GenerateSchema[T any]() json.RawMessage {
	r := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	s := r.Reflect(v)
	s.Version = ""
	raw, err := json.Marshal(s)
	if err != nil {
		panic(err)
	}
	return raw
}

func decode[T any](input json.RawMessage) (T, error) {
	var v T
	err := json.Unmarshal(input, &v)
	return v, err
}
