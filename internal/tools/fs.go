package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type PathInput struct {
	Path string `json:"path" jsonschema_description:"Path of the file or directory."`
}

var ReadFileDefinition = Definition{
	Name:        "read_file",
	Description: "Reads content from the local workspace.",
	InputSchema: GenerateSchema[PathInput](),
	Run: func(_ context.Context, input json.RawMessage) (string, error) {
		in, err := decode[PathInput](input)
		if err != nil {
			return "", err
		}
		return ReadFile(in.Path)
	},
}

var ListDirectoryDefinition = Definition{
	Name:        "list_directory",
	Description: "Lists files in a directory.",
	InputSchema: GenerateSchema[PathInput](),
	Run: func(_ context.Context, input json.RawMessage) (string, error) {
		in, err := decode[PathInput](input)
		if err != nil {
			return "", err
		}
		entries, err := ListDirectory(in.Path)
		if err != nil {
			return "", err
		}
		return strings.Join(entries, "\n"), nil
	},
}

func ReadFile(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file '%s': %w", path, err)
	}
	return string(b), nil
}

// ListDirectory returns the full path of every entry in dir, sorted by name.
func ListDirectory(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory '%s': %w", dir, err)
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, filepath.Join(dir, e.Name()))
	}
	return out, nil
}
