package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"slices"

	"github.com/google/shlex"
)

const stderrSeparator = "\n--- stderr ---\n"

// AllowedCommands are the programs shell_command may run.
var AllowedCommands = []string{"ls", "cat", "grep", "pwd", "echo", "find", "whoami"}

type CommandInput struct {
	Cmd string `json:"cmd" jsonschema_description:"Command line to run. Only ls, cat, grep, pwd, echo, find and whoami are allowed."`
}

var ShellCommandDefinition = Definition{
	Name:        "shell_command",
	Description: "Executes a safe terminal command.",
	InputSchema: GenerateSchema[CommandInput](),
	Run: func(ctx context.Context, input json.RawMessage) (string, error) {
		in, err := decode[CommandInput](input)
		if err != nil {
			return "", err
		}
		return ShellCommand(ctx, in.Cmd)
	},
}

// ShellCommand splits cmd with shell quoting rules and runs it directly, without
// a shell. Refusals are results, not errors. A non-zero exit status is not an
// error either; its output is returned as usual.
func ShellCommand(ctx context.Context, cmd string) (string, error) {
	parts, err := shlex.Split(cmd)
	if err != nil {
		return "", fmt.Errorf("failed to parse command: %w", err)
	}
	if len(parts) == 0 {
		return "Empty command", nil
	}

	program := parts[0]
	if !slices.Contains(AllowedCommands, program) {
		return fmt.Sprintf("Command '%s' is not allowed.", program), nil
	}

	var stdout, stderr bytes.Buffer
	c := exec.CommandContext(ctx, program, parts[1:]...)
	c.Stdout = &stdout
	c.Stderr = &stderr
	if err := c.Run(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return "", fmt.Errorf("failed to execute command: %w", err)
		}
	}

	var out bytes.Buffer
	out.Write(stdout.Bytes())
	if stderr.Len() > 0 {
		if out.Len() > 0 {
			out.WriteString(stderrSeparator)
		}
		out.Write(stderr.Bytes())
	}
	return out.String(), nil
}
