// Command mcp-toolserver serves the workspace tools (read_file,
// list_directory, shell_command) over MCP on stdin/stdout.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/bitop-dev/chat/internal/tools"
	"github.com/bitop-dev/chat/mcp"
)

var version = "dev"

func main() {
	envFile := flag.String("env", ".env", "Optional .env file to load")
	logLevel := flag.String("log-level", "warn", "Log level written to stderr (debug, info, warn, error)")
	flag.Parse()

	_ = godotenv.Load(*envFile)

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(2)
	}
	// stdout carries the protocol; logs go to stderr.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	srv := mcp.NewServer(mcp.ServerOptions{
		Info:   mcp.ServerInfo{Name: "mcp-toolserver", Version: version},
		Logger: logger,
	})
	for _, def := range tools.Registry() {
		if err := srv.AddTool(mcp.ServerTool{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: def.InputSchema,
			Handler:     def.Run,
		}); err != nil {
			logger.Error("register tool", "tool", def.Name, "err", err)
			os.Exit(1)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("serving", "tools", len(tools.Registry()))
	if err := srv.ServeStdio(ctx); err != nil && ctx.Err() == nil {
		logger.Error("serve", "err", err)
		os.Exit(1)
	}
}
