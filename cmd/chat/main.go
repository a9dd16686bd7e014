// Command chat is a terminal chat client for an OpenAI-compatible backend
// with tools served by mcp-toolserver.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"golang.org/x/term"

	"github.com/bitop-dev/chat"
	"github.com/bitop-dev/chat/internal/config"
	"github.com/bitop-dev/chat/internal/tui"
	"github.com/bitop-dev/chat/mcp"
	"github.com/bitop-dev/chat/openai"
)

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "chat", "config.yaml")
}

func main() {
	os.Exit(run(os.Args[1:]))
}

// run returns the process exit code so that deferred cleanup runs before exit.
func run(args []string) int {
	fs := flag.NewFlagSet("chat", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfigPath(), "YAML config file")
	model := fs.String("model", "", "Model name (overrides config and "+config.EnvModel+")")
	toolServer := fs.String("tool-server", "", "Tool server executable (overrides config and "+config.EnvToolServer+")")
	noTools := fs.Bool("no-tools", false, "Run without a tool server")
	plain := fs.Bool("plain", false, "Line-oriented mode instead of the full-screen UI")
	message := fs.String("message", "", "Send one message, print the reply and exit")
	logFile := fs.String("log", "", "Write debug logs to this file")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fail(err)
	}
	if *model != "" {
		cfg.Model = *model
	}
	if *toolServer != "" {
		cfg.ToolServer.Command = *toolServer
	}
	if *noTools {
		cfg.ToolServer.Disabled = true
	}
	if err := cfg.Validate(); err != nil {
		return fail(err)
	}

	logger, closeLog, err := openLogger(*logFile)
	if err != nil {
		return fail(err)
	}
	defer closeLog()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var gateway chat.Gateway
	if !cfg.ToolServer.Disabled {
		client, err := startToolServer(cfg, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Failed to start MCP server at %s: %v\n", cfg.ResolveToolServer(), err)
		} else {
			defer client.Close()
			gateway = client
		}
	}

	feed := chat.NewFeed(chat.Entry{Role: chat.RoleSystem, Content: tui.Welcome})
	session, err := chat.NewSession(chat.SessionConfig{
		Backend: openai.NewClient(openai.Config{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			APIPrefix:  cfg.APIPrefix,
			MaxRetries: cfg.MaxRetries,
		}),
		Gateway:      gateway,
		SystemPrompt: cfg.SystemPrompt,
		Feed:         feed,
		Options: chat.Options{
			Model:          cfg.Model,
			MaxRounds:      cfg.MaxRounds,
			RequestTimeout: cfg.RequestTimeout,
			Logger:         logger,
		},
	})
	if err != nil {
		return fail(err)
	}
	if err := session.LoadTools(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Warning: Failed to fetch tools:", err)
	}

	switch {
	case *message != "":
		err = runOnce(ctx, session, *message, os.Stdout)
	case !*plain && term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd())):
		err = runTUI(ctx, session)
	default:
		err = runPlain(ctx, session, os.Stdin, os.Stdout)
	}
	if werr := shutdown(session, shutdownGrace); werr != nil {
		logger.Warn("turn still running at exit", "err", werr)
	}
	if err != nil {
		return fail(err)
	}
	return 0
}

const shutdownGrace = 5 * time.Second

// shutdown cancels any running turn and waits up to grace for it to finish,
// so that a tool call in flight completes before the tool server is closed.
func shutdown(session *chat.Session, grace time.Duration) error {
	session.Cancel()
	ctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	_, err := session.Wait(ctx)
	return err
}

func startToolServer(cfg config.Config, logger *slog.Logger) (*mcp.Client, error) {
	tr := &mcp.StdioTransport{
		Command: cfg.ResolveToolServer(),
		Args:    cfg.ToolServer.Args,
		Logger:  logger,
	}
	if err := tr.Start(); err != nil {
		return nil, err
	}
	return mcp.NewClient(mcp.ClientOptions{
		Transport:  tr,
		ClientInfo: mcp.ClientInfo{Name: "chat"},
	})
}

func runTUI(ctx context.Context, session *chat.Session) error {
	p := tea.NewProgram(tui.New(ctx, session, session.Feed()), tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	_, err := p.Run()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func openLogger(path string) (*slog.Logger, func(), error) {
	if path == "" {
		return slog.New(slog.DiscardHandler), func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, err
	}
	h := slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(h), func() { _ = f.Close() }, nil
}

func fail(err error) int {
	fmt.Fprintln(os.Stderr, "Error:", err)
	return 1
}

