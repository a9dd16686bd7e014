// Package config loads the chat client's settings from an optional YAML file
// and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultBaseURL    = "http://localhost:3000"
	DefaultAPIPrefix  = "/api"
	DefaultModel      = "gpt-3.5-turbo"
	DefaultToolServer = "mcp-toolserver"
	DefaultMaxRounds  = 10
)

// Environment variables read by FromEnv.
const (
	EnvAPIKey         = "OPEN_WEBUI_API_KEY"
	EnvAPIKeyFallback = "OPENAI_API_KEY"
	EnvBaseURL        = "OPEN_WEBUI_BASE_URL"
	EnvModel          = "CHAT_MODEL"
	EnvToolServer     = "CHAT_TOOL_SERVER"
)

var ErrMissingAPIKey = errors.New(EnvAPIKey + " environment variable is not set")

type ToolServer struct {
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
	// Disabled runs without a tool server.
	Disabled bool `yaml:"disabled"`
}

type Config struct {
	APIKey         string        `yaml:"-"`
	Model          string        `yaml:"model"`
	BaseURL        string        `yaml:"base_url"`
	APIPrefix      string        `yaml:"api_prefix"`
	MaxRounds      int           `yaml:"max_rounds"`
	MaxRetries     int           `yaml:"max_retries"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	SystemPrompt   string        `yaml:"system_prompt"`
	ToolServer     ToolServer    `yaml:"tool_server"`
}

// Load reads path (a missing file is not an error), applies environment
// overrides and fills defaults. An empty path skips the file.
func Load(path string) (Config, error) {
	var cfg Config
	if path != "" {
		c, err := ReadFile(path)
		if err != nil {
			return Config{}, err
		}
		cfg = c
	}
	cfg.applyEnv(os.LookupEnv)
	cfg.applyDefaults()
	return cfg, nil
}

// ReadFile decodes a YAML config file. A missing file yields the zero Config.
func ReadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Config{}, nil
	}
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	get := func(key string) string {
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}
	if v := get(EnvAPIKey); v != "" {
		c.APIKey = v
	} else if v := get(EnvAPIKeyFallback); v != "" {
		c.APIKey = v
	}
	if v := get(EnvBaseURL); v != "" {
		c.BaseURL = v
	}
	if v := get(EnvModel); v != "" {
		c.Model = v
	}
	if v := get(EnvToolServer); v != "" {
		c.ToolServer.Command = v
	}
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.APIPrefix == "" {
		c.APIPrefix = DefaultAPIPrefix
	}
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.MaxRounds <= 0 {
		c.MaxRounds = DefaultMaxRounds
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RequestTimeout < 0 {
		c.RequestTimeout = 0
	}
}

// Validate reports settings the client cannot start without.
func (c Config) Validate() error {
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	if c.Model == "" {
		return errors.New("config: model is required")
	}
	return nil
}

// ResolveToolServer returns the tool server executable: the configured
// command when set, otherwise DefaultToolServer next to the running binary,
// in the working directory, or on PATH, in that order.
func (c Config) ResolveToolServer() string {
	if c.ToolServer.Command != "" {
		return c.ToolServer.Command
	}
	var candidates []string
	if exe, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(exe), DefaultToolServer))
	}
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates,
			filepath.Join(cwd, DefaultToolServer),
			filepath.Join(cwd, "bin", DefaultToolServer),
		)
	}
	for _, p := range candidates {
		if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
			return p
		}
	}
	if p, err := exec.LookPath(DefaultToolServer); err == nil {
		return p
	}
	return DefaultToolServer
}
