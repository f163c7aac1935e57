// Package config provides configuration loading and management for infraops.
//
// A single global Config instance is maintained in memory, protected by a
// mutex. GetConfig() returns the config BY VALUE so callers cannot mutate
// shared state; all loading goes through LoadConfig at startup.
//
// Precedence: built-in defaults < infraops.yaml < environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// LLMConfig describes the upstream intent-extraction model endpoint.
// The endpoint is OpenAI-compatible (chat completions); NVIDIA's hosted
// Nemotron endpoint is the default.
type LLMConfig struct {
	APIURL         string `yaml:"api_url"`
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// RouterConfig controls intent routing behavior.
type RouterConfig struct {
	// UseSimple forces the deterministic extractor and skips the LLM entirely.
	UseSimple bool `yaml:"use_simple"`
}

// MCPConfig describes how the Terraform MCP server subprocess is launched.
type MCPConfig struct {
	Command         string   `yaml:"command"`
	Args            []string `yaml:"args"`
	Persistent      bool     `yaml:"persistent"`
	CredentialsFile string   `yaml:"credentials_file"`
	TerraformDir    string   `yaml:"terraform_dir"`
}

// RetryConfig bounds the backoff wrapper around MCP calls.
type RetryConfig struct {
	MaxAttempts    int `yaml:"max_attempts"`
	InitialDelayMs int `yaml:"initial_delay_ms"`
}

// MonitorConfig points at the external monitoring/ticketing backend.
type MonitorConfig struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// ServerConfig controls the session transport listener.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// Config is the root configuration object.
type Config struct {
	LLM     LLMConfig     `yaml:"llm"`
	Router  RouterConfig  `yaml:"router"`
	MCP     MCPConfig     `yaml:"mcp"`
	Retry   RetryConfig   `yaml:"retry"`
	Monitor MonitorConfig `yaml:"monitor"`
	Server  ServerConfig  `yaml:"server"`
	DBPath  string        `yaml:"db_path"`
}

//nolint:gochecknoglobals // Intentional singleton pattern for config management
var (
	config *Config
	mu     sync.RWMutex
)

// defaults returns the built-in configuration.
func defaults() *Config {
	return &Config{
		LLM: LLMConfig{
			APIURL:         "https://integrate.api.nvidia.com/v1",
			Model:          "nvidia/nemotron-70b-instruct",
			TimeoutSeconds: 8,
		},
		MCP: MCPConfig{
			Command:      "python3",
			Args:         []string{"mcps/mcp_server.py"},
			TerraformDir: "/app/terraform",
		},
		Retry: RetryConfig{
			MaxAttempts:    3,
			InitialDelayMs: 500,
		},
		Monitor: MonitorConfig{
			BaseURL:        "http://localhost:5000/monitor",
			TimeoutSeconds: 30,
		},
		Server: ServerConfig{Port: 8080},
		DBPath: "infraops.db",
	}
}

// LoadConfig initializes the singleton from the optional YAML file at path
// (empty path skips the file) and then applies environment overrides.
func LoadConfig(path string) error {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return fmt.Errorf("failed to read config file %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := validate(cfg); err != nil {
		return err
	}

	mu.Lock()
	config = cfg
	mu.Unlock()
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("NVIDIA_API_URL"); v != "" {
		cfg.LLM.APIURL = v
	}
	if v := os.Getenv("NVIDIA_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("NVIDIA_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("USE_SIMPLE_ROUTER"); envBool(v) {
		cfg.Router.UseSimple = true
	}
	if v := os.Getenv("MCP_PERSISTENT"); envBool(v) {
		cfg.MCP.Persistent = true
	}
	if v := os.Getenv("MCP_COMMAND"); v != "" {
		parts := strings.Fields(v)
		cfg.MCP.Command = parts[0]
		cfg.MCP.Args = parts[1:]
	}
	if v := os.Getenv("AWS_CREDENTIALS_FILE"); v != "" {
		cfg.MCP.CredentialsFile = v
	}
	if v := os.Getenv("TERRAFORM_DIR"); v != "" {
		cfg.MCP.TerraformDir = v
	}
	if v := os.Getenv("MONITOR_BASE_URL"); v != "" {
		cfg.Monitor.BaseURL = v
	}
	if v := os.Getenv("INFRAOPS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("INFRAOPS_DB"); v != "" {
		cfg.DBPath = v
	}
}

func envBool(v string) bool {
	return v == "1" || strings.EqualFold(v, "true")
}

func validate(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", cfg.Server.Port)
	}
	if cfg.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry max_attempts must be at least 1, got %d", cfg.Retry.MaxAttempts)
	}
	if cfg.LLM.TimeoutSeconds < 1 {
		return fmt.Errorf("llm timeout_seconds must be at least 1, got %d", cfg.LLM.TimeoutSeconds)
	}
	return nil
}

// GetConfig returns the loaded config by value.
// Returns an error if LoadConfig has not been called.
func GetConfig() (Config, error) {
	mu.RLock()
	defer mu.RUnlock()
	if config == nil {
		return Config{}, fmt.Errorf("config not loaded - call LoadConfig first")
	}
	return *config, nil
}

// LLMTimeout returns the LLM call timeout as a duration.
func (c *Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLM.TimeoutSeconds) * time.Second
}

// InitialRetryDelay returns the first backoff delay as a duration.
func (c *Config) InitialRetryDelay() time.Duration {
	return time.Duration(c.Retry.InitialDelayMs) * time.Millisecond
}

// MonitorTimeout returns the monitor proxy timeout as a duration.
func (c *Config) MonitorTimeout() time.Duration {
	return time.Duration(c.Monitor.TimeoutSeconds) * time.Second
}
