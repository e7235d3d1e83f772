package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the bridge and its HTTP harness.
// Zero values mean "unspecified" and are replaced by ApplyDefaults.
type Config struct {
	Addr      string `json:"addr" yaml:"addr" toml:"addr"`
	ModelsDir string `json:"models_dir" yaml:"models_dir" toml:"models_dir"`
	// Engine selects the inference engine: stub, llama or none.
	Engine       string   `json:"engine" yaml:"engine" toml:"engine"`
	EchoMode     bool     `json:"echo_mode" yaml:"echo_mode" toml:"echo_mode"`
	ContextSize  int      `json:"context_size" yaml:"context_size" toml:"context_size"`
	Threads      int      `json:"threads" yaml:"threads" toml:"threads"`
	BudgetMB     int      `json:"budget_mb" yaml:"budget_mb" toml:"budget_mb"`
	MarginMB     int      `json:"margin_mb" yaml:"margin_mb" toml:"margin_mb"`
	MaxRetries   int      `json:"max_retries" yaml:"max_retries" toml:"max_retries"`
	TokenDelayMS int      `json:"token_delay_ms" yaml:"token_delay_ms" toml:"token_delay_ms"`
	LogLevel     string   `json:"log_level" yaml:"log_level" toml:"log_level"`
	CORSOrigins  []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`
	MaxBodyBytes int64    `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
}

// Default values used by ApplyDefaults.
const (
	DefaultAddr         = ":8080"
	DefaultModelsDir    = "~/models"
	DefaultEngine       = "stub"
	DefaultContextSize  = 2048
	DefaultLogLevel     = "info"
	DefaultMaxBodyBytes = 1 << 20
)

// Defaults returns a Config with every default applied.
func Defaults() Config {
	var c Config
	c.ApplyDefaults()
	return c
}

// ApplyDefaults fills unspecified fields in place.
func (c *Config) ApplyDefaults() {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.ModelsDir == "" {
		c.ModelsDir = DefaultModelsDir
	}
	if c.Engine == "" {
		c.Engine = DefaultEngine
	}
	if c.ContextSize == 0 {
		c.ContextSize = DefaultContextSize
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.MaxBodyBytes == 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
}

// Validate rejects values no component can run with.
func (c Config) Validate() error {
	switch c.Engine {
	case "", "stub", "llama", "none":
	default:
		return fmt.Errorf("unknown engine %q (want stub, llama or none)", c.Engine)
	}
	if c.BudgetMB < 0 || c.MarginMB < 0 {
		return fmt.Errorf("budget_mb and margin_mb must not be negative")
	}
	if c.BudgetMB > 0 && c.MarginMB >= c.BudgetMB {
		return fmt.Errorf("margin_mb (%d) must be below budget_mb (%d)", c.MarginMB, c.BudgetMB)
	}
	if c.ContextSize < 0 || c.Threads < 0 || c.TokenDelayMS < 0 {
		return fmt.Errorf("context_size, threads and token_delay_ms must not be negative")
	}
	return nil
}

// Load reads a configuration file based on its extension and applies defaults.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}
