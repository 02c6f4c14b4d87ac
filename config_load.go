package policyrouter

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Defaults applied by ApplyDefaults.
const (
	DefaultProfile          = "fast-cheap-safe"
	DefaultBackendTimeoutMs = 10000
	DefaultAddr             = ":8080"
)

// LoadConfig reads and parses a config file from the given path.
// Supported formats: JSON (.json), YAML (.yaml, .yml).
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file extension %q: use .json, .yaml, or .yml", ext)
	}

	// Relative file paths are resolved against the config file's directory.
	dir := filepath.Dir(path)
	if cfg.Policy.Path != "" && !filepath.IsAbs(cfg.Policy.Path) {
		cfg.Policy.Path = filepath.Join(dir, cfg.Policy.Path)
	}
	if cfg.Pricing.Path != "" && !filepath.IsAbs(cfg.Pricing.Path) {
		cfg.Pricing.Path = filepath.Join(dir, cfg.Pricing.Path)
	}

	return &cfg, nil
}

// ApplyDefaults fills unset fields with their defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Policy.Driver == "" {
		cfg.Policy.Driver = DriverFile
	}
	if cfg.DefaultProfile == "" {
		cfg.DefaultProfile = DefaultProfile
	}
	if cfg.Backends.Mode == "" {
		cfg.Backends.Mode = ModeStub
	}
	if cfg.Backends.TimeoutMs == 0 {
		cfg.Backends.TimeoutMs = DefaultBackendTimeoutMs
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = DefaultAddr
	}
}

// ResolveCredentials fills empty API keys from OPENAI_API_KEY and
// ANTHROPIC_API_KEY using getenv (os.Getenv when nil). Inline keys win.
func ResolveCredentials(cfg *Config, getenv func(string) string) {
	if getenv == nil {
		getenv = os.Getenv
	}
	if cfg.Backends.OpenAI.APIKey == "" {
		cfg.Backends.OpenAI.APIKey = getenv("OPENAI_API_KEY")
	}
	if cfg.Backends.Anthropic.APIKey == "" {
		cfg.Backends.Anthropic.APIKey = getenv("ANTHROPIC_API_KEY")
	}
}

// ValidateConfig validates a Config for correctness. Run ApplyDefaults
// first; empty driver and mode are rejected here.
func ValidateConfig(cfg Config) error {
	switch cfg.Policy.Driver {
	case DriverFile:
		if cfg.Policy.Path == "" {
			return fmt.Errorf("policy.path is required for the file driver")
		}
	case DriverSQLite, DriverPostgres:
		if cfg.Policy.Name == "" {
			return fmt.Errorf("policy.name is required for the %s driver", cfg.Policy.Driver)
		}
		if cfg.Policy.Driver == DriverPostgres && cfg.Policy.DSN == "" {
			return fmt.Errorf("policy.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown policy driver: %q", cfg.Policy.Driver)
	}

	switch cfg.Backends.Mode {
	case ModeStub, ModeLive:
	default:
		return fmt.Errorf("unknown backend mode: %q", cfg.Backends.Mode)
	}

	if cfg.Backends.TimeoutMs <= 0 {
		return fmt.Errorf("backends.timeout_ms must be > 0")
	}
	if cb := cfg.Backends.CircuitBreaker; cb.FailureThreshold < 0 || cb.CooldownMs < 0 {
		return fmt.Errorf("backends.circuit_breaker values must be >= 0")
	}
	if rl := cfg.Server.RateLimit; rl.RPS < 0 || rl.Burst < 0 {
		return fmt.Errorf("server.rate_limit values must be >= 0")
	}

	if cfg.DefaultProfile == "" {
		return fmt.Errorf("default_profile must not be empty")
	}

	return nil
}
