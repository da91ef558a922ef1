// Package config handles loading, validating, and writing gatewayd's
// gatewayd.yaml configuration file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level gatewayd configuration.
type Config struct {
	Server          ServerConfig              `yaml:"server"`
	Auth            AuthConfig                `yaml:"auth"`
	Providers       map[string]ProviderConfig `yaml:"providers"`
	DefaultProvider string                    `yaml:"default_provider"`
	Session         SessionConfig             `yaml:"session"`
	WorkerPoolSize  int                       `yaml:"worker_pool_size"`
}

// ServerConfig defines where the reactor listens and optional TLS.
type ServerConfig struct {
	Host string    `yaml:"host"`
	Port int       `yaml:"port"`
	TLS  TLSConfig `yaml:"tls"`
}

// TLSConfig is empty-by-default and the gateway always serves plain HTTP.
// TLS termination is not implemented on the reactor's raw-epoll
// transport, so a configured cert/key is rejected at validate time
// rather than silently ignored — see validate.
type TLSConfig struct {
	Cert string `yaml:"cert"`
	Key  string `yaml:"key"`
}

// Enabled reports whether both cert and key are configured.
func (t TLSConfig) Enabled() bool {
	return t.Cert != "" && t.Key != ""
}

// AuthConfig carries the optional bearer token gate.
type AuthConfig struct {
	BearerToken string `yaml:"bearer_token"`
}

// ProviderConfig maps a provider key ("anthropic", "openai") to its
// upstream base URL, the environment variable holding its API key, and
// its default model.
type ProviderConfig struct {
	BaseURL      string `yaml:"base_url"`
	APIKeyEnv    string `yaml:"api_key_env"`
	DefaultModel string `yaml:"default_model"`
}

// SessionConfig controls the SQLite-backed SessionStore.
type SessionConfig struct {
	Path         string `yaml:"path"`
	HistoryLimit int    `yaml:"history_limit"`
}

// Load reads and parses gatewayd.yaml. A missing file is not an error —
// defaults apply.
func Load(path string) (*Config, error) {
	cfg := applyDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// WriteDefault writes a fully populated default gatewayd.yaml, used by
// `gatewayd config init`.
func WriteDefault(path string) error {
	cfg := applyDefaults()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling default config: %w", err)
	}

	header := `# gatewayd configuration
#
# server.host / server.port: bind address for the reactor's listen socket
# auth.bearer_token: if set, requests must carry Authorization: Bearer <token>
# providers.<name>.api_key_env: environment variable holding that provider's key
# default_provider: used when a request's model name doesn't select one

`
	return os.WriteFile(path, []byte(header+string(data)), 0o644)
}

func applyDefaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 18789,
		},
		Providers: map[string]ProviderConfig{
			"anthropic": {
				BaseURL:      "https://api.anthropic.com",
				APIKeyEnv:    "ANTHROPIC_API_KEY",
				DefaultModel: "claude-3-5-sonnet-20241022",
			},
			"openai": {
				BaseURL:      "https://api.openai.com",
				APIKeyEnv:    "OPENAI_API_KEY",
				DefaultModel: "gpt-4o-mini",
			},
		},
		DefaultProvider: "anthropic",
		Session: SessionConfig{
			Path:         "gatewayd.db",
			HistoryLimit: 50,
		},
		WorkerPoolSize: 8,
	}
}

func validate(cfg *Config) error {
	if cfg.Server.Host == "" {
		return fmt.Errorf("server.host must not be empty")
	}
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range (1-65535)", cfg.Server.Port)
	}
	if cfg.Server.TLS.Cert != "" && cfg.Server.TLS.Key == "" {
		return fmt.Errorf("server.tls.cert set without server.tls.key")
	}
	if cfg.Server.TLS.Key != "" && cfg.Server.TLS.Cert == "" {
		return fmt.Errorf("server.tls.key set without server.tls.cert")
	}
	if cfg.Server.TLS.Enabled() {
		return fmt.Errorf("server.tls is configured but TLS termination is not implemented on the raw-epoll transport; remove server.tls.cert/key and terminate TLS with a reverse proxy in front of gatewayd")
	}
	for name, p := range cfg.Providers {
		if p.BaseURL == "" {
			return fmt.Errorf("provider %q: base_url is required", name)
		}
	}
	if cfg.DefaultProvider != "" {
		if _, ok := cfg.Providers[cfg.DefaultProvider]; !ok {
			return fmt.Errorf("default_provider %q is not in providers", cfg.DefaultProvider)
		}
	}
	if cfg.Session.HistoryLimit <= 0 {
		return fmt.Errorf("session.history_limit must be positive")
	}
	if cfg.WorkerPoolSize <= 0 {
		return fmt.Errorf("worker_pool_size must be positive")
	}
	return nil
}
