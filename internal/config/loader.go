package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Env override names. Overrides win over file values so secrets and
// deploy-specific paths never need to live in config.yaml.
const (
	EnvListen        = "FTS_LISTEN"
	EnvPublicBaseURL = "FTS_PUBLIC_BASE_URL"
	EnvAPIKey        = "FTS_API_KEY"
	EnvStatePath     = "FTS_STATE_PATH"
	EnvRedisURL      = "FTS_REDIS_URL"
	EnvLogLevel      = "FTS_LOG_LEVEL"
)

// Load reads configuration from path, applies defaults, env overrides and
// validation. A missing file is not an error: defaults + env apply.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvListen); v != "" {
		cfg.Server.Listen = v
	}
	if v := os.Getenv(EnvPublicBaseURL); v != "" {
		cfg.Server.PublicBaseURL = v
	}
	if v := os.Getenv(EnvAPIKey); v != "" {
		cfg.Server.APIKey = v
	}
	if v := os.Getenv(EnvStatePath); v != "" {
		cfg.State.Path = v
	}
	if v := os.Getenv(EnvRedisURL); v != "" {
		cfg.State.RedisURL = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Service.LogLevel = v
	}
}

// Validate checks a loaded config for internal consistency.
func Validate(cfg *Config) error {
	if strings.TrimSpace(cfg.Server.Listen) == "" {
		return fmt.Errorf("server.listen must not be empty")
	}

	switch cfg.State.Backend {
	case "", "sqlite":
		if strings.TrimSpace(cfg.State.Path) == "" {
			return fmt.Errorf("state.path is required for the sqlite backend")
		}
	case "redis":
		if strings.TrimSpace(cfg.State.RedisURL) == "" {
			return fmt.Errorf("state.redis_url is required for the redis backend")
		}
	default:
		return fmt.Errorf("state.backend must be \"sqlite\" or \"redis\", got %q", cfg.State.Backend)
	}

	if base := strings.TrimSpace(cfg.Server.PublicBaseURL); base != "" {
		u, err := url.Parse(base)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("server.public_base_url must be an absolute http(s) URL, got %q", base)
		}
	}

	return nil
}
