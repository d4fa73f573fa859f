package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "fathom-to-slacklist", cfg.Service.Name)
	assert.Equal(t, "info", cfg.Service.LogLevel)
	assert.Equal(t, "json", cfg.Service.LogFormat)
	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Listen)
	assert.Equal(t, "sqlite", cfg.State.Backend)
	assert.Equal(t, "./data/relay.db", cfg.State.Path)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
service:
  log_level: debug
server:
  listen: "0.0.0.0:9090"
  public_base_url: "https://relay.example.com"
state:
  backend: sqlite
  path: /var/lib/fts/relay.db
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Service.LogLevel)
	assert.Equal(t, "0.0.0.0:9090", cfg.Server.Listen)
	assert.Equal(t, "https://relay.example.com", cfg.Server.PublicBaseURL)
	assert.Equal(t, "/var/lib/fts/relay.db", cfg.State.Path)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
server:
  listen: "127.0.0.1:8080"
`)

	t.Setenv(EnvListen, "127.0.0.1:9999")
	t.Setenv(EnvAPIKey, "sekrit")
	t.Setenv(EnvLogLevel, "debug")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9999", cfg.Server.Listen)
	assert.Equal(t, "sekrit", cfg.Server.APIKey)
	assert.Equal(t, "debug", cfg.Service.LogLevel)
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := writeConfig(t, "server: [not a map")

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(*Config) {},
		},
		{
			name:    "empty listen",
			mutate:  func(cfg *Config) { cfg.Server.Listen = " " },
			wantErr: "server.listen",
		},
		{
			name:    "sqlite backend without path",
			mutate:  func(cfg *Config) { cfg.State.Path = "" },
			wantErr: "state.path",
		},
		{
			name: "redis backend without url",
			mutate: func(cfg *Config) {
				cfg.State.Backend = "redis"
				cfg.State.RedisURL = ""
			},
			wantErr: "state.redis_url",
		},
		{
			name: "redis backend with url",
			mutate: func(cfg *Config) {
				cfg.State.Backend = "redis"
				cfg.State.RedisURL = "redis://localhost:6379/0"
			},
		},
		{
			name:    "unknown backend",
			mutate:  func(cfg *Config) { cfg.State.Backend = "etcd" },
			wantErr: "state.backend",
		},
		{
			name:    "relative public base url",
			mutate:  func(cfg *Config) { cfg.Server.PublicBaseURL = "/relay" },
			wantErr: "public_base_url",
		},
		{
			name:    "non-http public base url",
			mutate:  func(cfg *Config) { cfg.Server.PublicBaseURL = "ftp://relay.example.com" },
			wantErr: "public_base_url",
		},
		{
			name:   "https public base url",
			mutate: func(cfg *Config) { cfg.Server.PublicBaseURL = "https://relay.example.com" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			err := Validate(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
