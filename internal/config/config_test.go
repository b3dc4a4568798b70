package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
	assert.Equal(t, "data/timesheet.db", cfg.Database.Path)
	assert.Equal(t, 5*time.Minute, cfg.OrgCache.TTL)
	assert.Equal(t, 16, cfg.Dispatcher.MaxInFlight)
	assert.False(t, cfg.Lark.Enabled)
	assert.Equal(t, "json", cfg.Logger.Format)
}

func TestLoad_FileAndEnvironment(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  mode: debug
database:
  path: /tmp/ts.db
lark:
  enabled: true
  app_id: cli_file
org_cache:
  ttl: 30s
dispatcher:
  handler_timeout: 5s
`)
	t.Setenv("LARK_APP_SECRET", "secret-from-env")
	t.Setenv("SERVER_PORT", "9191")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Server.Port, "environment overrides the file")
	assert.Equal(t, "debug", cfg.Server.Mode)
	assert.Equal(t, "/tmp/ts.db", cfg.Database.Path)
	assert.Equal(t, "cli_file", cfg.Lark.AppID)
	assert.Equal(t, "secret-from-env", cfg.Lark.AppSecret)
	assert.Equal(t, 30*time.Second, cfg.OrgCache.TTL)
	assert.Equal(t, 5*time.Second, cfg.Dispatcher.HandlerTimeout)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:   ServerConfig{Port: 8080, Mode: "release"},
			Database: DatabaseConfig{Path: "x.db"},
			OrgCache: OrgCacheConfig{TTL: time.Minute},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "bad port", mutate: func(c *Config) { c.Server.Port = 70000 }, wantErr: "server.port"},
		{name: "bad mode", mutate: func(c *Config) { c.Server.Mode = "prod" }, wantErr: "server.mode"},
		{name: "no database path", mutate: func(c *Config) { c.Database.Path = "" }, wantErr: "database.path"},
		{name: "lark without credentials", mutate: func(c *Config) { c.Lark.Enabled = true }, wantErr: "lark.app_id"},
		{name: "lark without secret", mutate: func(c *Config) {
			c.Lark = LarkConfig{Enabled: true, AppID: "cli_1"}
		}, wantErr: "lark.app_secret"},
		{name: "negative ttl", mutate: func(c *Config) { c.OrgCache.TTL = -time.Second }, wantErr: "org_cache.ttl"},
		{name: "negative in-flight", mutate: func(c *Config) { c.Dispatcher.MaxInFlight = -1 }, wantErr: "max_in_flight"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
