package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, "http://localhost:5062", cfg.API.BaseURL)
	assert.Equal(t, 20, cfg.API.TimeoutSeconds)
	assert.Equal(t, "zeynai", cfg.API.Namespace)
	assert.Equal(t, "/hubs/zeynai", cfg.Hub.Path)
	assert.Equal(t, 1500, cfg.Hub.ReconnectDelayMs)
	assert.True(t, cfg.Hub.ReconnectEnabled())
	assert.Equal(t, 50, cfg.Chat.PageSize)
	assert.Equal(t, "sqlite", cfg.Credentials.Store)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Empty(t, Validate(&cfg))
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Chat.PageSize)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadValidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	yaml := `
api:
  baseUrl: https://api.zeyn.example
  timeoutSeconds: 5
hub:
  reconnect: false
  skipNegotiation: true
chat:
  pageSize: 25
credentials:
  store: memory
logging:
  level: debug
  consoleStyle: json
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://api.zeyn.example", cfg.API.BaseURL)
	assert.Equal(t, 5, cfg.API.TimeoutSeconds)
	assert.Equal(t, "zeynai", cfg.API.Namespace, "unset fields keep defaults")
	assert.Equal(t, "/hubs/zeynai", cfg.Hub.Path)
	assert.False(t, cfg.Hub.ReconnectEnabled())
	assert.True(t, cfg.Hub.SkipNegotiation)
	assert.Equal(t, 25, cfg.Chat.PageSize)
	assert.Equal(t, "memory", cfg.Credentials.Store)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.ConsoleStyle)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api: [unclosed"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	var ce *ConfigError
	assert.ErrorAs(t, err, &ce)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("ZEYN_API_BASE", "http://10.0.0.5:5062")
	t.Setenv("ZEYN_API_TIMEOUT", "7")
	t.Setenv("ZEYN_CREDENTIALS_STORE", "memory")
	t.Setenv("ZEYN_LOG_LEVEL", "DEBUG")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.5:5062", cfg.API.BaseURL)
	assert.Equal(t, 7, cfg.API.TimeoutSeconds)
	assert.Equal(t, "memory", cfg.Credentials.Store)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadExpandsAccessToken(t *testing.T) {
	t.Setenv("MY_ZEYN_TOKEN", "tok-abc")
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("credentials:\n  accessToken: ${MY_ZEYN_TOKEN}\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "tok-abc", cfg.Credentials.AccessToken)
}

func TestExpandEnvVarsLeavesUnset(t *testing.T) {
	assert.Equal(t, "${ZEYN_DEFINITELY_UNSET_VAR}", expandEnvVars("${ZEYN_DEFINITELY_UNSET_VAR}"))
}

func TestLoadRawSaveRaw(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	raw, err := LoadRaw(path)
	require.NoError(t, err)
	assert.Empty(t, raw)

	parts, err := ParseConfigPath("chat.pageSize")
	require.NoError(t, err)
	SetValueAtPath(raw, parts, 10)
	require.NoError(t, SaveRaw(path, raw))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Chat.PageSize)
}

func TestConfigErrorMessage(t *testing.T) {
	err := &ConfigError{Message: "bad"}
	assert.Equal(t, "config: bad", err.Error())
}
