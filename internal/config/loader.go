package config

import (
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} patterns in strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} patterns with environment variable values.
// Unset variables are left unchanged.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

// Load reads the config file, applies environment overrides, and returns
// a merged Config. Missing files produce defaults only.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(&cfg)
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	cfg.Credentials.AccessToken = expandEnvVars(cfg.Credentials.AccessToken)
	cfg.API.BaseURL = expandEnvVars(cfg.API.BaseURL)
	return cfg, nil
}

// LoadRaw reads the config file into a generic map for path-based access.
func LoadRaw(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, err
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

// SaveRaw writes a generic map back to a YAML config file.
func SaveRaw(path string, raw map[string]any) error {
	data, err := yaml.Marshal(raw)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// applyDefaults fills zero-value fields with sensible defaults.
func applyDefaults(cfg *Config) {
	d := Defaults()
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = d.API.BaseURL
	}
	if cfg.API.TimeoutSeconds == 0 {
		cfg.API.TimeoutSeconds = d.API.TimeoutSeconds
	}
	if cfg.API.Namespace == "" {
		cfg.API.Namespace = d.API.Namespace
	}
	if cfg.Hub.Path == "" {
		cfg.Hub.Path = d.Hub.Path
	}
	if cfg.Hub.ReconnectDelayMs == 0 {
		cfg.Hub.ReconnectDelayMs = d.Hub.ReconnectDelayMs
	}
	if cfg.Hub.LogLevel == "" {
		cfg.Hub.LogLevel = d.Hub.LogLevel
	}
	if cfg.Chat.PageSize == 0 {
		cfg.Chat.PageSize = d.Chat.PageSize
	}
	if cfg.Credentials.Store == "" {
		cfg.Credentials.Store = d.Credentials.Store
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = d.Logging.Level
	}
	if cfg.Logging.ConsoleStyle == "" {
		cfg.Logging.ConsoleStyle = d.Logging.ConsoleStyle
	}
}

// applyEnvOverrides reads ZEYN_* environment variables and overrides config values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ZEYN_API_BASE"); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv("ZEYN_API_TIMEOUT"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			cfg.API.TimeoutSeconds = secs
		}
	}
	if v := os.Getenv("ZEYN_CREDENTIALS_STORE"); v != "" {
		cfg.Credentials.Store = v
	}
	if v := os.Getenv("ZEYN_ACCESS_TOKEN"); v != "" {
		cfg.Credentials.AccessToken = v
	}
	if v := os.Getenv("ZEYN_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
}
