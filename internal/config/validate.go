package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

var validLogLevels = []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	// API validation
	if cfg.API.BaseURL == "" {
		issues = append(issues, ValidationIssue{Path: "api.baseUrl", Message: "base URL is required"})
	} else if u, err := url.Parse(cfg.API.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		issues = append(issues, ValidationIssue{
			Path:    "api.baseUrl",
			Message: fmt.Sprintf("must be an absolute http(s) URL, got %q", cfg.API.BaseURL),
		})
	}
	if cfg.API.TimeoutSeconds < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "api.timeoutSeconds",
			Message: fmt.Sprintf("must be >= 0, got %d", cfg.API.TimeoutSeconds),
		})
	}

	// Hub validation
	if cfg.Hub.Path != "" && !strings.HasPrefix(cfg.Hub.Path, "/") {
		issues = append(issues, ValidationIssue{
			Path:    "hub.path",
			Message: fmt.Sprintf("must start with '/', got %q", cfg.Hub.Path),
		})
	}
	if cfg.Hub.ReconnectDelayMs < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "hub.reconnectDelayMs",
			Message: fmt.Sprintf("must be >= 0, got %d", cfg.Hub.ReconnectDelayMs),
		})
	}
	if cfg.Hub.LogLevel != "" && !slices.Contains(validLogLevels, cfg.Hub.LogLevel) {
		issues = append(issues, ValidationIssue{
			Path:    "hub.logLevel",
			Message: fmt.Sprintf("must be one of %v, got %q", validLogLevels, cfg.Hub.LogLevel),
		})
	}

	// Chat validation
	if cfg.Chat.PageSize < 0 || cfg.Chat.PageSize > 500 {
		issues = append(issues, ValidationIssue{
			Path:    "chat.pageSize",
			Message: fmt.Sprintf("must be 1-500, got %d", cfg.Chat.PageSize),
		})
	}

	// Credentials validation
	validStores := []string{"sqlite", "memory"}
	if cfg.Credentials.Store != "" && !slices.Contains(validStores, cfg.Credentials.Store) {
		issues = append(issues, ValidationIssue{
			Path:    "credentials.store",
			Message: fmt.Sprintf("must be one of %v, got %q", validStores, cfg.Credentials.Store),
		})
	}

	// Logging validation
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.level",
			Message: fmt.Sprintf("must be one of %v, got %q", validLogLevels, cfg.Logging.Level),
		})
	}
	validConsoleStyles := []string{"pretty", "json"}
	if cfg.Logging.ConsoleStyle != "" && !slices.Contains(validConsoleStyles, cfg.Logging.ConsoleStyle) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.consoleStyle",
			Message: fmt.Sprintf("must be one of %v, got %q", validConsoleStyles, cfg.Logging.ConsoleStyle),
		})
	}

	return issues
}
