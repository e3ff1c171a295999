package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

const defaultBaseDir = ".zeyn"

// Paths holds resolved filesystem paths for zeyn client data.
type Paths struct {
	Base        string // ~/.zeyn
	Config      string // ~/.zeyn/config.yaml
	Data        string // ~/.zeyn/data
	Credentials string // ~/.zeyn/data/credentials.db
}

// ResolvePaths computes all standard paths from the home directory.
// If ZEYN_HOME is set, it overrides the default base directory.
func ResolvePaths() (Paths, error) {
	base := os.Getenv("ZEYN_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Paths{}, err
		}
		base = filepath.Join(home, defaultBaseDir)
	}

	data := filepath.Join(base, "data")
	return Paths{
		Base:        base,
		Config:      filepath.Join(base, "config.yaml"),
		Data:        data,
		Credentials: filepath.Join(data, "credentials.db"),
	}, nil
}

// EnsureDirs creates the base and data directories, readable only by the
// owner since the data directory holds the credential database.
func (p Paths) EnsureDirs() error {
	for _, d := range []string{p.Base, p.Data} {
		if err := os.MkdirAll(d, 0o700); err != nil {
			return err
		}
	}
	return nil
}

// Sections lists the top-level keys of config.yaml.
var Sections = []string{"api", "hub", "chat", "credentials", "logging"}

// secretPaths are printed redacted by `zeyn config get`.
var secretPaths = map[string]bool{
	"credentials.accessToken": true,
}

// ParseConfigPath splits a dotted key such as "chat.pageSize" into segments.
// The first segment must name a config section.
func ParseConfigPath(raw string) ([]string, error) {
	if raw == "" {
		return nil, &ConfigError{Message: "empty config path"}
	}
	parts := strings.Split(raw, ".")
	for _, p := range parts {
		if p == "" {
			return nil, &ConfigError{Message: "config path contains empty segment"}
		}
	}
	if !slices.Contains(Sections, parts[0]) {
		return nil, &ConfigError{Message: fmt.Sprintf("unknown config section %q (want one of %s)", parts[0], strings.Join(Sections, ", "))}
	}
	return parts, nil
}

// IsSecret reports whether the value at path holds a credential.
func IsSecret(path []string) bool {
	return secretPaths[strings.Join(path, ".")]
}

// GetValueAtPath traverses a nested map using the given path segments.
func GetValueAtPath(root map[string]any, path []string) (any, bool) {
	current := any(root)
	for _, key := range path {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// SetValueAtPath sets a value in a nested map, creating intermediate maps as needed.
func SetValueAtPath(root map[string]any, path []string, value any) {
	current := root
	for _, key := range path[:len(path)-1] {
		next, ok := current[key]
		if !ok {
			next = map[string]any{}
			current[key] = next
		}
		m, ok := next.(map[string]any)
		if !ok {
			m = map[string]any{}
			current[key] = m
		}
		current = m
	}
	current[path[len(path)-1]] = value
}

// UnsetValueAtPath removes a value at the given path. Returns true if removed.
func UnsetValueAtPath(root map[string]any, path []string) bool {
	current := root
	for _, key := range path[:len(path)-1] {
		next, ok := current[key]
		if !ok {
			return false
		}
		m, ok := next.(map[string]any)
		if !ok {
			return false
		}
		current = m
	}
	last := path[len(path)-1]
	if _, ok := current[last]; !ok {
		return false
	}
	delete(current, last)
	return true
}
