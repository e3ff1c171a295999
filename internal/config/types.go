package config

// Config is the root configuration for the zeyn client.
type Config struct {
	API         APIConfig         `yaml:"api,omitempty"`
	Hub         HubConfig         `yaml:"hub,omitempty"`
	Chat        ChatConfig        `yaml:"chat,omitempty"`
	Credentials CredentialsConfig `yaml:"credentials,omitempty"`
	Logging     LoggingConfig     `yaml:"logging,omitempty"`
}

// APIConfig points the client at the platform backend.
type APIConfig struct {
	BaseURL        string `yaml:"baseUrl,omitempty"`
	TimeoutSeconds int    `yaml:"timeoutSeconds,omitempty"`
	Namespace      string `yaml:"namespace,omitempty"` // REST namespace for the assistant, "zeynai"
}

// HubConfig controls the real-time hub connection.
type HubConfig struct {
	Path             string `yaml:"path,omitempty"`             // appended to api.baseUrl
	ReconnectDelayMs int    `yaml:"reconnectDelayMs,omitempty"` // fixed delay between reconnect attempts
	Reconnect        *bool  `yaml:"reconnect,omitempty"`        // defaults to true
	SkipNegotiation  bool   `yaml:"skipNegotiation,omitempty"`
	LogLevel         string `yaml:"logLevel,omitempty"`
}

// ChatConfig controls chat history paging.
type ChatConfig struct {
	PageSize int `yaml:"pageSize,omitempty"`
}

// CredentialsConfig selects where the access token is kept.
type CredentialsConfig struct {
	Store       string `yaml:"store,omitempty"`       // "sqlite" | "memory"
	AccessToken string `yaml:"accessToken,omitempty"` // optional static token, supports ${ENV}
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level        string `yaml:"level,omitempty"`        // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	ConsoleStyle string `yaml:"consoleStyle,omitempty"` // "pretty" | "json"
}

// ReconnectEnabled reports whether automatic reconnect is on.
func (h HubConfig) ReconnectEnabled() bool {
	return h.Reconnect == nil || *h.Reconnect
}
