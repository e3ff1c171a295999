package config

import "fmt"

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

const (
	DefaultBaseURL          = "http://localhost:5062"
	DefaultTimeoutSeconds   = 20
	DefaultNamespace        = "zeynai"
	DefaultHubPath          = "/hubs/zeynai"
	DefaultReconnectDelayMs = 1500
	DefaultPageSize         = 50
)

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	return Config{
		API: APIConfig{
			BaseURL:        DefaultBaseURL,
			TimeoutSeconds: DefaultTimeoutSeconds,
			Namespace:      DefaultNamespace,
		},
		Hub: HubConfig{
			Path:             DefaultHubPath,
			ReconnectDelayMs: DefaultReconnectDelayMs,
			LogLevel:         "info",
		},
		Chat: ChatConfig{
			PageSize: DefaultPageSize,
		},
		Credentials: CredentialsConfig{
			Store: "sqlite",
		},
		Logging: LoggingConfig{
			Level:        "info",
			ConsoleStyle: "pretty",
		},
	}
}
