package hub

import (
	"strings"
	"time"

	"github.com/soyeahso/zeyn/internal/logging"
)

// ZeynAIPath is the chat hub endpoint relative to the API base URL.
const ZeynAIPath = "/hubs/zeynai"

// DefaultReconnectDelay is the fixed wait between reconnect attempts.
const DefaultReconnectDelay = 1500 * time.Millisecond

// URL joins an API base URL and a hub path.
func URL(baseURL, path string) string {
	if path == "" {
		path = ZeynAIPath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return strings.TrimRight(baseURL, "/") + path
}

// NewZeynAIBuilder returns a Builder for the chat hub at path under baseURL
// that reconnects forever with DefaultReconnectDelay. An empty path means
// ZeynAIPath.
func NewZeynAIBuilder(baseURL, path string, tokens AccessTokenFactory, log *logging.Logger) *Builder {
	return NewBuilder().
		WithURL(URL(baseURL, path)).
		WithAccessTokenFactory(tokens).
		WithAutomaticReconnect(FixedDelay(DefaultReconnectDelay)).
		WithLogger(log)
}
