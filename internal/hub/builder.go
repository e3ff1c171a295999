package hub

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/soyeahso/zeyn/internal/logging"
)

// Default timings of the JSON hub protocol.
const (
	DefaultKeepAliveInterval = 15 * time.Second
	DefaultServerTimeout     = 30 * time.Second
	DefaultHandshakeTimeout  = 15 * time.Second
)

// AccessTokenFactory supplies the bearer token. It is called once per
// connection attempt, so a refreshed token is picked up on reconnect.
type AccessTokenFactory func(ctx context.Context) (string, error)

// Builder configures a Connection.
type Builder struct {
	url               string
	tokenFactory      AccessTokenFactory
	retry             RetryPolicy
	log               *logging.Logger
	skipNegotiation   bool
	httpClient        *http.Client
	dialer            *websocket.Dialer
	keepAliveInterval time.Duration
	serverTimeout     time.Duration
	handshakeTimeout  time.Duration
}

// NewBuilder returns a Builder with the protocol's default timings.
func NewBuilder() *Builder {
	return &Builder{
		keepAliveInterval: DefaultKeepAliveInterval,
		serverTimeout:     DefaultServerTimeout,
		handshakeTimeout:  DefaultHandshakeTimeout,
	}
}

// WithURL sets the absolute http(s) or ws(s) URL of the hub endpoint.
func (b *Builder) WithURL(url string) *Builder {
	b.url = url
	return b
}

func (b *Builder) WithAccessTokenFactory(f AccessTokenFactory) *Builder {
	b.tokenFactory = f
	return b
}

// WithAutomaticReconnect enables reconnecting after an unexpected drop.
func (b *Builder) WithAutomaticReconnect(p RetryPolicy) *Builder {
	b.retry = p
	return b
}

func (b *Builder) WithLogger(log *logging.Logger) *Builder {
	b.log = log
	return b
}

// WithSkipNegotiation dials the websocket directly without POSTing to
// /negotiate first.
func (b *Builder) WithSkipNegotiation(skip bool) *Builder {
	b.skipNegotiation = skip
	return b
}

func (b *Builder) WithHTTPClient(c *http.Client) *Builder {
	b.httpClient = c
	return b
}

func (b *Builder) WithDialer(d *websocket.Dialer) *Builder {
	b.dialer = d
	return b
}

// WithKeepAliveInterval sets how often the client pings the server.
func (b *Builder) WithKeepAliveInterval(d time.Duration) *Builder {
	b.keepAliveInterval = d
	return b
}

// WithServerTimeout sets how long the client waits for any server message
// before treating the connection as lost.
func (b *Builder) WithServerTimeout(d time.Duration) *Builder {
	b.serverTimeout = d
	return b
}

// Build validates the configuration and returns a disconnected Connection.
func (b *Builder) Build() (*Connection, error) {
	if b.url == "" {
		return nil, errors.New("hub: url is required")
	}
	if _, err := websocketURL(b.url, ""); err != nil {
		return nil, err
	}
	log := b.log
	if log == nil {
		log = logging.Nop()
	}
	httpClient := b.httpClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	dialer := b.dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	return &Connection{
		url:               b.url,
		tokenFactory:      b.tokenFactory,
		retry:             b.retry,
		skipNegotiation:   b.skipNegotiation,
		httpClient:        httpClient,
		dialer:            dialer,
		keepAliveInterval: b.keepAliveInterval,
		serverTimeout:     b.serverTimeout,
		handshakeTimeout:  b.handshakeTimeout,
		log:               log,
		handlers:          newHandlerRegistry(log),
		pending:           make(map[string]chan completion),
	}, nil
}
