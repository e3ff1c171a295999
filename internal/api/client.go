// Package api is the REST client for the Zeyn platform backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/soyeahso/zeyn/internal/logging"
	"github.com/soyeahso/zeyn/internal/store"
	"github.com/soyeahso/zeyn/internal/version"
)

// DefaultTimeout bounds every REST call.
const DefaultTimeout = 20 * time.Second

// maxErrorBody caps how much of an error response is kept on Error.
const maxErrorBody = 4096

// Client issues authenticated JSON requests against the backend.
type Client struct {
	baseURL   string
	namespace string
	http      *http.Client
	creds     store.CredentialStore
	log       *logging.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithNamespace sets the assistant REST namespace ("zeynai" by default).
func WithNamespace(ns string) Option {
	return func(c *Client) {
		if ns != "" {
			c.namespace = ns
		}
	}
}

// WithBaseTransport replaces the transport under the bearer layer.
func WithBaseTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.http.Transport = &bearerTransport{
			source: &storeTokenSource{creds: c.creds},
			base:   rt,
		}
	}
}

// New creates a Client. Every request carries the bearer token currently in
// creds; a 401 response removes it.
func New(baseURL string, creds store.CredentialStore, log *logging.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		namespace: "zeynai",
		creds:     creds,
		log:       log.Sub("api"),
	}
	c.http = &http.Client{
		Timeout: DefaultTimeout,
		Transport: &bearerTransport{
			source: &storeTokenSource{creds: creds},
			base:   http.DefaultTransport,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// BaseURL returns the backend root URL without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// Credentials returns the store the client reads its token from.
func (c *Client) Credentials() store.CredentialStore { return c.creds }

// Error is returned for any non-2xx response.
type Error struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *Error) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("api: %s %s: %d %s", e.Method, e.Path, e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("api: %s %s: %d %s", e.Method, e.Path, e.Status, e.Body)
}

// IsUnauthorized reports whether err is a 401 from the backend.
func IsUnauthorized(err error) bool {
	return StatusOf(err) == http.StatusUnauthorized
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// do sends one request. body is JSON-encoded when non-nil; out is decoded
// from the response when non-nil and the response has content.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("building %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("api request")

	if resp.StatusCode == http.StatusUnauthorized {
		if err := store.SetAccessToken(ctx, c.creds, ""); err != nil {
			c.log.Warn().Err(err).Msg("failed to clear rejected access token")
		} else {
			c.log.Info().Msg("access token rejected, cleared local credential")
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &Error{
			Method: method,
			Path:   path,
			Status: resp.StatusCode,
			Body:   strings.TrimSpace(string(data)),
		}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decoding %s %s: %w", method, path, err)
	}
	return nil
}

// errNoToken means no credential is stored; requests go out anonymously.
var errNoToken = errors.New("no access token")

// storeTokenSource reads the bearer token from the credential store on every call,
// so login and logout take effect without rebuilding the client.
type storeTokenSource struct {
	creds store.CredentialStore
}

func (s *storeTokenSource) Token() (*oauth2.Token, error) {
	tok, err := store.AccessToken(context.Background(), s.creds)
	if err != nil {
		return nil, err
	}
	if tok == "" {
		return nil, errNoToken
	}
	return &oauth2.Token{AccessToken: tok, TokenType: "Bearer"}, nil
}

// bearerTransport adds the Authorization header when a token is available.
type bearerTransport struct {
	source oauth2.TokenSource
	base   http.RoundTripper
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	tok, err := t.source.Token()
	if errors.Is(err, errNoToken) {
		return t.base.RoundTrip(req)
	}
	if err != nil {
		return nil, fmt.Errorf("reading access token: %w", err)
	}
	req2 := req.Clone(req.Context())
	tok.SetAuthHeader(req2)
	return t.base.RoundTrip(req2)
}
