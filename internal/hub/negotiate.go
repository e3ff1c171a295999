package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const maxNegotiateRedirects = 100

// NegotiateResponse is the server's answer to POST <hub>/negotiate.
type NegotiateResponse struct {
	ConnectionID        string               `json:"connectionId"`
	ConnectionToken     string               `json:"connectionToken"`
	NegotiateVersion    int                  `json:"negotiateVersion"`
	AvailableTransports []AvailableTransport `json:"availableTransports"`

	// Redirect to another service, optionally with its own token.
	URL         string `json:"url,omitempty"`
	AccessToken string `json:"accessToken,omitempty"`

	Error string `json:"error,omitempty"`
}

// AvailableTransport lists one transport the server accepts.
type AvailableTransport struct {
	Transport       string   `json:"transport"`
	TransferFormats []string `json:"transferFormats"`
}

func (r NegotiateResponse) supportsWebSockets() bool {
	for _, t := range r.AvailableTransports {
		if strings.EqualFold(t.Transport, "WebSockets") {
			return true
		}
	}
	return false
}

// negotiate follows redirects until the server hands out a connection.
// It returns the effective hub URL and bearer token for the websocket dial.
func (c *Connection) negotiate(ctx context.Context, hubURL, token string) (string, string, NegotiateResponse, error) {
	for i := 0; i < maxNegotiateRedirects; i++ {
		resp, err := c.negotiateOnce(ctx, hubURL, token)
		if err != nil {
			return "", "", NegotiateResponse{}, err
		}
		if resp.Error != "" {
			return "", "", NegotiateResponse{}, fmt.Errorf("hub: negotiate: %s", resp.Error)
		}
		if resp.URL == "" {
			if !resp.supportsWebSockets() {
				return "", "", NegotiateResponse{}, errors.New("hub: server does not offer the WebSockets transport")
			}
			return hubURL, token, resp, nil
		}
		c.log.Debug().Str("url", resp.URL).Msg("negotiate redirect")
		hubURL = resp.URL
		if resp.AccessToken != "" {
			token = resp.AccessToken
		}
	}
	return "", "", NegotiateResponse{}, errors.New("hub: negotiate redirect limit exceeded")
}

func (c *Connection) negotiateOnce(ctx context.Context, hubURL, token string) (NegotiateResponse, error) {
	u, err := url.Parse(hubURL)
	if err != nil {
		return NegotiateResponse{}, fmt.Errorf("hub: parsing url: %w", err)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/negotiate"
	q := u.Query()
	q.Set("negotiateVersion", "1")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), nil)
	if err != nil {
		return NegotiateResponse{}, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return NegotiateResponse{}, fmt.Errorf("hub: negotiate: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return NegotiateResponse{}, fmt.Errorf("hub: reading negotiate response: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return NegotiateResponse{}, &NegotiateError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var out NegotiateResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return NegotiateResponse{}, fmt.Errorf("hub: invalid negotiate response: %w", err)
	}
	return out, nil
}

// NegotiateError is returned when the negotiate endpoint answers non-2xx.
type NegotiateError struct {
	Status int
	Body   string
}

func (e *NegotiateError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("hub: negotiate failed with status %d", e.Status)
	}
	return fmt.Sprintf("hub: negotiate failed with status %d: %s", e.Status, e.Body)
}

// websocketURL converts an http(s) hub URL to ws(s) and appends the
// connection token.
func websocketURL(hubURL, connectionToken string) (string, error) {
	u, err := url.Parse(hubURL)
	if err != nil {
		return "", fmt.Errorf("hub: parsing url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("hub: unsupported url scheme %q", u.Scheme)
	}
	if connectionToken != "" {
		q := u.Query()
		q.Set("id", connectionToken)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}
